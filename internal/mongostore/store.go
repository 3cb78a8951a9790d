// Package mongostore persists user stats in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigbes/chatstats/internal/stats"
)

// Collection is the name of the stats collection.
const Collection = "userstats"

// Store is a MongoDB-backed stats store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

var (
	_ stats.Store   = (*Store)(nil)
	_ stats.Archive = (*Store)(nil)
)

type document struct {
	UserID           int64     `bson:"user_id"`
	GroupID          int64     `bson:"group_id"`
	Username         *string   `bson:"username"`
	MessageCount     int64     `bson:"message_count"`
	AvgMessageLength *int64    `bson:"average_message_length"`
	LastMessageAt    time.Time `bson:"last_message_timestamp"`
	AvgResponseTime  int64     `bson:"average_response_time"`
	FRR              float64   `bson:"user_frr"`
}

func toDocument(s *stats.UserGroupStat) document {
	d := document{
		UserID:           s.UserID,
		GroupID:          s.GroupID,
		MessageCount:     s.MessageCount,
		AvgMessageLength: s.AvgMessageLength,
		LastMessageAt:    s.LastMessageAt.UTC(),
		AvgResponseTime:  s.AvgResponseTime,
		FRR:              s.FRR,
	}
	if s.Username != "" {
		name := s.Username
		d.Username = &name
	}
	return d
}

func (d document) stat() stats.UserGroupStat {
	s := stats.UserGroupStat{
		UserID:           d.UserID,
		GroupID:          d.GroupID,
		MessageCount:     d.MessageCount,
		AvgMessageLength: d.AvgMessageLength,
		LastMessageAt:    d.LastMessageAt,
		AvgResponseTime:  d.AvgResponseTime,
		FRR:              d.FRR,
	}
	if d.Username != nil {
		s.Username = *d.Username
	}
	return s
}

func keyFilter(key stats.Key) bson.D {
	return bson.D{{Key: "user_id", Value: key.UserID}, {Key: "group_id", Value: key.GroupID}}
}

// groupSort orders a group's records for reports.
var groupSort = bson.D{{Key: "message_count", Value: -1}, {Key: "average_message_length", Value: -1}}

// Open connects to uri, verifies the connection and ensures the unique
// (user_id, group_id) index on the stats collection.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(database).Collection(Collection),
		logger: logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("mongostore: connected", "database", database, "collection", Collection)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "group_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: append(bson.D{{Key: "group_id", Value: 1}}, groupSort...),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Get returns the record for key, or stats.ErrNotFound.
func (s *Store) Get(ctx context.Context, key stats.Key) (stats.UserGroupStat, error) {
	var d document
	err := s.coll.FindOne(ctx, keyFilter(key)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return stats.UserGroupStat{}, stats.ErrNotFound
	}
	if err != nil {
		return stats.UserGroupStat{}, fmt.Errorf("mongostore: get %d/%d: %w", key.UserID, key.GroupID, err)
	}
	return d.stat(), nil
}

// Save replaces the record keyed by (user_id, group_id), inserting it when
// absent. A concurrent insert of the same key surfaces as a duplicate key
// error.
func (s *Store) Save(ctx context.Context, r *stats.UserGroupStat) error {
	_, err := s.coll.ReplaceOne(ctx, keyFilter(r.Key()), toDocument(r), options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("mongostore: save %d/%d: concurrent insert: %w", r.UserID, r.GroupID, err)
		}
		return fmt.Errorf("mongostore: save %d/%d: %w", r.UserID, r.GroupID, err)
	}
	return nil
}

// ListByGroup returns a group's records ordered by message count and
// average message length, both descending.
func (s *Store) ListByGroup(ctx context.Context, groupID int64) ([]stats.UserGroupStat, error) {
	cur, err := s.coll.Find(ctx, bson.D{{Key: "group_id", Value: groupID}}, options.Find().SetSort(groupSort))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find group %d: %w", groupID, err)
	}
	return collect(ctx, cur)
}

// All returns every record in the collection.
func (s *Store) All(ctx context.Context) ([]stats.UserGroupStat, error) {
	sort := bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}}
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find all: %w", err)
	}
	return collect(ctx, cur)
}

func collect(ctx context.Context, cur *mongo.Cursor) ([]stats.UserGroupStat, error) {
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode: %w", err)
	}
	out := make([]stats.UserGroupStat, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.stat())
	}
	return out, nil
}

// SaveAll upserts a batch of records with one bulk write.
func (s *Store) SaveAll(ctx context.Context, records []stats.UserGroupStat) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(records))
	for i := range records {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(keyFilter(records[i].Key())).
			SetReplacement(toDocument(&records[i])).
			SetUpsert(true))
	}
	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("mongostore: bulk save: %w", err)
	}
	s.logger.Debug("mongostore: batch saved",
		"matched", res.MatchedCount, "upserted", res.UpsertedCount)
	return nil
}
