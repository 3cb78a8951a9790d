package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/bigbes/chatstats/internal/stats"
)

func TestDocumentFieldNames(t *testing.T) {
	avg := int64(7)
	s := stats.UserGroupStat{
		UserID: 1, GroupID: -2, Username: "ann", MessageCount: 3,
		AvgMessageLength: &avg, LastMessageAt: time.Unix(100, 0), AvgResponseTime: 4, FRR: 5.8,
	}
	raw, err := bson.Marshal(toDocument(&s))
	if err != nil {
		t.Fatal(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{
		"user_id", "group_id", "username", "message_count", "average_message_length",
		"last_message_timestamp", "average_response_time", "user_frr",
	} {
		if _, ok := m[field]; !ok {
			t.Errorf("missing field %q in %v", field, m)
		}
	}
}

func TestDocumentAbsentValues(t *testing.T) {
	s := stats.NewUserGroupStat(stats.Key{UserID: 1, GroupID: -2})
	raw, err := bson.Marshal(toDocument(&s))
	if err != nil {
		t.Fatal(err)
	}
	var d document
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatal(err)
	}
	if d.Username != nil || d.AvgMessageLength != nil {
		t.Fatalf("absent values should round-trip as null: %+v", d)
	}
	back := d.stat()
	if back.Username != "" || back.AvgMessageLength != nil || back.LastMessageAt.Unix() != 0 {
		t.Fatalf("unexpected stat %+v", back)
	}
}

// TestStoreIntegration runs against a live server when STATSBOT_MONGO_URI is set.
func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("STATSBOT_MONGO_URI")
	if uri == "" {
		t.Skip("STATSBOT_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("statsbot_test_%d", time.Now().UnixNano())
	s, err := Open(ctx, uri, dbName, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.coll.Database().Drop(context.Background())
		s.Close(context.Background())
	})

	if _, err := s.Get(ctx, stats.Key{UserID: 1, GroupID: -1}); !errors.Is(err, stats.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	u := stats.NewUpdater(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, ev := range []stats.Event{
		{UserID: 1, GroupID: -1, Username: "a", Text: "hello"},
		{UserID: 1, GroupID: -1, Username: "a", Text: "hi"},
		{UserID: 2, GroupID: -1, Username: "b", Text: "a much longer message"},
	} {
		if err := u.Update(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListByGroup(ctx, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].UserID != 1 || list[0].MessageCount != 2 || list[0].AvgLength() != 4 {
		t.Fatalf("unexpected list %+v", list)
	}
}
