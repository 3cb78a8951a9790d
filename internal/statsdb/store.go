package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bigbes/chatstats/internal/stats"
)

// Store is a SQLite-backed persistent stats store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ stats.Store   = (*Store)(nil)
	_ stats.Archive = (*Store)(nil)
)

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: open %q: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("statsdb: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_group_stats (
  user_id INTEGER NOT NULL,
  group_id INTEGER NOT NULL,
  username TEXT NOT NULL DEFAULT '',
  message_count INTEGER NOT NULL DEFAULT 0,
  avg_message_length INTEGER,
  last_message_unix INTEGER NOT NULL DEFAULT 0,
  avg_response_time INTEGER NOT NULL DEFAULT 0,
  user_frr REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (user_id, group_id)
);

CREATE INDEX IF NOT EXISTS user_group_stats_group
  ON user_group_stats (group_id, message_count DESC, avg_message_length DESC);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("statsdb: init schema: %w", err)
	}
	return nil
}

const selectColumns = `user_id, group_id, username, message_count, avg_message_length,
		        last_message_unix, avg_response_time, user_frr`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStat(row rowScanner) (stats.UserGroupStat, error) {
	var r stats.UserGroupStat
	var avgLen sql.NullInt64
	var lastUnix int64
	if err := row.Scan(&r.UserID, &r.GroupID, &r.Username, &r.MessageCount, &avgLen,
		&lastUnix, &r.AvgResponseTime, &r.FRR); err != nil {
		return stats.UserGroupStat{}, err
	}
	if avgLen.Valid {
		v := avgLen.Int64
		r.AvgMessageLength = &v
	}
	r.LastMessageAt = time.Unix(lastUnix, 0)
	return r, nil
}

// Get returns the record for key, or stats.ErrNotFound.
func (s *Store) Get(ctx context.Context, key stats.Key) (stats.UserGroupStat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`
		 FROM user_group_stats WHERE user_id = ? AND group_id = ?`,
		key.UserID, key.GroupID)
	r, err := scanStat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return stats.UserGroupStat{}, stats.ErrNotFound
	}
	if err != nil {
		return stats.UserGroupStat{}, fmt.Errorf("statsdb: get %d/%d: %w", key.UserID, key.GroupID, err)
	}
	return r, nil
}

const upsertSQL = `INSERT INTO user_group_stats
		 (user_id, group_id, username, message_count, avg_message_length,
		  last_message_unix, avg_response_time, user_frr)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, group_id) DO UPDATE SET
		   username = excluded.username,
		   message_count = excluded.message_count,
		   avg_message_length = excluded.avg_message_length,
		   last_message_unix = excluded.last_message_unix,
		   avg_response_time = excluded.avg_response_time,
		   user_frr = excluded.user_frr`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, e execer, r *stats.UserGroupStat) error {
	var avgLen sql.NullInt64
	if r.AvgMessageLength != nil {
		avgLen = sql.NullInt64{Int64: *r.AvgMessageLength, Valid: true}
	}
	_, err := e.ExecContext(ctx, upsertSQL,
		r.UserID, r.GroupID, r.Username, r.MessageCount, avgLen,
		r.LastMessageAt.Unix(), r.AvgResponseTime, r.FRR,
	)
	return err
}

// Save inserts or replaces the record keyed by (user_id, group_id).
func (s *Store) Save(ctx context.Context, r *stats.UserGroupStat) error {
	if err := upsert(ctx, s.db, r); err != nil {
		return fmt.Errorf("statsdb: save %d/%d: %w", r.UserID, r.GroupID, err)
	}
	return nil
}

// ListByGroup returns all records of a group ordered by message count and
// average message length, both descending.
func (s *Store) ListByGroup(ctx context.Context, groupID int64) ([]stats.UserGroupStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+`
		 FROM user_group_stats WHERE group_id = ?
		 ORDER BY message_count DESC, COALESCE(avg_message_length, 0) DESC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("statsdb: query group %d: %w", groupID, err)
	}
	return collect(rows)
}

// All returns every record in the store.
func (s *Store) All(ctx context.Context) ([]stats.UserGroupStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+`
		 FROM user_group_stats ORDER BY group_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("statsdb: query all: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]stats.UserGroupStat, error) {
	defer rows.Close()

	var out []stats.UserGroupStat
	for rows.Next() {
		r, err := scanStat(rows)
		if err != nil {
			return nil, fmt.Errorf("statsdb: scan stat: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statsdb: iterate stats: %w", err)
	}
	return out, nil
}

// SaveAll upserts a batch of records in a single transaction.
func (s *Store) SaveAll(ctx context.Context, records []stats.UserGroupStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statsdb: begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		if err := upsert(ctx, tx, &records[i]); err != nil {
			return fmt.Errorf("statsdb: save %d/%d: %w", records[i].UserID, records[i].GroupID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statsdb: commit batch: %w", err)
	}
	s.logger.Debug("statsdb: batch saved", "records", len(records))
	return nil
}
