package statsdb

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigbes/chatstats/internal/stats"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func int64p(v int64) *int64 { return &v }

func TestGetMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), stats.Key{UserID: 1, GroupID: -1})
	if !errors.Is(err, stats.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := stats.UserGroupStat{
		UserID: 1, GroupID: -100, Username: "alice", MessageCount: 3,
		AvgMessageLength: int64p(12), LastMessageAt: time.Unix(1700000000, 0),
		AvgResponseTime: 30, FRR: 9.3,
	}
	if err := s.Save(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, rec.Key())
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice" || got.MessageCount != 3 || got.AvgLength() != 12 ||
		got.AvgResponseTime != 30 || got.FRR != 9.3 || !got.LastMessageAt.Equal(rec.LastMessageAt) {
		t.Fatalf("unexpected record %+v", got)
	}

	// Second save replaces the row instead of adding one.
	rec.MessageCount = 4
	rec.AvgMessageLength = nil
	if err := s.Save(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d records, want 1", len(all))
	}
	if all[0].MessageCount != 4 || all[0].AvgMessageLength != nil {
		t.Fatalf("unexpected record after upsert %+v", all[0])
	}
}

func TestListByGroupOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, r := range []stats.UserGroupStat{
		{UserID: 1, GroupID: -5, MessageCount: 5, AvgMessageLength: int64p(3)},
		{UserID: 2, GroupID: -5, MessageCount: 5, AvgMessageLength: int64p(9)},
		{UserID: 3, GroupID: -5, MessageCount: 2, AvgMessageLength: int64p(100)},
		{UserID: 4, GroupID: -5, MessageCount: 2},
		{UserID: 5, GroupID: -6, MessageCount: 99},
	} {
		if err := s.Save(ctx, &r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListByGroup(ctx, -5)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].UserID != id {
			t.Fatalf("position %d: got user %d, want %d", i, got[i].UserID, id)
		}
	}

	empty, err := s.ListByGroup(ctx, -42)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %d records for empty group", len(empty))
	}
}

func TestUpdaterAgainstSQLite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	u := stats.NewUpdater(s, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	for i, text := range []string{"abc", "abcdefghij", "a", "abcdefghijklmnopqrst"} {
		ev := stats.Event{UserID: 9, GroupID: -1, Username: "neo", Text: text, ArrivalTime: time.Unix(int64(100+i), 0)}
		if err := u.Update(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Get(ctx, stats.Key{UserID: 9, GroupID: -1})
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageCount != 4 || got.AvgLength() != 12 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.LastMessageAt.Unix() != 103 {
		t.Fatalf("last message: got %d, want 103", got.LastMessageAt.Unix())
	}
}

func TestDumpRoundTrip(t *testing.T) {
	src := testStore(t)
	ctx := context.Background()
	for _, r := range []stats.UserGroupStat{
		{UserID: 1, GroupID: -5, Username: "a", MessageCount: 5, AvgMessageLength: int64p(3), LastMessageAt: time.Unix(50, 0)},
		{UserID: 2, GroupID: -5, Username: "b", MessageCount: 1, LastMessageAt: time.Unix(60, 0)},
	} {
		if err := src.Save(ctx, &r); err != nil {
			t.Fatal(err)
		}
	}

	for _, password := range []string{"", "s3cret"} {
		var buf bytes.Buffer
		n, err := WriteDump(ctx, &buf, src, password)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("wrote %d records, want 2", n)
		}
		if IsEncrypted(buf.Bytes()) != (password != "") {
			t.Fatalf("password %q: unexpected encryption state", password)
		}

		dst := testStore(t)
		if _, err := ReadDump(ctx, bytes.NewReader(buf.Bytes()), dst, password); err != nil {
			t.Fatal(err)
		}
		all, err := dst.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[0].Username != "a" || all[0].AvgLength() != 3 || all[0].LastMessageAt.Unix() != 50 || all[1].AvgMessageLength != nil {
			t.Fatalf("unexpected restored records %+v", all)
		}
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	data, err := Encrypt([]byte("payload"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(data, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("got %v, want ErrWrongPassword", err)
	}
	plain, err := Decrypt(data, "right")
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "payload" {
		t.Fatalf("got %q", plain)
	}
}
