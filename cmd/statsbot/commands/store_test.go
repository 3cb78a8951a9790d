package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigbes/chatstats/internal/config"
	"github.com/bigbes/chatstats/internal/stats"
	"github.com/bigbes/chatstats/internal/statsdb"
)

func TestOpenStoreSQLiteBackupRestore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	dir := t.TempDir()

	src, closeSrc, err := openStore(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "src.sqlite")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer closeSrc()

	u := stats.NewUpdater(src, logger)
	for _, text := range []string{"hi", "hello"} {
		if err := u.Update(ctx, stats.Event{UserID: 1, Username: "a", GroupID: -5, Text: text, ArrivalTime: time.Unix(100, 0)}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if n, err := statsdb.WriteDump(ctx, &buf, src, "secret"); err != nil || n != 1 {
		t.Fatalf("WriteDump: n=%d err=%v", n, err)
	}

	dst, closeDst, err := openStore(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "dst.sqlite")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer closeDst()

	if n, err := statsdb.ReadDump(ctx, &buf, dst, "secret"); err != nil || n != 1 {
		t.Fatalf("ReadDump: n=%d err=%v", n, err)
	}
	text, err := stats.NewReporter(dst, nil, nil, logger).Report(ctx, -5, "G")
	if err != nil {
		t.Fatal(err)
	}
	want := "Stats for G by user:\n" +
		"@a has sent 2 messages, with an average length of 4, a friendship rating of 3.40 and an average response time of 25s.\n" +
		"Total messages sent 2."
	if text != want {
		t.Fatalf("report:\n%s\nwant:\n%s", text, want)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, _, err := openStore(context.Background(), config.DatabaseConfig{Driver: "postgres"}, logger); err == nil {
		t.Fatal("expected error")
	}
}
