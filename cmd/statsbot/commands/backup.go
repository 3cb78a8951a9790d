package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bigbes/chatstats/internal/config"
	"github.com/bigbes/chatstats/internal/statsdb"
)

func Backup(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "configs/statsbot.yaml", "path to config file")
	out := fs.String("out", "", "output file (default stdout)")
	password := fs.String("password", "", "encrypt the dump with this password")
	fs.Parse(args)

	cfg, err := config.LoadOffline(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			logger.Error("failed to create dump file", "err", err)
			closeStore()
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	n, err := statsdb.WriteDump(ctx, w, store, *password)
	if err != nil {
		logger.Error("backup failed", "err", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("backup written", "records", n, "encrypted", *password != "")
}

func Restore(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configPath := fs.String("config", "configs/statsbot.yaml", "path to config file")
	in := fs.String("in", "", "dump file to load")
	password := fs.String("password", "", "password for an encrypted dump")
	fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(os.Stderr, "error: -in is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadOffline(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	f, err := os.Open(*in)
	if err != nil {
		logger.Error("failed to open dump", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	n, err := statsdb.ReadDump(ctx, f, store, *password)
	if err != nil {
		logger.Error("restore failed", "err", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("restore complete", "records", n)
}
