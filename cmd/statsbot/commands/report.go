package commands

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/bigbes/chatstats/internal/config"
	"github.com/bigbes/chatstats/internal/stats"
)

func Report(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "configs/statsbot.yaml", "path to config file")
	groupID := fs.Int64("group", 0, "group chat id")
	title := fs.String("title", "", "group title used in the header")
	fs.Parse(args)

	if *groupID == 0 {
		fmt.Fprintln(os.Stderr, "error: -group is required")
		fs.Usage()
		os.Exit(1)
	}

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

	tmpl := stats.DefaultTemplate
	if path := cfg.Report.TemplateFile; path != "" {
		if tmpl, err = template.ParseFiles(path); err != nil {
			logger.Error("failed to load report template", "err", err)
			closeStore()
			os.Exit(1)
		}
	}

	if *title == "" {
		*title = fmt.Sprint(*groupID)
	}
	text, err := stats.NewReporter(store, nil, tmpl, logger).Report(ctx, *groupID, *title)
	if err != nil {
		logger.Error("failed to build report", "err", err)
		closeStore()
		os.Exit(1)
	}
	fmt.Println(text)
}
