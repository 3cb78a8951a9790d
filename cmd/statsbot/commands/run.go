package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bigbes/chatstats/internal/config"
	"github.com/bigbes/chatstats/internal/listener"
	"github.com/bigbes/chatstats/internal/reminder"
	"github.com/bigbes/chatstats/internal/stats"
	"github.com/bigbes/chatstats/internal/telegram"
)

func Run(args []string, logger *slog.Logger, version string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/statsbot.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.ParseLogLevel()}))

	logger.Info("starting statsbot", "version", version, "database", cfg.Database.Driver)
	if bi, ok := debug.ReadBuildInfo(); ok {
		var buildAttrs []any
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision", "vcs.time", "vcs.modified":
				buildAttrs = append(buildAttrs, s.Key, s.Value)
			}
		}
		if len(buildAttrs) > 0 {
			logger.Info("build info", buildAttrs...)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("statsbot error", "err", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("statsbot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	bot := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.APIURL)

	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		meCtx, meCancel := context.WithTimeout(ctx, 15*time.Second)
		me, err := bot.GetMe(meCtx)
		meCancel()
		if err != nil {
			return fmt.Errorf("resolving bot identity: %w", err)
		}
		botUsername = me.Username
	}
	logger.Info("bot identity", "username", botUsername)

	tmpl := stats.DefaultTemplate
	if path := cfg.Report.TemplateFile; path != "" {
		if tmpl, err = template.ParseFiles(path); err != nil {
			return fmt.Errorf("loading report template: %w", err)
		}
	}

	updater := stats.NewUpdater(store, logger)
	reporter := stats.NewReporter(store, bot, tmpl, logger)
	dispatcher := listener.NewDispatcher(updater, reporter, bot, botUsername, logger)
	l := listener.New(bot, dispatcher, listener.Options{
		PollTimeout: cfg.Telegram.PollTimeout,
		RetryDelay:  cfg.PollRetryInterval(),
		Workers:     cfg.Telegram.Workers,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })

	if cfg.Reminder.Enabled {
		loc := time.Local
		if cfg.Reminder.Timezone != "" {
			if loc, err = time.LoadLocation(cfg.Reminder.Timezone); err != nil {
				return fmt.Errorf("reminder timezone: %w", err)
			}
		}
		sched, err := reminder.New(reminder.Options{
			Schedule: cfg.Reminder.Schedule,
			Location: loc,
			ChatIDs:  cfg.Reminder.ChatIDs,
			Text:     cfg.Reminder.Text,
		}, bot, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if obs := cfg.ObservabilityHTTP; obs.Addr != "" {
		srv := observabilityServer(obs)
		g.Go(func() error {
			logger.Info("starting observability server", "addr", obs.Addr, "pprof", obs.Pprof, "metrics", obs.Metrics)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("observability server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	return g.Wait()
}

func observabilityServer(obs config.ObservabilityHTTPConfig) *http.Server {
	mux := http.NewServeMux()
	if obs.Pprof {
		// Re-register pprof handlers on our mux (net/http/pprof init registers on DefaultServeMux).
		mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
	}
	if obs.Metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return &http.Server{Addr: obs.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}
