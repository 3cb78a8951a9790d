package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigbes/chatstats/internal/config"
	"github.com/bigbes/chatstats/internal/mongostore"
	"github.com/bigbes/chatstats/internal/stats"
	"github.com/bigbes/chatstats/internal/statsdb"
)

// statsStore is what every backend provides.
type statsStore interface {
	stats.Store
	stats.Archive
}

// openStore opens the backend selected by cfg.Database.Driver. The
// returned close function releases it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (statsStore, func(), error) {
	switch cfg.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s, err := mongostore.Open(connectCtx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				logger.Error("failed to close mongo store", "err", err)
			}
		}, nil
	case config.DriverSQLite:
		s, err := statsdb.Open(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close database", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
