package listener

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bigbes/chatstats/internal/metrics"
	"github.com/bigbes/chatstats/internal/telegram"
)

// Poller is the subset of the Telegram client used by Listener.
type Poller interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
}

// Options tunes the polling loop.
type Options struct {
	PollTimeout int // seconds
	RetryDelay  time.Duration
	Workers     int
}

// Listener long-polls Telegram and hands each message to a Dispatcher.
type Listener struct {
	poller     Poller
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger
}

// New creates a Listener.
func New(poller Poller, dispatcher *Dispatcher, opts Options, logger *slog.Logger) *Listener {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Listener{
		poller:     poller,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
}

// Run registers the bot commands and polls until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.registerCommands(ctx)
	l.logger.Info("listener: polling for updates", "timeout", l.opts.PollTimeout, "workers", l.opts.Workers)
	l.pollLoop(ctx)
	return nil
}

func (l *Listener) registerCommands(ctx context.Context) {
	commands := []telegram.BotCommand{
		{Command: "stats", Description: "Show message statistics for this group"},
	}
	if err := l.poller.SetMyCommands(ctx, commands); err != nil {
		l.logger.Error("listener: failed to register bot commands", "err", err)
	}
}

func (l *Listener) pollLoop(ctx context.Context) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := l.poller.GetUpdates(ctx, offset, l.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.PollErrors.Inc()
			l.logger.Error("listener: failed to poll updates", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.opts.RetryDelay):
			}
			continue
		}

		offset = l.dispatchBatch(ctx, updates, offset)
	}
}

// dispatchBatch handles one batch of updates and returns the next offset.
func (l *Listener) dispatchBatch(ctx context.Context, updates []telegram.Update, offset int64) int64 {
	var g errgroup.Group
	g.SetLimit(l.opts.Workers)
	for _, u := range updates {
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		msg := u.Message
		g.Go(func() error {
			l.dispatcher.Handle(ctx, msg)
			return nil
		})
	}
	g.Wait()
	return offset
}
