// Package reminder sends a recurring notification to configured chats.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bigbes/chatstats/internal/metrics"
	"github.com/bigbes/chatstats/internal/stats"
)

// Options configures a Scheduler.
type Options struct {
	Schedule string // standard 5-field cron expression
	Location *time.Location
	ChatIDs  []int64
	Text     string
}

// Scheduler fires the reminder on its cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sender  stats.Sender
	chatIDs []int64
	text    string
	logger  *slog.Logger
}

// New validates the schedule and creates a Scheduler. It does not start
// the cron loop; see Run.
func New(opts Options, sender stats.Sender, logger *slog.Logger) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sender:  sender,
		chatIDs: opts.ChatIDs,
		text:    opts.Text,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(opts.Schedule, s.fire); err != nil {
		return nil, fmt.Errorf("reminder: schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("reminder: scheduler started", "chats", len(s.chatIDs), "next", s.Next())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("reminder: scheduler stopped")
	return nil
}

// Next returns the next activation time, or the zero time if the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Notify(ctx)
}

// Notify sends the reminder text to every configured chat and returns the
// number of successful deliveries.
func (s *Scheduler) Notify(ctx context.Context) int {
	sent := 0
	for _, chatID := range s.chatIDs {
		if err := s.sender.SendMessageTo(ctx, chatID, s.text); err != nil {
			metrics.RemindersSent.WithLabelValues("error").Inc()
			s.logger.Error("reminder: failed to send", "chat_id", chatID, "err", err)
			continue
		}
		metrics.RemindersSent.WithLabelValues("ok").Inc()
		sent++
	}
	s.logger.Info("reminder: sent", "chats", sent)
	return sent
}
