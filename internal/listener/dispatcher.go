// Package listener receives Telegram messages and routes them to the stats
// updater or reporter.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bigbes/chatstats/internal/metrics"
	"github.com/bigbes/chatstats/internal/stats"
	"github.com/bigbes/chatstats/internal/telegram"
)

// StatsCommand is the only recognized command.
const StatsCommand = "/stats"

// UsageHint is the reply to messages outside of groups.
const UsageHint = "Use /stats in a group for seeing me doing stuff!"

// Updater applies a message to the sender's stats.
type Updater interface {
	Update(ctx context.Context, ev stats.Event) error
}

// Reporter renders and delivers a group's leaderboard.
type Reporter interface {
	Send(ctx context.Context, groupID int64, groupTitle string) error
}

// Dispatcher routes one inbound message.
type Dispatcher struct {
	updater  Updater
	reporter Reporter
	sender   stats.Sender
	mention  *regexp.Regexp
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. botUsername, when set, is stripped
// from message texts as an @mention before command matching.
func NewDispatcher(updater Updater, reporter Reporter, sender stats.Sender, botUsername string, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		updater:  updater,
		reporter: reporter,
		sender:   sender,
		logger:   logger,
	}
	if botUsername != "" {
		d.mention = regexp.MustCompile("(?i)@" + regexp.QuoteMeta(botUsername))
	}
	return d
}

// Handle processes msg. Messages without a chat or sender are ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg *telegram.Message) {
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}

	if !msg.Chat.IsGroup() {
		if err := d.sender.SendMessageTo(ctx, msg.Chat.ID, UsageHint); err != nil {
			d.logger.Error("listener: failed to send hint", "chat_id", msg.Chat.ID, "err", err)
			return
		}
		metrics.HintsSent.Inc()
		return
	}

	text := d.stripMention(msg.Text)
	if text == StatsCommand {
		if err := d.reporter.Send(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
			metrics.ReportErrors.Inc()
			d.logger.Error("listener: failed to send stats", "group_id", msg.Chat.ID, "err", err)
			return
		}
		metrics.ReportsSent.Inc()
		return
	}

	ev := stats.Event{
		UserID:      msg.From.ID,
		Username:    msg.From.Username,
		FirstName:   msg.From.FirstName,
		GroupID:     msg.Chat.ID,
		GroupTitle:  msg.Chat.Title,
		Text:        text,
		ArrivalTime: msg.Time(),
	}
	if err := d.updater.Update(ctx, ev); err != nil {
		stage := "save"
		if errors.Is(err, stats.ErrLookup) {
			stage = "lookup"
		}
		metrics.UpdatesDropped.WithLabelValues(stage).Inc()
		return
	}
	kind := "other"
	if ev.Text != "" {
		kind = "text"
	}
	metrics.MessagesProcessed.WithLabelValues(kind).Inc()
}

func (d *Dispatcher) stripMention(text string) string {
	if d.mention == nil || text == "" {
		return text
	}
	stripped := d.mention.ReplaceAllString(text, "")
	if stripped == text {
		return text
	}
	return strings.TrimSpace(stripped)
}
