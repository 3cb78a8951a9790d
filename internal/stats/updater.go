package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf16"
)

// Updater applies inbound messages to UserGroupStat records.
type Updater struct {
	store  Store
	locks  *KeyLock
	logger *slog.Logger
	now    func() time.Time
}

// NewUpdater creates an Updater persisting through store.
func NewUpdater(store Store, logger *slog.Logger) *Updater {
	return &Updater{
		store:  store,
		locks:  NewKeyLock(),
		logger: logger,
		now:    time.Now,
	}
}

// Update loads or creates the record for the event's (user, group) pair,
// applies the event to it and saves it. Failures are logged; the returned
// error is informational and the update is dropped.
func (u *Updater) Update(ctx context.Context, ev Event) error {
	key := Key{UserID: ev.UserID, GroupID: ev.GroupID}
	unlock := u.locks.Lock(key)
	defer unlock()

	stat, err := u.findOrCreate(ctx, key)
	if err != nil {
		u.logger.Error("stats: find-or-create failed",
			"user_id", ev.UserID, "group_id", ev.GroupID, "err", err)
		return fmt.Errorf("%w: %w", ErrLookup, err)
	}

	arrival := ev.ArrivalTime
	if arrival.IsZero() {
		arrival = u.now()
	}
	Apply(&stat, ev, arrival)

	group := ev.GroupTitle
	if group == "" {
		group = strconv.FormatInt(ev.GroupID, 10)
	}
	u.logger.Info("new message", "username", stat.Username, "user_id", stat.UserID, "group", group)

	if err := u.store.Save(ctx, &stat); err != nil {
		u.logger.Error("stats: save failed",
			"user_id", ev.UserID, "group_id", ev.GroupID, "err", err)
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	return nil
}

func (u *Updater) findOrCreate(ctx context.Context, key Key) (UserGroupStat, error) {
	stat, err := u.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return NewUserGroupStat(key), nil
	}
	if err != nil {
		return UserGroupStat{}, err
	}
	return stat, nil
}

// Apply mutates stat with one message arriving at arrival.
func Apply(stat *UserGroupStat, ev Event, arrival time.Time) {
	stat.MessageCount++

	switch {
	case ev.Username != "":
		stat.Username = ev.Username
	case ev.FirstName != "":
		stat.Username = ev.FirstName
	default:
		stat.Username = strconv.FormatInt(ev.UserID, 10)
	}

	if ev.Text != "" {
		length := textLength(ev.Text)
		if stat.AvgMessageLength != nil && *stat.AvgMessageLength != 0 {
			length = halfway(*stat.AvgMessageLength, length)
		}
		stat.AvgMessageLength = &length
	}

	difference := arrival.Unix() - stat.LastMessageAt.Unix()
	stat.LastMessageAt = arrival
	stat.AvgResponseTime = halfway(stat.AvgResponseTime, difference)

	stat.FRR = friendshipRating(stat.MessageCount, stat.AvgLength())
}

// textLength counts UTF-16 code units, so characters outside the Basic
// Multilingual Plane count as two.
func textLength(text string) int64 {
	var n int64
	for _, r := range text {
		if l := len(utf16.Encode([]rune{r})); l > 0 {
			n += int64(l)
		} else {
			n++
		}
	}
	return n
}
