// Package stats maintains per-user, per-group message statistics and
// renders group leaderboards.
package stats

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no record exists for a key.
	ErrNotFound = errors.New("stats: record not found")

	// ErrLookup and ErrSave classify errors returned by Updater.Update.
	ErrLookup = errors.New("stats: find-or-create failed")
	ErrSave   = errors.New("stats: save failed")
)

// Key identifies a UserGroupStat record.
type Key struct {
	UserID  int64
	GroupID int64
}

// UserGroupStat is the statistics record for one user in one group.
type UserGroupStat struct {
	UserID   int64
	GroupID  int64
	Username string

	MessageCount int64
	// AvgMessageLength is nil until the first text message is seen.
	AvgMessageLength *int64
	LastMessageAt    time.Time
	// AvgResponseTime is in seconds.
	AvgResponseTime int64
	FRR             float64
}

// NewUserGroupStat returns the default-valued record for key.
func NewUserGroupStat(key Key) UserGroupStat {
	return UserGroupStat{
		UserID:        key.UserID,
		GroupID:       key.GroupID,
		LastMessageAt: time.Unix(0, 0),
	}
}

// Key returns the record key.
func (s UserGroupStat) Key() Key {
	return Key{UserID: s.UserID, GroupID: s.GroupID}
}

// AvgLength returns the average message length, or 0 when absent.
func (s UserGroupStat) AvgLength() int64 {
	if s.AvgMessageLength == nil {
		return 0
	}
	return *s.AvgMessageLength
}

// Event is one inbound group message reduced to what the updater needs.
type Event struct {
	UserID      int64
	Username    string
	FirstName   string
	GroupID     int64
	GroupTitle  string
	Text        string
	ArrivalTime time.Time
}

// Store is the persistence collaborator for UserGroupStat records.
type Store interface {
	// Get returns ErrNotFound when no record exists for key.
	Get(ctx context.Context, key Key) (UserGroupStat, error)
	// Save inserts or replaces the record keyed by (UserID, GroupID).
	Save(ctx context.Context, stat *UserGroupStat) error
	// ListByGroup returns the group's records ordered by message count
	// and then average message length, both descending.
	ListByGroup(ctx context.Context, groupID int64) ([]UserGroupStat, error)
}

// Archive is implemented by stores that support full dumps and restores.
type Archive interface {
	All(ctx context.Context) ([]UserGroupStat, error)
	SaveAll(ctx context.Context, stats []UserGroupStat) error
}

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessageTo(ctx context.Context, chatID int64, text string) error
}

// halfway moves prev halfway toward sample, rounding up.
func halfway(prev, sample int64) int64 {
	return int64(math.Ceil(float64(prev+sample) / 2))
}

// friendshipRating is a provisional engagement score.
func friendshipRating(count, avgLen int64) float64 {
	return round2(0.3*float64(count) + 0.7*float64(avgLen))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
