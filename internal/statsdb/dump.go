package statsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bigbes/chatstats/internal/stats"
)

const dumpVersion = 1

// Dump is the portable backup representation of a stats store.
type Dump struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Records   []DumpRecord `json:"records"`
}

// DumpRecord is one UserGroupStat in a Dump.
type DumpRecord struct {
	UserID           int64   `json:"user_id"`
	GroupID          int64   `json:"group_id"`
	Username         string  `json:"username"`
	MessageCount     int64   `json:"message_count"`
	AvgMessageLength *int64  `json:"average_message_length"`
	LastMessageUnix  int64   `json:"last_message_timestamp"`
	AvgResponseTime  int64   `json:"average_response_time"`
	FRR              float64 `json:"user_frr"`
}

// WriteDump writes every record of src to w as JSON, encrypted when
// password is non-empty. It returns the number of records written.
func WriteDump(ctx context.Context, w io.Writer, src stats.Archive, password string) (int, error) {
	records, err := src.All(ctx)
	if err != nil {
		return 0, err
	}

	d := Dump{Version: dumpVersion, CreatedAt: time.Now().UTC(), Records: make([]DumpRecord, 0, len(records))}
	for _, r := range records {
		d.Records = append(d.Records, DumpRecord{
			UserID:           r.UserID,
			GroupID:          r.GroupID,
			Username:         r.Username,
			MessageCount:     r.MessageCount,
			AvgMessageLength: r.AvgMessageLength,
			LastMessageUnix:  r.LastMessageAt.Unix(),
			AvgResponseTime:  r.AvgResponseTime,
			FRR:              r.FRR,
		})
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("statsdb: marshal dump: %w", err)
	}
	if password != "" {
		if data, err = Encrypt(data, password); err != nil {
			return 0, err
		}
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("statsdb: write dump: %w", err)
	}
	return len(d.Records), nil
}

// ReadDump parses a dump produced by WriteDump and upserts its records
// into dst. It returns the number of records restored.
func ReadDump(ctx context.Context, r io.Reader, dst stats.Archive, password string) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("statsdb: read dump: %w", err)
	}
	if IsEncrypted(data) {
		if password == "" {
			return 0, fmt.Errorf("statsdb: dump is encrypted, password required")
		}
		if data, err = Decrypt(data, password); err != nil {
			return 0, err
		}
	}

	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return 0, fmt.Errorf("statsdb: parse dump: %w", err)
	}
	if d.Version != dumpVersion {
		return 0, fmt.Errorf("statsdb: unsupported dump version %d", d.Version)
	}

	records := make([]stats.UserGroupStat, 0, len(d.Records))
	for _, dr := range d.Records {
		records = append(records, stats.UserGroupStat{
			UserID:           dr.UserID,
			GroupID:          dr.GroupID,
			Username:         dr.Username,
			MessageCount:     dr.MessageCount,
			AvgMessageLength: dr.AvgMessageLength,
			LastMessageAt:    time.Unix(dr.LastMessageUnix, 0),
			AvgResponseTime:  dr.AvgResponseTime,
			FRR:              dr.FRR,
		})
	}
	if err := dst.SaveAll(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
