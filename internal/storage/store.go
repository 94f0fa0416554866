// Package storage is the durable local cache: scan history with its issues
// and write-off payloads, locally tracked write-off status, and a generic
// JSON key/value table.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lcerrors "livecheck/internal/errors"
	"livecheck/internal/issues"
)

const (
	// MaxKeyLength bounds userData keys.
	MaxKeyLength = 255
	// DefaultMaxValueBytes is the encoded value ceiling when none is configured.
	DefaultMaxValueBytes = 1 << 20

	// timestampLayout is fixed-width UTC so string comparison orders rows.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Store is the contract shared by the SQLite store and the in-memory fallback.
type Store interface {
	GetUserData(key string, out any) (bool, error)
	SetUserData(key string, value any) error
	DeleteUserData(key string) error
	Subscribe(key string, fn Listener) (unsubscribe func())

	SetLivecheckHistory(path string, list []issues.Issue, ts time.Time) (int64, error)
	GetLivecheckHistory() ([]issues.HistoryEntry, error)
	GetHistoryForPath(path string) (*issues.HistoryEntry, error)
	SetWriteOffData(historyID int64, payload issues.WriteOffPayload) error
	GetWriteOffData(historyID int64) (*issues.WriteOffPayload, error)
	DeleteAllData() error
	DeleteIssuesOlderThan(days int) (int, error)

	SetWriteOffStatus(issueKey string, status issues.WriteOffStatus) error
	GetWriteOffStatusMap() (map[string]issues.WriteOffStatus, error)
	DeleteWriteOffStatus(issueKey string) error

	Close() error
}

// Options configures either store implementation.
type Options struct {
	Logger        *slog.Logger
	MaxValueBytes int
	// Now overrides the clock used for retention cutoffs.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.MaxValueBytes <= 0 {
		o.MaxValueBytes = DefaultMaxValueBytes
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func validateKey(key string) error {
	if key == "" {
		return lcerrors.New(lcerrors.InvalidKey, "user data key must not be empty", nil)
	}
	if len(key) > MaxKeyLength {
		return lcerrors.New(lcerrors.InvalidKey,
			fmt.Sprintf("user data key exceeds %d characters", MaxKeyLength), nil).
			WithDetails(map[string]interface{}{"length": len(key)})
	}
	return nil
}

// encodeValue marshals value and enforces the size ceiling.
func encodeValue(key string, value any, limit int) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user data %q: %w", key, err)
	}
	if len(data) > limit {
		return nil, lcerrors.New(lcerrors.ValueTooLarge,
			fmt.Sprintf("value for %q is %d bytes, limit is %d", key, len(data), limit), nil)
	}
	return data, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
