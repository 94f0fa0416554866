package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"livecheck/internal/issues"
)

// MemoryStore satisfies Store without persistence. It is the fallback when
// the database cannot be opened.
type MemoryStore struct {
	mu     sync.RWMutex
	logger *slog.Logger
	opts   Options
	notify *notifier

	userData map[string][]byte
	history  map[int64]*issues.HistoryEntry
	byPath   map[string]int64
	payloads map[int64][]byte
	statuses map[string]issues.WriteOffStatus
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		logger:   opts.Logger,
		opts:     opts,
		notify:   newNotifier(),
		userData: make(map[string][]byte),
		history:  make(map[int64]*issues.HistoryEntry),
		byPath:   make(map[string]int64),
		payloads: make(map[int64][]byte),
		statuses: make(map[string]issues.WriteOffStatus),
	}
}

func (m *MemoryStore) GetUserData(key string, out any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	m.mu.RLock()
	raw, ok := m.userData[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		m.logger.Warn("Ignoring malformed user data", "key", key, "error", err.Error())
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) SetUserData(key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeValue(key, value, m.opts.MaxValueBytes)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.userData[key] = data
	m.mu.Unlock()

	m.notify.publish(key, data)
	return nil
}

func (m *MemoryStore) DeleteUserData(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.userData, key)
	m.mu.Unlock()

	m.notify.publish(key, nil)
	return nil
}

func (m *MemoryStore) Subscribe(key string, fn Listener) func() {
	return m.notify.subscribe(key, fn)
}

func (m *MemoryStore) SetLivecheckHistory(path string, list []issues.Issue, ts time.Time) (int64, error) {
	// round-trip through the on-disk layout so both stores agree on precision
	stamp, _ := parseTimestamp(formatTimestamp(ts))

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.byPath[path]; ok {
		m.deleteEntryLocked(prior)
	}

	m.nextID++
	id := m.nextID
	copied := make([]issues.Issue, len(list))
	copy(copied, list)
	m.history[id] = &issues.HistoryEntry{ID: id, Path: path, Timestamp: stamp, Issues: copied}
	m.byPath[path] = id
	return id, nil
}

func (m *MemoryStore) GetLivecheckHistory() ([]issues.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]issues.HistoryEntry, 0, len(m.history))
	for _, e := range m.history {
		entries = append(entries, cloneEntry(e))
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (m *MemoryStore) GetHistoryForPath(path string) (*issues.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPath[path]
	if !ok {
		return nil, nil
	}
	e := cloneEntry(m.history[id])
	return &e, nil
}

func (m *MemoryStore) SetWriteOffData(historyID int64, payload issues.WriteOffPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode write-off payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.history[historyID]; !ok {
		return fmt.Errorf("failed to store write-off payload for history %d: no such entry", historyID)
	}
	m.payloads[historyID] = data
	return nil
}

func (m *MemoryStore) GetWriteOffData(historyID int64) (*issues.WriteOffPayload, error) {
	m.mu.RLock()
	raw, ok := m.payloads[historyID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var payload issues.WriteOffPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		m.logger.Warn("Ignoring malformed write-off payload", "history_id", historyID, "error", err.Error())
		return nil, nil
	}
	return &payload, nil
}

func (m *MemoryStore) DeleteAllData() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = make(map[int64]*issues.HistoryEntry)
	m.byPath = make(map[string]int64)
	m.payloads = make(map[int64][]byte)
	return nil
}

func (m *MemoryStore) DeleteIssuesOlderThan(days int) (int, error) {
	limit := cutoff(m.opts.Now(), days)

	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int
	for id, e := range m.history {
		if e.Timestamp.Before(limit) {
			m.deleteEntryLocked(id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) SetWriteOffStatus(issueKey string, status issues.WriteOffStatus) error {
	if issueKey == "" {
		return fmt.Errorf("write-off status requires an issue key")
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = m.opts.Now()
	}
	status.UpdatedAt, _ = parseTimestamp(formatTimestamp(status.UpdatedAt))

	m.mu.Lock()
	m.statuses[issueKey] = status
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetWriteOffStatusMap() (map[string]issues.WriteOffStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]issues.WriteOffStatus, len(m.statuses))
	for k, v := range m.statuses {
		result[k] = v
	}
	return result, nil
}

func (m *MemoryStore) DeleteWriteOffStatus(issueKey string) error {
	m.mu.Lock()
	delete(m.statuses, issueKey)
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) deleteEntryLocked(id int64) {
	e, ok := m.history[id]
	if !ok {
		return
	}
	delete(m.payloads, id)
	delete(m.history, id)
	if m.byPath[e.Path] == id {
		delete(m.byPath, e.Path)
	}
}

func cloneEntry(e *issues.HistoryEntry) issues.HistoryEntry {
	out := *e
	out.Issues = make([]issues.Issue, len(e.Issues))
	copy(out.Issues, e.Issues)
	return out
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
