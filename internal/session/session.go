// Package session tracks scan sessions so that only the most recently issued
// scan for a file may publish its result.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one invocation of the scan pipeline for one file.
type Session struct {
	ID       string
	FilePath string
	IssuedAt time.Time
}

// DiscardReason says why a result must be dropped. Empty means keep.
type DiscardReason string

const (
	Keep                DiscardReason = ""
	DiscardCancelled    DiscardReason = "cancelled"
	DiscardSuperseded   DiscardReason = "superseded"
	DiscardCancelledSet DiscardReason = "cancelled-set"
)

// ShouldDiscard decides whether the result of s is stale.
func ShouldDiscard(s Session, latestID string, explicitlyCancelled bool, cancelledSet map[string]struct{}) DiscardReason {
	if explicitlyCancelled {
		return DiscardCancelled
	}
	if s.ID != latestID {
		return DiscardSuperseded
	}
	if _, ok := cancelledSet[s.ID]; ok {
		return DiscardCancelledSet
	}
	return Keep
}

type pathState struct {
	latestID  string
	cancelled bool
}

// Tracker owns the latest-session pointer per path and the cancelled set.
type Tracker struct {
	mu        sync.Mutex
	paths     map[string]*pathState
	cancelled map[string]struct{}
	owners    map[string]string // session id -> path
	now       func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		paths:     make(map[string]*pathState),
		cancelled: make(map[string]struct{}),
		owners:    make(map[string]string),
		now:       time.Now,
	}
}

// Issue allocates a session for path and makes it the latest for that path.
func (t *Tracker) Issue(path string) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := Session{ID: id.String(), FilePath: path, IssuedAt: t.now()}
	t.paths[path] = &pathState{latestID: s.ID}
	t.owners[s.ID] = path
	return s, nil
}

// Cancel marks a session cancelled. Unknown ids are ignored.
func (t *Tracker) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path, ok := t.owners[id]
	if !ok {
		return
	}
	t.cancelled[id] = struct{}{}
	if st := t.paths[path]; st != nil && st.latestID == id {
		st.cancelled = true
	}
}

// Evaluate applies ShouldDiscard to s against the current state.
func (t *Tracker) Evaluate(s Session) DiscardReason {
	t.mu.Lock()
	defer t.mu.Unlock()

	var latestID string
	var explicit bool
	if st := t.paths[s.FilePath]; st != nil {
		latestID = st.latestID
		explicit = st.cancelled && st.latestID == s.ID
	}
	return ShouldDiscard(s, latestID, explicit, t.cancelled)
}

// Latest returns the latest session id for path, or "".
func (t *Tracker) Latest(path string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st := t.paths[path]; st != nil {
		return st.latestID
	}
	return ""
}

// Forget drops bookkeeping for a settled session.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path, ok := t.owners[id]
	if !ok {
		return
	}
	delete(t.owners, id)
	delete(t.cancelled, id)
	if st := t.paths[path]; st != nil && st.latestID == id {
		delete(t.paths, path)
	}
}

// InFlight reports how many sessions have not been forgotten.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.owners)
}
