// Package scan runs the scan pipeline: one authoritative in-flight scan per
// file, persisted results, and diagnostics for whichever scan was issued last.
package scan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"livecheck/internal/diagnostics"
	"livecheck/internal/editor"
	lcerrors "livecheck/internal/errors"
	"livecheck/internal/issues"
	"livecheck/internal/paths"
	"livecheck/internal/remote"
	"livecheck/internal/session"
	"livecheck/internal/storage"
	"livecheck/internal/version"
)

// Service is the remote side of a scan.
type Service interface {
	Analyze(ctx context.Context, req remote.AnalyzeRequest) (*remote.AnalyzeResponse, error)
	WriteOffReasons(ctx context.Context) ([]string, error)
	LicenseInfo(ctx context.Context) (*remote.License, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Outcome is the terminal state of one scan invocation.
type Outcome string

const (
	Completed  Outcome = "completed"
	Cancelled  Outcome = "cancelled"
	Superseded Outcome = "superseded"
	Failed     Outcome = "failed"
)

// Result describes how a scan ended.
type Result struct {
	Session     session.Session       `json:"-" yaml:"-"`
	SessionID   string                `json:"sessionId" yaml:"sessionId"`
	Path        string                `json:"path" yaml:"path"`
	Outcome     Outcome               `json:"outcome" yaml:"outcome"`
	Reason      session.DiscardReason `json:"discardReason,omitempty" yaml:"discardReason,omitempty"`
	HistoryID   int64                 `json:"historyId,omitempty" yaml:"historyId,omitempty"`
	Issues      int                   `json:"issues" yaml:"issues"`
	Diagnostics []editor.Diagnostic   `json:"diagnostics" yaml:"diagnostics"`
	Err         error                 `json:"-" yaml:"-"`
}

// Options configures the orchestrator.
type Options struct {
	RetentionDays      int
	OnlyBlockers       bool
	AutoScanOnOpen     bool
	InformationalTypes []string
	Clock              Clock
	Logger             *slog.Logger
}

// Orchestrator owns the session tracker and is the single place that turns
// errors into user messages.
type Orchestrator struct {
	store     storage.Store
	service   Service
	surface   editor.Surface
	publisher *diagnostics.Publisher
	tracker   *session.Tracker
	opts      Options
	logger    *slog.Logger

	// commitMu makes staleness check, persist and publish one step
	commitMu    sync.Mutex
	detached    sync.WaitGroup
	unsubscribe func()
}

// New creates an orchestrator.
func New(store storage.Store, service Service, surface editor.Surface, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	o := &Orchestrator{
		store:     store,
		service:   service,
		surface:   surface,
		publisher: diagnostics.NewPublisher(surface),
		tracker:   session.NewTracker(),
		opts:      opts,
		logger:    opts.Logger,
	}
	// KeyOnlyBlockers is never written under commitMu
	o.unsubscribe = store.Subscribe(KeyOnlyBlockers, func(string, json.RawMessage) {
		o.logger.Debug("Only-blockers override changed, republishing")
		_, _ = o.Restore(context.Background())
	})
	return o
}

// Close stops republishing on only-blockers changes.
func (o *Orchestrator) Close() {
	o.unsubscribe()
}

// Tracker exposes the session state, mainly for inspection in tests.
func (o *Orchestrator) Tracker() *session.Tracker {
	return o.tracker
}

// Wait blocks until every detached remote call has settled.
func (o *Orchestrator) Wait() {
	o.detached.Wait()
}

// Scan analyzes one file. Cancelling the progress wait returns a Cancelled
// result at once; the remote call keeps running and its result is dropped.
func (o *Orchestrator) Scan(ctx context.Context, path string) (*Result, error) {
	canonical, err := paths.CanonicalizePath(path)
	if err != nil {
		return nil, o.fail(fmt.Errorf("resolve %s: %w", path, err))
	}
	doc, err := o.surface.OpenDocument(ctx, canonical)
	if err != nil {
		return nil, o.fail(fmt.Errorf("open %s: %w", canonical, err))
	}

	s, err := o.tracker.Issue(canonical)
	if err != nil {
		return nil, o.fail(err)
	}
	o.logger.Debug("Scan issued", "session", s.ID, "path", canonical)

	done := make(chan *Result, 1)
	o.detached.Add(1)
	go func() {
		defer o.detached.Done()
		done <- o.run(context.WithoutCancel(ctx), s, doc)
	}()

	var res *Result
	title := "Scanning " + filepath.Base(canonical)
	err = o.surface.WithProgress(ctx, title, true, func(ctx context.Context) error {
		select {
		case res = <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		// the run may have committed while the wait was being cancelled
		select {
		case res = <-done:
		default:
			o.tracker.Cancel(s.ID)
			o.logger.Info("Scan wait cancelled", "session", s.ID, "path", canonical)
			return &Result{Session: s, SessionID: s.ID, Path: canonical, Outcome: Cancelled, Reason: session.DiscardCancelled}, nil
		}
	}

	if res.Err != nil {
		return res, o.fail(res.Err)
	}
	return res, nil
}

// run is the detached half of a scan. It never touches visible state unless
// the session is still current.
func (o *Orchestrator) run(ctx context.Context, s session.Session, doc editor.Document) *Result {
	defer o.tracker.Forget(s.ID)
	res := &Result{Session: s, SessionID: s.ID, Path: s.FilePath}

	resp, err := o.service.Analyze(ctx, remote.AnalyzeRequest{
		ElementPath:    s.FilePath,
		ElementContent: doc.Text,
		ClientVersion:  version.Version,
	})
	if err != nil {
		if reason := o.tracker.Evaluate(s); reason != session.Keep {
			return o.discard(res, reason)
		}
		o.logger.Warn("Scan failed", "session", s.ID, "path", s.FilePath, "error", err.Error())
		res.Outcome, res.Err = Failed, err
		return res
	}
	res.Issues = len(resp.Issues)

	o.purgeExpired()

	if reason := o.tracker.Evaluate(s); reason != session.Keep {
		return o.discard(res, reason)
	}

	gatesActive := issues.GatesActive(resp.QualityGates)
	historyID, reason, err := o.persist(s, doc, resp, gatesActive)
	if err != nil {
		res.Outcome, res.Err = Failed, err
		return res
	}
	if reason != session.Keep {
		return o.discard(res, reason)
	}
	res.HistoryID = historyID

	o.refreshSideData(ctx)

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if reason := o.tracker.Evaluate(s); reason != session.Keep {
		return o.discard(res, reason)
	}
	res.Diagnostics = o.publish(docURI(doc, s.FilePath), resp.Issues, gatesActive)
	res.Outcome = Completed
	o.logger.Info("Scan completed",
		"session", s.ID,
		"path", s.FilePath,
		"issues", len(resp.Issues),
		"diagnostics", len(res.Diagnostics),
	)
	return res
}

// persist writes history and the write-off payload if s is still current.
// A stale session is reported through the returned reason and writes nothing.
func (o *Orchestrator) persist(s session.Session, doc editor.Document, resp *remote.AnalyzeResponse, gatesActive bool) (int64, session.DiscardReason, error) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	if reason := o.tracker.Evaluate(s); reason != session.Keep {
		return 0, reason, nil
	}

	now := o.opts.Clock.Now()
	historyID, err := o.store.SetLivecheckHistory(s.FilePath, resp.Issues, now)
	if err != nil {
		return 0, session.Keep, fmt.Errorf("store scan history: %w", err)
	}

	payload := o.buildPayload(s.FilePath, doc, resp.Issues, now)
	if err := o.store.SetWriteOffData(historyID, payload); err != nil {
		o.logger.Warn("Failed to store write-off payload", "history_id", historyID, "error", err.Error())
	}
	if err := o.store.SetUserData(KeyQualityGatesActive, gatesActive); err != nil {
		o.logger.Warn("Failed to store quality gate state", "error", err.Error())
	}
	return historyID, session.Keep, nil
}

// purgeExpired applies the retention period. Zero disables it.
func (o *Orchestrator) purgeExpired() {
	if o.opts.RetentionDays <= 0 {
		return
	}
	if purged, err := o.store.DeleteIssuesOlderThan(o.opts.RetentionDays); err != nil {
		o.logger.Warn("Retention purge failed", "error", err.Error())
	} else if purged > 0 {
		o.logger.Debug("Retention purge", "entries", purged)
	}
}

func (o *Orchestrator) buildPayload(path string, doc editor.Document, list []issues.Issue, now time.Time) issues.WriteOffPayload {
	payload := issues.WriteOffPayload{
		FullDocument:          base64.StdEncoding.EncodeToString([]byte(doc.Text)),
		IssuesList:            list,
		ReasonsList:           o.cachedReasons(),
		DevWriteOffsRequested: []string{},
		FilePath:              path,
		CreatedAt:             now,
	}

	var license remote.License
	if ok, _ := o.store.GetUserData(KeyLicenseInfo, &license); ok {
		payload.Developer = license.Developer
	}

	statuses, err := o.store.GetWriteOffStatusMap()
	if err != nil {
		o.logger.Warn("Failed to read write-off status", "error", err.Error())
		return payload
	}
	for _, issue := range list {
		if st, ok := statuses[issue.Key()]; ok && st.Status == issues.WriteOffRequested {
			payload.DevWriteOffsRequested = append(payload.DevWriteOffsRequested, issue.Key())
		}
	}
	return payload
}

func (o *Orchestrator) discard(res *Result, reason session.DiscardReason) *Result {
	res.Reason = reason
	if reason == session.DiscardSuperseded {
		res.Outcome = Superseded
	} else {
		res.Outcome = Cancelled
	}
	o.logger.Info("Discarding stale scan result",
		"session", res.SessionID,
		"path", res.Path,
		"reason", string(reason),
	)
	return res
}

// fail shows err to the user and returns it.
func (o *Orchestrator) fail(err error) error {
	o.logger.Error("Scan error", "error", err.Error())
	o.surface.ShowError(lcerrors.UserMessage(err))
	return err
}
