package scan

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livecheck/internal/editor"
	"livecheck/internal/issues"
	"livecheck/internal/paths"
	"livecheck/internal/remote"
	"livecheck/internal/storage"
)

type pendingCall struct {
	req     remote.AnalyzeRequest
	release chan analyzeReply
}

type analyzeReply struct {
	resp *remote.AnalyzeResponse
	err  error
}

// fakeService blocks every Analyze call until the test releases it.
type fakeService struct {
	calls chan pendingCall

	mu         sync.Mutex
	reasons    []string
	license    *remote.License
	reasonsErr error
}

func newFakeService() *fakeService {
	return &fakeService{
		calls:   make(chan pendingCall, 8),
		reasons: []string{"legacy", "false positive"},
		license: &remote.License{Plan: "team", Valid: true, Developer: "dev@example.com"},
	}
}

func (f *fakeService) Analyze(ctx context.Context, req remote.AnalyzeRequest) (*remote.AnalyzeResponse, error) {
	call := pendingCall{req: req, release: make(chan analyzeReply, 1)}
	f.calls <- call
	reply := <-call.release
	return reply.resp, reply.err
}

func (f *fakeService) WriteOffReasons(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reasons, f.reasonsErr
}

func (f *fakeService) LicenseInfo(context.Context) (*remote.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.license, nil
}

func (f *fakeService) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Analyze call")
		return pendingCall{}
	}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type harness struct {
	store   *storage.MemoryStore
	service *fakeService
	surface *editor.Recorder
	orch    *Orchestrator
	path    string
	uri     string
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	path, err := paths.CanonicalizePath(filepath.Join(t.TempDir(), "main.go"))
	require.NoError(t, err)

	h := &harness{
		store:   storage.NewMemoryStore(storage.Options{}),
		service: newFakeService(),
		surface: editor.NewRecorder(),
		path:    path,
		uri:     paths.FileURI(path),
	}
	h.surface.AddDocument(editor.Document{URI: h.uri, Path: path, Text: "package main\n"})
	if opts.RetentionDays == 0 {
		opts.RetentionDays = 30
	}
	h.orch = New(h.store, h.service, h.surface, opts)
	return h
}

type scanReturn struct {
	res *Result
	err error
}

func (h *harness) scanAsync(ctx context.Context) <-chan scanReturn {
	out := make(chan scanReturn, 1)
	go func() {
		res, err := h.orch.Scan(ctx, h.path)
		out <- scanReturn{res, err}
	}()
	return out
}

func wait(t *testing.T, ch <-chan scanReturn) scanReturn {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scan")
		return scanReturn{}
	}
}

func response(ids ...string) *remote.AnalyzeResponse {
	resp := &remote.AnalyzeResponse{Issues: []issues.Issue{}}
	for i, id := range ids {
		resp.Issues = append(resp.Issues, issues.Issue{
			ID:         id,
			IssueType:  "sql-injection",
			Severity:   issues.SeverityHigh,
			LineNumber: i + 1,
		})
	}
	return resp
}

func TestScan_Completed(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.scanAsync(context.Background())

	call := h.service.next(t)
	assert.Equal(t, h.path, call.req.ElementPath)
	assert.Equal(t, "package main\n", call.req.ElementContent)
	call.release <- analyzeReply{resp: response("i1", "i2")}

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, Completed, r.res.Outcome)
	assert.Equal(t, 2, r.res.Issues)
	assert.Len(t, r.res.Diagnostics, 2)

	entry, err := h.store.GetHistoryForPath(h.path)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Issues, 2)

	payload, err := h.store.GetWriteOffData(entry.ID)
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, h.path, payload.FilePath)
	assert.Equal(t, []string{}, payload.DevWriteOffsRequested)

	published, ok := h.surface.Published(h.uri)
	require.True(t, ok)
	assert.Len(t, published, 2)

	var reasons []string
	ok, err = h.store.GetUserData(KeyWriteOffReasons, &reasons)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"legacy", "false positive"}, reasons)

	h.orch.Wait()
	assert.Equal(t, 0, h.orch.Tracker().InFlight())
}

func TestScan_LaterScanWinsWhenResolvedFirst(t *testing.T) {
	h := newHarness(t, Options{})

	chA := h.scanAsync(context.Background())
	callA := h.service.next(t)
	chB := h.scanAsync(context.Background())
	callB := h.service.next(t)

	callB.release <- analyzeReply{resp: response("from-b")}
	rB := wait(t, chB)
	require.NoError(t, rB.err)
	assert.Equal(t, Completed, rB.res.Outcome)

	callA.release <- analyzeReply{resp: response("from-a-1", "from-a-2")}
	rA := wait(t, chA)
	require.NoError(t, rA.err)
	assert.Equal(t, Superseded, rA.res.Outcome)
	h.orch.Wait()

	entry, err := h.store.GetHistoryForPath(h.path)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, entry.Issues, 1)
	assert.Equal(t, "from-b", entry.Issues[0].ID)

	published, _ := h.surface.Published(h.uri)
	require.Len(t, published, 1)
	assert.Equal(t, "from-b", published[0].IssueKey)
}

func TestScan_EarlierScanResolvedFirstIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})

	chA := h.scanAsync(context.Background())
	callA := h.service.next(t)
	chB := h.scanAsync(context.Background())
	callB := h.service.next(t)

	callA.release <- analyzeReply{resp: response("from-a")}
	rA := wait(t, chA)
	assert.Equal(t, Superseded, rA.res.Outcome)

	entry, err := h.store.GetHistoryForPath(h.path)
	require.NoError(t, err)
	assert.Nil(t, entry, "superseded result must not be stored")

	callB.release <- analyzeReply{resp: response("from-b")}
	rB := wait(t, chB)
	assert.Equal(t, Completed, rB.res.Outcome)

	published, _ := h.surface.Published(h.uri)
	require.Len(t, published, 1)
	assert.Equal(t, "from-b", published[0].IssueKey)
}

func TestScan_CancelLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, Options{})
	h.surface.OnProgress = func(_ string, cancel context.CancelFunc) { cancel() }

	ch := h.scanAsync(context.Background())
	call := h.service.next(t)

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, Cancelled, r.res.Outcome)

	// the remote call outlives the cancelled wait
	call.release <- analyzeReply{resp: response("late")}
	h.orch.Wait()

	entry, err := h.store.GetHistoryForPath(h.path)
	require.NoError(t, err)
	assert.Nil(t, entry)
	_, ok := h.surface.Published(h.uri)
	assert.False(t, ok)
	assert.Empty(t, h.surface.Messages())
}

func TestScan_CancelAfterCompletionReportsCompleted(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, Options{})
		// the run commits before the wait is cancelled
		h.surface.OnProgress = func(_ string, cancel context.CancelFunc) {
			h.orch.Wait()
			cancel()
		}

		ch := h.scanAsync(context.Background())
		h.service.next(t).release <- analyzeReply{resp: response("a")}

		r := wait(t, ch)
		require.NoError(t, r.err)
		assert.Equal(t, Completed, r.res.Outcome, "iteration %d", i)

		entry, err := h.store.GetHistoryForPath(h.path)
		require.NoError(t, err)
		require.NotNil(t, entry)
		_, ok := h.surface.Published(h.uri)
		assert.True(t, ok)
	}
}

func TestScan_FailureShowsMessage(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.scanAsync(context.Background())

	h.service.next(t).release <- analyzeReply{err: &remote.Error{StatusCode: 500, Message: "boom"}}

	r := wait(t, ch)
	require.Error(t, r.err)
	assert.Equal(t, Failed, r.res.Outcome)

	msgs := h.surface.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "error: "), msgs[0])

	entry, _ := h.store.GetHistoryForPath(h.path)
	assert.Nil(t, entry)
}

func TestScan_UnknownDocument(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.orch.Scan(context.Background(), filepath.Join(filepath.Dir(h.path), "other.go"))
	require.Error(t, err)
	assert.Len(t, h.surface.Messages(), 1)
}

func TestScan_SideDataFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{})
	h.service.reasonsErr = errors.New("reasons unavailable")
	ch := h.scanAsync(context.Background())
	h.service.next(t).release <- analyzeReply{resp: response("i1")}

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, Completed, r.res.Outcome)
	assert.Empty(t, h.surface.Messages())
}

func TestScan_QualityGatesChangeLevels(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.scanAsync(context.Background())

	resp := &remote.AnalyzeResponse{
		Issues: []issues.Issue{
			{ID: "blocker", Severity: issues.SeverityLow, QualityGateBreaker: true, LineNumber: 1},
			{ID: "high", Severity: issues.SeverityHigh, LineNumber: 2},
		},
		QualityGates: []issues.QualityGate{{Name: "default"}},
	}
	h.service.next(t).release <- analyzeReply{resp: resp}
	r := wait(t, ch)
	require.NoError(t, r.err)

	levels := map[string]editor.Level{}
	for _, d := range r.res.Diagnostics {
		levels[d.IssueKey] = d.Level
	}
	assert.Equal(t, editor.LevelError, levels["blocker"])
	assert.Equal(t, editor.LevelWarning, levels["high"])

	var active bool
	ok, _ := h.store.GetUserData(KeyQualityGatesActive, &active)
	assert.True(t, ok)
	assert.True(t, active)
}

func TestScan_RetentionPurge(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, Options{RetentionDays: 7})
	h.store = storage.NewMemoryStore(storage.Options{Now: func() time.Time { return now }})
	h.orch = New(h.store, h.service, h.surface, Options{RetentionDays: 7, Clock: fixedClock{now}})

	old := filepath.Join(filepath.Dir(h.path), "old.go")
	_, err := h.store.SetLivecheckHistory(old, response("stale").Issues, now.AddDate(0, 0, -30))
	require.NoError(t, err)

	ch := h.scanAsync(context.Background())
	h.service.next(t).release <- analyzeReply{resp: response("fresh")}
	r := wait(t, ch)
	require.NoError(t, r.err)

	entry, err := h.store.GetHistoryForPath(old)
	require.NoError(t, err)
	assert.Nil(t, entry)
	entry, err = h.store.GetHistoryForPath(h.path)
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestRestore_PublishesCachedEntries(t *testing.T) {
	h := newHarness(t, Options{})
	other := filepath.Join(filepath.Dir(h.path), "other.go")
	_, err := h.store.SetLivecheckHistory(h.path, response("a").Issues, time.Now())
	require.NoError(t, err)
	_, err = h.store.SetLivecheckHistory(other, response("b", "c").Issues, time.Now())
	require.NoError(t, err)

	n, err := h.orch.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok := h.surface.Published(h.uri)
	require.True(t, ok)
	assert.Len(t, got, 1)
	got, ok = h.surface.Published(paths.FileURI(other))
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestRefresh_AppliesLocalWriteOff(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.store.SetLivecheckHistory(h.path, response("a").Issues, time.Now())
	require.NoError(t, err)

	diags, err := h.orch.Refresh(context.Background(), h.path)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Empty(t, diags[0].Related)

	require.NoError(t, h.store.SetWriteOffStatus("a", issues.WriteOffStatus{
		Status:    issues.WriteOffRequested,
		UpdatedAt: time.Now(),
		Metadata:  map[string]any{"reason": "legacy"},
	}))
	diags, err = h.orch.Refresh(context.Background(), h.path)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.NotEmpty(t, diags[0].Related)
}

func TestRefresh_NoEntryClears(t *testing.T) {
	h := newHarness(t, Options{})
	diags, err := h.orch.Refresh(context.Background(), h.path)
	require.NoError(t, err)
	assert.Nil(t, diags)
	assert.Equal(t, []string{"clear " + h.uri}, h.surface.Events())
}

func TestActiveDocumentChanged(t *testing.T) {
	h := newHarness(t, Options{})
	doc := editor.Document{URI: h.uri, Path: h.path}

	res, err := h.orch.ActiveDocumentChanged(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, res, "nothing cached and auto scan is off")

	_, err = h.store.SetLivecheckHistory(h.path, response("a").Issues, time.Now())
	require.NoError(t, err)
	res, err = h.orch.ActiveDocumentChanged(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Diagnostics, 1)
}

func TestActiveDocumentChanged_AutoScan(t *testing.T) {
	h := newHarness(t, Options{AutoScanOnOpen: true})
	out := make(chan scanReturn, 1)
	go func() {
		res, err := h.orch.ActiveDocumentChanged(context.Background(), editor.Document{URI: h.uri, Path: h.path})
		out <- scanReturn{res, err}
	}()
	h.service.next(t).release <- analyzeReply{resp: response("a")}
	r := wait(t, out)
	require.NoError(t, r.err)
	assert.Equal(t, Completed, r.res.Outcome)
}

func TestClearHistory(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.store.SetLivecheckHistory(h.path, response("a").Issues, time.Now())
	require.NoError(t, err)
	_, err = h.orch.Restore(context.Background())
	require.NoError(t, err)

	n, err := h.orch.ClearHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := h.surface.Published(h.uri)
	assert.False(t, ok)
	entries, err := h.store.GetLivecheckHistory()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOnlyBlockersOverride(t *testing.T) {
	h := newHarness(t, Options{})
	list := []issues.Issue{
		{ID: "blocker", Severity: issues.SeverityLow, QualityGateBreaker: true},
		{ID: "plain", Severity: issues.SeverityLow},
	}
	_, err := h.store.SetLivecheckHistory(h.path, list, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.SetUserData(KeyOnlyBlockers, true))

	diags, err := h.orch.Refresh(context.Background(), h.path)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "blocker", diags[0].IssueKey)
}

func TestSetOnlyBlockers_Republishes(t *testing.T) {
	h := newHarness(t, Options{})
	t.Cleanup(h.orch.Close)
	list := []issues.Issue{
		{ID: "blocker", Severity: issues.SeverityLow, QualityGateBreaker: true},
		{ID: "plain", Severity: issues.SeverityLow},
	}
	_, err := h.store.SetLivecheckHistory(h.path, list, time.Now())
	require.NoError(t, err)

	on := true
	require.NoError(t, h.orch.SetOnlyBlockers(&on))
	diags, ok := h.surface.Published(h.uri)
	require.True(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, "blocker", diags[0].IssueKey)

	require.NoError(t, h.orch.SetOnlyBlockers(nil))
	diags, _ = h.surface.Published(h.uri)
	assert.Len(t, diags, 2)

	h.orch.Close()
	require.NoError(t, h.orch.SetOnlyBlockers(&on))
	diags, _ = h.surface.Published(h.uri)
	assert.Len(t, diags, 2, "no republish after Close")
}
