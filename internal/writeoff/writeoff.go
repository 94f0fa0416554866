// Package writeoff records developer write-off requests locally and forwards
// them to the analysis service.
package writeoff

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"livecheck/internal/editor"
	lcerrors "livecheck/internal/errors"
	"livecheck/internal/issues"
	"livecheck/internal/paths"
	"livecheck/internal/remote"
	"livecheck/internal/storage"
)

// Requester sends a write-off request upstream.
type Requester interface {
	RequestWriteOff(ctx context.Context, req remote.WriteOffRequest) (*issues.WriteOffEmbed, error)
}

// Refresher re-reconciles one file after a status change.
type Refresher interface {
	Refresh(ctx context.Context, path string) ([]editor.Diagnostic, error)
}

// Service manages local write-off status.
type Service struct {
	store     storage.Store
	requester Requester
	refresher Refresher
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a write-off service. refresher may be nil.
func New(store storage.Store, requester Requester, refresher Refresher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     store,
		requester: requester,
		refresher: refresher,
		now:       time.Now,
		logger:    logger,
	}
}

// Entry is one local status with its issue key.
type Entry struct {
	IssueKey  string         `json:"issueKey" yaml:"issueKey"`
	Status    string         `json:"status" yaml:"status"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Request asks for issueKey in path to be written off. The issue must be
// part of the cached scan result for path.
func (s *Service) Request(ctx context.Context, path, issueKey, reason, comment string) (*issues.WriteOffStatus, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, lcerrors.New(lcerrors.InvalidKey, "a write-off reason is required", nil)
	}
	canonical, err := paths.CanonicalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	issue, err := s.findIssue(canonical, issueKey)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.requester.RequestWriteOff(ctx, remote.WriteOffRequest{
		Issue:    *issue,
		FilePath: canonical,
		Reason:   reason,
		Comment:  comment,
	})
	if err != nil {
		return nil, fmt.Errorf("request write-off for %s: %w", issueKey, err)
	}

	metadata := map[string]any{
		"reason":   reason,
		"filePath": canonical,
	}
	if comment != "" {
		metadata["comment"] = comment
	}
	if st := snapshot.Status(); st != "" {
		metadata["serviceStatus"] = st
	}
	status := issues.WriteOffStatus{
		Status:    issues.WriteOffRequested,
		UpdatedAt: s.now(),
		Metadata:  metadata,
	}
	if err := s.store.SetWriteOffStatus(issue.Key(), status); err != nil {
		return nil, err
	}
	s.logger.Info("Write-off requested", "issue", issue.Key(), "path", canonical, "reason", reason)

	s.refresh(ctx, canonical)
	return &status, nil
}

// Withdraw removes the local status for issueKey and refreshes the file it
// was requested for, if known.
func (s *Service) Withdraw(ctx context.Context, issueKey string) error {
	statuses, err := s.store.GetWriteOffStatusMap()
	if err != nil {
		return err
	}
	st, ok := statuses[issueKey]
	if !ok {
		return lcerrors.New(lcerrors.InvalidKey, fmt.Sprintf("no write-off recorded for %s", issueKey), nil)
	}
	if err := s.store.DeleteWriteOffStatus(issueKey); err != nil {
		return err
	}
	s.logger.Info("Write-off withdrawn", "issue", issueKey)

	if path, ok := st.Metadata["filePath"].(string); ok && path != "" {
		s.refresh(ctx, path)
	}
	return nil
}

// Statuses lists every local status ordered by issue key.
func (s *Service) Statuses() ([]Entry, error) {
	statuses, err := s.store.GetWriteOffStatusMap()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(statuses))
	for key, st := range statuses {
		out = append(out, Entry{IssueKey: key, Status: st.Status, UpdatedAt: st.UpdatedAt, Metadata: st.Metadata})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueKey < out[j].IssueKey })
	return out, nil
}

func (s *Service) findIssue(path, key string) (*issues.Issue, error) {
	entry, err := s.store.GetHistoryForPath(path)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, lcerrors.New(lcerrors.InvalidKey, fmt.Sprintf("%s has not been scanned", path), nil)
	}
	for i := range entry.Issues {
		if entry.Issues[i].Key() == key {
			return &entry.Issues[i], nil
		}
	}
	return nil, lcerrors.New(lcerrors.InvalidKey, fmt.Sprintf("issue %s not found in %s", key, path), nil)
}

func (s *Service) refresh(ctx context.Context, path string) {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.Refresh(ctx, path); err != nil {
		s.logger.Warn("Failed to refresh diagnostics", "path", path, "error", err.Error())
	}
}
