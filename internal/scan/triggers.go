package scan

import (
	"context"

	"livecheck/internal/diagnostics"
	"livecheck/internal/editor"
	"livecheck/internal/issues"
	"livecheck/internal/paths"
)

// User data keys owned by the scan pipeline.
const (
	KeyWriteOffReasons    = "writeOffReasons"
	KeyLicenseInfo        = "licenseInfo"
	KeyQualityGatesActive = "qualityGatesActive"
	// KeyOnlyBlockers overrides the configured onlyBlockers flag when set.
	KeyOnlyBlockers = "onlyBlockers"
)

// publish reconciles list for uri and replaces its diagnostics.
func (o *Orchestrator) publish(uri string, list []issues.Issue, gatesActive bool) []editor.Diagnostic {
	statuses, err := o.store.GetWriteOffStatusMap()
	if err != nil {
		o.logger.Warn("Failed to read write-off status", "error", err.Error())
		statuses = map[string]issues.WriteOffStatus{}
	}

	diags := diagnostics.Reconcile(list, statuses, diagnostics.Options{
		URI:                uri,
		OnlyBlockers:       o.onlyBlockers(),
		QualityGatesActive: gatesActive,
		InformationalTypes: o.opts.InformationalTypes,
	})
	o.publisher.Publish(uri, diags)
	return diags
}

func (o *Orchestrator) onlyBlockers() bool {
	flag := o.opts.OnlyBlockers
	if ok, err := o.store.GetUserData(KeyOnlyBlockers, &flag); err != nil || !ok {
		return o.opts.OnlyBlockers
	}
	return flag
}

func (o *Orchestrator) gatesActive() bool {
	var active bool
	_, _ = o.store.GetUserData(KeyQualityGatesActive, &active)
	return active
}

func (o *Orchestrator) cachedReasons() []string {
	reasons := []string{}
	if ok, _ := o.store.GetUserData(KeyWriteOffReasons, &reasons); !ok || reasons == nil {
		return []string{}
	}
	return reasons
}

// refreshSideData updates write-off reasons and license info. Failures are
// logged only.
func (o *Orchestrator) refreshSideData(ctx context.Context) {
	if reasons, err := o.service.WriteOffReasons(ctx); err != nil {
		o.logger.Warn("Failed to refresh write-off reasons", "error", err.Error())
	} else if err := o.store.SetUserData(KeyWriteOffReasons, reasons); err != nil {
		o.logger.Warn("Failed to store write-off reasons", "error", err.Error())
	}

	if license, err := o.service.LicenseInfo(ctx); err != nil {
		o.logger.Warn("Failed to refresh license info", "error", err.Error())
	} else if err := o.store.SetUserData(KeyLicenseInfo, license); err != nil {
		o.logger.Warn("Failed to store license info", "error", err.Error())
	}
}

// Restore republishes every cached entry, typically at startup, and returns
// how many documents were published.
func (o *Orchestrator) Restore(ctx context.Context) (int, error) {
	entries, err := o.store.GetLivecheckHistory()
	if err != nil {
		return 0, o.fail(err)
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	gates := o.gatesActive()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		o.publish(paths.FileURI(e.Path), e.Issues, gates)
	}
	o.logger.Info("Restored cached diagnostics", "documents", len(entries))
	return len(entries), nil
}

// SetOnlyBlockers stores the only-blockers override, or removes it when
// flag is nil. Cached diagnostics are republished under the new filter.
func (o *Orchestrator) SetOnlyBlockers(flag *bool) error {
	if flag == nil {
		return o.store.DeleteUserData(KeyOnlyBlockers)
	}
	return o.store.SetUserData(KeyOnlyBlockers, *flag)
}

// ActiveDocumentChanged republishes the cached entry for doc or, when
// autoScanOnOpen is set and nothing is cached, scans it.
func (o *Orchestrator) ActiveDocumentChanged(ctx context.Context, doc editor.Document) (*Result, error) {
	path, err := paths.CanonicalizePath(doc.Path)
	if err != nil {
		return nil, o.fail(err)
	}
	entry, err := o.store.GetHistoryForPath(path)
	if err != nil {
		return nil, o.fail(err)
	}
	if entry == nil {
		if o.opts.AutoScanOnOpen {
			return o.Scan(ctx, path)
		}
		return nil, nil
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	diags := o.publish(docURI(doc, path), entry.Issues, o.gatesActive())
	return &Result{
		Path:        path,
		Outcome:     Completed,
		HistoryID:   entry.ID,
		Issues:      len(entry.Issues),
		Diagnostics: diags,
	}, nil
}

// Refresh re-reconciles the cached entry for path, for example after a local
// write-off change. Without a cached entry the document is cleared.
func (o *Orchestrator) Refresh(ctx context.Context, path string) ([]editor.Diagnostic, error) {
	canonical, err := paths.CanonicalizePath(path)
	if err != nil {
		return nil, o.fail(err)
	}
	entry, err := o.store.GetHistoryForPath(canonical)
	if err != nil {
		return nil, o.fail(err)
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	uri := paths.FileURI(canonical)
	if entry == nil {
		o.publisher.Clear(uri)
		return nil, nil
	}
	return o.publish(uri, entry.Issues, o.gatesActive()), nil
}

// ClearHistory drops all cached scan results and their diagnostics. Local
// write-off status and settings are kept.
func (o *Orchestrator) ClearHistory(ctx context.Context) (int, error) {
	entries, err := o.store.GetLivecheckHistory()
	if err != nil {
		return 0, o.fail(err)
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if err := o.store.DeleteAllData(); err != nil {
		return 0, o.fail(err)
	}
	for _, e := range entries {
		o.publisher.Clear(paths.FileURI(e.Path))
	}
	return len(entries), nil
}

// Purge removes entries older than days (the configured retention when
// days is negative) and clears their diagnostics.
func (o *Orchestrator) Purge(ctx context.Context, days int) (int, error) {
	if days < 0 {
		days = o.opts.RetentionDays
	}
	before, err := o.store.GetLivecheckHistory()
	if err != nil {
		return 0, o.fail(err)
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	purged, err := o.store.DeleteIssuesOlderThan(days)
	if err != nil {
		return 0, o.fail(err)
	}
	for _, e := range before {
		if live, _ := o.store.GetHistoryForPath(e.Path); live == nil {
			o.publisher.Clear(paths.FileURI(e.Path))
		}
	}
	return purged, nil
}

func docURI(doc editor.Document, path string) string {
	if doc.URI != "" {
		return doc.URI
	}
	return paths.FileURI(path)
}
