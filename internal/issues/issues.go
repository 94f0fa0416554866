// Package issues defines the issue model returned by the analysis service and
// the write-off records tracked alongside it.
package issues

import (
	"strings"
	"time"
)

// Severity is the service-reported severity. Unknown values are kept verbatim.
type Severity string

const (
	SeverityHigh    Severity = "High"
	SeverityMedium  Severity = "Medium"
	SeverityLow     Severity = "Low"
	SeverityWarning Severity = "Warning"
)

// Write-off snapshot statuses reported by the service.
const (
	WriteOffRequested = "REQUESTED"
	WriteOffApproved  = "APPROVED"
	WriteOffRejected  = "REJECTED"
	WriteOffExpired   = "EXPIRED"
)

// InformationalTag marks an issue as informational regardless of its type.
const InformationalTag = "informational"

// WriteOffEmbed is the write-off snapshot the service attaches to an issue.
type WriteOffEmbed struct {
	WriteOffStatus string     `json:"writeOffStatus" yaml:"writeOffStatus"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Reason         string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	Comment        string     `json:"comment,omitempty" yaml:"comment,omitempty"`
	ReviewedBy     string     `json:"reviewedBy,omitempty" yaml:"reviewedBy,omitempty"`
	RequestedAt    *time.Time `json:"requestedAt,omitempty" yaml:"requestedAt,omitempty"`
}

// Status returns the normalized snapshot status, or "" for a nil snapshot.
func (w *WriteOffEmbed) Status() string {
	if w == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(w.WriteOffStatus))
}

// Issue is a single finding for a file.
type Issue struct {
	ID                 string         `json:"id,omitempty" yaml:"id,omitempty"`
	UUID               string         `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	IssueType          string         `json:"issueType" yaml:"issueType"`
	Severity           Severity       `json:"severity" yaml:"severity"`
	LineNumber         int            `json:"lineNumber" yaml:"lineNumber"`
	ElementName        string         `json:"elementName,omitempty" yaml:"elementName,omitempty"`
	FileName           string         `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	Tags               []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	QualityGateBreaker bool           `json:"qualityGateBreaker" yaml:"qualityGateBreaker"`
	DocumentationURL   string         `json:"documentationURL,omitempty" yaml:"documentationURL,omitempty"`
	WriteOff           *WriteOffEmbed `json:"writeOff,omitempty" yaml:"writeOff,omitempty"`
}

// Key is the issue identity used for de-duplication and write-off tracking.
func (i Issue) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return i.UUID
}

// AboveRadar reports whether the severity crosses the threshold used when
// quality gates are not active.
func (i Issue) AboveRadar() bool {
	return strings.EqualFold(string(i.Severity), string(SeverityHigh))
}

// HasTag reports whether the issue carries tag (case-insensitive).
func (i Issue) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// WriteOffStatus is the locally tracked write-off intent for one issue key.
// It is never removed by history purges or full clears.
type WriteOffStatus struct {
	Status    string         `json:"status" yaml:"status"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// WriteOffPayload is the per-entry snapshot that drives the write-off UI.
type WriteOffPayload struct {
	FullDocument          string    `json:"fullDocument"`
	Developer             string    `json:"developer,omitempty"`
	IssuesList            []Issue   `json:"issuesList"`
	ReasonsList           []string  `json:"reasonsList"`
	DevWriteOffsRequested []string  `json:"devWriteOffsRequested"`
	FilePath              string    `json:"filePath"`
	CreatedAt             time.Time `json:"createdAt"`
}

// HistoryEntry is the single live scan result for a path.
type HistoryEntry struct {
	ID        int64     `json:"id" yaml:"id"`
	Path      string    `json:"path" yaml:"path"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Issues    []Issue   `json:"issues" yaml:"issues"`
}

// QualityGate is a server-side pass/fail policy result.
type QualityGate struct {
	Name      string  `json:"name" yaml:"name"`
	Status    string  `json:"status" yaml:"status"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Actual    float64 `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// GatesActive reports whether any quality gate is configured for the scan.
func GatesActive(gates []QualityGate) bool {
	return len(gates) > 0
}
