// Package diagnostics turns an issue list plus local write-off state into
// the ordered diagnostic set shown in the editor.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"livecheck/internal/editor"
	"livecheck/internal/issues"
)

// Source labels every diagnostic produced here.
const Source = "livecheck"

const dateLayout = "2006-01-02"

// Options controls filtering and level mapping.
type Options struct {
	// URI is the document the issues belong to, used for related information.
	URI                string
	OnlyBlockers       bool
	QualityGatesActive bool
	InformationalTypes []string
}

// Reconcile builds the diagnostics for one document.
func Reconcile(list []issues.Issue, statuses map[string]issues.WriteOffStatus, opts Options) []editor.Diagnostic {
	informational := make(map[string]struct{}, len(opts.InformationalTypes))
	for _, t := range opts.InformationalTypes {
		informational[strings.ToLower(t)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(list))
	diags := make([]editor.Diagnostic, 0, len(list))
	for _, issue := range list {
		if issue.WriteOff.Status() == issues.WriteOffApproved {
			continue
		}
		if opts.OnlyBlockers && !issue.QualityGateBreaker {
			continue
		}
		if key := issue.Key(); key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		d := editor.Diagnostic{
			Line:     issue.LineNumber,
			Level:    level(issue, opts.QualityGatesActive, informational),
			Message:  message(issue),
			Source:   Source,
			Code:     issue.IssueType,
			CodeURL:  issue.DocumentationURL,
			IssueKey: issue.Key(),
		}
		if text, ok := relatedText(issue, statuses); ok {
			d.Related = []editor.RelatedInfo{{URI: opts.URI, Line: issue.LineNumber, Message: text}}
		}
		diags = append(diags, d)
	}

	Sort(diags)
	return diags
}

// Sort orders by level (most severe first), then line descending.
func Sort(diags []editor.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Level != diags[j].Level {
			return diags[i].Level < diags[j].Level
		}
		return diags[i].Line > diags[j].Line
	})
}

func level(issue issues.Issue, gatesActive bool, informational map[string]struct{}) editor.Level {
	if gatesActive && issue.QualityGateBreaker {
		return editor.LevelError
	}
	if !gatesActive && issue.AboveRadar() {
		return editor.LevelError
	}
	if _, ok := informational[strings.ToLower(issue.IssueType)]; ok {
		return editor.LevelInformation
	}
	if issue.HasTag(issues.InformationalTag) {
		return editor.LevelInformation
	}
	return editor.LevelWarning
}

func message(issue issues.Issue) string {
	var b strings.Builder
	b.WriteString(issue.IssueType)
	if issue.Severity != "" {
		fmt.Fprintf(&b, " (%s)", issue.Severity)
	}
	if issue.ElementName != "" {
		fmt.Fprintf(&b, " in %s", issue.ElementName)
	}
	if issue.QualityGateBreaker {
		b.WriteString(" [quality gate blocker]")
	}
	return b.String()
}

// relatedText returns the single related-information line for an issue.
// The service snapshot wins over the local status.
func relatedText(issue issues.Issue, statuses map[string]issues.WriteOffStatus) (string, bool) {
	if w := issue.WriteOff; w != nil && w.Status() != "" {
		return snapshotText(w), true
	}
	if local, ok := statuses[issue.Key()]; ok && issue.Key() != "" {
		return localText(local), true
	}
	return "", false
}

func snapshotText(w *issues.WriteOffEmbed) string {
	switch w.Status() {
	case issues.WriteOffApproved:
		text := "Write-off approved"
		if w.ExpiresAt != nil {
			text += " until " + w.ExpiresAt.Format(dateLayout)
		}
		if w.ReviewedBy != "" {
			text += " by " + w.ReviewedBy
		}
		return text
	case issues.WriteOffExpired:
		if w.ExpiresAt != nil {
			return "Write-off expired on " + w.ExpiresAt.Format(dateLayout)
		}
		return "Write-off expired"
	case issues.WriteOffRejected:
		text := "Write-off rejected"
		if w.ReviewedBy != "" {
			text += " by " + w.ReviewedBy
		}
		if w.Comment != "" {
			text += ": " + w.Comment
		}
		return text
	case issues.WriteOffRequested:
		text := "Write-off requested"
		if w.Reason != "" {
			text += ": " + w.Reason
		}
		return text + " (awaiting review)"
	default:
		return "Write-off status: " + w.Status()
	}
}

func localText(s issues.WriteOffStatus) string {
	status := strings.ToUpper(s.Status)
	if status == issues.WriteOffRequested {
		text := "Write-off requested"
		if !s.UpdatedAt.IsZero() {
			text += " on " + s.UpdatedAt.Format(dateLayout)
		}
		if reason, ok := s.Metadata["reason"].(string); ok && reason != "" {
			text += ": " + reason
		}
		return text + " (awaiting review)"
	}
	return "Local write-off status: " + status
}
