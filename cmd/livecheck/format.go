package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"livecheck/internal/issues"
	"livecheck/internal/scan"
	"livecheck/internal/writeoff"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatHuman OutputFormat = "human"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatHuman, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case []*scan.Result:
		return formatScanHuman(v), nil
	case []issues.HistoryEntry:
		return formatHistoryHuman(v), nil
	case []writeoff.Entry:
		return formatStatusesHuman(v), nil
	case *countResponse:
		return fmt.Sprintf("%s: %d", v.Action, v.Count), nil
	default:
		return formatYAML(resp)
	}
}

// formatScanHuman prints a one-line summary per scan. Diagnostics were
// already printed by the console.
func formatScanHuman(results []*scan.Result) string {
	var b strings.Builder
	for _, r := range results {
		switch r.Outcome {
		case scan.Completed:
			b.WriteString(fmt.Sprintf("%s: %d issues, %d diagnostics\n", r.Path, r.Issues, len(r.Diagnostics)))
		default:
			b.WriteString(fmt.Sprintf("%s: %s\n", r.Path, r.Outcome))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistoryHuman(entries []issues.HistoryEntry) string {
	if len(entries) == 0 {
		return "No cached results."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Cached results (%d)\n", len(entries)))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s\n", e.Path))
		b.WriteString(fmt.Sprintf("  Scanned: %s (%s ago)\n", e.Timestamp.Local().Format(time.DateTime), formatAge(time.Since(e.Timestamp))))
		b.WriteString(fmt.Sprintf("  Issues: %d\n", len(e.Issues)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatusesHuman(entries []writeoff.Entry) string {
	if len(entries) == 0 {
		return "No write-off requests recorded."
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s  %s  %s", e.IssueKey, e.Status, e.UpdatedAt.Local().Format(time.DateOnly)))
		if reason, ok := e.Metadata["reason"].(string); ok {
			b.WriteString("  " + reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// countResponse reports how many items a command affected.
type countResponse struct {
	Action string `json:"action" yaml:"action"`
	Count  int    `json:"count" yaml:"count"`
}

func printResponse(resp interface{}) error {
	format, err := parseFormat(formatFlag)
	if err != nil {
		return err
	}
	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(os.Stdout, out)
	}
	return nil
}
