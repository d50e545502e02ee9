// Package cli provides output formatting for the agilerag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/metadata"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", models.NewValidationError("format", fmt.Sprintf("unknown output format %q (want text or json)", s))
	}
}

const sourcePreviewRunes = 200

// WriteAnswer writes answer to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(answer.Answer))
	switch {
	case answer.Degraded:
		fmt.Fprintln(w, "\n(generation failed; answer is degraded)")
	case answer.UsedSearch:
		fmt.Fprintln(w, "\n(answered from web search results)")
	}
	if len(answer.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range answer.Citations {
			fmt.Fprintf(w, "[%d]\n%s\n", i+1, metadata.FormatCitation(c))
		}
	}
	for i, s := range answer.Sources {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d | Score: %.4f\n", i+1, s.Score)
		fmt.Fprintf(w, "%s\n", utils.Truncate(s.Content, sourcePreviewRunes))
	}
	fmt.Fprintln(w)
	return nil
}

type ingestSummary struct {
	Files     int            `json:"files"`
	Succeeded int            `json:"succeeded"`
	Units     int            `json:"units"`
	Chunks    indexer.Stats  `json:"chunks"`
	Failed    []failedIngest `json:"failed,omitempty"`
}

type failedIngest struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// WriteIngestReport summarizes a directory ingest: totals, then each failed file with its error.
func WriteIngestReport(w io.Writer, report *models.BatchReport, format OutputFormat) error {
	sum := ingestSummary{
		Files:     len(report.Items),
		Succeeded: len(report.Succeeded()),
		Units:     len(report.Units()),
		Chunks:    indexer.ComputeStats(report.Units()),
	}
	for _, it := range report.Failed() {
		sum.Failed = append(sum.Failed, failedIngest{Path: it.Path, Error: it.Err.Error()})
	}
	if format == OutputJSON {
		return WriteJSON(w, sum)
	}
	fmt.Fprintf(w, "Ingested %d of %d files (%d units)\n", sum.Succeeded, sum.Files, sum.Units)
	if sum.Chunks.Count > 0 {
		fmt.Fprintf(w, "Chunk size: avg %.0f, min %d, max %d chars\n",
			sum.Chunks.AvgChars, sum.Chunks.MinChars, sum.Chunks.MaxChars)
	}
	for _, f := range sum.Failed {
		fmt.Fprintf(w, "  failed: %s: %s\n", f.Path, f.Error)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
