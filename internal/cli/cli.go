// Package cli renders command results for the operator, either as coloured
// text or as JSON for scripts.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sammcj/deskchores/internal/paranoia"
	"github.com/sammcj/deskchores/internal/webcomic"
	"github.com/sammcj/deskchores/internal/xlsx"
)

// OutputFormat controls how results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json", in any case.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// FailuresError is returned once results are rendered if any item failed, so the
// command exits non-zero.
type FailuresError struct {
	Failed int
	Total  int
}

func (e *FailuresError) Error() string {
	return fmt.Sprintf("%d of %d failed", e.Failed, e.Total)
}

// Reporter writes results to out.
type Reporter struct {
	out    io.Writer
	format OutputFormat
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
}

// NewReporter creates a reporter in the given format.
func NewReporter(out io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		out:    out,
		format: format,
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
	}
}

// Noticef prints an informational line in text mode.
func (r *Reporter) Noticef(format string, args ...any) {
	if r.format == OutputJSON {
		return
	}
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Processed implements paranoia.Observer.
func (r *Reporter) Processed(outcome *paranoia.Outcome) {
	if r.format == OutputJSON {
		return
	}
	if outcome.MarkerMissing {
		_, _ = r.warn.Fprintf(r.out, "%s did not carry the marker, keeping its name\n", outcome.Source)
	}
	_, _ = r.ok.Fprintf(r.out, "%s %s -> %s\n", verb(outcome.To()), outcome.Source, outcome.Output)
}

// Skipped implements paranoia.Observer.
func (r *Reporter) Skipped(path string, err error) {
	if r.format == OutputJSON {
		return
	}
	_, _ = r.warn.Fprintf(r.out, "Skipped %s: %v\n", path, err)
}

// Failed implements paranoia.Observer.
func (r *Reporter) Failed(path string, err error) {
	if r.format == OutputJSON {
		return
	}
	_, _ = r.fail.Fprintf(r.out, "Failed %s: %v\n", path, err)
}

// ParanoiaSummary renders the totals of a batch.
func (r *Reporter) ParanoiaSummary(s *paranoia.Summary) error {
	if r.format == OutputJSON {
		if err := writeJSON(r.out, s); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(r.out, "\nLocked %d, unlocked %d, skipped %d, failed %d.\n",
			s.Locked, s.Unlocked, s.Skipped, s.Failed)
		if s.Stopped {
			_, _ = r.warn.Fprintln(r.out, "Stopped before all files were processed.")
		}
	}

	if s.Failed > 0 {
		return &FailuresError{Failed: s.Failed, Total: s.Locked + s.Unlocked + s.Skipped + s.Failed}
	}
	return nil
}

// Workbooks renders the result of converting workbooks.
func (r *Reporter) Workbooks(results []xlsx.Result) error {
	type jsonEntry struct {
		Workbook string   `json:"workbook"`
		Files    []string `json:"files,omitempty"`
		Error    string   `json:"error,omitempty"`
	}

	failed := 0
	entries := make([]jsonEntry, 0, len(results))
	for _, res := range results {
		entry := jsonEntry{Workbook: res.Workbook, Files: res.Files}
		if res.Err != nil {
			failed++
			entry.Error = res.Err.Error()
		}
		entries = append(entries, entry)

		if r.format == OutputJSON {
			continue
		}
		if res.Err != nil {
			_, _ = r.fail.Fprintf(r.out, "Failed %s: %v\n", res.Workbook, res.Err)
			continue
		}
		for _, f := range res.Files {
			_, _ = r.ok.Fprintf(r.out, "Wrote %s\n", f)
		}
	}

	if r.format == OutputJSON {
		if err := writeJSON(r.out, entries); err != nil {
			return err
		}
	} else if len(results) == 0 {
		fmt.Fprintln(r.out, "No workbooks found.")
	}

	if failed > 0 {
		return &FailuresError{Failed: failed, Total: len(results)}
	}
	return nil
}

// Comics renders the result of polling webcomics.
func (r *Reporter) Comics(results []webcomic.Result) error {
	type jsonEntry struct {
		Page   string `json:"page"`
		Status string `json:"status,omitempty"`
		Image  string `json:"image,omitempty"`
		Path   string `json:"path,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	failed := 0
	entries := make([]jsonEntry, 0, len(results))
	for _, res := range results {
		entry := jsonEntry{Page: res.Page, Status: string(res.Status), Image: res.Image, Path: res.Path}
		if res.Err != nil {
			failed++
			entry.Error = res.Err.Error()
		}
		entries = append(entries, entry)

		if r.format == OutputJSON {
			continue
		}
		switch {
		case res.Err != nil:
			_, _ = r.fail.Fprintf(r.out, "%s: %v\n", res.Page, res.Err)
		case res.Status == webcomic.StatusDownloaded:
			_, _ = r.ok.Fprintf(r.out, "%s: downloaded %s\n", res.Page, res.Path)
		case res.Status == webcomic.StatusNoImage:
			_, _ = r.warn.Fprintf(r.out, "%s: could not find comic image\n", res.Page)
		default:
			fmt.Fprintf(r.out, "%s: no new updates\n", res.Page)
		}
	}

	if r.format == OutputJSON {
		if err := writeJSON(r.out, entries); err != nil {
			return err
		}
	}

	if failed > 0 {
		return &FailuresError{Failed: failed, Total: len(results)}
	}
	return nil
}

func verb(to paranoia.State) string {
	if to == paranoia.Locked {
		return "Locked"
	}
	return "Unlocked"
}

// --- helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
