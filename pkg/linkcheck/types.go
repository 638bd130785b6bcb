// Package linkcheck checks the hyperlinks of structured texts over HTTP,
// with per-host pacing and report generation.
package linkcheck

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// LinkStatus represents the outcome of checking a link.
type LinkStatus string

const (
	StatusValid   LinkStatus = "valid"
	StatusInvalid LinkStatus = "invalid"
	StatusTimeout LinkStatus = "timeout"
	StatusError   LinkStatus = "error"
	StatusSkipped LinkStatus = "skipped"
)

// LinkInput is a link target with the place it was found.
type LinkInput struct {
	URI    string `json:"uri"`
	Source string `json:"source,omitempty"` // e.g. "Arrêté > Article 2, alinea 1"
}

// LinkResult captures the outcome of checking a single link.
type LinkResult struct {
	URI          string     `json:"uri"`
	Source       string     `json:"source,omitempty"`
	Host         string     `json:"host"`
	Status       LinkStatus `json:"status"`
	StatusCode   int        `json:"status_code,omitempty"`
	Error        string     `json:"error,omitempty"`
	ResponseTime int64      `json:"response_time_ms"`
}

// Broken reports whether the link needs fixing.
func (r *LinkResult) Broken() bool {
	return r.Status == StatusInvalid || r.Status == StatusTimeout || r.Status == StatusError
}

func (r *LinkResult) reason() string {
	if r.Error != "" {
		return r.Error
	}
	if r.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d", r.StatusCode)
	}
	return string(r.Status)
}

// Report is the result of checking the links of a document.
type Report struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Timeout int `json:"timeout"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	Results []*LinkResult `json:"results"`
	Broken  []*LinkResult `json:"broken"`
}

func newReport() *Report {
	return &Report{
		StartedAt: time.Now(),
		Results:   make([]*LinkResult, 0),
		Broken:    make([]*LinkResult, 0),
	}
}

func (rep *Report) add(r *LinkResult) {
	rep.Results = append(rep.Results, r)
	rep.Total++
	switch r.Status {
	case StatusValid:
		rep.Valid++
	case StatusInvalid:
		rep.Invalid++
	case StatusTimeout:
		rep.Timeout++
	case StatusError:
		rep.Errors++
	case StatusSkipped:
		rep.Skipped++
	}
	if r.Broken() {
		rep.Broken = append(rep.Broken, r)
	}
}

func (rep *Report) finalize() {
	rep.DurationMs = time.Since(rep.StartedAt).Milliseconds()
	byURI := func(list []*LinkResult) func(i, j int) bool {
		return func(i, j int) bool {
			if list[i].URI != list[j].URI {
				return list[i].URI < list[j].URI
			}
			return list[i].Source < list[j].Source
		}
	}
	sort.SliceStable(rep.Results, byURI(rep.Results))
	sort.SliceStable(rep.Broken, byURI(rep.Broken))
}

// OK reports whether no link is broken.
func (rep *Report) OK() bool {
	return len(rep.Broken) == 0
}

// Markdown renders the report as a Markdown document.
func (rep *Report) Markdown() string {
	var markdownBuilder strings.Builder

	markdownBuilder.WriteString("# Link Check Report\n\n")
	fmt.Fprintf(&markdownBuilder, "- **Links**: %d\n", rep.Total)
	fmt.Fprintf(&markdownBuilder, "- **Valid**: %d\n", rep.Valid)
	fmt.Fprintf(&markdownBuilder, "- **Broken**: %d\n", len(rep.Broken))
	fmt.Fprintf(&markdownBuilder, "- **Skipped**: %d\n\n", rep.Skipped)

	if len(rep.Broken) > 0 {
		markdownBuilder.WriteString("## Broken Links\n\n")
		markdownBuilder.WriteString("| URI | Status | Reason | Location |\n")
		markdownBuilder.WriteString("|-----|--------|--------|----------|\n")
		for _, r := range rep.Broken {
			source := r.Source
			if source == "" {
				source = "-"
			}
			fmt.Fprintf(&markdownBuilder, "| %s | %s | %s | %s |\n",
				escapeCell(r.URI), r.Status, escapeCell(r.reason()), escapeCell(source))
		}
		markdownBuilder.WriteString("\n")
	}
	return markdownBuilder.String()
}

// String returns a plain-text summary of the report.
func (rep *Report) String() string {
	var summaryBuilder strings.Builder
	fmt.Fprintf(&summaryBuilder, "Links:    %d\n", rep.Total)
	fmt.Fprintf(&summaryBuilder, "Valid:    %d\n", rep.Valid)
	fmt.Fprintf(&summaryBuilder, "Invalid:  %d\n", rep.Invalid)
	fmt.Fprintf(&summaryBuilder, "Timeout:  %d\n", rep.Timeout)
	fmt.Fprintf(&summaryBuilder, "Error:    %d\n", rep.Errors)
	fmt.Fprintf(&summaryBuilder, "Skipped:  %d\n", rep.Skipped)

	if len(rep.Broken) > 0 {
		fmt.Fprintf(&summaryBuilder, "\nBroken links (%d):\n", len(rep.Broken))
		for _, r := range rep.Broken {
			fmt.Fprintf(&summaryBuilder, "  - %s: %s (%s)\n", r.URI, r.reason(), r.Source)
		}
	}
	return summaryBuilder.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// hostOf returns the host of an absolute http(s) URI, or "" for anything
// that cannot be checked over HTTP.
func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Host
}
