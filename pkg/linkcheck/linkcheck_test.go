package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coolbeans/normtree/pkg/text"
)

func TestCollect(t *testing.T) {
	table := &text.Table{Rows: []text.Row{
		{Cells: []text.Cell{{Content: text.EnrichedString{Text: "voir", Links: []text.Link{{Target: "https://b.example/cell", Position: 0, Length: 4}}}, Colspan: 1, Rowspan: 1}}},
	}}
	tree := &text.StructuredText{
		Title: text.NewString("Arrêté"),
		Sections: []*text.StructuredText{
			{
				Title: text.EnrichedString{Text: "Article 1", Links: []text.Link{{Target: "https://a.example/title", Position: 0, Length: 7}}},
				OuterAlineas: []text.EnrichedString{
					{Text: "Voir annexe.", Links: []text.Link{{Target: "https://a.example/annexe", Position: 5, Length: 6}}},
					text.NewTableString(table),
				},
			},
		},
	}

	links := Collect(tree)
	expected := []LinkInput{
		{URI: "https://a.example/title", Source: "Arrêté > Article 1"},
		{URI: "https://a.example/annexe", Source: "Arrêté > Article 1, alinea 1"},
		{URI: "https://b.example/cell", Source: "Arrêté > Article 1, alinea 2, row 1 cell 1"},
	}
	if len(links) != len(expected) {
		t.Fatalf("Expected %d links, got %d: %+v", len(expected), len(links), links)
	}
	for i := range expected {
		if links[i] != expected[i] {
			t.Errorf("Link %d: expected %+v, got %+v", i, expected[i], links[i])
		}
	}

	if Collect(nil) != nil {
		t.Error("Expected no links for a nil tree")
	}
}

func TestCollectUntitledRoot(t *testing.T) {
	tree := &text.StructuredText{OuterAlineas: []text.EnrichedString{
		{Text: "x", Links: []text.Link{{Target: "https://a.example/", Position: 0, Length: 1}}},
	}}
	links := Collect(tree)
	if len(links) != 1 || links[0].Source != "alinea 1" {
		t.Errorf("Expected source %q, got %+v", "alinea 1", links)
	}
}

func newTestServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/get-only":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig() Config {
	return Config{Concurrency: 2, Timeout: 2 * time.Second, UserAgent: "test"}
}

func TestCheck(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests)

	links := []LinkInput{
		{URI: server.URL + "/ok", Source: "A"},
		{URI: server.URL + "/missing", Source: "B"},
		{URI: server.URL + "/get-only", Source: "C"},
		{URI: server.URL + "/moved", Source: "D"},
		{URI: "#annexe-1", Source: "E"},
		{URI: "mailto:contact@example.org", Source: "F"},
		{URI: "annexe.html", Source: "G"},
	}

	report := NewChecker(testConfig(), nil).Check(context.Background(), links)

	if report.Total != 7 {
		t.Errorf("Expected 7 results, got %d", report.Total)
	}
	if report.Valid != 3 {
		t.Errorf("Expected 3 valid links, got %d", report.Valid)
	}
	if report.Invalid != 1 {
		t.Errorf("Expected 1 invalid link, got %d", report.Invalid)
	}
	if report.Skipped != 3 {
		t.Errorf("Expected 3 skipped links, got %d", report.Skipped)
	}
	if report.OK() {
		t.Error("Expected report with a broken link")
	}
	if len(report.Broken) != 1 || report.Broken[0].StatusCode != http.StatusNotFound || report.Broken[0].Source != "B" {
		t.Errorf("Unexpected broken links: %+v", report.Broken)
	}
}

func TestCheckDeduplicatesURIs(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests)

	links := []LinkInput{
		{URI: server.URL + "/ok", Source: "first"},
		{URI: server.URL + "/ok", Source: "second"},
		{URI: server.URL + "/ok", Source: "third"},
	}
	report := NewChecker(testConfig(), nil).Check(context.Background(), links)

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
	if report.Valid != 3 {
		t.Errorf("Expected 3 valid results, got %d", report.Valid)
	}
	sources := make(map[string]bool)
	for _, r := range report.Results {
		sources[r.Source] = true
	}
	if len(sources) != 3 {
		t.Errorf("Expected each result to keep its source, got %v", sources)
	}
}

func TestCheckTimeout(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests)

	config := testConfig()
	config.Timeout = 50 * time.Millisecond
	config.MaxRetries = 1
	report := NewChecker(config, nil).Check(context.Background(), []LinkInput{{URI: server.URL + "/slow"}})

	if report.Timeout != 1 {
		t.Fatalf("Expected a timeout, got %+v", report.Results[0])
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

func TestCheckHostInterval(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests)

	config := testConfig()
	config.HostInterval = 100 * time.Millisecond
	links := []LinkInput{
		{URI: server.URL + "/ok?a"},
		{URI: server.URL + "/ok?b"},
		{URI: server.URL + "/ok?c"},
	}

	start := time.Now()
	NewChecker(config, nil).Check(context.Background(), links)
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Expected requests to one host to be spaced, took %v", elapsed)
	}
}

func TestCheckCancelled(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := NewChecker(testConfig(), nil).Check(ctx, []LinkInput{{URI: server.URL + "/ok"}})

	if report.Errors != 1 || report.Results[0].Error != "cancelled" {
		t.Errorf("Expected a cancelled result, got %+v", report.Results[0])
	}
	if got := atomic.LoadInt32(&requests); got != 0 {
		t.Errorf("Expected no request, got %d", got)
	}
}

func TestCheckEmpty(t *testing.T) {
	report := NewChecker(testConfig(), nil).Check(context.Background(), nil)
	if report.Total != 0 || !report.OK() {
		t.Errorf("Expected an empty passing report, got %+v", report)
	}
}

func TestReportRendering(t *testing.T) {
	report := newReport()
	report.add(&LinkResult{URI: "https://b.example/x", Status: StatusValid, StatusCode: 200})
	report.add(&LinkResult{URI: "https://a.example/y|z", Source: "Arrêté > Article 2", Status: StatusInvalid, StatusCode: 404})
	report.add(&LinkResult{URI: "https://a.example/t", Status: StatusTimeout, Error: "request timed out"})
	report.finalize()

	if report.Broken[0].URI != "https://a.example/t" {
		t.Errorf("Expected broken links sorted by URI, got %s first", report.Broken[0].URI)
	}

	md := report.Markdown()
	for _, want := range []string{
		"# Link Check Report",
		"- **Broken**: 2",
		"| https://a.example/y\\|z | invalid | HTTP 404 | Arrêté > Article 2 |",
		"| https://a.example/t | timeout | request timed out | - |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected Markdown to contain %q, got:\n%s", want, md)
		}
	}

	summary := report.String()
	if !strings.Contains(summary, "Broken links (2):") || !strings.Contains(summary, "Timeout:  1") {
		t.Errorf("Unexpected summary:\n%s", summary)
	}
}
