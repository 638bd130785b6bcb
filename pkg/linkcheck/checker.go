package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTPClient is an interface matching the Do method of *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the settings of a Checker.
type Config struct {
	// Concurrency is the number of hosts checked in parallel.
	Concurrency int
	// Timeout bounds each request.
	Timeout time.Duration
	// MaxRetries applies to timeouts and transport errors.
	MaxRetries int
	// HostInterval is the minimum delay between two requests to one host.
	HostInterval time.Duration
	UserAgent    string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		HostInterval: 500 * time.Millisecond,
		UserAgent:    "normtree-linkcheck/1.0",
	}
}

// Checker checks links over HTTP. Each distinct URI is requested once per
// Checker; later occurrences reuse the first result.
type Checker struct {
	config Config
	client HTTPClient
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*LinkResult
}

// NewChecker returns a Checker. A nil client uses an *http.Client that
// follows up to 10 redirects.
func NewChecker(config Config, client HTTPClient) *Checker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return &Checker{
		config: config,
		client: client,
		logger: slog.Default(),
		cache:  make(map[string]*LinkResult),
	}
}

// SetLogger sets the logger used for per-link debug output.
func (c *Checker) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Check checks links and returns the report. Links not yet checked when ctx
// is cancelled are reported as errors.
func (c *Checker) Check(ctx context.Context, links []LinkInput) *Report {
	report := newReport()
	results := make([]*LinkResult, len(links))

	byHost := make(map[string][]int)
	var hosts []string
	for i, link := range links {
		host := hostOf(link.URI)
		if host == "" {
			results[i] = &LinkResult{URI: link.URI, Source: link.Source, Status: StatusSkipped}
			continue
		}
		if _, seen := byHost[host]; !seen {
			hosts = append(hosts, host)
		}
		byHost[host] = append(byHost[host], i)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.config.Concurrency)
	for _, host := range hosts {
		wg.Add(1)
		go func(host string, indices []int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var last time.Time
			for _, i := range indices {
				link := links[i]
				if ctx.Err() != nil {
					results[i] = &LinkResult{URI: link.URI, Source: link.Source, Host: host, Status: StatusError, Error: "cancelled"}
					continue
				}
				if cached, ok := c.cached(link.URI); ok {
					results[i] = withSource(cached, link.Source)
					continue
				}
				if !last.IsZero() {
					if err := sleep(ctx, c.config.HostInterval-time.Since(last)); err != nil {
						results[i] = &LinkResult{URI: link.URI, Source: link.Source, Host: host, Status: StatusError, Error: "cancelled"}
						continue
					}
				}
				result := c.checkWithRetries(ctx, link.URI, host)
				last = time.Now()
				c.store(link.URI, result)
				results[i] = withSource(result, link.Source)
				c.logger.Debug("link checked", "uri", link.URI, "status", result.Status, "ms", result.ResponseTime)
			}
		}(host, byHost[host])
	}
	wg.Wait()

	for _, r := range results {
		report.add(r)
	}
	report.finalize()
	return report
}

func (c *Checker) cached(uri string) (*LinkResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.cache[uri]
	return r, ok
}

func (c *Checker) store(uri string, r *LinkResult) {
	c.mu.Lock()
	c.cache[uri] = r
	c.mu.Unlock()
}

func withSource(r *LinkResult, source string) *LinkResult {
	out := *r
	out.Source = source
	return &out
}

func (c *Checker) checkWithRetries(ctx context.Context, uri, host string) *LinkResult {
	var result *LinkResult
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			if err := sleep(ctx, backoff); err != nil {
				break
			}
		}
		result = c.checkOnce(ctx, uri, host)
		if result.Status == StatusValid || result.Status == StatusInvalid {
			break
		}
	}
	return result
}

// checkOnce sends HEAD, then GET when the server does not support HEAD.
func (c *Checker) checkOnce(ctx context.Context, uri, host string) *LinkResult {
	start := time.Now()
	result := &LinkResult{URI: uri, Host: host}

	code, err := c.request(ctx, http.MethodHead, uri)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = c.request(ctx, http.MethodGet, uri)
	}
	result.ResponseTime = time.Since(start).Milliseconds()

	switch {
	case isTimeout(err):
		result.Status = StatusTimeout
		result.Error = "request timed out"
	case err != nil:
		result.Status = StatusError
		result.Error = err.Error()
	case code >= 200 && code < 400:
		result.Status = StatusValid
		result.StatusCode = code
	default:
		result.Status = StatusInvalid
		result.StatusCode = code
	}
	return result
}

func (c *Checker) request(ctx context.Context, method, uri string) (int, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
