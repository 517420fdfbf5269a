// Package fetcher downloads pages over HTTP with per-host politeness
// pacing, bounded retries, and a response size cap. It is the only
// network-touching component shared by discovery and the contact crawler.
package fetcher

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/govcontacts/internal/normalize"
)

// Options configures the fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Delay is the minimum spacing between requests to the same host.
	Delay time.Duration
	// MaxBodyBytes caps how much of a response body is read. Zero means
	// the 1 MiB default.
	MaxBodyBytes int64
}

const defaultMaxBody = 1 << 20

// Fetcher issues GET requests with per-host pacing. Safe for concurrent
// use; the per-host limiter also serializes in-flight requests so a
// single site never sees more than one request from us at a time.
type Fetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	inflight map[string]*sync.Mutex
}

// New creates a Fetcher with the given options, filling in defaults.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; GovContactsBot/1.0)"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Get fetches a URL and returns the (capped) body. Non-2xx statuses and
// transport failures come back as errors; callers in batch loops treat
// them as per-item failures, not aborts.
func (f *Fetcher) Get(ctx context.Context, targetURL string) ([]byte, error) {
	host := normalize.Domain(targetURL)
	if host == "" {
		return nil, eris.Errorf("fetch: no host in url %q", targetURL)
	}

	hostMu := f.hostLock(host)
	hostMu.Lock()
	defer hostMu.Unlock()

	if err := f.limiter(host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate wait")
	}

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetch: cancelled during backoff")
			}
		}

		body, retryable, err := f.do(ctx, targetURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		zap.L().Debug("fetch: retrying",
			zap.String("url", targetURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, targetURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrapf(err, "fetch: %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, eris.Errorf("fetch: %s returned status %d", targetURL, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, false, eris.Errorf("fetch: %s returned status %d", targetURL, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return nil, false, eris.Errorf("fetch: %s has non-text content type %q", targetURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, true, eris.Wrapf(err, "fetch: read body of %s", targetURL)
	}
	return data, false, nil
}

// limiter returns the pacing limiter for a host, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(f.delay()), 1)
	f.limiters[host] = lim
	return lim
}

func (f *Fetcher) hostLock(host string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mu, ok := f.inflight[host]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	f.inflight[host] = mu
	return mu
}

func (f *Fetcher) delay() time.Duration {
	if f.opts.Delay <= 0 {
		return time.Millisecond // effectively unpaced, but never a zero interval
	}
	return f.opts.Delay
}
