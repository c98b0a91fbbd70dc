package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aozorabiz/kaisha-intel/internal/config"
	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/internal/scrape"
)

// maxPDFBytes caps disclosure PDF downloads. Securities reports run a few MB;
// anything past this is a scan dump not worth feeding to the LLM.
const maxPDFBytes = 20 << 20

// maxPageBytes caps HTML page reads.
const maxPageBytes = 5 << 20

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements PageFetcher using net/http with per-host rate
// limiting. Arbitrary company sites get a default limiter lazily; the finance
// portals we lean on hardest get adaptive limiters that back off on 429.
type HTTPFetcher struct {
	client *http.Client
	cfg    config.FetchConfig

	mu               sync.Mutex
	limiters         map[string]*rate.Limiter
	adaptiveLimiters map[string]*AdaptiveLimiter
}

// DefaultAdaptiveLimiters returns adaptive limiters for the aggregator hosts
// that actively rate-limit crawlers.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"irbank.net":          NewAdaptiveLimiter(2, 2),
		"kabutan.jp":          NewAdaptiveLimiter(2, 2),
		"finance.yahoo.co.jp": NewAdaptiveLimiter(2, 2),
		"www.kabutan.jp":      NewAdaptiveLimiter(2, 2),
	}
}

// NewHTTPFetcher creates an HTTPFetcher from the fetch config.
func NewHTTPFetcher(cfg config.FetchConfig) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kaisha-intel/1.0"
	}
	if cfg.HomeTimeoutSecs == 0 {
		cfg.HomeTimeoutSecs = 15
	}
	if cfg.PageTimeoutSecs == 0 {
		cfg.PageTimeoutSecs = 12
	}
	if cfg.PDFTimeoutSecs == 0 {
		cfg.PDFTimeoutSecs = 25
	}
	if cfg.HomepageAttempts == 0 {
		cfg.HomepageAttempts = 3
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		// Per-call timeouts come from the request context, not the client.
		client:           &http.Client{Transport: transport},
		cfg:              cfg,
		limiters:         make(map[string]*rate.Limiter),
		adaptiveLimiters: DefaultAdaptiveLimiters(),
	}
}

func (f *HTTPFetcher) waitForHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "fetcher: invalid url %q", rawURL)
	}
	if adaptive, ok := f.adaptiveLimiters[u.Host]; ok {
		return adaptive.Wait(ctx)
	}
	f.mu.Lock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(5, 5)
		f.limiters[u.Host] = lim
	}
	f.mu.Unlock()
	return lim.Wait(ctx)
}

func (f *HTTPFetcher) adaptiveFor(rawURL string) *AdaptiveLimiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.adaptiveLimiters[u.Host]
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		cancel()
		return nil, err
	}
	// The body outlives this call; tie cancel to body close.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.waitForHost(ctx, rawURL); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := f.client.Do(req)
	if adaptive := f.adaptiveFor(rawURL); adaptive != nil {
		switch {
		case err == nil && resp.StatusCode == http.StatusTooManyRequests:
			adaptive.OnRateLimit()
		case err == nil && resp.StatusCode < 400:
			adaptive.OnSuccess()
		}
	}
	return resp, err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// FetchHomepage fetches the company homepage, retrying transport failures up
// to the configured attempt count. The returned error, if any, is always a
// *FailureReason ready for user-facing display.
func (f *HTTPFetcher) FetchHomepage(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	timeout := time.Duration(f.cfg.HomeTimeoutSecs) * time.Second

	var lastReason *FailureReason
	for attempt := 1; attempt <= f.cfg.HomepageAttempts; attempt++ {
		resp, err := f.get(ctx, rawURL, timeout)
		if err != nil {
			lastReason = ClassifyError(err)
		} else if resp.StatusCode >= 400 {
			_ = resp.Body.Close()
			lastReason = ClassifyStatus(resp.StatusCode)
		} else {
			page := f.readPage(rawURL, resp)
			return page, nil
		}

		zap.L().Warn("homepage fetch failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.String("kind", string(lastReason.Kind)),
		)
		if !lastReason.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastReason
}

// FetchPage fetches a subpage best-effort. Any failure yields OK=false.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) *model.FetchedPage {
	timeout := time.Duration(f.cfg.PageTimeoutSecs) * time.Second
	resp, err := f.get(ctx, rawURL, timeout)
	if err != nil {
		zap.L().Debug("page fetch failed", zap.String("url", rawURL), zap.Error(err))
		return &model.FetchedPage{URL: rawURL}
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return &model.FetchedPage{URL: rawURL, Status: resp.StatusCode}
	}
	return f.readPage(rawURL, resp)
}

// FetchPDF downloads a PDF, rejecting anything that is not one.
func (f *HTTPFetcher) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	timeout := time.Duration(f.cfg.PDFTimeoutSecs) * time.Second
	resp, err := f.get(ctx, rawURL, timeout)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: fetch pdf %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetcher: pdf %s returned status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read pdf %s", rawURL)
	}
	if len(data) > maxPDFBytes {
		return nil, eris.Errorf("fetcher: pdf %s exceeds %d bytes", rawURL, maxPDFBytes)
	}
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		return nil, eris.Errorf("fetcher: %s is not a pdf", rawURL)
	}
	return data, nil
}

func (f *HTTPFetcher) readPage(rawURL string, resp *http.Response) *model.FetchedPage {
	defer resp.Body.Close() //nolint:errcheck

	page := &model.FetchedPage{
		URL:         rawURL,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if !strings.Contains(page.ContentType, "html") && page.ContentType != "" &&
		!strings.Contains(page.ContentType, "text/plain") {
		return page
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		zap.L().Debug("page body read failed", zap.String("url", rawURL), zap.Error(err))
		return page
	}
	page.OK = true
	page.HTML = string(raw)
	page.Title = scrape.ExtractTitle(page.HTML)
	page.Text = scrape.StripHTML(page.HTML)
	return page
}
