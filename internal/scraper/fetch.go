package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/config"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"
	acceptLanguage = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"
	maxBodyBytes   = 16 << 20
)

// Page is a fetched source page. StatusCode is either 2xx or 404.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// NotFound reports whether the page is the terminal "nothing here" outcome.
func (p *Page) NotFound() bool {
	return p.StatusCode == http.StatusNotFound
}

// Fetcher retrieves the markup of a source page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// StatusError is returned when the server kept answering with a status that
// is neither success nor 404.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch URL %s: status code %d", e.URL, e.StatusCode)
}

// Throttled reports whether the status asks the client to slow down.
func (e *StatusError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// HTTPFetcher issues browser-like GET requests with bounded retries.
type HTTPFetcher struct {
	httpClient     *http.Client
	maxRetries     int
	backoff        util.Backoff
	allowedDomains []string
}

func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:     cfg.MaxRetries,
		backoff:        util.LinearBackoff(cfg.BackoffBase),
		allowedDomains: cfg.AllowedDomains,
	}
}

// Fetch returns the page at urlStr. 2xx and 404 responses are returned
// immediately. 429, 503, other statuses and transport errors are retried
// after BackoffBase*attempt, up to MaxRetries attempts; the last error is
// returned once they are exhausted.
func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	if err := f.checkURL(urlStr); err != nil {
		return nil, err
	}

	var page *Page
	err := util.RetryWithBackoff(ctx, f.maxRetries, f.backoff, func(attempt int) error {
		p, err := f.get(ctx, urlStr)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Throttled() {
				slog.Warn("Source throttled request, backing off", "url", urlStr, "status", statusErr.StatusCode, "attempt", attempt)
			} else if ctx.Err() == nil {
				slog.Warn("Fetch attempt failed", "url", urlStr, "attempt", attempt, "error", err)
			}
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *HTTPFetcher) checkURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("failed to parse URL %s: %w", urlStr, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q: only http and https allowed", parsedURL.Scheme)
	}

	if len(f.allowedDomains) == 0 || slices.Contains(f.allowedDomains, "*") {
		return nil
	}
	if !slices.Contains(f.allowedDomains, parsedURL.Hostname()) {
		return fmt.Errorf("security violation: URL hostname %s is not in allowlist", parsedURL.Hostname())
	}
	return nil
}

func (f *HTTPFetcher) get(ctx context.Context, urlStr string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to create request for URL %s: %w", urlStr, err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	ok := res.StatusCode >= 200 && res.StatusCode < 300
	if !ok && res.StatusCode != http.StatusNotFound {
		return nil, &StatusError{URL: urlStr, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", urlStr, err)
	}

	finalURL := urlStr
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL.String()
	}
	return &Page{URL: finalURL, StatusCode: res.StatusCode, Body: body}, nil
}
