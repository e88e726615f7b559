package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pauljones0/meli-offers-bot/internal/config"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

// BrowserFetcher renders source pages in headless Chrome. It is used when the
// marketplace refuses plain HTTP clients.
type BrowserFetcher struct {
	allocOpts   []chromedp.ExecAllocatorOption
	maxRetries  int
	backoff     util.Backoff
	pageTimeout time.Duration
	http        *HTTPFetcher
}

func NewBrowserFetcher(cfg *config.Config) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1366, 900),
	)
	return &BrowserFetcher{
		allocOpts:   opts,
		maxRetries:  cfg.MaxRetries,
		backoff:     util.LinearBackoff(cfg.BackoffBase),
		pageTimeout: 45 * time.Second,
		http:        NewHTTPFetcher(cfg),
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	if err := b.http.checkURL(urlStr); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocOpts...)
	defer cancelAlloc()

	var page *Page
	err := util.RetryWithBackoff(ctx, b.maxRetries, b.backoff, func(attempt int) error {
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.pageTimeout)
		defer cancelTimeout()

		// The first document response belongs to the main frame; redirects
		// do not emit one.
		var status atomic.Int64
		chromedp.ListenTarget(tabCtx, func(ev any) {
			if res, ok := ev.(*network.EventResponseReceived); ok && res.Type == network.ResourceTypeDocument {
				status.CompareAndSwap(0, res.Response.Status)
			}
		})

		var html string
		if err := chromedp.Run(tabCtx,
			network.Enable(),
			chromedp.Navigate(urlStr),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		); err != nil {
			return err
		}

		p, err := renderedPage(urlStr, int(status.Load()), html)
		if err != nil {
			slog.Warn("Rendered page returned error status", "url", urlStr, "attempt", attempt, "error", err)
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", urlStr, err)
	}
	return page, nil
}

// renderedPage applies the HTTP fetcher's status rules to a rendered page.
// A zero status means no document response was observed and the render is
// taken as successful.
func renderedPage(urlStr string, status int, html string) (*Page, error) {
	if status == 0 {
		status = http.StatusOK
	}
	ok := status >= 200 && status < 300
	if !ok && status != http.StatusNotFound {
		return nil, &StatusError{URL: urlStr, StatusCode: status}
	}
	return &Page{URL: urlStr, StatusCode: status, Body: []byte(html)}, nil
}
