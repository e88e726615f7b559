package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/meli-offers-bot/internal/config"
	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

type Scraper interface {
	Scrape(ctx context.Context, sourceURLs []string, maxItems int) ([]models.Offer, error)
}

type Client struct {
	fetcher         Fetcher
	selectors       SelectorConfig
	politenessDelay time.Duration
	defaultMaxItems int
	shuffle         func([]models.Offer)
}

func New(cfg *config.Config, fetcher Fetcher, selectors SelectorConfig) *Client {
	return &Client{
		fetcher:         fetcher,
		selectors:       selectors,
		politenessDelay: cfg.PolitenessDelay,
		defaultMaxItems: cfg.MaxItems,
		shuffle:         shuffleOffers,
	}
}

// NewFetcher picks the fetch strategy configured by FETCH_MODE.
func NewFetcher(cfg *config.Config) Fetcher {
	if cfg.FetchMode == config.FetchModeBrowser {
		return NewBrowserFetcher(cfg)
	}
	return NewHTTPFetcher(cfg)
}

func shuffleOffers(offers []models.Offer) {
	rand.Shuffle(len(offers), func(i, j int) {
		offers[i], offers[j] = offers[j], offers[i]
	})
}

// Scrape collects offers from every source URL in order, one page at a time,
// pausing between pages. Offers are deduplicated by permalink across the whole
// run (first one wins), then shuffled and truncated to maxItems.
//
// Failing source URLs are logged and skipped; a run where every URL fails
// returns an empty list. The only error returned is the context's, together
// with whatever was collected before it was cancelled.
func (c *Client) Scrape(ctx context.Context, sourceURLs []string, maxItems int) ([]models.Offer, error) {
	if maxItems <= 0 {
		maxItems = c.defaultMaxItems
	}

	var offers []models.Offer
	seen := make(map[string]struct{})
	var runErr error

	for i, rawURL := range sourceURLs {
		if i > 0 {
			if err := sleep(ctx, c.politenessDelay); err != nil {
				runErr = err
				break
			}
		}

		pageOffers, err := c.scrapePage(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			slog.Warn("Failed to scrape source URL", "url", rawURL, "error", err)
			continue
		}

		added := 0
		for _, offer := range pageOffers {
			if _, dup := seen[offer.Permalink]; dup {
				continue
			}
			seen[offer.Permalink] = struct{}{}
			offers = append(offers, offer)
			added++
		}
		slog.Info("Scraped source URL", "url", rawURL, "found", len(pageOffers), "new", added, "total", len(offers))
	}

	if runErr != nil {
		slog.Warn("Scrape interrupted", "error", runErr, "collected", len(offers))
	}

	c.shuffle(offers)
	if len(offers) > maxItems {
		offers = offers[:maxItems]
	}
	return offers, runErr
}

func (c *Client) scrapePage(ctx context.Context, rawURL string) ([]models.Offer, error) {
	target := util.StripFragment(rawURL)
	page, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if page.NotFound() {
		slog.Info("Source URL not found, skipping", "url", target)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", target, err)
	}

	baseURL := page.URL
	if baseURL == "" {
		baseURL = target
	}

	offers := ExtractFromDOM(doc, baseURL, c.selectors)
	if len(offers) > 0 {
		return offers, nil
	}

	offers = ExtractFromState(page.Body, baseURL, c.selectors)
	slog.Info("No offer cards on page, used embedded state", "url", target, "found", len(offers))
	return offers, nil
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
