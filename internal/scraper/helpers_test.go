package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pauljones0/meli-offers-bot/internal/config"
)

// polyCard renders a current-layout card.
func polyCard(id, href, title, fraction, cents, prevFraction string) string {
	var prev string
	if prevFraction != "" {
		prev = fmt.Sprintf(`<s class="andes-money-amount andes-money-amount--previous"><span class="andes-money-amount__fraction">%s</span></s>`, prevFraction)
	}
	var centsHTML string
	if cents != "" {
		centsHTML = fmt.Sprintf(`<span class="andes-money-amount__cents">%s</span>`, cents)
	}
	return fmt.Sprintf(`
<div class="poly-card" data-id="%s">
  <img data-src="https://http2.mlstatic.com/%s.webp" src="data:image/gif;base64,R0lGOD">
  <h3 class="poly-component__title-wrapper"><a class="poly-component__title" href="%s">%s</a></h3>
  <div class="poly-price__previous">%s</div>
  <div class="poly-price__current">
    <span class="andes-money-amount"><span class="andes-money-amount__currency-symbol">R$</span><span class="andes-money-amount__fraction">%s</span>%s</span>
  </div>
</div>`, id, id, href, title, prev, fraction, centsHTML)
}

func page(cards ...string) string {
	return "<!DOCTYPE html><html><body><ol>" + strings.Join(cards, "\n") + "</ol></body></html>"
}

func statePage(stateJSON string) string {
	return `<!DOCTYPE html><html><head><script>window.__PRELOADED_STATE__ = ` + stateJSON + `;</script></head><body><div id="root"></div></body></html>`
}

func testConfig() *config.Config {
	return &config.Config{
		MaxItems:        300,
		MaxRetries:      3,
		PolitenessDelay: 0,
	}
}

// fakeFetcher serves canned pages keyed by URL and records every call.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	status map[string]int
	errs   map[string]error
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:  make(map[string]string),
		status: make(map[string]int),
		errs:   make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return &Page{URL: url, StatusCode: 404}, nil
	}
	code := f.status[url]
	if code == 0 {
		code = 200
	}
	return &Page{URL: url, StatusCode: code, Body: []byte(body)}, nil
}
