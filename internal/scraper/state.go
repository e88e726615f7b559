package scraper

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

func stateBlobPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + regexp.QuoteMeta(marker) + `\s*=\s*(\{.*?\});\s*</script>`)
}

// ExtractFromState walks the hydration state embedded in the page and returns
// every object carrying both a permalink and a title, in the order they are
// first met. Duplicate references to the same item are reported once. A page
// without state, or with state that is not valid JSON, yields nothing.
func ExtractFromState(html []byte, baseURL string, sel SelectorConfig) []models.Offer {
	match := stateBlobPattern(sel.State.Marker).FindSubmatch(html)
	if match == nil {
		return nil
	}
	blob := string(match[1])
	if !gjson.Valid(blob) {
		slog.Warn("Embedded state is not valid JSON", "url", baseURL, "marker", sel.State.Marker, "bytes", len(blob))
		return nil
	}

	itemID, _ := regexp.Compile(sel.Cards.ItemIDPattern)
	seen := make(map[string]struct{})
	var offers []models.Offer

	var walk func(node gjson.Result)
	walk = func(node gjson.Result) {
		if node.IsObject() {
			if offer, ok := offerFromNode(node, baseURL, itemID); ok {
				if _, dup := seen[offer.Permalink]; !dup {
					seen[offer.Permalink] = struct{}{}
					offers = append(offers, offer)
				}
			}
		}
		if node.IsObject() || node.IsArray() {
			node.ForEach(func(_, child gjson.Result) bool {
				walk(child)
				return true
			})
		}
	}
	walk(gjson.Parse(blob))

	return offers
}

func offerFromNode(node gjson.Result, baseURL string, itemID *regexp.Regexp) (models.Offer, bool) {
	permalink := node.Get("permalink")
	title := node.Get("title")
	if permalink.Type != gjson.String || title.Type != gjson.String {
		return models.Offer{}, false
	}
	titleText := strings.TrimSpace(title.String())
	if titleText == "" || strings.TrimSpace(permalink.String()) == "" {
		return models.Offer{}, false
	}
	absolute, ok := util.ResolveURL(baseURL, permalink.String())
	if !ok {
		return models.Offer{}, false
	}

	offer := models.Offer{
		Title:     titleText,
		Permalink: util.NormalizePermalink(absolute),
		Price:     stateMoney(node.Get("price")),
		PriceFrom: stateMoney(node.Get("original_price")),
		Image:     resolveImage(baseURL, strings.TrimSpace(node.Get("thumbnail").String())),
	}

	if id := node.Get("id"); id.Type == gjson.String || id.Type == gjson.Number {
		offer.ID = id.String()
	}
	if offer.ID == "" && itemID != nil {
		offer.ID = itemID.FindString(permalink.String())
	}
	return offer, true
}

// stateMoney accepts a JSON number, a locale formatted string or an object
// with an "amount" field.
func stateMoney(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f < 0 {
			return nil
		}
		return &f
	case gjson.String:
		return parseMoneyText(v.String())
	case gjson.JSON:
		if v.IsObject() {
			return stateMoney(v.Get("amount"))
		}
	}
	return nil
}
