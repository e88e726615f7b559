package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

// ExtractFromDOM returns one offer per parseable card on the page, in document
// order. Cards without a title link, href or title are skipped.
func ExtractFromDOM(doc *goquery.Document, baseURL string, sel SelectorConfig) []models.Offer {
	cards := doc.Find(strings.Join(sel.Cards.Containers, ", "))
	if cards.Length() == 0 {
		return nil
	}

	// Validate rejects bad patterns at load time.
	itemID, _ := regexp.Compile(sel.Cards.ItemIDPattern)

	var offers []models.Offer
	cards.Each(func(_ int, card *goquery.Selection) {
		if offer, ok := extractCard(card, baseURL, sel, itemID); ok {
			offers = append(offers, offer)
		}
	})
	return offers
}

func extractCard(card *goquery.Selection, baseURL string, sel SelectorConfig, itemID *regexp.Regexp) (models.Offer, bool) {
	link := firstMatch(card, sel.Cards.TitleLink)
	if link == nil {
		return models.Offer{}, false
	}
	if !link.Is("a") {
		link = link.Find("a").First()
		if link.Length() == 0 {
			return models.Offer{}, false
		}
	}

	href := strings.TrimSpace(link.AttrOr("href", ""))
	title := strings.TrimSpace(link.Text())
	if href == "" || title == "" {
		return models.Offer{}, false
	}
	absolute, ok := util.ResolveURL(baseURL, href)
	if !ok {
		return models.Offer{}, false
	}

	offer := models.Offer{
		Title:     title,
		Permalink: util.NormalizePermalink(absolute),
		Price:     parseMoneyFromElement(firstMatch(card, sel.Cards.CurrentPrice), sel.Money),
		PriceFrom: parseMoneyFromElement(firstMatch(card, sel.Cards.PreviousPrice), sel.Money),
		Image:     cardImage(card, baseURL, sel.Cards),
	}

	if sel.Cards.IDAttr != "" {
		offer.ID = strings.TrimSpace(card.AttrOr(sel.Cards.IDAttr, ""))
	}
	if offer.ID == "" && itemID != nil {
		offer.ID = itemID.FindString(href)
	}
	return offer, true
}

// firstMatch returns the first element matched by the first selector that
// matches anything inside s, or nil.
func firstMatch(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, q := range selectors {
		if m := s.Find(q).First(); m.Length() > 0 {
			return m
		}
	}
	return nil
}

func cardImage(card *goquery.Selection, baseURL string, cs CardSelectors) string {
	img := card.Find(cs.Image).First()
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range cs.ImageAttrs {
		if src := strings.TrimSpace(img.AttrOr(attr, "")); src != "" {
			return resolveImage(baseURL, src)
		}
	}
	return ""
}

// resolveImage makes src absolute. Inline data URIs are not remote assets and
// yield "".
func resolveImage(baseURL, src string) string {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return ""
	}
	abs, ok := util.ResolveURL(baseURL, src)
	if !ok {
		return ""
	}
	return abs
}
