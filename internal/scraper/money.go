package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/meli-offers-bot/internal/util"
)

// moneyRun picks the numeric part out of text such as "R$ 1.299,90".
var moneyRun = regexp.MustCompile(`\d[\d.\s]*(,\d+)?`)

func parseMoneyText(text string) *float64 {
	run := moneyRun.FindString(strings.TrimSpace(text))
	v, ok := util.ParseLocaleNumber(run)
	if !ok {
		return nil
	}
	return &v
}

// parseMoneyFromElement reads a price out of the marketplace money markup. The
// fraction and cents sub-parts are joined as "fraction,cents"; without them the
// element text is parsed instead.
func parseMoneyFromElement(sel *goquery.Selection, m MoneySelectors) *float64 {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	sel = sel.First()

	target := sel
	if !sel.Is(m.Amount) {
		target = sel.Find(m.Amount).First()
	}
	if target.Length() == 0 {
		return parseMoneyText(sel.Text())
	}

	fraction := strings.TrimSpace(target.Find(m.Fraction).First().Text())
	cents := strings.TrimSpace(target.Find(m.Cents).First().Text())
	if fraction != "" {
		if cents != "" {
			fraction = fraction + "," + cents
		}
		return parseMoneyText(fraction)
	}
	// Split markup we do not recognise would join "1.299" and "90" into 129990.
	if target.Find(`[class*="fraction"], [class*="cents"]`).Length() > 0 {
		return nil
	}
	return parseMoneyText(target.Text())
}
