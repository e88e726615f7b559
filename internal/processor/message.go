package processor

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatMessage renders offers as a WhatsApp message without AI.
func FormatMessage(offers []models.Offer) string {
	blocks := make([]string, 0, len(offers))
	for _, o := range offers {
		var b strings.Builder
		if o.Headline != "" {
			fmt.Fprintf(&b, "*%s*\n", o.Headline)
		}
		b.WriteString(o.Title)
		b.WriteByte('\n')

		switch {
		case o.Price != nil && o.DiscountPct > 0 && o.PriceFrom != nil:
			fmt.Fprintf(&b, "~%s~ por *%s* (%d%% OFF)\n", formatBRL(*o.PriceFrom), formatBRL(*o.Price), o.DiscountPct)
		case o.Price != nil:
			fmt.Fprintf(&b, "*%s*\n", formatBRL(*o.Price))
		}
		if o.Coupon != "" {
			fmt.Fprintf(&b, "🎟️ Cupom: %s\n", o.Coupon)
		}
		b.WriteString(o.Permalink)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func formatBRL(v float64) string {
	return "R$ " + brl.Sprintf("%.2f", v)
}
