package headline

import (
	"slices"
	"strings"
	"testing"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Smartphone Samsung Galaxy A55 5G 256GB", "smartphone"},
		{"Smart TV LG 55\" 4K UHD", "tv"},
		{"Notebook Dell Inspiron i5", "notebook"},
		{"Fone de Ouvido Bluetooth JBL", "audio"},
		{"Console PS5 Slim", "gaming"},
		{"Cafeteira Expresso Café Gourmet", "cozinha"},
		{"Whey Protein 900g", "fitness"},
		{"Ração Golden Cães Adultos 15kg", "pet"},
		{"Perfume Eau de Parfum 100ml", "perfumaria"},
		{"Jogo de Lençol Casal 4 Peças", "casa"},
		{"Furadeira de Impacto", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Category(tt.title); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestCategory_WholeWordsOnly(t *testing.T) {
	// "motor" must not trigger the "moto" smartphone keyword.
	if got := Category("Motor de Popa"); got != "default" {
		t.Errorf("Category(Motor de Popa) = %q, want default", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate("Fone JBL Tune", models.Float(399.9), models.Float(199.9))
	b := Generate("Fone JBL Tune", models.Float(399.9), models.Float(199.9))
	if a != b {
		t.Errorf("Generate is not deterministic: %q vs %q", a, b)
	}
}

func TestGenerate_UrgencyBands(t *testing.T) {
	tests := []struct {
		name      string
		priceFrom *float64
		price     *float64
		pool      []string
	}{
		{"high discount", models.Float(100), models.Float(50), urgentHigh},
		{"mid discount", models.Float(100), models.Float(70), urgentMid},
		{"low discount", models.Float(100), models.Float(90), urgentLow},
		{"no original price", nil, models.Float(90), urgentLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate("Fone JBL Tune", tt.priceFrom, tt.price)
			if !slices.ContainsFunc(tt.pool, func(p string) bool { return strings.HasPrefix(got, p+" ") }) {
				t.Errorf("Generate() = %q, want prefix from %v", got, tt.pool)
			}
			flair := got[strings.Index(got, " ")+1:]
			if !slices.ContainsFunc(wordSets["audio"], func(w string) bool { return strings.HasSuffix(got, w) }) {
				t.Errorf("Generate() flair %q not from the audio word set", flair)
			}
		})
	}
}
