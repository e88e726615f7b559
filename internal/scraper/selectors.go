package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
)

type SelectorConfig struct {
	Cards CardSelectors  `json:"cards"`
	Money MoneySelectors `json:"money"`
	State StateSelectors `json:"state"`
}

// CardSelectors locate offer cards and their fields. List-valued entries are
// candidates tried in order; the first one that matches wins.
type CardSelectors struct {
	Containers    []string `json:"containers"`      // e.g., "div.poly-card"
	TitleLink     []string `json:"title_link"`      // e.g., "a.poly-component__title"
	Image         string   `json:"image"`           // e.g., "img"
	ImageAttrs    []string `json:"image_attrs"`     // lazy-load attribute first
	CurrentPrice  []string `json:"current_price"`   // e.g., ".poly-price__current .andes-money-amount"
	PreviousPrice []string `json:"previous_price"`  // e.g., "s.andes-money-amount--previous"
	IDAttr        string   `json:"id_attr"`         // e.g., "data-id"
	ItemIDPattern string   `json:"item_id_pattern"` // e.g., "MLB\\d{6,}"
}

// MoneySelectors describe the structured price markup. Each field is a CSS
// selector group so the current and legacy layouts can be listed together.
type MoneySelectors struct {
	Amount   string `json:"amount"`
	Fraction string `json:"fraction"`
	Cents    string `json:"cents"`
}

// StateSelectors describe where the hydration state is embedded.
type StateSelectors struct {
	Marker string `json:"marker"` // e.g., "window.__PRELOADED_STATE__"
}

// Validate reports configurations that could never extract anything.
func (s SelectorConfig) Validate() error {
	var errs []error
	if len(s.Cards.Containers) == 0 {
		errs = append(errs, errors.New("cards.containers is empty"))
	}
	if len(s.Cards.TitleLink) == 0 {
		errs = append(errs, errors.New("cards.title_link is empty"))
	}
	if s.Money.Amount == "" {
		errs = append(errs, errors.New("money.amount is empty"))
	}
	if s.State.Marker == "" {
		errs = append(errs, errors.New("state.marker is empty"))
	}
	if _, err := regexp.Compile(s.Cards.ItemIDPattern); err != nil {
		errs = append(errs, fmt.Errorf("cards.item_id_pattern: %w", err))
	}
	return errors.Join(errs...)
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// This supports loading from embedded data via go:embed.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if err := config.Validate(); err != nil {
		return SelectorConfig{}, fmt.Errorf("invalid selector config: %w", err)
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// Keep it in sync with the embedded selectors.json.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Cards: CardSelectors{
			Containers: []string{
				"div.ui-search-result__wrapper",
				"li.ui-search-layout__item",
				"div.poly-card",
			},
			TitleLink: []string{
				"a.poly-component__title",
				"a.ui-search-link",
				".poly-component__title-wrapper a",
			},
			Image:      "img",
			ImageAttrs: []string{"data-src", "src"},
			CurrentPrice: []string{
				".poly-price__current .andes-money-amount",
				".andes-money-amount:not(.andes-money-amount--previous)",
				".price-tag",
			},
			PreviousPrice: []string{
				"s.andes-money-amount--previous",
				".andes-money-amount--previous",
				".price-tag--light, .price-tag-strike, s",
			},
			IDAttr:        "data-id",
			ItemIDPattern: `MLB\d{6,}`,
		},
		Money: MoneySelectors{
			Amount:   ".andes-money-amount, .price-tag",
			Fraction: ".andes-money-amount__fraction, .price-tag-fraction",
			Cents:    ".andes-money-amount__cents, .price-tag-cents",
		},
		State: StateSelectors{
			Marker: "window.__PRELOADED_STATE__",
		},
	}
}
