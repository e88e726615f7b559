package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

type Client struct {
	client *genai.Client
	model  string
}

// FrequencyInput describes the situation in which a post is being considered.
type FrequencyInput struct {
	TimeOfDay           string
	OfferAttractiveness string
	LastPostTime        string
}

// FrequencyDecision says whether posting now is a good idea, and why.
type FrequencyDecision struct {
	ShouldPost bool   `json:"should_post"`
	Reason     string `json:"reason"`
}

type headlineResult struct {
	Headline string `json:"headline"`
}

type summaryResult struct {
	Message string `json:"message"`
}

// NewClient returns a Gemini backed client, or nil when apiKey is empty. All
// methods accept a nil receiver and then return zero values.
func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, nil // Return nil client if no key provided
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{client: client, model: modelID}, nil
}

// GenerateHeadline writes a short, punchy hook for one offer.
func (c *Client) GenerateHeadline(ctx context.Context, offer models.Offer) (string, error) {
	if c == nil || c.client == nil {
		return "", nil // Graceful degradation
	}

	prompt := fmt.Sprintf(`
You write hooks for deal posts in Brazilian WhatsApp groups.
Product: "%s"
Current price: %s
Original price: %s
Discount: %d%%

Task: write ONE headline in Brazilian Portuguese, at most 6 words, upper case, ending with one emoji.
Do not repeat the product name or the price.

Output JSON adhering to the schema.
`, offer.Title, formatPrice(offer.Price), formatPrice(offer.PriceFrom), offer.DiscountPct)

	var result headlineResult
	err := c.generateJSON(ctx, prompt, &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline": {
				Type:        genai.TypeString,
				Description: "Upper case hook of at most 6 words ending with an emoji.",
			},
		},
		Required: []string{"headline"},
	}, 0.9, &result)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Headline), nil
}

// ControlPostFrequency decides whether a post should go out now, balancing
// engagement against spamming the group.
func (c *Client) ControlPostFrequency(ctx context.Context, in FrequencyInput) (FrequencyDecision, error) {
	if c == nil || c.client == nil {
		return FrequencyDecision{ShouldPost: true, Reason: "post frequency control disabled"}, nil
	}

	lastPost := in.LastPostTime
	if lastPost == "" {
		lastPost = "never"
	}
	prompt := fmt.Sprintf(`
You manage engagement for a WhatsApp group that shares promotional offers.
Decide whether a post should be made now. Maximize engagement while avoiding spamming the group.

Consider:
- Time of day: some times (evenings, lunch time) get more engagement than others.
- Offer attractiveness: very attractive offers justify more frequent posts.
- Last post time: avoid posting too often; keep a reasonable gap between posts.

Time of day: %s
Offer attractiveness: %s
Last post time: %s

Output ONLY a JSON object adhering to the schema. Write the reason in Brazilian Portuguese.
`, in.TimeOfDay, in.OfferAttractiveness, lastPost)

	var decision FrequencyDecision
	err := c.generateJSON(ctx, prompt, &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"should_post": {
				Type:        genai.TypeBoolean,
				Description: "Whether a post should be made to the WhatsApp group now.",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Why, e.g. the time of day is ideal or the last post was too recent.",
			},
		},
		Required: []string{"should_post", "reason"},
	}, 0.1, &decision)
	if err != nil {
		return FrequencyDecision{}, err
	}
	return decision, nil
}

// SummarizeOffers turns a list of offers into one WhatsApp message.
func (c *Client) SummarizeOffers(ctx context.Context, offers []models.Offer) (string, error) {
	if c == nil || c.client == nil || len(offers) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, o := range offers {
		fmt.Fprintf(&b, "- Title: %s\n  Headline: %s\n  Price: %s\n", o.Title, o.Headline, formatPrice(o.Price))
		if o.DiscountPct > 0 {
			fmt.Fprintf(&b, "  Discount: %d%% (was %s)\n", o.DiscountPct, formatPrice(o.PriceFrom))
		}
		if o.Coupon != "" {
			fmt.Fprintf(&b, "  Coupon: %s\n", o.Coupon)
		}
		fmt.Fprintf(&b, "  Link: %s\n", o.Permalink)
	}

	prompt := fmt.Sprintf(`
You help share deals on WhatsApp. Write one message in Brazilian Portuguese that lists every offer below.
For each offer: the headline in bold (*text*), a concise product summary, the price, the discount if any, and the link on its own line.
Keep the links exactly as given. Use WhatsApp formatting only, no Markdown headers.

Offers:
%s
Output JSON adhering to the schema.
`, b.String())

	var result summaryResult
	err := c.generateJSON(ctx, prompt, &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"message": {
				Type:        genai.TypeString,
				Description: "The complete WhatsApp message text.",
			},
		},
		Required: []string{"message"},
	}, 0.4, &result)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Message), nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, temperature float32, out any) error {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return errors.New("no response candidates from gemini")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return errors.New("no text part in response")
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), out); err != nil {
		return fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return nil
}

// cleanJSON strips a Markdown code fence the model sometimes wraps around JSON.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func formatPrice(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("R$ %.2f", *v)
}
