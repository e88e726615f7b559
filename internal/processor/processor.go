package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pauljones0/meli-offers-bot/internal/ai"
	"github.com/pauljones0/meli-offers-bot/internal/config"
	"github.com/pauljones0/meli-offers-bot/internal/headline"
	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/scraper"
	"github.com/pauljones0/meli-offers-bot/internal/util"
	"github.com/pauljones0/meli-offers-bot/internal/validator"
)

const headlineConcurrency = 4

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoOffers is returned when a dispatch has nothing to send.
	ErrNoOffers = errors.New("no offers to send")
)

type ScrapeRequest struct {
	URLs             []string `json:"urls" validate:"required,min=1,dive,required,url"`
	MaxItems         int      `json:"max_items" validate:"omitempty,gte=10,lte=1000"`
	MinDiscount      int      `json:"min_discount" validate:"gte=0,lte=100"`
	GenerateHeadline bool     `json:"generate_headline"`
	UseAI            bool     `json:"use_ai"`
}

type ScrapeResult struct {
	Offers  []models.Offer `json:"offers"`
	Partial bool           `json:"partial"`
	Message string         `json:"message"`
}

type DispatchRequest struct {
	Offers    []models.Offer `json:"offers" validate:"dive"`
	GroupIDs  []string       `json:"group_ids" validate:"required,min=1,dive,required"`
	SendLimit int            `json:"send_limit" validate:"omitempty,gte=1"`
	Force     bool           `json:"force"`
}

// GroupOutcome explains why a group did not receive a post.
type GroupOutcome struct {
	GroupID string `json:"group_id"`
	Reason  string `json:"reason"`
}

type DispatchResult struct {
	RunID   string         `json:"run_id"`
	Total   int            `json:"total"`
	Sent    int            `json:"sent"`
	Skipped []GroupOutcome `json:"skipped,omitempty"`
	Failed  []GroupOutcome `json:"failed,omitempty"`
}

type Processor interface {
	ScrapeOffers(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error)
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

type OfferProcessor struct {
	store     OfferStore
	notifier  OfferNotifier
	ai        Enricher
	scraper   scraper.Scraper
	validator *validator.Validator
	config    *config.Config
	now       func() time.Time
}

func New(store OfferStore, n OfferNotifier, e Enricher, s scraper.Scraper, cfg *config.Config) *OfferProcessor {
	return &OfferProcessor{
		store:     store,
		notifier:  n,
		ai:        e,
		scraper:   s,
		validator: validator.New(),
		config:    cfg,
		now:       time.Now,
	}
}

// ScrapeOffers scrapes the requested sources and prepares the offers for
// display: discount and store are filled in, offers below MinDiscount are
// dropped and headlines are generated on request. When the context expires
// mid-scrape the offers collected so far are returned with Partial set.
func (p *OfferProcessor) ScrapeOffers(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error) {
	if err := p.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	maxItems := req.MaxItems
	if maxItems == 0 {
		maxItems = p.config.MaxItems
	}

	offers, err := p.scraper.Scrape(ctx, req.URLs, maxItems)
	partial := false
	if err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("scrape failed: %w", err)
		}
		slog.Warn("Scrape interrupted, returning partial results", "count", len(offers), "error", err)
		partial = true
	}

	kept := offers[:0]
	for _, o := range offers {
		o.DiscountPct = o.Discount()
		if o.Store == "" {
			o.Store = util.GetDomain(o.Permalink)
		}
		if req.MinDiscount > 0 && o.DiscountPct < req.MinDiscount {
			continue
		}
		kept = append(kept, o)
	}

	if req.GenerateHeadline {
		p.fillHeadlines(ctx, kept, req.UseAI)
	}

	valid := make([]models.Offer, 0, len(kept))
	for _, o := range kept {
		if err := p.validator.ValidateStruct(o); err != nil {
			slog.Debug("Dropping invalid offer", "permalink", o.Permalink, "error", err)
			continue
		}
		valid = append(valid, o)
	}

	res := &ScrapeResult{Offers: valid, Partial: partial}
	if len(valid) == 0 {
		res.Message = "No offers matched the criteria."
	} else {
		res.Message = fmt.Sprintf("Scraped %d offers.", len(valid))
	}
	slog.Info("Scrape finished", "offers", len(valid), "partial", partial)
	return res, nil
}

// fillHeadlines sets a headline on every offer that lacks one. AI headlines
// run with bounded concurrency and fall back to the local generator.
func (p *OfferProcessor) fillHeadlines(ctx context.Context, offers []models.Offer, useAI bool) {
	if !useAI || p.ai == nil {
		for i := range offers {
			if offers[i].Headline == "" {
				offers[i].Headline = headline.Generate(offers[i].Title, offers[i].PriceFrom, offers[i].Price)
			}
		}
		return
	}

	// A scrape that ran out of time should still get headlines.
	ctx = context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headlineConcurrency)
	for i := range offers {
		if offers[i].Headline != "" {
			continue
		}
		g.Go(func() error {
			o := &offers[i]
			h, err := p.ai.GenerateHeadline(gctx, *o)
			if err != nil {
				slog.Warn("AI headline failed, using local generator", "permalink", o.Permalink, "error", err)
			}
			if h == "" {
				h = headline.Generate(o.Title, o.PriceFrom, o.Price)
			}
			o.Headline = h
			return nil
		})
	}
	_ = g.Wait()
}

// Dispatch posts offers to each group. Unless forced, a group is skipped
// while its cooldown runs or when the post advisor says no. Offers already
// sent to a group are never sent to it again. Nothing is sent or recorded
// while the messaging gateway is not configured.
func (p *OfferProcessor) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if len(req.Offers) == 0 {
		return nil, ErrNoOffers
	}
	if err := p.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	runID := uuid.NewString()
	logger := slog.With("run_id", runID)
	result := &DispatchResult{RunID: runID, Total: len(req.GroupIDs)}

	if !p.notifier.Enabled() {
		for _, groupID := range req.GroupIDs {
			result.Skipped = append(result.Skipped, GroupOutcome{GroupID: groupID, Reason: "messaging gateway not configured"})
		}
		logger.Warn("Messaging gateway not configured, nothing sent", "groups", len(req.GroupIDs))
		return result, nil
	}

	sendLimit := req.SendLimit
	if sendLimit == 0 {
		sendLimit = p.config.WhapiSendLimit
	}
	offers := req.Offers
	if len(offers) > sendLimit {
		offers = offers[:sendLimit]
	}
	offers = prepareOffers(offers)

	limit := rate.Inf
	if p.config.WhapiInterval > 0 {
		limit = rate.Every(p.config.WhapiInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var postedAny bool
	for _, groupID := range req.GroupIDs {
		if !req.Force {
			if reason, skip := p.shouldSkip(ctx, groupID, offers); skip {
				logger.Info("Skipping group", "group", groupID, "reason", reason)
				result.Skipped = append(result.Skipped, GroupOutcome{GroupID: groupID, Reason: reason})
				continue
			}
		}

		pending := p.unsent(ctx, groupID, offers)
		if len(pending) == 0 {
			result.Skipped = append(result.Skipped, GroupOutcome{GroupID: groupID, Reason: "all offers were already sent to this group"})
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		body := p.buildMessage(ctx, pending)
		if err := p.send(ctx, groupID, pending, body); err != nil {
			logger.Error("Failed to send offers", "group", groupID, "error", err)
			result.Failed = append(result.Failed, GroupOutcome{GroupID: groupID, Reason: err.Error()})
			continue
		}
		result.Sent++
		postedAny = true
		p.recordSent(ctx, groupID, pending)
		logger.Info("Offers sent", "group", groupID, "count", len(pending))
	}

	if postedAny {
		if err := p.store.TrimSentOffers(ctx, p.config.MaxSentHistory); err != nil {
			logger.Warn("Failed to trim sent offers", "error", err)
		}
	}

	logger.Info("Dispatch finished", "sent", result.Sent, "total", result.Total, "skipped", len(result.Skipped), "failed", len(result.Failed))
	return result, nil
}

// ListGroups returns the groups reachable through the messaging gateway.
func (p *OfferProcessor) ListGroups(ctx context.Context) ([]models.Group, error) {
	return p.notifier.ListGroups(ctx)
}

func (p *OfferProcessor) shouldSkip(ctx context.Context, groupID string, offers []models.Offer) (string, bool) {
	last, err := p.store.LastPostTime(ctx, groupID)
	if err != nil {
		slog.Warn("Failed to read last post time, continuing", "group", groupID, "error", err)
	}
	now := p.now()
	if !last.IsZero() && now.Sub(last) < p.config.WhapiMinCooldown {
		wait := p.config.WhapiMinCooldown - now.Sub(last)
		return fmt.Sprintf("cooldown active for another %s", wait.Round(time.Second)), true
	}

	if p.ai == nil {
		return "", false
	}
	in := ai.FrequencyInput{
		TimeOfDay:           timeOfDay(now),
		OfferAttractiveness: fmt.Sprintf("Average discount is %.0f%%", averageDiscount(offers)),
	}
	if !last.IsZero() {
		in.LastPostTime = last.Format(time.RFC3339)
	}
	decision, err := p.ai.ControlPostFrequency(ctx, in)
	if err != nil {
		slog.Warn("Post frequency check failed, posting anyway", "group", groupID, "error", err)
		return "", false
	}
	if !decision.ShouldPost {
		return decision.Reason, true
	}
	return "", false
}

func (p *OfferProcessor) unsent(ctx context.Context, groupID string, offers []models.Offer) []models.Offer {
	pending := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		sent, err := p.store.WasSent(ctx, groupID, o.Permalink)
		if err != nil {
			slog.Warn("Failed to check sent history", "group", groupID, "permalink", o.Permalink, "error", err)
		}
		if !sent {
			pending = append(pending, o)
		}
	}
	return pending
}

func (p *OfferProcessor) buildMessage(ctx context.Context, offers []models.Offer) string {
	if p.ai != nil {
		summary, err := p.ai.SummarizeOffers(ctx, offers)
		if err != nil {
			slog.Warn("AI summary failed, using local formatter", "error", err)
		}
		if strings.TrimSpace(summary) != "" {
			return summary
		}
	}
	return FormatMessage(offers)
}

// send posts the message as the caption of the first offer's image when it
// has one, and as plain text otherwise.
func (p *OfferProcessor) send(ctx context.Context, groupID string, offers []models.Offer, body string) error {
	var err error
	if img := offers[0].Image; img != "" {
		_, err = p.notifier.SendImage(ctx, groupID, img, body)
	} else {
		_, err = p.notifier.SendText(ctx, groupID, body)
	}
	return err
}

func (p *OfferProcessor) recordSent(ctx context.Context, groupID string, offers []models.Offer) {
	now := p.now()
	if err := p.store.RecordPost(ctx, groupID, now, len(offers)); err != nil {
		slog.Warn("Failed to record post", "group", groupID, "error", err)
	}
	for _, o := range offers {
		err := p.store.TryMarkSent(ctx, models.SentOffer{
			GroupID:   groupID,
			Permalink: o.Permalink,
			Title:     o.Title,
			SentAt:    now,
		})
		if err != nil && !errors.Is(err, models.ErrOfferSent) {
			slog.Warn("Failed to record sent offer", "group", groupID, "permalink", o.Permalink, "error", err)
		}
	}
}

// prepareOffers copies offers, filling discount and headline where missing.
func prepareOffers(offers []models.Offer) []models.Offer {
	out := make([]models.Offer, len(offers))
	for i, o := range offers {
		if o.DiscountPct == 0 {
			o.DiscountPct = o.Discount()
		}
		if o.Headline == "" {
			o.Headline = headline.Generate(o.Title, o.PriceFrom, o.Price)
		}
		out[i] = o
	}
	return out
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func averageDiscount(offers []models.Offer) float64 {
	if len(offers) == 0 {
		return 0
	}
	var sum int
	for _, o := range offers {
		sum += o.DiscountPct
	}
	return float64(sum) / float64(len(offers))
}
