package processor

import (
	"context"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/ai"
	"github.com/pauljones0/meli-offers-bot/internal/models"
)

// OfferStore abstracts the storage layer for post history.
type OfferStore interface {
	LastPostTime(ctx context.Context, groupID string) (time.Time, error)
	RecordPost(ctx context.Context, groupID string, at time.Time, count int) error
	WasSent(ctx context.Context, groupID, permalink string) (bool, error)
	TryMarkSent(ctx context.Context, sent models.SentOffer) error
	TrimSentOffers(ctx context.Context, maxOffers int) error
}

// OfferNotifier abstracts the messaging gateway. When Enabled reports false
// the send methods deliver nothing.
type OfferNotifier interface {
	Enabled() bool
	SendText(ctx context.Context, groupID, body string) (string, error)
	SendImage(ctx context.Context, groupID, imageURL, caption string) (string, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// Enricher abstracts the AI layer. Implementations return zero values when
// no model is configured.
type Enricher interface {
	GenerateHeadline(ctx context.Context, offer models.Offer) (string, error)
	ControlPostFrequency(ctx context.Context, in ai.FrequencyInput) (ai.FrequencyDecision, error)
	SummarizeOffers(ctx context.Context, offers []models.Offer) (string, error)
}
