package models

import (
	"errors"
	"math"
	"time"
)

// ErrOfferSent is returned when an offer was already dispatched to a group.
var ErrOfferSent = errors.New("offer already sent")

// Offer represents one scraped marketplace listing.
type Offer struct {
	ID          string   `json:"id" firestore:"id"`
	Headline    string   `json:"headline" firestore:"headline,omitempty"`
	Title       string   `json:"title" firestore:"title" validate:"required"`
	Price       *float64 `json:"price" firestore:"price" validate:"omitempty,gte=0"`
	PriceFrom   *float64 `json:"price_from" firestore:"priceFrom" validate:"omitempty,gte=0"`
	Coupon      string   `json:"coupon" firestore:"coupon,omitempty"`
	Permalink   string   `json:"permalink" firestore:"permalink" validate:"required,url"`
	Image       string   `json:"image" firestore:"image,omitempty" validate:"omitempty,url"`
	DiscountPct int      `json:"discount_pct" firestore:"discountPct" validate:"gte=0,lte=100"`
	Store       string   `json:"store,omitempty" firestore:"store,omitempty"`
}

// Discount returns the rounded percentage between PriceFrom and Price, or 0
// when either is missing or the current price is higher than the original.
func (o Offer) Discount() int {
	if o.Price == nil || o.PriceFrom == nil {
		return 0
	}
	from, price := *o.PriceFrom, *o.Price
	if from <= 0 || price <= 0 || price > from {
		return 0
	}
	return int(math.Round((from - price) / from * 100))
}

// Group is a WhatsApp group reachable through the messaging gateway.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SentOffer records that an offer was posted to a group.
type SentOffer struct {
	GroupID   string    `firestore:"groupID"`
	Permalink string    `firestore:"permalink"`
	Title     string    `firestore:"title"`
	SentAt    time.Time `firestore:"sentAt"`
}

// GroupPost tracks the last time anything was posted to a group.
type GroupPost struct {
	GroupID    string    `firestore:"groupID"`
	LastPostAt time.Time `firestore:"lastPostAt"`
	LastCount  int       `firestore:"lastCount"`
}

// Float returns a pointer to v. Handy for building offers in code and tests.
func Float(v float64) *float64 {
	return &v
}
