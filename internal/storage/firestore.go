package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

const (
	groupPostsCollection = "group_posts"
	sentOffersCollection = "sent_offers"
)

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// LastPostTime returns when the group last received a post, or the zero time.
func (c *Client) LastPostTime(ctx context.Context, groupID string) (time.Time, error) {
	doc, err := c.client.Collection(groupPostsCollection).Doc(docID(groupID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last post for group %s: %w", groupID, err)
	}

	var post models.GroupPost
	if err := doc.DataTo(&post); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal group post: %w", err)
	}
	return post.LastPostAt, nil
}

// RecordPost stores the time and size of the latest post to a group.
func (c *Client) RecordPost(ctx context.Context, groupID string, at time.Time, count int) error {
	_, err := c.client.Collection(groupPostsCollection).Doc(docID(groupID)).Set(ctx, models.GroupPost{
		GroupID:    groupID,
		LastPostAt: at,
		LastCount:  count,
	})
	if err != nil {
		return fmt.Errorf("failed to record post for group %s: %w", groupID, err)
	}
	return nil
}

// WasSent reports whether the permalink was already posted to the group.
func (c *Client) WasSent(ctx context.Context, groupID, permalink string) (bool, error) {
	_, err := c.client.Collection(sentOffersCollection).Doc(docID(groupID, permalink)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up sent offer: %w", err)
	}
	return true, nil
}

// TryMarkSent records a sent offer. Returns models.ErrOfferSent if it already exists.
func (c *Client) TryMarkSent(ctx context.Context, sent models.SentOffer) error {
	docRef := c.client.Collection(sentOffersCollection).Doc(docID(sent.GroupID, sent.Permalink))
	// Create fails if the document already exists.
	if _, err := docRef.Create(ctx, sent); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return models.ErrOfferSent
		}
		return err
	}
	return nil
}

// TrimSentOffers deletes the oldest sent offers (by SentAt) beyond maxOffers.
func (c *Client) TrimSentOffers(ctx context.Context, maxOffers int) error {
	maxOffers = max(maxOffers, 0)
	collectionRef := c.client.Collection(sentOffersCollection)

	countSnapshot, err := collectionRef.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sent offer count for trimming: %w", err)
	}
	countValue, ok := countSnapshot["all"]
	if !ok {
		return errors.New("count aggregation result for trimming was invalid: 'all' key missing")
	}
	current, err := aggregationCount(countValue)
	if err != nil {
		return err
	}

	if current <= int64(maxOffers) {
		return nil
	}
	numToDelete := int(current) - maxOffers
	slog.Info("Trimming sent offers", "current", current, "max", maxOffers, "deleting", numToDelete)

	iter := collectionRef.
		OrderBy("sentAt", firestore.Asc).
		Limit(numToDelete).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deletedCount := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate sent offers for trimming: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			slog.Warn("Failed to queue delete", "id", doc.Ref.ID, "error", err)
			continue
		}
		deletedCount++
	}

	if deletedCount > 0 {
		bulkWriter.Flush()
		slog.Info("Flushed sent offer deletes", "count", deletedCount)
	}
	return nil
}

// aggregationCount reads a count aggregation, which the client returns either
// as a plain int64 or as a protobuf value depending on the version.
func aggregationCount(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", v)
	}
}

// docID derives a stable document ID. Permalinks contain slashes, which
// Firestore does not allow in IDs.
func docID(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
