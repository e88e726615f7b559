package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/models"
)

// Memory is a process-local store used when no Firestore project is configured.
type Memory struct {
	mu    sync.Mutex
	posts map[string]models.GroupPost
	sent  map[string]models.SentOffer
}

func NewMemory() *Memory {
	return &Memory{
		posts: make(map[string]models.GroupPost),
		sent:  make(map[string]models.SentOffer),
	}
}

func (m *Memory) LastPostTime(_ context.Context, groupID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[groupID].LastPostAt, nil
}

func (m *Memory) RecordPost(_ context.Context, groupID string, at time.Time, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[groupID] = models.GroupPost{GroupID: groupID, LastPostAt: at, LastCount: count}
	return nil
}

func (m *Memory) WasSent(_ context.Context, groupID, permalink string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[docID(groupID, permalink)]
	return ok, nil
}

func (m *Memory) TryMarkSent(_ context.Context, sent models.SentOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := docID(sent.GroupID, sent.Permalink)
	if _, ok := m.sent[id]; ok {
		return models.ErrOfferSent
	}
	m.sent[id] = sent
	return nil
}

func (m *Memory) TrimSentOffers(_ context.Context, maxOffers int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxOffers = max(maxOffers, 0)
	if len(m.sent) <= maxOffers {
		return nil
	}

	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(m.sent))
	for id, s := range m.sent {
		entries = append(entries, entry{id, s.SentAt})
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.at.Compare(b.at) })

	for _, e := range entries[:len(entries)-maxOffers] {
		delete(m.sent, e.id)
	}
	return nil
}
