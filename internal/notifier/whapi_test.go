package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/util"
)

func newTestClient(url string) *Client {
	c := New(url, "secret-token")
	c.backoff = util.LinearBackoff(time.Millisecond)
	return c
}

func TestClient_SendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/messages/text" {
			t.Errorf("Expected /messages/text, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization header incorrect: %q", got)
		}

		var msg textMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		if msg.To != "120363@g.us" || msg.Body != "Oferta!" {
			t.Errorf("Payload incorrect: %+v", msg)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sent":true,"message":{"id":"msg-1"}}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).SendText(context.Background(), "120363@g.us", "Oferta!")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("Expected message ID msg-1, got %q", id)
	}
}

func TestClient_SendImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/image" {
			t.Errorf("Expected /messages/image, got %s", r.URL.Path)
		}
		var msg imageMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		if msg.Media != "https://img.example/1.webp" || msg.Caption != "legenda" {
			t.Errorf("Payload incorrect: %+v", msg)
		}
		_, _ = w.Write([]byte(`{"sent":true,"message":{"id":"img-1"}}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).SendImage(context.Background(), "g1", "https://img.example/1.webp", "legenda")
	if err != nil {
		t.Fatalf("SendImage failed: %v", err)
	}
	if id != "img-1" {
		t.Errorf("Expected message ID img-1, got %q", id)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"sent":true,"message":{"id":"msg-3"}}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).SendText(context.Background(), "g1", "oi")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if id != "msg-3" {
		t.Errorf("Expected msg-3, got %q", id)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendText(context.Background(), "g1", "oi")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestClient_ListGroups(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/groups" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"groups":[{"id":"g1@g.us","name":"Promos"},{"id":"g2@g.us","name":"Tech"}],"count":2}`))
	}))
	defer server.Close()

	groups, err := newTestClient(server.URL).ListGroups(context.Background())
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 2 || groups[0].ID != "g1@g.us" || groups[1].Name != "Tech" {
		t.Errorf("Unexpected groups: %+v", groups)
	}
}

func TestClient_NoTokenSkips(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if _, err := c.SendText(context.Background(), "g1", "oi"); err != nil {
		t.Errorf("Expected nil error without token, got %v", err)
	}
	groups, err := c.ListGroups(context.Background())
	if err != nil || groups != nil {
		t.Errorf("Expected no groups and no error, got %v, %v", groups, err)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no requests without token, got %d", calls.Load())
	}
}
