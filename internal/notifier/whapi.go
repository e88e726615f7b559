package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/util"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// Client talks to the Whapi WhatsApp gateway.
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	attempts int
	backoff  util.Backoff
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
		attempts: defaultAttempts,
		backoff:  util.ExponentialBackoff(defaultBackoff),
	}
}

// Enabled reports whether a gateway token is configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

type textMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type imageMessage struct {
	To      string `json:"to"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	Sent    bool `json:"sent"`
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

type groupsResponse struct {
	Groups []models.Group `json:"groups"`
}

// SendText posts a text message to a group and returns the gateway message ID.
func (c *Client) SendText(ctx context.Context, groupID, body string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	return c.send(ctx, "/messages/text", textMessage{To: groupID, Body: body})
}

// SendImage posts an image by URL with a caption.
func (c *Client) SendImage(ctx context.Context, groupID, imageURL, caption string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	return c.send(ctx, "/messages/image", imageMessage{To: groupID, Media: imageURL, Caption: caption})
}

// ListGroups returns the groups the connected number belongs to.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	if !c.Enabled() {
		return nil, nil
	}

	var body []byte
	err := util.RetryWithBackoff(ctx, c.attempts, c.backoff, func(attempt int) error {
		var err error
		body, err = c.do(ctx, http.MethodGet, "/groups?count=500", nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("whapi list groups: %w", err)
	}

	var res groupsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode groups response: %w", err)
	}
	return res.Groups, nil
}

func (c *Client) send(ctx context.Context, path string, payload any) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var body []byte
	err = util.RetryWithBackoff(ctx, c.attempts, c.backoff, func(attempt int) error {
		var err error
		body, err = c.do(ctx, http.MethodPost, path, payloadBytes)
		if err != nil {
			slog.Warn("Whapi request failed", "path", path, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("whapi %s: %w", path, err)
	}

	var res sendResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	return res.Message.ID, nil
}

// do performs a single request. Client errors other than 429 are permanent.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return bodyBytes, nil
	}

	statusErr := fmt.Errorf("whapi status: %s, body: %s", resp.Status, string(bodyBytes))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, statusErr
	}
	return nil, util.Permanent(statusErr)
}
