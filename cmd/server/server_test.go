package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/processor"
	"github.com/pauljones0/meli-offers-bot/internal/validator"
)

type mockProcessor struct {
	scrapeReq   processor.ScrapeRequest
	scrapeRes   *processor.ScrapeResult
	scrapeErr   error
	deadline    bool
	dispatchReq processor.DispatchRequest
	dispatchRes *processor.DispatchResult
	dispatchErr error
	groups      []models.Group
	groupsErr   error
}

func (m *mockProcessor) ScrapeOffers(ctx context.Context, req processor.ScrapeRequest) (*processor.ScrapeResult, error) {
	m.scrapeReq = req
	_, m.deadline = ctx.Deadline()
	return m.scrapeRes, m.scrapeErr
}

func (m *mockProcessor) Dispatch(_ context.Context, req processor.DispatchRequest) (*processor.DispatchResult, error) {
	m.dispatchReq = req
	return m.dispatchRes, m.dispatchErr
}

func (m *mockProcessor) ListGroups(_ context.Context) ([]models.Group, error) {
	return m.groups, m.groupsErr
}

func newTestServer(p *mockProcessor) http.Handler {
	s := &Server{processor: p, scrapeTimeout: time.Minute}
	return s.Routes([]string{"*"})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&mockProcessor{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScrapeHandler(t *testing.T) {
	p := &mockProcessor{scrapeRes: &processor.ScrapeResult{
		Offers:  []models.Offer{{ID: "MLB1", Title: "Fone", Permalink: "https://x.example/MLB1"}},
		Message: "Scraped 1 offers.",
	}}
	rec := do(t, newTestServer(p), http.MethodPost, "/api/scrape",
		`{"urls":["https://lista.mercadolivre.com.br/ofertas"],"max_items":50,"min_discount":10,"generate_headline":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://lista.mercadolivre.com.br/ofertas"}, p.scrapeReq.URLs)
	assert.Equal(t, 50, p.scrapeReq.MaxItems)
	assert.Equal(t, 10, p.scrapeReq.MinDiscount)
	assert.True(t, p.scrapeReq.GenerateHeadline)
	assert.True(t, p.deadline, "scrape should run under a timeout")

	var res processor.ScrapeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Offers, 1)
}

func TestScrapeHandler_Errors(t *testing.T) {
	verr := validator.New().ValidateStruct(processor.ScrapeRequest{})
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"validation", `{}`, fmt.Errorf("%w: %w", processor.ErrInvalidRequest, verr), http.StatusBadRequest, "invalid request"},
		{"internal", `{"urls":["https://x.example"]}`, errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&mockProcessor{scrapeErr: tt.err}), http.MethodPost, "/api/scrape", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var res errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantError, res.Error)
		})
	}
}

func TestScrapeHandler_ValidationDetails(t *testing.T) {
	verr := validator.New().ValidateStruct(processor.ScrapeRequest{})
	p := &mockProcessor{scrapeErr: fmt.Errorf("%w: %w", processor.ErrInvalidRequest, verr)}
	rec := do(t, newTestServer(p), http.MethodPost, "/api/scrape", `{}`)

	var res errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Details, "urls is required")
}

func TestSendHandler(t *testing.T) {
	p := &mockProcessor{dispatchRes: &processor.DispatchResult{RunID: "run-1", Total: 1, Sent: 1}}
	rec := do(t, newTestServer(p), http.MethodPost, "/api/send",
		`{"offers":[{"title":"Fone","permalink":"https://x.example/MLB1"}],"group_ids":["g1@g.us"],"send_limit":5,"force":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"g1@g.us"}, p.dispatchReq.GroupIDs)
	assert.Equal(t, 5, p.dispatchReq.SendLimit)
	assert.True(t, p.dispatchReq.Force)
	assert.Len(t, p.dispatchReq.Offers, 1)
	assert.JSONEq(t, `{"run_id":"run-1","total":1,"sent":1}`, rec.Body.String())
}

func TestSendHandler_NoOffers(t *testing.T) {
	p := &mockProcessor{dispatchErr: processor.ErrNoOffers}
	rec := do(t, newTestServer(p), http.MethodPost, "/api/send", `{"group_ids":["g1"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no offers to send"}`, rec.Body.String())
}

func TestGroupsHandler(t *testing.T) {
	p := &mockProcessor{groups: []models.Group{{ID: "g1@g.us", Name: "Promos"}}}
	rec := do(t, newTestServer(p), http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"groups":[{"id":"g1@g.us","name":"Promos"}]}`, rec.Body.String())

	rec = do(t, newTestServer(&mockProcessor{}), http.MethodGet, "/api/groups", "")
	assert.JSONEq(t, `{"groups":[]}`, rec.Body.String())

	rec = do(t, newTestServer(&mockProcessor{groupsErr: errors.New("down")}), http.MethodGet, "/api/groups", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportHandler(t *testing.T) {
	body := `{"offers":[{"id":"MLB1","title":"Fone","permalink":"https://x.example/MLB1","price":199.9}]}`
	h := newTestServer(&mockProcessor{})

	rec := do(t, h, http.MethodPost, "/api/export?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "MLB1,,Fone,199.90")

	rec = do(t, h, http.MethodPost, "/api/export?format=xlsx", body)
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	title, err := f.GetCellValue("Offers", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Fone", title)

	rec = do(t, h, http.MethodPost, "/api/export?format=pdf", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/scrape", nil)
	req.Header.Set("Origin", "https://painel.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newTestServer(&mockProcessor{}).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
