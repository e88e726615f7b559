package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pauljones0/meli-offers-bot/internal/export"
	"github.com/pauljones0/meli-offers-bot/internal/models"
	"github.com/pauljones0/meli-offers-bot/internal/processor"
	"github.com/pauljones0/meli-offers-bot/internal/validator"
)

const maxRequestBytes = 8 << 20

type Server struct {
	processor     processor.Processor
	scrapeTimeout time.Duration
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type exportRequest struct {
	Offers []models.Offer `json:"offers"`
}

func (s *Server) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.ScrapeHandler)
		r.Post("/export", s.ExportHandler)
		r.Get("/groups", s.GroupsHandler)
		r.Post("/send", s.SendHandler)
	})

	return r
}

// ScrapeHandler runs a scrape under the configured timeout. Offers collected
// before the timeout are still returned.
func (s *Server) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.ScrapeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.scrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scrapeTimeout)
		defer cancel()
	}

	res, err := s.processor.ScrapeOffers(ctx, req)
	if err != nil {
		respondProcessorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	filename := fmt.Sprintf("offers-%s.%s", time.Now().Format("20060102-150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var err error
	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, req.Offers)
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, req.Offers)
	}
	if err != nil {
		slog.Error("Export failed", "format", format, "error", err)
	}
}

func (s *Server) GroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.processor.ListGroups(r.Context())
	if err != nil {
		slog.Error("Failed to list groups", "error", err)
		respondError(w, http.StatusBadGateway, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req processor.DispatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.processor.Dispatch(r.Context(), req)
	if err != nil {
		respondProcessorError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondProcessorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processor.ErrInvalidRequest):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: validator.Messages(err)})
	case errors.Is(err, processor.ErrNoOffers):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		slog.Error("Request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
