package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

type Config struct {
	Port      string
	ProjectID string

	GeminiAPIKey string
	GeminiModel  string

	WhapiToken       string
	WhapiBaseURL     string
	WhapiInterval    time.Duration
	WhapiSendLimit   int
	WhapiMinCooldown time.Duration
	MaxSentHistory   int

	MaxItems        int
	MaxRetries      int
	BackoffBase     time.Duration
	PolitenessDelay time.Duration
	ScrapeTimeout   time.Duration
	FetchMode       string
	AllowedDomains  []string
	CORSOrigins     []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		slog.Warn("GOOGLE_CLOUD_PROJECT not set, post history will be kept in memory")
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, AI headlines and post frequency control are disabled")
	}

	whapiToken := os.Getenv("WHAPI_TOKEN")
	if whapiToken == "" {
		slog.Warn("WHAPI_TOKEN not set, WhatsApp dispatch will be skipped")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	fetchMode := strings.ToLower(envOr("FETCH_MODE", FetchModeHTTP))
	if fetchMode != FetchModeHTTP && fetchMode != FetchModeBrowser {
		return nil, fmt.Errorf("invalid FETCH_MODE %q: must be %q or %q", fetchMode, FetchModeHTTP, FetchModeBrowser)
	}

	cfg := &Config{
		Port:         port,
		ProjectID:    projectID,
		GeminiAPIKey: geminiAPIKey,
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		WhapiToken:   whapiToken,
		WhapiBaseURL: strings.TrimSuffix(envOr("WHAPI_BASE_URL", "https://gate.whapi.cloud"), "/"),
		FetchMode:    fetchMode,
		AllowedDomains: splitList(envOr("ALLOWED_DOMAINS",
			"lista.mercadolivre.com.br,www.mercadolivre.com.br,mercadolivre.com.br,produto.mercadolivre.com.br")),
		CORSOrigins: splitList(envOr("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.WhapiInterval, err = durationEnv("WHAPI_INTERVAL", "5s"); err != nil {
		return nil, err
	}
	if cfg.WhapiMinCooldown, err = durationEnv("WHAPI_MIN_COOLDOWN", "30m"); err != nil {
		return nil, err
	}
	if cfg.BackoffBase, err = durationEnv("BACKOFF_BASE", "1.5s"); err != nil {
		return nil, err
	}
	if cfg.PolitenessDelay, err = durationEnv("POLITENESS_DELAY", "600ms"); err != nil {
		return nil, err
	}
	if cfg.ScrapeTimeout, err = durationEnv("SCRAPE_TIMEOUT", "5m"); err != nil {
		return nil, err
	}
	if cfg.WhapiSendLimit, err = intEnv("WHAPI_SEND_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.MaxItems, err = intEnv("MAX_ITEMS", 300); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = intEnv("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MaxSentHistory, err = intEnv("MAX_SENT_HISTORY", 2000); err != nil {
		return nil, err
	}

	if cfg.MaxItems < 1 || cfg.MaxItems > 1000 {
		return nil, fmt.Errorf("invalid MAX_ITEMS %d: must be between 1 and 1000", cfg.MaxItems)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("invalid MAX_RETRIES %d: must be at least 1", cfg.MaxRetries)
	}
	if cfg.WhapiSendLimit < 1 {
		return nil, fmt.Errorf("invalid WHAPI_SEND_LIMIT %d: must be at least 1", cfg.WhapiSendLimit)
	}
	if cfg.MaxSentHistory < 0 {
		return nil, fmt.Errorf("invalid MAX_SENT_HISTORY %d: must not be negative", cfg.MaxSentHistory)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key, fallback string) (time.Duration, error) {
	raw := envOr(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
