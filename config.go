package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CouncilConfig is the immutable membership of one council. It is
// passed into the orchestrator at construction so independent councils
// (and tests) can run with different line-ups concurrently.
type CouncilConfig struct {
	// Members is the ordered list of models queried in Stage 1 and
	// asked to judge in Stage 2. Result ordering follows this order.
	Members []string

	// Chairman is the model that synthesizes the final answer. It does
	// not have to be a council member.
	Chairman string

	// TitleModel is the fast model used for conversation titles.
	TitleModel string

	// QueryTimeout bounds each Stage 1/2/3 model invocation.
	QueryTimeout time.Duration

	// TitleTimeout bounds the best-effort title generation call.
	TitleTimeout time.Duration
}

// Config is the full service configuration.
type Config struct {
	Council CouncilConfig

	// APIURL is the OpenRouter-compatible chat completions endpoint.
	APIURL string

	// APIKey authenticates against the endpoint. May be empty when the
	// endpoint is a local proxy that handles auth itself.
	APIKey string

	// DataDir is the directory for conversation storage.
	DataDir string

	// CORSAllowedOrigins restricts browser origins in production,
	// comma-separated in the environment since origins carry a scheme
	// and port. Empty means development mode (any localhost origin).
	CORSAllowedOrigins []string

	// MaxRequestBodySize is the maximum allowed request body size.
	MaxRequestBodySize int64

	// PageCacheTTL is the time-to-live for fetched URL content.
	PageCacheTTL time.Duration
}

// Defaults matching the production council line-up.
var defaultCouncilModels = []string{
	"openai/gpt-5.1",
	"google/gemini-3-pro-preview",
	"anthropic/claude-sonnet-4.5",
	"x-ai/grok-4",
}

const (
	defaultChairmanModel = "google/gemini-3-pro-preview"
	defaultTitleModel    = "google/gemini-2.5-flash"
	defaultAPIURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultDataDir       = "data/conversations"
)

// LoadConfig loads configuration from the environment, reading a .env
// file first if one is found. Returns an error if no API key is set.
func LoadConfig() (*Config, error) {
	// Load .env file - try multiple locations
	envLocations := []string{
		".env",    // Current directory
		"../.env", // Parent directory
	}

	envLoaded := false
	for _, envPath := range envLocations {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				log.Printf("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}

	if !envLoaded {
		log.Printf("Warning: .env file not found in any expected location")
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}

	cfg := &Config{
		Council: CouncilConfig{
			Members:      defaultCouncilModels,
			Chairman:     defaultChairmanModel,
			TitleModel:   defaultTitleModel,
			QueryTimeout: 120 * time.Second,
			TitleTimeout: 30 * time.Second,
		},
		APIURL:             defaultAPIURL,
		APIKey:             apiKey,
		DataDir:            defaultDataDir,
		MaxRequestBodySize: 1 << 20,
		PageCacheTTL:       5 * time.Minute,
	}

	if url := os.Getenv("OPENROUTER_API_URL"); url != "" {
		cfg.APIURL = url
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if models := splitAndTrim(os.Getenv("COUNCIL_MODELS"), ","); len(models) > 0 {
		cfg.Council.Members = models
	}
	if chairman := os.Getenv("CHAIRMAN_MODEL"); chairman != "" {
		cfg.Council.Chairman = chairman
	}
	if title := os.Getenv("TITLE_MODEL"); title != "" {
		cfg.Council.TitleModel = title
	}
	if origins := splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"), ","); len(origins) > 0 {
		cfg.CORSAllowedOrigins = origins
	}

	log.Println("Configuration loaded successfully")
	return cfg, nil
}

// splitAndTrim splits s on sep and drops empty entries.
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
