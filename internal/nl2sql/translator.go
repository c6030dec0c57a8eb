package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nlquery/nlquery/internal/config"
)

var ErrNoText = errors.New("no text response from model")

type Request struct {
	Schema          string
	NaturalLanguage string
}

type Result struct {
	SQL      string
	Provider string
	Model    string
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	Dialect    Dialect
	HTTPClient *http.Client
}

// New builds the translator for the configured provider. Each call is a
// single attempt; SDK retries are disabled.
func New(cfg config.AIConfig, dialect Dialect) (Translator, error) {
	opts := Options{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		Dialect:   dialect,
	}
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropicTranslator(opts)
	case config.ProviderOpenAI:
		return NewOpenAITranslator(opts)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
