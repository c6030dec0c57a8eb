package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nlquery/nlquery/internal/config"
)

const providerAnthropic = "anthropic"

type AnthropicTranslator struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int64
	dialect   Dialect
}

func NewAnthropicTranslator(opts Options) (*AnthropicTranslator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = config.DefaultAnthropicModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &AnthropicTranslator{
		client:    anthropic.NewClient(clientOpts...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: int64(maxTokens),
		dialect:   opts.Dialect,
	}, nil
}

func (t *AnthropicTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t.apiKey == "" {
		return Result{}, fmt.Errorf("api key is required")
	}

	message, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: t.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt(t.dialect)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req))),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("request message: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return Result{
				SQL:      strings.TrimSpace(block.Text),
				Provider: providerAnthropic,
				Model:    t.model,
			}, nil
		}
	}
	return Result{}, ErrNoText
}
