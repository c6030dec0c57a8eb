package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nlquery/nlquery/internal/config"
)

const providerOpenAI = "openai-compatible"

type OpenAITranslator struct {
	client    openai.Client
	apiKey    string
	model     string
	maxTokens int64
	dialect   Dialect
}

func NewOpenAITranslator(opts Options) (*OpenAITranslator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = config.DefaultOpenAIModel
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

	return &OpenAITranslator{
		client:    openai.NewClient(clientOpts...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: int64(maxTokens),
		dialect:   opts.Dialect,
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t.apiKey == "" {
		return Result{}, fmt.Errorf("api key is required")
	}

	completion, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(t.model),
		MaxCompletionTokens: openai.Int(t.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(t.dialect)),
			openai.UserMessage(UserPrompt(req)),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, ErrNoText
	}
	message := completion.Choices[0].Message
	sqlText := strings.TrimSpace(message.Content)
	if sqlText == "" {
		if refusal := strings.TrimSpace(message.Refusal); refusal != "" {
			return Result{}, fmt.Errorf("%w: model refused: %s", ErrNoText, refusal)
		}
		return Result{}, ErrNoText
	}

	return Result{
		SQL:      sqlText,
		Provider: providerOpenAI,
		Model:    t.model,
	}, nil
}
