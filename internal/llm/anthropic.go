package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vporoshin/evisearch/internal/model"
)

// anthropicBackend implements Backend over the Anthropic Messages API
type anthropicBackend struct {
	client sdk.Client
	cfg    model.LLMConfig
}

func newAnthropicBackend(cfg model.LLMConfig, apiKey string) (*anthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicBackend{
		client: sdk.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (b *anthropicBackend) Name() string {
	return "anthropic"
}

func (b *anthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := int64(b.cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1000
	}

	msg, err := b.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(b.modelName()),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", b.classify(ctx, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("%w: anthropic returned no text content", ErrProvider)
	}
	return out, nil
}

// Embed is unsupported: Anthropic exposes no embedding endpoint, so scoring
// callers fall back to the deterministic scorer.
func (b *anthropicBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: anthropic: embeddings not supported", ErrProvider)
}

func (b *anthropicBackend) modelName() string {
	if b.cfg.Model != "" {
		return b.cfg.Model
	}
	return "claude-haiku-4-5"
}

func (b *anthropicBackend) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: anthropic: %v", ErrTimeout, err)
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}

	return fmt.Errorf("%w: anthropic: %v", ErrOverloaded, err)
}
