package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/vporoshin/evisearch/internal/model"
)

// openAIBackend implements Backend over the OpenAI API
type openAIBackend struct {
	client *openai.Client
	cfg    model.LLMConfig
}

func newOpenAIBackend(cfg model.LLMConfig, apiKey string) (*openAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

func (b *openAIBackend) Name() string {
	return "openai"
}

func (b *openAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := b.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	req := openai.ChatCompletionRequest{
		Model: b.modelName(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", b.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrProvider)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (b *openAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embModel := b.cfg.EmbeddingModel
	if embModel == "" {
		embModel = string(openai.SmallEmbedding3)
	}

	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(embModel),
	})
	if err != nil {
		return nil, b.classify(ctx, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProvider, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (b *openAIBackend) modelName() string {
	if b.cfg.Model != "" {
		return b.cfg.Model
	}
	return openai.GPT4oMini
}

// classify maps go-openai errors onto the package taxonomy
func (b *openAIBackend) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: openai: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	// Transport-level failures count as unavailable
	return fmt.Errorf("%w: openai: %v", ErrOverloaded, err)
}
