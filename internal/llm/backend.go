package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/vporoshin/evisearch/internal/model"
)

// Backend is one inference capability reachable through a credential slot.
// Implementations map their native failures onto the package error taxonomy.
type Backend interface {
	// Name returns the backend name for logs
	Name() string

	// Complete sends a prompt and returns the completion text
	Complete(ctx context.Context, prompt string) (string, error)

	// Embed returns one vector per input text. Backends without an
	// embedding endpoint return ErrProvider.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewBackend creates a backend for one credential slot based on configuration
func NewBackend(cfg model.LLMConfig, apiKey string) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIBackend(cfg, apiKey)
	case "anthropic", "claude":
		return newAnthropicBackend(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unknown completion provider: %s (supported: openai, anthropic)", cfg.Provider)
	}
}
