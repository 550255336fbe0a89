// Package llm wraps the language-model providers behind a single client
// interface. Provider selection is validated at the engine boundary; the
// rest of the engine only sees Client and Embedder.
package llm

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/pkg/config"
)

// GenerateRequest is a single bounded-time completion call.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSONOnly asks the provider for a structured JSON response where the
	// provider supports response formats.
	JSONOnly bool
}

// Client generates text from a prompt. Implementations must respect the
// context deadline and surface failures as typed upstream errors.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Ping(ctx context.Context) error
	Model() string
}

// Embedder produces embedding vectors for semantic retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingModel() string
}

// Factory builds provider clients from validated model references.
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// Client returns a generation client for the given provider/model pair.
func (f *Factory) Client(ref models.ModelRef) (Client, error) {
	switch ref.Provider {
	case models.ProviderOpenAI:
		if f.cfg.OpenAI.APIKey == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, "openai api key not configured")
		}
		return NewOpenAIClient(f.cfg.OpenAI, ref.Model, f.logger), nil
	case models.ProviderOllama:
		return NewOllamaClient(f.cfg.Ollama, ref.Model, f.logger), nil
	default:
		return nil, apperr.New(apperr.CodeInvalidInput, "unknown provider %q", ref.Provider)
	}
}

// Embedder returns the embedding client for the given provider.
func (f *Factory) Embedder(provider models.Provider) (Embedder, error) {
	switch provider {
	case models.ProviderOpenAI:
		if f.cfg.OpenAI.APIKey == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, "openai api key not configured")
		}
		return NewOpenAIClient(f.cfg.OpenAI, "", f.logger), nil
	case models.ProviderOllama:
		return NewOllamaClient(f.cfg.Ollama, "", f.logger), nil
	default:
		return nil, apperr.New(apperr.CodeInvalidInput, "unknown provider %q", provider)
	}
}

// classify maps transport failures onto the upstream error taxonomy so
// callers can distinguish timeouts from unreachable providers.
func classify(err error, provider string) error {
	if err == nil {
		return nil
	}
	var apErr *apperr.Error
	if errors.As(err, &apErr) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.CodeUpstreamTimeout, err, "%s request timed out", provider)
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &netErr) && netErr.Timeout():
		return apperr.Wrap(apperr.CodeUpstreamTimeout, err, "%s request timed out", provider)
	default:
		return apperr.Wrap(apperr.CodeUpstreamUnavailable, err, "%s request failed", provider)
	}
}
