package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/pkg/config"
)

// OllamaClient talks to a local Ollama instance over its HTTP API.
type OllamaClient struct {
	baseURL        string
	model          string
	embeddingModel string
	client         *http.Client
	logger         *zap.Logger
}

func NewOllamaClient(cfg config.OllamaConfig, model string, logger *zap.Logger) *OllamaClient {
	if model == "" || model == "default" {
		model = cfg.Model
	}
	return &OllamaClient{
		baseURL:        strings.TrimSuffix(cfg.URL, "/"),
		model:          model,
		embeddingModel: cfg.EmbeddingModel,
		client:         &http.Client{Timeout: 60 * time.Second},
		logger:         logger,
	}
}

func (c *OllamaClient) Model() string { return c.model }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	if req.JSONOnly {
		body.Format = "json"
	}

	var result ollamaGenerateResponse
	if err := c.post(ctx, "/api/generate", body, &result); err != nil {
		c.logger.Error("Ollama generation failed", zap.Error(err), zap.String("model", c.model))
		return "", err
	}
	return result.Response, nil
}

func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error building request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err, "ollama")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.CodeUpstreamUnavailable, "ollama health check returned %d", resp.StatusCode)
	}
	return nil
}

func (c *OllamaClient) EmbeddingModel() string { return c.embeddingModel }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResponse
	err := c.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: c.embeddingModel, Prompt: text}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, "ollama returned no embedding")
	}
	return result.Embedding, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "error building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err, "ollama")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return apperr.New(apperr.CodeUpstreamUnavailable,
			"ollama error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.CodeUpstreamUnavailable, err, "error decoding ollama response")
	}
	return nil
}
