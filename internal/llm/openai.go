package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/pkg/config"
)

// OpenAIClient talks to the OpenAI chat and embedding APIs.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	maxTokens      int
	temperature    float64
	logger         *zap.Logger
}

func NewOpenAIClient(cfg config.OpenAIConfig, model string, logger *zap.Logger) *OpenAIClient {
	if model == "" || model == "default" {
		model = cfg.Model
	}
	return &OpenAIClient{
		client:         openai.NewClient(cfg.APIKey),
		model:          model,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		logger:         logger,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
	if req.JSONOnly {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.logger.Error("OpenAI completion failed", zap.Error(err), zap.String("model", c.model))
		return "", classify(err, "openai")
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.CodeUpstreamUnavailable, "openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return classify(err, "openai")
	}
	return nil
}

func (c *OpenAIClient) EmbeddingModel() string { return c.embeddingModel }

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, classify(err, "openai")
	}
	if len(resp.Data) == 0 {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, "openai returned no embedding")
	}
	return resp.Data[0].Embedding, nil
}
