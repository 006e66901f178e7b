package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// DefaultOpenAIModel is the model requested from OpenAI-compatible servers.
const DefaultOpenAIModel = "translategemma:4b"

// OpenAIClient implements the Translator interface against an
// OpenAI-compatible chat completion endpoint, such as vLLM or Ollama serving
// the translation model.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// NewOpenAIClient creates a client for the chat endpoint at baseURL
// (e.g. http://localhost:11434/v1). An empty baseURL targets api.openai.com.
func NewOpenAIClient(baseURL, apiKey, model string, logger *logrus.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" && apiKey == "" {
		return nil, errors.New("openai engine needs a base URL or an API key")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

// Translate translates text with a single chat completion.
func (c *OpenAIClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	prompt, err := buildPrompt(EngineOpenAI, text, sourceLang, targetLang, mode)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"model":       c.model,
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"mode":        mode,
		"text_length": len(text),
	}).Debug("Translating text with chat completion")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", engineErr(EngineOpenAI, "translate", fmt.Errorf("api error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
		}
		return "", engineErr(EngineOpenAI, "translate", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if len(resp.Choices) == 0 {
		return "", engineErr(EngineOpenAI, "translate", errors.New("no translation returned"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CheckHealth lists the served models and verifies ours is among them.
func (c *OpenAIClient) CheckHealth(ctx context.Context) error {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return engineErr(EngineOpenAI, "health", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return engineErr(EngineOpenAI, "health", fmt.Errorf("%w: model %q not served", ErrUnavailable, c.model))
}

// SupportedLanguages returns the languages the model was trained on.
func (c *OpenAIClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}
