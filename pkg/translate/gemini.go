package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements the Translator interface using the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *logrus.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if apiKey == "" {
		return nil, errors.New("gemini engine needs an API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

// Translate translates text with a single content generation call.
func (c *GeminiClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	prompt, err := buildPrompt(EngineGemini, text, sourceLang, targetLang, mode)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"model":       c.model,
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"mode":        mode,
	}).Debug("Translating text with Gemini")

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", engineErr(EngineGemini, "translate", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", engineErr(EngineGemini, "translate", errors.New("no translation returned"))
	}
	return out, nil
}

// CheckHealth fetches the model metadata.
func (c *GeminiClient) CheckHealth(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return engineErr(EngineGemini, "health", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return nil
}

// SupportedLanguages returns the languages the model handles well.
func (c *GeminiClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}
