package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultArgosURL is the default base URL for an Argos Translate HTTP service.
	DefaultArgosURL = "http://127.0.0.1:5000"
	// DefaultArgosTimeout is the default timeout for HTTP requests.
	DefaultArgosTimeout = 30 * time.Second
)

// ArgosClient implements the Translator interface against an HTTP service
// wrapping Argos Translate.
type ArgosClient struct {
	baseURL    string
	httpClient *http.Client
	mapper     *LanguageMapper
	logger     *logrus.Logger
}

// NewArgosClient creates a new Argos Translate client.
func NewArgosClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *ArgosClient {
	if baseURL == "" {
		baseURL = DefaultArgosURL
	}
	if timeout <= 0 {
		timeout = DefaultArgosTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ArgosClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		mapper:     NewLanguageMapper(),
		logger:     logger,
	}
}

type argosTranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type argosTranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate translates text from source language to target language.
func (c *ArgosClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	if err := checkMode(EngineArgos, mode); err != nil {
		return "", err
	}

	payload := argosTranslateRequest{
		Text:       text,
		SourceLang: c.mapper.ToBackendCode(sourceLang),
		TargetLang: c.mapper.ToBackendCode(targetLang),
	}
	c.logger.WithFields(logrus.Fields{
		"source_lang": payload.SourceLang,
		"target_lang": payload.TargetLang,
		"text_length": len(text),
	}).Debug("Translating text with Argos")

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&payload); err != nil {
		return "", engineErr(EngineArgos, "translate", fmt.Errorf("encode request: %w", err))
	}

	url := c.baseURL + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return "", engineErr(EngineArgos, "translate", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Translation request failed")
		return "", engineErr(EngineArgos, "translate", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("Translation request returned non-OK status")
		return "", engineErr(EngineArgos, "translate", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes)))
	}

	var argosResp argosTranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&argosResp); err != nil {
		return "", engineErr(EngineArgos, "translate", fmt.Errorf("decode response: %w", err))
	}

	c.logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Translation completed")

	return argosResp.TranslatedText, nil
}

// CheckHealth verifies that the Argos service answers on /health.
func (c *ArgosClient) CheckHealth(ctx context.Context) error {
	url := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return engineErr(EngineArgos, "health", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engineErr(EngineArgos, "health", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engineErr(EngineArgos, "health", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode))
	}
	return nil
}

// SupportedLanguages returns the languages Argos ships packages for.
func (c *ArgosClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}
