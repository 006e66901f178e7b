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
	// DefaultLibreTranslateURL is the default base URL for LibreTranslate API.
	DefaultLibreTranslateURL = "http://localhost:5000"
	// DefaultLibreTranslateTimeout is the default timeout for HTTP requests.
	DefaultLibreTranslateTimeout = 5 * time.Minute
)

// LibreTranslateClient implements the Translator interface using LibreTranslate.
// LibreTranslate is a self-hosted, open-source machine translation API.
type LibreTranslateClient struct {
	baseURL    string
	httpClient *http.Client
	mapper     *LanguageMapper
	logger     *logrus.Logger
}

// NewLibreTranslateClient creates a new LibreTranslate client.
// baseURL should point to the LibreTranslate server (default: http://localhost:5000).
func NewLibreTranslateClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *LibreTranslateClient {
	if baseURL == "" {
		baseURL = DefaultLibreTranslateURL
	}
	if timeout <= 0 {
		timeout = DefaultLibreTranslateTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &LibreTranslateClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		mapper:     NewLanguageMapper(),
		logger:     logger,
	}
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type libreTranslateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

type libreLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Translate translates text from source language to target language.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	if err := checkMode(EngineLibreTranslate, mode); err != nil {
		return "", err
	}

	source := c.mapper.ToBackendCode(sourceLang)
	target := c.mapper.ToBackendCode(targetLang)
	c.logger.WithFields(logrus.Fields{
		"source_lang": source,
		"target_lang": target,
		"text_length": len(text),
	}).Debug("Translating text with LibreTranslate")

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&libreTranslateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
	}); err != nil {
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("encode request: %w", err))
	}

	url := c.baseURL + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Translation request failed")
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("Translation request returned non-OK status")
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes)))
	}

	var ltResp libreTranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ltResp); err != nil {
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("decode response: %w", err))
	}
	if ltResp.Error != "" {
		return "", engineErr(EngineLibreTranslate, "translate", fmt.Errorf("backend error: %s", ltResp.Error))
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": source,
		"target_lang": target,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Translation completed")

	return ltResp.TranslatedText, nil
}

// CheckHealth verifies that LibreTranslate is ready and operational.
func (c *LibreTranslateClient) CheckHealth(ctx context.Context) error {
	_, err := c.languages(ctx)
	return err
}

// SupportedLanguages returns a list of language codes supported by LibreTranslate.
func (c *LibreTranslateClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	languages, err := c.languages(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(languages))
	for _, lang := range languages {
		codes = append(codes, lang.Code)
	}
	return codes, nil
}

func (c *LibreTranslateClient) languages(ctx context.Context) ([]libreLanguage, error) {
	url := c.baseURL + "/languages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, engineErr(EngineLibreTranslate, "languages", fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engineErr(EngineLibreTranslate, "languages", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, engineErr(EngineLibreTranslate, "languages", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode))
	}

	var languages []libreLanguage
	if err := json.NewDecoder(resp.Body).Decode(&languages); err != nil {
		return nil, engineErr(EngineLibreTranslate, "languages", fmt.Errorf("decode response: %w", err))
	}
	return languages, nil
}
