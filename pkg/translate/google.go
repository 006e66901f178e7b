package translate

import (
	"context"
	"errors"
	"fmt"

	gtranslate "cloud.google.com/go/translate"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleClient implements the Translator interface using Google Cloud Translation.
type GoogleClient struct {
	client *gtranslate.Client
	logger *logrus.Logger
}

// NewGoogleClient creates a Cloud Translation client. projectID, when set, is
// billed for quota. credentials is an optional service account key file;
// application default credentials are used otherwise.
func NewGoogleClient(ctx context.Context, projectID, credentials string, logger *logrus.Logger) (*GoogleClient, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := googleClientOptions(projectID, credentials)

	client, err := gtranslate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google translate client: %w", err)
	}
	return &GoogleClient{client: client, logger: logger}, nil
}

func googleClientOptions(projectID, credentials string) []option.ClientOption {
	var opts []option.ClientOption
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	return opts
}

// Translate translates text with Cloud Translation in plain text format.
func (c *GoogleClient) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	if err := checkMode(EngineGoogle, mode); err != nil {
		return "", err
	}

	target, err := language.Parse(targetLang)
	if err != nil {
		return "", engineErr(EngineGoogle, "translate", fmt.Errorf("invalid target language %q: %w", targetLang, err))
	}
	source, err := language.Parse(sourceLang)
	if err != nil {
		return "", engineErr(EngineGoogle, "translate", fmt.Errorf("invalid source language %q: %w", sourceLang, err))
	}

	translations, err := c.client.Translate(ctx, []string{text}, target, &gtranslate.Options{
		Source: source,
		Format: gtranslate.Text,
	})
	if err != nil {
		return "", engineErr(EngineGoogle, "translate", err)
	}
	if len(translations) == 0 {
		return "", engineErr(EngineGoogle, "translate", errors.New("no translation returned"))
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}).Debug("Translation completed")
	return translations[0].Text, nil
}

// CheckHealth lists supported languages as a connectivity probe.
func (c *GoogleClient) CheckHealth(ctx context.Context) error {
	_, err := c.SupportedLanguages(ctx)
	return err
}

// SupportedLanguages returns the language codes Cloud Translation supports.
func (c *GoogleClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	langs, err := c.client.SupportedLanguages(ctx, language.English)
	if err != nil {
		return nil, engineErr(EngineGoogle, "languages", fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		codes = append(codes, l.Tag.String())
	}
	return codes, nil
}

// Close releases the underlying client connection.
func (c *GoogleClient) Close() error {
	return c.client.Close()
}
