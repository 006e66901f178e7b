package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Modes understood by the engines. The mode is an opaque hint for callers;
// each engine decides which modes it can honor.
const (
	// ModeDirect asks for the translation only.
	ModeDirect = "direct"
	// ModeExplain asks for the translation followed by short translator notes.
	ModeExplain = "explain"
)

var (
	// ErrUnsupportedMode is returned when an engine cannot honor the requested mode.
	ErrUnsupportedMode = errors.New("unsupported translation mode")
	// ErrUnavailable is returned when the backend cannot be reached or is not ready.
	ErrUnavailable = errors.New("translation backend unavailable")
)

// Translator defines the interface for translation engines.
// One instance is built per process and shared by all requests, so
// implementations must be safe for concurrent use.
type Translator interface {
	// Translate translates text from source language to target language.
	// sourceLang and targetLang are ISO 639-1 style codes (e.g., "en", "fr").
	Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error)

	// CheckHealth verifies that the translation backend is ready and operational.
	CheckHealth(ctx context.Context) error

	// SupportedLanguages returns a list of language codes supported by this backend.
	SupportedLanguages(ctx context.Context) ([]string, error)
}

// EngineError records which engine operation failed.
type EngineError struct {
	Engine EngineType
	Op     string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(engine EngineType, op string, err error) error {
	return &EngineError{Engine: engine, Op: op, Err: err}
}

// checkMode rejects anything but the direct mode for engines that only
// return a plain translation.
func checkMode(engine EngineType, mode string) error {
	if mode == "" || mode == ModeDirect {
		return nil
	}
	return engineErr(engine, "translate", fmt.Errorf("%w: %q", ErrUnsupportedMode, mode))
}

// LanguageMapper handles conversion between different language code formats.
// Requests may carry BCP 47 tags like "fr-CA" or "pt_BR", while MT backends
// typically use ISO 639-1 codes like "fr" and "pt".
type LanguageMapper struct{}

// NewLanguageMapper creates a new language mapper instance.
func NewLanguageMapper() *LanguageMapper {
	return &LanguageMapper{}
}

// ToBackendCode converts a request language code to backend format.
// Examples:
//   - "EN" -> "en"
//   - "fr-CA" -> "fr"
//   - "en_US" -> "en"
func (lm *LanguageMapper) ToBackendCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}

// commonLanguages is the list reported by engines that cannot enumerate
// their own language support.
var commonLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko",
	"ar", "hi", "tr", "pl", "nl", "sv", "da", "fi", "no", "cs",
	"ro", "hu", "bg", "hr", "sk", "sl", "et", "lv", "lt", "el",
	"uk", "he", "id", "th", "vi", "fa", "bn", "ur", "ms", "sw",
}

func copyLanguages() []string {
	out := make([]string, len(commonLanguages))
	copy(out, commonLanguages)
	return out
}
