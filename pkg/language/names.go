// Package language provides language names, the supported language list and
// candidate-restricted language detection.
package language

import (
	"sort"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// supportedCodes are the languages the translation model was trained on.
var supportedCodes = []string{
	"ar", "bg", "bn", "ca", "cs", "da", "de", "el", "en", "es",
	"et", "fa", "fi", "fil", "fr", "gu", "he", "hi", "hr", "hu",
	"id", "it", "ja", "kn", "ko", "lt", "lv", "ml", "mr", "ms",
	"nl", "no", "pa", "pl", "pt", "ro", "ru", "sk", "sl", "sr",
	"sv", "sw", "ta", "te", "th", "tr", "uk", "ur", "vi", "zh",
	"zh-TW", "pt-BR", "fr-CA", "es-MX", "zu",
}

var namer = display.English.Tags()

// Name returns the English name of a language code. Unknown codes return
// the code itself and the empty code returns "Unknown".
func Name(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return code
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return code
}

// Normalize returns the canonical BCP 47 form of code ("EN" -> "en",
// "pt_br" -> "pt-BR"). Codes that do not parse are returned lower-cased.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(code)
	}
	return tag.String()
}

// Supported returns the supported languages keyed by code.
func Supported() map[string]string {
	out := make(map[string]string, len(supportedCodes))
	for _, code := range supportedCodes {
		out[code] = Name(code)
	}
	return out
}

// SupportedCodes returns the supported language codes in sorted order.
func SupportedCodes() []string {
	codes := make([]string, len(supportedCodes))
	copy(codes, supportedCodes)
	sort.Strings(codes)
	return codes
}

// IsSupported reports whether code is one of the supported languages.
func IsSupported(code string) bool {
	n := Normalize(code)
	for _, c := range supportedCodes {
		if c == n {
			return true
		}
	}
	return false
}
