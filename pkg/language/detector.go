package language

import (
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
	"github.com/sirupsen/logrus"
)

// maxDetectionLength caps the text handed to the detector; longer inputs do
// not improve accuracy.
const maxDetectionLength = 512

// Detector picks the language of a text among a pair of candidates.
type Detector interface {
	Detect(text string, candidates [2]string) string
}

// LinguaDetector detects languages with lingua-go. Detectors are built per
// candidate pair on first use and reused afterwards.
type LinguaDetector struct {
	byCode    map[string]lingua.Language
	detectors sync.Map // pair key -> lingua.LanguageDetector
	all       lingua.LanguageDetector
	allOnce   sync.Once
	warned    sync.Map // pair key -> struct{}
	logger    *logrus.Logger
}

// NewLinguaDetector creates a detector.
func NewLinguaDetector(logger *logrus.Logger) *LinguaDetector {
	if logger == nil {
		logger = logrus.New()
	}
	byCode := make(map[string]lingua.Language)
	for _, lang := range lingua.AllLanguages() {
		byCode[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}
	return &LinguaDetector{byCode: byCode, logger: logger}
}

// Detect returns the candidate text is most likely written in. When the
// candidates are not both known to lingua, detection runs over all languages
// and may return a code outside the pair. Undetectable text yields the first
// candidate.
func (d *LinguaDetector) Detect(text string, candidates [2]string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxDetectionLength {
		text = string(r[:maxDetectionLength])
	}
	if text == "" {
		return candidates[0]
	}

	first, okFirst := d.lookup(candidates[0])
	second, okSecond := d.lookup(candidates[1])

	if okFirst && okSecond && first != second {
		lang, ok := d.pairDetector(first, second).DetectLanguageOf(text)
		if !ok {
			d.logger.WithFields(logrus.Fields{
				"candidates": candidates,
			}).Debug("Language undetermined, using first candidate")
			return candidates[0]
		}
		if lang == first {
			return candidates[0]
		}
		return candidates[1]
	}

	d.warnFallback(candidates, okFirst, okSecond)
	lang, ok := d.allDetector().DetectLanguageOf(text)
	if !ok {
		return candidates[0]
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	for _, c := range candidates {
		if base(c) == code {
			return c
		}
	}
	return code
}

func (d *LinguaDetector) lookup(code string) (lingua.Language, bool) {
	lang, ok := d.byCode[base(code)]
	return lang, ok
}

func (d *LinguaDetector) pairDetector(a, b lingua.Language) lingua.LanguageDetector {
	key := a.String() + "|" + b.String()
	if det, ok := d.detectors.Load(key); ok {
		return det.(lingua.LanguageDetector)
	}
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(a, b).
		Build()
	actual, _ := d.detectors.LoadOrStore(key, det)
	return actual.(lingua.LanguageDetector)
}

// warnFallback logs once per pair that detection is leaving the pair models.
func (d *LinguaDetector) warnFallback(candidates [2]string, okFirst, okSecond bool) bool {
	key := candidates[0] + "|" + candidates[1]
	if _, loaded := d.warned.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	var unknown []string
	if !okFirst {
		unknown = append(unknown, candidates[0])
	}
	if !okSecond {
		unknown = append(unknown, candidates[1])
	}
	d.logger.WithFields(logrus.Fields{
		"candidates": candidates,
		"unknown":    unknown,
	}).Warn("Language pair not covered by pair detection, falling back to all-language models")
	return true
}

// allDetector loads the models of every language lingua supports. They are
// several hundred megabytes once loaded and stay resident for the process.
func (d *LinguaDetector) allDetector() lingua.LanguageDetector {
	d.allOnce.Do(func() {
		d.logger.Info("Building language detector for all languages")
		d.all = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return d.all
}

// base strips region and script subtags: "pt-BR" -> "pt".
func base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx >= 0 {
		code = code[:idx]
	}
	return code
}
