package service

import (
	"time"

	"github.com/dasmlab/gemmagate/pkg/translate"
)

// TranslateRequest is the transport shape of a translation request shared by
// the HTTP, gRPC and Lambda entry points.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Backend    string `json:"backend,omitempty"`
}

// Request converts the transport fields. Missing languages and backend are
// unspecified and a missing mode is direct.
func (t TranslateRequest) Request() Request {
	mode := t.Mode
	if mode == "" {
		mode = translate.ModeDirect
	}
	return Request{
		Text:    t.Text,
		Source:  ParseSelector(t.SourceLang),
		Target:  ParseSelector(t.TargetLang),
		Mode:    mode,
		Backend: ParseSelector(t.Backend),
	}
}

// TranslateResponse is the transport shape of a Result.
type TranslateResponse struct {
	ID                 string  `json:"id"`
	Translation        string  `json:"translation"`
	DetectedSource     string  `json:"detected_source"`
	DetectedSourceName string  `json:"detected_source_name"`
	TargetLang         string  `json:"target_lang"`
	TargetLangName     string  `json:"target_lang_name"`
	Backend            string  `json:"backend,omitempty"`
	DurationSeconds    float64 `json:"duration_seconds"`
	CompletedAt        string  `json:"completed_at"`
}

// NewTranslateResponse renders r for the wire.
func NewTranslateResponse(r *Result) TranslateResponse {
	return TranslateResponse{
		ID:                 r.ID,
		Translation:        r.Translation,
		DetectedSource:     r.Source,
		DetectedSourceName: r.SourceName,
		TargetLang:         r.Target,
		TargetLangName:     r.TargetName,
		Backend:            r.Backend,
		DurationSeconds:    r.Duration.Seconds(),
		CompletedAt:        r.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ErrorResponse is the transport shape of a failure.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

// NewErrorResponse renders err. Unclassified errors are reported as engine
// failures.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Detail: err.Error(), Reason: string(ReasonOf(err))}
}
