package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/config"
	"github.com/dasmlab/gemmagate/pkg/language"
)

const recordTimeout = 5 * time.Second

// ConfigProvider returns the active configuration snapshot.
type ConfigProvider interface {
	Config() config.Config
}

// Recorder stores completed translations.
type Recorder interface {
	Record(ctx context.Context, r *Result) error
}

// Request is one translation request as seen by the resolver.
type Request struct {
	Text    string
	Source  Selector
	Target  Selector
	Mode    string
	Backend Selector
}

// Languages is a resolved language pair. Source and Target always differ.
type Languages struct {
	Source string
	Target string
}

// Result is a completed translation.
type Result struct {
	ID          string
	Text        string
	Translation string
	Source      string
	SourceName  string
	Target      string
	TargetName  string
	Backend     string
	Mode        string
	Duration    time.Duration
	CompletedAt time.Time
}

// Resolver turns requests into results using the configured language pair,
// the detector and the shared engine.
type Resolver struct {
	config   ConfigProvider
	detector language.Detector
	engines  *EngineCache
	recorder Recorder
	logger   *logrus.Logger
}

// ResolverOption configures optional Resolver collaborators.
type ResolverOption func(*Resolver)

// WithRecorder records every successful translation.
func WithRecorder(r Recorder) ResolverOption {
	return func(res *Resolver) { res.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) ResolverOption {
	return func(res *Resolver) { res.logger = l }
}

// NewResolver creates a Resolver.
func NewResolver(cfg ConfigProvider, detector language.Detector, engines *EngineCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		config:   cfg,
		detector: detector,
		engines:  engines,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.New()
	}
	return r
}

// Engines returns the engine cache used by the resolver.
func (r *Resolver) Engines() *EngineCache { return r.engines }

// Config returns the active configuration snapshot.
func (r *Resolver) Config() config.Config { return r.config.Config() }

// Translate resolves and runs req. Every failure is a *Error.
func (r *Resolver) Translate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := r.translate(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = string(ReasonOf(err))
	}
	translationRequestsTotal.WithLabelValues(outcome).Inc()
	translationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		entry := r.logger.WithError(err).WithFields(logrus.Fields{
			"reason":  outcome,
			"source":  req.Source.String(),
			"target":  req.Target.String(),
			"backend": req.Backend.String(),
		})
		if ReasonOf(err).ClientError() {
			entry.Debug("Translation request rejected")
		} else {
			entry.Error("Translation request failed")
		}
		return nil, err
	}

	res.Duration = time.Since(start)
	if r.recorder != nil {
		// Record even if the caller went away after the translation finished.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		rerr := r.recorder.Record(rctx, res)
		cancel()
		if rerr != nil {
			r.logger.WithError(rerr).WithFields(logrus.Fields{
				"id": res.ID,
			}).Warn("Failed to record translation")
		}
	}
	return res, nil
}

func (r *Resolver) translate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, newError(ReasonInvalidInput, nil, "Text cannot be empty")
	}

	cfg := r.config.Config()
	langs, err := r.Resolve(req, cfg)
	if err != nil {
		return nil, err
	}

	engine, built, err := r.engines.Acquire(ctx, req.Backend)
	if err != nil {
		return nil, newError(ReasonEngineConstruction, err, "Translation engine unavailable: %v", err)
	}

	out, err := engine.Translate(ctx, req.Text, langs.Source, langs.Target, req.Mode)
	if err != nil {
		return nil, newError(ReasonEngineFailure, err, "Translation failed: %v", err)
	}

	return &Result{
		ID:          uuid.NewString(),
		Text:        req.Text,
		Translation: out,
		Source:      langs.Source,
		SourceName:  language.Name(langs.Source),
		Target:      langs.Target,
		TargetName:  language.Name(langs.Target),
		Backend:     string(built),
		Mode:        req.Mode,
		CompletedAt: time.Now(),
	}, nil
}

// Resolve computes the concrete language pair for req under cfg. It calls the
// detector only when the source is unspecified and never touches the engine.
func (r *Resolver) Resolve(req Request, cfg config.Config) (Languages, error) {
	source, ok := req.Source.Value()
	if !ok {
		source = r.detector.Detect(req.Text, cfg.Languages)
	}

	target, ok := req.Target.Value()
	if !ok {
		target = otherOf(cfg.Languages, source)
	}

	if source == target {
		return Languages{}, newError(ReasonSameLanguage, nil,
			"Source and target languages are the same (%s)", source)
	}
	return Languages{Source: source, Target: target}, nil
}

// otherOf returns the member of pair that is not source. Sources outside the
// pair map to the first member.
func otherOf(pair [2]string, source string) string {
	if source == pair[0] {
		return pair[1]
	}
	return pair[0]
}

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
