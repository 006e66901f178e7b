package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	breakerTripAfter   = 5
	breakerOpenTimeout = 30 * time.Second
	breakerInterval    = time.Minute
)

// BreakerTranslator stops calling a remote engine after repeated failures
// and fails fast until the backend recovers.
type BreakerTranslator struct {
	inner  Translator
	engine EngineType
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerTranslator wraps inner. Unsupported modes and cancelled calls do
// not count as backend failures.
func NewBreakerTranslator(inner Translator, engine EngineType, logger *logrus.Logger) *BreakerTranslator {
	if logger == nil {
		logger = logrus.New()
	}
	breakerState.WithLabelValues(string(engine)).Set(0)

	settings := gobreaker.Settings{
		Name:        string(engine),
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.WithFields(logrus.Fields{
				"engine": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("Engine circuit breaker changed state")
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrUnsupportedMode) ||
				errors.Is(err, context.Canceled)
		},
	}

	return &BreakerTranslator{
		inner:  inner,
		engine: engine,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Translate calls the wrapped engine through the breaker.
func (b *BreakerTranslator) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Translate(ctx, text, sourceLang, targetLang, mode)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", engineErr(b.engine, "translate", fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		return "", err
	}
	return out.(string), nil
}

// CheckHealth reports an open breaker as unavailable before probing the engine.
func (b *BreakerTranslator) CheckHealth(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return engineErr(b.engine, "health", fmt.Errorf("%w: circuit open", ErrUnavailable))
	}
	return b.inner.CheckHealth(ctx)
}

// SupportedLanguages delegates to the wrapped engine.
func (b *BreakerTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return b.inner.SupportedLanguages(ctx)
}

// Close closes the wrapped engine when it holds resources.
func (b *BreakerTranslator) Close() error {
	if c, ok := b.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
