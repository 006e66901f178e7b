package service

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/config"
	"github.com/dasmlab/gemmagate/pkg/translate"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type translateCall struct {
	text, source, target, mode string
}

// fakeEngine is a translate.Translator that records its calls.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []translateCall
	fn     func(text, source, target, mode string) (string, error)
	closed atomic.Bool
}

func (f *fakeEngine) Translate(ctx context.Context, text, source, target, mode string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, translateCall{text, source, target, mode})
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(text, source, target, mode)
	}
	return "[" + target + "] " + text, nil
}

func (f *fakeEngine) CheckHealth(ctx context.Context) error { return nil }

func (f *fakeEngine) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "fr"}, nil
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeEngine) Calls() []translateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]translateCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeDetector returns a fixed code and counts calls.
type fakeDetector struct {
	code  string
	calls atomic.Int32
}

func (d *fakeDetector) Detect(text string, candidates [2]string) string {
	d.calls.Add(1)
	return d.code
}

// countingFactory returns engine and records the requested engine types.
// EngineAuto is built as configured, or translate.DefaultEngine.
type countingFactory struct {
	mu         sync.Mutex
	engine     translate.Translator
	err        error
	configured translate.EngineType
	calls      int
	engines    []translate.EngineType
}

func (f *countingFactory) Build(ctx context.Context, e translate.EngineType) (translate.Translator, translate.EngineType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.engines = append(f.engines, e)
	built := e
	if built == translate.EngineAuto {
		built = f.configured
	}
	if built == translate.EngineAuto {
		built = translate.DefaultEngine
	}
	if f.err != nil {
		return nil, built, f.err
	}
	return f.engine, built, nil
}

func (f *countingFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *countingFactory) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func pairConfig(a, b string) *config.Provider {
	return config.Static(config.Config{
		ModelSize:   "4b",
		Languages:   [2]string{a, b},
		OutputMode:  "direct",
		BackendType: "auto",
	})
}

func newTestResolver(engine translate.Translator, detector *fakeDetector, opts ...ResolverOption) (*Resolver, *countingFactory) {
	factory := &countingFactory{engine: engine}
	cache := NewEngineCache(factory.Build, quietLogger())
	opts = append([]ResolverOption{WithLogger(quietLogger())}, opts...)
	return NewResolver(pairConfig("en", "fr"), detector, cache, opts...), factory
}
