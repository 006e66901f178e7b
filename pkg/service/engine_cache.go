package service

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/gemmagate/pkg/translate"
)

// EngineCache owns the process-wide translation engine. The engine is built
// on the first Acquire and reused by every later call, whatever backend they
// ask for.
type EngineCache struct {
	factory translate.Factory
	logger  *logrus.Logger

	engine  atomic.Pointer[cachedEngine]
	buildMu chan struct{} // one-slot semaphore guarding construction
	builds  atomic.Int64
}

type cachedEngine struct {
	translator translate.Translator
	engine     translate.EngineType
}

// NewEngineCache creates an empty cache that builds engines with factory.
func NewEngineCache(factory translate.Factory, logger *logrus.Logger) *EngineCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &EngineCache{
		factory: factory,
		logger:  logger,
		buildMu: make(chan struct{}, 1),
	}
}

// Acquire returns the cached engine and the engine type it was built as,
// constructing it first if needed. Only one construction runs at a time;
// concurrent callers wait for it and share its result. A failed construction
// leaves the cache empty so the next call retries. Waiting callers give up
// when ctx is done.
func (c *EngineCache) Acquire(ctx context.Context, backend Selector) (translate.Translator, translate.EngineType, error) {
	if e := c.engine.Load(); e != nil {
		return e.translator, e.engine, nil
	}

	engine := translate.EngineAuto
	if name, ok := backend.Value(); ok {
		parsed, err := translate.ParseEngineType(name)
		if err != nil {
			return nil, "", err
		}
		engine = parsed
	}

	select {
	case c.buildMu <- struct{}{}:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	defer func() { <-c.buildMu }()

	if e := c.engine.Load(); e != nil {
		return e.translator, e.engine, nil
	}

	label := engineLabel(string(engine))
	c.logger.WithFields(logrus.Fields{
		"engine": label,
	}).Info("Constructing translation engine")

	start := time.Now()
	c.builds.Add(1)
	t, built, err := c.factory(ctx, engine)
	engineConstructionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		engineConstructionsTotal.WithLabelValues(label, "error").Inc()
		c.logger.WithError(err).WithFields(logrus.Fields{
			"engine": label,
		}).Error("Engine construction failed")
		return nil, "", err
	}
	if t == nil {
		engineConstructionsTotal.WithLabelValues(label, "error").Inc()
		return nil, "", fmt.Errorf("engine factory returned no engine for %s", label)
	}

	engineConstructionsTotal.WithLabelValues(label, "success").Inc()
	c.engine.Store(&cachedEngine{translator: t, engine: built})
	c.logger.WithFields(logrus.Fields{
		"engine":   label,
		"built":    string(built),
		"duration": time.Since(start).String(),
	}).Info("Translation engine ready")
	return t, built, nil
}

// Engine returns the cached engine without constructing one.
func (c *EngineCache) Engine() (translate.Translator, bool) {
	e := c.engine.Load()
	if e == nil {
		return nil, false
	}
	return e.translator, true
}

// Constructions returns how many times the factory has been invoked.
func (c *EngineCache) Constructions() int64 {
	return c.builds.Load()
}

// Close releases the cached engine if it holds resources and empties the
// cache. It waits for an in-flight construction to finish.
func (c *EngineCache) Close() error {
	c.buildMu <- struct{}{}
	defer func() { <-c.buildMu }()

	e := c.engine.Swap(nil)
	if e == nil {
		return nil
	}
	c.logger.WithFields(logrus.Fields{
		"engine": engineLabel(string(e.engine)),
	}).Info("Closing translation engine")
	if closer, ok := e.translator.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
