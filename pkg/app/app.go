// Package app assembles the resolver and its collaborators from
// configuration. It is shared by the server and Lambda entry points.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/dasmlab/gemmagate/pkg/config"
	"github.com/dasmlab/gemmagate/pkg/history"
	"github.com/dasmlab/gemmagate/pkg/language"
	"github.com/dasmlab/gemmagate/pkg/service"
	"github.com/dasmlab/gemmagate/pkg/translate"
)

// App holds the long-lived components of a running gateway.
type App struct {
	Settings config.Server
	Config   *config.Provider
	Engines  *service.EngineCache
	Resolver *service.Resolver
	History  *history.Store
	Logger   *logrus.Logger
}

// NewLogger creates a logger with the given level and format ("text" or "json").
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// New builds the App from v. The engine is not constructed here; the first
// translation request builds it.
func New(v *viper.Viper, logger *logrus.Logger) (*App, error) {
	settings, err := config.LoadServer(v)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger(settings.LogLevel, settings.LogFormat)
	}

	provider, err := config.NewProvider(v, logger)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	factory := translate.NewFactory(translate.Config{
		BaseURL:      settings.Backend.URL,
		APIKey:       settings.Backend.APIKey,
		Model:        settings.Backend.Model,
		ProjectID:    settings.Backend.ProjectID,
		Credentials:  settings.Backend.Credentials,
		FunctionName: settings.Backend.FunctionName,
		PythonPath:   settings.Backend.Python,
		ScriptPath:   settings.Backend.Script,
		Workers:      settings.Backend.Workers,
		SocketDir:    settings.Backend.SocketDir,
		Timeout:      settings.Backend.Timeout,
		Breaker:      settings.Backend.Breaker,
		Logger:       logger,
	}, ConfiguredEngine(provider, logger))

	engines := service.NewEngineCache(factory, logger)

	opts := []service.ResolverOption{service.WithLogger(logger)}
	var store *history.Store
	if settings.HistoryPath != "" {
		store, err = history.New(settings.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		opts = append(opts, service.WithRecorder(store))
		logger.WithFields(logrus.Fields{
			"path": settings.HistoryPath,
		}).Info("Translation history enabled")
	}

	resolver := service.NewResolver(provider, language.NewLinguaDetector(logger), engines, opts...)

	return &App{
		Settings: settings,
		Config:   provider,
		Engines:  engines,
		Resolver: resolver,
		History:  store,
		Logger:   logger,
	}, nil
}

// ConfiguredEngine returns the fallback consulted when a request leaves the
// backend unspecified. It reads backend_type from the active snapshot; an
// invalid value falls back to the built-in default.
func ConfiguredEngine(provider service.ConfigProvider, logger *logrus.Logger) func() translate.EngineType {
	return func() translate.EngineType {
		name := provider.Config().BackendType
		engine, err := translate.ParseEngineType(name)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"backend_type": name,
			}).Warn("Invalid configured backend, using default")
			return translate.DefaultEngine
		}
		return engine
	}
}

// Close releases the engine and the history database.
func (a *App) Close() error {
	var firstErr error
	if err := a.Engines.Close(); err != nil {
		firstErr = err
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
