package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineType represents the type of translation engine to use.
type EngineType string

const (
	// EngineAuto lets the factory pick its default engine.
	EngineAuto EngineType = ""
	// EngineLibreTranslate uses LibreTranslate as the backend.
	EngineLibreTranslate EngineType = "libretranslate"
	// EngineArgos uses Argos Translate as the backend.
	EngineArgos EngineType = "argos"
	// EngineOpenAI uses an OpenAI-compatible chat endpoint (vLLM, Ollama, OpenAI).
	EngineOpenAI EngineType = "openai"
	// EngineGemini uses the Gemini API.
	EngineGemini EngineType = "gemini"
	// EngineGoogle uses Google Cloud Translation.
	EngineGoogle EngineType = "google"
	// EngineLambda invokes a translator deployed as an AWS Lambda function.
	EngineLambda EngineType = "lambda"
	// EngineLocal runs the model in a single local worker process.
	EngineLocal EngineType = "local"
	// EnginePool runs the model in a pool of local worker processes.
	EnginePool EngineType = "pool"

	// DefaultEngine is used when neither the request nor the configuration
	// names an engine.
	DefaultEngine = EngineLibreTranslate
)

// Engines lists every engine the factory can build.
var Engines = []EngineType{
	EngineLibreTranslate, EngineArgos, EngineOpenAI, EngineGemini,
	EngineGoogle, EngineLambda, EngineLocal, EnginePool,
}

// Config holds configuration for creating a Translator instance.
type Config struct {
	// Engine specifies which translation engine to use. EngineAuto selects DefaultEngine.
	Engine EngineType
	// BaseURL is the base URL for HTTP based engines.
	BaseURL string
	// APIKey authenticates against hosted engines (openai, gemini).
	APIKey string
	// Model names the model for LLM engines.
	Model string
	// ProjectID is the Google Cloud project billed for quota (google) and
	// Credentials the key file.
	ProjectID   string
	Credentials string
	// FunctionName is the Lambda function invoked by the lambda engine.
	FunctionName string
	// PythonPath and ScriptPath start local worker processes (local, pool).
	PythonPath string
	ScriptPath string
	// Workers is the number of pool workers.
	Workers int
	// SocketDir holds the pool worker sockets.
	SocketDir string
	// Timeout bounds a single backend call.
	Timeout time.Duration
	// Breaker wraps remote engines in a circuit breaker.
	Breaker bool
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// Factory builds a translation engine and reports the concrete engine type it
// built, never EngineAuto. It must be safe to call again after a failed attempt.
type Factory func(ctx context.Context, engine EngineType) (Translator, EngineType, error)

// NewFactory returns a Factory building engines from base. When asked for
// EngineAuto it consults fallback, which typically reads the configured
// backend type, and then DefaultEngine.
func NewFactory(base Config, fallback func() EngineType) Factory {
	return func(ctx context.Context, engine EngineType) (Translator, EngineType, error) {
		cfg := base
		cfg.Engine = engine
		if cfg.Engine == EngineAuto && fallback != nil {
			cfg.Engine = fallback()
		}
		if cfg.Engine == EngineAuto {
			cfg.Engine = DefaultEngine
		}
		t, err := NewTranslator(ctx, cfg)
		if err != nil {
			return nil, cfg.Engine, err
		}
		return t, cfg.Engine, nil
	}
}

// NewTranslator creates a new Translator instance based on the configuration.
// Construction may be slow (model servers, worker processes, cloud clients);
// ctx bounds it.
func NewTranslator(ctx context.Context, cfg Config) (Translator, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Engine == EngineAuto {
		cfg.Engine = DefaultEngine
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Info("Creating translator instance")

	var (
		t      Translator
		err    error
		remote = true
	)
	switch cfg.Engine {
	case EngineLibreTranslate:
		t = NewLibreTranslateClient(cfg.BaseURL, cfg.Timeout, cfg.Logger)
	case EngineArgos:
		t = NewArgosClient(cfg.BaseURL, cfg.Timeout, cfg.Logger)
	case EngineOpenAI:
		t, err = NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Logger)
	case EngineGemini:
		t, err = NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Logger)
	case EngineGoogle:
		t, err = NewGoogleClient(ctx, cfg.ProjectID, cfg.Credentials, cfg.Logger)
	case EngineLambda:
		t, err = NewLambdaClient(ctx, cfg.FunctionName, cfg.Logger)
	case EngineLocal:
		remote = false
		t, err = NewSubprocessTranslator(ctx, cfg.PythonPath, cfg.ScriptPath, cfg.Model, cfg.Logger)
	case EnginePool:
		remote = false
		t, err = NewWorkerPool(ctx, PoolConfig{
			PythonPath: cfg.PythonPath,
			ScriptPath: cfg.ScriptPath,
			Model:      cfg.Model,
			Workers:    cfg.Workers,
			SocketDir:  cfg.SocketDir,
		}, cfg.Logger)
	default:
		cfg.Logger.WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Unknown translation engine")
		return nil, fmt.Errorf("unknown translation engine: %s", cfg.Engine)
	}
	if err != nil {
		cfg.Logger.WithError(err).WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Failed to create translator")
		return nil, engineErr(cfg.Engine, "create", err)
	}

	if cfg.Breaker && remote {
		t = NewBreakerTranslator(t, cfg.Engine, cfg.Logger)
	}
	return t, nil
}

// ParseEngineType parses a string into an EngineType.
// "auto" and the empty string map to EngineAuto.
func ParseEngineType(s string) (EngineType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "auto" {
		return EngineAuto, nil
	}
	for _, e := range Engines {
		if string(e) == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown engine type: %s (supported: %s)", s, engineNames())
}

func engineNames() string {
	names := make([]string, len(Engines))
	for i, e := range Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
