// Package config loads the gateway configuration with viper and hands out
// immutable snapshots of the active translation settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable (TRANSLATEGEMMA_PORT, ...).
const EnvPrefix = "TRANSLATEGEMMA"

// Config is the active translation configuration. Values are copied out of
// the Provider, so a Config never changes after it is handed out.
type Config struct {
	ModelSize   string
	Languages   [2]string
	OutputMode  string
	BackendType string
}

// Server holds process-level settings read once at startup.
type Server struct {
	Host             string
	Port             int
	GRPCPort         int
	StaticDir        string
	LogLevel         string
	LogFormat        string
	HistoryPath      string
	TranslateTimeout time.Duration
	Backend          Backend
}

// Backend configures engine construction.
type Backend struct {
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	ProjectID    string        `mapstructure:"project_id"`
	Credentials  string        `mapstructure:"credentials"`
	FunctionName string        `mapstructure:"function_name"`
	Python       string        `mapstructure:"python"`
	Script       string        `mapstructure:"script"`
	Workers      int           `mapstructure:"workers"`
	SocketDir    string        `mapstructure:"socket_dir"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Breaker      bool          `mapstructure:"breaker"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("languages", []string{"en", "fr"})
	v.SetDefault("backend_type", "auto")
	v.SetDefault("model_size", "4b")
	v.SetDefault("output_mode", "direct")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("static_dir", "static")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("history.path", "")
	v.SetDefault("translate_timeout", 5*time.Minute)
	v.SetDefault("backend.timeout", 2*time.Minute)
	v.SetDefault("backend.workers", 2)
	v.SetDefault("backend.breaker", true)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	Configure(v, cfgFile)
	return v
}

// Configure points v at cfgFile, or at translategemma.yaml in the working
// directory and $HOME/.config/translategemma when cfgFile is empty, and binds
// TRANSLATEGEMMA_* environment variables.
func Configure(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("translategemma")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/translategemma")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadConfigFile reads the config file if one exists. A missing file is not
// an error.
func ReadConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Provider serves the active Config snapshot.
type Provider struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	logger  *logrus.Logger
}

// NewProvider loads the initial snapshot from v.
func NewProvider(v *viper.Viper, logger *logrus.Logger) (*Provider, error) {
	if logger == nil {
		logger = logrus.New()
	}
	p := &Provider{v: v, logger: logger}
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Static returns a Provider that always serves cfg.
func Static(cfg Config) *Provider {
	p := &Provider{logger: logrus.New()}
	p.current.Store(&cfg)
	return p
}

// Config returns the active snapshot.
func (p *Provider) Config() Config {
	return *p.current.Load()
}

// Load validates the configuration held by viper and swaps it in. On error
// the previous snapshot stays active.
func (p *Provider) Load() error {
	if p.v == nil {
		return errors.New("static configuration cannot be reloaded")
	}
	cfg, err := decode(p.v)
	if err != nil {
		return err
	}
	p.current.Store(&cfg)
	p.logger.WithFields(logrus.Fields{
		"languages":    cfg.Languages,
		"backend_type": cfg.BackendType,
		"model_size":   cfg.ModelSize,
		"output_mode":  cfg.OutputMode,
	}).Info("Loaded translation configuration")
	return nil
}

// Watch reloads the snapshot whenever the config file changes. Invalid edits
// are logged and ignored.
func (p *Provider) Watch() {
	if p.v == nil || p.v.ConfigFileUsed() == "" {
		return
	}
	p.v.OnConfigChange(func(e fsnotify.Event) {
		if err := p.Load(); err != nil {
			p.logger.WithError(err).WithField("file", e.Name).Warn("Ignoring invalid configuration change")
		}
	})
	p.v.WatchConfig()
}

func decode(v *viper.Viper) (Config, error) {
	langs := v.GetStringSlice("languages")
	if len(langs) == 1 && strings.Contains(langs[0], ",") {
		langs = strings.Split(langs[0], ",")
	}
	if len(langs) != 2 {
		return Config{}, fmt.Errorf("languages must name exactly two languages, got %d", len(langs))
	}
	a := strings.TrimSpace(langs[0])
	b := strings.TrimSpace(langs[1])
	if a == "" || b == "" {
		return Config{}, errors.New("languages must not be empty")
	}
	if strings.EqualFold(a, b) {
		return Config{}, fmt.Errorf("languages must be distinct, got %q twice", a)
	}

	return Config{
		ModelSize:   v.GetString("model_size"),
		Languages:   [2]string{a, b},
		OutputMode:  v.GetString("output_mode"),
		BackendType: v.GetString("backend_type"),
	}, nil
}

// LoadServer reads the process-level settings.
func LoadServer(v *viper.Viper) (Server, error) {
	var backend Backend
	if err := v.UnmarshalKey("backend", &backend); err != nil {
		return Server{}, fmt.Errorf("decode backend settings: %w", err)
	}
	// Environment-only keys are not visible to UnmarshalKey.
	backend.URL = v.GetString("backend.url")
	backend.APIKey = v.GetString("backend.api_key")
	backend.Model = v.GetString("backend.model")
	backend.ProjectID = v.GetString("backend.project_id")
	backend.Credentials = v.GetString("backend.credentials")
	backend.FunctionName = v.GetString("backend.function_name")
	backend.Python = v.GetString("backend.python")
	backend.Script = v.GetString("backend.script")
	backend.Workers = v.GetInt("backend.workers")
	backend.SocketDir = v.GetString("backend.socket_dir")
	backend.Timeout = v.GetDuration("backend.timeout")
	backend.Breaker = v.GetBool("backend.breaker")

	s := Server{
		Host:             v.GetString("host"),
		Port:             v.GetInt("port"),
		GRPCPort:         v.GetInt("grpc_port"),
		StaticDir:        v.GetString("static_dir"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		HistoryPath:      v.GetString("history.path"),
		TranslateTimeout: v.GetDuration("translate_timeout"),
		Backend:          backend,
	}
	if s.Port <= 0 || s.Port > 65535 {
		return Server{}, fmt.Errorf("invalid port %d", s.Port)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return Server{}, fmt.Errorf("invalid grpc_port %d", s.GRPCPort)
	}
	return s, nil
}
