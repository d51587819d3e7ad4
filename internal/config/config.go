package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/bootstrap"
	"github.com/shelfwise/shelfwise/internal/policy"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	DocStore  DocStoreConfig  `yaml:"docstore" mapstructure:"docstore"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Loop      LoopConfig      `yaml:"loop" mapstructure:"loop"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DocStoreConfig holds document store API settings.
type DocStoreConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Token    string `yaml:"token" mapstructure:"token"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// AnthropicConfig holds Anthropic API settings. The analysis model does the
// expensive proposal work; the confirmation model is the cheaper validator.
type AnthropicConfig struct {
	Key    string         `yaml:"key" mapstructure:"key"`
	Models analyze.Config `yaml:",inline" mapstructure:",squash"`
}

// LoopConfig configures the confirmation loop.
type LoopConfig struct {
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// PolicyConfig holds per-kind candidate handling policies.
type PolicyConfig struct {
	Tag           policy.Config `yaml:"tag" mapstructure:"tag"`
	Correspondent policy.Config `yaml:"correspondent" mapstructure:"correspondent"`
	DocumentType  policy.Config `yaml:"document_type" mapstructure:"document_type"`
}

// Validate checks every kind's policy.
func (p PolicyConfig) Validate() error {
	for _, c := range []policy.Config{p.Tag, p.Correspondent, p.DocumentType} {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ScanConfig configures bootstrap scans.
type ScanConfig = bootstrap.Config

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHELFWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "shelfwise.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("docstore.page_size", 100)
	v.SetDefault("anthropic.analysis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.confirmation_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("loop.max_retries", 3)
	v.SetDefault("policy.tag.mode", "tiered")
	v.SetDefault("policy.tag.high_threshold", 0.85)
	v.SetDefault("policy.tag.low_threshold", 0.5)
	v.SetDefault("policy.tag.review_tier", true)
	v.SetDefault("policy.correspondent.mode", "confirm_all")
	v.SetDefault("policy.correspondent.high_threshold", 0.85)
	v.SetDefault("policy.correspondent.low_threshold", 0.5)
	v.SetDefault("policy.document_type.mode", "confirm_all")
	v.SetDefault("policy.document_type.high_threshold", 0.85)
	v.SetDefault("policy.document_type.low_threshold", 0.5)
	v.SetDefault("scan.min_content_length", 100)
	v.SetDefault("scan.confidence_threshold", 0.6)
	v.SetDefault("scan.docs_per_second", 0.5)
	v.SetDefault("scan.page_size", 100)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
