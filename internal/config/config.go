// Package config loads layered configuration: defaults, then an optional
// contractengine.yaml, then CONTRACTENGINE_* environment variables (a .env
// file in the working directory is loaded into the environment first).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with dots replaced
// by underscores: llm.api_key is CONTRACTENGINE_LLM_API_KEY.
const EnvPrefix = "CONTRACTENGINE"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	License  LicenseConfig  `mapstructure:"license"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// LLMConfig selects and configures the completion endpoint.
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AnalysisBudget is the longest one analysis can spend on completion calls:
// the initial call plus the single repair call. Zero means unbounded.
func (c LLMConfig) AnalysisBudget() time.Duration {
	return 2 * c.Timeout
}

// AnalysisConfig contains prompt settings.
type AnalysisConfig struct {
	Profile string `mapstructure:"profile"`
}

// LicenseConfig configures license-key checks.
type LicenseConfig struct {
	Mode      string        `mapstructure:"mode"`
	ProductID string        `mapstructure:"product_id"`
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. configFile, when non-empty, must exist; when
// empty, contractengine.yaml is searched for in . and $HOME/.contractengine
// and its absence is not an error.
func Load(configFile string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("contractengine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.contractengine")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// appear in no config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.max_body_bytes", 5<<20)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("analysis.profile", "oil-gas")

	v.SetDefault("license.mode", "off")
	v.SetDefault("license.product_id", "")
	v.SetDefault("license.endpoint", "")
	v.SetDefault("license.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
