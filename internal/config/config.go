// Package config loads server settings from the environment and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// Setting keys. Each is also read from the upper-cased environment variable.
const (
	KeyAppName        = "app_name"
	KeyAppVersion     = "app_version"
	KeyAppHost        = "app_host"
	KeyAppPort        = "app_port"
	KeyAppDebug       = "app_debug"
	KeyAppLogLevel    = "app_log_level"
	KeyMaxConnections = "max_concurrent_websocket_connections"
	KeyResearchUnits  = "max_concurrent_research_units"
	KeyResearcherIter = "max_researcher_iterations"
	KeySupervisorIter = "max_supervisor_iterations"
	KeyDBPath         = "db_path"
	KeyLogDir         = "log_dir"
	KeyCORSOrigins    = "cors_allowed_origins"

	supervisorPrefix = "supervisor_model_"
	researcherPrefix = "researcher_model_"
)

var defaults = map[string]any{
	KeyAppName:        "deep-learning-research-agent",
	KeyAppVersion:     "0.1.0",
	KeyAppHost:        "0.0.0.0",
	KeyAppPort:        8000,
	KeyAppDebug:       false,
	KeyAppLogLevel:    "info",
	KeyMaxConnections: 100,
	KeyResearchUnits:  1,
	KeyResearcherIter: 1,
	KeySupervisorIter: 25,
	KeyDBPath:         "data/research.db",
	KeyLogDir:         "data/transcripts",
	KeyCORSOrigins:    "*",
}

// Config holds the server settings.
type Config struct {
	AppName    string
	AppVersion string
	Host       string
	Port       int
	Debug      bool
	LogLevel   string

	MaxConnections             int
	MaxConcurrentResearchUnits int
	MaxResearcherIterations    int
	MaxSupervisorIterations    int

	Supervisor llm.ModelConfig
	Researcher llm.ModelConfig

	// DBPath is the sqlite journal. Empty disables the journal.
	DBPath string
	// LogDir receives session transcripts. Empty disables transcripts.
	LogDir string

	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with every default set and environment
// lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, prefix := range []string{supervisorPrefix, researcherPrefix} {
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"name", "")
		v.SetDefault(prefix+"provider", "")
		v.SetDefault(prefix+"temperature", 0.0)
	}
	// DB_PATH= and LOG_DIR= switch features off
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and returns the
// validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		AppName:    v.GetString(KeyAppName),
		AppVersion: v.GetString(KeyAppVersion),
		Host:       v.GetString(KeyAppHost),
		Port:       v.GetInt(KeyAppPort),
		Debug:      v.GetBool(KeyAppDebug),
		LogLevel:   v.GetString(KeyAppLogLevel),

		MaxConnections:             v.GetInt(KeyMaxConnections),
		MaxConcurrentResearchUnits: v.GetInt(KeyResearchUnits),
		MaxResearcherIterations:    v.GetInt(KeyResearcherIter),
		MaxSupervisorIterations:    v.GetInt(KeySupervisorIter),

		Supervisor: modelConfig(v, supervisorPrefix),
		Researcher: modelConfig(v, researcherPrefix),

		DBPath:             v.GetString(KeyDBPath),
		LogDir:             v.GetString(KeyLogDir),
		CORSAllowedOrigins: splitList(v.GetString(KeyCORSOrigins)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func modelConfig(v *viper.Viper, prefix string) llm.ModelConfig {
	return llm.ModelConfig{
		APIKey:      v.GetString(prefix + "api_key"),
		BaseURL:     v.GetString(prefix + "base_url"),
		Name:        v.GetString(prefix + "name"),
		Provider:    v.GetString(prefix + "provider"),
		Temperature: float32(v.GetFloat64(prefix + "temperature")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks limits and the log level. Model names are not checked
// here: an empty name fails each session when its agent is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("app port %d out of range", c.Port))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max concurrent websocket connections must be positive, got %d", c.MaxConnections))
	}
	if c.MaxConcurrentResearchUnits <= 0 {
		errs = append(errs, fmt.Errorf("max concurrent research units must be positive, got %d", c.MaxConcurrentResearchUnits))
	}
	if c.MaxResearcherIterations <= 0 {
		errs = append(errs, fmt.Errorf("max researcher iterations must be positive, got %d", c.MaxResearcherIterations))
	}
	if c.MaxSupervisorIterations <= 0 {
		errs = append(errs, fmt.Errorf("max supervisor iterations must be positive, got %d", c.MaxSupervisorIterations))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the zap level to log at. Debug mode always logs debug.
func (c *Config) Level() (zapcore.Level, error) {
	if c.Debug {
		return zapcore.DebugLevel, nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
