package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "0.1.0", cfg.AppVersion)
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, 1, cfg.MaxConcurrentResearchUnits)
	assert.Equal(t, 1, cfg.MaxResearcherIterations)
	assert.Equal(t, 25, cfg.MaxSupervisorIterations)
	assert.Equal(t, "data/research.db", cfg.DBPath)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Supervisor.Name)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APP_PORT", "9001")
	t.Setenv("MAX_CONCURRENT_WEBSOCKET_CONNECTIONS", "3")
	t.Setenv("SUPERVISOR_MODEL_NAME", "gemini-2.5-pro")
	t.Setenv("SUPERVISOR_MODEL_TEMPERATURE", "0.5")
	t.Setenv("RESEARCHER_MODEL_PROVIDER", "google_genai")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_PATH", "")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 3, cfg.MaxConnections)
	assert.Equal(t, "gemini-2.5-pro", cfg.Supervisor.Name)
	assert.InDelta(t, 0.5, cfg.Supervisor.Temperature, 1e-6)
	assert.Equal(t, "google_genai", cfg.Researcher.Provider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.DBPath)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_port: 7000
app_debug: true
max_supervisor_iterations: 5
researcher_model_name: gemini-2.5-flash
`), 0o600))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 5, cfg.MaxSupervisorIterations)
	assert.Equal(t, "gemini-2.5-flash", cfg.Researcher.Name)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "zero ceiling", mutate: func(c *Config) { c.MaxConnections = 0 }, errMsg: "websocket connections"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, errMsg: "out of range"},
		{name: "zero units", mutate: func(c *Config) { c.MaxConcurrentResearchUnits = 0 }, errMsg: "research units"},
		{name: "zero researcher iterations", mutate: func(c *Config) { c.MaxResearcherIterations = -1 }, errMsg: "researcher iterations"},
		{name: "zero supervisor iterations", mutate: func(c *Config) { c.MaxSupervisorIterations = 0 }, errMsg: "supervisor iterations"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, errMsg: "invalid log level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(NewViper(), "")
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}
