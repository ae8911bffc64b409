package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, "local", cfg.Auth.DefaultOwner)
	assert.Equal(t, "perplexity", cfg.LLM.DefaultProvider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.LLM.HistoryWindow)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.LLM.TopP, 1e-9)
	assert.Equal(t, "sonar", cfg.LLM.Perplexity.Model)
	assert.InDelta(t, 1.0, cfg.LLM.Perplexity.FrequencyPenalty, 1e-9)
	assert.Equal(t, DefaultSystemPrompt, cfg.LLM.SystemPrompt)
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.LLM.Timeout)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
storage:
  driver: sqlite
sqlite:
  path: /tmp/chat.db
llm:
  history_window: 4
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PPLX_API_KEY", "pplx-test")
	t.Setenv("AUTH_MODE", "anonymous")
	t.Setenv("JWT_SECRET", "not-a-real-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/chat.db", cfg.SQLite.Path)
	assert.Equal(t, 4, cfg.LLM.HistoryWindow)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "pplx-test", cfg.LLM.Perplexity.APIKey)
	assert.Equal(t, AuthModeAnonymous, cfg.Auth.Mode)
}

func validConfig() Config {
	return Config{
		Server:  ServerConfig{WriteTimeout: 60 * time.Second, MiddlewareTimeout: 55 * time.Second},
		Storage: StorageConfig{Driver: DriverMemory},
		Auth:    AuthConfig{Mode: AuthModeNone, DefaultOwner: "local"},
		LLM:     LLMConfig{HistoryWindow: 10, Timeout: 30 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "cassandra" }, "unknown storage driver"},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "oauth" }, "unknown auth mode"},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = AuthModeJWT }, "jwt_secret is required"},
		{"empty default owner", func(c *Config) { c.Auth.DefaultOwner = " " }, "default_owner is required"},
		{"zero window", func(c *Config) { c.LLM.HistoryWindow = 0 }, "history_window"},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }, "llm.timeout"},
		{"provider timeout above middleware timeout", func(c *Config) { c.LLM.Timeout = 90 * time.Second }, "server.middleware_timeout"},
		{"middleware timeout equal to provider timeout", func(c *Config) { c.Server.MiddlewareTimeout = 30 * time.Second }, "server.middleware_timeout"},
		{"write timeout below provider timeout", func(c *Config) { c.Server.WriteTimeout = 20 * time.Second }, "server.write_timeout"},
		{"no write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, ""},
		{"rate limit without redis", func(c *Config) { c.Security.RateLimit.Enabled = true }, "requires redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSNs(t *testing.T) {
	pg := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "chat", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/chat?sslmode=disable", pg.DSN())

	my := MySQLConfig{User: "u", Password: "p", Host: "db", Port: 3306, Database: "chat"}
	assert.Equal(t, "u:p@tcp(db:3306)/chat?charset=utf8mb4", my.DSN())

	assert.Equal(t, "localhost:6379", RedisConfig{Host: "localhost", Port: 6379}.Addr())
}
