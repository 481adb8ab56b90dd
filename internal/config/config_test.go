package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Server.Addr, cfg.Server.Addr)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.Retries)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "bedomning_session", cfg.Session.CookieName)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: vertexai
  google_cloud_project: domar-test
  timeout: 5s
database:
  driver: postgres
  dsn: host=localhost user=bedomning
prompts:
  owner: hr-admin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("BEDOMNING_SESSION_BACKEND", "redis")
	t.Setenv("BEDOMNING_LLM_MODEL", "gemini-1.5-pro")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "vertexai", cfg.LLM.Provider)
	assert.Equal(t, "domar-test", cfg.LLM.GoogleCloudProject)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "hr-admin", cfg.Prompts.Owner)
	assert.Equal(t, "us-central1", cfg.LLM.GoogleCloudLocation)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"openai with key", func(c *Config) { c.LLM.APIKey = "sk-test" }, false},
		{"openai without key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"vertex without project", func(c *Config) { c.LLM.Provider = "vertexai" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "other" }, true},
		{"unknown driver", func(c *Config) { c.LLM.APIKey = "k"; c.Database.Driver = "mysql" }, true},
		{"redis without addr", func(c *Config) {
			c.LLM.APIKey = "k"
			c.Session.Backend = "redis"
			c.Session.RedisAddr = ""
		}, true},
		{"missing credentials file", func(c *Config) {
			c.LLM.APIKey = "k"
			c.LLM.GoogleCredentialsPath = "/nonexistent/creds.json"
		}, true},
		{"no prompt owner", func(c *Config) { c.LLM.APIKey = "k"; c.Prompts.Owner = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyToEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	cfg := DefaultConfig()
	cfg.LLM.GoogleCloudProject = "domar-test"
	cfg.ApplyToEnv()
	assert.Equal(t, "domar-test", os.Getenv("GOOGLE_CLOUD_PROJECT"))
}
