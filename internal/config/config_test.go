package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, "gpt-4", cfg.Completion.Model)
	assert.Equal(t, 60*time.Second, cfg.Completion.CallTimeout)
	assert.Equal(t, float64(60000), cfg.Gate.TokensPerMinute)
	assert.Equal(t, 3, cfg.Gate.MaxParallelRequests)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 2.0, cfg.Retry.BackoffFactor)
	assert.True(t, cfg.Consult.PartialOnSynthesisFailure)
	assert.Empty(t, cfg.Auth.APIKeys)
	assert.Equal(t, "http://localhost:8080", cfg.Client.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOARDROOM_PORT", "9090")
	t.Setenv("BOARDROOM_COMPLETION_PROVIDER", "mock")
	t.Setenv("BOARDROOM_RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("BOARDROOM_AUTH_API_KEYS", "k1, k2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "mock", cfg.Completion.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.yaml")
	body := []byte("gate:\n  max_parallel_requests: 7\nconsult:\n  secondary_pause: 0s\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Gate.MaxParallelRequests)
	assert.Equal(t, time.Duration(0), cfg.Consult.SecondaryPause)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"tokens", func(c *Config) { c.Gate.TokensPerMinute = 0 }},
		{"fractional tokens", func(c *Config) { c.Gate.TokensPerMinute = 0.5 }},
		{"parallel", func(c *Config) { c.Gate.MaxParallelRequests = 0 }},
		{"retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"factor", func(c *Config) { c.Retry.BackoffFactor = 0.5 }},
		{"timeout", func(c *Config) { c.Completion.CallTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() with bad %s = nil, want error", tt.name)
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
