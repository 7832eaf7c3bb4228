package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ANIMEGAN_DIR", "ONNXRUNTIME_LIB", "ANIMEGAN_FILTER",
		"LOG_LEVEL", "ANIMEGAN_THREADS", "ANIMEGAN_REUSE_SESSIONS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	c := cfg.Contract()
	assert.Equal(t, "downloaded_model.ort", c.ModelFilename)
	assert.Equal(t, "input.1", c.InputName)
	assert.Equal(t, tensor.DefaultShape(), c.Shape)
	assert.Equal(t, "anime_gan_output", cfg.Output.Prefix)
	assert.False(t, cfg.EngineOptions().ReuseSessions)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
inference:
  threads: 2
  reuse_sessions: true
image:
  filter: lanczos3
output:
  dir: /var/lib/animegan
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Inference.Threads)
	assert.True(t, cfg.Inference.ReuseSessions)
	assert.Equal(t, tensor.FilterLanczos3, cfg.Image.Filter)
	assert.Equal(t, "/var/lib/animegan", cfg.Output.Dir)
	// untouched keys keep their defaults
	assert.Equal(t, "input.1", cfg.Inference.InputName)
	assert.Equal(t, 512, cfg.Image.Width)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("PORT", "7000")
	t.Setenv("ANIMEGAN_THREADS", "8")
	t.Setenv("ANIMEGAN_REUSE_SESSIONS", "true")
	t.Setenv("ANIMEGAN_DIR", "/tmp/anime")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Inference.Threads)
	assert.True(t, cfg.Inference.ReuseSessions)
	assert.Equal(t, "/tmp/anime", cfg.Output.Dir)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad threads env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANIMEGAN_THREADS", "many")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad bool env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANIMEGAN_REUSE_SESSIONS", "sometimes")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"zero upload", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
		{"empty dir", func(c *Config) { c.Output.Dir = "" }},
		{"empty prefix", func(c *Config) { c.Output.Prefix = "" }},
		{"unknown filter", func(c *Config) { c.Image.Filter = "box" }},
		{"zero threads", func(c *Config) { c.Inference.Threads = 0 }},
		{"four channels", func(c *Config) { c.Image.Channels = 4 }},
		{"no input name", func(c *Config) { c.Inference.InputName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
