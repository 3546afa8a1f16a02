package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "TASKNERD_LLM_PROVIDER", "TASKNERD_LLM_MODEL",
		"TASKNERD_DB", "TASKNERD_ADDR", "TASKNERD_TZ", "TASKNERD_FAST_PATHS",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "tasknerd" {
		t.Errorf("expected Name=tasknerd, got %s", cfg.Name)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %s", cfg.Store.Driver)
	}
	if cfg.Interpreter.FuzzyMinDistance != 1 || cfg.Interpreter.FuzzyDistanceRatio != 0.25 {
		t.Errorf("unexpected fuzzy defaults: %+v", cfg.Interpreter)
	}
	if cfg.Interpreter.SampleSize != 5 {
		t.Errorf("expected SampleSize=5, got %d", cfg.Interpreter.SampleSize)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "tasknerd.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.APIKey = "g-test"
	cfg.Interpreter.FuzzyDistanceRatio = 0.3
	cfg.Logging.Categories = map[string]bool{"store": false}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", loaded.LLM.Provider)
	assert.Equal(t, "g-test", loaded.LLM.APIKey)
	assert.Equal(t, 0.3, loaded.Interpreter.FuzzyDistanceRatio)
	assert.Equal(t, map[string]bool{"store": false}, loaded.Logging.Categories)
}

func TestLoad_MissingFileReturnsDefaultsWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKNERD_DB", "/tmp/x.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("OPENAI_API_KEY sets provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY wins over OPENAI_API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("explicit provider and model", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")
		t.Setenv("TASKNERD_LLM_PROVIDER", "openai")
		t.Setenv("TASKNERD_LLM_MODEL", "gpt-4o")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.LLM.Provider)
		assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	})

	t.Run("transport and interpreter", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TASKNERD_ADDR", ":9999")
		t.Setenv("TASKNERD_TZ", "Europe/Berlin")
		t.Setenv("TASKNERD_FAST_PATHS", "false")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ":9999", cfg.Server.Addr)
		assert.Equal(t, "Europe/Berlin", cfg.Interpreter.Timezone)
		assert.False(t, cfg.Interpreter.FastPaths)
	})
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "missing API key must fail")
	assert.NoError(t, cfg.ValidateOffline())

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "llama"
	assert.Error(t, cfg.Validate())
	cfg.LLM.Provider = "openai"

	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate())
	cfg.Store.Driver = "sqlite3"

	cfg.Interpreter.FuzzyDistanceRatio = 1.5
	assert.Error(t, cfg.Validate())
	cfg.Interpreter.FuzzyDistanceRatio = 0.25

	cfg.Interpreter.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
	cfg.Interpreter.Timezone = "UTC"

	cfg.Logging.Level = "chatty"
	assert.Error(t, cfg.Validate())
}

func TestDurationGetters_Fallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
	assert.Equal(t, time.Minute, cfg.GetSweepInterval())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeout())

	cfg.LLM.Timeout = "5s"
	cfg.Session.TTL = "-1m"
	assert.Equal(t, 5*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tasknerd.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	w, err := NewWatcher(path)
	require.NoError(t, err)

	got := make(chan *Config, 4)
	w.Subscribe(func(c *Config) { got <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path))

	select {
	case c := <-got:
		assert.Equal(t, "debug", c.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload delivered")
	}
	assert.GreaterOrEqual(t, w.Reloads(), 1)
}
