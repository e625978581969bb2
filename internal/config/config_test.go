package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, env := range keyEnv {
		t.Setenv(env, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultProvider != ProviderGemini {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Query.MaxRetries != 3 || cfg.Query.RetryDelay != time.Second || cfg.Query.MaxRetryDelay != 30*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Query)
	}
	if cfg.Query.CacheTTL != time.Hour || cfg.Query.MaxCacheEntries != 1000 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Query)
	}
	if cfg.Model(ProviderOpenAI) != "gpt-3.5-turbo" {
		t.Errorf("openai model = %q", cfg.Model(ProviderOpenAI))
	}
	if cfg.Cache.PurgeInterval != 10*time.Minute {
		t.Errorf("purge_interval = %v", cfg.Cache.PurgeInterval)
	}
}

func TestLoad_File(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, `
default_provider: openai
models:
  openai: gpt-4o
query:
  max_retries: 5
  retry_delay: 250ms
  cache_ttl: 10m
  stream: false
cache:
  backend: memory
  purge_interval: 30s
server:
  port: 9090
usage:
  daily_max_usd: 2.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultProvider != ProviderOpenAI {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Model(ProviderOpenAI) != "gpt-4o" {
		t.Errorf("openai model = %q", cfg.Model(ProviderOpenAI))
	}
	if cfg.Model(ProviderGemini) != "gemini-2.0-flash" {
		t.Errorf("unset models should keep defaults, got %q", cfg.Model(ProviderGemini))
	}
	if cfg.Query.MaxRetries != 5 || cfg.Query.RetryDelay != 250*time.Millisecond || cfg.Query.CacheTTL != 10*time.Minute {
		t.Errorf("query = %+v", cfg.Query)
	}
	if cfg.Query.MaxRetryDelay != 30*time.Second {
		t.Errorf("max_retry_delay should keep its default, got %v", cfg.Query.MaxRetryDelay)
	}
	if cfg.Query.Stream {
		t.Error("stream should be false")
	}
	if cfg.Cache.PurgeInterval != 30*time.Second {
		t.Errorf("purge_interval = %v", cfg.Cache.PurgeInterval)
	}
	if cfg.Cache.Backend != CacheMemory || cfg.Server.Port != 9090 || cfg.Usage.DailyMaxUSD != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("TEST_Q_GEMINI_KEY", "expanded-gemini-key-1234567890")

	cfg, err := Load(writeConfig(t, "api_keys:\n  gemini: ${TEST_Q_GEMINI_KEY}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey(ProviderGemini) != "expanded-gemini-key-1234567890" {
		t.Errorf("gemini key = %q", cfg.APIKey(ProviderGemini))
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := Load(writeConfig(t, "api_keys:\n  anthropic: sk-ant-from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIKey(ProviderOpenAI) != "sk-from-env" {
		t.Errorf("openai key = %q", cfg.APIKey(ProviderOpenAI))
	}
	if cfg.APIKey(ProviderAnthropic) != "sk-ant-from-file" {
		t.Errorf("file key should win over env, got %q", cfg.APIKey(ProviderAnthropic))
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "query: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.DefaultProvider = "cohere"
	cfg.Query.MaxRetries = -1
	cfg.Cache.Backend = "redis"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"default_provider", "query.max_retries", "cache.backend", "server.port"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
	if strings.Count(msg, "; ") != 3 {
		t.Errorf("expected 4 problems joined by '; ', got %q", msg)
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		provider string
		key      string
		wantErr  bool
	}{
		{ProviderOpenAI, "sk-" + strings.Repeat("a", 40), false},
		{ProviderOpenAI, "sk-short", true},
		{ProviderOpenAI, strings.Repeat("a", 45), true},
		{ProviderGemini, strings.Repeat("g", 20), false},
		{ProviderGemini, "short", true},
		{ProviderAnthropic, "sk-ant-api03-abc", false},
		{ProviderAnthropic, "sk-abc", true},
		{ProviderOllama, "anything", true},
		{"cohere", "key", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/xdg/q/config.yaml" {
		t.Errorf("DefaultPath() = %q", path)
	}

	cachePath, err := Default().CachePath()
	if err != nil {
		t.Fatal(err)
	}
	if cachePath != "/tmp/xdg/q/cache.db" {
		t.Errorf("CachePath() = %q", cachePath)
	}
}
