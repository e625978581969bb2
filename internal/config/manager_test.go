package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "nested", "q", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManager_SetKey(t *testing.T) {
	clearKeyEnv(t)
	m := newTestManager(t)
	key := "sk-" + strings.Repeat("x", 45)

	if err := m.SetKey(ProviderOpenAI, key); err != nil {
		t.Fatalf("SetKey failed: %v", err)
	}

	cfg, err := Load(m.Path())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey(ProviderOpenAI) != key {
		t.Errorf("key = %q", cfg.APIKey(ProviderOpenAI))
	}

	info, err := os.Stat(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != fileMode {
		t.Errorf("file mode = %v, want %v", info.Mode().Perm(), os.FileMode(fileMode))
	}

	dirInfo, err := os.Stat(filepath.Dir(m.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if dirInfo.Mode().Perm() != dirMode {
		t.Errorf("dir mode = %v", dirInfo.Mode().Perm())
	}
}

func TestManager_SetKeyRejectsBadFormat(t *testing.T) {
	m := newTestManager(t)

	if err := m.SetKey(ProviderOpenAI, "not-a-key"); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Error("config should not be written on invalid key")
	}
}

func TestManager_SetProviderAndModel(t *testing.T) {
	clearKeyEnv(t)
	m := newTestManager(t)

	if err := m.SetProvider(ProviderAnthropic); err != nil {
		t.Fatalf("SetProvider failed: %v", err)
	}
	if err := m.SetModel(ProviderAnthropic, "claude-haiku-4-5"); err != nil {
		t.Fatalf("SetModel failed: %v", err)
	}

	cfg, err := Load(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProvider != ProviderAnthropic || cfg.Model(ProviderAnthropic) != "claude-haiku-4-5" {
		t.Errorf("cfg provider=%q model=%q", cfg.DefaultProvider, cfg.Model(ProviderAnthropic))
	}

	if err := m.SetProvider("cohere"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if err := m.SetModel(ProviderGemini, "  "); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestManager_PreservesEnvReferences(t *testing.T) {
	t.Setenv("TEST_Q_KEY", "should-not-be-written-out")
	path := writeConfig(t, "api_keys:\n  gemini: ${TEST_Q_KEY}\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetProvider(ProviderOpenAI); err != nil {
		t.Fatalf("SetProvider failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "${TEST_Q_KEY}") {
		t.Errorf("env reference lost:\n%s", data)
	}
	if strings.Contains(string(data), "should-not-be-written-out") {
		t.Error("expanded secret written to disk")
	}
}
