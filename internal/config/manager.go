package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Manager edits the config file in place. It works on the raw file so
// ${VAR} references and environment keys are never written back.
type Manager struct {
	path string
}

// NewManager returns a manager for path (DefaultPath when empty).
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &Manager{path: path}, nil
}

// Path returns the managed file.
func (m *Manager) Path() string {
	return m.path
}

// SetKey stores the API key for provider after checking its format.
func (m *Manager) SetKey(provider, key string) error {
	key = strings.TrimSpace(key)
	if err := ValidateAPIKey(provider, key); err != nil {
		return err
	}

	return m.update(func(c *Config) {
		c.APIKeys[provider] = key
	})
}

// SetProvider changes the default provider.
func (m *Manager) SetProvider(provider string) error {
	if err := ValidateProvider(provider); err != nil {
		return err
	}

	return m.update(func(c *Config) {
		c.DefaultProvider = provider
	})
}

// SetModel changes the model used for provider.
func (m *Manager) SetModel(provider, model string) error {
	if err := ValidateProvider(provider); err != nil {
		return err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model name is required")
	}

	return m.update(func(c *Config) {
		c.Models[provider] = model
	})
}

func (m *Manager) update(apply func(*Config)) error {
	cfg, err := load(m.path, false)
	if err != nil {
		return err
	}

	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]string{}
	}
	if cfg.Models == nil {
		cfg.Models = map[string]string{}
	}

	apply(cfg)
	return m.Save(cfg)
}

// Save writes cfg atomically with owner-only permissions.
func (m *Manager) Save(cfg *Config) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
