// Package config loads the daemon configuration from a YAML file,
// falling back to built-in defaults when no file is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/xfajk/comp-gate/internal/whitelist"
)

type Config struct {
	ListenAddr         string            `yaml:"listen_addr"`
	ConnectionFile     string            `yaml:"connection_file"`
	SecretStore        SecretStoreConfig `yaml:"secret_store"`
	HubDrivers         []string          `yaml:"hub_drivers"`
	Policy             PolicyConfig      `yaml:"policy"`
	LogLevel           string            `yaml:"log_level"`
	ConnectionLogLimit int               `yaml:"connection_log_limit"`
}

type SecretStoreConfig struct {
	Path    string `yaml:"path"`
	Service string `yaml:"service"`
	Account string `yaml:"account"`
}

type PolicyConfig struct {
	EnforceOnStart bool   `yaml:"enforce_on_start"`
	OnApplyFailure string `yaml:"on_apply_failure"` // "continue" or "abort"
}

func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:0",
		ConnectionFile: filepath.Join(os.TempDir(), "comp-gate.txt"),
		SecretStore: SecretStoreConfig{
			Path:    filepath.Join(os.TempDir(), "comp-gate-secrets.db"),
			Service: "comp-gate.xfajk",
			Account: "device_whitelist",
		},
		HubDrivers: []string{"hub", "usbhub", "usbhub3"},
		Policy: PolicyConfig{
			EnforceOnStart: false,
			OnApplyFailure: "continue",
		},
		LogLevel:           "debug",
		ConnectionLogLimit: 256,
	}
}

// Load reads the config at path over the defaults. An empty path or a
// missing file yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Policy.OnApplyFailure {
	case "continue", "abort":
		return nil
	default:
		return fmt.Errorf("policy.on_apply_failure must be \"continue\" or \"abort\", got %q", c.Policy.OnApplyFailure)
	}
}

// FailurePolicy maps the configured apply-failure mode onto the
// whitelist engine's policy.
func (c Config) FailurePolicy() whitelist.FailurePolicy {
	if c.Policy.OnApplyFailure == "abort" {
		return whitelist.AbortOnFailure
	}
	return whitelist.ContinueOnFailure
}
