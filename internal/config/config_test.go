package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfajk/comp-gate/internal/config"
	"github.com/xfajk/comp-gate/internal/whitelist"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "comp-gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:0", cfg.ListenAddr)
		assert.Equal(t, []string{"hub", "usbhub", "usbhub3"}, cfg.HubDrivers)
		assert.Equal(t, "device_whitelist", cfg.SecretStore.Account)
		assert.False(t, cfg.Policy.EnforceOnStart)
		assert.Equal(t, whitelist.ContinueOnFailure, cfg.FailurePolicy())
		assert.Equal(t, 256, cfg.ConnectionLogLimit)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: 127.0.0.1:7878
log_level: info
hub_drivers: [hub]
secret_store:
  path: /var/lib/comp-gate/secrets.db
policy:
  enforce_on_start: true
  on_apply_failure: abort
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7878", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"hub"}, cfg.HubDrivers)
	assert.Equal(t, "/var/lib/comp-gate/secrets.db", cfg.SecretStore.Path)
	assert.True(t, cfg.Policy.EnforceOnStart)
	assert.Equal(t, whitelist.AbortOnFailure, cfg.FailurePolicy())

	// Untouched keys keep their defaults.
	assert.Equal(t, "comp-gate.xfajk", cfg.SecretStore.Service)
	assert.Equal(t, 256, cfg.ConnectionLogLimit)
}

func TestLoadRejectsBadFailureMode(t *testing.T) {
	path := writeConfig(t, "policy:\n  on_apply_failure: explode\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_apply_failure")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "listen_addr: [unclosed\n")

	_, err := config.Load(path)
	require.Error(t, err)
}
