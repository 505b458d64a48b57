package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sysconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 300, cfg.Executor.TimeoutSeconds)
	assert.Equal(t, []string{"*"}, cfg.Security.Allowlist["cli"])
	assert.False(t, cfg.Web.Enabled)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
sqlite:
  path: /tmp/console.db
security:
  allowlist:
    web: [alice]
  deny_actions: [users/delete-user, docker]
web:
  enabled: true
  tokens:
    ops:
      token_sha256: "`+strings.Repeat("a", 64)+`"
      subject: alice
      enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/console.db", cfg.SQLite.Path)
	assert.Equal(t, 30, cfg.SQLite.RetentionDays)
	assert.Equal(t, []string{"alice"}, cfg.Security.Allowlist["web"])
	assert.Equal(t, []string{"users/delete-user", "docker"}, cfg.Security.DenyActions)
	assert.Equal(t, "alice", cfg.Web.Tokens["ops"].Subject)
	assert.Equal(t, "127.0.0.1:8080", cfg.Web.ListenAddr)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "executor:\n  timeout_seconds: 10\n")
	t.Setenv("SYSCONSOLE_EXECUTOR_TIMEOUT_SECONDS", "45")
	t.Setenv("SYSCONSOLE_WEB_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("SYSCONSOLE_SECURITY_DENY_ACTIONS", "firewall,package/remove")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Executor.TimeoutSeconds)
	assert.Equal(t, "0.0.0.0:9090", cfg.Web.ListenAddr)
	assert.Equal(t, []string{"firewall", "package/remove"}, cfg.Security.DenyActions)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, ""))
	assert.EqualError(t, err, "config file is empty")

	_, err = Load(writeConfig(t, "web:\n  tokens:\n    bad:\n      token_sha256: abc\n      enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.tokens.bad")
}
