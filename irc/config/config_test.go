package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ircd.local", cfg.Server.Name)
	assert.Equal(t, 6667, cfg.Server.Port)
	assert.Equal(t, 512, cfg.Limits.SendQ)
	assert.Equal(t, 300*time.Second, cfg.Limits.PingInterval)
	assert.Equal(t, "0.0.0.0:6667", cfg.ListenAddress())
	assert.Equal(t, "127.0.0.1:8080", cfg.AdminAddress())
	assert.Empty(t, cfg.Source)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "ircd.yaml", `
server:
  name: irc.test
  network: TestNet
  port: 7000
  motd:
    - line one
    - line two
limits:
  ping_interval: 45s
  flood_rate: 0
admin:
  enabled: true
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "irc.test", cfg.Server.Name)
	assert.Equal(t, "TestNet", cfg.Server.Network)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"line one", "line two"}, cfg.Server.MOTD)
	assert.Equal(t, 45*time.Second, cfg.Limits.PingInterval)
	assert.Equal(t, float64(0), cfg.Limits.FloodRate)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, 9090, cfg.Admin.Port)
	// untouched sections keep their defaults
	assert.Equal(t, 8191, cfg.Limits.MaxLine)
	assert.Equal(t, path, cfg.Source)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "ircd.toml", `
[server]
name = "toml.test"
network = "TomlNet"
port = 6668

[limits]
sendq = 64
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toml.test", cfg.Server.Name)
	assert.Equal(t, 6668, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Limits.SendQ)
}

func TestLoadJSONFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"server": {"name": "json.test", "network": "JsonNet", "port": 6669}}`))
	}))
	defer srv.Close()

	cfg, err := Load(srv.URL + "/ircd.json")
	require.NoError(t, err)
	assert.Equal(t, "json.test", cfg.Server.Name)
	assert.Equal(t, 6669, cfg.Server.Port)
}

func TestLoadJSONDurations(t *testing.T) {
	path := writeFile(t, "ircd.json", `{
	"limits": {"ping_interval": "45s", "ping_timeout": 5000000000, "sendq": 32}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Limits.PingInterval)
	assert.Equal(t, 5*time.Second, cfg.Limits.PingTimeout)
	assert.Equal(t, 32, cfg.Limits.SendQ)
	assert.Equal(t, 8191, cfg.Limits.MaxLine)

	path = writeFile(t, "bad.json", `{"limits": {"ping_interval": "soon"}}`)
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "ircd.yaml", "server:\n  name: file.test\n")

	t.Setenv("IRCD_SERVER_NAME", "env.test")
	t.Setenv("IRCD_PORT", "6700")
	t.Setenv("IRCD_MOTD", "first|second")
	t.Setenv("IRCD_PING_TIMEOUT", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.test", cfg.Server.Name)
	assert.Equal(t, 6700, cfg.Server.Port)
	assert.Equal(t, []string{"first", "second"}, cfg.Server.MOTD)
	assert.Equal(t, 10*time.Second, cfg.Limits.PingTimeout)
}

func TestValidation(t *testing.T) {
	path := writeFile(t, "bad.yaml", "server:\n  port: 70000\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeFile(t, "bad.yaml", "limits:\n  sendq: 0\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, "broken.yaml", "server: [unterminated")
	_, err = Load(path)
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	_, err = Load(srv.URL + "/ircd.yaml")
	assert.Error(t, err)
}
