package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  transport: http
  port: 9090
logger:
  level: debug
agents:
  - endpoint: https://alpha.example.com
    access_token: secret
  - endpoint: https://beta.example.com
    card_path: /cards/beta.json
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "secret", cfg.Agents[0].AccessToken)
	assert.Equal(t, "/cards/beta.json", cfg.Agents[1].CardPath)
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("BRIDGE_TEST_TOKEN", "from-env")

	path := writeConfig(t, `
agents:
  - endpoint: https://alpha.example.com
    access_token: ${BRIDGE_TEST_TOKEN}
  - endpoint: https://beta.example.com
    access_token: ${BRIDGE_TEST_MISSING:-fallback}
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agents[0].AccessToken)
	assert.Equal(t, "fallback", cfg.Agents[1].AccessToken)
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad transport", "server:\n  transport: grpc\n"},
		{"bad port", "server:\n  transport: http\n  port: 99999\n"},
		{"agent without endpoint", "agents:\n  - access_token: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseAgentsJSON(t *testing.T) {
	t.Setenv("BRIDGE_TEST_TOKEN", "tok")

	entries, err := ParseAgentsJSON(`[{"endpoint":"https://a.example.com","accessToken":"${BRIDGE_TEST_TOKEN}"},{"endpoint":"https://b.example.com","cardPath":"/card.json"}]`)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tok", entries[0].AccessToken)
	assert.Equal(t, "/card.json", entries[1].CardPath)

	_, err = ParseAgentsJSON(`not json`)
	assert.Error(t, err)

	_, err = ParseAgentsJSON(`[{"accessToken":"x"}]`)
	assert.ErrorContains(t, err, "no endpoint")
}
