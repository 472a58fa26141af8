package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(TokenEnv, "")
	path := writeConfig(t, `{
		"token": "from-file",
		"storage": "sqlite",
		"locale": "nb-NO",
		"escalation_scope": "guild",
		"default_features": {"antiSpam": true}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Token)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, ScopeGuild, cfg.EscalationScope)
	assert.True(t, cfg.DefaultFeatures[FeatureAntiSpam])
	assert.Equal(t, 1, cfg.Shards)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoadConfigEnvToken(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	path := writeConfig(t, `{"token": "from-file"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"storage": `},
		{"unknown storage", `{"storage": "postgres"}`},
		{"bad locale", `{"locale": "not a locale!"}`},
		{"unknown feature", `{"default_features": {"antiRaid": true}}`},
		{"unknown scope", `{"escalation_scope": "server"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfigPrinter(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "12,345", cfg.Printer().Sprintf("%d", 12345))

	cfg.Locale = "???"
	assert.NotNil(t, cfg.Printer())
}
