package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.AppPort)
	assert.Equal(t, 5555, cfg.PubPort)
	assert.Equal(t, 5556, cfg.PullPort)
	assert.Equal(t, 10*time.Second, cfg.HTTPXTimeout)
	assert.Equal(t, "HS256", cfg.Algorithm)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9100")
	t.Setenv("HTTPX_TIMEOUT", "5")
	t.Setenv("SECRET_KEY", "shh")
	t.Setenv("MAX_CONCURRENT_WORKER_COMMANDS", "200")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.AppPort)
	assert.Equal(t, 5*time.Second, cfg.HTTPXTimeout)
	assert.Equal(t, "shh", cfg.SecretKey)
	assert.Equal(t, 200, cfg.MaxConcurrentWorkerCommands)
}

func TestLoadYAMLOverlayWinsOverEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9100")

	f, err := os.CreateTemp(t.TempDir(), "scenario-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("app_port: 7000\ndefault_hubs_per_network: 5\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.AppPort)
	assert.Equal(t, 5, cfg.DefaultHubsPerNetwork)
}

func TestLoadYAMLMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/scenario.yaml")
	assert.Error(t, err)
}
