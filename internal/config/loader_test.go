package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoad_OverridesLayerOverDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  url: https://hc.internal.example.com
envKey: MY_PING_KEY
graceMargin: 10m
suspendedPolicy: pause
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://hc.internal.example.com", config.API.URL)
	assert.Equal(t, "MY_PING_KEY", config.EnvKey)
	assert.Equal(t, Duration(10*time.Minute), config.GraceMargin)
	assert.Equal(t, "pause", config.SuspendedPolicy)
	// Untouched fields keep their defaults.
	assert.Equal(t, "Europe/Berlin", config.Timezone)
	assert.Equal(t, 2, config.TagRank)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "api: [broken")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	path := writeConfig(t, "suspendedPolicy: delete")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspendedPolicy")
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestDefaultPath(t *testing.T) {
	original := osUserHomeDir
	defer func() { osUserHomeDir = original }()
	osUserHomeDir = func() (string, error) { return "/home/tester", nil }

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.config/healthkube/config.yaml", path)
}
