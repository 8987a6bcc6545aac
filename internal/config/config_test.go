package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultUploadDir, cfg.UploadDir)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, int64(DefaultMaxUploadSize), cfg.MaxUploadSize)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--host", "127.0.0.1",
		"--port", "9090",
		"--upload-dir", "in",
		"--session-ttl", "1h",
		"--default-font", "Courier",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, "in", cfg.UploadDir)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "Courier", cfg.DefaultFont)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("STAMPER_OUTPUT_DIR", "stamped")
	t.Setenv("STAMPER_CLEANUP_INTERVAL", "30s")
	t.Setenv("PORT", "7070")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "stamped", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 7070, cfg.Port)

	// flags win over the environment
	cfg, err = Load([]string{"--port", "6060"})
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string][]string{
		"port":        {"--port", "70000"},
		"upload size": {"--max-upload-size", "0"},
		"ttl":         {"--session-ttl", "-1s"},
		"font":        {"--default-font", "Comic Sans"},
		"unknown":     {"--colour", "red"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(args)
			assert.Error(t, err)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.UploadDir = filepath.Join(root, "a", "uploads")
	cfg.OutputDir = filepath.Join(root, "b", "output")

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.UploadDir)
	assert.DirExists(t, cfg.OutputDir)
}
