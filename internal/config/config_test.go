package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portablefs/mtpkit/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 262144, cfg.ChunkSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.GVFSRoot)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MTPKIT_CHUNK_SIZE", "65536")
	t.Setenv("MTPKIT_LOG_LEVEL", "debug")
	t.Setenv("MTPKIT_GVFS_ROOT", "/tmp/gvfs")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.ChunkSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/gvfs", cfg.GVFSRoot)
}
