package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(200_000), cfg.Renderer.CbvSrvUavHeapSize)
	assert.Equal(t, "dxc", cfg.Shaders.Compiler)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	data := `
[application]
name = "test"
width = 640
height = 480

[renderer]
backend = "headless"
frames = 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Application.Name)
	assert.Equal(t, uint32(640), cfg.Application.Width)
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, uint64(5), cfg.Renderer.Frames)
	// untouched sections keep their defaults
	assert.Equal(t, uint32(200_000), cfg.Renderer.CbvSrvUavHeapSize)
	assert.Equal(t, "assets/shaders", cfg.Shaders.Directory)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nbogus = 1\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Application.Width = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidDimensions)

	cfg = DefaultConfig()
	cfg.Renderer.CbvSrvUavHeapSize = 4
	assert.ErrorIs(t, cfg.Validate(), ErrHeapTooSmall)

	cfg = DefaultConfig()
	cfg.Renderer.Backend = "d3d12"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownBackend)
}
