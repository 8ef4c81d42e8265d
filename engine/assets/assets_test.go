package assets_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/assets"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestManager(t *testing.T, debounce time.Duration) (*assets.AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "shading", "pbr.hlsl"), "// pbr")
	writeFile(t, filepath.Join(root, "scenes", "sandbox.toml"), "name = 'sandbox'")
	writeFile(t, filepath.Join(root, "readme.txt"), "ignored")

	am, err := assets.NewAssetManager(root, assets.Options{Debounce: debounce})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, am.Close())
	})
	return am, am.Root()
}

func TestIndexesKnownAssets(t *testing.T) {
	am, root := newTestManager(t, 0)

	shaders := am.Assets(assets.AssetTypeShader)
	require.Len(t, shaders, 1)
	assert.Equal(t, filepath.Join(root, "shaders", "shading", "pbr.hlsl"), shaders[0].Path)
	assert.Len(t, am.Assets(assets.AssetTypeScene), 1)
	assert.Empty(t, am.Assets(assets.AssetTypeNone))
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, assets.AssetTypeShader, assets.DetermineAssetType("a/b.HLSL"))
	assert.Equal(t, assets.AssetTypeShader, assets.DetermineAssetType("interop.hlsli"))
	assert.Equal(t, assets.AssetTypeScene, assets.DetermineAssetType("s.yaml"))
	assert.Equal(t, assets.AssetTypeModel, assets.DetermineAssetType("m.obj"))
	assert.Equal(t, assets.AssetTypeImage, assets.DetermineAssetType("t.png"))
	assert.Equal(t, assets.AssetTypeFont, assets.DetermineAssetType("f.fnt"))
	assert.Equal(t, assets.AssetTypeNone, assets.DetermineAssetType("notes.txt"))
}

func TestDrainDeliversOnCallingGoroutine(t *testing.T) {
	am, root := newTestManager(t, 0)
	var shaders, scenes []string
	am.OnChange(assets.AssetTypeShader, func(path string) { shaders = append(shaders, path) })
	am.OnChange(assets.AssetTypeScene, func(path string) { scenes = append(scenes, path) })

	shader := filepath.Join(root, "shaders", "shading", "pbr.hlsl")
	am.Notify(shader)
	am.Notify(shader)
	am.Notify(filepath.Join(root, "readme.txt"))

	assert.Equal(t, 1, am.Drain())
	assert.Equal(t, []string{shader}, shaders)
	assert.Empty(t, scenes)
	assert.Equal(t, 0, am.Drain())
}

func TestDrainDebounces(t *testing.T) {
	am, root := newTestManager(t, time.Hour)
	calls := 0
	am.OnChange(assets.AssetTypeScene, func(string) { calls++ })

	am.Notify(filepath.Join(root, "scenes", "sandbox.toml"))
	assert.Equal(t, 0, am.Drain())
	assert.Zero(t, calls)
}

func TestWatchPicksUpWrites(t *testing.T) {
	am, root := newTestManager(t, 0)
	var changed []string
	am.OnChange(assets.AssetTypeShader, func(path string) { changed = append(changed, path) })
	require.NoError(t, am.Watch())
	require.NoError(t, am.Watch())

	shader := filepath.Join(root, "shaders", "shading", "pbr.hlsl")
	writeFile(t, shader, "// edited")

	require.Eventually(t, func() bool {
		am.Drain()
		return len(changed) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, shader, changed[0])
}

func TestLoadModel(t *testing.T) {
	am, _ := newTestManager(t, 0)

	model, err := am.LoadModel("primitive:sphere")
	require.NoError(t, err)
	assert.Len(t, model.Meshes, 1)
}

func TestClosedManagerRefusesWatch(t *testing.T) {
	am, _ := newTestManager(t, 0)
	require.NoError(t, am.Close())
	assert.ErrorIs(t, am.Watch(), assets.ErrClosed)
}

func TestPreloadHandsOutModelsOnce(t *testing.T) {
	am, _ := newTestManager(t, 0)

	require.NoError(t, am.Preload([]string{"primitive:cube", "primitive:cube", "primitive:sphere", "missing.obj"}))
	first, err := am.LoadModel("primitive:cube")
	require.NoError(t, err)
	second, err := am.LoadModel("primitive:cube")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// failures surface on load
	_, err = am.LoadModel("missing.obj")
	assert.Error(t, err)

	require.NoError(t, am.Close())
	assert.ErrorIs(t, am.Preload([]string{"primitive:cube"}), assets.ErrClosed)
}
