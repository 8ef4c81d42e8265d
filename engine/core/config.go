package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigPath is relative to the working directory of the binary.
const DefaultConfigPath = "assets/config/engine.toml"

// ReservedDescriptorSlots is the number of CBV/SRV/UAV slots the renderer
// always consumes before any scene data is loaded (per-frame command buffers,
// depth texture, render texture, atmosphere cube faces, post process buffers).
const ReservedDescriptorSlots uint32 = 32

type ApplicationConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	PosX   int32  `toml:"pos_x"`
	PosY   int32  `toml:"pos_y"`
}

type RendererConfig struct {
	Backend            string `toml:"backend"`
	VSync              bool   `toml:"vsync"`
	Debug              bool   `toml:"debug"`
	Frames             uint64 `toml:"frames"`
	CbvSrvUavHeapSize  uint32 `toml:"cbv_srv_uav_heap_size"`
	RtvHeapSize        uint32 `toml:"rtv_heap_size"`
	DsvHeapSize        uint32 `toml:"dsv_heap_size"`
	MaxPrimitiveCount  uint32 `toml:"max_primitive_count"`
	PipelineReloadSize int    `toml:"pipeline_reload_queue"`
}

type ShaderConfig struct {
	Directory string `toml:"directory"`
	Compiler  string `toml:"compiler"`
	HotReload bool   `toml:"hot_reload"`
}

type AssetsConfig struct {
	Root string `toml:"root"`
	// DebounceMS is how long a changed file has to stay quiet before it
	// is reloaded.
	DebounceMS int `toml:"debounce_ms"`
}

type SceneConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type OverlayConfig struct {
	Font string `toml:"font"`
}

// EngineConfig is the on-disk engine configuration.
type EngineConfig struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Shaders     ShaderConfig      `toml:"shaders"`
	Assets      AssetsConfig      `toml:"assets"`
	Scene       SceneConfig       `toml:"scene"`
	Log         LogConfig         `toml:"log"`
	Overlay     OverlayConfig     `toml:"overlay"`
}

var (
	ErrInvalidDimensions = errors.New("window dimensions must be non zero")
	ErrHeapTooSmall      = errors.New("descriptor heap is smaller than the reserved slot count")
	ErrUnknownBackend    = errors.New("unknown renderer backend")
)

func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Application: ApplicationConfig{
			Name:   "Aurora",
			Width:  1280,
			Height: 720,
			PosX:   100,
			PosY:   100,
		},
		Renderer: RendererConfig{
			Backend:            "vulkan",
			VSync:              true,
			Debug:              true,
			CbvSrvUavHeapSize:  200_000,
			RtvHeapSize:        16,
			DsvHeapSize:        8,
			MaxPrimitiveCount:  4096,
			PipelineReloadSize: 64,
		},
		Shaders: ShaderConfig{
			Directory: "assets/shaders",
			Compiler:  "dxc",
			HotReload: true,
		},
		Assets: AssetsConfig{
			Root:       "assets",
			DebounceMS: 100,
		},
		Scene: SceneConfig{
			Path: "assets/scenes/sandbox.toml",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// LoadConfig overlays the TOML file at path on top of DefaultConfig.
// A missing file is not an error: the defaults are returned.
func LoadConfig(path string) (*EngineConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogWarn("config file '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := DecodeConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DecodeConfig(data []byte, cfg *EngineConfig) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func (c *EngineConfig) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, c.Application.Width, c.Application.Height)
	}
	if c.Renderer.CbvSrvUavHeapSize < ReservedDescriptorSlots {
		return fmt.Errorf("%w: cbv_srv_uav_heap_size=%d", ErrHeapTooSmall, c.Renderer.CbvSrvUavHeapSize)
	}
	// three back buffers plus the render texture
	if c.Renderer.RtvHeapSize < 4 {
		return fmt.Errorf("%w: rtv_heap_size=%d", ErrHeapTooSmall, c.Renderer.RtvHeapSize)
	}
	if c.Renderer.DsvHeapSize < 1 {
		return fmt.Errorf("%w: dsv_heap_size=%d", ErrHeapTooSmall, c.Renderer.DsvHeapSize)
	}
	switch c.Renderer.Backend {
	case "vulkan", "headless":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Renderer.Backend)
	}
	return nil
}
