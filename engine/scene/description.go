package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
)

var (
	ErrUnsupportedDescription = errors.New("unsupported scene description format")
	ErrInvalidDescription     = errors.New("invalid scene description")
)

// Float3 is a vector as it appears in a description file: [x, y, z].
type Float3 [3]float32

func (f Float3) Vec3() math.Vec3 {
	return math.NewVec3(f[0], f[1], f[2])
}

func (f Float3) IsZero() bool {
	return f == Float3{}
}

type Float4 [4]float32

func (f Float4) Vec4() math.Vec4 {
	return math.NewVec4(f[0], f[1], f[2], f[3])
}

type CameraDescription struct {
	Position Float3 `toml:"position" yaml:"position"`
	// Pitch and Yaw in degrees.
	Pitch         float32 `toml:"pitch" yaml:"pitch"`
	Yaw           float32 `toml:"yaw" yaml:"yaw"`
	MovementSpeed float32 `toml:"movement_speed" yaml:"movement_speed"`
	RotationSpeed float32 `toml:"rotation_speed" yaml:"rotation_speed"`
	Friction      float32 `toml:"friction" yaml:"friction"`
}

type LightDescription struct {
	// Type is "point" or "directional".
	Type      string  `toml:"type" yaml:"type"`
	Position  Float3  `toml:"position" yaml:"position"`
	Color     Float3  `toml:"color" yaml:"color"`
	Intensity float32 `toml:"intensity" yaml:"intensity"`
	Scale     float32 `toml:"scale" yaml:"scale"`
}

// GameObjectDescription places a model in the scene. The material fields
// override every material of the model when set.
type GameObjectDescription struct {
	Name  string `toml:"name" yaml:"name"`
	Model string `toml:"model" yaml:"model"`
	// Rotation in degrees around X, Y and Z. A zero Scale means 1.
	Translation   Float3   `toml:"translation" yaml:"translation"`
	Rotation      Float3   `toml:"rotation" yaml:"rotation"`
	Scale         Float3   `toml:"scale" yaml:"scale"`
	BaseColor     *Float4  `toml:"base_color" yaml:"base_color"`
	Metallic      *float32 `toml:"metallic" yaml:"metallic"`
	Roughness     *float32 `toml:"roughness" yaml:"roughness"`
	AlbedoTexture string   `toml:"albedo_texture" yaml:"albedo_texture"`
}

// Description is the on-disk form of a scene.
type Description struct {
	Name   string            `toml:"name" yaml:"name"`
	Camera CameraDescription `toml:"camera" yaml:"camera"`
	// SunAngle in degrees; nil keeps the default.
	SunAngle    *float32                `toml:"sun_angle" yaml:"sun_angle"`
	Lights      []LightDescription      `toml:"lights" yaml:"lights"`
	GameObjects []GameObjectDescription `toml:"game_objects" yaml:"game_objects"`
}

// LoadDescription reads a TOML or YAML scene description, picked by the file
// extension.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene %s: %w", path, err)
	}
	desc, err := DecodeDescription(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to decode scene %s: %w", path, err)
	}
	return desc, nil
}

// DecodeDescription parses data in the format named by ext (".toml", ".yaml"
// or ".yml"). Unknown keys are rejected.
func DecodeDescription(data []byte, ext string) (*Description, error) {
	desc := &Description{}
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(desc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(desc); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDescription, ext)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

func (d *Description) Validate() error {
	if len(d.GameObjects) > MaxGameObjects {
		return fmt.Errorf("%w: %d game objects, at most %d", ErrInvalidDescription, len(d.GameObjects), MaxGameObjects)
	}
	for i, g := range d.GameObjects {
		if g.Model == "" {
			return fmt.Errorf("%w: game object %d (%s) has no model", ErrInvalidDescription, i, g.Name)
		}
	}
	for i, l := range d.Lights {
		if _, err := parseLightType(l.Type); err != nil {
			return fmt.Errorf("%w: light %d: %v", ErrInvalidDescription, i, err)
		}
	}
	return nil
}

func parseLightType(s string) (interop.LightType, error) {
	switch strings.ToLower(s) {
	case "", "point":
		return interop.LightTypePoint, nil
	case "directional":
		return interop.LightTypeDirectional, nil
	}
	return 0, fmt.Errorf("unknown light type %q", s)
}
