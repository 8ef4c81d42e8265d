package loaders

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
)

// PrimitivePrefix marks a model source generated in memory instead of read
// from disk, e.g. "primitive:cube".
const PrimitivePrefix = "primitive:"

// MaxIndexCount is the largest vertex index a 16 bit index buffer can hold.
const MaxIndexCount = 1 << 16

var (
	ErrUnknownPrimitive = errors.New("unknown primitive")
	ErrUnsupportedModel = errors.New("unsupported model format")
	ErrTooManyVertices  = errors.New("mesh exceeds 16 bit indices")
)

// ImageData is a decoded RGBA8 image. Zero Width means no image.
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

func (i ImageData) Valid() bool {
	return i.Width > 0 && i.Height > 0 && len(i.Pixels) == int(i.Width*i.Height*4)
}

type MaterialData struct {
	Name              string
	BaseColor         math.Vec4
	MetallicRoughness math.Vec2
	BaseColorTexture  ImageData
}

func DefaultMaterial() MaterialData {
	return MaterialData{
		Name:              "default",
		BaseColor:         math.NewVec4One(),
		MetallicRoughness: math.NewVec2(0, 0.5),
	}
}

// MeshData is one draw worth of vertices. MaterialIndex is local to the
// model it belongs to.
type MeshData struct {
	Positions     []math.Vec3
	Normals       []math.Vec3
	TexCoords     []math.Vec2
	Indices       []uint16
	MaterialIndex uint32
}

type ModelData struct {
	Meshes    []MeshData
	Materials []MaterialData
}

// Validate checks that every mesh is drawable and refers to a material.
func (m *ModelData) Validate() error {
	for i, mesh := range m.Meshes {
		n := len(mesh.Positions)
		if n == 0 || len(mesh.Indices) == 0 {
			return fmt.Errorf("mesh %d is empty", i)
		}
		if len(mesh.Normals) != n || len(mesh.TexCoords) != n {
			return fmt.Errorf("mesh %d has %d positions, %d normals, %d texture coords", i, n, len(mesh.Normals), len(mesh.TexCoords))
		}
		if n > MaxIndexCount {
			return fmt.Errorf("mesh %d has %d vertices: %w", i, n, ErrTooManyVertices)
		}
		if int(mesh.MaterialIndex) >= len(m.Materials) {
			return fmt.Errorf("mesh %d uses material %d of %d", i, mesh.MaterialIndex, len(m.Materials))
		}
	}
	return nil
}

// ModelLoader resolves model sources relative to a root directory.
type ModelLoader struct {
	Root string
}

func (ml *ModelLoader) Load(source string) (*ModelData, error) {
	var (
		model *ModelData
		err   error
	)
	if name, ok := strings.CutPrefix(source, PrimitivePrefix); ok {
		model, err = Primitive(name)
	} else {
		path := source
		if !filepath.IsAbs(path) {
			path = filepath.Join(ml.Root, path)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".obj":
			model, err = LoadOBJ(path)
		default:
			err = fmt.Errorf("%s: %w", source, ErrUnsupportedModel)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", source, err)
	}
	core.LogDebug("Loaded model %s with %d meshes and %d materials", source, len(model.Meshes), len(model.Materials))
	return model, nil
}
