// Package interop holds the CPU side of every structure a shader reads. The
// layouts follow HLSL constant buffer packing: no member straddles a 16 byte
// boundary, so a Vec3 is always followed by a 4 byte scalar or explicit
// padding. assets/shaders/interop/*.hlsli must be kept in sync.
package interop

import (
	"unsafe"

	"github.com/spaghettifunk/aurora/engine/math"
)

const (
	MaxLightCount = 64
	SunLightIndex = 0
)

type LightType uint32

const (
	LightTypeDirectional LightType = iota
	LightTypePoint
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	}
	return "unknown"
}

// SceneBuffer is the per-frame camera state.
type SceneBuffer struct {
	ViewProjectionMatrix        math.Mat4
	InverseProjectionMatrix     math.Mat4
	InverseViewProjectionMatrix math.Mat4
	ViewMatrix                  math.Mat4
	InverseViewMatrix           math.Mat4
	CameraPosition              math.Vec3
	FrameCount                  uint32
}

type Light struct {
	WorldSpacePositionOrDirection math.Vec3
	Type                          LightType
	Color                         math.Vec3
	Intensity                     float32
	ViewSpacePositionOrDirection  math.Vec3
	// Scale of the visualization cube of point lights.
	Scale float32
}

// LightBuffer holds every light of the scene. ModelMatrix[i] belongs to
// Lights[i+1]: the sun has no visualization cube.
type LightBuffer struct {
	Lights      [MaxLightCount]Light
	ModelMatrix [MaxLightCount - 1]math.Mat4
	LightCount  uint32
	// SunAngle in degrees.
	SunAngle float32
	_        [2]uint32
}

type MaterialBuffer struct {
	BaseColor               math.Vec4
	MetallicRoughnessFactor math.Vec2
	AlbedoTextureSrvIndex   uint32
	_                       uint32
}

type TransformBuffer struct {
	ModelMatrix                  math.Mat4
	TransposedInverseModelMatrix math.Mat4
}

type GameObjectBuffer struct {
	Transform TransformBuffer
}

// MeshBuffer describes where a mesh lives inside the scene wide vertex and
// index arrays. Offsets are in elements.
type MeshBuffer struct {
	MeshIndex          uint32
	GameObjectIndex    uint32
	PositionOffset     uint32
	NormalOffset       uint32
	TextureCoordOffset uint32
	IndicesOffset      uint32
	IndicesCount       uint32
	MaterialIndex      uint32
}

// PerezParameters are the five coefficients of the Perez sky luminance
// distribution. X, Y and Z carry the Y luminance and the x and y
// chromaticity.
type PerezParameters struct {
	A math.Vec3
	_ float32
	B math.Vec3
	_ float32
	C math.Vec3
	_ float32
	D math.Vec3
	_ float32
	E math.Vec3
	_ float32
}

type AtmosphereBuffer struct {
	PerezParameters             PerezParameters
	ZenithLuminanceChromaticity math.Vec3
	Turbidity                   float32
	MagnitudeMultiplier         float32
	AtmosphereTextureDimension  uint32
	_                           [2]uint32
}

type PostProcessBuffer struct {
	ScreenDimensions math.Vec2
	NoiseScale       float32
	FrameCount       uint32
}

// compile time layout checks
var (
	_ = [1]struct{}{}[unsafe.Sizeof(SceneBuffer{})-336]
	_ = [1]struct{}{}[unsafe.Sizeof(Light{})-48]
	_ = [1]struct{}{}[unsafe.Sizeof(MaterialBuffer{})-32]
	_ = [1]struct{}{}[unsafe.Sizeof(MeshBuffer{})-32]
	_ = [1]struct{}{}[unsafe.Sizeof(AtmosphereBuffer{})-112]
	_ = [1]struct{}{}[unsafe.Sizeof(PostProcessBuffer{})-16]
)
