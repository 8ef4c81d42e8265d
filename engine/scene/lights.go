package scene

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

const (
	DefaultSunAngle     float32 = -90
	DefaultSunIntensity float32 = 5.8
)

// Lights owns the light constant buffers, one per frame slot. Light
// interop.SunLightIndex always is the single directional light; every
// other one is a point light.
type Lights struct {
	data   interop.LightBuffer
	buffer renderpass.PerFrameBuffer
}

func NewLights(res Resources) (*Lights, error) {
	buffer, err := renderpass.NewPerFrameBuffer(res, rhi.NewBufferDesc[interop.LightBuffer](rhi.BufferUsageConstantBuffer, "light buffer", 1), nil)
	if err != nil {
		return nil, err
	}
	l := &Lights{buffer: buffer}
	l.Reset()
	return l, nil
}

// Reset drops every point light and restores the default sun.
func (l *Lights) Reset() {
	l.data = interop.LightBuffer{SunAngle: DefaultSunAngle}
	angle := math.DegToRad(DefaultSunAngle)
	l.AddLight(interop.Light{
		Type:                          interop.LightTypeDirectional,
		WorldSpacePositionOrDirection: math.NewVec3(0, math32.Sin(angle), math32.Cos(angle)),
		Color:                         math.NewVec3One(),
		Intensity:                     DefaultSunIntensity,
	})
}

// AddLight appends a light. It reports false, with a warning, when the
// buffer is full or when light is a second directional light.
func (l *Lights) AddLight(light interop.Light) bool {
	if l.data.LightCount >= interop.MaxLightCount {
		core.LogWarn("Not adding light the MAX_LIGHT_COUNT is already reached.")
		return false
	}
	if light.Type == interop.LightTypeDirectional && l.data.LightCount > interop.SunLightIndex {
		core.LogWarn("Not adding light since directional light already exists (only 1 such light is allowed in the engine currently).")
		return false
	}
	l.data.Lights[l.data.LightCount] = light
	l.data.LightCount++
	return true
}

// SetSun changes the color and intensity of the directional light.
func (l *Lights) SetSun(color math.Vec3, intensity float32) {
	sun := &l.data.Lights[interop.SunLightIndex]
	sun.Color = color
	sun.Intensity = intensity
}

// SunAngle is the elevation of the sun in degrees.
func (l *Lights) SunAngle() float32 {
	return l.data.SunAngle
}

func (l *Lights) SetSunAngle(degrees float32) {
	l.data.SunAngle = degrees
}

// SunDirection is the normalized direction towards the sun as of the last
// Update.
func (l *Lights) SunDirection() math.Vec3 {
	return l.data.Lights[interop.SunLightIndex].WorldSpacePositionOrDirection
}

func (l *Lights) Count() uint32 {
	return l.data.LightCount
}

func (l *Lights) Light(i uint32) interop.Light {
	return l.data.Lights[i]
}

// BufferIndex is the light buffer of the current frame slot.
func (l *Lights) BufferIndex() uint32 {
	return l.buffer.Index()
}

// Update recomputes the sun direction from the sun angle, the view space
// copies of every light and the model matrices of the point light cubes,
// then uploads the buffer.
func (l *Lights) Update(view math.Mat4) error {
	angle := math.DegToRad(l.data.SunAngle)
	sun := &l.data.Lights[interop.SunLightIndex]
	sun.WorldSpacePositionOrDirection = math.NewVec3(0, -math32.Sin(angle), -math32.Cos(angle)).Normalized()
	sun.ViewSpacePositionOrDirection = sun.WorldSpacePositionOrDirection.TransformNormal(view).Normalized()

	// ModelMatrix[i-1] belongs to light i, the sun has no cube.
	for i := uint32(1); i < l.data.LightCount; i++ {
		light := &l.data.Lights[i]
		light.ViewSpacePositionOrDirection = light.WorldSpacePositionOrDirection.TransformCoord(view)
		l.data.ModelMatrix[i-1] = math.NewMat4UniformScale(light.Scale).
			Mul(math.NewMat4Translation(light.WorldSpacePositionOrDirection))
	}

	return l.buffer.Update(rhi.BytesOf(&l.data))
}
