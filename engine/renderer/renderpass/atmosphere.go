package renderpass

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/aurora/engine/core"
	amath "github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

const (
	// AtmosphereTextureDimension is the edge length of each sky cube face.
	AtmosphereTextureDimension = 256
	atmosphereThreadGroupSize  = 8

	DefaultTurbidity           = 4.0
	DefaultMagnitudeMultiplier = 0.019
)

// Atmosphere evaluates A. J. Preetham's analytic daylight model into a cube
// texture every frame. The sky is sampled by the shading pass for ambient
// light and drawn by the cube map pass as background.
type Atmosphere struct {
	ctx Context

	data     interop.AtmosphereBuffer
	buffer   PerFrameBuffer
	texture  uint32
	pipeline uint32
}

func NewAtmosphere(ctx Context) (*Atmosphere, error) {
	a := &Atmosphere{ctx: ctx}
	a.data.Turbidity = DefaultTurbidity
	a.data.MagnitudeMultiplier = DefaultMagnitudeMultiplier
	a.data.AtmosphereTextureDimension = AtmosphereTextureDimension

	var err error
	if a.buffer, err = NewPerFrameBuffer(ctx,
		rhi.NewBufferDesc[interop.AtmosphereBuffer](rhi.BufferUsageConstantBuffer, "atmosphere buffer", 1), nil); err != nil {
		return nil, err
	}
	if a.texture, err = ctx.CreateTexture(rhi.TextureCreationDesc{
		Usage:            rhi.TextureUsageUAV,
		Format:           rhi.FormatR16G16B16A16Float,
		Width:            AtmosphereTextureDimension,
		Height:           AtmosphereTextureDimension,
		DepthOrArraySize: 6,
		Cube:             true,
		Name:             "atmosphere texture",
	}, nil); err != nil {
		return nil, err
	}
	if a.pipeline, err = ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant: rhi.PipelineVariantCompute,
		ComputeShader: shader.ShaderCreationDesc{
			Type:       shader.ShaderTypeCompute,
			Path:       "atmosphere/preetham_sky.hlsl",
			EntryPoint: "cs_main",
		},
		Name: "preetham sky pipeline",
	}); err != nil {
		return nil, err
	}

	core.LogInfo("Created atmosphere render pass")
	return a, nil
}

// Data is the constant buffer contents as of the last Update.
func (a *Atmosphere) Data() interop.AtmosphereBuffer {
	return a.data
}

func (a *Atmosphere) SetTurbidity(turbidity float32) {
	a.data.Turbidity = turbidity
}

// BufferIndex is the arena index of the constant buffer of slot.
func (a *Atmosphere) BufferIndex(slot uint32) uint32 {
	return a.buffer.At(slot)
}

// AtmosphereTextureIndex is the arena index of the sky cube texture.
func (a *Atmosphere) AtmosphereTextureIndex() uint32 {
	return a.texture
}

// Update recomputes the model for the current sun and uploads it.
func (a *Atmosphere) Update(sunDirection amath.Vec3) error {
	a.data.PerezParameters = PerezParametersFor(a.data.Turbidity)
	a.data.ZenithLuminanceChromaticity = ZenithLuminanceChromaticity(a.data.Turbidity, sunDirection)
	return a.buffer.Update(rhi.BytesOf(&a.data))
}

// Compute fills every face of the sky cube and leaves it readable by pixel
// shaders. Release returns it to unordered access for the next frame.
func (a *Atmosphere) Compute(cl *rhi.CommandList, sceneCBV, lightCBV uint32) {
	texture := a.ctx.TextureAt(a.texture)

	cl.SetBindlessComputeRootSignature()
	cl.SetPipelineState(a.ctx.PipelineAt(a.pipeline))
	cl.SetComputeRootConstants(rhi.RootConstantsFrom(interop.AtmosphereRenderResources{
		AtmosphereBufferCbvIndex: a.buffer.Current().CbvIndex,
		OutputTextureUavIndex:    texture.UavIndex,
		SceneBufferCbvIndex:      sceneCBV,
		LightBufferCbvIndex:      lightCBV,
	}))
	groups := uint32(AtmosphereTextureDimension / atmosphereThreadGroupSize)
	cl.Dispatch(groups, groups, 6)

	cl.AddResourceBarrier(texture, rhi.ResourceStateUnorderedAccess, rhi.ResourceStatePixelShaderResource)
	cl.ExecuteBarriers()
}

func (a *Atmosphere) Release(cl *rhi.CommandList) {
	cl.AddResourceBarrier(a.ctx.TextureAt(a.texture), rhi.ResourceStatePixelShaderResource, rhi.ResourceStateUnorderedAccess)
}

// PerezParametersFor returns the distribution coefficients for a turbidity,
// from section A.2 of Preetham et al.
func PerezParametersFor(t float32) interop.PerezParameters {
	return interop.PerezParameters{
		A: amath.NewVec3(0.1787*t-1.4630, -0.0193*t-0.2592, -0.0167*t-0.2608),
		B: amath.NewVec3(-0.3554*t+0.4275, -0.0665*t+0.0008, -0.0950*t+0.0092),
		C: amath.NewVec3(-0.0227*t+5.3251, -0.0004*t+0.2125, -0.0079*t+0.2102),
		D: amath.NewVec3(0.1206*t-2.5771, -0.0641*t-0.8989, -0.0441*t-1.6537),
		E: amath.NewVec3(-0.0670*t+0.3703, -0.0033*t+0.0452, -0.0109*t+0.0529),
	}
}

// ZenithLuminanceChromaticity returns the zenith Y luminance and x, y
// chromaticity for a turbidity and sun direction. The sun below the horizon
// is treated as sitting on it.
func ZenithLuminanceChromaticity(t float32, sunDirection amath.Vec3) amath.Vec3 {
	thetaS := math32.Acos(amath.Clamp(sunDirection.Y, 0, 1))
	chi := (4.0/9.0 - t/120.0) * (math32.Pi - 2*thetaS)

	theta3 := thetaS * thetaS * thetaS
	theta2 := thetaS * thetaS
	t2 := t * t

	luminance := (4.0453*t-4.9710)*math32.Tan(chi) - 0.2155*t + 2.4192
	x := t2*(0.0017*theta3-0.00375*theta2+0.0021*thetaS) +
		t*(-0.0290*theta3+0.0638*theta2-0.0320*thetaS+0.0039) +
		(0.1169*theta3 - 0.2120*theta2 + 0.0605*thetaS + 0.2589)
	y := t2*(0.0028*theta3-0.0061*theta2+0.0032*thetaS) +
		t*(-0.0421*theta3+0.0897*theta2-0.0415*thetaS+0.0052) +
		(0.1535*theta3 - 0.2676*theta2 + 0.0667*thetaS + 0.2669)

	return amath.NewVec3(luminance, x, y)
}
