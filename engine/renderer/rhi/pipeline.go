package rhi

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

type PipelineVariant uint8

const (
	PipelineVariantGraphics PipelineVariant = iota
	PipelineVariantCompute
)

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type PipelineCreationDesc struct {
	Variant       PipelineVariant
	VertexShader  shader.ShaderCreationDesc
	PixelShader   shader.ShaderCreationDesc
	ComputeShader shader.ShaderCreationDesc
	CullMode      CullMode
	RtvFormats    []Format
	DsvFormat     Format
	DepthWrite    bool
	Name          string
}

// Shaders lists the stages the pipeline is built from.
func (d PipelineCreationDesc) Shaders() []shader.ShaderCreationDesc {
	if d.Variant == PipelineVariantCompute {
		return []shader.ShaderCreationDesc{d.ComputeShader}
	}
	return []shader.ShaderCreationDesc{d.VertexShader, d.PixelShader}
}

// UsesShader reports whether any stage is compiled from path.
func (d PipelineCreationDesc) UsesShader(path string) bool {
	for _, s := range d.Shaders() {
		if s.Path == path {
			return true
		}
	}
	return false
}

// ShaderCompiler turns a shader description into bytecode.
type ShaderCompiler interface {
	Compile(desc shader.ShaderCreationDesc, ignoreErrors bool) (shader.Blob, error)
}

type Pipeline struct {
	Native NativePipeline
	Desc   PipelineCreationDesc
	Index  uint32
}

func (p *Pipeline) Destroy() {
	if p.Native != nil {
		p.Native.Destroy()
		p.Native = nil
	}
}

// CreatePipeline compiles every stage of desc and builds the native pipeline
// against the bindless root signature. With forReload set, compile errors
// are returned for the caller to report instead of being treated as fatal;
// the previous pipeline stays untouched either way.
func (d *Device) CreatePipeline(desc PipelineCreationDesc, compiler ShaderCompiler, forReload bool) (Pipeline, error) {
	native := NativePipelineDesc{
		Name:          desc.Name,
		Variant:       desc.Variant,
		CullMode:      desc.CullMode,
		RtvFormats:    desc.RtvFormats,
		DsvFormat:     desc.DsvFormat,
		DepthWrite:    desc.DepthWrite,
		RootSignature: d.rootSignature.Native,
	}

	compile := func(stage shader.ShaderCreationDesc, want shader.ShaderType) (ShaderBlob, error) {
		if stage.Path == "" || stage.EntryPoint == "" {
			return ShaderBlob{}, fmt.Errorf("pipeline %q: %s stage: %w", desc.Name, want, ErrMissingShaderStage)
		}
		stage.Type = want
		blob, err := compiler.Compile(stage, forReload)
		if err != nil {
			return ShaderBlob{}, fmt.Errorf("pipeline %q: %w", desc.Name, err)
		}
		return ShaderBlob{Code: blob.Code, EntryPoint: blob.EntryPoint}, nil
	}

	var err error
	switch desc.Variant {
	case PipelineVariantGraphics:
		if native.Vertex, err = compile(desc.VertexShader, shader.ShaderTypeVertex); err != nil {
			return Pipeline{}, err
		}
		if native.Pixel, err = compile(desc.PixelShader, shader.ShaderTypePixel); err != nil {
			return Pipeline{}, err
		}
	case PipelineVariantCompute:
		if native.Compute, err = compile(desc.ComputeShader, shader.ShaderTypeCompute); err != nil {
			return Pipeline{}, err
		}
	default:
		return Pipeline{}, fmt.Errorf("pipeline %q: unknown variant %d", desc.Name, desc.Variant)
	}

	p, err := d.backend.CreatePipeline(native)
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipeline %q: %w", desc.Name, err)
	}
	return Pipeline{Native: p, Desc: desc, Index: InvalidIndex}, nil
}
