package rhi

import "fmt"

type TextureUsage uint8

const (
	TextureUsageDepthStencil TextureUsage = iota
	TextureUsageShaderResource
	TextureUsageUAV
	TextureUsageRenderTarget
)

func (u TextureUsage) String() string {
	switch u {
	case TextureUsageDepthStencil:
		return "DepthStencil"
	case TextureUsageShaderResource:
		return "ShaderResource"
	case TextureUsageUAV:
		return "UAV"
	case TextureUsageRenderTarget:
		return "RenderTarget"
	}
	return fmt.Sprintf("TextureUsage(%d)", uint8(u))
}

// RestingState is the state a texture of this usage is created in and
// returned to at the end of every pass that transitions it.
func (u TextureUsage) RestingState() ResourceState {
	switch u {
	case TextureUsageDepthStencil:
		return ResourceStateDepthWrite
	case TextureUsageUAV:
		return ResourceStateUnorderedAccess
	}
	return ResourceStatePixelShaderResource
}

type TextureCreationDesc struct {
	Usage         TextureUsage
	Format        Format
	BytesPerPixel uint32
	Width         uint32
	Height        uint32
	// DepthOrArraySize is 6 for cube maps.
	DepthOrArraySize uint32
	MipLevels        uint32
	Cube             bool
	Name             string
}

func (d TextureCreationDesc) normalized() TextureCreationDesc {
	if d.DepthOrArraySize == 0 {
		d.DepthOrArraySize = 1
	}
	if d.Cube && d.DepthOrArraySize < 6 {
		d.DepthOrArraySize = 6
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.BytesPerPixel == 0 {
		d.BytesPerPixel = d.Format.BytesPerPixel()
	}
	return d
}

// CopyLayout is the tightly packed layout of the initial data of a texture.
func (d TextureCreationDesc) CopyLayout() TextureCopyLayout {
	d = d.normalized()
	rowPitch := d.Width * d.BytesPerPixel
	return TextureCopyLayout{
		Width:      d.Width,
		Height:     d.Height,
		RowPitch:   rowPitch,
		ArraySize:  d.DepthOrArraySize,
		BufferSize: uint64(rowPitch) * uint64(d.Height) * uint64(d.DepthOrArraySize),
	}
}

type Texture struct {
	Resource NativeTexture
	Usage    TextureUsage
	Name     string
	SrvIndex uint32
	UavIndex uint32
	RtvIndex uint32
	DsvIndex uint32
	Width    uint32
	Height   uint32
	Format   Format
	// UavFaceIndices holds one UAV per cube face, contiguous in the heap.
	UavFaceIndices []uint32
}

func (t *Texture) NativeResource() NativeResource {
	return t.Resource
}

func (t *Texture) Destroy() {
	if t.Resource != nil {
		t.Resource.Destroy()
		t.Resource = nil
	}
}
