package rhi

import (
	"fmt"
	"math"
)

// InvalidIndex marks "no resource" wherever a descriptor or arena index is expected.
const InvalidIndex uint32 = math.MaxUint32

// FramesInFlight is the number of swapchain back buffers and per-frame slots.
const FramesInFlight = 3

type Format uint32

const (
	FormatUnknown Format = iota
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8UnormSrgb
	FormatB8G8R8A8Unorm
	FormatR16G16B16A16Float
	FormatR32G32B32A32Float
	FormatD32Float
	FormatR32Uint
	FormatR16Uint
)

// BytesPerPixel of one texel or index; 0 for FormatUnknown.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8UnormSrgb, FormatB8G8R8A8Unorm, FormatD32Float, FormatR32Uint:
		return 4
	case FormatR16G16B16A16Float:
		return 8
	case FormatR32G32B32A32Float:
		return 16
	case FormatR16Uint:
		return 2
	}
	return 0
}

func (f Format) IsDepth() bool {
	return f == FormatD32Float
}

func (f Format) String() string {
	switch f {
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8UnormSrgb:
		return "R8G8B8A8_UNORM_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatR16G16B16A16Float:
		return "R16G16B16A16_FLOAT"
	case FormatR32G32B32A32Float:
		return "R32G32B32A32_FLOAT"
	case FormatD32Float:
		return "D32_FLOAT"
	case FormatR32Uint:
		return "R32_UINT"
	case FormatR16Uint:
		return "R16_UINT"
	}
	return "UNKNOWN"
}

type ResourceState uint32

const (
	ResourceStateCommon ResourceState = iota
	ResourceStatePresent
	ResourceStateRenderTarget
	ResourceStatePixelShaderResource
	ResourceStateNonPixelShaderResource
	ResourceStateAllShaderResource
	ResourceStateUnorderedAccess
	ResourceStateDepthWrite
	ResourceStateDepthRead
	ResourceStateCopyDest
	ResourceStateCopySource
	ResourceStateIndirectArgument
	ResourceStateGenericRead
)

var resourceStateNames = [...]string{
	"Common", "Present", "RenderTarget", "PixelShaderResource", "NonPixelShaderResource",
	"AllShaderResource", "UnorderedAccess", "DepthWrite", "DepthRead", "CopyDest",
	"CopySource", "IndirectArgument", "GenericRead",
}

func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint32(s))
}

type QueueKind uint8

const (
	QueueKindDirect QueueKind = iota
	QueueKindCopy
	QueueKindCompute
)

func (k QueueKind) String() string {
	switch k {
	case QueueKindDirect:
		return "direct"
	case QueueKindCopy:
		return "copy"
	case QueueKindCompute:
		return "compute"
	}
	return "unknown"
}

type PrimitiveTopology uint8

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
)

type Viewport struct {
	TopLeftX, TopLeftY float32
	Width, Height      float32
	MinDepth, MaxDepth float32
}

type Rect struct {
	Left, Top, Right, Bottom int32
}

// Resource is anything a barrier can transition.
type Resource interface {
	NativeResource() NativeResource
}

// Barrier is a single state transition of a native resource.
type Barrier struct {
	Resource NativeResource
	Before   ResourceState
	After    ResourceState
}
