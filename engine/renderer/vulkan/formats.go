package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func vulkanFormat(f rhi.Format) vk.Format {
	switch f {
	case rhi.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case rhi.FormatR8G8B8A8UnormSrgb:
		return vk.FormatR8g8b8a8Srgb
	case rhi.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case rhi.FormatR16G16B16A16Float:
		return vk.FormatR16g16b16a16Sfloat
	case rhi.FormatR32G32B32A32Float:
		return vk.FormatR32g32b32a32Sfloat
	case rhi.FormatD32Float:
		return vk.FormatD32Sfloat
	case rhi.FormatR32Uint:
		return vk.FormatR32Uint
	case rhi.FormatR16Uint:
		return vk.FormatR16Uint
	}
	return vk.FormatUndefined
}

func indexType(f rhi.Format) vk.IndexType {
	if f == rhi.FormatR32Uint {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func aspectMask(f rhi.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// stateAccess is what a resource state means to a Vulkan barrier.
type stateAccess struct {
	layout vk.ImageLayout
	access vk.AccessFlagBits
	stages vk.PipelineStageFlagBits
}

var shaderStages = vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit

func resourceStateAccess(s rhi.ResourceState) stateAccess {
	switch s {
	case rhi.ResourceStatePresent:
		return stateAccess{vk.ImageLayoutPresentSrc, 0, vk.PipelineStageColorAttachmentOutputBit}
	case rhi.ResourceStateRenderTarget:
		return stateAccess{vk.ImageLayoutColorAttachmentOptimal,
			vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit,
			vk.PipelineStageColorAttachmentOutputBit}
	case rhi.ResourceStatePixelShaderResource:
		return stateAccess{vk.ImageLayoutShaderReadOnlyOptimal, vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit}
	case rhi.ResourceStateNonPixelShaderResource:
		return stateAccess{vk.ImageLayoutShaderReadOnlyOptimal, vk.AccessShaderReadBit,
			vk.PipelineStageVertexShaderBit | vk.PipelineStageComputeShaderBit}
	case rhi.ResourceStateAllShaderResource:
		return stateAccess{vk.ImageLayoutShaderReadOnlyOptimal, vk.AccessShaderReadBit, shaderStages}
	case rhi.ResourceStateUnorderedAccess:
		return stateAccess{vk.ImageLayoutGeneral, vk.AccessShaderReadBit | vk.AccessShaderWriteBit, shaderStages}
	case rhi.ResourceStateDepthWrite:
		return stateAccess{vk.ImageLayoutDepthStencilAttachmentOptimal,
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit}
	case rhi.ResourceStateDepthRead:
		return stateAccess{vk.ImageLayoutDepthStencilReadOnlyOptimal,
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessShaderReadBit,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageFragmentShaderBit}
	case rhi.ResourceStateCopyDest:
		return stateAccess{vk.ImageLayoutTransferDstOptimal, vk.AccessTransferWriteBit, vk.PipelineStageTransferBit}
	case rhi.ResourceStateCopySource:
		return stateAccess{vk.ImageLayoutTransferSrcOptimal, vk.AccessTransferReadBit, vk.PipelineStageTransferBit}
	case rhi.ResourceStateIndirectArgument:
		return stateAccess{vk.ImageLayoutGeneral, vk.AccessIndirectCommandReadBit, vk.PipelineStageDrawIndirectBit}
	case rhi.ResourceStateGenericRead:
		return stateAccess{vk.ImageLayoutGeneral, vk.AccessMemoryReadBit, vk.PipelineStageAllCommandsBit}
	}
	return stateAccess{vk.ImageLayoutGeneral, vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit, vk.PipelineStageAllCommandsBit}
}
