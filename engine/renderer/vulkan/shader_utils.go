package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// VulkanShaderStage is a shader module ready to be plugged into a pipeline.
type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func NewShaderModule(context *VulkanContext, blob rhi.ShaderBlob, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if len(blob.Code) == 0 || len(blob.Code)%4 != 0 {
		return nil, fmt.Errorf("spir-v blob of %d bytes is not a whole number of words", len(blob.Code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(blob.Code)),
		PCode:    spirvWords(blob.Code),
	}

	shaderStage := &VulkanShaderStage{}
	if err := check(vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &shaderStage.Handle), "vkCreateShaderModule"); err != nil {
		return nil, err
	}

	shaderStage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: shaderStage.Handle,
		PName:  VulkanSafeString(blob.EntryPoint),
	}
	return shaderStage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}
