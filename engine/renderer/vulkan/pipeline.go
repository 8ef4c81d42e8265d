package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// Descriptor sets of the bindless pipeline layout.
const (
	setBindless uint32 = 0
	setSamplers uint32 = 1
)

// VulkanRootSignature is the bindless pipeline layout: the heap's descriptor
// set, a set of immutable samplers and one push constant block.
type VulkanRootSignature struct {
	context *VulkanContext

	Layout        vk.PipelineLayout
	constantBytes uint32

	samplers      []vk.Sampler
	samplerLayout vk.DescriptorSetLayout
	samplerPool   vk.DescriptorPool
	samplerSet    vk.DescriptorSet
}

func newSampler(context *VulkanContext, s rhi.StaticSampler) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  vk.LodClampNone,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if s.Anisotropic {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = float32(s.MaxAniso)
		if limit := context.Device.Properties.Limits.MaxSamplerAnisotropy; samplerInfo.MaxAnisotropy > limit {
			samplerInfo.MaxAnisotropy = limit
		}
	}
	var sampler vk.Sampler
	err := check(vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler), "vkCreateSampler")
	return sampler, err
}

func NewRootSignature(context *VulkanContext, desc rhi.RootSignatureDesc, bindless vk.DescriptorSetLayout) (*VulkanRootSignature, error) {
	if bindless == nil {
		return nil, fmt.Errorf("root signature needs the shader visible heap to exist first")
	}
	root := &VulkanRootSignature{context: context, constantBytes: 4 * desc.NumConstants}
	if limit := context.Device.Properties.Limits.MaxPushConstantsSize; root.constantBytes > limit {
		return nil, fmt.Errorf("%d bytes of root constants exceed the device limit of %d", root.constantBytes, limit)
	}

	// samplers are addressed by register, so the binding is the register
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(desc.StaticSamplers))
	for _, s := range desc.StaticSamplers {
		sampler, err := newSampler(context, s)
		if err != nil {
			root.Destroy()
			return nil, err
		}
		root.samplers = append(root.samplers, sampler)
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:            s.Register,
			DescriptorType:     vk.DescriptorTypeSampler,
			DescriptorCount:    1,
			StageFlags:         vk.ShaderStageFlags(vk.ShaderStageAll),
			PImmutableSamplers: []vk.Sampler{sampler},
		})
	}

	device := context.Device.LogicalDevice
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if err := check(vk.CreateDescriptorSetLayout(device, &layoutInfo, context.Allocator, &root.samplerLayout), "vkCreateDescriptorSetLayout"); err != nil {
		root.Destroy()
		return nil, err
	}

	if len(bindings) > 0 {
		poolInfo := vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			MaxSets:       1,
			PoolSizeCount: 1,
			PPoolSizes:    []vk.DescriptorPoolSize{{Type: vk.DescriptorTypeSampler, DescriptorCount: uint32(len(bindings))}},
		}
		if err := check(vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &root.samplerPool), "vkCreateDescriptorPool"); err != nil {
			root.Destroy()
			return nil, err
		}
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     root.samplerPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{root.samplerLayout},
		}
		if err := check(vk.AllocateDescriptorSets(device, &allocInfo, &root.samplerSet), "vkAllocateDescriptorSets"); err != nil {
			root.Destroy()
			return nil, err
		}
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 2,
		PSetLayouts:    []vk.DescriptorSetLayout{bindless, root.samplerLayout},
	}
	if root.constantBytes > 0 {
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll),
			Offset:     0,
			Size:       root.constantBytes,
		}}
	}
	err := context.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreatePipelineLayout(device, &pipelineLayoutCreateInfo, context.Allocator, &root.Layout), "vkCreatePipelineLayout")
	})
	if err != nil {
		root.Destroy()
		return nil, err
	}
	return root, nil
}

func (root *VulkanRootSignature) Destroy() {
	device := root.context.Device.LogicalDevice
	allocator := root.context.Allocator
	if root.Layout != nil {
		vk.DestroyPipelineLayout(device, root.Layout, allocator)
		root.Layout = nil
	}
	if root.samplerPool != nil {
		vk.DestroyDescriptorPool(device, root.samplerPool, allocator)
		root.samplerPool = nil
		root.samplerSet = nil
	}
	if root.samplerLayout != nil {
		vk.DestroyDescriptorSetLayout(device, root.samplerLayout, allocator)
		root.samplerLayout = nil
	}
	for _, s := range root.samplers {
		vk.DestroySampler(device, s, allocator)
	}
	root.samplers = nil
}

// VulkanPipeline holds a pipeline built against the bindless layout.
type VulkanPipeline struct {
	context   *VulkanContext
	name      string
	BindPoint vk.PipelineBindPoint
	Handle    vk.Pipeline
	// Layout is owned by the root signature.
	Layout vk.PipelineLayout
}

func cullModeFlags(mode rhi.CullMode) vk.CullModeFlags {
	switch mode {
	case rhi.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case rhi.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

// compatibleRenderpass returns a pass with the attachment formats of desc.
// Load operations do not affect compatibility.
func compatibleRenderpass(context *VulkanContext, desc rhi.NativePipelineDesc) (*VulkanRenderpass, error) {
	if len(desc.RtvFormats) > maxColorAttachments {
		return nil, fmt.Errorf("pipeline %q has %d render targets, at most %d are supported", desc.Name, len(desc.RtvFormats), maxColorAttachments)
	}
	key := renderpassKey{colorCount: len(desc.RtvFormats), depth: vulkanFormat(desc.DsvFormat)}
	for i, f := range desc.RtvFormats {
		key.colors[i] = vulkanFormat(f)
	}
	return context.renderpasses.get(context, key)
}

func NewGraphicsPipeline(context *VulkanContext, desc rhi.NativePipelineDesc, root *VulkanRootSignature) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{context: context, name: desc.Name, BindPoint: vk.PipelineBindPointGraphics, Layout: root.Layout}

	vertex, err := NewShaderModule(context, desc.Vertex, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, fmt.Errorf("vertex stage: %w", err)
	}
	defer vertex.Destroy(context)
	pixel, err := NewShaderModule(context, desc.Pixel, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, fmt.Errorf("pixel stage: %w", err)
	}
	defer pixel.Destroy(context)

	renderpass, err := compatibleRenderpass(context, desc)
	if err != nil {
		return nil, err
	}

	// Viewport and scissor are dynamic, the counts are all that is baked.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer. The viewport is flipped, so clockwise stays front facing.
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullModeFlags(desc.CullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DsvFormat != rhi.FormatUnknown {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
		if desc.DepthWrite {
			depthStencil.DepthWriteEnable = vk.True
		}
	}

	writeMask := vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
		vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.RtvFormats))
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: writeMask,
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertices are pulled from bindless buffers.
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vertex.ShaderStageCreateInfo, pixel.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              root.Layout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	err = context.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines), "vkCreateGraphicsPipelines")
	})
	if err != nil {
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline %s created", desc.Name)
	return outPipeline, nil
}

func NewComputePipeline(context *VulkanContext, desc rhi.NativePipelineDesc, root *VulkanRootSignature) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{context: context, name: desc.Name, BindPoint: vk.PipelineBindPointCompute, Layout: root.Layout}

	compute, err := NewShaderModule(context, desc.Compute, vk.ShaderStageComputeBit)
	if err != nil {
		return nil, fmt.Errorf("compute stage: %w", err)
	}
	defer compute.Destroy(context)

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              compute.ShaderStageCreateInfo,
		Layout:             root.Layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pPipelines := make([]vk.Pipeline, 1)
	err = context.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateComputePipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.ComputePipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines), "vkCreateComputePipelines")
	})
	if err != nil {
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Compute pipeline %s created", desc.Name)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy() {
	if pipeline.Handle == nil {
		return
	}
	_ = pipeline.context.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(pipeline.context.Device.LogicalDevice, pipeline.Handle, pipeline.context.Allocator)
		pipeline.Handle = nil
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, pipeline.BindPoint, pipeline.Handle)
}

// VulkanCommandSignature maps an indirect record onto vkCmdDrawIndexedIndirect.
// Shaders recover the leading constant through the draw index.
type VulkanCommandSignature struct {
	Stride     uint32
	DrawOffset uint32
}

func NewCommandSignature(desc rhi.CommandSignatureDesc) (*VulkanCommandSignature, error) {
	sig := &VulkanCommandSignature{Stride: desc.Stride}
	var offset uint32
	var hasDraw bool
	for _, a := range desc.Arguments {
		switch a.Type {
		case rhi.IndirectArgumentConstant:
			offset += 4 * a.Num32BitValues
		case rhi.IndirectArgumentDrawIndexed:
			sig.DrawOffset = offset
			hasDraw = true
		default:
			return nil, fmt.Errorf("indirect argument type %d is not supported", a.Type)
		}
	}
	if !hasDraw {
		return nil, fmt.Errorf("command signature has no indexed draw argument")
	}
	return sig, nil
}

func (s *VulkanCommandSignature) Destroy() {}
