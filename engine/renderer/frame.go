package renderer

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

var clearColor = [4]float32{0, 0, 0, 1}

// Render records and presents one frame of view. Resource creation is
// rejected while the frame is being recorded; scheduled pipeline reloads
// run once it has been submitted.
func (r *Renderer) Render(view SceneView) error {
	if err := r.device.FrameStart(); err != nil {
		return err
	}
	r.seal()

	err := r.record(view)
	if err == nil {
		err = r.device.ExecuteAndPresent()
	}
	// the frame is closed even when recording failed so the next one can
	// start
	if endErr := r.device.FrameEnd(); err == nil {
		err = endErr
	}
	r.unseal()
	if err != nil {
		return fmt.Errorf("render frame %d: %w", r.device.FrameCount(), err)
	}

	r.ReloadPipelines()
	return nil
}

func (r *Renderer) seal() {
	r.buffers.Seal()
	r.textures.Seal()
	r.pipelines.Seal()
}

func (r *Renderer) unseal() {
	r.buffers.Unseal()
	r.textures.Unseal()
	r.pipelines.Unseal()
}

func (r *Renderer) record(view SceneView) error {
	cl := r.device.CurrentFrameDirectCommandList()
	swapchain := r.device.Swapchain()
	backBuffer := swapchain.CurrentBackBuffer()
	renderTexture := r.textures.Ptr(r.renderTexture)
	depthTexture := r.textures.Ptr(r.depthTexture)

	cl.AddResourceBarrier(backBuffer, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget)
	cl.AddResourceBarrier(renderTexture, rhi.ResourceStatePixelShaderResource, rhi.ResourceStateRenderTarget)
	cl.ExecuteBarriers()

	renderTarget := r.device.RtvHandle(*renderTexture)
	depthStencil := r.device.DsvHandle(*depthTexture)
	cl.ClearRenderTargetView(backBuffer.RTV, clearColor)
	cl.ClearRenderTargetView(renderTarget, clearColor)
	cl.ClearDepthStencilView(depthStencil, 1.0)

	cl.SetDescriptorHeaps(r.device.CbvSrvUavHeap())
	cl.SetPrimitiveTopology(rhi.PrimitiveTopologyTriangleList)
	cl.SetViewportAndScissor(swapchain.Viewport(), swapchain.ScissorRect())
	cl.SetRenderTargets([]rhi.DescriptorHandle{renderTarget}, &depthStencil)

	sceneCBV := r.buffers.Ptr(view.SceneBufferIndex()).CbvIndex
	lightCBV := r.buffers.Ptr(view.LightBufferIndex()).CbvIndex
	atmosphereSRV := r.textures.Ptr(r.atmosphere.AtmosphereTextureIndex()).SrvIndex

	r.atmosphere.Compute(cl, sceneCBV, lightCBV)

	// compute switched the root signature
	cl.SetBindlessGraphicsRootSignature()
	commandBuffer := r.commandBuffers[swapchain.CurrentBackBufferIndex()]
	if err := r.shading.Render(cl, r.device.CommandSignature(), commandBuffer, sceneCBV, lightCBV, atmosphereSRV, view.Geometry()); err != nil {
		return err
	}
	r.lights.Render(cl, sceneCBV, lightCBV, view.LightCount())
	r.cubeMap.Render(cl, sceneCBV, atmosphereSRV)

	cl.AddResourceBarrier(renderTexture, rhi.ResourceStateRenderTarget, rhi.ResourceStatePixelShaderResource)
	r.atmosphere.Release(cl)
	cl.ExecuteBarriers()

	cl.SetRenderTargets([]rhi.DescriptorHandle{backBuffer.RTV}, nil)
	r.postProcess.Render(cl, renderTexture.SrvIndex)

	if r.overlay != nil {
		if err := r.overlay.Render(OverlayContext{
			CommandList:   cl,
			CbvSrvUavHeap: r.device.CbvSrvUavHeap(),
			Width:         swapchain.Width(),
			Height:        swapchain.Height(),
		}); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}

	cl.AddResourceBarrier(backBuffer, rhi.ResourceStateRenderTarget, rhi.ResourceStatePresent)
	cl.ExecuteBarriers()
	return nil
}
