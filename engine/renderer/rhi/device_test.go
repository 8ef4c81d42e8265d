package rhi_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func runFrames(t *testing.T, device *rhi.Device, cb *rhi.Buffer, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		require.NoError(t, device.FrameStart())
		require.NoError(t, cb.Update(rhi.Bytes([]float32{2.0})))

		cl := device.CurrentFrameDirectCommandList()
		bb := device.Swapchain().CurrentBackBuffer()
		cl.AddResourceBarrier(bb, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget)
		cl.ClearRenderTargetView(bb.RTV, [4]float32{0, 0, 0, 1})
		cl.AddResourceBarrier(bb, rhi.ResourceStateRenderTarget, rhi.ResourceStatePresent)

		require.NoError(t, device.ExecuteAndPresent())
		require.NoError(t, device.FrameEnd())
	}
}

// A slot's command list is only reset once the fence value signaled by its
// previous use has completed.
func TestFenceOrdering(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{Latency: 2 * time.Millisecond}, rhi.DeviceConfig{})
	cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "frame", []float32{0})
	require.NoError(t, err)

	runFrames(t, device, &cb, 9)

	for _, s := range device.Stats() {
		assert.GreaterOrEqual(t, s.CompletedFence, s.RequiredFence, "frame %d", s.Frame)
		assert.NotEqual(t, s.Signaled, s.WaitedValue, "frame %d waited on its own signal", s.Frame)
		assert.NotEqual(t, s.Slot, s.NextSlot)
	}
}

// Five frames on three back buffers: frames 3 and 4 reuse the slots of
// frames 0 and 1 and must wait for exactly their fence values.
func TestFiveFrameScenario(t *testing.T) {
	device, backend := newTestDevice(t, headless.Options{Latency: time.Millisecond}, rhi.DeviceConfig{})
	cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "frame", []float32{0})
	require.NoError(t, err)

	runFrames(t, device, &cb, 5)

	stats := device.Stats()
	require.Len(t, stats, 5)
	for k, s := range stats {
		assert.Equal(t, uint64(k), s.Frame)
		assert.Equal(t, uint32(k%rhi.FramesInFlight), s.Slot)
		assert.Equal(t, uint64(k+1), s.Signaled)
		if k < rhi.FramesInFlight {
			assert.Zero(t, s.RequiredFence)
		} else {
			assert.Equal(t, stats[k-rhi.FramesInFlight].Signaled, s.RequiredFence)
		}
		assert.GreaterOrEqual(t, s.CompletedFence, s.RequiredFence)
		assert.NotEqual(t, s.Signaled, s.WaitedValue)
	}

	for slot := uint32(0); slot < rhi.FramesInFlight; slot++ {
		assert.NotZero(t, device.FrameFenceValue(slot))
	}
	assert.Len(t, backend.Swapchain().Presented(), 5)

	got, err := device.ReadbackBuffer(cb)
	require.NoError(t, err)
	assert.Equal(t, rhi.Bytes([]float32{2.0}), got[:4])

	require.NoError(t, device.WaitIdle())
	for _, tex := range backend.Swapchain().BackBuffers() {
		assert.Equal(t, rhi.ResourceStatePresent, tex.(*headless.Texture).State())
	}
}

// The slot is whatever the swapchain reports, not frame % 3.
func TestFrameSlotFollowsSwapchain(t *testing.T) {
	order := []uint32{2, 0, 1}
	device, _ := newTestDevice(t, headless.Options{PresentOrder: order}, rhi.DeviceConfig{})
	cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "frame", []float32{0})
	require.NoError(t, err)

	runFrames(t, device, &cb, 6)

	for k, s := range device.Stats() {
		assert.Equal(t, order[k%len(order)], s.Slot, "frame %d", k)
	}
}

func TestFrameStateErrors(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	assert.ErrorIs(t, device.FrameEnd(), rhi.ErrNoFrameInProgress)
	require.NoError(t, device.FrameStart())
	assert.ErrorIs(t, device.FrameStart(), rhi.ErrFrameInProgress)
	assert.ErrorIs(t, device.Resize(640, 360), rhi.ErrFrameInProgress)
	require.NoError(t, device.ExecuteAndPresent())
	require.NoError(t, device.FrameEnd())

	require.NoError(t, device.Resize(640, 360))
	assert.Equal(t, float32(640), device.Swapchain().Viewport().Width)
	assert.Equal(t, rhi.Rect{Right: 640, Bottom: 360}, device.Swapchain().ScissorRect())
}

func TestPresentSyncInterval(t *testing.T) {
	vsync, vsyncBackend := newTestDevice(t, headless.Options{Tearing: true}, rhi.DeviceConfig{VSync: true})
	require.NoError(t, vsync.FrameStart())
	require.NoError(t, vsync.ExecuteAndPresent())
	require.NoError(t, vsync.FrameEnd())
	assert.Equal(t, headless.PresentRecord{Index: 0, SyncInterval: 1}, vsyncBackend.Swapchain().Presented()[0])

	tearing, tearingBackend := newTestDevice(t, headless.Options{Tearing: true}, rhi.DeviceConfig{})
	require.NoError(t, tearing.FrameStart())
	require.NoError(t, tearing.ExecuteAndPresent())
	require.NoError(t, tearing.FrameEnd())
	assert.Equal(t, headless.PresentRecord{Index: 0, AllowTearing: true}, tearingBackend.Swapchain().Presented()[0])
}

func TestCommandListBarrierBatching(t *testing.T) {
	device, backend := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})
	rt, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageRenderTarget, Format: rhi.FormatR16G16B16A16Float, Width: 8, Height: 8, Name: "rt",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, device.FrameStart())
	cl := device.CurrentFrameDirectCommandList()
	bb := device.Swapchain().CurrentBackBuffer()

	cl.AddResourceBarrier(&rt, rhi.ResourceStatePixelShaderResource, rhi.ResourceStatePixelShaderResource)
	assert.Equal(t, 0, cl.PendingBarriers(), "same state transitions are dropped")

	cl.AddResourceBarrier(bb, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget)
	cl.AddResourceBarrier(&rt, rhi.ResourceStatePixelShaderResource, rhi.ResourceStateRenderTarget)
	assert.Equal(t, 2, cl.PendingBarriers())

	cl.DrawInstanced(3, 1)
	assert.Equal(t, 0, cl.PendingBarriers(), "draws flush pending barriers first")

	cl.AddResourceBarrier(&rt, rhi.ResourceStateRenderTarget, rhi.ResourceStatePixelShaderResource)
	cl.AddResourceBarrier(bb, rhi.ResourceStateRenderTarget, rhi.ResourceStatePresent)
	require.NoError(t, device.ExecuteAndPresent())
	require.NoError(t, device.FrameEnd())
	require.NoError(t, device.WaitIdle())

	executed := backend.Executed(rhi.QueueKindDirect)
	require.Len(t, executed, 3)
	assert.Equal(t, headless.OpBarrier, executed[0].Op)
	assert.Len(t, executed[0].Barriers, 2)
	assert.Equal(t, headless.OpDraw, executed[1].Op)
	assert.Equal(t, headless.OpBarrier, executed[2].Op)
	assert.Len(t, executed[2].Barriers, 2)
}

func TestCommandListClosed(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	require.NoError(t, device.FrameStart())
	cl := device.CurrentFrameDirectCommandList()
	require.NoError(t, device.ExecuteAndPresent())
	assert.Equal(t, rhi.CommandListStateClosed, cl.State())

	cl.DrawInstanced(3, 1)
	assert.ErrorIs(t, device.DirectQueue().Execute(cl), rhi.ErrCommandListClosed)
	require.NoError(t, device.FrameEnd())

	require.NoError(t, device.FrameStart())
	assert.Equal(t, rhi.CommandListStateRecording, device.CurrentFrameDirectCommandList().State())
	require.NoError(t, device.ExecuteAndPresent())
	require.NoError(t, device.FrameEnd())
}

func TestExecuteIndirectOverwritesMeshID(t *testing.T) {
	device, backend := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	args := []rhi.IndirectCommandArgs{
		{MeshID: 4, DrawArguments: rhi.DrawIndexedArguments{IndexCountPerInstance: 36, InstanceCount: 1}},
		{MeshID: 9, DrawArguments: rhi.DrawIndexedArguments{IndexCountPerInstance: 6, InstanceCount: 1, StartIndexLocation: 36}},
	}
	argBuffer, err := rhi.CreateBuffer(device, rhi.BufferUsageDynamicStructuredBuffer, "commands", args)
	require.NoError(t, err)

	require.NoError(t, device.FrameStart())
	cl := device.CurrentFrameDirectCommandList()
	cl.SetBindlessGraphicsRootSignature()
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(struct{ MeshID, SceneCBV uint32 }{0, 17}))
	cl.ExecuteIndirect(device.CommandSignature(), uint32(len(args)), argBuffer)
	require.NoError(t, device.ExecuteAndPresent())
	require.NoError(t, device.FrameEnd())
	require.NoError(t, device.WaitIdle())

	draws := backend.Executed(rhi.QueueKindDirect)
	require.Len(t, draws, 2)
	for i, d := range draws {
		require.NoError(t, d.Err)
		assert.Equal(t, headless.OpIndirectDraw, d.Op)
		assert.Equal(t, args[i].MeshID, d.Constants[0])
		assert.Equal(t, uint32(17), d.Constants[1])
		assert.Equal(t, args[i].DrawArguments, d.Draw)
	}
}

var errCreateFailed = errors.New("out of memory")

// countingBackend counts native objects created and destroyed, and fails
// the creation named by failOn.
type countingBackend struct {
	*headless.Backend
	failOn    string
	created   int
	destroyed int
}

type countedQueue struct {
	rhi.NativeQueue
	b *countingBackend
}

func (q countedQueue) Destroy() {
	q.b.destroyed++
	q.NativeQueue.Destroy()
}

type countedHeap struct {
	rhi.NativeHeap
	b *countingBackend
}

func (h countedHeap) Destroy() {
	h.b.destroyed++
	h.NativeHeap.Destroy()
}

type countedObject struct {
	b *countingBackend
}

func (o countedObject) Destroy() {
	o.b.destroyed++
}

func (b *countingBackend) CreateQueue(kind rhi.QueueKind) (rhi.NativeQueue, error) {
	q, err := b.Backend.CreateQueue(kind)
	if err != nil {
		return nil, err
	}
	b.created++
	return countedQueue{NativeQueue: q, b: b}, nil
}

func (b *countingBackend) CreateDescriptorHeap(t rhi.HeapType, capacity uint32) (rhi.NativeHeap, error) {
	if b.failOn == t.String() {
		return nil, errCreateFailed
	}
	h, err := b.Backend.CreateDescriptorHeap(t, capacity)
	if err != nil {
		return nil, err
	}
	b.created++
	return countedHeap{NativeHeap: h, b: b}, nil
}

func (b *countingBackend) CreateRootSignature(desc rhi.RootSignatureDesc) (rhi.NativeRootSignature, error) {
	b.created++
	return countedObject{b: b}, nil
}

func (b *countingBackend) CreateCommandSignature(desc rhi.CommandSignatureDesc, root rhi.NativeRootSignature) (rhi.NativeCommandSignature, error) {
	if b.failOn == "command signature" {
		return nil, errCreateFailed
	}
	b.created++
	return countedObject{b: b}, nil
}

func (b *countingBackend) CreateSwapchain(desc rhi.SwapchainDesc) (rhi.NativeSwapchain, error) {
	if b.failOn == "swapchain" {
		return nil, errCreateFailed
	}
	return b.Backend.CreateSwapchain(desc)
}

func TestNewDeviceReleasesOnFailure(t *testing.T) {
	tests := []struct {
		failOn  string
		created int
	}{
		{failOn: rhi.HeapTypeDSV.String(), created: 3},
		{failOn: "command signature", created: 6},
		{failOn: "swapchain", created: 7},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			backend := &countingBackend{Backend: headless.New(headless.Options{}), failOn: tt.failOn}
			t.Cleanup(backend.Destroy)

			device, err := rhi.NewDevice(backend, rhi.DeviceConfig{Width: 320, Height: 180, RtvHeapSize: 8, DsvHeapSize: 4, CbvSrvUavHeapSize: 64})
			require.ErrorIs(t, err, errCreateFailed)
			assert.Nil(t, device)
			assert.Equal(t, tt.created, backend.created)
			assert.Equal(t, tt.created, backend.destroyed)
		})
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	backend := &countingBackend{Backend: headless.New(headless.Options{})}
	device, err := rhi.NewDevice(backend, rhi.DeviceConfig{Width: 320, Height: 180})
	require.NoError(t, err)
	require.NoError(t, device.Close())
	assert.Equal(t, 7, backend.created)
	assert.Equal(t, 7, backend.destroyed)
}
