package rhi

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
)

type CommandListState uint8

const (
	CommandListStateInitial CommandListState = iota
	CommandListStateRecording
	CommandListStateClosed
)

func (s CommandListState) String() string {
	switch s {
	case CommandListStateInitial:
		return "initial"
	case CommandListStateRecording:
		return "recording"
	case CommandListStateClosed:
		return "closed"
	}
	return "unknown"
}

// CommandList records work for one queue. Barriers are batched and only
// handed to the native list right before the next command that depends on
// them. Recording on a list that is not recording is remembered and surfaces
// from Close (and therefore from CommandQueue.Execute).
type CommandList struct {
	native   NativeCommandList
	kind     QueueKind
	name     string
	state    CommandListState
	barriers []Barrier
	root     *RootSignature
	err      error
}

func newCommandList(native NativeCommandList, kind QueueKind, name string, root *RootSignature) *CommandList {
	return &CommandList{
		native:   native,
		kind:     kind,
		name:     name,
		state:    CommandListStateInitial,
		barriers: make([]Barrier, 0, 16),
		root:     root,
	}
}

func (cl *CommandList) Kind() QueueKind {
	return cl.kind
}

func (cl *CommandList) State() CommandListState {
	return cl.state
}

func (cl *CommandList) Native() NativeCommandList {
	return cl.native
}

// Reset reopens the list for recording. The caller guarantees the GPU is done
// with the previous recording.
func (cl *CommandList) Reset() error {
	if err := cl.native.Reset(); err != nil {
		return fmt.Errorf("reset command list %s: %w", cl.name, err)
	}
	cl.state = CommandListStateRecording
	cl.barriers = cl.barriers[:0]
	cl.err = nil
	return nil
}

// Close flushes pending barriers and ends recording.
func (cl *CommandList) Close() error {
	if cl.state != CommandListStateRecording {
		if cl.err == nil {
			cl.err = fmt.Errorf("close command list %s in state %s: %w", cl.name, cl.state, ErrCommandListClosed)
		}
		return cl.err
	}
	cl.ExecuteBarriers()
	if err := cl.native.Close(); err != nil {
		return fmt.Errorf("close command list %s: %w", cl.name, err)
	}
	cl.state = CommandListStateClosed
	return cl.err
}

func (cl *CommandList) recording(op string) bool {
	if cl.state == CommandListStateRecording {
		return true
	}
	if cl.err == nil {
		cl.err = fmt.Errorf("%s on command list %s in state %s: %w", op, cl.name, cl.state, ErrCommandListClosed)
		core.LogError(cl.err.Error())
	}
	return false
}

// AddResourceBarrier queues a transition. Transitions to the same state are
// dropped.
func (cl *CommandList) AddResourceBarrier(res Resource, before, after ResourceState) {
	if before == after || !cl.recording("barrier") {
		return
	}
	cl.barriers = append(cl.barriers, Barrier{Resource: res.NativeResource(), Before: before, After: after})
}

// PendingBarriers is the number of queued, not yet flushed, transitions.
func (cl *CommandList) PendingBarriers() int {
	return len(cl.barriers)
}

// ExecuteBarriers hands every queued transition to the native list at once.
func (cl *CommandList) ExecuteBarriers() {
	if len(cl.barriers) == 0 {
		return
	}
	batch := make([]Barrier, len(cl.barriers))
	copy(batch, cl.barriers)
	cl.native.ResourceBarriers(batch)
	cl.barriers = cl.barriers[:0]
}

func (cl *CommandList) ClearRenderTargetView(rtv DescriptorHandle, color [4]float32) {
	if !cl.recording("clear rtv") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.ClearRenderTarget(rtv, color)
}

func (cl *CommandList) ClearDepthStencilView(dsv DescriptorHandle, depth float32) {
	if !cl.recording("clear dsv") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.ClearDepthStencil(dsv, depth)
}

func (cl *CommandList) SetRenderTargets(rtvs []DescriptorHandle, dsv *DescriptorHandle) {
	if !cl.recording("set render targets") {
		return
	}
	cl.native.SetRenderTargets(rtvs, dsv)
}

func (cl *CommandList) SetDescriptorHeaps(heaps ...*DescriptorHeap) {
	if !cl.recording("set descriptor heaps") {
		return
	}
	native := make([]NativeHeap, 0, len(heaps))
	for _, h := range heaps {
		native = append(native, h.Native())
	}
	cl.native.SetDescriptorHeaps(native)
}

func (cl *CommandList) SetPrimitiveTopology(t PrimitiveTopology) {
	if !cl.recording("set topology") {
		return
	}
	cl.native.SetPrimitiveTopology(t)
}

func (cl *CommandList) SetViewportAndScissor(viewport Viewport, scissor Rect) {
	if !cl.recording("set viewport") {
		return
	}
	cl.native.SetViewport(viewport, scissor)
}

func (cl *CommandList) SetBindlessGraphicsRootSignature() {
	if !cl.recording("set root signature") {
		return
	}
	cl.native.SetRootSignature(cl.root.Native, false)
}

func (cl *CommandList) SetBindlessComputeRootSignature() {
	if !cl.recording("set root signature") {
		return
	}
	cl.native.SetRootSignature(cl.root.Native, true)
}

func (cl *CommandList) SetPipelineState(p Pipeline) {
	if !cl.recording("set pipeline") {
		return
	}
	cl.native.SetPipeline(p.Native)
}

func (cl *CommandList) SetGraphicsRootConstants(rc RootConstants) {
	if !cl.recording("set root constants") {
		return
	}
	cl.native.SetRootConstants(&rc, false)
}

func (cl *CommandList) SetComputeRootConstants(rc RootConstants) {
	if !cl.recording("set root constants") {
		return
	}
	cl.native.SetRootConstants(&rc, true)
}

// SetIndexBuffer binds b with a format derived from its element size.
func (cl *CommandList) SetIndexBuffer(b Buffer) {
	if !cl.recording("set index buffer") {
		return
	}
	format := FormatR16Uint
	if b.ElementSize == 4 {
		format = FormatR32Uint
	}
	cl.native.SetIndexBuffer(b.Resource, format, b.SizeInBytes)
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, instanceCount uint32) {
	if !cl.recording("draw indexed") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.DrawIndexedInstanced(indexCount, instanceCount, 0, 0, 0)
}

func (cl *CommandList) DrawInstanced(vertexCount, instanceCount uint32) {
	if !cl.recording("draw") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.DrawInstanced(vertexCount, instanceCount, 0, 0)
}

func (cl *CommandList) Dispatch(x, y, z uint32) {
	if !cl.recording("dispatch") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.Dispatch(x, y, z)
}

// ExecuteIndirect issues up to count records of argBuffer with the layout of
// sig.
func (cl *CommandList) ExecuteIndirect(sig *CommandSignature, count uint32, argBuffer Buffer) {
	if !cl.recording("execute indirect") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.ExecuteIndirect(sig.Native, count, argBuffer.Resource, 0)
}

func (cl *CommandList) CopyBuffer(dst NativeBuffer, dstOffset uint64, src NativeBuffer, srcOffset uint64, size uint64) {
	if !cl.recording("copy buffer") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.CopyBuffer(dst, dstOffset, src, srcOffset, size)
}

func (cl *CommandList) CopyBufferToTexture(dst NativeTexture, src NativeBuffer, layout TextureCopyLayout) {
	if !cl.recording("copy texture") {
		return
	}
	cl.ExecuteBarriers()
	cl.native.CopyBufferToTexture(dst, src, layout)
}
