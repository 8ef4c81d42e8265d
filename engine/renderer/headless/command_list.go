package headless

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type Op string

const (
	OpBarrier         Op = "barrier"
	OpClearRTV        Op = "clear_rtv"
	OpClearDSV        Op = "clear_dsv"
	OpDispatch        Op = "dispatch"
	OpDraw            Op = "draw"
	OpDrawIndexed     Op = "draw_indexed"
	OpIndirectDraw    Op = "indirect_draw_indexed"
	OpCopyBuffer      Op = "copy_buffer"
	OpCopyTexture     Op = "copy_texture"
	OpSetPipeline     Op = "set_pipeline"
	OpSetRenderTarget Op = "set_render_targets"
)

// Command is one executed GPU operation as seen by the timeline. Draws carry
// the root constants that were bound when they ran.
type Command struct {
	Op        Op
	Barriers  []rhi.Barrier
	Constants rhi.RootConstants
	Compute   bool
	Pipeline  string
	Draw      rhi.DrawIndexedArguments
	Groups    [3]uint32
	// Arguments names the buffer an indirect draw read its record from.
	Arguments string
	Err       error
}

type bindState struct {
	graphics rhi.RootConstants
	compute  rhi.RootConstants
	pipeline *Pipeline
}

type op func(st *bindState, emit func(Command))

// CommandList records closures; nothing touches memory until a queue runs
// them.
type CommandList struct {
	kind   rhi.QueueKind
	ops    []op
	closed bool
}

func (cl *CommandList) Reset() error {
	cl.ops = cl.ops[:0]
	cl.closed = false
	return nil
}

func (cl *CommandList) Close() error {
	if cl.closed {
		return fmt.Errorf("%s command list closed twice", cl.kind)
	}
	cl.closed = true
	return nil
}

// Len is the number of recorded native calls.
func (cl *CommandList) Len() int {
	return len(cl.ops)
}

func (cl *CommandList) record(o op) {
	cl.ops = append(cl.ops, o)
}

func (cl *CommandList) snapshot() []op {
	return append([]op(nil), cl.ops...)
}

func (cl *CommandList) ResourceBarriers(barriers []rhi.Barrier) {
	batch := append([]rhi.Barrier(nil), barriers...)
	cl.record(func(_ *bindState, emit func(Command)) {
		for _, b := range batch {
			if t, ok := b.Resource.(*Texture); ok {
				t.state = b.After
			}
		}
		emit(Command{Op: OpBarrier, Barriers: batch})
	})
}

func (cl *CommandList) ClearRenderTarget(rtv rhi.DescriptorHandle, color [4]float32) {
	cl.record(func(_ *bindState, emit func(Command)) {
		emit(Command{Op: OpClearRTV})
	})
}

func (cl *CommandList) ClearDepthStencil(dsv rhi.DescriptorHandle, depth float32) {
	cl.record(func(_ *bindState, emit func(Command)) {
		emit(Command{Op: OpClearDSV})
	})
}

func (cl *CommandList) SetRenderTargets(rtvs []rhi.DescriptorHandle, dsv *rhi.DescriptorHandle) {
	cl.record(func(_ *bindState, emit func(Command)) {
		emit(Command{Op: OpSetRenderTarget})
	})
}

func (cl *CommandList) SetDescriptorHeaps(heaps []rhi.NativeHeap) {}

func (cl *CommandList) SetPrimitiveTopology(t rhi.PrimitiveTopology) {}

func (cl *CommandList) SetViewport(viewport rhi.Viewport, scissor rhi.Rect) {}

func (cl *CommandList) SetRootSignature(root rhi.NativeRootSignature, compute bool) {}

func (cl *CommandList) SetPipeline(p rhi.NativePipeline) {
	pipeline, _ := p.(*Pipeline)
	cl.record(func(st *bindState, emit func(Command)) {
		st.pipeline = pipeline
		name := ""
		if pipeline != nil {
			name = pipeline.Desc.Name
		}
		emit(Command{Op: OpSetPipeline, Pipeline: name})
	})
}

func (cl *CommandList) SetRootConstants(constants *rhi.RootConstants, compute bool) {
	rc := *constants
	cl.record(func(st *bindState, _ func(Command)) {
		if compute {
			st.compute = rc
		} else {
			st.graphics = rc
		}
	})
}

func (cl *CommandList) SetIndexBuffer(b rhi.NativeBuffer, format rhi.Format, size uint64) {}

func pipelineName(st *bindState) string {
	if st.pipeline == nil {
		return ""
	}
	return st.pipeline.Desc.Name
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	cl.record(func(st *bindState, emit func(Command)) {
		emit(Command{
			Op:        OpDrawIndexed,
			Constants: st.graphics,
			Pipeline:  pipelineName(st),
			Draw: rhi.DrawIndexedArguments{
				IndexCountPerInstance: indexCount,
				InstanceCount:         instanceCount,
				StartIndexLocation:    startIndex,
				BaseVertexLocation:    baseVertex,
				StartInstanceLocation: startInstance,
			},
		})
	})
}

func (cl *CommandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	cl.record(func(st *bindState, emit func(Command)) {
		emit(Command{
			Op:        OpDraw,
			Constants: st.graphics,
			Pipeline:  pipelineName(st),
			Draw: rhi.DrawIndexedArguments{
				IndexCountPerInstance: vertexCount,
				InstanceCount:         instanceCount,
				StartIndexLocation:    startVertex,
				StartInstanceLocation: startInstance,
			},
		})
	})
}

func (cl *CommandList) Dispatch(x, y, z uint32) {
	cl.record(func(st *bindState, emit func(Command)) {
		emit(Command{Op: OpDispatch, Constants: st.compute, Compute: true, Pipeline: pipelineName(st), Groups: [3]uint32{x, y, z}})
	})
}

// ExecuteIndirect reads the argument buffer when the timeline reaches it, the
// same way the GPU consumes it. Every record overwrites root constant 0 with
// its mesh id before drawing.
func (cl *CommandList) ExecuteIndirect(sig rhi.NativeCommandSignature, maxCount uint32, args rhi.NativeBuffer, offset uint64) {
	signature, _ := sig.(*CommandSignature)
	buf, _ := args.(*Buffer)
	cl.record(func(st *bindState, emit func(Command)) {
		if signature == nil || buf == nil {
			emit(Command{Op: OpIndirectDraw, Err: fmt.Errorf("execute indirect with foreign objects")})
			return
		}
		stride := uint64(signature.Desc.Stride)
		for i := uint64(0); i < uint64(maxCount); i++ {
			at := offset + i*stride
			if at+stride > uint64(len(buf.data)) {
				emit(Command{Op: OpIndirectDraw, Arguments: buf.name, Err: fmt.Errorf("record %d at %d: %w", i, at, ErrOutOfBounds)})
				return
			}
			rec := buf.data[at : at+stride]
			constants := st.graphics
			constants[0] = binary.LittleEndian.Uint32(rec[0:])
			emit(Command{
				Op:        OpIndirectDraw,
				Constants: constants,
				Pipeline:  pipelineName(st),
				Arguments: buf.name,
				Draw: rhi.DrawIndexedArguments{
					IndexCountPerInstance: binary.LittleEndian.Uint32(rec[4:]),
					InstanceCount:         binary.LittleEndian.Uint32(rec[8:]),
					StartIndexLocation:    binary.LittleEndian.Uint32(rec[12:]),
					BaseVertexLocation:    int32(binary.LittleEndian.Uint32(rec[16:])),
					StartInstanceLocation: binary.LittleEndian.Uint32(rec[20:]),
				},
			})
		}
	})
}

func (cl *CommandList) CopyBuffer(dst rhi.NativeBuffer, dstOffset uint64, src rhi.NativeBuffer, srcOffset uint64, size uint64) {
	d, _ := dst.(*Buffer)
	s, _ := src.(*Buffer)
	cl.record(func(_ *bindState, emit func(Command)) {
		if d == nil || s == nil || dstOffset+size > uint64(len(d.data)) || srcOffset+size > uint64(len(s.data)) {
			emit(Command{Op: OpCopyBuffer, Err: fmt.Errorf("copy of %d bytes: %w", size, ErrOutOfBounds)})
			return
		}
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		emit(Command{Op: OpCopyBuffer})
	})
}

func (cl *CommandList) CopyBufferToTexture(dst rhi.NativeTexture, src rhi.NativeBuffer, layout rhi.TextureCopyLayout) {
	t, _ := dst.(*Texture)
	s, _ := src.(*Buffer)
	cl.record(func(_ *bindState, emit func(Command)) {
		if t == nil || s == nil || layout.BufferSize > uint64(len(s.data)) || layout.BufferSize > uint64(len(t.data)) {
			emit(Command{Op: OpCopyTexture, Err: fmt.Errorf("texture copy of %d bytes: %w", layout.BufferSize, ErrOutOfBounds)})
			return
		}
		copy(t.data, s.data[:layout.BufferSize])
		emit(Command{Op: OpCopyTexture})
	})
}
