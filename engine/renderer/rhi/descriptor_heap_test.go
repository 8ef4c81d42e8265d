package rhi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func TestDescriptorHandleOffset(t *testing.T) {
	h := rhi.DescriptorHandle{CPU: 1000, GPU: 5000, Size: 32}
	h.Offset(3)
	assert.Equal(t, uint64(1096), h.CPU)
	assert.Equal(t, uint64(5096), h.GPU)
	assert.Equal(t, uint32(3), h.Index)

	cpuOnly := rhi.DescriptorHandle{CPU: 64, Size: 32}
	cpuOnly.Offset(2)
	assert.Zero(t, cpuOnly.GPU)
}

func TestDescriptorHeapBumpAllocation(t *testing.T) {
	backend := headless.New(headless.Options{})
	defer backend.Destroy()
	native, err := backend.CreateDescriptorHeap(rhi.HeapTypeCbvSrvUav, 8)
	require.NoError(t, err)
	heap := rhi.NewDescriptorHeap(native, rhi.HeapTypeCbvSrvUav, 8)

	start := heap.GetHandleForHeapStart()
	assert.NotZero(t, start.GPU, "shader visible heaps have a gpu address")
	assert.Equal(t, start, heap.GetCurrentHandle())

	var last uint32
	for i := 0; i < 8; i++ {
		h, err := heap.Allocate()
		require.NoError(t, err)
		index := heap.GetDescriptorIndex(h)
		assert.Equal(t, uint32(i), index)
		if i > 0 {
			assert.Greater(t, index, last)
		}
		last = index
		assert.Equal(t, h, heap.GetHandleAtIndex(index))
	}

	_, err = heap.Allocate()
	require.ErrorIs(t, err, rhi.ErrHeapExhausted)
	require.ErrorIs(t, heap.OffsetCurrentHandle(1), rhi.ErrHeapExhausted)
	assert.Equal(t, uint32(8), heap.GetCurrentHandle().Index, "a failed allocation consumes nothing")
}

func TestDescriptorHeapNotShaderVisible(t *testing.T) {
	backend := headless.New(headless.Options{})
	defer backend.Destroy()
	native, err := backend.CreateDescriptorHeap(rhi.HeapTypeRTV, 4)
	require.NoError(t, err)
	heap := rhi.NewDescriptorHeap(native, rhi.HeapTypeRTV, 4)

	assert.Zero(t, heap.GetHandleForHeapStart().GPU)
	require.NoError(t, heap.OffsetCurrentHandle(3))
	assert.Equal(t, uint32(3), heap.GetDescriptorIndex(heap.GetCurrentHandle()))
}

// Every resource created through the device gets a strictly larger index than
// the previous one, and the index maps back to the same handle.
func TestDeviceDescriptorIndicesMonotonic(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})
	heap := device.CbvSrvUavHeap()
	nativeHeap := heap.Native().(*headless.Heap)

	var indices []uint32
	for i := 0; i < 4; i++ {
		cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "cb", []float32{float32(i)})
		require.NoError(t, err)
		indices = append(indices, cb.CbvIndex)

		sb, err := rhi.CreateBuffer(device, rhi.BufferUsageStructuredBuffer, "sb", []uint32{1, 2, 3})
		require.NoError(t, err)
		indices = append(indices, sb.SrvIndex)

		uav, err := rhi.CreateBuffer(device, rhi.BufferUsageUAVBuffer, "uav", []uint32{4})
		require.NoError(t, err)
		assert.Equal(t, uav.SrvIndex+1, uav.UavIndex)
		indices = append(indices, uav.SrvIndex, uav.UavIndex)
	}

	for i := 1; i < len(indices); i++ {
		assert.Equal(t, indices[i-1]+1, indices[i])
	}
	for _, index := range indices {
		h := heap.GetHandleAtIndex(index)
		assert.Equal(t, index, heap.GetDescriptorIndex(h))
	}

	view, ok := nativeHeap.BufferView(indices[1])
	require.True(t, ok)
	assert.Equal(t, rhi.ViewSRV, view.Kind)
	assert.Equal(t, uint32(4), view.Stride)
	assert.Equal(t, uint32(3), view.NumElements)
}

func TestDeviceHeapExhaustion(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{CbvSrvUavHeapSize: 2})

	_, err := rhi.CreateBuffer(device, rhi.BufferUsageUAVBuffer, "uav", []uint32{1})
	require.NoError(t, err)
	_, err = rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "cb", []uint32{1})
	require.ErrorIs(t, err, rhi.ErrHeapExhausted)
}
