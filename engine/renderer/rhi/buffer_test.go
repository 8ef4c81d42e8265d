package rhi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type vertex struct {
	Position [3]float32
	Color    [4]float32
}

func TestNewBufferDesc(t *testing.T) {
	desc := rhi.NewBufferDesc[vertex](rhi.BufferUsageStructuredBuffer, "vertices", 10)
	assert.Equal(t, uint32(28), desc.ElementSize)
	assert.Equal(t, uint64(280), desc.Size())

	cb := rhi.NewBufferDesc[float32](rhi.BufferUsageConstantBuffer, "cb", 3)
	assert.Equal(t, uint64(256), cb.Size(), "constant buffers are 256 byte aligned")
}

// Buffers uploaded through the copy queue read back byte for byte.
func TestBufferRoundTrip(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	vertices := []vertex{
		{Position: [3]float32{-1, 0, 0}, Color: [4]float32{1, 0, 0, 1}},
		{Position: [3]float32{0, 1, 0}, Color: [4]float32{0, 1, 0, 1}},
		{Position: [3]float32{1, 0, 0}, Color: [4]float32{0, 0, 1, 1}},
	}
	indices := []uint16{0, 1, 2, 2, 1, 0}

	cases := []struct {
		name  string
		usage rhi.BufferUsage
		data  []byte
		size  uint32
		count uint32
	}{
		{"structured", rhi.BufferUsageStructuredBuffer, rhi.Bytes(vertices), 28, 3},
		{"uav", rhi.BufferUsageUAVBuffer, rhi.Bytes(vertices), 28, 3},
		{"index", rhi.BufferUsageIndexBuffer, rhi.Bytes(indices), 2, 6},
		{"dynamic", rhi.BufferUsageDynamicStructuredBuffer, rhi.Bytes(vertices), 28, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := device.CreateBuffer(rhi.BufferCreationDesc{
				Usage:        tc.usage,
				Name:         tc.name,
				ElementSize:  tc.size,
				ElementCount: tc.count,
			}, tc.data)
			require.NoError(t, err)

			got, err := device.ReadbackBuffer(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.data, got)
		})
	}
}

func TestBufferViewsByUsage(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	index, err := rhi.CreateBuffer(device, rhi.BufferUsageIndexBuffer, "indices", []uint32{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, rhi.InvalidIndex, index.CbvIndex)
	assert.Equal(t, rhi.InvalidIndex, index.SrvIndex)
	assert.Equal(t, rhi.InvalidIndex, index.UavIndex)
	assert.False(t, index.IsUpdatable())

	dynamic, err := rhi.CreateBuffer(device, rhi.BufferUsageDynamicStructuredBuffer, "objects", []uint32{1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, rhi.InvalidIndex, dynamic.SrvIndex)
	assert.Equal(t, rhi.InvalidIndex, dynamic.CbvIndex)
	assert.True(t, dynamic.IsUpdatable())

	cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "cb", []float32{1})
	require.NoError(t, err)
	assert.NotEqual(t, rhi.InvalidIndex, cb.CbvIndex)
	assert.Equal(t, uint64(256), cb.SizeInBytes)
}

func TestBufferRequiresInitialData(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	for _, usage := range []rhi.BufferUsage{
		rhi.BufferUsageStructuredBuffer,
		rhi.BufferUsageDynamicStructuredBuffer,
		rhi.BufferUsageUAVBuffer,
		rhi.BufferUsageIndexBuffer,
	} {
		_, err := device.CreateBuffer(rhi.BufferCreationDesc{Usage: usage, Name: usage.String(), ElementSize: 4, ElementCount: 4}, nil)
		assert.ErrorIs(t, err, rhi.ErrEmptyInitialData, usage.String())
	}

	cb, err := device.CreateBuffer(rhi.NewBufferDesc[[4]float32](rhi.BufferUsageConstantBuffer, "empty cb", 1), nil)
	require.NoError(t, err, "constant buffers may start empty")
	assert.True(t, cb.IsUpdatable())
}

// Writing the same payload twice leaves the same bytes as writing it once.
func TestConstantBufferUpdateIdempotent(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	cb, err := rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "cb", []float32{0, 0, 0, 0})
	require.NoError(t, err)

	payload := rhi.Bytes([]float32{2, 4, 8, 16})
	require.NoError(t, cb.Update(payload))
	once, err := device.ReadbackBuffer(cb)
	require.NoError(t, err)

	require.NoError(t, cb.Update(payload))
	twice, err := device.ReadbackBuffer(cb)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, payload, once[:len(payload)])
}

func TestBufferUpdateErrors(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	sb, err := rhi.CreateBuffer(device, rhi.BufferUsageStructuredBuffer, "static", []uint32{1, 2, 3})
	require.NoError(t, err)
	assert.ErrorIs(t, sb.Update([]byte{1}), rhi.ErrNotUpdatable)

	dyn, err := rhi.CreateBuffer(device, rhi.BufferUsageDynamicStructuredBuffer, "dynamic", []uint32{1, 2})
	require.NoError(t, err)
	assert.ErrorIs(t, dyn.Update(make([]byte, 9)), rhi.ErrUpdateOutOfRange)
	assert.ErrorIs(t, dyn.UpdateAt(4, make([]byte, 5)), rhi.ErrUpdateOutOfRange)
	require.NoError(t, rhi.UpdateBuffer(&dyn, []uint32{7, 9}))

	got, err := device.ReadbackBuffer(dyn)
	require.NoError(t, err)
	assert.Equal(t, rhi.Bytes([]uint32{7, 9}), got)
}

func TestUploadRefusedDuringFrame(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	require.NoError(t, device.FrameStart())
	_, err := rhi.CreateBuffer(device, rhi.BufferUsageStructuredBuffer, "late", []uint32{1})
	assert.ErrorIs(t, err, rhi.ErrUploadDuringFrame)

	// upload heap buffers need no flush and stay allowed
	_, err = rhi.CreateBuffer(device, rhi.BufferUsageConstantBuffer, "cb", []uint32{1})
	assert.NoError(t, err)

	require.NoError(t, device.ExecuteAndPresent())
	require.NoError(t, device.FrameEnd())
}

func TestTextureViewsByUsage(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	depth, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageDepthStencil, Format: rhi.FormatD32Float, Width: 64, Height: 64, Name: "depth",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), depth.DsvIndex)
	assert.Equal(t, rhi.InvalidIndex, depth.SrvIndex)

	rt, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageRenderTarget, Format: rhi.FormatR16G16B16A16Float, Width: 64, Height: 64, Name: "rt",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(rhi.FramesInFlight), rt.RtvIndex, "rtvs after the back buffer slots")
	assert.NotEqual(t, rhi.InvalidIndex, rt.SrvIndex)

	cube, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageUAV, Format: rhi.FormatR16G16B16A16Float, Width: 32, Height: 32, Cube: true, Name: "sky",
	}, nil)
	require.NoError(t, err)
	require.Len(t, cube.UavFaceIndices, 6)
	assert.Equal(t, cube.SrvIndex+1, cube.UavIndex)
	for i, index := range cube.UavFaceIndices {
		assert.Equal(t, cube.UavIndex+uint32(i), index)
		view, ok := device.CbvSrvUavHeap().Native().(*headless.Heap).TextureView(index)
		require.True(t, ok)
		assert.Equal(t, int32(i), view.Face)
	}
}

func TestTextureUpload(t *testing.T) {
	device, backend := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})

	pixels := make([]byte, 4*4*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	tex, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageShaderResource, Format: rhi.FormatR8G8B8A8Unorm, Width: 4, Height: 4, Name: "albedo",
	}, pixels)
	require.NoError(t, err)

	native := tex.Resource.(*headless.Texture)
	assert.Equal(t, pixels, native.Bytes())
	assert.Equal(t, rhi.ResourceStatePixelShaderResource, native.State())

	copies := backend.Executed(rhi.QueueKindCopy)
	require.NotEmpty(t, copies)
	assert.Equal(t, headless.OpCopyTexture, copies[len(copies)-2].Op)
	assert.Equal(t, headless.OpBarrier, copies[len(copies)-1].Op)

	_, err = device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageShaderResource, Format: rhi.FormatR8G8B8A8Unorm, Width: 1, Height: 1, Name: "too much",
	}, pixels)
	assert.ErrorIs(t, err, rhi.ErrUpdateOutOfRange)
}

func TestRecreateTextureKeepsViews(t *testing.T) {
	device, _ := newTestDevice(t, headless.Options{}, rhi.DeviceConfig{})
	heap := device.CbvSrvUavHeap().Native().(*headless.Heap)

	cube, err := device.CreateTexture(rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageUAV, Format: rhi.FormatR16G16B16A16Float, Width: 32, Height: 32, Cube: true, Name: "sky",
	}, nil)
	require.NoError(t, err)
	next := device.CbvSrvUavHeap().GetCurrentHandle().Index

	bigger, err := device.RecreateTexture(cube, rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageUAV, Format: rhi.FormatR16G16B16A16Float, Width: 64, Height: 64, Cube: true, Name: "sky",
	})
	require.NoError(t, err)
	assert.Equal(t, cube.SrvIndex, bigger.SrvIndex)
	assert.Equal(t, cube.UavIndex, bigger.UavIndex)
	assert.Equal(t, cube.UavFaceIndices, bigger.UavFaceIndices)
	assert.Equal(t, next, device.CbvSrvUavHeap().GetCurrentHandle().Index)
	for i, index := range bigger.UavFaceIndices {
		view, ok := heap.TextureView(index)
		require.True(t, ok)
		assert.Same(t, bigger.Resource, view.Texture)
		assert.Equal(t, int32(i), view.Face)
	}

	_, err = device.RecreateTexture(cube, rhi.TextureCreationDesc{
		Usage: rhi.TextureUsageDepthStencil, Format: rhi.FormatD32Float, Width: 64, Height: 64, Name: "sky",
	})
	assert.ErrorIs(t, err, rhi.ErrUsageMismatch)
}
