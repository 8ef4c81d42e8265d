package renderpass_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

type nopCompiler struct{}

func (nopCompiler) Compile(desc shader.ShaderCreationDesc, _ bool) (shader.Blob, error) {
	return shader.Blob{Type: desc.Type, Code: []byte{0}, EntryPoint: desc.EntryPoint}, nil
}

// testContext keeps resources in plain slices on a headless device.
type testContext struct {
	device    *rhi.Device
	backend   *headless.Backend
	buffers   []rhi.Buffer
	textures  []rhi.Texture
	pipelines []rhi.Pipeline
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()
	backend := headless.New(headless.Options{})
	device, err := rhi.NewDevice(backend, rhi.DeviceConfig{
		Width:             64,
		Height:            64,
		CbvSrvUavHeapSize: 256,
		RtvHeapSize:       8,
		DsvHeapSize:       4,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, device.Close())
	})
	return &testContext{device: device, backend: backend}
}

func (c *testContext) CreateBuffer(desc rhi.BufferCreationDesc, data []byte) (uint32, error) {
	b, err := c.device.CreateBuffer(desc, data)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	c.buffers = append(c.buffers, b)
	return uint32(len(c.buffers) - 1), nil
}

func (c *testContext) CreateTexture(desc rhi.TextureCreationDesc, data []byte) (uint32, error) {
	tex, err := c.device.CreateTexture(desc, data)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	c.textures = append(c.textures, tex)
	return uint32(len(c.textures) - 1), nil
}

func (c *testContext) CreatePipeline(desc rhi.PipelineCreationDesc) (uint32, error) {
	p, err := c.device.CreatePipeline(desc, nopCompiler{}, false)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	p.Index = uint32(len(c.pipelines))
	c.pipelines = append(c.pipelines, p)
	return p.Index, nil
}

func (c *testContext) BufferAt(index uint32) *rhi.Buffer   { return &c.buffers[index] }
func (c *testContext) TextureAt(index uint32) *rhi.Texture { return &c.textures[index] }
func (c *testContext) PipelineAt(index uint32) rhi.Pipeline {
	return c.pipelines[index]
}
func (c *testContext) FrameSlot() uint32 { return c.device.FrameSlot() }

// record runs fn inside one frame and waits for the GPU to execute it.
func (c *testContext) record(t *testing.T, fn func(cl *rhi.CommandList)) []headless.Command {
	t.Helper()
	before := len(c.backend.Executed(rhi.QueueKindDirect))
	require.NoError(t, c.device.FrameStart())
	cl := c.device.CurrentFrameDirectCommandList()
	bb := c.device.Swapchain().CurrentBackBuffer()
	cl.AddResourceBarrier(bb, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget)
	cl.ExecuteBarriers()
	fn(cl)
	cl.AddResourceBarrier(bb, rhi.ResourceStateRenderTarget, rhi.ResourceStatePresent)
	cl.ExecuteBarriers()
	require.NoError(t, c.device.ExecuteAndPresent())
	require.NoError(t, c.device.FrameEnd())
	require.NoError(t, c.device.WaitIdle())
	return c.backend.Executed(rhi.QueueKindDirect)[before:]
}

func filter(cmds []headless.Command, op headless.Op) []headless.Command {
	var out []headless.Command
	for _, c := range cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
