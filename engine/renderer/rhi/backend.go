package rhi

// The native contract below is what a graphics backend has to provide. The
// rhi types on top of it own every policy (descriptor allocation, fences per
// frame slot, barrier batching, upload staging); backends only translate.

// MemoryHeap selects where a native buffer lives.
type MemoryHeap uint8

const (
	// MemoryHeapDefault is GPU local and not CPU visible.
	MemoryHeapDefault MemoryHeap = iota
	// MemoryHeapUpload is CPU writable, GPU readable and persistently mappable.
	MemoryHeapUpload
	// MemoryHeapReadback is GPU writable and CPU readable.
	MemoryHeapReadback
)

type NativeBufferDesc struct {
	Name  string
	Size  uint64
	Heap  MemoryHeap
	Usage BufferUsage
}

type NativeTextureDesc struct {
	TextureCreationDesc
	InitialState ResourceState
}

type SwapchainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      Format
	VSync       bool
}

type StaticSampler struct {
	Register    uint32
	Anisotropic bool
	MaxAniso    float32
}

type RootSignatureDesc struct {
	NumConstants   uint32
	StaticSamplers []StaticSampler
}

// ShaderBlob is compiled shader bytecode and the entry point it was compiled for.
type ShaderBlob struct {
	Code       []byte
	EntryPoint string
}

type NativePipelineDesc struct {
	Name          string
	Variant       PipelineVariant
	Vertex        ShaderBlob
	Pixel         ShaderBlob
	Compute       ShaderBlob
	CullMode      CullMode
	RtvFormats    []Format
	DsvFormat     Format
	DepthWrite    bool
	RootSignature NativeRootSignature
}

type Backend interface {
	Name() string

	CreateDescriptorHeap(t HeapType, capacity uint32) (NativeHeap, error)
	CreateBuffer(desc NativeBufferDesc) (NativeBuffer, error)
	CreateTexture(desc NativeTextureDesc) (NativeTexture, error)
	CreateQueue(kind QueueKind) (NativeQueue, error)
	CreateCommandList(kind QueueKind) (NativeCommandList, error)
	CreateSwapchain(desc SwapchainDesc) (NativeSwapchain, error)
	CreateRootSignature(desc RootSignatureDesc) (NativeRootSignature, error)
	CreatePipeline(desc NativePipelineDesc) (NativePipeline, error)
	CreateCommandSignature(desc CommandSignatureDesc, root NativeRootSignature) (NativeCommandSignature, error)

	// WaitIdle blocks until every queue of the backend is idle.
	WaitIdle() error
	Destroy()
}

type NativeResource interface {
	Name() string
}

type NativeBuffer interface {
	NativeResource
	Size() uint64
	// Map returns the persistently mapped memory of an upload or readback buffer.
	Map() ([]byte, error)
	Destroy()
}

type NativeTexture interface {
	NativeResource
	Desc() TextureCreationDesc
	Destroy()
}

type ViewKind uint8

const (
	ViewCBV ViewKind = iota
	ViewSRV
	ViewUAV
	ViewRTV
	ViewDSV
)

type BufferView struct {
	Kind        ViewKind
	Buffer      NativeBuffer
	Offset      uint64
	Size        uint64
	Stride      uint32
	NumElements uint32
}

type TextureView struct {
	Kind    ViewKind
	Texture NativeTexture
	Format  Format
	// Face selects one array slice; -1 views every slice.
	Face int32
	Cube bool
}

type NativeHeap interface {
	DescriptorSize() uint32
	// Start returns the CPU and GPU addresses of slot 0. GPU is 0 for heaps
	// that are not shader visible.
	Start() (cpu uint64, gpu uint64)
	WriteBufferView(index uint32, view BufferView) error
	WriteTextureView(index uint32, view TextureView) error
	Destroy()
}

type NativeQueue interface {
	Submit(lists []NativeCommandList) error
	// Signal enqueues a fence signal to value after all prior submissions.
	Signal(value uint64) error
	CompletedValue() uint64
	// Wait blocks the calling goroutine until CompletedValue() >= value.
	Wait(value uint64) error
	Destroy()
}

type TextureCopyLayout struct {
	Width      uint32
	Height     uint32
	RowPitch   uint32
	ArraySize  uint32
	BufferSize uint64
}

type NativeCommandList interface {
	Reset() error
	Close() error

	ResourceBarriers(barriers []Barrier)
	ClearRenderTarget(rtv DescriptorHandle, color [4]float32)
	ClearDepthStencil(dsv DescriptorHandle, depth float32)
	SetRenderTargets(rtvs []DescriptorHandle, dsv *DescriptorHandle)
	SetDescriptorHeaps(heaps []NativeHeap)
	SetPrimitiveTopology(t PrimitiveTopology)
	SetViewport(viewport Viewport, scissor Rect)
	SetRootSignature(root NativeRootSignature, compute bool)
	SetPipeline(p NativePipeline)
	SetRootConstants(constants *RootConstants, compute bool)
	SetIndexBuffer(b NativeBuffer, format Format, size uint64)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	Dispatch(x, y, z uint32)
	ExecuteIndirect(sig NativeCommandSignature, maxCount uint32, args NativeBuffer, offset uint64)
	CopyBuffer(dst NativeBuffer, dstOffset uint64, src NativeBuffer, srcOffset uint64, size uint64)
	CopyBufferToTexture(dst NativeTexture, src NativeBuffer, layout TextureCopyLayout)
}

type NativeSwapchain interface {
	BackBuffers() []NativeTexture
	// CurrentBackBufferIndex asks the presentation engine which image is next.
	CurrentBackBufferIndex() uint32
	Present(syncInterval uint32, allowTearing bool) error
	SupportsTearing() bool
	Resize(width, height uint32) error
	Destroy()
}

type NativeRootSignature interface {
	Destroy()
}

type NativePipeline interface {
	Destroy()
}

type NativeCommandSignature interface {
	Destroy()
}
