package rhi

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
)

type DeviceConfig struct {
	Width             uint32
	Height            uint32
	VSync             bool
	CbvSrvUavHeapSize uint32
	RtvHeapSize       uint32
	DsvHeapSize       uint32
}

// FrameStat is the fence bookkeeping of one FrameStart/FrameEnd pair.
type FrameStat struct {
	Frame uint64
	Slot  uint32
	// RequiredFence is the value the slot's previous use signaled, and
	// CompletedFence what the direct queue had completed when the slot's
	// list was reset.
	RequiredFence  uint64
	CompletedFence uint64
	Signaled       uint64
	NextSlot       uint32
	WaitedValue    uint64
}

// Device owns the queues, heaps, per-frame command lists, swapchain and the
// bindless root and command signatures. Everything runs on the render thread.
type Device struct {
	backend Backend

	directQueue *CommandQueue
	copyQueue   *CommandQueue

	rtvHeap       *DescriptorHeap
	dsvHeap       *DescriptorHeap
	cbvSrvUavHeap *DescriptorHeap

	directLists [FramesInFlight]*CommandList
	copyList    *CommandList

	swapchain        *Swapchain
	rootSignature    *RootSignature
	commandSignature *CommandSignature

	fenceValues [FramesInFlight]uint64
	currentSlot uint32
	inFrame     bool
	frame       uint64
	stats       []FrameStat
}

// NewDevice creates the queues, heaps, signatures and swapchain. On failure
// everything created so far is destroyed again; the backend stays with the
// caller.
func NewDevice(backend Backend, cfg DeviceConfig) (_ *Device, err error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("device of %dx%d: %w", cfg.Width, cfg.Height, core.ErrInvalidDimensions)
	}
	if cfg.RtvHeapSize < FramesInFlight {
		cfg.RtvHeapSize = FramesInFlight + 1
	}
	if cfg.DsvHeapSize == 0 {
		cfg.DsvHeapSize = 1
	}
	if cfg.CbvSrvUavHeapSize == 0 {
		cfg.CbvSrvUavHeapSize = 200000
	}

	d := &Device{backend: backend}
	defer func() {
		if err != nil {
			d.release()
		}
	}()

	if d.directQueue, err = d.createQueue(QueueKindDirect); err != nil {
		return nil, err
	}
	if d.copyQueue, err = d.createQueue(QueueKindCopy); err != nil {
		return nil, err
	}

	if d.rtvHeap, err = d.createHeap(HeapTypeRTV, cfg.RtvHeapSize); err != nil {
		return nil, err
	}
	// back buffer views live at the fixed slots 0..FramesInFlight-1
	if err := d.rtvHeap.OffsetCurrentHandle(FramesInFlight); err != nil {
		return nil, err
	}
	if d.dsvHeap, err = d.createHeap(HeapTypeDSV, cfg.DsvHeapSize); err != nil {
		return nil, err
	}
	if d.cbvSrvUavHeap, err = d.createHeap(HeapTypeCbvSrvUav, cfg.CbvSrvUavHeapSize); err != nil {
		return nil, err
	}

	rootDesc := BindlessRootSignatureDesc()
	nativeRoot, err := backend.CreateRootSignature(rootDesc)
	if err != nil {
		return nil, fmt.Errorf("create root signature: %w", err)
	}
	d.rootSignature = &RootSignature{Native: nativeRoot, Desc: rootDesc}

	sigDesc := IndirectCommandSignatureDesc()
	if err := sigDesc.Validate(); err != nil {
		return nil, err
	}
	nativeSig, err := backend.CreateCommandSignature(sigDesc, nativeRoot)
	if err != nil {
		return nil, fmt.Errorf("create command signature: %w", err)
	}
	d.commandSignature = &CommandSignature{Native: nativeSig, Desc: sigDesc}

	for i := range d.directLists {
		native, err := backend.CreateCommandList(QueueKindDirect)
		if err != nil {
			return nil, fmt.Errorf("create direct command list %d: %w", i, err)
		}
		d.directLists[i] = newCommandList(native, QueueKindDirect, fmt.Sprintf("direct[%d]", i), d.rootSignature)
	}
	nativeCopy, err := backend.CreateCommandList(QueueKindCopy)
	if err != nil {
		return nil, fmt.Errorf("create copy command list: %w", err)
	}
	d.copyList = newCommandList(nativeCopy, QueueKindCopy, "copy", d.rootSignature)

	nativeSwapchain, err := backend.CreateSwapchain(SwapchainDesc{
		Width:       cfg.Width,
		Height:      cfg.Height,
		BufferCount: FramesInFlight,
		Format:      SwapchainFormat,
		VSync:       cfg.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("create swapchain: %w", err)
	}
	if d.swapchain, err = newSwapchain(nativeSwapchain, d.rtvHeap, cfg.Width, cfg.Height, cfg.VSync); err != nil {
		nativeSwapchain.Destroy()
		return nil, err
	}

	core.LogInfo("Created %s graphics device %dx%d", backend.Name(), cfg.Width, cfg.Height)
	return d, nil
}

// release destroys every device object that exists, in reverse creation
// order.
func (d *Device) release() {
	if d.swapchain != nil {
		d.swapchain.Destroy()
	}
	if d.commandSignature != nil {
		d.commandSignature.Destroy()
	}
	if d.rootSignature != nil {
		d.rootSignature.Destroy()
	}
	for _, heap := range []*DescriptorHeap{d.cbvSrvUavHeap, d.dsvHeap, d.rtvHeap} {
		if heap != nil {
			heap.Destroy()
		}
	}
	for _, q := range []*CommandQueue{d.copyQueue, d.directQueue} {
		if q != nil {
			q.Destroy()
		}
	}
}

func (d *Device) createQueue(kind QueueKind) (*CommandQueue, error) {
	native, err := d.backend.CreateQueue(kind)
	if err != nil {
		return nil, fmt.Errorf("create %s queue: %w", kind, err)
	}
	return newCommandQueue(native, kind), nil
}

func (d *Device) createHeap(t HeapType, capacity uint32) (*DescriptorHeap, error) {
	native, err := d.backend.CreateDescriptorHeap(t, capacity)
	if err != nil {
		return nil, fmt.Errorf("create %s heap of %d: %w", t, capacity, err)
	}
	return NewDescriptorHeap(native, t, capacity), nil
}

func (d *Device) Backend() Backend                    { return d.backend }
func (d *Device) DirectQueue() *CommandQueue          { return d.directQueue }
func (d *Device) CopyQueue() *CommandQueue            { return d.copyQueue }
func (d *Device) RtvHeap() *DescriptorHeap            { return d.rtvHeap }
func (d *Device) DsvHeap() *DescriptorHeap            { return d.dsvHeap }
func (d *Device) CbvSrvUavHeap() *DescriptorHeap      { return d.cbvSrvUavHeap }
func (d *Device) Swapchain() *Swapchain               { return d.swapchain }
func (d *Device) RootSignature() *RootSignature       { return d.rootSignature }
func (d *Device) CommandSignature() *CommandSignature { return d.commandSignature }

// CurrentFrameDirectCommandList is the list of the slot opened by FrameStart.
func (d *Device) CurrentFrameDirectCommandList() *CommandList {
	return d.directLists[d.currentSlot]
}

func (d *Device) CurrentSlot() uint32 {
	return d.currentSlot
}

// FrameSlot is the slot of the frame being recorded, or between frames the
// slot the next FrameStart opens. FrameEnd already waited for that slot.
func (d *Device) FrameSlot() uint32 {
	if d.inFrame {
		return d.currentSlot
	}
	return d.swapchain.CurrentBackBufferIndex()
}

// FrameFenceValue is the direct queue value whose completion frees slot.
func (d *Device) FrameFenceValue(slot uint32) uint64 {
	return d.fenceValues[slot]
}

func (d *Device) InFrame() bool {
	return d.inFrame
}

func (d *Device) FrameCount() uint64 {
	return d.frame
}

// Stats returns the fence trace of every frame so far.
func (d *Device) Stats() []FrameStat {
	out := make([]FrameStat, len(d.stats))
	copy(out, d.stats)
	return out
}

// FrameStart opens the command list of the slot the swapchain will render
// into next.
func (d *Device) FrameStart() error {
	if d.inFrame {
		return ErrFrameInProgress
	}
	slot := d.swapchain.CurrentBackBufferIndex()
	required := d.fenceValues[slot]
	// FrameEnd already waited for this value unless the presentation engine
	// picked another image since; the wait is free when complete.
	if err := d.directQueue.WaitForFenceValue(required); err != nil {
		return err
	}
	d.currentSlot = slot
	if err := d.directLists[slot].Reset(); err != nil {
		return err
	}
	d.inFrame = true
	d.stats = append(d.stats, FrameStat{
		Frame:          d.frame,
		Slot:           slot,
		RequiredFence:  required,
		CompletedFence: d.directQueue.CompletedValue(),
	})
	return nil
}

// FrameEnd signals the direct queue for the slot just submitted, then blocks
// until the slot the swapchain hands out next is free again.
func (d *Device) FrameEnd() error {
	if !d.inFrame {
		return ErrNoFrameInProgress
	}
	v, err := d.directQueue.Signal()
	if err != nil {
		return err
	}
	d.fenceValues[d.currentSlot] = v
	next := d.swapchain.CurrentBackBufferIndex()
	waited := d.fenceValues[next]
	if err := d.directQueue.WaitForFenceValue(waited); err != nil {
		return err
	}
	stat := &d.stats[len(d.stats)-1]
	stat.Signaled = v
	stat.NextSlot = next
	stat.WaitedValue = waited

	d.currentSlot = next
	d.inFrame = false
	d.frame++
	return nil
}

// ExecuteAndPresent submits the current frame list and presents.
func (d *Device) ExecuteAndPresent() error {
	if err := d.directQueue.Execute(d.CurrentFrameDirectCommandList()); err != nil {
		return err
	}
	return d.swapchain.Present()
}

// CreateBuffer allocates a buffer and its views. Upload heap buffers are
// mapped and written directly; every other usage is staged through the copy
// queue and waited for, so it is only allowed outside frame recording.
func (d *Device) CreateBuffer(desc BufferCreationDesc, data []byte) (Buffer, error) {
	if desc.Usage != BufferUsageConstantBuffer && len(data) == 0 {
		return Buffer{}, fmt.Errorf("buffer %q (%s): %w", desc.Name, desc.Usage, ErrEmptyInitialData)
	}
	size := desc.Size()
	if size == 0 {
		size = alignUp(uint64(len(data)), 4)
	}
	if uint64(len(data)) > size {
		return Buffer{}, fmt.Errorf("buffer %q: %d bytes of data for %d: %w", desc.Name, len(data), size, ErrUpdateOutOfRange)
	}

	buf := Buffer{
		Usage:        desc.Usage,
		Name:         desc.Name,
		CbvIndex:     InvalidIndex,
		SrvIndex:     InvalidIndex,
		UavIndex:     InvalidIndex,
		SizeInBytes:  size,
		ElementSize:  desc.ElementSize,
		ElementCount: desc.ElementCount,
	}

	switch desc.Usage {
	case BufferUsageConstantBuffer, BufferUsageDynamicStructuredBuffer:
		native, err := d.backend.CreateBuffer(NativeBufferDesc{Name: desc.Name, Size: size, Heap: MemoryHeapUpload, Usage: desc.Usage})
		if err != nil {
			return Buffer{}, fmt.Errorf("create buffer %q: %w", desc.Name, err)
		}
		buf.Resource = native
		if buf.Mapped, err = native.Map(); err != nil {
			native.Destroy()
			return Buffer{}, fmt.Errorf("map buffer %q: %w", desc.Name, err)
		}
		copy(buf.Mapped, data)
	default:
		if d.inFrame {
			return Buffer{}, fmt.Errorf("buffer %q: %w", desc.Name, ErrUploadDuringFrame)
		}
		native, err := d.backend.CreateBuffer(NativeBufferDesc{Name: desc.Name, Size: size, Heap: MemoryHeapDefault, Usage: desc.Usage})
		if err != nil {
			return Buffer{}, fmt.Errorf("create buffer %q: %w", desc.Name, err)
		}
		buf.Resource = native
		if err := d.uploadBuffer(native, data); err != nil {
			native.Destroy()
			return Buffer{}, fmt.Errorf("upload buffer %q: %w", desc.Name, err)
		}
	}

	if err := d.createBufferViews(&buf); err != nil {
		buf.Destroy()
		return Buffer{}, err
	}
	return buf, nil
}

func (d *Device) createBufferViews(buf *Buffer) error {
	view := BufferView{
		Buffer:      buf.Resource,
		Size:        buf.SizeInBytes,
		Stride:      buf.ElementSize,
		NumElements: buf.ElementCount,
	}
	write := func(kind ViewKind) (uint32, error) {
		handle, err := d.cbvSrvUavHeap.Allocate()
		if err != nil {
			return InvalidIndex, fmt.Errorf("buffer %q view: %w", buf.Name, err)
		}
		view.Kind = kind
		if err := d.cbvSrvUavHeap.WriteBufferView(handle, view); err != nil {
			return InvalidIndex, fmt.Errorf("buffer %q view: %w", buf.Name, err)
		}
		return d.cbvSrvUavHeap.GetDescriptorIndex(handle), nil
	}

	var err error
	switch buf.Usage {
	case BufferUsageConstantBuffer:
		buf.CbvIndex, err = write(ViewCBV)
	case BufferUsageStructuredBuffer, BufferUsageDynamicStructuredBuffer:
		buf.SrvIndex, err = write(ViewSRV)
	case BufferUsageUAVBuffer:
		if buf.SrvIndex, err = write(ViewSRV); err == nil {
			buf.UavIndex, err = write(ViewUAV)
		}
	}
	return err
}

// uploadBuffer copies data into a default heap buffer through a transient
// upload buffer and blocks until the copy queue is done.
func (d *Device) uploadBuffer(dst NativeBuffer, data []byte) error {
	staging, err := d.backend.CreateBuffer(NativeBufferDesc{Name: "upload", Size: uint64(len(data)), Heap: MemoryHeapUpload})
	if err != nil {
		return err
	}
	defer staging.Destroy()
	mapped, err := staging.Map()
	if err != nil {
		return err
	}
	copy(mapped, data)

	return d.copyAndFlush(func(cl *CommandList) {
		cl.CopyBuffer(dst, 0, staging, 0, uint64(len(data)))
	})
}

func (d *Device) copyAndFlush(record func(cl *CommandList)) error {
	if err := d.copyList.Reset(); err != nil {
		return err
	}
	record(d.copyList)
	if err := d.copyQueue.Execute(d.copyList); err != nil {
		return err
	}
	return d.copyQueue.Flush()
}

// CreateBuffer is the typed form of Device.CreateBuffer.
func CreateBuffer[T any](d *Device, usage BufferUsage, name string, data []T) (Buffer, error) {
	return d.CreateBuffer(NewBufferDesc[T](usage, name, uint32(len(data))), Bytes(data))
}

// ReadbackBuffer returns the current contents of b. Default heap buffers are
// copied to a readback buffer through the copy queue.
func (d *Device) ReadbackBuffer(b Buffer) ([]byte, error) {
	out := make([]byte, b.SizeInBytes)
	if b.Mapped != nil {
		copy(out, b.Mapped)
		return out, nil
	}
	if d.inFrame {
		return nil, fmt.Errorf("readback %q: %w", b.Name, ErrUploadDuringFrame)
	}
	readback, err := d.backend.CreateBuffer(NativeBufferDesc{Name: "readback", Size: b.SizeInBytes, Heap: MemoryHeapReadback})
	if err != nil {
		return nil, fmt.Errorf("readback %q: %w", b.Name, err)
	}
	defer readback.Destroy()

	if err := d.copyAndFlush(func(cl *CommandList) {
		cl.CopyBuffer(readback, 0, b.Resource, 0, b.SizeInBytes)
	}); err != nil {
		return nil, fmt.Errorf("readback %q: %w", b.Name, err)
	}
	mapped, err := readback.Map()
	if err != nil {
		return nil, fmt.Errorf("readback %q: %w", b.Name, err)
	}
	copy(out, mapped)
	return out, nil
}

// CreateTexture allocates a texture, optionally uploads data through the
// copy queue, and creates the views its usage needs.
func (d *Device) CreateTexture(desc TextureCreationDesc, data []byte) (Texture, error) {
	desc = desc.normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return Texture{}, fmt.Errorf("texture %q of %dx%d: %w", desc.Name, desc.Width, desc.Height, core.ErrInvalidDimensions)
	}
	resting := desc.Usage.RestingState()
	initial := resting
	if len(data) > 0 {
		if d.inFrame {
			return Texture{}, fmt.Errorf("texture %q: %w", desc.Name, ErrUploadDuringFrame)
		}
		initial = ResourceStateCopyDest
	}

	native, err := d.backend.CreateTexture(NativeTextureDesc{TextureCreationDesc: desc, InitialState: initial})
	if err != nil {
		return Texture{}, fmt.Errorf("create texture %q: %w", desc.Name, err)
	}
	tex := Texture{
		Resource: native,
		Usage:    desc.Usage,
		Name:     desc.Name,
		SrvIndex: InvalidIndex,
		UavIndex: InvalidIndex,
		RtvIndex: InvalidIndex,
		DsvIndex: InvalidIndex,
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
	}

	if len(data) > 0 {
		if err := d.uploadTexture(&tex, desc, data, resting); err != nil {
			tex.Destroy()
			return Texture{}, fmt.Errorf("upload texture %q: %w", desc.Name, err)
		}
	}

	if err := d.createTextureViews(&tex, desc, nil); err != nil {
		tex.Destroy()
		return Texture{}, err
	}
	return tex, nil
}

// RecreateTexture creates a texture from desc whose views are written into
// the descriptor slots of old, so every index that referred to old refers to
// the new texture. Only valid while the GPU is idle, between frames. old is
// left to the caller to destroy.
func (d *Device) RecreateTexture(old Texture, desc TextureCreationDesc) (Texture, error) {
	desc = desc.normalized()
	if desc.Usage != old.Usage {
		return Texture{}, fmt.Errorf("recreate texture %q as %s: %w", old.Name, desc.Usage, ErrUsageMismatch)
	}
	if d.inFrame {
		return Texture{}, fmt.Errorf("recreate texture %q: %w", desc.Name, ErrFrameInProgress)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return Texture{}, fmt.Errorf("texture %q of %dx%d: %w", desc.Name, desc.Width, desc.Height, core.ErrInvalidDimensions)
	}

	native, err := d.backend.CreateTexture(NativeTextureDesc{TextureCreationDesc: desc, InitialState: desc.Usage.RestingState()})
	if err != nil {
		return Texture{}, fmt.Errorf("create texture %q: %w", desc.Name, err)
	}
	tex := Texture{
		Resource: native,
		Usage:    desc.Usage,
		Name:     desc.Name,
		SrvIndex: InvalidIndex,
		UavIndex: InvalidIndex,
		RtvIndex: InvalidIndex,
		DsvIndex: InvalidIndex,
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
	}
	if err := d.createTextureViews(&tex, desc, &old); err != nil {
		tex.Destroy()
		return Texture{}, err
	}
	return tex, nil
}

func (d *Device) uploadTexture(tex *Texture, desc TextureCreationDesc, data []byte, resting ResourceState) error {
	layout := desc.CopyLayout()
	if uint64(len(data)) > layout.BufferSize {
		return fmt.Errorf("%d bytes for %d: %w", len(data), layout.BufferSize, ErrUpdateOutOfRange)
	}
	staging, err := d.backend.CreateBuffer(NativeBufferDesc{Name: "upload", Size: layout.BufferSize, Heap: MemoryHeapUpload})
	if err != nil {
		return err
	}
	defer staging.Destroy()
	mapped, err := staging.Map()
	if err != nil {
		return err
	}
	copy(mapped, data)

	return d.copyAndFlush(func(cl *CommandList) {
		cl.CopyBufferToTexture(tex.Resource, staging, layout)
		cl.AddResourceBarrier(tex, ResourceStateCopyDest, resting)
	})
}

// viewSlot returns the handle of a reused descriptor index, or allocates one
// when there is nothing to reuse.
func viewSlot(heap *DescriptorHeap, reuse uint32) (DescriptorHandle, error) {
	if reuse != InvalidIndex {
		if reuse >= heap.Capacity() {
			return DescriptorHandle{}, fmt.Errorf("%s heap: reuse %d: %w", heap.Type(), reuse, ErrInvalidIndex)
		}
		return heap.GetHandleAtIndex(reuse), nil
	}
	return heap.Allocate()
}

// createTextureViews writes the views of tex. With reuse set, the views go
// into the slots of reuse instead of newly allocated ones.
func (d *Device) createTextureViews(tex *Texture, desc TextureCreationDesc, reuse *Texture) error {
	previous := Texture{SrvIndex: InvalidIndex, UavIndex: InvalidIndex, RtvIndex: InvalidIndex, DsvIndex: InvalidIndex}
	if reuse != nil {
		previous = *reuse
	}

	srv := func() error {
		handle, err := viewSlot(d.cbvSrvUavHeap, previous.SrvIndex)
		if err != nil {
			return err
		}
		view := TextureView{Kind: ViewSRV, Texture: tex.Resource, Format: desc.Format, Face: -1, Cube: desc.Cube}
		if err := d.cbvSrvUavHeap.WriteTextureView(handle, view); err != nil {
			return err
		}
		tex.SrvIndex = d.cbvSrvUavHeap.GetDescriptorIndex(handle)
		return nil
	}

	var err error
	switch desc.Usage {
	case TextureUsageDepthStencil:
		var handle DescriptorHandle
		if handle, err = viewSlot(d.dsvHeap, previous.DsvIndex); err == nil {
			err = d.dsvHeap.WriteTextureView(handle, TextureView{Kind: ViewDSV, Texture: tex.Resource, Format: desc.Format, Face: -1})
			tex.DsvIndex = d.dsvHeap.GetDescriptorIndex(handle)
		}
	case TextureUsageRenderTarget:
		var handle DescriptorHandle
		if handle, err = viewSlot(d.rtvHeap, previous.RtvIndex); err == nil {
			err = d.rtvHeap.WriteTextureView(handle, TextureView{Kind: ViewRTV, Texture: tex.Resource, Format: desc.Format, Face: -1})
			tex.RtvIndex = d.rtvHeap.GetDescriptorIndex(handle)
		}
		if err == nil {
			err = srv()
		}
	case TextureUsageUAV:
		if err = srv(); err != nil {
			break
		}
		faces := uint32(1)
		if desc.Cube {
			faces = desc.DepthOrArraySize
		}
		for face := uint32(0); face < faces && err == nil; face++ {
			reuseIndex := InvalidIndex
			switch {
			case desc.Cube && int(face) < len(previous.UavFaceIndices):
				reuseIndex = previous.UavFaceIndices[face]
			case !desc.Cube:
				reuseIndex = previous.UavIndex
			}
			var handle DescriptorHandle
			if handle, err = viewSlot(d.cbvSrvUavHeap, reuseIndex); err != nil {
				break
			}
			view := TextureView{Kind: ViewUAV, Texture: tex.Resource, Format: desc.Format, Face: -1}
			if desc.Cube {
				view.Face = int32(face)
			}
			err = d.cbvSrvUavHeap.WriteTextureView(handle, view)
			index := d.cbvSrvUavHeap.GetDescriptorIndex(handle)
			if face == 0 {
				tex.UavIndex = index
			}
			if desc.Cube {
				tex.UavFaceIndices = append(tex.UavFaceIndices, index)
			}
		}
	case TextureUsageShaderResource:
		err = srv()
	}
	if err != nil {
		return fmt.Errorf("texture %q views: %w", desc.Name, err)
	}
	return nil
}

// DsvHandle returns the DSV of a depth texture.
func (d *Device) DsvHandle(tex Texture) DescriptorHandle {
	return d.dsvHeap.GetHandleAtIndex(tex.DsvIndex)
}

// RtvHandle returns the RTV of a render target texture.
func (d *Device) RtvHandle(tex Texture) DescriptorHandle {
	return d.rtvHeap.GetHandleAtIndex(tex.RtvIndex)
}

// WaitIdle drains both queues.
func (d *Device) WaitIdle() error {
	return errors.Join(d.directQueue.Flush(), d.copyQueue.Flush())
}

// Resize waits for the GPU and recreates the swapchain buffers.
func (d *Device) Resize(width, height uint32) error {
	if d.inFrame {
		return ErrFrameInProgress
	}
	if err := d.WaitIdle(); err != nil {
		return err
	}
	return d.swapchain.Resize(width, height)
}

// Close drains both queues and releases every device object.
func (d *Device) Close() error {
	err := d.WaitIdle()
	d.release()
	d.backend.Destroy()
	core.LogInfo("Destroyed graphics device")
	return err
}
