package rhi

import (
	"fmt"
	"unsafe"
)

type BufferUsage uint8

const (
	BufferUsageConstantBuffer BufferUsage = iota
	BufferUsageStructuredBuffer
	// BufferUsageDynamicStructuredBuffer lives in upload memory and can be
	// rewritten every frame.
	BufferUsageDynamicStructuredBuffer
	BufferUsageUAVBuffer
	BufferUsageIndexBuffer
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageConstantBuffer:
		return "ConstantBuffer"
	case BufferUsageStructuredBuffer:
		return "StructuredBuffer"
	case BufferUsageDynamicStructuredBuffer:
		return "DynamicStructuredBuffer"
	case BufferUsageUAVBuffer:
		return "UAVBuffer"
	case BufferUsageIndexBuffer:
		return "IndexBuffer"
	}
	return fmt.Sprintf("BufferUsage(%d)", uint8(u))
}

// ConstantBufferAlignment is the size granularity of constant buffers.
const ConstantBufferAlignment = 256

type BufferCreationDesc struct {
	Usage        BufferUsage
	Name         string
	ElementSize  uint32
	ElementCount uint32
}

// NewBufferDesc fills ElementSize from T.
func NewBufferDesc[T any](usage BufferUsage, name string, count uint32) BufferCreationDesc {
	var zero T
	return BufferCreationDesc{
		Usage:        usage,
		Name:         name,
		ElementSize:  uint32(unsafe.Sizeof(zero)),
		ElementCount: count,
	}
}

// Size is the byte size the buffer is allocated with.
func (d BufferCreationDesc) Size() uint64 {
	size := uint64(d.ElementSize) * uint64(d.ElementCount)
	if d.Usage == BufferUsageConstantBuffer {
		size = alignUp(size, ConstantBufferAlignment)
	}
	return size
}

// Bytes reinterprets a slice of plain data as raw bytes without copying.
func Bytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*int(unsafe.Sizeof(zero)))
}

// BytesOf is Bytes for a single value.
func BytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

type Buffer struct {
	Resource     NativeBuffer
	Usage        BufferUsage
	Name         string
	CbvIndex     uint32
	SrvIndex     uint32
	UavIndex     uint32
	SizeInBytes  uint64
	ElementSize  uint32
	ElementCount uint32
	// Mapped is the persistently mapped memory of upload heap buffers.
	Mapped []byte
}

func (b *Buffer) NativeResource() NativeResource {
	return b.Resource
}

// IsUpdatable reports whether the buffer lives in CPU writable memory.
func (b *Buffer) IsUpdatable() bool {
	return b.Mapped != nil &&
		(b.Usage == BufferUsageConstantBuffer || b.Usage == BufferUsageDynamicStructuredBuffer)
}

// Update copies data to the start of the mapped memory. The GPU must not be
// reading the range, which the per-slot fences of the device guarantee for
// per-frame buffers.
func (b *Buffer) Update(data []byte) error {
	if !b.IsUpdatable() {
		return fmt.Errorf("buffer %q (%s): %w", b.Name, b.Usage, ErrNotUpdatable)
	}
	if uint64(len(data)) > b.SizeInBytes {
		return fmt.Errorf("buffer %q: %d bytes into %d: %w", b.Name, len(data), b.SizeInBytes, ErrUpdateOutOfRange)
	}
	copy(b.Mapped, data)
	return nil
}

// UpdateAt writes data at a byte offset.
func (b *Buffer) UpdateAt(offset uint64, data []byte) error {
	if !b.IsUpdatable() {
		return fmt.Errorf("buffer %q (%s): %w", b.Name, b.Usage, ErrNotUpdatable)
	}
	if offset+uint64(len(data)) > b.SizeInBytes {
		return fmt.Errorf("buffer %q: %d bytes at %d into %d: %w", b.Name, len(data), offset, b.SizeInBytes, ErrUpdateOutOfRange)
	}
	copy(b.Mapped[offset:], data)
	return nil
}

func (b *Buffer) Destroy() {
	if b.Resource != nil {
		b.Resource.Destroy()
		b.Resource = nil
		b.Mapped = nil
	}
}

// UpdateBuffer writes a typed slice into an updatable buffer.
func UpdateBuffer[T any](b *Buffer, data []T) error {
	return b.Update(Bytes(data))
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}
