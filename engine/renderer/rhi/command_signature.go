package rhi

import (
	"fmt"
	"unsafe"
)

type IndirectArgumentType uint8

const (
	IndirectArgumentConstant IndirectArgumentType = iota
	IndirectArgumentDrawIndexed
	IndirectArgumentDraw
	IndirectArgumentDispatch
)

type IndirectArgument struct {
	Type               IndirectArgumentType
	RootParameterIndex uint32
	DestOffset         uint32
	Num32BitValues     uint32
}

type DrawIndexedArguments struct {
	IndexCountPerInstance uint32
	InstanceCount         uint32
	StartIndexLocation    uint32
	BaseVertexLocation    int32
	StartInstanceLocation uint32
}

// IndirectCommandArgs is one record of the indirect argument buffer: the mesh
// id written to root constant 0, followed by the draw.
type IndirectCommandArgs struct {
	MeshID        uint32
	DrawArguments DrawIndexedArguments
}

const IndirectCommandStride = uint32(unsafe.Sizeof(IndirectCommandArgs{}))

// Offset of the draw arguments inside a record, for backends that consume
// the draw part directly.
const IndirectDrawArgumentsOffset = uint32(unsafe.Offsetof(IndirectCommandArgs{}.DrawArguments))

// fails to compile if the record is not 24 bytes
var _ = [1]struct{}{}[IndirectCommandStride-24]

type CommandSignatureDesc struct {
	Stride    uint32
	Arguments []IndirectArgument
}

// IndirectCommandSignatureDesc matches IndirectCommandArgs.
func IndirectCommandSignatureDesc() CommandSignatureDesc {
	return CommandSignatureDesc{
		Stride: IndirectCommandStride,
		Arguments: []IndirectArgument{
			{Type: IndirectArgumentConstant, RootParameterIndex: 0, DestOffset: 0, Num32BitValues: 1},
			{Type: IndirectArgumentDrawIndexed},
		},
	}
}

func (d CommandSignatureDesc) Validate() error {
	var size uint32
	for _, a := range d.Arguments {
		switch a.Type {
		case IndirectArgumentConstant:
			size += 4 * a.Num32BitValues
		case IndirectArgumentDrawIndexed:
			size += uint32(unsafe.Sizeof(DrawIndexedArguments{}))
		case IndirectArgumentDraw:
			size += 16
		case IndirectArgumentDispatch:
			size += 12
		}
	}
	if size != d.Stride {
		return fmt.Errorf("command signature stride %d does not match arguments size %d", d.Stride, size)
	}
	return nil
}

type CommandSignature struct {
	Native NativeCommandSignature
	Desc   CommandSignatureDesc
}

func (s *CommandSignature) Destroy() {
	if s.Native != nil {
		s.Native.Destroy()
		s.Native = nil
	}
}
