package rhi

import (
	"fmt"
	"unsafe"
)

// NumRootConstants is the size of the single root parameter, in 32 bit values.
const NumRootConstants = 64

// RootConstants is the per-draw payload every bindless shader receives. Passes
// fill it with a render resources struct made of descriptor indices.
type RootConstants [NumRootConstants]uint32

// RootConstantsFrom copies a plain render resources struct into root
// constants. It panics if the struct does not fit, which is a programming
// error caught the first time the pass runs.
func RootConstantsFrom[T any](v T) RootConstants {
	var rc RootConstants
	size := unsafe.Sizeof(v)
	if size > unsafe.Sizeof(rc) {
		panic(fmt.Sprintf("render resources of %d bytes exceed %d root constants", size, NumRootConstants))
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&rc[0])), unsafe.Sizeof(rc)),
		unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return rc
}

// Bindless static samplers.
const (
	SamplerAnisotropicWrap = 0
	SamplerLinearWrap      = 1
)

// BindlessRootSignatureDesc is the single root signature shared by every
// graphics and compute pipeline.
func BindlessRootSignatureDesc() RootSignatureDesc {
	return RootSignatureDesc{
		NumConstants: NumRootConstants,
		StaticSamplers: []StaticSampler{
			{Register: SamplerAnisotropicWrap, Anisotropic: true, MaxAniso: 16},
			{Register: SamplerLinearWrap},
		},
	}
}

type RootSignature struct {
	Native NativeRootSignature
	Desc   RootSignatureDesc
}

func (r *RootSignature) Destroy() {
	if r.Native != nil {
		r.Native.Destroy()
		r.Native = nil
	}
}
