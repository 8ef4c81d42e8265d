package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
)

// GameObject is a placed model. Its meshes and materials are contiguous
// ranges of the scene wide mesh and material arrays.
type GameObject struct {
	ID    uuid.UUID
	Index uint32
	Name  string
	Model string
	// Transform rotation is stored in radians.
	Transform math.Transform

	MeshCount            uint32
	MaterialCount        uint32
	MeshBufferOffset     uint32
	MaterialBufferOffset uint32
}

func newGameObject(index uint32, desc GameObjectDescription) *GameObject {
	scale := desc.Scale.Vec3()
	if desc.Scale.IsZero() {
		scale = math.NewVec3One()
	}
	rotation := desc.Rotation.Vec3()
	name := desc.Name
	if name == "" {
		name = desc.Model
	}
	return &GameObject{
		ID:    uuid.New(),
		Index: index,
		Name:  name,
		Model: desc.Model,
		Transform: math.NewTransformFrom(
			desc.Translation.Vec3(),
			math.NewVec3(math.DegToRad(rotation.X), math.DegToRad(rotation.Y), math.DegToRad(rotation.Z)),
			scale,
		),
	}
}

// TransformBuffer is the shader side transform: the model matrix and the
// matrix normals are transformed with.
func (g *GameObject) TransformBuffer() interop.TransformBuffer {
	model := g.Transform.Matrix()
	return interop.TransformBuffer{
		ModelMatrix:                  model,
		TransposedInverseModelMatrix: model.Inverse().Transposed(),
	}
}
