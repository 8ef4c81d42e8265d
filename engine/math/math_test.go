package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const standardTol = float32(1.0e-5)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(30, 0, 10))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

func TestMat4Inverse(t *testing.T) {
	m := NewMat4Scale(Vec3{2, 3, 4}).
		Mul(NewMat4RollPitchYaw(0.3, -1.1, 0.2)).
		Mul(NewMat4Translation(Vec3{5, -2, 7}))

	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), standardTol))
	assert.True(t, m.Inverse().Mul(m).Compare(NewMat4Identity(), standardTol))
}

func TestMat4Compose(t *testing.T) {
	// scale first, then translate
	m := NewMat4UniformScale(2).Mul(NewMat4Translation(Vec3{1, 0, 0}))
	p := Vec3{1, 1, 1}.TransformCoord(m)
	assert.True(t, p.Compare(Vec3{3, 2, 2}, standardTol))

	// directions ignore translation
	d := Vec3{0, 0, 1}.TransformNormal(NewMat4Translation(Vec3{9, 9, 9}))
	assert.True(t, d.Compare(Vec3{0, 0, 1}, standardTol))
}

func TestRotationY(t *testing.T) {
	// left handed: +90 degrees yaw turns +Z towards +X
	v := NewVec3Forward().TransformNormal(NewMat4EulerY(DegToRad(90)))
	assert.True(t, v.Compare(Vec3{1, 0, 0}, standardTol), "%v", v)
}

func TestLookAtLH(t *testing.T) {
	eye := Vec3{0, 0, -5}
	view := NewMat4LookAtLH(eye, Vec3{}, NewVec3Up())

	// the origin ends up 5 units in front of the camera
	p := Vec3{}.TransformCoord(view)
	assert.True(t, p.Compare(Vec3{0, 0, 5}, standardTol), "%v", p)
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := NewMat4PerspectiveLH(DegToRad(45), 16.0/9.0, 0.1, 100)

	near := Vec3{0, 0, 0.1}.TransformCoord(proj)
	far := Vec3{0, 0, 100}.TransformCoord(proj)
	assert.InDelta(t, 0, near.Z, 1e-5)
	assert.InDelta(t, 1, far.Z, 1e-5)
}

func TestTransformMatrix(t *testing.T) {
	tr := NewTransform()
	tr.SetTranslation(Vec3{1, 2, 3})
	assert.True(t, tr.Matrix().Compare(NewMat4Translation(Vec3{1, 2, 3}), standardTol))

	tr.SetScale(Vec3{2, 2, 2})
	p := Vec3{1, 0, 0}.TransformCoord(tr.Matrix())
	assert.True(t, p.Compare(Vec3{3, 2, 3}, standardTol))
}
