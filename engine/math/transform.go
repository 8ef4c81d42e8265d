package math

func NewTransform() Transform {
	return Transform{
		Scale:   NewVec3One(),
		isDirty: true,
	}
}

func NewTransformFrom(translation, rotation, scale Vec3) Transform {
	return Transform{
		Translation: translation,
		Rotation:    rotation,
		Scale:       scale,
		isDirty:     true,
	}
}

func (t *Transform) SetTranslation(translation Vec3) {
	t.Translation = translation
	t.isDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Translation = t.Translation.Add(translation)
	t.isDirty = true
}

func (t *Transform) SetRotation(rotation Vec3) {
	t.Rotation = rotation
	t.isDirty = true
}

func (t *Transform) Rotate(rotation Vec3) {
	t.Rotation = t.Rotation.Add(rotation)
	t.isDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.isDirty = true
}

// Matrix returns scale * Rx * Ry * Rz * translation, regenerating it if a
// setter was called since the last call.
func (t *Transform) Matrix() Mat4 {
	if t.isDirty {
		s := NewMat4Scale(t.Scale)
		r := NewMat4EulerX(t.Rotation.X).Mul(NewMat4EulerY(t.Rotation.Y)).Mul(NewMat4EulerZ(t.Rotation.Z))
		tr := NewMat4Translation(t.Translation)
		t.local = s.Mul(r).Mul(tr)
		t.isDirty = false
	}
	return t.local
}
