package scene

import (
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
)

const (
	DefaultMovementSpeed float32 = 0.1
	DefaultRotationSpeed float32 = 0.0015
	DefaultFriction      float32 = 0.12
)

// Camera is a left handed fly camera. Movement and rotation are smoothed:
// input sets a per-frame target and the applied shift lerps towards it by
// the friction factor, so the camera drifts to a stop once keys are released.
type Camera struct {
	Position math.Vec3
	// Pitch and Yaw in radians.
	Pitch float32
	Yaw   float32

	MovementSpeed float32
	RotationSpeed float32
	Friction      float32

	front math.Vec3
	right math.Vec3
	up    math.Vec3

	moveTo     math.Vec3
	pitchShift float32
	yawShift   float32
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, -5)
	c.Pitch = 0
	c.Yaw = 0
	c.MovementSpeed = DefaultMovementSpeed
	c.RotationSpeed = DefaultRotationSpeed
	c.Friction = DefaultFriction
	c.front = math.NewVec3(0, 0, 1)
	c.right = math.NewVec3(1, 0, 0)
	c.up = math.NewVec3Up()
	c.moveTo = math.NewVec3Zero()
	c.pitchShift = 0
	c.yawShift = 0
}

// Apply overrides the camera state with the non zero fields of desc.
func (c *Camera) Apply(desc CameraDescription) {
	if !desc.Position.IsZero() {
		c.Position = desc.Position.Vec3()
	}
	c.Pitch = math.DegToRad(desc.Pitch)
	c.Yaw = math.DegToRad(desc.Yaw)
	if desc.MovementSpeed > 0 {
		c.MovementSpeed = desc.MovementSpeed
	}
	if desc.RotationSpeed > 0 {
		c.RotationSpeed = desc.RotationSpeed
	}
	if desc.Friction > 0 {
		c.Friction = math.Clamp(desc.Friction, 0, 1)
	}
}

// Front is the viewing direction as of the last View call.
func (c *Camera) Front() math.Vec3 {
	return c.front
}

func (c *Camera) Right() math.Vec3 {
	return c.right
}

func (c *Camera) Up() math.Vec3 {
	return c.up
}

// Update applies one frame of keyboard input, deltaTime in milliseconds.
// W/S move along the front vector, A/D along the right vector, the arrow
// keys pitch and yaw.
func (c *Camera) Update(deltaTime float32, input *core.Input) {
	movementSpeed := c.MovementSpeed * deltaTime
	rotationSpeed := c.RotationSpeed * deltaTime

	direction := math.NewVec3Zero()
	var pitchTo, yawTo float32

	if input != nil {
		if input.IsKeyDown(core.KEY_W) {
			direction = direction.Add(c.front.MulScalar(movementSpeed))
		} else if input.IsKeyDown(core.KEY_S) {
			direction = direction.Sub(c.front.MulScalar(movementSpeed))
		}

		if input.IsKeyDown(core.KEY_A) {
			direction = direction.Sub(c.right.MulScalar(movementSpeed))
		} else if input.IsKeyDown(core.KEY_D) {
			direction = direction.Add(c.right.MulScalar(movementSpeed))
		}

		if input.IsKeyDown(core.KEY_UP) {
			pitchTo -= rotationSpeed
		} else if input.IsKeyDown(core.KEY_DOWN) {
			pitchTo += rotationSpeed
		}

		if input.IsKeyDown(core.KEY_LEFT) {
			yawTo -= rotationSpeed
		} else if input.IsKeyDown(core.KEY_RIGHT) {
			yawTo += rotationSpeed
		}
	}

	direction = direction.Normalized().MulScalar(movementSpeed)
	c.moveTo = c.moveTo.Lerp(direction, c.Friction)
	c.Position = c.Position.Add(c.moveTo)

	c.pitchShift = math.Lerp(c.pitchShift, pitchTo, c.Friction)
	c.yawShift = math.Lerp(c.yawShift, yawTo, c.Friction)

	c.Pitch += c.pitchShift
	c.Yaw += c.yawShift
}

// View rebuilds the camera basis from pitch and yaw and returns the look-at
// matrix.
func (c *Camera) View() math.Mat4 {
	rotation := math.NewMat4RollPitchYaw(c.Pitch, c.Yaw, 0)

	c.right = math.NewVec3(1, 0, 0).TransformCoord(rotation).Normalized()
	c.front = math.NewVec3(0, 0, 1).TransformCoord(rotation).Normalized()
	c.up = c.front.Cross(c.right).Normalized()

	return math.NewMat4LookAtLH(c.Position, c.Position.Add(c.front), c.up)
}
