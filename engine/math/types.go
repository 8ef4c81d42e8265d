package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief a 4x4 row-major matrix used with row vectors (v * M), so
 * transforms compose left to right: scale * rotation * translation.
 * Translation lives in Data[12..14].
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief Represents the extents of a 3d object.
 */
type Extents3D struct {
	/** @brief The minimum extents of the object. */
	Min Vec3
	/** @brief The maximum extents of the object. */
	Max Vec3
}

/**
 * @brief Represents the transform of an object in the world as
 * translation, euler rotation in radians (pitch, yaw, roll) and scale.
 * Use the setters so the cached matrix is regenerated.
 */
type Transform struct {
	/** @brief The position in the world. */
	Translation Vec3
	/** @brief The rotation in radians around X (pitch), Y (yaw), Z (roll). */
	Rotation Vec3
	/** @brief The scale in the world. */
	Scale Vec3

	isDirty bool
	local   Mat4
}
