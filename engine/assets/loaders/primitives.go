package loaders

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/aurora/engine/math"
)

const (
	sphereStacks = 32
	sphereSlices = 32
)

// Primitive builds one of the unit sized built-in shapes: cube, plane or
// sphere. Triangles wind clockwise seen from outside.
func Primitive(name string) (*ModelData, error) {
	var mesh MeshData
	switch name {
	case "cube":
		mesh = cubeMesh()
	case "plane":
		mesh = planeMesh()
	case "sphere":
		mesh = sphereMesh(sphereStacks, sphereSlices)
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPrimitive)
	}
	return &ModelData{
		Meshes:    []MeshData{mesh},
		Materials: []MaterialData{DefaultMaterial()},
	}, nil
}

type face struct {
	normal, right, up math.Vec3
}

// right cross up points into the shape for every face
var cubeFaces = []face{
	{normal: math.NewVec3(0, 0, -1), right: math.NewVec3(1, 0, 0), up: math.NewVec3(0, 1, 0)},
	{normal: math.NewVec3(0, 0, 1), right: math.NewVec3(-1, 0, 0), up: math.NewVec3(0, 1, 0)},
	{normal: math.NewVec3(1, 0, 0), right: math.NewVec3(0, 0, 1), up: math.NewVec3(0, 1, 0)},
	{normal: math.NewVec3(-1, 0, 0), right: math.NewVec3(0, 0, -1), up: math.NewVec3(0, 1, 0)},
	{normal: math.NewVec3(0, 1, 0), right: math.NewVec3(1, 0, 0), up: math.NewVec3(0, 0, 1)},
	{normal: math.NewVec3(0, -1, 0), right: math.NewVec3(1, 0, 0), up: math.NewVec3(0, 0, -1)},
}

var (
	quadCorners = [4][2]float32{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}}
	quadUVs     = [4]math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	quadIndices = [6]uint16{0, 1, 2, 0, 2, 3}
)

func appendQuad(mesh *MeshData, f face, center math.Vec3, halfExtent float32) {
	base := uint16(len(mesh.Positions))
	for i, c := range quadCorners {
		p := center.
			Add(f.right.MulScalar(c[0] * halfExtent)).
			Add(f.up.MulScalar(c[1] * halfExtent))
		mesh.Positions = append(mesh.Positions, p)
		mesh.Normals = append(mesh.Normals, f.normal)
		mesh.TexCoords = append(mesh.TexCoords, quadUVs[i])
	}
	for _, index := range quadIndices {
		mesh.Indices = append(mesh.Indices, base+index)
	}
}

func cubeMesh() MeshData {
	var mesh MeshData
	for _, f := range cubeFaces {
		appendQuad(&mesh, f, f.normal.MulScalar(0.5), 0.5)
	}
	return mesh
}

func planeMesh() MeshData {
	var mesh MeshData
	appendQuad(&mesh, cubeFaces[4], math.NewVec3Zero(), 0.5)
	return mesh
}

func sphereMesh(stacks, slices int) MeshData {
	var mesh MeshData
	for i := 0; i <= stacks; i++ {
		theta := float32(i) * math32.Pi / float32(stacks)
		sinTheta, cosTheta := math32.Sincos(theta)
		for j := 0; j <= slices; j++ {
			phi := float32(j) * 2 * math32.Pi / float32(slices)
			sinPhi, cosPhi := math32.Sincos(phi)

			n := math.NewVec3(sinTheta*cosPhi, cosTheta, sinTheta*sinPhi)
			mesh.Positions = append(mesh.Positions, n.MulScalar(0.5))
			mesh.Normals = append(mesh.Normals, n)
			mesh.TexCoords = append(mesh.TexCoords, math.NewVec2(float32(j)/float32(slices), float32(i)/float32(stacks)))
		}
	}
	for i := 0; i < stacks; i++ {
		for j := 0; j < slices; j++ {
			a := uint16(i*(slices+1) + j)
			b := a + uint16(slices+1)
			mesh.Indices = append(mesh.Indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return mesh
}
