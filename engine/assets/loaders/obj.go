package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
)

// objVertex indexes the position, texture coordinate and normal arrays;
// -1 means absent.
type objVertex [3]int

type objDecoder struct {
	dir  string
	line int

	positions []math.Vec3
	texCoords []math.Vec2
	normals   []math.Vec3

	materials     []MaterialData
	materialIndex map[string]uint32

	meshes  map[uint32]*MeshData
	order   []uint32
	current uint32
	lookup  map[uint32]map[objVertex]uint16
}

// LoadOBJ reads a Wavefront OBJ file and the MTL libraries it references.
// Faces are split into one mesh per material and converted to the left
// handed convention by mirroring Z.
func LoadOBJ(path string) (*ModelData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeOBJ(f, filepath.Dir(path))
}

// DecodeOBJ parses OBJ data. Material libraries and textures are resolved
// against dir.
func DecodeOBJ(r io.Reader, dir string) (*ModelData, error) {
	dec := &objDecoder{
		dir:           dir,
		materialIndex: make(map[string]uint32),
		meshes:        make(map[uint32]*MeshData),
		lookup:        make(map[uint32]map[objVertex]uint16),
	}
	// faces before any usemtl use the default material
	dec.materials = append(dec.materials, DefaultMaterial())
	dec.materialIndex[""] = 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dec.line++
		if err := dec.parseLine(scanner.Text()); err != nil {
			return nil, fmt.Errorf("obj line %d: %w", dec.line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	model := &ModelData{Materials: dec.materials}
	for _, index := range dec.order {
		mesh := dec.meshes[index]
		if len(mesh.Indices) > 0 {
			model.Meshes = append(model.Meshes, *mesh)
		}
	}
	if len(model.Meshes) == 0 {
		return nil, fmt.Errorf("obj has no faces")
	}
	return model, nil
}

func (d *objDecoder) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		d.positions = append(d.positions, math.NewVec3(v[0], v[1], -v[2]))
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		d.normals = append(d.normals, math.NewVec3(v[0], v[1], -v[2]).Normalized())
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		d.texCoords = append(d.texCoords, math.NewVec2(v[0], 1-v[1]))
	case "f":
		return d.parseFace(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl without a name")
		}
		index, ok := d.materialIndex[fields[1]]
		if !ok {
			core.LogWarn("OBJ material %s is not defined, using the default", fields[1])
			index = 0
		}
		d.current = index
	case "mtllib":
		for _, lib := range fields[1:] {
			if err := d.loadMaterialLibrary(filepath.Join(d.dir, lib)); err != nil {
				return err
			}
		}
	}
	// o, g, s and everything else do not affect the output
	return nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// resolveIndex turns a 1 based, possibly negative, OBJ index into a 0 based
// one.
func resolveIndex(s string, count int) (int, error) {
	if s == "" {
		return -1, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = count + i
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index %s out of range (%d)", s, count)
	}
	return i, nil
}

func (d *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face with %d vertices", len(fields))
	}
	verts := make([]objVertex, len(fields))
	for i, field := range fields {
		parts := strings.Split(field, "/")
		var err error
		if verts[i][0], err = resolveIndex(parts[0], len(d.positions)); err != nil {
			return err
		}
		if verts[i][0] < 0 {
			return fmt.Errorf("face vertex without position")
		}
		verts[i][1], verts[i][2] = -1, -1
		if len(parts) > 1 {
			if verts[i][1], err = resolveIndex(parts[1], len(d.texCoords)); err != nil {
				return err
			}
		}
		if len(parts) > 2 {
			if verts[i][2], err = resolveIndex(parts[2], len(d.normals)); err != nil {
				return err
			}
		}
	}

	mesh := d.mesh()
	// mirroring Z flips the winding, so the fan is emitted reversed
	for i := 1; i+1 < len(verts); i++ {
		tri := [3]objVertex{verts[0], verts[i+1], verts[i]}
		normal := d.faceNormal(tri)
		for _, v := range tri {
			index, err := d.vertex(mesh, v, normal)
			if err != nil {
				return err
			}
			mesh.Indices = append(mesh.Indices, index)
		}
	}
	return nil
}

func (d *objDecoder) faceNormal(tri [3]objVertex) math.Vec3 {
	a := d.positions[tri[0][0]]
	b := d.positions[tri[1][0]]
	c := d.positions[tri[2][0]]
	return b.Sub(a).Cross(c.Sub(a)).Normalized()
}

func (d *objDecoder) mesh() *MeshData {
	mesh, ok := d.meshes[d.current]
	if !ok {
		mesh = &MeshData{MaterialIndex: d.current}
		d.meshes[d.current] = mesh
		d.order = append(d.order, d.current)
		d.lookup[d.current] = make(map[objVertex]uint16)
	}
	return mesh
}

// vertex returns the mesh index of v, adding it on first use. Vertices
// without a normal take the face normal and are not shared.
func (d *objDecoder) vertex(mesh *MeshData, v objVertex, faceNormal math.Vec3) (uint16, error) {
	lookup := d.lookup[d.current]
	if v[2] >= 0 {
		if index, ok := lookup[v]; ok {
			return index, nil
		}
	}
	if len(mesh.Positions) >= MaxIndexCount {
		return 0, ErrTooManyVertices
	}
	index := uint16(len(mesh.Positions))

	mesh.Positions = append(mesh.Positions, d.positions[v[0]])
	normal := faceNormal
	if v[2] >= 0 {
		normal = d.normals[v[2]]
		lookup[v] = index
	}
	mesh.Normals = append(mesh.Normals, normal)
	var uv math.Vec2
	if v[1] >= 0 {
		uv = d.texCoords[v[1]]
	}
	mesh.TexCoords = append(mesh.TexCoords, uv)
	return index, nil
}
