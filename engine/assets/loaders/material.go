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

// ParseMTL reads a Wavefront material library. Only the parameters the PBR
// shading uses are kept: Kd and d for the base color, the Pm and Pr PBR
// extension for metallic and roughness, and map_Kd for the albedo texture,
// resolved against dir.
func ParseMTL(r io.Reader, dir string) ([]MaterialData, error) {
	var (
		materials []MaterialData
		current   *MaterialData
		line      int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())

		// Skip comments and empty lines
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		key, values := fields[0], fields[1:]
		if key == "newmtl" {
			if len(values) == 0 {
				return nil, fmt.Errorf("mtl line %d: newmtl without a name", line)
			}
			m := DefaultMaterial()
			m.Name = values[0]
			materials = append(materials, m)
			current = &materials[len(materials)-1]
			continue
		}
		if current == nil {
			core.LogWarn("mtl line %d: %s before newmtl, skipping", line, key)
			continue
		}

		switch key {
		case "Kd":
			v, err := parseFloats(values, 3)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: %w", line, err)
			}
			current.BaseColor = math.NewVec4(v[0], v[1], v[2], current.BaseColor.W)
		case "d":
			v, err := parseFloats(values, 1)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: %w", line, err)
			}
			current.BaseColor.W = v[0]
		case "Pm", "Pr":
			v, err := strconv.ParseFloat(firstOr(values, ""), 32)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: %w", line, err)
			}
			if key == "Pm" {
				current.MetallicRoughness.X = float32(v)
			} else {
				current.MetallicRoughness.Y = float32(v)
			}
		case "map_Kd":
			if len(values) == 0 {
				continue
			}
			// options such as -bm precede the file name
			texture := filepath.Join(dir, values[len(values)-1])
			img, err := LoadImage(texture)
			if err != nil {
				core.LogWarn("Failed to load texture %s of material %s: %v", texture, current.Name, err)
				continue
			}
			current.BaseColorTexture = img
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return materials, nil
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

func (d *objDecoder) loadMaterialLibrary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		core.LogWarn("Failed to open material library %s: %v", path, err)
		return nil
	}
	defer f.Close()

	materials, err := ParseMTL(f, filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, m := range materials {
		d.materialIndex[m.Name] = uint32(len(d.materials))
		d.materials = append(d.materials, m)
	}
	return nil
}
