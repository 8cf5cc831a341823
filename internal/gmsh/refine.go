// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Region shapes for local refinement.
const (
	RegionBox      = "box"
	RegionSphere   = "sphere"
	RegionCylinder = "cylinder"
	RegionSurface  = "surface"
)

// Region is a local refinement zone. Size is the target element size inside
// the region; the global size applies outside.
type Region struct {
	Shape  string     `yaml:"shape" json:"shape"`
	Min    [3]float64 `yaml:"min" json:"min"`       // box corner
	Max    [3]float64 `yaml:"max" json:"max"`       // box corner
	Center [3]float64 `yaml:"center" json:"center"` // sphere / cylinder
	Axis   [3]float64 `yaml:"axis" json:"axis"`     // cylinder direction
	Radius float64    `yaml:"radius" json:"radius"`
	Length float64    `yaml:"length" json:"length"`   // cylinder extent along Axis
	Dist   float64    `yaml:"dist" json:"dist"`       // surface: refinement falloff distance
	Size   float64    `yaml:"size" json:"size"`
}

// Validate checks the region parameters.
func (r Region) Validate() error {
	if r.Size <= 0 {
		return fmt.Errorf("refinement region size must be positive, got %g", r.Size)
	}
	switch r.Shape {
	case RegionBox:
		for i := 0; i < 3; i++ {
			if r.Min[i] >= r.Max[i] {
				return fmt.Errorf("box region axis %d: min %g >= max %g", i, r.Min[i], r.Max[i])
			}
		}
	case RegionSphere, RegionCylinder:
		if r.Radius <= 0 {
			return fmt.Errorf("%s region radius must be positive, got %g", r.Shape, r.Radius)
		}
	case RegionSurface:
		if r.Dist <= 0 {
			return fmt.Errorf("surface region dist must be positive, got %g", r.Dist)
		}
	default:
		return fmt.Errorf("unknown refinement region shape %q", r.Shape)
	}
	return nil
}

// LoadRegions reads refinement regions from a YAML file. The file holds a
// plain list of region mappings.
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	var regions []Region
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse regions file %s: %w", path, err)
	}
	for i, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}
	return regions, nil
}

// RenderRefinedScript produces a .geo script with local refinement fields
// layered over the base meshing setup. All active size fields are combined
// through a Min field so regions compound with the boundary layer sizing.
func RenderRefinedScript(stepFile string, o Options, regions []Region) (string, error) {
	for i, r := range regions {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("region %d: %w", i, err)
		}
	}

	base, err := RenderScript(stepFile, o)
	if err != nil {
		return "", err
	}
	if len(regions) == 0 {
		return base, nil
	}

	o = o.normalize()
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n// local refinement regions\n")

	// Field ids 1-3 are reserved for the boundary layer setup.
	id := 10
	var active []int
	if o.BoundaryLayers {
		active = append(active, 2)
	}

	for _, r := range regions {
		switch r.Shape {
		case RegionBox:
			fmt.Fprintf(&sb, "Field[%d] = Box;\n", id)
			fmt.Fprintf(&sb, "Field[%d].VIn = %g;\nField[%d].VOut = %g;\n", id, r.Size, id, o.Size)
			fmt.Fprintf(&sb, "Field[%d].XMin = %g;\nField[%d].XMax = %g;\n", id, r.Min[0], id, r.Max[0])
			fmt.Fprintf(&sb, "Field[%d].YMin = %g;\nField[%d].YMax = %g;\n", id, r.Min[1], id, r.Max[1])
			fmt.Fprintf(&sb, "Field[%d].ZMin = %g;\nField[%d].ZMax = %g;\n", id, r.Min[2], id, r.Max[2])
		case RegionSphere:
			fmt.Fprintf(&sb, "Field[%d] = Ball;\n", id)
			fmt.Fprintf(&sb, "Field[%d].VIn = %g;\nField[%d].VOut = %g;\n", id, r.Size, id, o.Size)
			fmt.Fprintf(&sb, "Field[%d].Radius = %g;\n", id, r.Radius)
			fmt.Fprintf(&sb, "Field[%d].XCenter = %g;\nField[%d].YCenter = %g;\nField[%d].ZCenter = %g;\n",
				id, r.Center[0], id, r.Center[1], id, r.Center[2])
		case RegionCylinder:
			fmt.Fprintf(&sb, "Field[%d] = Cylinder;\n", id)
			fmt.Fprintf(&sb, "Field[%d].VIn = %g;\nField[%d].VOut = %g;\n", id, r.Size, id, o.Size)
			fmt.Fprintf(&sb, "Field[%d].Radius = %g;\n", id, r.Radius)
			fmt.Fprintf(&sb, "Field[%d].XCenter = %g;\nField[%d].YCenter = %g;\nField[%d].ZCenter = %g;\n",
				id, r.Center[0], id, r.Center[1], id, r.Center[2])
			fmt.Fprintf(&sb, "Field[%d].XAxis = %g;\nField[%d].YAxis = %g;\nField[%d].ZAxis = %g;\n",
				id, r.Axis[0]*r.Length, id, r.Axis[1]*r.Length, id, r.Axis[2]*r.Length)
		case RegionSurface:
			// Distance from the body surfaces with a linear falloff.
			fmt.Fprintf(&sb, "Field[%d] = Distance;\n", id)
			fmt.Fprintf(&sb, "Field[%d].SurfacesList = {intake()};\n", id)
			fmt.Fprintf(&sb, "Field[%d] = Threshold;\n", id+1)
			fmt.Fprintf(&sb, "Field[%d].InField = %d;\n", id+1, id)
			fmt.Fprintf(&sb, "Field[%d].SizeMin = %g;\nField[%d].SizeMax = %g;\n", id+1, r.Size, id+1, o.Size)
			fmt.Fprintf(&sb, "Field[%d].DistMin = 0;\nField[%d].DistMax = %g;\n", id+1, id+1, r.Dist)
			id++
		}
		active = append(active, id)
		id++
	}

	var list []string
	for _, a := range active {
		list = append(list, fmt.Sprintf("%d", a))
	}
	fmt.Fprintf(&sb, "Field[%d] = Min;\n", id)
	fmt.Fprintf(&sb, "Field[%d].FieldsList = {%s};\n", id, strings.Join(list, ", "))
	fmt.Fprintf(&sb, "Background Field = %d;\n", id)

	return sb.String(), nil
}
