// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package meshio reads, writes and inspects volume meshes in the Gmsh MSH
// (v2.2 ASCII) and SU2 formats. It carries only what the preprocessing
// pipeline needs: nodes, elements, physical groups and quality statistics.
package meshio

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// ElementType enumerates the element shapes the pipeline handles.
type ElementType int

const (
	Point ElementType = iota
	Line
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

var elementNames = [...]string{"point", "line", "triangle", "quad", "tet", "hex", "prism", "pyramid"}

func (e ElementType) String() string {
	if e < 0 || int(e) >= len(elementNames) {
		return fmt.Sprintf("element(%d)", int(e))
	}
	return elementNames[e]
}

// NumNodes returns the node count for the element type.
func (e ElementType) NumNodes() int {
	switch e {
	case Point:
		return 1
	case Line:
		return 2
	case Triangle:
		return 3
	case Quad:
		return 4
	case Tet:
		return 4
	case Hex:
		return 8
	case Prism:
		return 6
	case Pyramid:
		return 5
	}
	return 0
}

// Dimension returns the topological dimension of the element type.
func (e ElementType) Dimension() int {
	switch e {
	case Point:
		return 0
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	default:
		return 3
	}
}

// Element is a single mesh element with its connectivity and physical tag.
type Element struct {
	Type  ElementType
	Nodes []int // indices into Mesh.Nodes
	Tag   int   // physical group tag, 0 if untagged
}

// PhysicalGroup names a tagged region of the mesh (a boundary marker or a
// volume zone).
type PhysicalGroup struct {
	Dimension int
	Tag       int
	Name      string
}

// Mesh is the in-memory mesh model shared by all readers and writers.
// Node coordinates are flat [x y z] triplets; element connectivity is
// zero-based into the node slice.
type Mesh struct {
	FormatVersion string
	Nodes         [][3]float64
	Elements      []Element
	Groups        []PhysicalGroup
}

// NewMesh returns an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{FormatVersion: "2.2"}
}

// GroupByTag returns the physical group with the given dimension and tag.
func (m *Mesh) GroupByTag(dim, tag int) *PhysicalGroup {
	for i := range m.Groups {
		if m.Groups[i].Dimension == dim && m.Groups[i].Tag == tag {
			return &m.Groups[i]
		}
	}
	return nil
}

// CountByType returns the element count per element type.
func (m *Mesh) CountByType() map[ElementType]int {
	counts := make(map[ElementType]int)
	for _, e := range m.Elements {
		counts[e.Type]++
	}
	return counts
}

// VolumeElements returns the number of 3D elements in the mesh.
func (m *Mesh) VolumeElements() int {
	n := 0
	for _, e := range m.Elements {
		if e.Type.Dimension() == 3 {
			n++
		}
	}
	return n
}

// BoundingBox returns min and max corners of the node cloud.
func (m *Mesh) BoundingBox() (min, max [3]float64) {
	if len(m.Nodes) == 0 {
		return
	}
	min = m.Nodes[0]
	max = m.Nodes[0]
	for _, n := range m.Nodes[1:] {
		for d := 0; d < 3; d++ {
			min[d] = math.Min(min[d], n[d])
			max[d] = math.Max(max[d], n[d])
		}
	}
	return
}

// Statistics is a summary of a mesh used by the validator, the CLI and the
// web control panel.
type Statistics struct {
	NumNodes    int                 `json:"num_nodes"`
	NumElements int                 `json:"num_elements"`
	NumGroups   int                 `json:"num_groups"`
	ByType      map[string]int      `json:"by_type"`
	BBoxMin     [3]float64          `json:"bbox_min"`
	BBoxMax     [3]float64          `json:"bbox_max"`
}

// Stats computes summary statistics for the mesh.
func (m *Mesh) Stats() Statistics {
	byType := make(map[string]int)
	for t, n := range m.CountByType() {
		byType[t.String()] = n
	}
	min, max := m.BoundingBox()
	return Statistics{
		NumNodes:    len(m.Nodes),
		NumElements: len(m.Elements),
		NumGroups:   len(m.Groups),
		ByType:      byType,
		BBoxMin:     min,
		BBoxMax:     max,
	}
}

// ReadMeshFile reads a mesh, dispatching on the file extension
// (.msh for Gmsh v2.2 ASCII, .su2 for SU2).
func ReadMeshFile(filename string) (*Mesh, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".msh":
		return ReadGmsh22(filename)
	case ".su2":
		return ReadSU2(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", filepath.Ext(filename))
	}
}

// WriteMeshFile writes a mesh, dispatching on the file extension.
func WriteMeshFile(m *Mesh, filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".msh":
		return WriteGmsh22(m, filename)
	case ".su2":
		return WriteSU2(m, filename)
	default:
		return fmt.Errorf("unsupported mesh format: %s", filepath.Ext(filename))
	}
}
