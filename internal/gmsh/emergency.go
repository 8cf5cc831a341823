// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"fmt"

	"github.com/voxaero/meshpilot/internal/meshio"
)

// Emergency box dimensions, matching the fallback domain the pipeline has
// always used when geometry import fails completely.
const (
	emergencyLx = 100.0
	emergencyLy = 50.0
	emergencyLz = 30.0
)

// EmergencyBoxMesh writes a coarse structured tet mesh of a box domain to
// outputPath. It needs no external binary and is the last resort when every
// gmsh attempt fails: downstream stages get a valid, clearly degraded mesh
// instead of nothing.
func EmergencyBoxMesh(outputPath string, opts Options) (meshio.Statistics, error) {
	m := StructuredBoxMesh(emergencyLx, emergencyLy, emergencyLz, divisions(emergencyLx, opts.Size), divisions(emergencyLy, opts.Size), divisions(emergencyLz, opts.Size))
	if err := meshio.WriteGmsh22(m, outputPath); err != nil {
		return meshio.Statistics{}, fmt.Errorf("failed to write emergency mesh: %w", err)
	}
	return m.Stats(), nil
}

// divisions picks a cell count along an axis of length l for the coarse
// emergency mesh, clamped so the fallback stays cheap.
func divisions(l, size float64) int {
	if size <= 0 {
		size = 1
	}
	n := int(l / (4 * size))
	if n < 2 {
		n = 2
	}
	if n > 12 {
		n = 12
	}
	return n
}

// StructuredBoxMesh builds a nx*ny*nz structured tetrahedral mesh of the box
// [0,lx]x[0,ly]x[0,lz]. Each cell is split into six positively oriented tets
// sharing the main diagonal. Boundary faces are collected into a single
// "outlet" marker; the volume is tagged "fluid_volume".
func StructuredBoxMesh(lx, ly, lz float64, nx, ny, nz int) *meshio.Mesh {
	m := meshio.NewMesh()
	m.Groups = []meshio.PhysicalGroup{
		{Dimension: 2, Tag: 1, Name: "outlet"},
		{Dimension: 3, Tag: 2, Name: "fluid_volume"},
	}

	// Grid nodes, x fastest.
	idx := func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.Nodes = append(m.Nodes, [3]float64{
					lx * float64(i) / float64(nx),
					ly * float64(j) / float64(ny),
					lz * float64(k) / float64(nz),
				})
			}
		}
	}

	// Six-tet decomposition of each cell along the c000-c111 diagonal.
	tets := [6][4][3]int{
		{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}},
		{{0, 0, 0}, {1, 1, 0}, {0, 1, 0}, {1, 1, 1}},
		{{0, 0, 0}, {0, 1, 0}, {0, 1, 1}, {1, 1, 1}},
		{{0, 0, 0}, {0, 1, 1}, {0, 0, 1}, {1, 1, 1}},
		{{0, 0, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}},
		{{0, 0, 0}, {1, 0, 1}, {1, 0, 0}, {1, 1, 1}},
	}

	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				for _, t := range tets {
					nodes := make([]int, 4)
					for v, off := range t {
						nodes[v] = idx(i+off[0], j+off[1], k+off[2])
					}
					m.Elements = append(m.Elements, meshio.Element{Type: meshio.Tet, Nodes: nodes, Tag: 2})
				}
			}
		}
	}

	// Boundary triangles: tet faces that appear exactly once.
	type faceKey [3]int
	faceCount := make(map[faceKey]int)
	sort3 := func(a, b, c int) faceKey {
		if a > b {
			a, b = b, a
		}
		if b > c {
			b, c = c, b
		}
		if a > b {
			a, b = b, a
		}
		return faceKey{a, b, c}
	}
	faces := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, e := range m.Elements {
		for _, f := range faces {
			faceCount[sort3(e.Nodes[f[0]], e.Nodes[f[1]], e.Nodes[f[2]])]++
		}
	}
	for _, e := range m.Elements {
		for _, f := range faces {
			a, b, c := e.Nodes[f[0]], e.Nodes[f[1]], e.Nodes[f[2]]
			if faceCount[sort3(a, b, c)] == 1 {
				m.Elements = append(m.Elements, meshio.Element{Type: meshio.Triangle, Nodes: []int{a, b, c}, Tag: 1})
			}
		}
	}

	return m
}
