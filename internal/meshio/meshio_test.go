// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// singleTet returns a mesh holding one regular-ish tetrahedron with a tagged
// boundary triangle.
func singleTet() *Mesh {
	m := NewMesh()
	m.Nodes = [][3]float64{
		{0, 0, 0},
		{1, 0, 0},
		{0.5, math.Sqrt(3) / 2, 0},
		{0.5, math.Sqrt(3) / 6, math.Sqrt(2.0 / 3.0)},
	}
	m.Groups = []PhysicalGroup{
		{Dimension: 2, Tag: 1, Name: "intake_walls"},
		{Dimension: 3, Tag: 2, Name: "fluid_volume"},
	}
	m.Elements = []Element{
		{Type: Triangle, Nodes: []int{0, 1, 2}, Tag: 1},
		{Type: Tet, Nodes: []int{0, 1, 2, 3}, Tag: 2},
	}
	return m
}

const sampleMsh = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
2
2 1 "intake_walls"
3 2 "fluid_volume"
$EndPhysicalNames
$Nodes
4
1 0 0 0
2 1 0 0
3 0 1 0
4 0 0 1
$EndNodes
$Elements
2
1 2 2 1 1 1 2 3
2 4 2 2 2 1 2 3 4
$EndElements
`

func TestReadGmsh22(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tet.msh")
	if err := os.WriteFile(path, []byte(sampleMsh), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ReadGmsh22(path)
	if err != nil {
		t.Fatalf("ReadGmsh22: %v", err)
	}

	if len(m.Nodes) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(m.Nodes))
	}
	if len(m.Elements) != 2 {
		t.Errorf("expected 2 elements, got %d", len(m.Elements))
	}
	if len(m.Groups) != 2 {
		t.Errorf("expected 2 physical groups, got %d", len(m.Groups))
	}
	if g := m.GroupByTag(3, 2); g == nil || g.Name != "fluid_volume" {
		t.Errorf("fluid_volume group not found: %+v", g)
	}
	if m.Elements[1].Type != Tet {
		t.Errorf("expected tet element, got %s", m.Elements[1].Type)
	}
	if m.Elements[1].Tag != 2 {
		t.Errorf("expected physical tag 2, got %d", m.Elements[1].Tag)
	}
}

func TestGmsh22RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rt.msh")

	orig := singleTet()
	if err := WriteGmsh22(orig, path); err != nil {
		t.Fatalf("WriteGmsh22: %v", err)
	}

	read, err := ReadGmsh22(path)
	if err != nil {
		t.Fatalf("ReadGmsh22: %v", err)
	}

	if len(read.Nodes) != len(orig.Nodes) {
		t.Fatalf("node count mismatch: %d != %d", len(read.Nodes), len(orig.Nodes))
	}
	if len(read.Elements) != len(orig.Elements) {
		t.Fatalf("element count mismatch: %d != %d", len(read.Elements), len(orig.Elements))
	}
	for i, e := range read.Elements {
		if e.Type != orig.Elements[i].Type || e.Tag != orig.Elements[i].Tag {
			t.Errorf("element %d mismatch: %+v vs %+v", i, e, orig.Elements[i])
		}
	}
}

func TestSU2RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rt.su2")

	orig := singleTet()
	if err := WriteSU2(orig, path); err != nil {
		t.Fatalf("WriteSU2: %v", err)
	}

	read, err := ReadSU2(path)
	if err != nil {
		t.Fatalf("ReadSU2: %v", err)
	}

	if len(read.Nodes) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(read.Nodes))
	}
	if read.VolumeElements() != 1 {
		t.Errorf("expected 1 volume element, got %d", read.VolumeElements())
	}
	found := false
	for _, g := range read.Groups {
		if g.Name == "intake_walls" {
			found = true
		}
	}
	if !found {
		t.Errorf("intake_walls marker lost in round trip: %+v", read.Groups)
	}
}

func TestReadMeshFileDispatch(t *testing.T) {
	if _, err := ReadMeshFile("geometry.step"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestTetQuality(t *testing.T) {
	tests := []struct {
		name string
		p    [4][3]float64
		min  float64
		max  float64
	}{
		{
			// Regular tetrahedron has radius ratio 1.
			name: "regular",
			p: [4][3]float64{
				{0, 0, 0},
				{1, 0, 0},
				{0.5, math.Sqrt(3) / 2, 0},
				{0.5, math.Sqrt(3) / 6, math.Sqrt(2.0 / 3.0)},
			},
			min: 0.999, max: 1.0,
		},
		{
			// Flat sliver should score near zero.
			name: "sliver",
			p: [4][3]float64{
				{0, 0, 0},
				{1, 0, 0},
				{0, 1, 0},
				{0.3, 0.3, 1e-8},
			},
			min: 0, max: 0.01,
		},
		{
			// Degenerate (coplanar) scores exactly zero.
			name: "degenerate",
			p: [4][3]float64{
				{0, 0, 0},
				{1, 0, 0},
				{0, 1, 0},
				{1, 1, 0},
			},
			min: 0, max: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tetQuality(tt.p[0], tt.p[1], tt.p[2], tt.p[3])
			if q < tt.min || q > tt.max {
				t.Errorf("quality %f outside [%f, %f]", q, tt.min, tt.max)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	m := singleTet()
	rep, err := Validate(m, DefaultValidateOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !rep.Passed {
		t.Errorf("expected single-tet mesh to pass, issues: %v", rep.Issues)
	}
	if rep.Stats.NumNodes != 4 {
		t.Errorf("stats: expected 4 nodes, got %d", rep.Stats.NumNodes)
	}
}

func TestValidateEmptyMesh(t *testing.T) {
	rep, err := Validate(NewMesh(), DefaultValidateOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rep.Passed {
		t.Error("expected empty mesh to fail validation")
	}
}

func TestSolverCompatibility(t *testing.T) {
	m := singleTet()
	if err := CheckSolverCompatibility(m, "su2"); err != nil {
		t.Errorf("su2 compatibility: %v", err)
	}
	if err := CheckSolverCompatibility(m, "starccm"); err == nil {
		t.Error("expected unknown solver error")
	}

	surfOnly := NewMesh()
	surfOnly.Nodes = m.Nodes
	surfOnly.Elements = []Element{{Type: Triangle, Nodes: []int{0, 1, 2}, Tag: 1}}
	if err := CheckSolverCompatibility(surfOnly, "openfoam"); err == nil {
		t.Error("expected error for surface-only mesh")
	}
}
