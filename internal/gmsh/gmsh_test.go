// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/voxaero/meshpilot/internal/meshio"
)

// fakeRunner fails a configurable number of attempts before writing a
// small valid mesh, so the ladder logic can be exercised without gmsh.
type fakeRunner struct {
	mu       sync.Mutex
	failures int
	calls    int
	scripts  []string
}

func (f *fakeRunner) Run(ctx context.Context, script, outputPath string, threads int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scripts = append(f.scripts, script)
	if f.calls <= f.failures {
		return fmt.Errorf("simulated gmsh failure %d", f.calls)
	}
	m := StructuredBoxMesh(1, 1, 1, 2, 2, 2)
	return meshio.WriteGmsh22(m, outputPath)
}

func TestLadderOrder(t *testing.T) {
	ladder := DefaultOptions().Ladder()
	if len(ladder) != 5 {
		t.Fatalf("expected 5 rungs, got %d", len(ladder))
	}
	if ladder[0].Algorithm2D != Algo2DFrontalDelaunay {
		t.Errorf("rung 1: expected Frontal-Delaunay, got %d", ladder[0].Algorithm2D)
	}
	if ladder[1].Algorithm2D != Algo2DDelaunay {
		t.Errorf("rung 2: expected Delaunay, got %d", ladder[1].Algorithm2D)
	}
	if ladder[2].Algorithm2D != Algo2DMeshAdapt {
		t.Errorf("rung 3: expected MeshAdapt, got %d", ladder[2].Algorithm2D)
	}
	if ladder[3].OptimizeNetgen {
		t.Errorf("rung 4: expected Netgen optimizer off")
	}
	final := ladder[len(ladder)-1]
	if final.Size != 2.0 {
		t.Errorf("final rung: expected coarsened size 2.0, got %g", final.Size)
	}
	if final.BoundaryLayers {
		t.Errorf("final rung: expected boundary layers off")
	}
}

func TestLadderDeduplicates(t *testing.T) {
	o := DefaultOptions()
	o.Algorithm2D = Algo2DMeshAdapt
	o.Algorithm3D = Algo3DDelaunay
	o.OptimizeNetgen = false
	ladder := o.Ladder()
	for i, a := range ladder {
		for j, b := range ladder[i+1:] {
			if a == b {
				t.Fatalf("rungs %d and %d are identical", i, i+1+j)
			}
		}
	}
}

func TestRenderScript(t *testing.T) {
	script, err := RenderScript(`C:\models\intake.step`, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`ShapeFromFile("C:/models/intake.step")`,
		"SetFactory(\"OpenCASCADE\")",
		"Mesh.Algorithm = 6",
		"Mesh.Algorithm3D = 1",
		`Physical Surface("intake_walls")`,
		`Physical Surface("outlet")`,
		`Physical Volume("fluid_volume")`,
		"Field[3] = BoundaryLayer",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestRenderScriptNoBoundaryLayers(t *testing.T) {
	o := DefaultOptions()
	o.BoundaryLayers = false
	script, err := RenderScript("intake.step", o)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(script, "BoundaryLayer") {
		t.Error("script should not contain boundary layer fields")
	}
}

func TestMeshFirstAttemptSucceeds(t *testing.T) {
	r := &fakeRunner{}
	m := &Mesher{Runner: r}
	out := filepath.Join(t.TempDir(), "out.msh")

	res, err := m.Mesh(context.Background(), "intake.step", out, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if res.Degraded {
		t.Error("mesh should not be degraded")
	}
	if res.Stats.NumElements == 0 {
		t.Error("expected nonzero element count")
	}
}

func TestMeshFallsThroughLadder(t *testing.T) {
	r := &fakeRunner{failures: 2}
	m := &Mesher{Runner: r}
	out := filepath.Join(t.TempDir(), "out.msh")

	res, err := m.Mesh(context.Background(), "intake.step", out, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
	if res.Degraded {
		t.Error("mesh should not be degraded")
	}
}

func TestMeshEmergencyFallback(t *testing.T) {
	r := &fakeRunner{failures: 100}
	m := &Mesher{Runner: r}
	out := filepath.Join(t.TempDir(), "out.msh")

	res, err := m.Mesh(context.Background(), "intake.step", out, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Degraded {
		t.Error("expected degraded result from emergency mesher")
	}

	msh, err := meshio.ReadGmsh22(out)
	if err != nil {
		t.Fatal(err)
	}
	if msh.VolumeElements() == 0 {
		t.Error("emergency mesh has no volume elements")
	}
}

func TestMeshCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &Mesher{Runner: &fakeRunner{}}
	if _, err := m.Mesh(ctx, "intake.step", "out.msh", DefaultOptions()); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestStructuredBoxMesh(t *testing.T) {
	m := StructuredBoxMesh(2, 1, 1, 4, 2, 2)
	wantNodes := 5 * 3 * 3
	if len(m.Nodes) != wantNodes {
		t.Errorf("expected %d nodes, got %d", wantNodes, len(m.Nodes))
	}
	counts := m.CountByType()
	if counts[meshio.Tet] != 4*2*2*6 {
		t.Errorf("expected %d tets, got %d", 4*2*2*6, counts[meshio.Tet])
	}
	// Every cell face on the box boundary contributes two triangles.
	wantTris := 2 * (2*4*2 + 2*4*2 + 2*2*2)
	if counts[meshio.Triangle] != wantTris {
		t.Errorf("expected %d boundary triangles, got %d", wantTris, counts[meshio.Triangle])
	}

	q := m.Quality()
	if q.NumDegenerate != 0 {
		t.Errorf("structured mesh has %d degenerate tets", q.NumDegenerate)
	}
	if q.Min <= 0 {
		t.Errorf("expected positive minimum quality, got %g", q.Min)
	}
}

func TestRegionValidate(t *testing.T) {
	cases := []struct {
		name   string
		region Region
		ok     bool
	}{
		{"valid box", Region{Shape: RegionBox, Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 1, 1}, Size: 0.1}, true},
		{"inverted box", Region{Shape: RegionBox, Min: [3]float64{1, 0, 0}, Max: [3]float64{0, 1, 1}, Size: 0.1}, false},
		{"valid sphere", Region{Shape: RegionSphere, Radius: 2, Size: 0.1}, true},
		{"zero radius", Region{Shape: RegionSphere, Size: 0.1}, false},
		{"valid surface", Region{Shape: RegionSurface, Dist: 1, Size: 0.1}, true},
		{"zero size", Region{Shape: RegionBox, Max: [3]float64{1, 1, 1}}, false},
		{"unknown shape", Region{Shape: "torus", Size: 0.1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.region.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRenderRefinedScript(t *testing.T) {
	regions := []Region{
		{Shape: RegionBox, Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 1, 1}, Size: 0.05},
		{Shape: RegionSphere, Center: [3]float64{5, 0, 0}, Radius: 2, Size: 0.1},
	}
	script, err := RenderRefinedScript("intake.step", DefaultOptions(), regions)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Field[10] = Box", "Field[11] = Ball", "= Min;", "Background Field ="} {
		if !strings.Contains(script, want) {
			t.Errorf("refined script missing %q", want)
		}
	}
}

func TestMergeMeshesWeldsInterface(t *testing.T) {
	a := StructuredBoxMesh(1, 1, 1, 2, 2, 2)
	b := StructuredBoxMesh(1, 1, 1, 2, 2, 2)
	// Shift b so its x=0 face coincides with a's x=1 face.
	for i := range b.Nodes {
		b.Nodes[i][0] += 1.0
	}

	merged, report := MergeMeshes([]*meshio.Mesh{a, b}, 1e-6)

	// The shared 3x3 node plane is welded once.
	wantNodes := 2*27 - 9
	if len(merged.Nodes) != wantNodes {
		t.Errorf("expected %d merged nodes, got %d", wantNodes, len(merged.Nodes))
	}
	if report.WeldedNodes != 9 {
		t.Errorf("expected 9 welded nodes, got %d", report.WeldedNodes)
	}
	if report.InputNodes != 54 {
		t.Errorf("expected 54 input nodes, got %d", report.InputNodes)
	}

	// Groups with the same name collapse to one entry.
	names := make(map[string]int)
	for _, g := range merged.Groups {
		names[g.Name]++
	}
	for name, n := range names {
		if n != 1 {
			t.Errorf("group %q appears %d times", name, n)
		}
	}
}

func TestChunkedMesher(t *testing.T) {
	r := &fakeRunner{}
	c := &ChunkedMesher{Runner: r, Workers: 2}
	out := filepath.Join(t.TempDir(), "merged.msh")

	res, err := c.Mesh(context.Background(), "intake.step", out, DefaultOptions(), [3]int{2, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", res.Report.Chunks)
	}
	if len(res.Report.FailedChunks) != 0 {
		t.Errorf("unexpected failed chunks: %v", res.Report.FailedChunks)
	}
	if _, err := meshio.ReadGmsh22(out); err != nil {
		t.Fatalf("merged mesh unreadable: %v", err)
	}
}

func TestChunkedMesherInvalidDivisions(t *testing.T) {
	c := &ChunkedMesher{Runner: &fakeRunner{}}
	if _, err := c.Mesh(context.Background(), "intake.step", "out.msh", DefaultOptions(), [3]int{0, 1, 1}); err == nil {
		t.Fatal("expected error for zero divisions")
	}
}
