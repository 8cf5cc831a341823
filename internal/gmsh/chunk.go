// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/voxaero/meshpilot/internal/logging"
	"github.com/voxaero/meshpilot/internal/meshio"
)

// chunkTemplate is the per-chunk variant of the geo script. After the
// farfield box and boolean subtraction it intersects the fluid domain with
// the chunk sub-box. Surfaces on the farfield box are tagged "outlet",
// surfaces on the chunk cut planes get no physical tag so gmsh drops them
// from the output, and everything else is "intake_walls".
var chunkTemplate = template.Must(template.New("chunk").Parse(`// generated by meshpilot - do not edit
SetFactory("OpenCASCADE");

Geometry.OCCFixDegenerated = 1;
Geometry.OCCFixSmallEdges = 1;
Geometry.OCCFixSmallFaces = 1;
Geometry.OCCSewFaces = 1;
Geometry.OCCMakeSolids = 1;
Geometry.Tolerance = 1e-2;
Geometry.ToleranceBoolean = 1e-2;

General.NumThreads = {{.Threads}};

Mesh.CharacteristicLengthMin = {{.SizeMin}};
Mesh.CharacteristicLengthMax = {{.SizeMax}};
Mesh.Algorithm = {{.Algorithm2D}};
Mesh.Algorithm3D = {{.Algorithm3D}};
Mesh.Optimize = 1;
Mesh.OptimizeNetgen = {{.OptimizeNetgen}};
Mesh.RecombineAll = 0;
Mesh.Binary = 0;

v() = ShapeFromFile("{{.InputSTEP}}");

bb() = BoundingBox Volume{v()};
xmin = bb(0); ymin = bb(1); zmin = bb(2);
xmax = bb(3); ymax = bb(4); zmax = bb(5);

maxdim = Fmax(Fmax(xmax - xmin, ymax - ymin), zmax - zmin);
cx = (xmin + xmax) / 2;
cy = (ymin + ymax) / 2;
cz = (zmin + zmax) / 2;
d = maxdim * {{.DomainScale}};

box = newv;
Box(box) = {cx - d/2, cy - d/2, cz - d/2, d, d, d};

fluid() = BooleanDifference{ Volume{box}; Delete; }{ Volume{v()}; Delete; };

// Chunk {{.I}},{{.J}},{{.K}} of {{.NX}}x{{.NY}}x{{.NZ}}.
cx0 = cx - d/2 + d * {{.I}} / {{.NX}};
cy0 = cy - d/2 + d * {{.J}} / {{.NY}};
cz0 = cz - d/2 + d * {{.K}} / {{.NZ}};
chunk = newv;
Box(chunk) = {cx0, cy0, cz0, d / {{.NX}}, d / {{.NY}}, d / {{.NZ}}};

part() = BooleanIntersection{ Volume{fluid()}; Delete; }{ Volume{chunk}; Delete; };

walls() = Abs(Boundary{ Volume{part()}; });

eps = maxdim * 1e-6;
intake() = {};
farfield() = {};
For i In {0 : #walls()-1}
  s = walls(i);
  sb() = BoundingBox Surface{s};
  onbox = 0;
  oncut = 0;
  If (Fabs(sb(0) - (cx - d/2)) < eps || Fabs(sb(3) - (cx + d/2)) < eps)
    onbox = 1;
  EndIf
  If (Fabs(sb(1) - (cy - d/2)) < eps || Fabs(sb(4) - (cy + d/2)) < eps)
    onbox = 1;
  EndIf
  If (Fabs(sb(2) - (cz - d/2)) < eps || Fabs(sb(5) - (cz + d/2)) < eps)
    onbox = 1;
  EndIf
  If (!onbox)
    If (Fabs(sb(0) - cx0) < eps || Fabs(sb(3) - (cx0 + d / {{.NX}})) < eps)
      oncut = 1;
    EndIf
    If (Fabs(sb(1) - cy0) < eps || Fabs(sb(4) - (cy0 + d / {{.NY}})) < eps)
      oncut = 1;
    EndIf
    If (Fabs(sb(2) - cz0) < eps || Fabs(sb(5) - (cz0 + d / {{.NZ}})) < eps)
      oncut = 1;
    EndIf
  EndIf
  If (onbox)
    farfield() += {s};
  EndIf
  If (!onbox && !oncut)
    intake() += {s};
  EndIf
EndFor

Physical Surface("intake_walls") = {intake()};
Physical Surface("outlet") = {farfield()};
Physical Volume("fluid_volume") = {part()};
`))

// chunkParams extends the base script parameters with the chunk index.
type chunkParams struct {
	scriptParams
	I, J, K    int
	NX, NY, NZ int
}

// RenderChunkScript produces the .geo script for one chunk of a div[0] x
// div[1] x div[2] decomposition.
func RenderChunkScript(stepFile string, o Options, div [3]int, i, j, k int) (string, error) {
	o = o.normalize()
	p := chunkParams{
		scriptParams: scriptParams{
			InputSTEP:   strings.ReplaceAll(stepFile, `\`, "/"),
			Threads:     o.Threads,
			SizeMin:     o.Size / 2,
			SizeMax:     o.Size,
			Algorithm2D: o.Algorithm2D,
			Algorithm3D: o.Algorithm3D,
			DomainScale: o.DomainScale,
		},
		I: i, J: j, K: k,
		NX: div[0], NY: div[1], NZ: div[2],
	}
	if o.OptimizeNetgen {
		p.OptimizeNetgen = 1
	}

	var sb strings.Builder
	if err := chunkTemplate.Execute(&sb, p); err != nil {
		return "", fmt.Errorf("failed to render chunk script: %w", err)
	}
	return sb.String(), nil
}

// MergeReport summarizes a chunk merge.
type MergeReport struct {
	Chunks       int
	FailedChunks []string
	InputNodes   int
	WeldedNodes  int
	OutputNodes  int
	Elements     int
}

// ChunkResult is the outcome of a chunked meshing operation.
type ChunkResult struct {
	OutputPath string
	Report     MergeReport
	Stats      meshio.Statistics
}

// ChunkedMesher meshes a geometry as independent sub-domain chunks in
// parallel and merges the pieces. Useful when a single gmsh run on the full
// domain exhausts memory.
type ChunkedMesher struct {
	Runner  Runner
	Workers int // concurrent gmsh processes, default 2
	WeldTol float64
}

// NewChunkedMesher returns a ChunkedMesher backed by the gmsh binary at
// binPath.
func NewChunkedMesher(binPath string, workers int) *ChunkedMesher {
	return &ChunkedMesher{Runner: &ExecRunner{Binary: binPath}, Workers: workers}
}

// Mesh splits the farfield domain into div[0]*div[1]*div[2] chunks, meshes
// each through the fallback ladder with at most Workers gmsh processes at a
// time, and welds the pieces into one mesh at outputPath. Individual chunks
// may fail (a cut box entirely inside the solid has no fluid volume); the
// operation fails only when no chunk produces a mesh.
func (c *ChunkedMesher) Mesh(ctx context.Context, stepFile, outputPath string, opts Options, div [3]int) (*ChunkResult, error) {
	for i, n := range div {
		if n < 1 {
			return nil, fmt.Errorf("invalid chunk divisions %v: axis %d must be >= 1", div, i)
		}
	}

	workers := c.Workers
	if workers < 1 {
		workers = 2
	}

	dir, err := os.MkdirTemp("", "meshpilot-chunks-")
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk dir: %w", err)
	}
	defer os.RemoveAll(dir)

	type task struct {
		i, j, k int
	}
	var tasks []task
	for k := 0; k < div[2]; k++ {
		for j := 0; j < div[1]; j++ {
			for i := 0; i < div[0]; i++ {
				tasks = append(tasks, task{i, j, k})
			}
		}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		meshes []*meshio.Mesh
		failed []string
	)
	sem := make(chan struct{}, workers)

	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name := fmt.Sprintf("chunk_%d_%d_%d", t.i, t.j, t.k)
			out := filepath.Join(dir, name+".msh")
			msh, err := c.meshChunk(ctx, stepFile, out, opts, div, t.i, t.j, t.k)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Errorf("gmsh: %s failed: %v", name, err)
				failed = append(failed, name)
				return
			}
			meshes = append(meshes, msh)
		}(t)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("all %d chunks failed to mesh", len(tasks))
	}

	tol := c.WeldTol
	if tol <= 0 {
		tol = opts.normalize().Size * 1e-4
	}
	merged, report := MergeMeshes(meshes, tol)
	report.Chunks = len(tasks)
	report.FailedChunks = failed

	if err := meshio.WriteGmsh22(merged, outputPath); err != nil {
		return nil, fmt.Errorf("failed to write merged mesh: %w", err)
	}

	logging.Infof("gmsh: merged %d/%d chunks, %d nodes welded", len(meshes), len(tasks), report.WeldedNodes)
	return &ChunkResult{OutputPath: outputPath, Report: report, Stats: merged.Stats()}, nil
}

// meshChunk runs the fallback ladder for one chunk.
func (c *ChunkedMesher) meshChunk(ctx context.Context, stepFile, out string, opts Options, div [3]int, i, j, k int) (*meshio.Mesh, error) {
	var lastErr error
	for _, rung := range opts.Ladder() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		script, err := RenderChunkScript(stepFile, rung, div, i, j, k)
		if err != nil {
			return nil, err
		}
		if err := c.Runner.Run(ctx, script, out, rung.Threads); err != nil {
			lastErr = err
			continue
		}
		msh, err := meshio.ReadGmsh22(out)
		if err != nil {
			lastErr = err
			continue
		}
		if msh.VolumeElements() == 0 {
			lastErr = fmt.Errorf("no volume elements")
			continue
		}
		return msh, nil
	}
	return nil, lastErr
}

// MergeMeshes welds a set of meshes into one. Nodes are deduplicated by
// quantizing coordinates to tol, so conforming chunk interfaces collapse to
// shared nodes. Physical groups are unified by name.
func MergeMeshes(meshes []*meshio.Mesh, tol float64) (*meshio.Mesh, MergeReport) {
	if tol <= 0 {
		tol = 1e-8
	}

	merged := meshio.NewMesh()
	report := MergeReport{}

	type key [3]int64
	quant := func(p [3]float64) key {
		return key{
			int64(math.Round(p[0] / tol)),
			int64(math.Round(p[1] / tol)),
			int64(math.Round(p[2] / tol)),
		}
	}

	nodeIndex := make(map[key]int)
	groupTags := make(map[string]int)

	for _, m := range meshes {
		remapNode := make([]int, len(m.Nodes))
		for i, p := range m.Nodes {
			q := quant(p)
			if idx, ok := nodeIndex[q]; ok {
				remapNode[i] = idx
				report.WeldedNodes++
				continue
			}
			idx := len(merged.Nodes)
			merged.Nodes = append(merged.Nodes, p)
			nodeIndex[q] = idx
			remapNode[i] = idx
		}
		report.InputNodes += len(m.Nodes)

		remapTag := make(map[int]int)
		for _, g := range m.Groups {
			tag, ok := groupTags[g.Name]
			if !ok {
				tag = len(groupTags) + 1
				groupTags[g.Name] = tag
				merged.Groups = append(merged.Groups, meshio.PhysicalGroup{
					Dimension: g.Dimension, Tag: tag, Name: g.Name,
				})
			}
			remapTag[g.Tag] = tag
		}

		for _, e := range m.Elements {
			nodes := make([]int, len(e.Nodes))
			for i, n := range e.Nodes {
				nodes[i] = remapNode[n]
			}
			tag := e.Tag
			if t, ok := remapTag[tag]; ok {
				tag = t
			}
			merged.Elements = append(merged.Elements, meshio.Element{Type: e.Type, Nodes: nodes, Tag: tag})
		}
	}

	report.OutputNodes = len(merged.Nodes)
	report.Elements = len(merged.Elements)
	return merged, report
}
