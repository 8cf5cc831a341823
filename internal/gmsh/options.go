// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package gmsh drives the external gmsh binary to turn STEP geometry into
// CFD volume meshes. The meshing algorithms live inside gmsh; this package
// renders option scripts, runs the binary, and walks a fallback ladder when
// an attempt fails.
package gmsh

// Algorithm identifiers as understood by gmsh's Mesh.Algorithm and
// Mesh.Algorithm3D options.
const (
	Algo2DMeshAdapt       = 1
	Algo2DDelaunay        = 5
	Algo2DFrontalDelaunay = 6

	Algo3DDelaunay = 1
	Algo3DFrontal  = 4
	Algo3DHXT      = 10
)

// Options holds the tunable meshing parameters. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	Size           float64 // base characteristic length
	BoundaryLayers bool
	BLThickness    float64
	BLLayers       int
	BLRatio        float64
	DomainScale    float64 // farfield box size relative to geometry extent
	Algorithm2D    int
	Algorithm3D    int
	OptimizeNetgen bool
	Threads        int
	CoarsenFactor  float64 // applied to Size on the coarsening rung
}

// DefaultOptions mirrors the defaults used for intake geometries:
// Frontal-Delaunay surfaces, Delaunay volumes, a 2x farfield box and a
// five-layer boundary layer.
func DefaultOptions() Options {
	return Options{
		Size:           1.0,
		BoundaryLayers: true,
		BLThickness:    0.01,
		BLLayers:       5,
		BLRatio:        1.2,
		DomainScale:    2.0,
		Algorithm2D:    Algo2DFrontalDelaunay,
		Algorithm3D:    Algo3DDelaunay,
		OptimizeNetgen: true,
		Threads:        4,
		CoarsenFactor:  2.0,
	}
}

// normalize clamps out-of-range values the way the pipeline has always
// treated them: the farfield box never shrinks below 1.5x the geometry.
func (o Options) normalize() Options {
	if o.DomainScale < 1.5 {
		o.DomainScale = 1.5
	}
	if o.Size <= 0 {
		o.Size = 1.0
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.BLRatio <= 1 {
		o.BLRatio = 1.2
	}
	if o.CoarsenFactor <= 1 {
		o.CoarsenFactor = 2.0
	}
	return o
}

// Ladder expands the requested options into the ordered fallback attempts:
//
//  1. as requested
//  2. 2D Delaunay
//  3. 2D MeshAdapt
//  4. 3D Delaunay with the Netgen optimizer off
//  5. coarsened characteristic lengths, most reliable algorithms
//
// Rungs identical to an earlier rung are skipped, so a request that already
// asks for the most conservative settings produces a short ladder.
func (o Options) Ladder() []Options {
	base := o.normalize()
	candidates := []Options{base}

	r2 := base
	r2.Algorithm2D = Algo2DDelaunay
	candidates = append(candidates, r2)

	r3 := base
	r3.Algorithm2D = Algo2DMeshAdapt
	candidates = append(candidates, r3)

	r4 := base
	r4.Algorithm3D = Algo3DDelaunay
	r4.OptimizeNetgen = false
	candidates = append(candidates, r4)

	r5 := base
	r5.Algorithm2D = Algo2DMeshAdapt
	r5.Algorithm3D = Algo3DDelaunay
	r5.OptimizeNetgen = false
	r5.Size = base.Size * base.CoarsenFactor
	r5.BoundaryLayers = false
	candidates = append(candidates, r5)

	var ladder []Options
	for _, c := range candidates {
		dup := false
		for _, l := range ladder {
			if l == c {
				dup = true
				break
			}
		}
		if !dup {
			ladder = append(ladder, c)
		}
	}
	return ladder
}
