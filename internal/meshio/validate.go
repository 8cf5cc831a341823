// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import (
	"fmt"
	"strings"
)

// ValidateOptions configures mesh validation thresholds.
type ValidateOptions struct {
	MinQuality    float64 // elements below this quality are flagged
	MaxSkewness   float64 // reject meshes whose worst skew exceeds this
	RequireVolume bool    // require at least one 3D element
	Solver        string  // optional: "su2" or "openfoam" compatibility check
}

// DefaultValidateOptions mirrors the thresholds used in practice for CFD
// preprocessing.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MinQuality:    0.1,
		MaxSkewness:   0.95,
		RequireVolume: true,
	}
}

// ValidationReport is the result of validating a mesh.
type ValidationReport struct {
	Stats    Statistics    `json:"stats"`
	Quality  QualityReport `json:"quality"`
	Skewness float64       `json:"skewness"`
	Issues   []string      `json:"issues,omitempty"`
	Passed   bool          `json:"passed"`
}

// Validate checks the mesh against the given thresholds and returns a
// report. The returned error is non-nil only for malformed meshes; threshold
// failures are reported via Passed and Issues.
func Validate(m *Mesh, opts ValidateOptions) (*ValidationReport, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mesh")
	}

	rep := &ValidationReport{
		Stats:    m.Stats(),
		Quality:  m.Quality(),
		Skewness: m.Skewness(),
	}

	if len(m.Nodes) == 0 {
		rep.Issues = append(rep.Issues, "mesh has no nodes")
	}
	if len(m.Elements) == 0 {
		rep.Issues = append(rep.Issues, "mesh has no elements")
	}
	if opts.RequireVolume && m.VolumeElements() == 0 {
		rep.Issues = append(rep.Issues, "mesh has no volume elements")
	}

	for i, e := range m.Elements {
		for _, n := range e.Nodes {
			if n < 0 || n >= len(m.Nodes) {
				rep.Issues = append(rep.Issues, fmt.Sprintf("element %d references out-of-range node %d", i, n))
			}
		}
	}

	if rep.Quality.NumDegenerate > 0 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("%d degenerate elements", rep.Quality.NumDegenerate))
	}
	if opts.MinQuality > 0 && rep.Quality.NumMeasured > 0 && rep.Quality.Min < opts.MinQuality {
		rep.Issues = append(rep.Issues, fmt.Sprintf("minimum quality %.3f below threshold %.2f", rep.Quality.Min, opts.MinQuality))
	}
	if opts.MaxSkewness > 0 && rep.Skewness > opts.MaxSkewness {
		rep.Issues = append(rep.Issues, fmt.Sprintf("skewness %.3f exceeds limit %.2f", rep.Skewness, opts.MaxSkewness))
	}

	if opts.Solver != "" {
		if err := CheckSolverCompatibility(m, opts.Solver); err != nil {
			rep.Issues = append(rep.Issues, err.Error())
		}
	}

	rep.Passed = len(rep.Issues) == 0
	return rep, nil
}

// CheckSolverCompatibility verifies the mesh carries what the named solver
// needs: a volume region and named boundary markers.
func CheckSolverCompatibility(m *Mesh, solver string) error {
	switch strings.ToLower(solver) {
	case "su2", "openfoam":
		if m.VolumeElements() == 0 {
			return fmt.Errorf("solver %s requires a 3D mesh region", solver)
		}
		has2DGroup := false
		for _, g := range m.Groups {
			if g.Dimension == 2 {
				has2DGroup = true
				break
			}
		}
		if !has2DGroup {
			return fmt.Errorf("solver %s requires named boundary markers", solver)
		}
		return nil
	default:
		return fmt.Errorf("unknown solver: %s", solver)
	}
}
