// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/voxaero/meshpilot/internal/logging"
	"github.com/voxaero/meshpilot/internal/meshio"
)

// Runner executes one gmsh meshing attempt. It exists as an interface so
// the ladder logic can be tested without a gmsh binary.
type Runner interface {
	Run(ctx context.Context, script string, outputPath string, threads int) error
}

// ExecRunner shells out to the gmsh binary.
type ExecRunner struct {
	Binary string // path or name of the gmsh executable, default "gmsh"
}

// Run writes the script to a temp file and invokes gmsh in batch mode,
// producing MSH v2.2 ASCII output so the native reader can inspect it.
func (r *ExecRunner) Run(ctx context.Context, script string, outputPath string, threads int) error {
	bin := r.Binary
	if bin == "" {
		bin = "gmsh"
	}

	dir, err := os.MkdirTemp("", "meshpilot-gmsh-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	geoPath := filepath.Join(dir, "job.geo")
	if err := os.WriteFile(geoPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write geo script: %w", err)
	}

	args := []string{geoPath, "-3", "-format", "msh2", "-nt", strconv.Itoa(threads), "-o", outputPath}
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.Debugf("gmsh: running %s %s", bin, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gmsh failed: %w: %s", err, tail(out.String(), 20))
	}

	// gmsh can exit zero after writing nothing when the geometry is broken.
	if fi, err := os.Stat(outputPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("gmsh produced no output: %s", tail(out.String(), 20))
	}
	return nil
}

// tail returns the last n lines of s, for error reporting.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Result describes a completed meshing operation.
type Result struct {
	OutputPath string
	Attempts   int
	Degraded   bool // true when the emergency mesher produced the output
	Stats      meshio.Statistics
}

// Mesher generates meshes from STEP geometry with fallback. Regions, when
// set, add local refinement fields to every attempt.
type Mesher struct {
	Runner  Runner
	Regions []Region
}

// NewMesher returns a Mesher backed by the gmsh binary at binPath.
func NewMesher(binPath string) *Mesher {
	return &Mesher{Runner: &ExecRunner{Binary: binPath}}
}

// Mesh walks the option ladder until an attempt produces a readable mesh
// with volume elements. When every rung fails, the emergency box mesher
// produces a coarse degraded mesh so downstream stages have an input.
func (m *Mesher) Mesh(ctx context.Context, stepFile, outputPath string, opts Options) (*Result, error) {
	ladder := opts.Ladder()
	var lastErr error

	for i, rung := range ladder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logging.Infof("gmsh: attempt %d/%d (2D algo %d, 3D algo %d, size %g)",
			i+1, len(ladder), rung.Algorithm2D, rung.Algorithm3D, rung.Size)

		script, err := RenderRefinedScript(stepFile, rung, m.Regions)
		if err != nil {
			return nil, err
		}

		if err := m.Runner.Run(ctx, script, outputPath, rung.Threads); err != nil {
			lastErr = err
			logging.Errorf("gmsh: attempt %d failed: %v", i+1, err)
			continue
		}

		msh, err := meshio.ReadGmsh22(outputPath)
		if err != nil {
			lastErr = fmt.Errorf("attempt produced unreadable mesh: %w", err)
			logging.Errorf("gmsh: %v", lastErr)
			continue
		}
		if msh.VolumeElements() == 0 {
			lastErr = fmt.Errorf("attempt produced no volume elements")
			logging.Errorf("gmsh: %v", lastErr)
			continue
		}

		return &Result{OutputPath: outputPath, Attempts: i + 1, Stats: msh.Stats()}, nil
	}

	logging.Errorf("gmsh: all %d attempts failed (last: %v); generating emergency box mesh", len(ladder), lastErr)
	stats, err := EmergencyBoxMesh(outputPath, opts.normalize())
	if err != nil {
		return nil, fmt.Errorf("all mesh attempts failed (%v) and emergency mesh failed: %w", lastErr, err)
	}
	return &Result{OutputPath: outputPath, Attempts: len(ladder), Degraded: true, Stats: stats}, nil
}
