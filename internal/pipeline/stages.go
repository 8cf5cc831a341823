// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/gmsh"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/meshio"
	"github.com/voxaero/meshpilot/internal/nx"
)

// Well-known artifact keys.
const (
	artifactGeometry  = "geometry"
	artifactMesh      = "mesh"
	artifactRemoteDir = "remote_dir"
	artifactJobID     = "job_id"
)

// resolve returns the explicit path when set, otherwise the named artifact
// from an earlier stage.
func resolve(st *State, explicit, artifactKey string) (string, error) {
	if explicit != "" {
		return st.path(explicit), nil
	}
	if p := st.Artifact(artifactKey); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no %s available: set it in params or produce it in an earlier stage", artifactKey)
}

// path anchors a relative path at the pipeline workdir.
func (s *State) path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.WorkDir == "" {
		return p
	}
	return filepath.Join(s.WorkDir, p)
}

type nxExportParams struct {
	Part        string             `yaml:"part"`
	Step        string             `yaml:"step"`
	Executable  string             `yaml:"executable"`
	Expressions map[string]float64 `yaml:"expressions"`
	Unit        string             `yaml:"unit"`
}

func stageNXExport(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p nxExportParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	if p.Part == "" {
		return "", "", fmt.Errorf("nx-export needs a part file")
	}
	step := st.path(p.Step)
	if step == "" {
		step = strings.TrimSuffix(st.path(p.Part), filepath.Ext(p.Part)) + ".step"
	}

	var exprs []nx.Expression
	for name, value := range p.Expressions {
		exprs = append(exprs, nx.Number(name, value, p.Unit))
	}

	j, err := nx.NewJournal(p.Executable)
	if err != nil {
		return "", "", err
	}
	if err := j.ExportStep(ctx, st.path(p.Part), exprs, step); err != nil {
		return "", "", err
	}
	st.SetArtifact(artifactGeometry, step)
	return step, fmt.Sprintf("exported %d expressions to %s", len(exprs), filepath.Base(step)), nil
}

type meshParams struct {
	Geometry    string  `yaml:"geometry"`
	Output      string  `yaml:"output"`
	Binary      string  `yaml:"binary"`
	Size        float64 `yaml:"size"`
	DomainScale float64 `yaml:"domain_scale"`
	Threads     int     `yaml:"threads"`
	NoBoundary  bool    `yaml:"no_boundary_layers"`
}

func stageMesh(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p meshParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	geo, err := resolve(st, p.Geometry, artifactGeometry)
	if err != nil {
		return "", "", err
	}
	out := st.path(p.Output)
	if out == "" {
		out = strings.TrimSuffix(geo, filepath.Ext(geo)) + ".msh"
	}

	opts := gmsh.DefaultOptions()
	if p.Size > 0 {
		opts.Size = p.Size
	}
	if p.DomainScale > 0 {
		opts.DomainScale = p.DomainScale
	}
	if p.Threads > 0 {
		opts.Threads = p.Threads
	}
	if p.NoBoundary {
		opts.BoundaryLayers = false
	}

	res, err := gmsh.NewMesher(p.Binary).Mesh(ctx, geo, out, opts)
	if err != nil {
		return "", "", err
	}
	st.SetArtifact(artifactMesh, out)
	msg := fmt.Sprintf("%d nodes, %d elements in %d attempts", res.Stats.NumNodes, res.Stats.NumElements, res.Attempts)
	if res.Degraded {
		msg += " (degraded emergency mesh)"
	}
	return out, msg, nil
}

type validateParams struct {
	Input      string  `yaml:"input"`
	MinQuality float64 `yaml:"min_quality"`
	Solver     string  `yaml:"solver"`
}

func stageValidate(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p validateParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	in, err := resolve(st, p.Input, artifactMesh)
	if err != nil {
		return "", "", err
	}

	m, err := meshio.ReadMeshFile(in)
	if err != nil {
		return "", "", err
	}
	opts := meshio.DefaultValidateOptions()
	if p.MinQuality > 0 {
		opts.MinQuality = p.MinQuality
	}
	if p.Solver != "" {
		opts.Solver = p.Solver
	}
	report, err := meshio.Validate(m, opts)
	if err != nil {
		return "", "", err
	}
	if !report.Passed {
		return in, "", fmt.Errorf("mesh validation failed: %s", strings.Join(report.Issues, "; "))
	}
	return in, fmt.Sprintf("quality min %.3f mean %.3f", report.Quality.Min, report.Quality.Mean), nil
}

type convertParams struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

func stageConvert(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p convertParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	in, err := resolve(st, p.Input, artifactMesh)
	if err != nil {
		return "", "", err
	}
	out := st.path(p.Output)
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".su2"
	}

	m, err := meshio.ReadMeshFile(in)
	if err != nil {
		return "", "", err
	}
	if err := meshio.WriteMeshFile(m, out); err != nil {
		return "", "", err
	}
	st.SetArtifact(artifactMesh, out)
	return out, fmt.Sprintf("converted to %s", filepath.Ext(out)), nil
}

type submitParams struct {
	Profile      string   `yaml:"profile"`
	Name         string   `yaml:"name"`
	Nodes        int      `yaml:"nodes"`
	CoresPerNode int      `yaml:"cores_per_node"`
	Walltime     string   `yaml:"walltime"`
	Memory       string   `yaml:"memory"`
	Queue        string   `yaml:"queue"`
	Modules      []string `yaml:"modules"`
	Commands     []string `yaml:"commands"`
	Inputs       []string `yaml:"inputs"`
}

func stageSubmit(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p submitParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	if p.Profile == "" {
		return "", "", fmt.Errorf("submit needs a profile name")
	}
	profile, err := db.GetProfile(p.Profile)
	if err != nil {
		return "", "", fmt.Errorf("unknown profile %q: %w", p.Profile, err)
	}

	inputs := make([]string, 0, len(p.Inputs)+1)
	for _, f := range p.Inputs {
		inputs = append(inputs, st.path(f))
	}
	if mesh := st.Artifact(artifactMesh); mesh != "" {
		inputs = append(inputs, mesh)
	}

	conn, err := hpc.Connect(*profile, "")
	if err != nil {
		return "", "", err
	}
	defer conn.Close()

	req := hpc.JobRequest{
		Name:         p.Name,
		Nodes:        p.Nodes,
		CoresPerNode: p.CoresPerNode,
		Walltime:     p.Walltime,
		Memory:       p.Memory,
		Queue:        p.Queue,
		Modules:      p.Modules,
		Commands:     p.Commands,
	}
	if req.Queue == "" {
		req.Queue = profile.Queue
	}

	job, err := conn.Submit(ctx, req, inputs)
	if err != nil {
		return "", "", err
	}
	st.SetArtifact(artifactJobID, job.SchedulerID)
	st.SetArtifact(artifactRemoteDir, job.RemoteDir)
	return job.SchedulerID, fmt.Sprintf("submitted as %s in %s", job.SchedulerID, job.RemoteDir), nil
}

type fetchParams struct {
	Profile   string `yaml:"profile"`
	RemoteDir string `yaml:"remote_dir"`
	Output    string `yaml:"output"`
	Archive   bool   `yaml:"archive"`
}

func stageFetch(ctx context.Context, st *State, def StageDef) (string, string, error) {
	var p fetchParams
	if err := decodeParams(def.Params, &p); err != nil {
		return "", "", err
	}
	if p.Profile == "" {
		return "", "", fmt.Errorf("fetch needs a profile name")
	}
	remoteDir := p.RemoteDir
	if remoteDir == "" {
		remoteDir = st.Artifact(artifactRemoteDir)
	}
	if remoteDir == "" {
		return "", "", fmt.Errorf("no remote directory: set remote_dir or run a submit stage first")
	}

	profile, err := db.GetProfile(p.Profile)
	if err != nil {
		return "", "", fmt.Errorf("unknown profile %q: %w", p.Profile, err)
	}
	conn, err := hpc.Connect(*profile, "")
	if err != nil {
		return "", "", err
	}
	defer conn.Close()

	out := st.path(p.Output)
	if out == "" {
		out = "results"
	}

	if p.Archive {
		if !strings.HasSuffix(out, ".tar.zst") {
			out += ".tar.zst"
		}
		n, err := conn.FetchArchive(ctx, remoteDir, out)
		if err != nil {
			return "", "", err
		}
		return out, fmt.Sprintf("archived %d files", n), nil
	}

	n, err := conn.Fetch(ctx, remoteDir, out)
	if err != nil {
		return "", "", err
	}
	return out, fmt.Sprintf("fetched %d files", n), nil
}
