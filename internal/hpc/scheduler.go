// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package hpc submits and tracks batch jobs on remote clusters over SSH.
// Scheduler differences (SLURM, PBS, LSF) are isolated behind the Scheduler
// interface; the Connector handles transport, file staging and result
// retrieval.
package hpc

import (
	"fmt"
	"strings"

	"github.com/voxaero/meshpilot/internal/model"
)

// JobRequest describes a batch job to submit.
type JobRequest struct {
	Name         string
	Nodes        int
	CoresPerNode int
	Walltime     string // HH:MM:SS
	Memory       string // e.g. "16G", empty for scheduler default
	Queue        string
	Modules      []string // environment modules to load
	Commands     []string // job body
}

// normalize fills in the defaults for unset request fields.
func (r JobRequest) normalize() JobRequest {
	if r.Name == "" {
		r.Name = "meshpilot_job"
	}
	if r.Nodes < 1 {
		r.Nodes = 1
	}
	if r.CoresPerNode < 1 {
		r.CoresPerNode = 4
	}
	if r.Walltime == "" {
		r.Walltime = "01:00:00"
	}
	return r
}

// JobInfo is one row of a scheduler queue listing.
type JobInfo struct {
	ID         string
	Name       string
	Status     model.JobStatus
	SubmitTime string
	Runtime    string
}

// Scheduler renders submission scripts and parses the output of one batch
// system's command line tools. Implementations are stateless.
type Scheduler interface {
	Type() model.SchedulerType

	// Directives returns the #DIRECTIVE header lines for a job script.
	Directives(req JobRequest) string

	// SubmitCommand returns the shell command that submits scriptPath
	// from inside dir.
	SubmitCommand(dir, scriptPath string) string

	// ParseSubmit extracts the scheduler job id from submit output.
	ParseSubmit(out string) (string, error)

	// ListCommand returns the command listing the calling user's jobs.
	ListCommand() string

	// ParseList parses ListCommand output.
	ParseList(out string) []JobInfo

	// StatusCommand returns the command querying one job.
	StatusCommand(jobID string) string

	// ParseStatus extracts the normalized status and runtime of jobID
	// from StatusCommand output.
	ParseStatus(out, jobID string) (model.JobStatus, string)

	// FinishedStatusCommand returns a follow-up query for jobs that have
	// left the active queue, or "" when the scheduler has none.
	FinishedStatusCommand(jobID string) string

	// CancelCommand returns the command cancelling jobID.
	CancelCommand(jobID string) string
}

// ForType returns the Scheduler implementation for t.
func ForType(t model.SchedulerType) (Scheduler, error) {
	switch t {
	case model.SchedulerSlurm:
		return slurmScheduler{}, nil
	case model.SchedulerPBS:
		return pbsScheduler{}, nil
	case model.SchedulerLSF:
		return lsfScheduler{}, nil
	default:
		return nil, fmt.Errorf("unsupported scheduler type %q", t)
	}
}

// DetectSchedulerType maps the output of "command -v sbatch qsub bsub" to a
// scheduler type.
func DetectSchedulerType(out string) (model.SchedulerType, error) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		switch {
		case strings.HasSuffix(line, "/sbatch"):
			return model.SchedulerSlurm, nil
		case strings.HasSuffix(line, "/qsub"):
			return model.SchedulerPBS, nil
		case strings.HasSuffix(line, "/bsub"):
			return model.SchedulerLSF, nil
		}
	}
	return "", fmt.Errorf("no batch scheduler found on remote host (looked for sbatch, qsub, bsub)")
}

// RenderJobScript builds the full submission script for req.
func RenderJobScript(s Scheduler, req JobRequest) string {
	req = req.normalize()

	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")
	sb.WriteString(s.Directives(req))
	sb.WriteString("\n")
	for _, m := range req.Modules {
		fmt.Fprintf(&sb, "module load %s\n", m)
	}
	if len(req.Modules) > 0 {
		sb.WriteString("\n")
	}
	for _, c := range req.Commands {
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return sb.String()
}
