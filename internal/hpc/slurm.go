// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package hpc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/voxaero/meshpilot/internal/model"
)

type slurmScheduler struct{}

func (slurmScheduler) Type() model.SchedulerType { return model.SchedulerSlurm }

var slurmSubmitRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// slurmStates maps squeue/sacct state names to normalized statuses.
var slurmStates = map[string]model.JobStatus{
	"PENDING":       model.JobPending,
	"CONFIGURING":   model.JobPending,
	"SUSPENDED":     model.JobPending,
	"RUNNING":       model.JobRunning,
	"COMPLETING":    model.JobRunning,
	"COMPLETED":     model.JobCompleted,
	"FAILED":        model.JobFailed,
	"TIMEOUT":       model.JobFailed,
	"OUT_OF_MEMORY": model.JobFailed,
	"NODE_FAIL":     model.JobFailed,
	"CANCELLED":     model.JobCancelled,
}

func slurmState(s string) model.JobStatus {
	// sacct reports cancellations as "CANCELLED by <uid>".
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return model.JobUnknown
	}
	if st, ok := slurmStates[fields[0]]; ok {
		return st
	}
	return model.JobUnknown
}

func (slurmScheduler) Directives(req JobRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#SBATCH --job-name=%s\n", req.Name)
	fmt.Fprintf(&sb, "#SBATCH --output=%s-%%j.out\n", req.Name)
	fmt.Fprintf(&sb, "#SBATCH --error=%s-%%j.err\n", req.Name)
	fmt.Fprintf(&sb, "#SBATCH --nodes=%d\n", req.Nodes)
	fmt.Fprintf(&sb, "#SBATCH --ntasks-per-node=%d\n", req.CoresPerNode)
	fmt.Fprintf(&sb, "#SBATCH --time=%s\n", req.Walltime)
	if req.Memory != "" {
		fmt.Fprintf(&sb, "#SBATCH --mem=%s\n", req.Memory)
	}
	if req.Queue != "" {
		fmt.Fprintf(&sb, "#SBATCH --partition=%s\n", req.Queue)
	}
	return sb.String()
}

func (slurmScheduler) SubmitCommand(dir, scriptPath string) string {
	return fmt.Sprintf("cd %s && sbatch %s", dir, scriptPath)
}

func (slurmScheduler) ParseSubmit(out string) (string, error) {
	m := slurmSubmitRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("sbatch output did not contain a job id: %s", strings.TrimSpace(out))
	}
	return m[1], nil
}

func (slurmScheduler) ListCommand() string {
	return `squeue -u $USER -h -o '%i|%j|%T|%V|%M'`
}

func (slurmScheduler) ParseList(out string) []JobInfo {
	var jobs []JobInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		jobs = append(jobs, JobInfo{
			ID:         parts[0],
			Name:       parts[1],
			Status:     slurmState(parts[2]),
			SubmitTime: parts[3],
			Runtime:    parts[4],
		})
	}
	return jobs
}

func (slurmScheduler) StatusCommand(jobID string) string {
	return fmt.Sprintf(`squeue -h -j %s -o '%%T|%%M'`, jobID)
}

func (slurmScheduler) ParseStatus(out, jobID string) (model.JobStatus, string) {
	line := strings.TrimSpace(out)
	if line == "" {
		// Job has left the queue; the caller should fall back to sacct.
		return model.JobUnknown, ""
	}
	parts := strings.Split(strings.Split(line, "\n")[0], "|")
	status := slurmState(parts[0])
	runtime := ""
	if len(parts) > 1 {
		runtime = parts[1]
	}
	return status, runtime
}

func (slurmScheduler) FinishedStatusCommand(jobID string) string {
	return fmt.Sprintf("sacct -j %s -o State,Elapsed -n -P | head -1", jobID)
}

func (slurmScheduler) CancelCommand(jobID string) string {
	return "scancel " + jobID
}
