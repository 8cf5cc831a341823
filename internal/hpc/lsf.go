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

type lsfScheduler struct{}

func (lsfScheduler) Type() model.SchedulerType { return model.SchedulerLSF }

var lsfSubmitRe = regexp.MustCompile(`Job <(\d+)> is submitted`)

// lsfStates maps bjobs STAT values to normalized statuses.
var lsfStates = map[string]model.JobStatus{
	"PEND":  model.JobPending,
	"PSUSP": model.JobPending,
	"USUSP": model.JobPending,
	"SSUSP": model.JobPending,
	"WAIT":  model.JobPending,
	"RUN":   model.JobRunning,
	"DONE":  model.JobCompleted,
	"EXIT":  model.JobFailed,
}

func lsfState(s string) model.JobStatus {
	if st, ok := lsfStates[strings.TrimSpace(s)]; ok {
		return st
	}
	return model.JobUnknown
}

func (lsfScheduler) Directives(req JobRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#BSUB -J %s\n", req.Name)
	fmt.Fprintf(&sb, "#BSUB -o %s-%%J.out\n", req.Name)
	fmt.Fprintf(&sb, "#BSUB -e %s-%%J.err\n", req.Name)
	fmt.Fprintf(&sb, "#BSUB -n %d\n", req.Nodes*req.CoresPerNode)
	fmt.Fprintf(&sb, "#BSUB -R \"span[ptile=%d]\"\n", req.CoresPerNode)
	fmt.Fprintf(&sb, "#BSUB -W %s\n", lsfWalltime(req.Walltime))
	if req.Memory != "" {
		fmt.Fprintf(&sb, "#BSUB -M %s\n", req.Memory)
	}
	if req.Queue != "" {
		fmt.Fprintf(&sb, "#BSUB -q %s\n", req.Queue)
	}
	return sb.String()
}

// lsfWalltime converts HH:MM:SS to LSF's HH:MM form.
func lsfWalltime(w string) string {
	parts := strings.Split(w, ":")
	if len(parts) == 3 {
		return parts[0] + ":" + parts[1]
	}
	return w
}

func (lsfScheduler) SubmitCommand(dir, scriptPath string) string {
	return fmt.Sprintf("cd %s && bsub < %s", dir, scriptPath)
}

func (lsfScheduler) ParseSubmit(out string) (string, error) {
	m := lsfSubmitRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("bsub output did not contain a job id: %s", strings.TrimSpace(out))
	}
	return m[1], nil
}

func (lsfScheduler) ListCommand() string {
	return `bjobs -noheader -o 'jobid job_name stat submit_time run_time delimiter="|"'`
}

func (lsfScheduler) ParseList(out string) []JobInfo {
	var jobs []JobInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		jobs = append(jobs, JobInfo{
			ID:         strings.TrimSpace(parts[0]),
			Name:       strings.TrimSpace(parts[1]),
			Status:     lsfState(parts[2]),
			SubmitTime: strings.TrimSpace(parts[3]),
			Runtime:    strings.TrimSpace(parts[4]),
		})
	}
	return jobs
}

func (lsfScheduler) StatusCommand(jobID string) string {
	return fmt.Sprintf(`bjobs -noheader -o 'stat run_time delimiter="|"' %s`, jobID)
}

func (lsfScheduler) ParseStatus(out, jobID string) (model.JobStatus, string) {
	line := strings.TrimSpace(out)
	if line == "" || strings.Contains(line, "is not found") {
		return model.JobUnknown, ""
	}
	parts := strings.Split(strings.Split(line, "\n")[0], "|")
	runtime := ""
	if len(parts) > 1 {
		runtime = strings.TrimSpace(parts[1])
	}
	return lsfState(parts[0]), runtime
}

// FinishedStatusCommand is empty: bjobs -a already reports finished jobs
// and the plain query covers the retention window.
func (lsfScheduler) FinishedStatusCommand(jobID string) string { return "" }

func (lsfScheduler) CancelCommand(jobID string) string {
	return "bkill " + jobID
}
