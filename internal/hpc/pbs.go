// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package hpc

import (
	"fmt"
	"strings"

	"github.com/voxaero/meshpilot/internal/model"
)

type pbsScheduler struct{}

func (pbsScheduler) Type() model.SchedulerType { return model.SchedulerPBS }

// pbsStates maps qstat single-letter states to normalized statuses.
var pbsStates = map[string]model.JobStatus{
	"Q": model.JobPending,
	"H": model.JobPending,
	"W": model.JobPending,
	"R": model.JobRunning,
	"E": model.JobFailed,
	"C": model.JobCompleted,
	"F": model.JobCompleted,
}

func pbsState(s string) model.JobStatus {
	if st, ok := pbsStates[strings.TrimSpace(s)]; ok {
		return st
	}
	return model.JobUnknown
}

func (pbsScheduler) Directives(req JobRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#PBS -N %s\n", req.Name)
	fmt.Fprintf(&sb, "#PBS -o %s.out\n", req.Name)
	fmt.Fprintf(&sb, "#PBS -e %s.err\n", req.Name)
	fmt.Fprintf(&sb, "#PBS -l nodes=%d:ppn=%d\n", req.Nodes, req.CoresPerNode)
	fmt.Fprintf(&sb, "#PBS -l walltime=%s\n", req.Walltime)
	if req.Memory != "" {
		fmt.Fprintf(&sb, "#PBS -l mem=%s\n", req.Memory)
	}
	if req.Queue != "" {
		fmt.Fprintf(&sb, "#PBS -q %s\n", req.Queue)
	}
	sb.WriteString("cd $PBS_O_WORKDIR\n")
	return sb.String()
}

func (pbsScheduler) SubmitCommand(dir, scriptPath string) string {
	return fmt.Sprintf("cd %s && qsub %s", dir, scriptPath)
}

// ParseSubmit takes the bare job id qsub prints, e.g. "12345.headnode".
func (pbsScheduler) ParseSubmit(out string) (string, error) {
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("qsub produced no job id")
	}
	return strings.Split(id, "\n")[0], nil
}

func (pbsScheduler) ListCommand() string {
	return "qstat -f"
}

// ParseList parses the block-per-job output of qstat -f.
func (pbsScheduler) ParseList(out string) []JobInfo {
	var jobs []JobInfo
	for _, block := range strings.Split(out, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var info JobInfo
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Job Id:"):
				info.ID = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			case strings.HasPrefix(line, "Job_Name ="):
				info.Name = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
			case strings.HasPrefix(line, "job_state ="):
				info.Status = pbsState(strings.SplitN(line, "=", 2)[1])
			case strings.HasPrefix(line, "ctime ="):
				info.SubmitTime = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
			case strings.HasPrefix(line, "resources_used.walltime ="):
				info.Runtime = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
			}
		}
		if info.ID != "" {
			jobs = append(jobs, info)
		}
	}
	return jobs
}

func (pbsScheduler) StatusCommand(jobID string) string {
	return "qstat -f " + jobID
}

func (p pbsScheduler) ParseStatus(out, jobID string) (model.JobStatus, string) {
	jobs := p.ParseList(out)
	for _, j := range jobs {
		if strings.HasPrefix(j.ID, jobID) || strings.HasPrefix(jobID, j.ID) {
			return j.Status, j.Runtime
		}
	}
	// qstat forgets finished jobs quickly; an empty answer for a known id
	// means the job completed and was purged from the queue.
	return model.JobUnknown, ""
}

func (pbsScheduler) FinishedStatusCommand(jobID string) string {
	return "qstat -xf " + jobID
}

func (pbsScheduler) CancelCommand(jobID string) string {
	return "qdel " + jobID
}
