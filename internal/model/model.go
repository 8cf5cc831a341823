// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the shared data types: cluster profiles, batch jobs,
// pipeline runs and audit entries.
package model

import (
	"fmt"
	"time"
)

// SchedulerType identifies the batch scheduler running on a cluster.
type SchedulerType string

const (
	SchedulerSlurm SchedulerType = "slurm"
	SchedulerPBS   SchedulerType = "pbs"
	SchedulerLSF   SchedulerType = "lsf"
)

// JobStatus is the normalized state of a remote batch job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
	JobUnknown   JobStatus = "UNKNOWN"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// AuthMethod selects how an SSH connection authenticates.
type AuthMethod string

const (
	AuthKey      AuthMethod = "key"
	AuthAgent    AuthMethod = "agent"
	AuthPassword AuthMethod = "password"
)

// HPCProfile is a stored connection profile for a remote cluster.
type HPCProfile struct {
	ID        int
	Name      string
	Hostname  string
	Port      int
	Username  string
	Auth      AuthMethod
	KeyPath   string
	Scheduler SchedulerType
	RemoteDir string
	Queue     string
}

// Addr returns host:port for dialing.
func (p HPCProfile) Addr() string {
	port := p.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", p.Hostname, port)
}

// String returns the user@host representation.
func (p HPCProfile) String() string {
	return fmt.Sprintf("%s@%s", p.Username, p.Hostname)
}

// Job is a batch job tracked by MeshPilot. SchedulerID is the identifier
// assigned by the remote scheduler; it is a string because PBS and LSF ids
// are not plain integers.
type Job struct {
	ID          int
	Name        string
	ProfileName string
	SchedulerID string
	Scheduler   SchedulerType
	Status      JobStatus
	RemoteDir   string
	SubmitTime  time.Time
	Duration    string
}

// String returns a short human-readable description of the job.
func (j Job) String() string {
	return fmt.Sprintf("%s (%s, %s)", j.Name, j.SchedulerID, j.Status)
}

// PipelineRun is one execution of a pipeline definition.
type PipelineRun struct {
	ID         int
	UUID       string
	Pipeline   string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// StageResult records the outcome of one stage within a pipeline run.
type StageResult struct {
	ID         int
	RunUUID    string
	Stage      string
	Status     string
	Artifact   string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AuditLogEntry is a persisted record of a user-visible action.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Action    string
	Details   string
}
