// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/voxaero/meshpilot/internal/model"

// Store is the persistence interface for MeshPilot. It covers HPC connection
// profiles, trusted host keys, tracked batch jobs, pipeline run history and
// the audit log.
type Store interface {
	// HPC profile methods
	AddProfile(p model.HPCProfile) (int, error)
	GetProfile(name string) (*model.HPCProfile, error)
	GetAllProfiles() ([]model.HPCProfile, error)
	DeleteProfile(name string) error

	// Host key methods
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, key string) error

	// Job methods
	AddJob(j model.Job) (int, error)
	GetJob(schedulerID string) (*model.Job, error)
	GetAllJobs() ([]model.Job, error)
	GetActiveJobs() ([]model.Job, error)
	UpdateJobStatus(schedulerID string, status model.JobStatus, duration string) error

	// Pipeline run methods
	AddPipelineRun(r model.PipelineRun) (int, error)
	FinishPipelineRun(uuid, status string) error
	GetPipelineRuns() ([]model.PipelineRun, error)
	AddStageResult(s model.StageResult) error
	GetStageResults(runUUID string) ([]model.StageResult, error)

	// Audit log methods
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
}

// Package-level convenience wrappers over the active store. The store is set
// by InitDB; callers that need isolation (tests, the web server) should hold
// their own Store instead.

func AddProfile(p model.HPCProfile) (int, error)     { return store.AddProfile(p) }
func GetProfile(name string) (*model.HPCProfile, error) { return store.GetProfile(name) }
func GetAllProfiles() ([]model.HPCProfile, error)    { return store.GetAllProfiles() }
func DeleteProfile(name string) error                { return store.DeleteProfile(name) }
func GetKnownHostKey(hostname string) (string, error) { return store.GetKnownHostKey(hostname) }
func AddKnownHostKey(hostname, key string) error     { return store.AddKnownHostKey(hostname, key) }
func AddJob(j model.Job) (int, error)                { return store.AddJob(j) }
func GetJob(schedulerID string) (*model.Job, error)  { return store.GetJob(schedulerID) }
func GetAllJobs() ([]model.Job, error)               { return store.GetAllJobs() }
func GetActiveJobs() ([]model.Job, error)            { return store.GetActiveJobs() }
func UpdateJobStatus(id string, st model.JobStatus, dur string) error {
	return store.UpdateJobStatus(id, st, dur)
}
func AddPipelineRun(r model.PipelineRun) (int, error) { return store.AddPipelineRun(r) }
func FinishPipelineRun(uuid, status string) error     { return store.FinishPipelineRun(uuid, status) }
func GetPipelineRuns() ([]model.PipelineRun, error)   { return store.GetPipelineRuns() }
func AddStageResult(s model.StageResult) error        { return store.AddStageResult(s) }
func GetStageResults(runUUID string) ([]model.StageResult, error) {
	return store.GetStageResults(runUUID)
}
func LogAction(action, details string) error { return store.LogAction(action, details) }
func GetAllAuditLogEntries() ([]model.AuditLogEntry, error) { return store.GetAllAuditLogEntries() }
