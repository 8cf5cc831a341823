// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"testing"
	"time"

	"github.com/voxaero/meshpilot/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("could not open in-memory store: %v", err)
	}
	return s
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestStore(t)

	p := model.HPCProfile{
		Name:      "cluster1",
		Hostname:  "hpc.example.com",
		Port:      22,
		Username:  "cfd",
		Auth:      model.AuthKey,
		KeyPath:   "/home/cfd/.ssh/id_ed25519",
		Scheduler: model.SchedulerSlurm,
		Queue:     "standard",
	}
	id, err := s.AddProfile(p)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("no id assigned")
	}

	got, err := s.GetProfile("cluster1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hostname != p.Hostname || got.Auth != model.AuthKey || got.Queue != "standard" {
		t.Errorf("profile: %+v", got)
	}

	all, err := s.GetAllProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d profiles", len(all))
	}

	if err := s.DeleteProfile("cluster1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProfile("cluster1"); err == nil {
		t.Error("deleted profile still readable")
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore(t)

	j := model.Job{
		Name:        "intake_run",
		ProfileName: "cluster1",
		SchedulerID: "4242",
		Scheduler:   model.SchedulerSlurm,
		Status:      model.JobPending,
		RemoteDir:   "meshpilot_jobs/intake_run_1700000000",
		SubmitTime:  time.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.AddJob(j); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetJob("4242")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "intake_run" || got.Status != model.JobPending {
		t.Errorf("job: %+v", got)
	}

	active, err := s.GetActiveJobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active jobs", len(active))
	}

	if err := s.UpdateJobStatus("4242", model.JobCompleted, "00:42:00"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetJob("4242")
	if got.Status != model.JobCompleted || got.Duration != "00:42:00" {
		t.Errorf("after update: %+v", got)
	}

	active, _ = s.GetActiveJobs()
	if len(active) != 0 {
		t.Errorf("completed job still active: %+v", active)
	}
}

func TestPipelineRunRecording(t *testing.T) {
	s := newTestStore(t)

	run := model.PipelineRun{
		UUID:      "run-1",
		Pipeline:  "intake_preprocess",
		Status:    "RUNNING",
		StartedAt: time.Now().UTC(),
	}
	if _, err := s.AddPipelineRun(run); err != nil {
		t.Fatal(err)
	}

	for _, stage := range []string{"mesh", "validate"} {
		err := s.AddStageResult(model.StageResult{
			RunUUID:   "run-1",
			Stage:     stage,
			Status:    "COMPLETED",
			Artifact:  stage + ".out",
			StartedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := s.FinishPipelineRun("run-1", "COMPLETED"); err != nil {
		t.Fatal(err)
	}

	runs, err := s.GetPipelineRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != "COMPLETED" {
		t.Errorf("runs: %+v", runs)
	}

	stages, err := s.GetStageResults("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 2 {
		t.Fatalf("got %d stage results", len(stages))
	}
	if stages[0].Stage != "mesh" || stages[0].Artifact != "mesh.out" {
		t.Errorf("stage: %+v", stages[0])
	}
}

func TestKnownHostKeys(t *testing.T) {
	s := newTestStore(t)

	key, err := s.GetKnownHostKey("hpc.example.com:22")
	if err != nil {
		t.Fatal(err)
	}
	if key != "" {
		t.Errorf("unexpected key for unknown host: %q", key)
	}

	if err := s.AddKnownHostKey("hpc.example.com:22", "ssh-ed25519 AAAA..."); err != nil {
		t.Fatal(err)
	}
	key, err = s.GetKnownHostKey("hpc.example.com:22")
	if err != nil {
		t.Fatal(err)
	}
	if key != "ssh-ed25519 AAAA..." {
		t.Errorf("key: %q", key)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogAction("SUBMIT_JOB", "intake_run on cluster1"); err != nil {
		t.Fatal(err)
	}
	entries, err := s.GetAllAuditLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "SUBMIT_JOB" {
		t.Errorf("entries: %+v", entries)
	}
}
