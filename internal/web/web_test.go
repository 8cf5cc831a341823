// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxaero/meshpilot/internal/gmsh"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/meshio"
	"github.com/voxaero/meshpilot/internal/model"
)

// memStore is an in-memory stand-in for the database store.
type memStore struct {
	profiles []model.HPCProfile
	jobs     []model.Job
	runs     []model.PipelineRun
	stages   []model.StageResult
	hostKeys map[string]string
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{hostKeys: map[string]string{}, nextID: 1}
}

func (m *memStore) AddProfile(p model.HPCProfile) (int, error) {
	for _, e := range m.profiles {
		if e.Name == p.Name {
			return 0, fmt.Errorf("profile %q already exists", p.Name)
		}
	}
	p.ID = m.nextID
	m.nextID++
	m.profiles = append(m.profiles, p)
	return p.ID, nil
}

func (m *memStore) GetProfile(name string) (*model.HPCProfile, error) {
	for i := range m.profiles {
		if m.profiles[i].Name == name {
			return &m.profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", name)
}

func (m *memStore) GetAllProfiles() ([]model.HPCProfile, error) { return m.profiles, nil }

func (m *memStore) DeleteProfile(name string) error {
	for i := range m.profiles {
		if m.profiles[i].Name == name {
			m.profiles = append(m.profiles[:i], m.profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("profile %q not found", name)
}

func (m *memStore) GetKnownHostKey(hostname string) (string, error) {
	return m.hostKeys[hostname], nil
}
func (m *memStore) AddKnownHostKey(hostname, key string) error {
	m.hostKeys[hostname] = key
	return nil
}

func (m *memStore) AddJob(j model.Job) (int, error) {
	j.ID = m.nextID
	m.nextID++
	m.jobs = append(m.jobs, j)
	return j.ID, nil
}

func (m *memStore) GetJob(schedulerID string) (*model.Job, error) {
	for i := range m.jobs {
		if m.jobs[i].SchedulerID == schedulerID {
			return &m.jobs[i], nil
		}
	}
	return nil, fmt.Errorf("job %s not found", schedulerID)
}

func (m *memStore) GetAllJobs() ([]model.Job, error) { return m.jobs, nil }

func (m *memStore) GetActiveJobs() ([]model.Job, error) {
	var active []model.Job
	for _, j := range m.jobs {
		if !j.Status.Terminal() {
			active = append(active, j)
		}
	}
	return active, nil
}

func (m *memStore) UpdateJobStatus(schedulerID string, status model.JobStatus, duration string) error {
	for i := range m.jobs {
		if m.jobs[i].SchedulerID == schedulerID {
			m.jobs[i].Status = status
			m.jobs[i].Duration = duration
			return nil
		}
	}
	return fmt.Errorf("job %s not found", schedulerID)
}

func (m *memStore) AddPipelineRun(r model.PipelineRun) (int, error) {
	r.ID = m.nextID
	m.nextID++
	m.runs = append(m.runs, r)
	return r.ID, nil
}

func (m *memStore) FinishPipelineRun(uuid, status string) error {
	for i := range m.runs {
		if m.runs[i].UUID == uuid {
			m.runs[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("run %s not found", uuid)
}

func (m *memStore) GetPipelineRuns() ([]model.PipelineRun, error) { return m.runs, nil }

func (m *memStore) AddStageResult(s model.StageResult) error {
	m.stages = append(m.stages, s)
	return nil
}

func (m *memStore) GetStageResults(runUUID string) ([]model.StageResult, error) {
	var out []model.StageResult
	for _, s := range m.stages {
		if s.RunUUID == runUUID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) LogAction(action, details string) error             { return nil }
func (m *memStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) { return nil, nil }

// fakeController records calls instead of opening SSH connections.
type fakeController struct {
	submitted []hpc.JobRequest
	cancelled []string
	status    model.JobStatus
	err       error
}

func (f *fakeController) Submit(ctx context.Context, profile string, req hpc.JobRequest, inputs []string) (*model.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, req)
	return &model.Job{
		Name:        req.Name,
		ProfileName: profile,
		SchedulerID: "4242",
		Status:      model.JobPending,
	}, nil
}

func (f *fakeController) Status(ctx context.Context, profile, id string) (model.JobStatus, error) {
	if f.err != nil {
		return model.JobUnknown, f.err
	}
	return f.status, nil
}

func (f *fakeController) Cancel(ctx context.Context, profile, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func testServer(t *testing.T) (*Server, *memStore, *fakeController) {
	t.Helper()
	store := newMemStore()
	ctrl := &fakeController{status: model.JobRunning}
	return New(store, ctrl, nil, nil), store, ctrl
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _, _ := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body: %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestProfileCRUD(t *testing.T) {
	s, _, _ := testServer(t)

	create := map[string]any{
		"name":      "cluster1",
		"hostname":  "hpc.example.com",
		"username":  "cfd",
		"scheduler": "slurm",
		"queue":     "standard",
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/profiles", create); w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	// Duplicate name is rejected.
	if w := doJSON(t, s, http.MethodPost, "/api/v1/profiles", create); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: %d", w.Code)
	}
	// Missing hostname is rejected.
	if w := doJSON(t, s, http.MethodPost, "/api/v1/profiles", map[string]any{"name": "x", "username": "y"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid create: %d", w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/profiles/cluster1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var p model.HPCProfile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Hostname != "hpc.example.com" || p.Auth != model.AuthAgent {
		t.Errorf("profile: %+v", p)
	}

	if w := doJSON(t, s, http.MethodDelete, "/api/v1/profiles/cluster1", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/v1/profiles/cluster1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
}

func TestSubmitJob(t *testing.T) {
	s, _, ctrl := testServer(t)

	payload := map[string]any{
		"profile":  "cluster1",
		"name":     "intake_run",
		"nodes":    2,
		"walltime": "02:00:00",
		"commands": []string{"mpirun -np 8 SU2_CFD intake.cfg"},
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/jobs", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	if len(ctrl.submitted) != 1 || ctrl.submitted[0].Nodes != 2 {
		t.Errorf("controller saw: %+v", ctrl.submitted)
	}
	var job model.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.SchedulerID != "4242" {
		t.Errorf("job: %+v", job)
	}

	// Commands are mandatory.
	if w := doJSON(t, s, http.MethodPost, "/api/v1/jobs", map[string]any{"profile": "cluster1"}); w.Code != http.StatusBadRequest {
		t.Errorf("empty submit: %d", w.Code)
	}
}

func TestJobStatusAndCancel(t *testing.T) {
	s, store, ctrl := testServer(t)
	store.AddJob(model.Job{
		Name:        "intake_run",
		ProfileName: "cluster1",
		SchedulerID: "777",
		Status:      model.JobPending,
	})

	w := doJSON(t, s, http.MethodGet, "/api/v1/jobs/777", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var job model.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobRunning {
		t.Errorf("status not refreshed: %s", job.Status)
	}

	if w := doJSON(t, s, http.MethodGet, "/api/v1/jobs/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown job: %d", w.Code)
	}

	if w := doJSON(t, s, http.MethodDelete, "/api/v1/jobs/777", nil); w.Code != http.StatusNoContent {
		t.Errorf("cancel: %d", w.Code)
	}
	if len(ctrl.cancelled) != 1 || ctrl.cancelled[0] != "777" {
		t.Errorf("cancelled: %v", ctrl.cancelled)
	}
}

func TestTerminalJobNotRefreshed(t *testing.T) {
	s, store, _ := testServer(t)
	store.AddJob(model.Job{
		SchedulerID: "12",
		ProfileName: "cluster1",
		Status:      model.JobCompleted,
	})
	w := doJSON(t, s, http.MethodGet, "/api/v1/jobs/12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var job model.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobCompleted {
		t.Errorf("terminal status overwritten: %s", job.Status)
	}
}

func TestRunPipelineEndpoint(t *testing.T) {
	s, _, _ := testServer(t)

	body := "name: demo\nstages:\n  - name: check\n    type: validate\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipelines/run", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("run: %d %s", w.Code, w.Body.String())
	}

	// Malformed definitions are rejected up front.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/pipelines/run", strings.NewReader("stages: []"))
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid run: %d", w.Code)
	}
}

func TestGetRunStages(t *testing.T) {
	s, store, _ := testServer(t)
	store.AddStageResult(model.StageResult{RunUUID: "abc", Stage: "mesh", Status: "COMPLETED"})

	w := doJSON(t, s, http.MethodGet, "/api/v1/runs/abc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get run: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/v1/runs/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown run: %d", w.Code)
	}
}

func TestValidateMeshUpload(t *testing.T) {
	s, _, _ := testServer(t)

	meshPath := filepath.Join(t.TempDir(), "box.msh")
	if err := meshio.WriteMeshFile(gmsh.StructuredBoxMesh(1, 1, 1, 2, 2, 2), meshPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(meshPath)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("mesh", "box.msh")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}
	var report meshio.ValidationReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Stats.NumNodes == 0 {
		t.Error("empty report")
	}
}

func TestValidateMeshRejectsFormat(t *testing.T) {
	s, _, _ := testServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("mesh", "model.step")
	part.Write([]byte("not a mesh"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad format: %d", w.Code)
	}
}
