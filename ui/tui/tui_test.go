// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxaero/meshpilot/internal/model"
)

func testJobs() []model.Job {
	return []model.Job{
		{SchedulerID: "101", Name: "intake_run", ProfileName: "cluster1",
			Status: model.JobRunning, SubmitTime: time.Now()},
		{SchedulerID: "102", Name: "sweep_03", ProfileName: "cluster1",
			Status: model.JobCompleted, SubmitTime: time.Now()},
	}
}

func TestJobsMsgPopulatesTable(t *testing.T) {
	m := newDashboardModel()
	updated, _ := m.Update(jobsMsg{jobs: testJobs()})
	dm := updated.(dashboardModel)

	if len(dm.jobs) != 2 {
		t.Fatalf("got %d jobs", len(dm.jobs))
	}
	if len(dm.table.Rows()) != 2 {
		t.Fatalf("got %d rows", len(dm.table.Rows()))
	}
	if dm.table.Rows()[0][0] != "101" {
		t.Errorf("first row: %v", dm.table.Rows()[0])
	}
}

func TestSelectedJob(t *testing.T) {
	m := newDashboardModel()
	if _, ok := m.selectedJob(); ok {
		t.Error("empty dashboard reported a selected job")
	}

	updated, _ := m.Update(jobsMsg{jobs: testJobs()})
	dm := updated.(dashboardModel)
	job, ok := dm.selectedJob()
	if !ok || job.SchedulerID != "101" {
		t.Errorf("selected: %+v ok=%v", job, ok)
	}
}

func TestQuitKey(t *testing.T) {
	m := newDashboardModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("no command returned")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestCancelSkipsTerminalJobs(t *testing.T) {
	m := newDashboardModel()
	updated, _ := m.Update(jobsMsg{jobs: []model.Job{
		{SchedulerID: "50", Status: model.JobCompleted, SubmitTime: time.Now()},
	}})
	dm := updated.(dashboardModel)

	_, cmd := dm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd != nil {
		t.Error("cancel issued for a finished job")
	}
}

func TestActionErrorShown(t *testing.T) {
	m := newDashboardModel()
	updated, _ := m.Update(actionMsg{err: errTest})
	dm := updated.(dashboardModel)
	if dm.err == nil {
		t.Error("error not recorded")
	}
	if dm.busy {
		t.Error("busy flag not cleared")
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test failure" }
