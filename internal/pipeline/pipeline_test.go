// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"testing"
)

const samplePipeline = `
name: intake_preprocess
workdir: /tmp/intake
stages:
  - name: export
    type: nx-export
    params:
      part: INTAKE3D.prt
      expressions:
        inlet_diameter: 25.4
  - name: mesh
    type: mesh
    params:
      size: 0.5
    retries: 1
    timeout: 30m
  - name: check
    type: validate
    continue_on_error: true
  - name: convert
    type: convert
  - name: run
    type: submit
    params:
      profile: cluster1
`

func TestParseDefinition(t *testing.T) {
	def, err := Parse([]byte(samplePipeline))
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "intake_preprocess" {
		t.Errorf("name %q", def.Name)
	}
	if len(def.Stages) != 5 {
		t.Fatalf("got %d stages, want 5", len(def.Stages))
	}
	if def.Stages[1].Retries != 1 || def.Stages[1].Timeout != "30m" {
		t.Errorf("mesh stage: %+v", def.Stages[1])
	}
	if !def.Stages[2].ContinueOnError {
		t.Error("check stage should continue on error")
	}
	if size, ok := def.Stages[1].Params["size"]; !ok {
		t.Error("mesh stage lost its params")
	} else if f, ok := size.(float64); !ok || f != 0.5 {
		t.Errorf("size param: %v", size)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no name", "stages:\n  - name: a\n    type: mesh\n"},
		{"no stages", "name: x\n"},
		{"unknown type", "name: x\nstages:\n  - name: a\n    type: teleport\n"},
		{"duplicate stage", "name: x\nstages:\n  - name: a\n    type: mesh\n  - name: a\n    type: validate\n"},
		{"bad timeout", "name: x\nstages:\n  - name: a\n    type: mesh\n    timeout: soon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// stubStage builds a handler that fails a set number of times, then
// succeeds and publishes an artifact.
func stubStage(failures int, artifact string, calls *int) StageFunc {
	attempts := 0
	return func(ctx context.Context, st *State, def StageDef) (string, string, error) {
		*calls++
		attempts++
		if attempts <= failures {
			return "", "", fmt.Errorf("transient failure %d", attempts)
		}
		if artifact != "" {
			st.SetArtifact(artifactMesh, artifact)
		}
		return artifact, "ok", nil
	}
}

func testDef(stages ...StageDef) *Definition {
	return &Definition{Name: "test", Stages: stages}
}

func TestRunAllStages(t *testing.T) {
	r := NewRunner(nil)
	var a, b int
	r.Register(StageMesh, stubStage(0, "intake.msh", &a))
	r.Register(StageValidate, func(ctx context.Context, st *State, def StageDef) (string, string, error) {
		b++
		if st.Artifact(artifactMesh) != "intake.msh" {
			t.Errorf("artifact not threaded: %q", st.Artifact(artifactMesh))
		}
		return st.Artifact(artifactMesh), "ok", nil
	})

	report, err := r.Run(context.Background(), testDef(
		StageDef{Name: "mesh", Type: StageMesh},
		StageDef{Name: "check", Type: StageValidate},
	))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusCompleted {
		t.Errorf("status %s", report.Status)
	}
	if a != 1 || b != 1 {
		t.Errorf("calls: mesh %d validate %d", a, b)
	}
	if report.UUID == "" {
		t.Error("run has no uuid")
	}
	if len(report.Stages) != 2 {
		t.Fatalf("got %d stage results", len(report.Stages))
	}
	if report.Stages[0].Artifact != "intake.msh" {
		t.Errorf("stage artifact %q", report.Stages[0].Artifact)
	}
}

func TestRunRetries(t *testing.T) {
	r := NewRunner(nil)
	var calls int
	r.Register(StageMesh, stubStage(2, "m.msh", &calls))

	report, err := r.Run(context.Background(), testDef(
		StageDef{Name: "mesh", Type: StageMesh, Retries: 2},
	))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("got %d attempts, want 3", calls)
	}
	if report.Status != StatusCompleted {
		t.Errorf("status %s", report.Status)
	}
}

func TestRunFailureSkipsRemaining(t *testing.T) {
	r := NewRunner(nil)
	var meshCalls, validateCalls int
	r.Register(StageMesh, stubStage(100, "", &meshCalls))
	r.Register(StageValidate, stubStage(0, "", &validateCalls))

	report, err := r.Run(context.Background(), testDef(
		StageDef{Name: "mesh", Type: StageMesh},
		StageDef{Name: "check", Type: StageValidate},
	))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusFailed {
		t.Errorf("status %s", report.Status)
	}
	if validateCalls != 0 {
		t.Error("later stage ran after hard failure")
	}
	if report.Stages[1].Status != StatusSkipped {
		t.Errorf("second stage status %s", report.Stages[1].Status)
	}
}

func TestRunContinueOnError(t *testing.T) {
	r := NewRunner(nil)
	var meshCalls, validateCalls int
	r.Register(StageMesh, stubStage(100, "", &meshCalls))
	r.Register(StageValidate, stubStage(0, "", &validateCalls))

	report, err := r.Run(context.Background(), testDef(
		StageDef{Name: "mesh", Type: StageMesh, ContinueOnError: true},
		StageDef{Name: "check", Type: StageValidate},
	))
	if err != nil {
		t.Fatal(err)
	}
	if validateCalls != 1 {
		t.Error("later stage should run after continue_on_error failure")
	}
	if report.Status != StatusCompleted {
		t.Errorf("status %s", report.Status)
	}
}

func TestRunCancelled(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Register(StageMesh, func(ctx context.Context, st *State, def StageDef) (string, string, error) {
		cancel()
		return "", "", ctx.Err()
	})

	_, err := r.Run(ctx, testDef(
		StageDef{Name: "mesh", Type: StageMesh, Retries: 5},
		StageDef{Name: "check", Type: StageValidate},
	))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestStatePathAnchorsRelative(t *testing.T) {
	st := &State{WorkDir: "/work", Artifacts: map[string]string{}}
	if got := st.path("mesh.msh"); got != "/work/mesh.msh" {
		t.Errorf("got %q", got)
	}
	if got := st.path("/abs/mesh.msh"); got != "/abs/mesh.msh" {
		t.Errorf("got %q", got)
	}
	if got := st.path(""); got != "" {
		t.Errorf("got %q", got)
	}
}
