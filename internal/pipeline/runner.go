// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/logging"
	"github.com/voxaero/meshpilot/internal/model"
)

// Stage result statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// State is the shared context threaded through a run. Stages publish
// artifacts under well-known keys ("geometry", "mesh", "remote_dir") that
// later stages consume as defaults.
type State struct {
	WorkDir   string
	Artifacts map[string]string
}

// Artifact returns the named artifact or "".
func (s *State) Artifact(key string) string {
	return s.Artifacts[key]
}

// SetArtifact records an artifact path for later stages.
func (s *State) SetArtifact(key, path string) {
	s.Artifacts[key] = path
}

// StageFunc executes one stage. It returns the primary artifact path (may
// be empty) and a human-readable message for the run history.
type StageFunc func(ctx context.Context, st *State, def StageDef) (artifact, message string, err error)

// Runner executes pipeline definitions. Store may be nil, in which case run
// history is not persisted.
type Runner struct {
	Store    db.Store
	handlers map[string]StageFunc
}

// NewRunner returns a Runner with the built-in stage handlers.
func NewRunner(store db.Store) *Runner {
	r := &Runner{Store: store, handlers: make(map[string]StageFunc)}
	r.Register(StageNXExport, stageNXExport)
	r.Register(StageMesh, stageMesh)
	r.Register(StageValidate, stageValidate)
	r.Register(StageConvert, stageConvert)
	r.Register(StageSubmit, stageSubmit)
	r.Register(StageFetch, stageFetch)
	return r
}

// Register installs or replaces the handler for a stage type.
func (r *Runner) Register(stageType string, fn StageFunc) {
	r.handlers[stageType] = fn
}

// Report is the outcome of one pipeline run.
type Report struct {
	UUID    string
	Status  string
	Stages  []model.StageResult
	Started time.Time
	Ended   time.Time
}

// Run executes the definition stage by stage. A stage failure aborts the
// run unless the stage is marked continue_on_error; remaining stages are
// then still executed. Cancellation via ctx stops the run between retries.
func (r *Runner) Run(ctx context.Context, def *Definition) (*Report, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		UUID:    uuid.NewString(),
		Status:  StatusRunning,
		Started: time.Now(),
	}
	st := &State{WorkDir: def.WorkDir, Artifacts: make(map[string]string)}

	if r.Store != nil {
		_, err := r.Store.AddPipelineRun(model.PipelineRun{
			UUID:      report.UUID,
			Pipeline:  def.Name,
			Status:    StatusRunning,
			StartedAt: report.Started,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record pipeline run: %w", err)
		}
	}

	logging.Infof("pipeline: run %s of %s (%d stages)", report.UUID, def.Name, len(def.Stages))

	failed := false
	for _, stage := range def.Stages {
		if failed && !stage.ContinueOnError {
			r.record(report, stage, StatusSkipped, "", "skipped after earlier failure", time.Now(), time.Now())
			continue
		}

		result, err := r.runStage(ctx, st, stage)
		r.record(report, stage, result.Status, result.Artifact, result.Message, result.StartedAt, result.FinishedAt)

		if err != nil {
			if ctx.Err() != nil {
				report.Status = StatusFailed
				report.Ended = time.Now()
				r.finish(report)
				return report, ctx.Err()
			}
			logging.Errorf("pipeline: stage %s failed: %v", stage.Name, err)
			if !stage.ContinueOnError {
				failed = true
			}
		}
	}

	report.Status = StatusCompleted
	if failed {
		report.Status = StatusFailed
	}
	report.Ended = time.Now()
	r.finish(report)
	logging.Infof("pipeline: run %s finished with status %s", report.UUID, report.Status)
	return report, nil
}

// runStage executes one stage with its retry and timeout policy.
func (r *Runner) runStage(ctx context.Context, st *State, stage StageDef) (model.StageResult, error) {
	handler, ok := r.handlers[stage.Type]
	if !ok {
		return model.StageResult{}, fmt.Errorf("no handler for stage type %q", stage.Type)
	}
	timeout, err := stage.timeout()
	if err != nil {
		return model.StageResult{}, err
	}

	result := model.StageResult{Stage: stage.Name, StartedAt: time.Now()}
	attempts := stage.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		stageCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		logging.Debugf("pipeline: stage %s attempt %d/%d", stage.Name, attempt, attempts)
		artifact, message, err := handler(stageCtx, st, stage)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			result.Status = StatusCompleted
			result.Artifact = artifact
			result.Message = message
			result.FinishedAt = time.Now()
			return result, nil
		}
		lastErr = err
	}

	result.Status = StatusFailed
	if lastErr != nil {
		result.Message = lastErr.Error()
	}
	result.FinishedAt = time.Now()
	return result, lastErr
}

// record appends a stage result to the report and persists it.
func (r *Runner) record(report *Report, stage StageDef, status, artifact, message string, started, ended time.Time) {
	res := model.StageResult{
		RunUUID:    report.UUID,
		Stage:      stage.Name,
		Status:     status,
		Artifact:   artifact,
		Message:    message,
		StartedAt:  started,
		FinishedAt: ended,
	}
	report.Stages = append(report.Stages, res)
	if r.Store != nil {
		if err := r.Store.AddStageResult(res); err != nil {
			logging.Errorf("pipeline: failed to record stage %s: %v", stage.Name, err)
		}
	}
}

func (r *Runner) finish(report *Report) {
	if r.Store != nil {
		if err := r.Store.FinishPipelineRun(report.UUID, report.Status); err != nil {
			logging.Errorf("pipeline: failed to finish run record: %v", err)
		}
	}
}
