// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Bun-backed implementation of the Store interface. One implementation
// serves all three dialects; dialect differences live in the migrations and
// in createBunDB.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/voxaero/meshpilot/internal/model"
)

// BunStore implements Store on top of a *bun.DB.
type BunStore struct {
	dbType string
	bun    *bun.DB
}

// ProfileModel maps the `hpc_profiles` table for Bun queries.
type ProfileModel struct {
	bun.BaseModel `bun:"table:hpc_profiles"`
	ID            int            `bun:"id,pk,autoincrement"`
	Name          string         `bun:"name"`
	Hostname      string         `bun:"hostname"`
	Port          int            `bun:"port"`
	Username      string         `bun:"username"`
	Auth          string         `bun:"auth"`
	KeyPath       sql.NullString `bun:"key_path"`
	Scheduler     string         `bun:"scheduler"`
	RemoteDir     sql.NullString `bun:"remote_dir"`
	Queue         sql.NullString `bun:"queue"`
}

// JobModel maps the `jobs` table.
type JobModel struct {
	bun.BaseModel `bun:"table:jobs"`
	ID            int       `bun:"id,pk,autoincrement"`
	Name          string    `bun:"name"`
	ProfileName   string    `bun:"profile_name"`
	SchedulerID   string    `bun:"scheduler_id"`
	Scheduler     string    `bun:"scheduler"`
	Status        string    `bun:"status"`
	RemoteDir     string    `bun:"remote_dir"`
	SubmitTime    time.Time `bun:"submit_time"`
	Duration      string    `bun:"duration"`
}

// PipelineRunModel maps the `pipeline_runs` table.
type PipelineRunModel struct {
	bun.BaseModel `bun:"table:pipeline_runs"`
	ID            int          `bun:"id,pk,autoincrement"`
	UUID          string       `bun:"uuid"`
	Pipeline      string       `bun:"pipeline"`
	Status        string       `bun:"status"`
	StartedAt     time.Time    `bun:"started_at"`
	FinishedAt    sql.NullTime `bun:"finished_at"`
}

// StageResultModel maps the `stage_results` table.
type StageResultModel struct {
	bun.BaseModel `bun:"table:stage_results"`
	ID            int            `bun:"id,pk,autoincrement"`
	RunUUID       string         `bun:"run_uuid"`
	Stage         string         `bun:"stage"`
	Status        string         `bun:"status"`
	Artifact      sql.NullString `bun:"artifact"`
	Message       sql.NullString `bun:"message"`
	StartedAt     time.Time      `bun:"started_at"`
	FinishedAt    sql.NullTime   `bun:"finished_at"`
}

// KnownHostModel maps `known_hosts`.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string `bun:"hostname,pk"`
	Key           string `bun:"key"`
}

// AuditLogModel maps the `audit_log` table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// --- Mapping helpers (centralized conversions) ---

func profileModelToModel(p ProfileModel) model.HPCProfile {
	prof := model.HPCProfile{
		ID:        p.ID,
		Name:      p.Name,
		Hostname:  p.Hostname,
		Port:      p.Port,
		Username:  p.Username,
		Auth:      model.AuthMethod(p.Auth),
		Scheduler: model.SchedulerType(p.Scheduler),
	}
	if p.KeyPath.Valid {
		prof.KeyPath = p.KeyPath.String
	}
	if p.RemoteDir.Valid {
		prof.RemoteDir = p.RemoteDir.String
	}
	if p.Queue.Valid {
		prof.Queue = p.Queue.String
	}
	return prof
}

func jobModelToModel(j JobModel) model.Job {
	return model.Job{
		ID:          j.ID,
		Name:        j.Name,
		ProfileName: j.ProfileName,
		SchedulerID: j.SchedulerID,
		Scheduler:   model.SchedulerType(j.Scheduler),
		Status:      model.JobStatus(j.Status),
		RemoteDir:   j.RemoteDir,
		SubmitTime:  j.SubmitTime,
		Duration:    j.Duration,
	}
}

func runModelToModel(r PipelineRunModel) model.PipelineRun {
	run := model.PipelineRun{
		ID:        r.ID,
		UUID:      r.UUID,
		Pipeline:  r.Pipeline,
		Status:    r.Status,
		StartedAt: r.StartedAt,
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = r.FinishedAt.Time
	}
	return run
}

func stageModelToModel(s StageResultModel) model.StageResult {
	sr := model.StageResult{
		ID:        s.ID,
		RunUUID:   s.RunUUID,
		Stage:     s.Stage,
		Status:    s.Status,
		StartedAt: s.StartedAt,
	}
	if s.Artifact.Valid {
		sr.Artifact = s.Artifact.String
	}
	if s.Message.Valid {
		sr.Message = s.Message.String
	}
	if s.FinishedAt.Valid {
		sr.FinishedAt = s.FinishedAt.Time
	}
	return sr
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Profiles ---

func (s *BunStore) AddProfile(p model.HPCProfile) (int, error) {
	ctx := context.Background()
	pm := ProfileModel{
		Name:      p.Name,
		Hostname:  p.Hostname,
		Port:      p.Port,
		Username:  p.Username,
		Auth:      string(p.Auth),
		KeyPath:   nullString(p.KeyPath),
		Scheduler: string(p.Scheduler),
		RemoteDir: nullString(p.RemoteDir),
		Queue:     nullString(p.Queue),
	}
	if _, err := s.bun.NewInsert().Model(&pm).Exec(ctx); err != nil {
		return 0, err
	}
	_ = s.LogAction("ADD_PROFILE", fmt.Sprintf("profile: %s (%s@%s)", p.Name, p.Username, p.Hostname))
	return pm.ID, nil
}

func (s *BunStore) GetProfile(name string) (*model.HPCProfile, error) {
	ctx := context.Background()
	var pm ProfileModel
	err := s.bun.NewSelect().Model(&pm).Where("name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := profileModelToModel(pm)
	return &p, nil
}

func (s *BunStore) GetAllProfiles() ([]model.HPCProfile, error) {
	ctx := context.Background()
	var pms []ProfileModel
	if err := s.bun.NewSelect().Model(&pms).OrderExpr("name").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.HPCProfile, 0, len(pms))
	for _, pm := range pms {
		out = append(out, profileModelToModel(pm))
	}
	return out, nil
}

func (s *BunStore) DeleteProfile(name string) error {
	ctx := context.Background()
	res, err := s.bun.NewDelete().Model((*ProfileModel)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_ = s.LogAction("DELETE_PROFILE", "profile: "+name)
	return nil
}

// --- Known host keys ---

func (s *BunStore) GetKnownHostKey(hostname string) (string, error) {
	ctx := context.Background()
	var km KnownHostModel
	err := s.bun.NewSelect().Model(&km).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return km.Key, nil
}

func (s *BunStore) AddKnownHostKey(hostname, key string) error {
	ctx := context.Background()
	km := KnownHostModel{Hostname: hostname, Key: key}
	// Replace any existing key for the host.
	if _, err := s.bun.NewDelete().Model((*KnownHostModel)(nil)).Where("hostname = ?", hostname).Exec(ctx); err != nil {
		return err
	}
	if _, err := s.bun.NewInsert().Model(&km).Exec(ctx); err != nil {
		return err
	}
	_ = s.LogAction("TRUST_HOST", "host: "+hostname)
	return nil
}

// --- Jobs ---

func (s *BunStore) AddJob(j model.Job) (int, error) {
	ctx := context.Background()
	jm := JobModel{
		Name:        j.Name,
		ProfileName: j.ProfileName,
		SchedulerID: j.SchedulerID,
		Scheduler:   string(j.Scheduler),
		Status:      string(j.Status),
		RemoteDir:   j.RemoteDir,
		SubmitTime:  j.SubmitTime,
		Duration:    j.Duration,
	}
	if jm.SubmitTime.IsZero() {
		jm.SubmitTime = time.Now()
	}
	if _, err := s.bun.NewInsert().Model(&jm).Exec(ctx); err != nil {
		return 0, err
	}
	_ = s.LogAction("SUBMIT_JOB", fmt.Sprintf("job: %s (%s on %s)", j.Name, j.SchedulerID, j.ProfileName))
	return jm.ID, nil
}

func (s *BunStore) GetJob(schedulerID string) (*model.Job, error) {
	ctx := context.Background()
	var jm JobModel
	err := s.bun.NewSelect().Model(&jm).Where("scheduler_id = ?", schedulerID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	j := jobModelToModel(jm)
	return &j, nil
}

func (s *BunStore) GetAllJobs() ([]model.Job, error) {
	ctx := context.Background()
	var jms []JobModel
	if err := s.bun.NewSelect().Model(&jms).OrderExpr("submit_time DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(jms))
	for _, jm := range jms {
		out = append(out, jobModelToModel(jm))
	}
	return out, nil
}

func (s *BunStore) GetActiveJobs() ([]model.Job, error) {
	ctx := context.Background()
	var jms []JobModel
	err := s.bun.NewSelect().Model(&jms).
		Where("status IN (?)", bun.In([]string{string(model.JobPending), string(model.JobRunning), string(model.JobUnknown)})).
		OrderExpr("submit_time DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(jms))
	for _, jm := range jms {
		out = append(out, jobModelToModel(jm))
	}
	return out, nil
}

func (s *BunStore) UpdateJobStatus(schedulerID string, status model.JobStatus, duration string) error {
	ctx := context.Background()
	q := s.bun.NewUpdate().Model((*JobModel)(nil)).
		Set("status = ?", string(status)).
		Where("scheduler_id = ?", schedulerID)
	if duration != "" {
		q = q.Set("duration = ?", duration)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Pipeline runs ---

func (s *BunStore) AddPipelineRun(r model.PipelineRun) (int, error) {
	ctx := context.Background()
	rm := PipelineRunModel{
		UUID:      r.UUID,
		Pipeline:  r.Pipeline,
		Status:    r.Status,
		StartedAt: r.StartedAt,
	}
	if rm.StartedAt.IsZero() {
		rm.StartedAt = time.Now()
	}
	if _, err := s.bun.NewInsert().Model(&rm).Exec(ctx); err != nil {
		return 0, err
	}
	_ = s.LogAction("START_PIPELINE", fmt.Sprintf("pipeline: %s run: %s", r.Pipeline, r.UUID))
	return rm.ID, nil
}

func (s *BunStore) FinishPipelineRun(uuid, status string) error {
	ctx := context.Background()
	res, err := s.bun.NewUpdate().Model((*PipelineRunModel)(nil)).
		Set("status = ?", status).
		Set("finished_at = ?", time.Now()).
		Where("uuid = ?", uuid).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BunStore) GetPipelineRuns() ([]model.PipelineRun, error) {
	ctx := context.Background()
	var rms []PipelineRunModel
	if err := s.bun.NewSelect().Model(&rms).OrderExpr("started_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.PipelineRun, 0, len(rms))
	for _, rm := range rms {
		out = append(out, runModelToModel(rm))
	}
	return out, nil
}

func (s *BunStore) AddStageResult(sr model.StageResult) error {
	ctx := context.Background()
	sm := StageResultModel{
		RunUUID:   sr.RunUUID,
		Stage:     sr.Stage,
		Status:    sr.Status,
		Artifact:  nullString(sr.Artifact),
		Message:   nullString(sr.Message),
		StartedAt: sr.StartedAt,
	}
	if !sr.FinishedAt.IsZero() {
		sm.FinishedAt = sql.NullTime{Time: sr.FinishedAt, Valid: true}
	}
	_, err := s.bun.NewInsert().Model(&sm).Exec(ctx)
	return err
}

func (s *BunStore) GetStageResults(runUUID string) ([]model.StageResult, error) {
	ctx := context.Background()
	var sms []StageResultModel
	err := s.bun.NewSelect().Model(&sms).Where("run_uuid = ?", runUUID).OrderExpr("id").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.StageResult, 0, len(sms))
	for _, sm := range sms {
		out = append(out, stageModelToModel(sm))
	}
	return out, nil
}

// --- Audit log ---

func (s *BunStore) LogAction(action string, details string) error {
	ctx := context.Background()
	am := AuditLogModel{
		Timestamp: time.Now().Format(time.RFC3339),
		Action:    action,
		Details:   details,
	}
	_, err := s.bun.NewInsert().Model(&am).Exec(ctx)
	return err
}

func (s *BunStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var ams []AuditLogModel
	if err := s.bun.NewSelect().Model(&ams).OrderExpr("id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(ams))
	for _, am := range ams {
		out = append(out, model.AuditLogEntry{ID: am.ID, Timestamp: am.Timestamp, Action: am.Action, Details: am.Details})
	}
	return out, nil
}
