// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package web

import (
	"context"
	"fmt"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/model"
)

// JobController performs the cluster-side job operations on behalf of the
// REST handlers. The production implementation opens an SSH connection per
// call; tests substitute a fake.
type JobController interface {
	Submit(ctx context.Context, profileName string, req hpc.JobRequest, inputFiles []string) (*model.Job, error)
	Status(ctx context.Context, profileName, schedulerID string) (model.JobStatus, error)
	Cancel(ctx context.Context, profileName, schedulerID string) error
}

type sshController struct {
	store db.Store
}

func (s *sshController) connect(profileName string) (*hpc.Connector, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	profile, err := s.store.GetProfile(profileName)
	if err != nil {
		return nil, fmt.Errorf("unknown profile %q: %w", profileName, err)
	}
	return hpc.Connect(*profile, "")
}

func (s *sshController) Submit(ctx context.Context, profileName string, req hpc.JobRequest, inputFiles []string) (*model.Job, error) {
	conn, err := s.connect(profileName)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if req.Queue == "" {
		req.Queue = conn.Profile().Queue
	}
	return conn.Submit(ctx, req, inputFiles)
}

func (s *sshController) Status(ctx context.Context, profileName, schedulerID string) (model.JobStatus, error) {
	conn, err := s.connect(profileName)
	if err != nil {
		return model.JobUnknown, err
	}
	defer conn.Close()
	return conn.Status(ctx, schedulerID)
}

func (s *sshController) Cancel(ctx context.Context, profileName, schedulerID string) error {
	conn, err := s.connect(profileName)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Cancel(ctx, schedulerID)
}
