// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package web serves the MeshPilot control panel: a JSON REST surface over
// profiles, jobs, pipeline runs and mesh validation. It is the browser-facing
// counterpart of the CLI and is started with `meshpilot serve`.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/pipeline"
)

// Server wires the REST handlers to their backing services.
type Server struct {
	store  db.Store
	jobs   JobController
	runner *pipeline.Runner
	log    *zap.Logger
	engine *gin.Engine
}

// New builds a Server. A nil logger falls back to zap.NewNop; a nil
// controller falls back to the SSH-backed one.
func New(store db.Store, jobs JobController, runner *pipeline.Runner, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if jobs == nil {
		jobs = &sshController{store: store}
	}
	if runner == nil {
		runner = pipeline.NewRunner(store)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: store, jobs: jobs, runner: runner, log: log}
	s.engine = gin.New()
	s.engine.Use(RequestLogger(log), Recovery(log))
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api/v1")
	api.GET("/profiles", s.listProfiles)
	api.POST("/profiles", s.createProfile)
	api.GET("/profiles/:name", s.getProfile)
	api.DELETE("/profiles/:name", s.deleteProfile)

	api.GET("/jobs", s.listJobs)
	api.POST("/jobs", s.submitJob)
	api.GET("/jobs/:id", s.jobStatus)
	api.DELETE("/jobs/:id", s.cancelJob)

	api.GET("/runs", s.listRuns)
	api.GET("/runs/:uuid", s.getRun)
	api.POST("/pipelines/run", s.runPipeline)

	api.POST("/validate", s.validateMesh)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("control panel listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control panel failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("control panel shutting down")
	return srv.Shutdown(shutdownCtx)
}
