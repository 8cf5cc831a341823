// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voxaero/meshpilot/buildvars"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/meshio"
	"github.com/voxaero/meshpilot/internal/model"
	"github.com/voxaero/meshpilot/internal/pipeline"
)

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": buildvars.VersionOrDefault("dev"),
	})
}

// profileRequest is the create payload. The private key never travels over
// the API, only its path on the server host.
type profileRequest struct {
	Name      string `json:"name" binding:"required"`
	Hostname  string `json:"hostname" binding:"required"`
	Port      int    `json:"port"`
	Username  string `json:"username" binding:"required"`
	Auth      string `json:"auth"`
	KeyPath   string `json:"key_path"`
	Scheduler string `json:"scheduler"`
	RemoteDir string `json:"remote_dir"`
	Queue     string `json:"queue"`
}

func (s *Server) listProfiles(c *gin.Context) {
	profiles, err := s.store.GetAllProfiles()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (s *Server) createProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if req.Auth == "" {
		req.Auth = string(model.AuthAgent)
	}
	p := model.HPCProfile{
		Name:      req.Name,
		Hostname:  req.Hostname,
		Port:      req.Port,
		Username:  req.Username,
		Auth:      model.AuthMethod(req.Auth),
		KeyPath:   req.KeyPath,
		Scheduler: model.SchedulerType(req.Scheduler),
		RemoteDir: req.RemoteDir,
		Queue:     req.Queue,
	}
	id, err := s.store.AddProfile(p)
	if err != nil {
		fail(c, http.StatusConflict, err)
		return
	}
	p.ID = id
	s.log.Info("profile created", zap.String("name", p.Name), zap.String("host", p.Hostname))
	c.JSON(http.StatusCreated, p)
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.store.GetProfile(c.Param("name"))
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProfile(c *gin.Context) {
	name := c.Param("name")
	if err := s.store.DeleteProfile(name); err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	s.log.Info("profile deleted", zap.String("name", name))
	c.Status(http.StatusNoContent)
}

func (s *Server) listJobs(c *gin.Context) {
	var (
		jobs []model.Job
		err  error
	)
	if c.Query("active") == "true" {
		jobs, err = s.store.GetActiveJobs()
	} else {
		jobs, err = s.store.GetAllJobs()
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// submitRequest is the job submission payload.
type submitRequest struct {
	Profile      string   `json:"profile" binding:"required"`
	Name         string   `json:"name"`
	Nodes        int      `json:"nodes"`
	CoresPerNode int      `json:"cores_per_node"`
	Walltime     string   `json:"walltime"`
	Memory       string   `json:"memory"`
	Queue        string   `json:"queue"`
	Modules      []string `json:"modules"`
	Commands     []string `json:"commands" binding:"required"`
	InputFiles   []string `json:"input_files"`
}

func (s *Server) submitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	job, err := s.jobs.Submit(c.Request.Context(), req.Profile, hpc.JobRequest{
		Name:         req.Name,
		Nodes:        req.Nodes,
		CoresPerNode: req.CoresPerNode,
		Walltime:     req.Walltime,
		Memory:       req.Memory,
		Queue:        req.Queue,
		Modules:      req.Modules,
		Commands:     req.Commands,
	}, req.InputFiles)
	if err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	s.log.Info("job submitted",
		zap.String("id", job.SchedulerID),
		zap.String("profile", req.Profile),
	)
	c.JSON(http.StatusCreated, job)
}

func (s *Server) jobStatus(c *gin.Context) {
	id := c.Param("id")
	job, err := s.store.GetJob(id)
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	// Refresh from the cluster unless the job already finished.
	if !job.Status.Terminal() {
		status, err := s.jobs.Status(c.Request.Context(), job.ProfileName, id)
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		job.Status = status
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) cancelJob(c *gin.Context) {
	id := c.Param("id")
	job, err := s.store.GetJob(id)
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err := s.jobs.Cancel(c.Request.Context(), job.ProfileName, id); err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	s.log.Info("job cancelled", zap.String("id", id))
	c.Status(http.StatusNoContent)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.GetPipelineRuns()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	runUUID := c.Param("uuid")
	stages, err := s.store.GetStageResults(runUUID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if len(stages) == 0 {
		fail(c, http.StatusNotFound, fmt.Errorf("no run %s", runUUID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": runUUID, "stages": stages})
}

// runPipeline accepts a YAML pipeline definition in the request body and
// starts it in the background. Progress is tracked via /runs.
func (s *Server) runPipeline(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	def, err := pipeline.Parse(body)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	// The request context dies with the response; the run gets its own.
	go func() {
		report, err := s.runner.Run(context.Background(), def)
		if err != nil {
			s.log.Error("pipeline run failed", zap.String("pipeline", def.Name), zap.Error(err))
			return
		}
		s.log.Info("pipeline run finished",
			zap.String("pipeline", def.Name),
			zap.String("uuid", report.UUID),
			zap.String("status", report.Status),
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{"pipeline": def.Name, "status": "STARTED"})
}

// validateMesh accepts a mesh upload ("mesh" form field) and returns the
// validation report without persisting the file.
func (s *Server) validateMesh(c *gin.Context) {
	file, err := c.FormFile("mesh")
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".msh" && ext != ".su2" {
		fail(c, http.StatusBadRequest, fmt.Errorf("unsupported mesh format: %s", ext))
		return
	}

	tmpDir, err := os.MkdirTemp("", "meshpilot-upload-*")
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, "upload"+ext)
	if err := c.SaveUploadedFile(file, tmpFile); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	mesh, err := meshio.ReadMeshFile(tmpFile)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err)
		return
	}

	opts := meshio.DefaultValidateOptions()
	if q := c.Query("min_quality"); q != "" {
		if _, err := fmt.Sscanf(q, "%g", &opts.MinQuality); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("bad min_quality: %w", err))
			return
		}
	}
	opts.Solver = c.Query("solver")

	report, err := meshio.Validate(mesh, opts)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
