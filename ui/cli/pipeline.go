// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/pipeline"
	"github.com/voxaero/meshpilot/internal/web"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run and inspect preprocessing pipelines",
	}
	cmd.AddCommand(newPipelineRunCmd(), newPipelineRunsCmd())
	return cmd
}

func newPipelineRunCmd() *cobra.Command {
	var workdir string

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Execute a pipeline definition",
		Long: `Runs the stages of a YAML pipeline definition in order: nx-export,
mesh, validate, convert, submit and fetch stages thread their outputs
from one stage to the next. Stage results are recorded in the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}
			if workdir != "" {
				def.WorkDir = workdir
			}

			runner := pipeline.NewRunner(db.Active())
			report, err := runner.Run(cmd.Context(), def)
			if err != nil {
				return err
			}

			for _, stage := range report.Stages {
				if stage.Status == pipeline.StatusFailed {
					fmt.Println(i18n.T("pipeline.stage_failed", stage.Stage, stage.Message))
				} else {
					fmt.Println(i18n.T("pipeline.stage_done", stage.Stage,
						stage.FinishedAt.Sub(stage.StartedAt).Round(10*time.Millisecond)))
				}
			}
			fmt.Println(i18n.T("pipeline.done", report.UUID, report.Status))
			if report.Status != pipeline.StatusCompleted {
				return fmt.Errorf("pipeline %s failed", def.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workdir, "workdir", "", "working directory for relative stage paths")
	return cmd
}

func newPipelineRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := db.GetPipelineRuns()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "UUID\tPIPELINE\tSTATUS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.UUID, r.Pipeline, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web control panel",
		Long: `Serves the REST control panel: profiles, job submission and tracking,
pipeline runs and mesh validation uploads. Shuts down gracefully on
SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := listen
			if addr == "" {
				addr = appConfig.Web.Listen
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println(i18n.T("serve.listening", addr))
			server := web.New(db.Active(), nil, nil, logger)
			return server.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}

func newMaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "Run database maintenance",
		Long:  `Compacts and analyzes the database (VACUUM/ANALYZE per engine).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunDBMaintenance(appConfig.Database.Type, appConfig.Database.Dsn); err != nil {
				return err
			}
			fmt.Println(i18n.T("maintenance.done"))
			return nil
		},
	}
}
