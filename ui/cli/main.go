// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for MeshPilot using the
// Cobra library. It defines the root command, subcommands (mesh, nx, doe,
// hpc, pipeline, serve...), flags, and the main entry point for execution.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	_ "github.com/go-sql-driver/mysql" // mysql driver for --db-type mysql
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver for --db-type postgres
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voxaero/meshpilot/buildvars"
	"github.com/voxaero/meshpilot/internal/config"
	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/logging"
	"github.com/voxaero/meshpilot/ui/tui"
)

var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

var cfgFile string
var verbose bool

var appConfig config.Config

// setupDefaultServices loads the configuration, initializes i18n and opens
// the database. It runs before every command.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	logging.SetDebug(verbose)

	defaults := map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./meshpilot.db",
		"language":      "en",
		"gmsh.binary":   "gmsh",
		"web.listen":    ":8250",
	}

	var cfgPath *string
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return fmt.Errorf("could not read --config flag: %w", err)
		}
		if path != "" {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
			}
			cfgPath = &path
		}
	}

	var err error
	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, cfgPath)
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		// First run, or the config file was deleted. Write a starter config
		// but keep going on defaults.
		if path, writeErr := config.WriteDefaultConfig(); writeErr != nil {
			logging.Warnf("could not write default config file: %v", writeErr)
		} else {
			logging.Debugf("wrote default config to %s", path)
		}
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if appConfig.Database.Type == "" {
		appConfig.Database.Type = defaults["database.type"].(string)
	}
	if appConfig.Database.Dsn == "" {
		appConfig.Database.Dsn = defaults["database.dsn"].(string)
	}
	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}
	if appConfig.Gmsh.Binary == "" {
		appConfig.Gmsh.Binary = defaults["gmsh.binary"].(string)
	}
	if appConfig.Web.Listen == "" {
		appConfig.Web.Listen = defaults["web.listen"].(string)
	}

	i18n.Init(appConfig.Language)

	if !db.IsInitialized() {
		if err := db.InitDB(appConfig.Database.Type, appConfig.Database.Dsn); err != nil {
			return errors.New(i18n.T("config.error_init_db", err))
		}
	}

	return nil
}

// Execute runs the CLI entrypoint. The main package should call this
// function and handle process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates and configures a new root cobra command. Tests create
// fresh instances through this function for isolation.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshpilot",
		Short: "MeshPilot is a CFD preprocessing and HPC job orchestration tool.",
		Long: `MeshPilot automates the path from CAD to a running CFD job.
It drives Siemens NX journals to export parametrized STEP geometry,
meshes it with Gmsh behind a fallback ladder, validates the result,
generates DOE sample plans, and submits jobs to SLURM, PBS or LSF
clusters over SSH. A database tracks profiles, jobs and pipeline runs.

Running without a subcommand will launch the interactive TUI.`,
		PersistentPreRunE: setupDefaultServices,
		Run: func(cmd *cobra.Command, args []string) {
			// Config, i18n and the database are ready; run the dashboard.
			tui.Run()
		},
	}

	cmd.Version = resolveBuildVersion(nil)

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) output")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("language", "en", `output language ("en", "de")`)
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./meshpilot.db", "Database connection string (DSN)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// No services needed just to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\n", resolveBuildVersion(nil))
			fmt.Printf("commit: %s\n", gitCommit)
			if buildDate != "" {
				fmt.Printf("built: %s\n", buildDate)
			}
		},
	}

	cmd.AddCommand(
		newMeshCmd(),
		newRefineCmd(),
		newValidateCmd(),
		newConvertCmd(),
		newNXCmd(),
		newDOECmd(),
		newHPCCmd(),
		newProfileCmd(),
		newPipelineCmd(),
		newServeCmd(),
		newMaintenanceCmd(),
		versionCmd,
	)

	return cmd
}

// resolveBuildVersion computes the best-available version for the running
// binary: linker-injected first, then VCS build info, then "dev".
func resolveBuildVersion(info *debug.BuildInfo) string {
	if v := buildvars.VersionOrDefault(""); v != "" {
		return v
	}

	if info == nil {
		info, _ = debug.ReadBuildInfo()
	}
	if info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	if gitCommit != "dev" && gitCommit != "" {
		return gitCommit
	}
	return "dev"
}
