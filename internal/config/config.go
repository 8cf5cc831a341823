// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the layered MeshPilot configuration: defaults,
// YAML config file, environment variables and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the typed MeshPilot configuration.
type Config struct {
	Database struct {
		Type string `mapstructure:"type"`
		Dsn  string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Language string `mapstructure:"language"`
	Gmsh     struct {
		Binary string `mapstructure:"binary"`
	} `mapstructure:"gmsh"`
	NX struct {
		RunJournal string `mapstructure:"run_journal"`
	} `mapstructure:"nx"`
	Web struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"web"`
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "MeshPilot")
		default: // Linux, macOS, etc.
			configDir = "/etc/meshpilot"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "meshpilot")
	}

	return filepath.Join(configDir, "meshpilot.yaml"), nil
}

// LoadConfig builds the typed configuration for a command. Precedence, from
// lowest to highest: defaults, config file, environment, CLI flags.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, cfgFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("meshpilot")
	v.SetConfigType("yaml")

	// Explicit config file path from the --config flag has the highest
	// precedence for file-based configuration.
	if cfgFile != nil && *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // Look for meshpilot.yaml in current dir

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("meshpilot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteDefaultConfig writes a commented starter config to the user config
// location if none exists yet. It returns the path written, or the existing
// path if a config file was already present.
func WriteDefaultConfig() (string, error) {
	path, err := getConfigPath(false)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	content := `# MeshPilot configuration
database:
  type: sqlite
  dsn: ./meshpilot.db
language: en
gmsh:
  binary: gmsh
web:
  listen: ":8250"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("could not write default config: %w", err)
	}
	return path, nil
}
