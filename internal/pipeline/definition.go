// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package pipeline runs staged preprocessing workflows from YAML
// definitions: NX export, meshing, validation, conversion, HPC submission
// and result retrieval, with artifacts threaded from stage to stage.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Stage type identifiers.
const (
	StageNXExport = "nx-export"
	StageMesh     = "mesh"
	StageValidate = "validate"
	StageConvert  = "convert"
	StageSubmit   = "submit"
	StageFetch    = "fetch"
)

// StageTypes lists the built-in stage types.
var StageTypes = []string{StageNXExport, StageMesh, StageValidate, StageConvert, StageSubmit, StageFetch}

// StageDef is one stage of a pipeline definition.
type StageDef struct {
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	Params          map[string]any `yaml:"params"`
	ContinueOnError bool           `yaml:"continue_on_error"`
	Retries         int            `yaml:"retries"`
	Timeout         string         `yaml:"timeout"` // Go duration, empty for none
}

// timeout parses the stage timeout, zero when unset.
func (s StageDef) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("stage %s: invalid timeout %q: %w", s.Name, s.Timeout, err)
	}
	return d, nil
}

// Definition is a parsed pipeline file.
type Definition struct {
	Name    string     `yaml:"name"`
	WorkDir string     `yaml:"workdir"`
	Stages  []StageDef `yaml:"stages"`
}

// Load reads and validates a pipeline definition.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML pipeline definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural constraints on the definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline has no name")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", d.Name)
	}
	known := make(map[string]bool, len(StageTypes))
	for _, t := range StageTypes {
		known[t] = true
	}
	names := make(map[string]bool)
	for i, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		names[s.Name] = true
		if !known[s.Type] {
			return fmt.Errorf("stage %s: unknown type %q", s.Name, s.Type)
		}
		if s.Retries < 0 {
			return fmt.Errorf("stage %s: negative retries", s.Name)
		}
		if _, err := s.timeout(); err != nil {
			return err
		}
	}
	return nil
}

// decodeParams maps the loosely typed stage params onto a typed struct by
// round-tripping through YAML.
func decodeParams(params map[string]any, out any) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid stage params: %w", err)
	}
	return nil
}
