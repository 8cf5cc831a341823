// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"runtime/debug"
	"testing"
)

func TestRootSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := []string{
		"mesh", "refine", "validate", "convert", "nx", "doe", "hpc",
		"profile", "pipeline", "serve", "maintenance", "version",
	}
	have := map[string]bool{}
	for _, sub := range cmd.Commands() {
		have[sub.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestResolveBuildVersion(t *testing.T) {
	info := &debug.BuildInfo{}
	info.Main.Version = "v1.4.0"
	if got := resolveBuildVersion(info); got != "v1.4.0" {
		t.Errorf("got %q", got)
	}

	info = &debug.BuildInfo{
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc1234"}},
	}
	if got := resolveBuildVersion(info); got != "abc1234" {
		t.Errorf("got %q", got)
	}
}

func TestParseExprFlags(t *testing.T) {
	exprs, err := parseExprFlags([]string{"inlet_diameter=25.4", "bend_angle=30"}, "mm")
	if err != nil {
		t.Fatal(err)
	}
	if len(exprs) != 2 {
		t.Fatalf("got %d expressions", len(exprs))
	}
	if exprs[0].Name != "inlet_diameter" || exprs[0].Value != "25.4" || exprs[0].Unit != "mm" {
		t.Errorf("expr: %+v", exprs[0])
	}

	if _, err := parseExprFlags([]string{"noequals"}, ""); err == nil {
		t.Error("expected error for missing =")
	}
	if _, err := parseExprFlags([]string{"x=abc"}, ""); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestParseVarFlags(t *testing.T) {
	vars, err := parseVarFlags([]string{"inlet_diameter=20:40:mm", "bend_angle=0:45"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 2 {
		t.Fatalf("got %d vars", len(vars))
	}
	if vars[0].Min != 20 || vars[0].Max != 40 || vars[0].Unit != "mm" {
		t.Errorf("var: %+v", vars[0])
	}
	if vars[1].Unit != "" {
		t.Errorf("var: %+v", vars[1])
	}

	for _, bad := range []string{"novalue", "x=1", "x=1:2:mm:extra", "x=a:2"} {
		if _, err := parseVarFlags([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestMeshFlagsOutput(t *testing.T) {
	f := meshFlags{}
	if got := f.outputFor("intake.step"); got != "intake.msh" {
		t.Errorf("got %q", got)
	}
	f.output = "custom.msh"
	if got := f.outputFor("intake.step"); got != "custom.msh" {
		t.Errorf("got %q", got)
	}
}
