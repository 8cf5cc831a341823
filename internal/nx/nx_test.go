// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package nx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpressionConstructors(t *testing.T) {
	cases := []struct {
		expr      Expression
		wantType  string
		wantValue string
	}{
		{Number("inlet_diameter", 25.4, "mm"), TypeNumber, "25.4"},
		{Number("ratio", 0.5, ""), TypeNumber, "0.5"},
		{Integer("blade_count", 7), TypeInteger, "7"},
		{String("variant", "short_duct"), TypeString, "short_duct"},
		{Point("throat_center", [3]float64{1, 2.5, -3}), TypePoint, "Point(1;2.5;-3)"},
	}
	for _, tc := range cases {
		if tc.expr.Type != tc.wantType {
			t.Errorf("%s: type %q, want %q", tc.expr.Name, tc.expr.Type, tc.wantType)
		}
		if tc.expr.Value != tc.wantValue {
			t.Errorf("%s: value %q, want %q", tc.expr.Name, tc.expr.Value, tc.wantValue)
		}
		if err := tc.expr.Validate(); err != nil {
			t.Errorf("%s: unexpected validation error: %v", tc.expr.Name, err)
		}
	}
}

func TestExpressionValidate(t *testing.T) {
	bad := []Expression{
		{Name: "", Type: TypeNumber, Value: "1"},
		{Name: "a b", Type: TypeNumber, Value: "1"},
		{Name: "x", Type: TypeNumber, Value: "not-a-number"},
		{Name: "x", Type: "matrix", Value: "1"},
		{Name: "x", Type: TypeString, Value: "a,b"},
	}
	for i, e := range bad {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, e)
		}
	}
}

func TestExpFileRoundTrip(t *testing.T) {
	exprs := []Expression{
		Number("inlet_diameter", 25.4, "mm"),
		Integer("blade_count", 7),
		String("variant", "short_duct"),
	}
	exprs[0].Comment = "primary design variable, from DOE"

	path, err := WriteExpFile(exprs, filepath.Join(t.TempDir(), "design"), false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, ".exp") {
		t.Errorf("expected .exp extension, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# NX Expressions File") {
		t.Error("missing file header")
	}
	// Commas in comments are rewritten so the line stays parseable.
	if !strings.Contains(string(data), "primary design variable; from DOE") {
		t.Error("comment separator not normalized")
	}

	got, err := ReadExpFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(exprs) {
		t.Fatalf("read %d expressions, want %d", len(got), len(exprs))
	}
	for i := range got {
		if got[i].Name != exprs[i].Name || got[i].Type != exprs[i].Type || got[i].Value != exprs[i].Value {
			t.Errorf("expression %d: got %+v, want %+v", i, got[i], exprs[i])
		}
	}
	if v, err := got[0].Float(); err != nil || v != 25.4 {
		t.Errorf("Float() = %g, %v; want 25.4", v, err)
	}
}

func TestWriteExpFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.exp")
	if _, err := WriteExpFile([]Expression{Number("a", 1, "")}, path, false); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteExpFile([]Expression{Number("b", 2, "")}, path, true); err != nil {
		t.Fatal(err)
	}
	got, err := ReadExpFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expressions after append, got %d", len(got))
	}
	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "# NX Expressions File") != 1 {
		t.Error("append duplicated the header")
	}
}

func TestHostPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/mnt/c/Users/test/part.prt", `C:\Users\test\part.prt`},
		{"/mnt/d/work/intake.step", `D:\work\intake.step`},
		{`C:\already\windows.prt`, `C:\already\windows.prt`},
		{"/home/user/part.prt", "/home/user/part.prt"},
		{"relative/path.prt", "relative/path.prt"},
	}
	for _, tc := range cases {
		if got := hostPath(tc.in); got != tc.want {
			t.Errorf("hostPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLocateRunJournalConfigured(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "run_journal.exe")
	if err := os.WriteFile(exe, []byte{}, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := LocateRunJournal(exe)
	if err != nil {
		t.Fatal(err)
	}
	if got != exe {
		t.Errorf("got %s, want %s", got, exe)
	}

	if _, err := LocateRunJournal(filepath.Join(t.TempDir(), "missing.exe")); err == nil {
		t.Error("expected error for missing configured path")
	}
}

func TestEmbeddedJournals(t *testing.T) {
	for _, name := range []string{"journals/update_export.py", "journals/export_expressions.py"} {
		data, err := journalFS.ReadFile(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(string(data), "NXOpen") {
			t.Errorf("%s: does not reference NXOpen", name)
		}
	}
}
