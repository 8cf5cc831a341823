// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package doe

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func testVars() []Variable {
	return []Variable{
		{Name: "inlet_diameter", Min: 20, Max: 40, Unit: "mm"},
		{Name: "duct_length", Min: 100, Max: 300, Unit: "mm"},
		{Name: "bend_angle", Min: 0, Max: 45, Unit: "deg"},
	}
}

func inBounds(t *testing.T, vars []Variable, samples [][]float64) {
	t.Helper()
	for i, s := range samples {
		if len(s) != len(vars) {
			t.Fatalf("sample %d has %d coordinates, want %d", i, len(s), len(vars))
		}
		for j, v := range s {
			if v < vars[j].Min-1e-9 || v > vars[j].Max+1e-9 {
				t.Errorf("sample %d var %s: %g outside [%g, %g]", i, vars[j].Name, v, vars[j].Min, vars[j].Max)
			}
		}
	}
}

func TestNewSamplerValidation(t *testing.T) {
	if _, err := NewSampler(nil, 0); err == nil {
		t.Error("expected error for empty variables")
	}
	if _, err := NewSampler([]Variable{{Name: "x", Min: 1, Max: 1}}, 0); err == nil {
		t.Error("expected error for empty range")
	}
	if _, err := NewSampler([]Variable{{Name: "x", Min: 0, Max: 1}, {Name: "x", Min: 0, Max: 1}}, 0); err == nil {
		t.Error("expected error for duplicate names")
	}
}

func TestLatinHypercubeStratification(t *testing.T) {
	s, err := NewSampler(testVars(), 42)
	if err != nil {
		t.Fatal(err)
	}
	const n = 20
	samples, err := s.Generate(PlanLatinHypercube, n)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != n {
		t.Fatalf("got %d samples, want %d", len(samples), n)
	}
	inBounds(t, s.Vars, samples)

	// Each axis must hit every stratum exactly once.
	for j, v := range s.Vars {
		hit := make([]bool, n)
		for _, sample := range samples {
			u := (sample[j] - v.Min) / (v.Max - v.Min)
			k := int(u * n)
			if k == n {
				k = n - 1
			}
			if hit[k] {
				t.Errorf("var %s: stratum %d hit twice", v.Name, k)
			}
			hit[k] = true
		}
	}
}

func TestGenerateReproducible(t *testing.T) {
	s, _ := NewSampler(testVars(), 7)
	a, err := s.Generate(PlanLatinHypercube, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Generate(PlanLatinHypercube, 10)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different plans")
	}

	s2, _ := NewSampler(testVars(), 8)
	c, _ := s2.Generate(PlanLatinHypercube, 10)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical plans")
	}
}

func TestFullFactorial(t *testing.T) {
	s, _ := NewSampler(testVars(), 0)
	samples, err := s.Generate(PlanFullFactorial, 27)
	if err != nil {
		t.Fatal(err)
	}
	// 27 requested over 3 variables gives 3 levels per axis.
	if len(samples) != 27 {
		t.Fatalf("got %d samples, want 27", len(samples))
	}
	inBounds(t, s.Vars, samples)

	// Small hint floors at 2 levels.
	samples, err = s.Generate(PlanFullFactorial, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 8 {
		t.Errorf("got %d samples, want 8", len(samples))
	}
}

func TestCentralComposite(t *testing.T) {
	s, _ := NewSampler(testVars(), 0)
	samples, err := s.Generate(PlanCentralComposite, 1)
	if err != nil {
		t.Fatal(err)
	}
	// center + 2^3 corners + 2*3 axial points
	if len(samples) != 1+8+6 {
		t.Fatalf("got %d samples, want 15", len(samples))
	}
	inBounds(t, s.Vars, samples)

	center := samples[0]
	for j, v := range s.Vars {
		want := (v.Min + v.Max) / 2
		if math.Abs(center[j]-want) > 1e-12 {
			t.Errorf("center var %s: got %g, want %g", v.Name, center[j], want)
		}
	}
}

func TestBoxBehnken(t *testing.T) {
	s, _ := NewSampler(testVars(), 0)
	samples, err := s.Generate(PlanBoxBehnken, 1)
	if err != nil {
		t.Fatal(err)
	}
	// center + 4 points per variable pair, C(3,2)=3 pairs
	if len(samples) != 1+3*4 {
		t.Fatalf("got %d samples, want 13", len(samples))
	}
	inBounds(t, s.Vars, samples)

	two, _ := NewSampler(testVars()[:2], 0)
	if _, err := two.Generate(PlanBoxBehnken, 1); err == nil {
		t.Error("expected error for 2-variable box_behnken")
	}
}

func TestHalton(t *testing.T) {
	s, _ := NewSampler(testVars(), 0)
	samples, err := s.Generate(PlanHalton, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 16 {
		t.Fatalf("got %d samples, want 16", len(samples))
	}
	inBounds(t, s.Vars, samples)

	// First halton point in base 2 is 1/2.
	u := (samples[0][0] - s.Vars[0].Min) / (s.Vars[0].Max - s.Vars[0].Min)
	if math.Abs(u-0.5) > 1e-12 {
		t.Errorf("first base-2 coordinate: got %g, want 0.5", u)
	}
}

func TestGenerateUnknownPlan(t *testing.T) {
	s, _ := NewSampler(testVars(), 0)
	if _, err := s.Generate("sobol_scrambled", 10); err == nil {
		t.Error("expected error for unknown plan")
	}
}

func TestBestPoint(t *testing.T) {
	results := []Result{
		{Point: []float64{1}, Objectives: map[string]float64{"drag": 3.0}},
		{Point: []float64{2}, Objectives: map[string]float64{"drag": 1.5}},
		{Point: []float64{3}, Objectives: map[string]float64{"drag": 2.0}},
	}
	best, err := BestPoint(results, "drag", true)
	if err != nil {
		t.Fatal(err)
	}
	if best.Point[0] != 2 {
		t.Errorf("minimize: got point %v", best.Point)
	}
	best, _ = BestPoint(results, "drag", false)
	if best.Point[0] != 1 {
		t.Errorf("maximize: got point %v", best.Point)
	}
	if _, err := BestPoint(results, "lift", true); err == nil {
		t.Error("expected error for missing objective")
	}
}

func TestParetoPoints(t *testing.T) {
	results := []Result{
		{Point: []float64{1}, Objectives: map[string]float64{"drag": 1.0, "distortion": 3.0}},
		{Point: []float64{2}, Objectives: map[string]float64{"drag": 2.0, "distortion": 2.0}},
		{Point: []float64{3}, Objectives: map[string]float64{"drag": 3.0, "distortion": 1.0}},
		{Point: []float64{4}, Objectives: map[string]float64{"drag": 3.0, "distortion": 3.0}}, // dominated
	}
	front, err := ParetoPoints(results, []string{"drag", "distortion"})
	if err != nil {
		t.Fatal(err)
	}
	if len(front) != 3 {
		t.Fatalf("got %d pareto points, want 3", len(front))
	}
	for _, r := range front {
		if r.Point[0] == 4 {
			t.Error("dominated point in front")
		}
	}
}

func TestAnalyze(t *testing.T) {
	// drag grows with x, distortion shrinks.
	var results []Result
	for i := 0; i < 10; i++ {
		x := float64(i)
		results = append(results, Result{
			Point:      []float64{x},
			Objectives: map[string]float64{"drag": 2 * x, "distortion": -x},
		})
	}
	a, err := Analyze([]string{"x"}, results)
	if err != nil {
		t.Fatal(err)
	}
	if a.NumSamples != 10 {
		t.Errorf("num samples %d, want 10", a.NumSamples)
	}
	if got := a.Stats["drag"].Min; got != 0 {
		t.Errorf("drag min %g, want 0", got)
	}
	if got := a.Stats["drag"].Max; got != 18 {
		t.Errorf("drag max %g, want 18", got)
	}
	if c := a.Correlations["drag"]["x"]; math.Abs(c-1) > 1e-9 {
		t.Errorf("drag correlation %g, want 1", c)
	}
	if c := a.Correlations["distortion"]["x"]; math.Abs(c+1) > 1e-9 {
		t.Errorf("distortion correlation %g, want -1", c)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	s, _ := NewSampler(testVars(), 3)
	samples, _ := s.Generate(PlanRandom, 5)

	path := filepath.Join(t.TempDir(), "samples.csv")
	if err := ExportCSV(s.Names(), samples, path); err != nil {
		t.Fatal(err)
	}
	names, got, err := ImportCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, s.Names()) {
		t.Errorf("names %v, want %v", names, s.Names())
	}
	if len(got) != len(samples) {
		t.Fatalf("got %d rows, want %d", len(got), len(samples))
	}
	for i := range got {
		for j := range got[i] {
			if math.Abs(got[i][j]-samples[i][j]) > 1e-5 {
				t.Errorf("row %d col %d: %g vs %g", i, j, got[i][j], samples[i][j])
			}
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s, _ := NewSampler(testVars(), 3)
	samples, _ := s.Generate(PlanLatinHypercube, 4)
	results := []Result{{Point: samples[0], Objectives: map[string]float64{"drag": 1.2}}}

	path := filepath.Join(t.TempDir(), "study.json")
	if err := ExportJSON(PlanLatinHypercube, s.Names(), samples, results, path); err != nil {
		t.Fatal(err)
	}
	plan, names, gotSamples, gotResults, err := ImportJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if plan != PlanLatinHypercube {
		t.Errorf("plan %q", plan)
	}
	if !reflect.DeepEqual(names, s.Names()) {
		t.Errorf("names %v", names)
	}
	if !reflect.DeepEqual(gotSamples, samples) {
		t.Error("samples do not round trip")
	}
	if len(gotResults) != 1 || gotResults[0].Objectives["drag"] != 1.2 {
		t.Errorf("results do not round trip: %+v", gotResults)
	}
}
