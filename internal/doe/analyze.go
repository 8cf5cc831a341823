// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package doe

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Result is one evaluated sample: the design point plus the objective
// values measured for it.
type Result struct {
	Point      []float64          `json:"point"`
	Objectives map[string]float64 `json:"objectives"`
}

// BestPoint returns the result with the lowest (or highest) value of the
// named objective.
func BestPoint(results []Result, objective string, minimize bool) (Result, error) {
	if len(results) == 0 {
		return Result{}, fmt.Errorf("no results to rank")
	}
	bestIdx := -1
	var bestVal float64
	for i, r := range results {
		v, ok := r.Objectives[objective]
		if !ok {
			return Result{}, fmt.Errorf("result %d has no objective %q", i, objective)
		}
		if bestIdx < 0 || (minimize && v < bestVal) || (!minimize && v > bestVal) {
			bestIdx, bestVal = i, v
		}
	}
	return results[bestIdx], nil
}

// ParetoPoints returns the non-dominated subset of results under
// minimization of all named objectives. A point is dominated when another
// point is no worse on every objective and strictly better on one.
func ParetoPoints(results []Result, objectives []string) ([]Result, error) {
	if len(objectives) < 2 {
		return nil, fmt.Errorf("pareto analysis needs at least 2 objectives, got %d", len(objectives))
	}
	vals := make([][]float64, len(results))
	for i, r := range results {
		row := make([]float64, len(objectives))
		for j, name := range objectives {
			v, ok := r.Objectives[name]
			if !ok {
				return nil, fmt.Errorf("result %d has no objective %q", i, name)
			}
			row[j] = v
		}
		vals[i] = row
	}

	var front []Result
	for i := range results {
		dominated := false
		for j := range results {
			if i == j {
				continue
			}
			allLE, anyLT := true, false
			for k := range objectives {
				if vals[j][k] > vals[i][k] {
					allLE = false
					break
				}
				if vals[j][k] < vals[i][k] {
					anyLT = true
				}
			}
			if allLE && anyLT {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, results[i])
		}
	}
	return front, nil
}

// ObjectiveStats summarizes one objective across the study.
type ObjectiveStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Median float64 `json:"median"`
}

// Analysis is the statistical summary of an evaluated study.
type Analysis struct {
	NumSamples   int                           `json:"num_samples"`
	Stats        map[string]ObjectiveStats     `json:"stats"`
	Correlations map[string]map[string]float64 `json:"correlations"`
}

// Analyze computes per-objective statistics and the Pearson correlation of
// every design variable against every objective. The correlations are the
// cheap sensitivity screen used to prune variables before optimization.
func Analyze(varNames []string, results []Result) (*Analysis, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to analyze")
	}

	objNames := make([]string, 0, len(results[0].Objectives))
	for name := range results[0].Objectives {
		objNames = append(objNames, name)
	}
	sort.Strings(objNames)

	a := &Analysis{
		NumSamples:   len(results),
		Stats:        make(map[string]ObjectiveStats),
		Correlations: make(map[string]map[string]float64),
	}

	for _, obj := range objNames {
		y := make([]float64, len(results))
		for i, r := range results {
			v, ok := r.Objectives[obj]
			if !ok {
				return nil, fmt.Errorf("result %d has no objective %q", i, obj)
			}
			y[i] = v
		}

		sorted := append([]float64(nil), y...)
		sort.Float64s(sorted)
		mean, std := stat.MeanStdDev(y, nil)
		a.Stats[obj] = ObjectiveStats{
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
			Mean:   mean,
			StdDev: std,
			Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		}

		corr := make(map[string]float64, len(varNames))
		for j, name := range varNames {
			x := make([]float64, len(results))
			for i, r := range results {
				if j >= len(r.Point) {
					return nil, fmt.Errorf("result %d has %d coordinates, want %d", i, len(r.Point), len(varNames))
				}
				x[i] = r.Point[j]
			}
			corr[name] = stat.Correlation(x, y, nil)
		}
		a.Correlations[obj] = corr
	}
	return a, nil
}
