// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package doe generates design-of-experiments sample plans over a set of
// bounded design variables and analyzes the evaluated results. Plans feed
// the NX export stage: each sample row becomes one expression set.
package doe

import (
	"fmt"
	"math"
	"math/rand"
)

// Plan identifiers.
const (
	PlanLatinHypercube   = "latin_hypercube"
	PlanRandom           = "random"
	PlanFullFactorial    = "full_factorial"
	PlanCentralComposite = "central_composite"
	PlanBoxBehnken       = "box_behnken"
	PlanHalton           = "halton"
)

// Plans lists the supported plan identifiers.
var Plans = []string{
	PlanLatinHypercube,
	PlanRandom,
	PlanFullFactorial,
	PlanCentralComposite,
	PlanBoxBehnken,
	PlanHalton,
}

// Variable is one bounded design variable.
type Variable struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Unit string  `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// Sampler generates sample plans. A fixed Seed makes plans reproducible
// across runs, which matters when a study is resumed.
type Sampler struct {
	Vars []Variable
	Seed int64
}

// NewSampler validates the variables and returns a Sampler.
func NewSampler(vars []Variable, seed int64) (*Sampler, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("no design variables")
	}
	seen := make(map[string]bool)
	for i, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("variable %d has no name", i)
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate variable name %q", v.Name)
		}
		seen[v.Name] = true
		if v.Min >= v.Max {
			return nil, fmt.Errorf("variable %q: min %g >= max %g", v.Name, v.Min, v.Max)
		}
	}
	return &Sampler{Vars: vars, Seed: seed}, nil
}

// Names returns the variable names in order.
func (s *Sampler) Names() []string {
	names := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		names[i] = v.Name
	}
	return names
}

// Generate produces n samples with the given plan. Structured plans
// (full factorial, central composite, Box-Behnken) derive their own point
// count from the dimensionality; n is a hint for them.
func (s *Sampler) Generate(plan string, n int) ([][]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	rng := rand.New(rand.NewSource(s.Seed))

	switch plan {
	case PlanLatinHypercube:
		return s.latinHypercube(rng, n), nil
	case PlanRandom:
		return s.random(rng, n), nil
	case PlanFullFactorial:
		return s.fullFactorial(n), nil
	case PlanCentralComposite:
		return s.centralComposite(), nil
	case PlanBoxBehnken:
		return s.boxBehnken()
	case PlanHalton:
		return s.halton(n)
	default:
		return nil, fmt.Errorf("unsupported plan %q", plan)
	}
}

// scale maps a unit-cube coordinate to the variable's bounds.
func (s *Sampler) scale(j int, u float64) float64 {
	v := s.Vars[j]
	return v.Min + u*(v.Max-v.Min)
}

// latinHypercube draws one point per stratum on every axis, then shuffles
// each column so the strata combine randomly.
func (s *Sampler) latinHypercube(rng *rand.Rand, n int) [][]float64 {
	k := len(s.Vars)
	cols := make([][]float64, k)
	for j := 0; j < k; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = (float64(i) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(a, b int) { col[a], col[b] = col[b], col[a] })
		cols[j] = col
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = s.scale(j, cols[j][i])
		}
		out[i] = row
	}
	return out
}

func (s *Sampler) random(rng *rand.Rand, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, len(s.Vars))
		for j := range row {
			row[j] = s.scale(j, rng.Float64())
		}
		out[i] = row
	}
	return out
}

// fullFactorial builds a uniform grid. The number of levels per axis is
// the largest that keeps the total at or under the requested count, with a
// floor of two levels.
func (s *Sampler) fullFactorial(n int) [][]float64 {
	k := len(s.Vars)
	levels := int(math.Pow(float64(n), 1.0/float64(k)) + 1e-9)
	if levels < 2 {
		levels = 2
	}

	total := 1
	for i := 0; i < k; i++ {
		total *= levels
	}

	out := make([][]float64, 0, total)
	idx := make([]int, k)
	for {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = s.scale(j, float64(idx[j])/float64(levels-1))
		}
		out = append(out, row)

		j := 0
		for ; j < k; j++ {
			idx[j]++
			if idx[j] < levels {
				break
			}
			idx[j] = 0
		}
		if j == k {
			break
		}
	}
	return out
}

// centralComposite returns the center point, the 2^k corner points and 2k
// axial points on the bound faces.
func (s *Sampler) centralComposite() [][]float64 {
	k := len(s.Vars)

	center := make([]float64, k)
	for j := range center {
		center[j] = s.scale(j, 0.5)
	}

	out := [][]float64{append([]float64(nil), center...)}

	for i := 0; i < 1<<k; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			if (i>>j)&1 == 1 {
				row[j] = s.Vars[j].Max
			} else {
				row[j] = s.Vars[j].Min
			}
		}
		out = append(out, row)
	}

	for j := 0; j < k; j++ {
		low := append([]float64(nil), center...)
		low[j] = s.Vars[j].Min
		out = append(out, low)

		high := append([]float64(nil), center...)
		high[j] = s.Vars[j].Max
		out = append(out, high)
	}
	return out
}

// boxBehnken pairs every two variables at their bounds while holding the
// rest at the center. Requires at least three variables.
func (s *Sampler) boxBehnken() ([][]float64, error) {
	k := len(s.Vars)
	if k < 3 {
		return nil, fmt.Errorf("box_behnken needs at least 3 variables, got %d", k)
	}

	center := make([]float64, k)
	for j := range center {
		center[j] = s.scale(j, 0.5)
	}

	out := [][]float64{append([]float64(nil), center...)}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			for _, a := range []int{0, 1} {
				for _, b := range []int{0, 1} {
					row := append([]float64(nil), center...)
					row[i] = s.scale(i, float64(a))
					row[j] = s.scale(j, float64(b))
					out = append(out, row)
				}
			}
		}
	}
	return out, nil
}

// haltonPrimes caps the dimensionality of the Halton plan.
var haltonPrimes = []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71}

// halton generates a quasi-random low-discrepancy sequence, one prime base
// per variable.
func (s *Sampler) halton(n int) ([][]float64, error) {
	k := len(s.Vars)
	if k > len(haltonPrimes) {
		return nil, fmt.Errorf("halton plan limited to %d variables, got %d", len(haltonPrimes), k)
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = s.scale(j, radicalInverse(i+1, haltonPrimes[j]))
		}
		out[i] = row
	}
	return out, nil
}

// radicalInverse reflects the base-b digits of n around the radix point.
func radicalInverse(n, base int) float64 {
	f := 1.0
	r := 0.0
	for n > 0 {
		f /= float64(base)
		r += f * float64(n%base)
		n /= base
	}
	return r
}
