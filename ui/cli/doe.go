// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxaero/meshpilot/internal/doe"
	"github.com/voxaero/meshpilot/internal/i18n"
)

func newDOECmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doe",
		Short: "Design-of-experiments sample plans and analysis",
	}
	cmd.AddCommand(newDOEGenerateCmd(), newDOEAnalyzeCmd())
	return cmd
}

// parseVarFlags turns repeated --var name=min:max[:unit] flags into
// variables.
func parseVarFlags(pairs []string) ([]doe.Variable, error) {
	var vars []doe.Variable
	for _, pair := range pairs {
		name, spec, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad variable %q: want name=min:max[:unit]", pair)
		}
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("bad variable %q: want name=min:max[:unit]", pair)
		}
		min, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad min in %q: %w", pair, err)
		}
		max, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad max in %q: %w", pair, err)
		}
		v := doe.Variable{Name: strings.TrimSpace(name), Min: min, Max: max}
		if len(parts) == 3 {
			v.Unit = parts[2]
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func newDOEGenerateCmd() *cobra.Command {
	var plan string
	var samples int
	var seed int64
	var varFlags []string
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a sample plan",
		Long: `Generates design points over the given variables. Supported plans:
latin_hypercube, random, full_factorial, central_composite, box_behnken
and halton. Output format follows the file extension (.csv or .json).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVarFlags(varFlags)
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				return fmt.Errorf("at least one --var is required")
			}

			sampler, err := doe.NewSampler(vars, seed)
			if err != nil {
				return err
			}
			points, err := sampler.Generate(plan, samples)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("doe.generated", len(points), plan, len(vars)))

			if strings.HasSuffix(output, ".json") {
				err = doe.ExportJSON(plan, sampler.Names(), points, nil, output)
			} else {
				err = doe.ExportCSV(sampler.Names(), points, output)
			}
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("doe.written", output))
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", doe.PlanLatinHypercube, "sampling plan")
	cmd.Flags().IntVarP(&samples, "samples", "n", 20, "number of sample points")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for reproducible plans")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "design variable as name=min:max[:unit] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "doe_samples.csv", "output file (.csv or .json)")
	return cmd
}

func newDOEAnalyzeCmd() *cobra.Command {
	var objective string
	var minimize bool

	cmd := &cobra.Command{
		Use:   "analyze <study.json>",
		Short: "Analyze study results",
		Long: `Reads a study file with samples and objective values, prints summary
statistics, variable/objective correlations, the best point for the
chosen objective and the Pareto front for multi-objective studies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, varNames, _, results, err := doe.ImportJSON(args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("study %s has no results to analyze", args[0])
			}

			analysis, err := doe.Analyze(varNames, results)
			if err != nil {
				return err
			}

			fmt.Printf("samples: %d\n", analysis.NumSamples)
			for name, stats := range analysis.Stats {
				fmt.Printf("%s: min %.6g max %.6g mean %.6g stddev %.6g median %.6g\n",
					name, stats.Min, stats.Max, stats.Mean, stats.StdDev, stats.Median)
			}
			for obj, byVar := range analysis.Correlations {
				for name, r := range byVar {
					fmt.Printf("corr %s/%s: %+.3f\n", obj, name, r)
				}
			}

			objectives := objectiveNames(results[0])
			if objective == "" && len(objectives) > 0 {
				objective = objectives[0]
			}
			if objective != "" {
				best, err := doe.BestPoint(results, objective, minimize)
				if err != nil {
					return err
				}
				fmt.Printf("best %s: %.6g at %v\n", objective, best.Objectives[objective], best.Point)
			}
			if len(objectives) >= 2 {
				front, err := doe.ParetoPoints(results, objectives)
				if err != nil {
					return err
				}
				fmt.Printf("pareto front: %d of %d points\n", len(front), len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&objective, "objective", "", "objective to rank by (default: first)")
	cmd.Flags().BoolVar(&minimize, "minimize", true, "minimize the objective (false to maximize)")
	return cmd
}

func objectiveNames(r doe.Result) []string {
	names := make([]string, 0, len(r.Objectives))
	for name := range r.Objectives {
		names = append(names, name)
	}
	return names
}
