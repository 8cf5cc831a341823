// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxaero/meshpilot/internal/gmsh"
	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/meshio"
)

// meshFlags holds the options shared by `mesh` and `mesh chunked`.
type meshFlags struct {
	output      string
	size        float64
	domainScale float64
	threads     int
	noBoundary  bool
	regionsFile string
}

func (f *meshFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output mesh file (default <input>.msh)")
	cmd.Flags().Float64Var(&f.size, "size", 0, "base characteristic length (0 uses the default)")
	cmd.Flags().Float64Var(&f.domainScale, "domain-scale", 0, "farfield box size relative to geometry extent")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "gmsh thread count")
	cmd.Flags().BoolVar(&f.noBoundary, "no-boundary-layers", false, "disable boundary layer fields")
	cmd.Flags().StringVar(&f.regionsFile, "regions", "", "YAML file with local refinement regions")
}

func (f *meshFlags) options() gmsh.Options {
	opts := gmsh.DefaultOptions()
	if f.size > 0 {
		opts.Size = f.size
	}
	if f.domainScale > 0 {
		opts.DomainScale = f.domainScale
	}
	if f.threads > 0 {
		opts.Threads = f.threads
	}
	if f.noBoundary {
		opts.BoundaryLayers = false
	}
	return opts
}

func (f *meshFlags) outputFor(input string) string {
	if f.output != "" {
		return f.output
	}
	if i := strings.LastIndex(input, "."); i > 0 {
		return input[:i] + ".msh"
	}
	return input + ".msh"
}

func newMeshCmd() *cobra.Command {
	var flags meshFlags

	cmd := &cobra.Command{
		Use:   "mesh <geometry.step>",
		Short: "Mesh a STEP geometry with Gmsh",
		Long: `Meshes a STEP file through the fallback ladder: Frontal-Delaunay first,
then progressively more robust algorithm and sizing combinations. When
every attempt fails, a coarse emergency box mesh is produced so the rest
of the pipeline can still run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := flags.outputFor(input)

			mesher := gmsh.NewMesher(appConfig.Gmsh.Binary)
			if flags.regionsFile != "" {
				regions, err := gmsh.LoadRegions(flags.regionsFile)
				if err != nil {
					return err
				}
				mesher.Regions = regions
			}

			fmt.Println(i18n.T("mesh.start", input, output))
			result, err := mesher.Mesh(cmd.Context(), input, output, flags.options())
			if err != nil {
				return err
			}
			if result.Degraded {
				fmt.Println(i18n.T("mesh.emergency"))
			}
			fmt.Println(i18n.T("mesh.success", output, result.Stats.NumNodes, result.Stats.NumElements))
			return nil
		},
	}
	flags.register(cmd)
	cmd.AddCommand(newMeshChunkedCmd())
	return cmd
}

func newMeshChunkedCmd() *cobra.Command {
	var flags meshFlags
	var divisions []int
	var workers int

	cmd := &cobra.Command{
		Use:   "chunked <geometry.step>",
		Short: "Mesh a large geometry in chunks and weld the pieces",
		Long: `Splits the farfield domain into boxes, meshes each box independently
with bounded parallelism, and welds coincident nodes on the cut planes
into a single mesh. Intended for geometries too large for one gmsh run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(divisions) != 3 {
				return fmt.Errorf("--divisions needs three values, got %d", len(divisions))
			}
			input := args[0]
			output := flags.outputFor(input)

			mesher := gmsh.NewChunkedMesher(appConfig.Gmsh.Binary, workers)
			fmt.Println(i18n.T("mesh.start", input, output))
			result, err := mesher.Mesh(cmd.Context(), input, output, flags.options(),
				[3]int{divisions[0], divisions[1], divisions[2]})
			if err != nil {
				return err
			}
			rep := result.Report
			fmt.Println(i18n.T("mesh.merge_report",
				rep.Chunks, rep.OutputNodes, rep.WeldedNodes, rep.Elements))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntSliceVar(&divisions, "divisions", []int{2, 2, 2}, "chunk divisions per axis (x,y,z)")
	cmd.Flags().IntVar(&workers, "workers", 2, "parallel gmsh processes")
	return cmd
}

func newRefineCmd() *cobra.Command {
	var flags meshFlags

	cmd := &cobra.Command{
		Use:   "refine <geometry.step>",
		Short: "Re-mesh a geometry with local refinement regions",
		Long: `Re-runs Gmsh over the geometry with box, sphere or cylinder refinement
regions from a YAML file applied as background sizing fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := flags.outputFor(input)

			regions, err := gmsh.LoadRegions(flags.regionsFile)
			if err != nil {
				return err
			}
			mesher := gmsh.NewMesher(appConfig.Gmsh.Binary)
			mesher.Regions = regions

			fmt.Println(i18n.T("mesh.start", input, output))
			result, err := mesher.Mesh(cmd.Context(), input, output, flags.options())
			if err != nil {
				return err
			}
			if result.Degraded {
				fmt.Println(i18n.T("mesh.emergency"))
			}
			fmt.Println(i18n.T("mesh.success", output, result.Stats.NumNodes, result.Stats.NumElements))
			return nil
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("regions")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var minQuality float64
	var solver string

	cmd := &cobra.Command{
		Use:   "validate <mesh>",
		Short: "Validate a mesh for CFD use",
		Long: `Reads a MSH or SU2 mesh and checks element quality, skewness,
volume element presence and solver compatibility.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := meshio.ReadMeshFile(args[0])
			if err != nil {
				return err
			}

			opts := meshio.DefaultValidateOptions()
			if minQuality > 0 {
				opts.MinQuality = minQuality
			}
			opts.Solver = solver

			report, err := meshio.Validate(m, opts)
			if err != nil {
				return err
			}

			stats := report.Stats
			fmt.Println(i18n.T("validate.summary", args[0], stats.NumNodes, stats.NumElements, stats.NumGroups))
			fmt.Println(i18n.T("validate.quality",
				report.Quality.Min, report.Quality.Mean,
				report.Quality.BelowThreshold(opts.MinQuality, m.ElementQualities()), opts.MinQuality))
			if !report.Passed {
				return fmt.Errorf("%s", i18n.T("validate.failed", strings.Join(report.Issues, "; ")))
			}
			fmt.Println(i18n.T("validate.passed"))
			return nil
		},
	}
	cmd.Flags().Float64Var(&minQuality, "min-quality", 0, "minimum acceptable element quality")
	cmd.Flags().StringVar(&solver, "solver", "", `solver compatibility check ("su2", "openfoam")`)
	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a mesh between MSH and SU2 formats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := meshio.ReadMeshFile(args[0])
			if err != nil {
				return err
			}
			if err := meshio.WriteMeshFile(m, args[1]); err != nil {
				return err
			}
			stats := m.Stats()
			fmt.Println(i18n.T("mesh.success", args[1], stats.NumNodes, stats.NumElements))
			return nil
		},
	}
}
