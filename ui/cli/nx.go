// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/nx"
)

func newNXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nx",
		Short: "Drive Siemens NX through its journal runner",
	}
	cmd.AddCommand(newNXExportCmd(), newNXExpressionsCmd())
	return cmd
}

// parseExprFlags turns repeated --expr name=value flags into expressions.
func parseExprFlags(pairs []string, unit string) ([]nx.Expression, error) {
	var exprs []nx.Expression
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad expression %q: want name=value", pair)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad expression value in %q: %w", pair, err)
		}
		exprs = append(exprs, nx.Number(strings.TrimSpace(name), f, unit))
	}
	return exprs, nil
}

func newNXExportCmd() *cobra.Command {
	var exprFlags []string
	var unit string
	var output string

	cmd := &cobra.Command{
		Use:   "export <part.prt>",
		Short: "Update expressions and export a part as STEP",
		Long: `Writes the given expressions to an .exp file, imports it into the part,
updates the model and exports STEP AP242 geometry, all through the NX
journal runner (run_journal.exe). Works from WSL against a Windows NX
installation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part := args[0]
			exprs, err := parseExprFlags(exprFlags, unit)
			if err != nil {
				return err
			}

			step := output
			if step == "" {
				step = strings.TrimSuffix(part, ".prt") + ".step"
			}

			exe, err := nx.LocateRunJournal(appConfig.NX.RunJournal)
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("nx.export_start", part))
			journal, err := nx.NewJournal(exe)
			if err != nil {
				return err
			}
			if err := journal.ExportStep(cmd.Context(), part, exprs, step); err != nil {
				return err
			}
			fmt.Println(i18n.T("nx.export_done", step))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&exprFlags, "expr", nil, "expression as name=value (repeatable)")
	cmd.Flags().StringVar(&unit, "unit", "mm", "unit attached to numeric expressions")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output STEP file (default <part>.step)")
	return cmd
}

func newNXExpressionsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "expressions <part.prt>",
		Short: "Export the expressions of a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part := args[0]
			out := output
			if out == "" {
				out = strings.TrimSuffix(part, ".prt") + ".exp"
			}

			exe, err := nx.LocateRunJournal(appConfig.NX.RunJournal)
			if err != nil {
				return err
			}

			journal, err := nx.NewJournal(exe)
			if err != nil {
				return err
			}
			if err := journal.ExportExpressions(cmd.Context(), part, out); err != nil {
				return err
			}

			exprs, err := nx.ReadExpFile(out)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("nx.expressions_written", len(exprs), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .exp file (default <part>.exp)")
	return cmd
}
