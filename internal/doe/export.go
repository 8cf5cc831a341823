// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package doe

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ExportCSV writes samples as CSV with a variable-name header row.
func ExportCSV(varNames []string, samples [][]float64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sample file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(varNames); err != nil {
		return err
	}
	row := make([]string, len(varNames))
	for i, sample := range samples {
		if len(sample) != len(varNames) {
			return fmt.Errorf("sample %d has %d coordinates, want %d", i, len(sample), len(varNames))
		}
		for j, v := range sample {
			row[j] = strconv.FormatFloat(v, 'e', 6, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ImportCSV reads a sample file written by ExportCSV. It returns the
// variable names from the header and the sample rows.
func ImportCSV(path string) ([]string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sample file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse sample file: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("sample file %s has no data rows", path)
	}

	names := records[0]
	samples := make([][]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(names) {
			return nil, nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(rec), len(names))
		}
		row := make([]float64, len(rec))
		for j, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d field %s: %w", i+1, names[j], err)
			}
			row[j] = v
		}
		samples = append(samples, row)
	}
	return names, samples, nil
}

// studyFile is the JSON study interchange document.
type studyFile struct {
	Plan      string      `json:"plan"`
	Variables []string    `json:"variables"`
	Samples   [][]float64 `json:"samples"`
	Results   []Result    `json:"results,omitempty"`
}

// ExportJSON writes a study document with plan metadata and optional
// evaluated results.
func ExportJSON(plan string, varNames []string, samples [][]float64, results []Result, path string) error {
	doc := studyFile{Plan: plan, Variables: varNames, Samples: samples, Results: results}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write study file: %w", err)
	}
	return nil
}

// ImportJSON reads a study document written by ExportJSON.
func ImportJSON(path string) (plan string, varNames []string, samples [][]float64, results []Result, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to read study file: %w", err)
	}
	var doc studyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to parse study file: %w", err)
	}
	return doc.Plan, doc.Variables, doc.Samples, doc.Results, nil
}
