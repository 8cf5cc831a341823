// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Package nx automates Siemens NX through its run_journal.exe batch
// interface: design parameters are written as NX expression files, a
// journal regenerates the part and exports STEP geometry for meshing.
package nx

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Expression types understood by the NX expression importer.
const (
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeString  = "string"
	TypePoint   = "point"
)

// Expression is one named NX expression. Value is stored pre-formatted so
// the file writer stays a plain serializer.
type Expression struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Unit    string `json:"unit"`
	Comment string `json:"comment"`
}

// Number returns a floating point expression.
func Number(name string, value float64, unit string) Expression {
	return Expression{
		Name:  name,
		Type:  TypeNumber,
		Value: strconv.FormatFloat(value, 'g', -1, 64),
		Unit:  unit,
	}
}

// Integer returns an integer expression.
func Integer(name string, value int) Expression {
	return Expression{Name: name, Type: TypeInteger, Value: strconv.Itoa(value)}
}

// String returns a string expression.
func String(name, value string) Expression {
	return Expression{Name: name, Type: TypeString, Value: value}
}

// Point returns a 3D point expression in NX's Point(x;y;z) notation.
func Point(name string, p [3]float64) Expression {
	return Expression{
		Name:  name,
		Type:  TypePoint,
		Value: fmt.Sprintf("Point(%g;%g;%g)", p[0], p[1], p[2]),
	}
}

// Float parses the expression value as a float. Only meaningful for number
// and integer expressions.
func (e Expression) Float() (float64, error) {
	v, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("expression %s: value %q is not numeric", e.Name, e.Value)
	}
	return v, nil
}

// Validate rejects expressions the NX importer would choke on.
func (e Expression) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("expression has no name")
	}
	if strings.ContainsAny(e.Name, ", \t\n") {
		return fmt.Errorf("expression name %q contains separator characters", e.Name)
	}
	switch e.Type {
	case TypeNumber, TypeInteger:
		if _, err := e.Float(); err != nil {
			return err
		}
	case TypeString, TypePoint:
	default:
		return fmt.Errorf("expression %s: unknown type %q", e.Name, e.Type)
	}
	if strings.ContainsAny(e.Value, ",\n") || strings.ContainsAny(e.Unit, ",\n") {
		return fmt.Errorf("expression %s: value or unit contains separator characters", e.Name)
	}
	return nil
}

// expFileHeader matches the header the rest of the toolchain expects at the
// top of a generated .exp file.
const expFileHeader = "# NX Expressions File\n# Format: name, type, value, unit, comment\n\n"

// WriteExpFile writes expressions to path in the comma separated .exp
// layout. The .exp extension is appended when missing. With appendFile set
// the expressions are added to an existing file without a new header.
func WriteExpFile(exprs []Expression, path string, appendFile bool) (string, error) {
	for _, e := range exprs {
		if err := e.Validate(); err != nil {
			return "", err
		}
	}
	if !strings.HasSuffix(path, ".exp") {
		path += ".exp"
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendFile {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open expression file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if !appendFile {
		w.WriteString(expFileHeader)
	}
	for _, e := range exprs {
		comment := strings.ReplaceAll(e.Comment, ",", ";")
		comment = strings.ReplaceAll(comment, "\n", " ")
		fmt.Fprintf(w, "%s,%s,%s,%s,%s\n", e.Name, e.Type, e.Value, e.Unit, comment)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to write expression file: %w", err)
	}
	return path, nil
}

// ReadExpFile parses a .exp file written by WriteExpFile or exported from
// NX. Comment lines and blanks are skipped; short lines keep their missing
// fields empty.
func ReadExpFile(path string) ([]Expression, error) {
	if !strings.HasSuffix(path, ".exp") {
		path += ".exp"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open expression file: %w", err)
	}
	defer f.Close()

	var exprs []Expression
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		e := Expression{
			Name:  strings.TrimSpace(parts[0]),
			Type:  strings.TrimSpace(parts[1]),
			Value: strings.TrimSpace(parts[2]),
		}
		if len(parts) > 3 {
			e.Unit = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			e.Comment = strings.TrimSpace(strings.Join(parts[4:], ","))
		}
		exprs = append(exprs, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expression file: %w", err)
	}
	return exprs, nil
}

// WriteJSON saves the expressions as a JSON array, the interchange format
// the web panel consumes.
func WriteJSON(exprs []Expression, path string) error {
	data, err := json.MarshalIndent(exprs, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write expression JSON: %w", err)
	}
	return nil
}
