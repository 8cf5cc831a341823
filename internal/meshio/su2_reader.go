// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// su2ElementTypes maps SU2/VTK element type identifiers to ElementType.
var su2ElementTypes = map[int]ElementType{
	3:  Line,
	5:  Triangle,
	9:  Quad,
	10: Tet,
	12: Hex,
	13: Prism,
	14: Pyramid,
}

// su2TypeIDs is the reverse of su2ElementTypes.
var su2TypeIDs = map[ElementType]int{
	Line: 3, Triangle: 5, Quad: 9, Tet: 10, Hex: 12, Prism: 13, Pyramid: 14,
}

// ReadSU2 reads an SU2 native mesh file. Boundary markers become physical
// groups of dimension ndime-1, numbered in order of appearance starting at 1;
// interior elements are tagged 0.
func ReadSU2(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	msh := NewMesh()
	msh.FormatVersion = "su2"

	ndime := 3
	readCount := func(line, key string) (int, error) {
		v := strings.TrimSpace(strings.TrimPrefix(line, key))
		return strconv.Atoi(strings.Fields(v)[0])
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "NDIME="):
			ndime, err = readCount(line, "NDIME=")
			if err != nil {
				return nil, fmt.Errorf("invalid NDIME: %w", err)
			}

		case strings.HasPrefix(line, "NELEM="):
			nelem, err := readCount(line, "NELEM=")
			if err != nil {
				return nil, fmt.Errorf("invalid NELEM: %w", err)
			}
			for i := 0; i < nelem; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected EOF reading element %d", i)
				}
				elem, err := parseSU2Element(scanner.Text(), 0)
				if err != nil {
					return nil, err
				}
				msh.Elements = append(msh.Elements, elem)
			}

		case strings.HasPrefix(line, "NPOIN="):
			npoin, err := readCount(line, "NPOIN=")
			if err != nil {
				return nil, fmt.Errorf("invalid NPOIN: %w", err)
			}
			msh.Nodes = make([][3]float64, 0, npoin)
			for i := 0; i < npoin; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected EOF reading point %d", i)
				}
				parts := strings.Fields(scanner.Text())
				if len(parts) < ndime {
					return nil, fmt.Errorf("invalid point line: %q", scanner.Text())
				}
				var p [3]float64
				for d := 0; d < ndime; d++ {
					p[d], _ = strconv.ParseFloat(parts[d], 64)
				}
				msh.Nodes = append(msh.Nodes, p)
			}

		case strings.HasPrefix(line, "NMARK="):
			nmark, err := readCount(line, "NMARK=")
			if err != nil {
				return nil, fmt.Errorf("invalid NMARK: %w", err)
			}
			for im := 0; im < nmark; im++ {
				tag, elems, err := readSU2Marker(scanner, im+1)
				if err != nil {
					return nil, err
				}
				msh.Groups = append(msh.Groups, PhysicalGroup{Dimension: ndime - 1, Tag: im + 1, Name: tag})
				msh.Elements = append(msh.Elements, elems...)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if len(msh.Nodes) == 0 {
		return nil, fmt.Errorf("%s: no NPOIN section found", filename)
	}

	return msh, nil
}

// readSU2Marker reads one MARKER_TAG/MARKER_ELEMS block.
func readSU2Marker(scanner *bufio.Scanner, tag int) (string, []Element, error) {
	var name string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if !strings.HasPrefix(line, "MARKER_TAG=") {
			return "", nil, fmt.Errorf("expected MARKER_TAG, got %q", line)
		}
		name = strings.TrimSpace(strings.TrimPrefix(line, "MARKER_TAG="))
		break
	}

	var count int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "MARKER_ELEMS=") {
			return "", nil, fmt.Errorf("expected MARKER_ELEMS, got %q", line)
		}
		v := strings.TrimSpace(strings.TrimPrefix(line, "MARKER_ELEMS="))
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, fmt.Errorf("invalid MARKER_ELEMS: %w", err)
		}
		count = n
		break
	}

	elems := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			return "", nil, fmt.Errorf("unexpected EOF reading marker %s element %d", name, i)
		}
		elem, err := parseSU2Element(scanner.Text(), tag)
		if err != nil {
			return "", nil, err
		}
		elems = append(elems, elem)
	}
	return name, elems, nil
}

// parseSU2Element parses one connectivity line. A trailing element index
// (present in many SU2 files) is tolerated and ignored.
func parseSU2Element(line string, tag int) (Element, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return Element{}, fmt.Errorf("invalid element line: %q", line)
	}
	typeID, _ := strconv.Atoi(parts[0])
	etype, ok := su2ElementTypes[typeID]
	if !ok {
		return Element{}, fmt.Errorf("unknown SU2 element type %d", typeID)
	}
	want := etype.NumNodes()
	if len(parts)-1 < want {
		return Element{}, fmt.Errorf("element type %s expects %d nodes, got %d fields", etype, want, len(parts)-1)
	}
	nodes := make([]int, want)
	for j := 0; j < want; j++ {
		n, err := strconv.Atoi(parts[1+j])
		if err != nil {
			return Element{}, fmt.Errorf("invalid node index %q: %w", parts[1+j], err)
		}
		nodes[j] = n
	}
	return Element{Type: etype, Nodes: nodes, Tag: tag}, nil
}
