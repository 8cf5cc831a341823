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

// gmshElementTypes maps Gmsh MSH element type identifiers to ElementType.
var gmshElementTypes = map[int]ElementType{
	1:  Line,
	2:  Triangle,
	3:  Quad,
	4:  Tet,
	5:  Hex,
	6:  Prism,
	7:  Pyramid,
	15: Point,
}

// gmshTypeIDs is the reverse of gmshElementTypes.
var gmshTypeIDs = map[ElementType]int{
	Line: 1, Triangle: 2, Quad: 3, Tet: 4, Hex: 5, Prism: 6, Pyramid: 7, Point: 15,
}

// ReadGmsh22 reads a Gmsh MSH file, format version 2.2 ASCII.
func ReadGmsh22(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	msh := NewMesh()
	nodeIndex := make(map[int]int) // gmsh node id -> index into msh.Nodes

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "$MeshFormat":
			if err := readMeshFormat22(scanner, msh); err != nil {
				return nil, err
			}

		case "$PhysicalNames":
			if err := readPhysicalNames(scanner, msh); err != nil {
				return nil, err
			}

		case "$Nodes":
			if err := readNodes22(scanner, msh, nodeIndex); err != nil {
				return nil, err
			}

		case "$Elements":
			if err := readElements22(scanner, msh, nodeIndex); err != nil {
				return nil, err
			}

		default:
			// Skip unknown or data sections ($NodeData, $ElementData, ...).
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				endMarker := "$End" + line[1:]
				for scanner.Scan() {
					if strings.TrimSpace(scanner.Text()) == endMarker {
						break
					}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if len(msh.Nodes) == 0 {
		return nil, fmt.Errorf("%s: no $Nodes section found", filename)
	}

	return msh, nil
}

// readMeshFormat22 reads the MeshFormat section and rejects binary files.
func readMeshFormat22(scanner *bufio.Scanner, msh *Mesh) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}

	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}

	msh.FormatVersion = parts[0]
	if !strings.HasPrefix(msh.FormatVersion, "2.") {
		return fmt.Errorf("unsupported MSH format version %s (only 2.2 ASCII supported)", msh.FormatVersion)
	}
	fileType, _ := strconv.Atoi(parts[1])
	if fileType == 1 {
		return fmt.Errorf("binary MSH files are not supported")
	}

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndMeshFormat" {
			break
		}
	}
	return nil
}

// readPhysicalNames reads physical group names.
func readPhysicalNames(scanner *bufio.Scanner, msh *Mesh) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in PhysicalNames")
	}

	numNames, _ := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	for i := 0; i < numNames; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF reading physical names")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			continue
		}
		dimension, _ := strconv.Atoi(parts[0])
		tag, _ := strconv.Atoi(parts[1])
		name := strings.Trim(parts[2], "\"")
		// Join remaining parts if name contains spaces.
		for j := 3; j < len(parts); j++ {
			name += " " + strings.Trim(parts[j], "\"")
		}
		msh.Groups = append(msh.Groups, PhysicalGroup{Dimension: dimension, Tag: tag, Name: name})
	}

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndPhysicalNames" {
			break
		}
	}
	return nil
}

// readNodes22 reads the Nodes section. Gmsh node ids are not required to be
// contiguous, so an id->index map is built for element connectivity.
func readNodes22(scanner *bufio.Scanner, msh *Mesh, nodeIndex map[int]int) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Nodes")
	}

	numNodes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid node count: %w", err)
	}

	msh.Nodes = make([][3]float64, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF reading node %d", i)
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 4 {
			return fmt.Errorf("invalid node line: %q", scanner.Text())
		}
		id, _ := strconv.Atoi(parts[0])
		x, _ := strconv.ParseFloat(parts[1], 64)
		y, _ := strconv.ParseFloat(parts[2], 64)
		z, _ := strconv.ParseFloat(parts[3], 64)
		nodeIndex[id] = len(msh.Nodes)
		msh.Nodes = append(msh.Nodes, [3]float64{x, y, z})
	}

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndNodes" {
			break
		}
	}
	return nil
}

// readElements22 reads the Elements section. Unknown element types
// (high-order elements) are skipped.
func readElements22(scanner *bufio.Scanner, msh *Mesh, nodeIndex map[int]int) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Elements")
	}

	numElements, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid element count: %w", err)
	}

	msh.Elements = make([]Element, 0, numElements)
	for i := 0; i < numElements; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF reading element %d", i)
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			return fmt.Errorf("invalid element line: %q", scanner.Text())
		}

		typeID, _ := strconv.Atoi(parts[1])
		numTags, _ := strconv.Atoi(parts[2])

		etype, ok := gmshElementTypes[typeID]
		if !ok {
			continue
		}

		physTag := 0
		if numTags > 0 && len(parts) > 3 {
			physTag, _ = strconv.Atoi(parts[3])
		}

		nodeStart := 3 + numTags
		want := etype.NumNodes()
		if len(parts)-nodeStart < want {
			return fmt.Errorf("element %s expects %d nodes, got %d fields", etype, want, len(parts)-nodeStart)
		}

		nodes := make([]int, want)
		for j := 0; j < want; j++ {
			id, _ := strconv.Atoi(parts[nodeStart+j])
			idx, ok := nodeIndex[id]
			if !ok {
				return fmt.Errorf("element references unknown node id %d", id)
			}
			nodes[j] = idx
		}
		msh.Elements = append(msh.Elements, Element{Type: etype, Nodes: nodes, Tag: physTag})
	}

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "$EndElements" {
			break
		}
	}
	return nil
}
