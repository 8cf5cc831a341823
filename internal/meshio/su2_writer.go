// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import (
	"bufio"
	"fmt"
	"os"
)

// WriteSU2 writes the mesh in SU2 native format. Interior (3D) elements go
// into the NELEM block; elements carrying the tag of a 2D physical group are
// emitted under that group's marker.
func WriteSU2(m *Mesh, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "NDIME= 3")

	var interior []Element
	markers := make(map[int][]Element)
	markerOrder := []PhysicalGroup{}
	for _, g := range m.Groups {
		if g.Dimension == 2 {
			markerOrder = append(markerOrder, g)
		}
	}

	for _, e := range m.Elements {
		if e.Type.Dimension() == 3 {
			interior = append(interior, e)
			continue
		}
		if e.Type.Dimension() == 2 && m.GroupByTag(2, e.Tag) != nil {
			markers[e.Tag] = append(markers[e.Tag], e)
		}
		// 2D elements without a marker group are dropped: SU2 has no home
		// for unmarked surface elements.
	}

	fmt.Fprintf(w, "NELEM= %d\n", len(interior))
	for i, e := range interior {
		if err := writeSU2Element(w, e, i); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "NPOIN= %d\n", len(m.Nodes))
	for i, n := range m.Nodes {
		fmt.Fprintf(w, "%g %g %g %d\n", n[0], n[1], n[2], i)
	}

	fmt.Fprintf(w, "NMARK= %d\n", len(markerOrder))
	for _, g := range markerOrder {
		fmt.Fprintf(w, "MARKER_TAG= %s\n", g.Name)
		fmt.Fprintf(w, "MARKER_ELEMS= %d\n", len(markers[g.Tag]))
		for _, e := range markers[g.Tag] {
			if err := writeSU2Element(w, e, -1); err != nil {
				return err
			}
		}
	}

	return w.Flush()
}

func writeSU2Element(w *bufio.Writer, e Element, index int) error {
	typeID, ok := su2TypeIDs[e.Type]
	if !ok {
		return fmt.Errorf("no SU2 type id for %s", e.Type)
	}
	fmt.Fprintf(w, "%d", typeID)
	for _, n := range e.Nodes {
		fmt.Fprintf(w, " %d", n)
	}
	if index >= 0 {
		fmt.Fprintf(w, " %d", index)
	}
	fmt.Fprintln(w)
	return nil
}
