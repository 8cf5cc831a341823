// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import (
	"bufio"
	"fmt"
	"os"
)

// WriteGmsh22 writes the mesh as Gmsh MSH format version 2.2 ASCII.
// Node and element ids are written 1-based and contiguous.
func WriteGmsh22(m *Mesh, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "$MeshFormat")
	fmt.Fprintln(w, "2.2 0 8")
	fmt.Fprintln(w, "$EndMeshFormat")

	if len(m.Groups) > 0 {
		fmt.Fprintln(w, "$PhysicalNames")
		fmt.Fprintln(w, len(m.Groups))
		for _, g := range m.Groups {
			fmt.Fprintf(w, "%d %d \"%s\"\n", g.Dimension, g.Tag, g.Name)
		}
		fmt.Fprintln(w, "$EndPhysicalNames")
	}

	fmt.Fprintln(w, "$Nodes")
	fmt.Fprintln(w, len(m.Nodes))
	for i, n := range m.Nodes {
		fmt.Fprintf(w, "%d %g %g %g\n", i+1, n[0], n[1], n[2])
	}
	fmt.Fprintln(w, "$EndNodes")

	fmt.Fprintln(w, "$Elements")
	fmt.Fprintln(w, len(m.Elements))
	for i, e := range m.Elements {
		typeID, ok := gmshTypeIDs[e.Type]
		if !ok {
			return fmt.Errorf("element %d: no gmsh type id for %s", i, e.Type)
		}
		// Two tags: physical and elementary (same value, gmsh convention).
		fmt.Fprintf(w, "%d %d 2 %d %d", i+1, typeID, e.Tag, e.Tag)
		for _, n := range e.Nodes {
			fmt.Fprintf(w, " %d", n+1)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "$EndElements")

	return w.Flush()
}
