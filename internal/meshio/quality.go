// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package meshio

import "math"

// QualityReport summarizes element quality over the volume elements of a
// mesh. Quality is the radius ratio for tets (3*r_in/R_circ, 1.0 for the
// regular tetrahedron) and the normalized shape factor for triangles.
// Elements with non-positive volume are counted as degenerate and score 0.
type QualityReport struct {
	NumMeasured   int       `json:"num_measured"`
	NumDegenerate int       `json:"num_degenerate"`
	Min           float64   `json:"min"`
	Mean          float64   `json:"mean"`
	Histogram     [10]int   `json:"histogram"` // bins of width 0.1 over [0,1]
}

// BelowThreshold returns the number of measured elements with quality below q.
func (r QualityReport) BelowThreshold(q float64, qualities []float64) int {
	n := 0
	for _, v := range qualities {
		if v < q {
			n++
		}
	}
	return n
}

// ElementQualities computes a quality value per measurable element (tets and
// triangles). Other element types are skipped.
func (m *Mesh) ElementQualities() []float64 {
	var out []float64
	for _, e := range m.Elements {
		switch e.Type {
		case Tet:
			out = append(out, tetQuality(m.Nodes[e.Nodes[0]], m.Nodes[e.Nodes[1]], m.Nodes[e.Nodes[2]], m.Nodes[e.Nodes[3]]))
		case Triangle:
			out = append(out, triQuality(m.Nodes[e.Nodes[0]], m.Nodes[e.Nodes[1]], m.Nodes[e.Nodes[2]]))
		}
	}
	return out
}

// Quality computes the quality report for the mesh.
func (m *Mesh) Quality() QualityReport {
	qualities := m.ElementQualities()
	rep := QualityReport{NumMeasured: len(qualities), Min: 1.0}
	if len(qualities) == 0 {
		rep.Min = 0
		return rep
	}
	sum := 0.0
	for _, q := range qualities {
		if q <= 0 {
			rep.NumDegenerate++
		}
		if q < rep.Min {
			rep.Min = q
		}
		sum += q
		bin := int(q * 10)
		if bin < 0 {
			bin = 0
		}
		if bin > 9 {
			bin = 9
		}
		rep.Histogram[bin]++
	}
	rep.Mean = sum / float64(len(qualities))
	return rep
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}

// tetVolume returns the signed volume of the tetrahedron.
func tetVolume(p0, p1, p2, p3 [3]float64) float64 {
	return dot(sub(p1, p0), cross(sub(p2, p0), sub(p3, p0))) / 6.0
}

func triArea(p0, p1, p2 [3]float64) float64 {
	return norm(cross(sub(p1, p0), sub(p2, p0))) / 2.0
}

// tetQuality returns the radius ratio 3*r_in/R_circ, clamped to [0,1].
// Degenerate tets (non-positive volume) score 0.
func tetQuality(p0, p1, p2, p3 [3]float64) float64 {
	v := tetVolume(p0, p1, p2, p3)
	if v <= 0 {
		// Negative volume means inverted connectivity; measure the mirrored
		// element but report zero for true degenerates.
		v = -v
		if v < 1e-300 {
			return 0
		}
	}

	area := triArea(p0, p1, p2) + triArea(p0, p1, p3) + triArea(p0, p2, p3) + triArea(p1, p2, p3)
	if area <= 0 {
		return 0
	}
	rIn := 3 * v / area

	rCirc, ok := tetCircumradius(p0, p1, p2, p3)
	if !ok || rCirc <= 0 {
		return 0
	}

	q := 3 * rIn / rCirc
	if q > 1 {
		q = 1
	}
	if q < 0 {
		q = 0
	}
	return q
}

// tetCircumradius solves for the circumcenter as the point equidistant from
// all four vertices (a 3x3 linear system via Cramer's rule).
func tetCircumradius(p0, p1, p2, p3 [3]float64) (float64, bool) {
	a := sub(p1, p0)
	b := sub(p2, p0)
	c := sub(p3, p0)

	rhs := [3]float64{dot(a, a) / 2, dot(b, b) / 2, dot(c, c) / 2}

	det := dot(a, cross(b, c))
	if math.Abs(det) < 1e-300 {
		return 0, false
	}

	// Cramer's rule, columns replaced by rhs.
	dx := rhs[0]*(b[1]*c[2]-b[2]*c[1]) - a[1]*(rhs[1]*c[2]-b[2]*rhs[2]) + a[2]*(rhs[1]*c[1]-b[1]*rhs[2])
	dy := a[0]*(rhs[1]*c[2]-b[2]*rhs[2]) - rhs[0]*(b[0]*c[2]-b[2]*c[0]) + a[2]*(b[0]*rhs[2]-rhs[1]*c[0])
	dz := a[0]*(b[1]*rhs[2]-rhs[1]*c[1]) - a[1]*(b[0]*rhs[2]-rhs[1]*c[0]) + rhs[0]*(b[0]*c[1]-b[1]*c[0])

	center := [3]float64{dx / det, dy / det, dz / det}
	return norm(center), true
}

// triQuality returns the normalized shape factor 4*sqrt(3)*A / (sum of
// squared edge lengths), 1.0 for the equilateral triangle.
func triQuality(p0, p1, p2 [3]float64) float64 {
	area := triArea(p0, p1, p2)
	e0 := sub(p1, p0)
	e1 := sub(p2, p1)
	e2 := sub(p0, p2)
	den := dot(e0, e0) + dot(e1, e1) + dot(e2, e2)
	if den <= 0 {
		return 0
	}
	q := 4 * math.Sqrt(3) * area / den
	if q > 1 {
		q = 1
	}
	return q
}

// Skewness estimates the worst-case skew over volume elements as 1-quality.
func (m *Mesh) Skewness() float64 {
	worst := 0.0
	for _, e := range m.Elements {
		if e.Type != Tet {
			continue
		}
		q := tetQuality(m.Nodes[e.Nodes[0]], m.Nodes[e.Nodes[1]], m.Nodes[e.Nodes[2]], m.Nodes[e.Nodes[3]])
		if s := 1 - q; s > worst {
			worst = s
		}
	}
	return worst
}
