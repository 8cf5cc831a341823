// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package gmsh

import (
	"fmt"
	"strings"
	"text/template"
)

// geoTemplate is the .geo option script handed to gmsh. It imports the STEP
// geometry with OCC healing enabled, wraps it in a farfield box sized from
// the geometry bounding box, subtracts the solid, and classifies the
// resulting boundary surfaces: surfaces lying on the farfield box become the
// "outlet" group, everything else is "intake_walls". The classification loop
// matches what the meshing stage has always produced for downstream BC setup.
var geoTemplate = template.Must(template.New("geo").Parse(`// generated by meshpilot - do not edit
SetFactory("OpenCASCADE");

Geometry.OCCFixDegenerated = 1;
Geometry.OCCFixSmallEdges = 1;
Geometry.OCCFixSmallFaces = 1;
Geometry.OCCSewFaces = 1;
Geometry.OCCMakeSolids = 1;
Geometry.Tolerance = 1e-2;
Geometry.ToleranceBoolean = 1e-2;

General.NumThreads = {{.Threads}};

Mesh.CharacteristicLengthMin = {{.SizeMin}};
Mesh.CharacteristicLengthMax = {{.SizeMax}};
Mesh.Algorithm = {{.Algorithm2D}};
Mesh.Algorithm3D = {{.Algorithm3D}};
Mesh.Optimize = 1;
Mesh.OptimizeNetgen = {{.OptimizeNetgen}};
Mesh.RecombineAll = 0;
Mesh.Binary = 0;

v() = ShapeFromFile("{{.InputSTEP}}");

bb() = BoundingBox Volume{v()};
xmin = bb(0); ymin = bb(1); zmin = bb(2);
xmax = bb(3); ymax = bb(4); zmax = bb(5);

maxdim = Fmax(Fmax(xmax - xmin, ymax - ymin), zmax - zmin);
cx = (xmin + xmax) / 2;
cy = (ymin + ymax) / 2;
cz = (zmin + zmax) / 2;
d = maxdim * {{.DomainScale}};

box = newv;
Box(box) = {cx - d/2, cy - d/2, cz - d/2, d, d, d};

fluid() = BooleanDifference{ Volume{box}; Delete; }{ Volume{v()}; Delete; };

walls() = Abs(Boundary{ Volume{fluid()}; });

eps = maxdim * 1e-6;
intake() = {};
farfield() = {};
For i In {0 : #walls()-1}
  s = walls(i);
  sb() = BoundingBox Surface{s};
  onbox = 0;
  If (Fabs(sb(0) - (cx - d/2)) < eps || Fabs(sb(3) - (cx + d/2)) < eps)
    onbox = 1;
  EndIf
  If (Fabs(sb(1) - (cy - d/2)) < eps || Fabs(sb(4) - (cy + d/2)) < eps)
    onbox = 1;
  EndIf
  If (Fabs(sb(2) - (cz - d/2)) < eps || Fabs(sb(5) - (cz + d/2)) < eps)
    onbox = 1;
  EndIf
  If (onbox)
    farfield() += {s};
  Else
    intake() += {s};
  EndIf
EndFor

Physical Surface("intake_walls") = {intake()};
Physical Surface("outlet") = {farfield()};
Physical Volume("fluid_volume") = {fluid()};

{{if .BoundaryLayers}}
Field[1] = Distance;
Field[1].SurfacesList = {intake()};
Field[2] = Threshold;
Field[2].InField = 1;
Field[2].SizeMin = {{.BLSizeMin}};
Field[2].SizeMax = {{.SizeMax}};
Field[2].DistMin = {{.BLDistMin}};
Field[2].DistMax = {{.BLDistMax}};
Field[3] = BoundaryLayer;
Field[3].SurfacesList = {intake()};
Field[3].Size = {{.BLThickness}};
Field[3].Ratio = {{.BLRatio}};
Field[3].NbLayers = {{.BLLayers}};
Field[3].Quads = 0;
BoundaryLayer Field = 3;
Background Field = 2;
{{end}}
`))

// scriptParams is the resolved parameter set fed to the template.
type scriptParams struct {
	InputSTEP      string
	Threads        int
	SizeMin        float64
	SizeMax        float64
	Algorithm2D    int
	Algorithm3D    int
	OptimizeNetgen int
	DomainScale    float64
	BoundaryLayers bool
	BLThickness    float64
	BLLayers       int
	BLRatio        float64
	BLSizeMin      float64
	BLDistMin      float64
	BLDistMax      float64
}

// RenderScript produces the .geo script for one meshing attempt.
// Backslashes in the STEP path are normalized so the script stays valid on
// Windows.
func RenderScript(stepFile string, o Options) (string, error) {
	o = o.normalize()
	p := scriptParams{
		InputSTEP:      strings.ReplaceAll(stepFile, `\`, "/"),
		Threads:        o.Threads,
		SizeMin:        o.Size / 2,
		SizeMax:        o.Size,
		Algorithm2D:    o.Algorithm2D,
		Algorithm3D:    o.Algorithm3D,
		DomainScale:    o.DomainScale,
		BoundaryLayers: o.BoundaryLayers,
		BLThickness:    o.BLThickness,
		BLLayers:       o.BLLayers,
		BLRatio:        o.BLRatio,
		BLSizeMin:      o.Size / 5,
		BLDistMin:      0.5 * o.BLThickness,
		BLDistMax:      3 * o.BLThickness,
	}
	if o.OptimizeNetgen {
		p.OptimizeNetgen = 1
	}

	var sb strings.Builder
	if err := geoTemplate.Execute(&sb, p); err != nil {
		return "", fmt.Errorf("failed to render geo script: %w", err)
	}
	return sb.String(), nil
}
