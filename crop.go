/*
Copyright © 2024 the stofsub authors.
This file is part of stofsub.

stofsub is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

stofsub is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with stofsub.  If not, see <http://www.gnu.org/licenses/>.
*/

package stofsub

import (
	"fmt"

	"github.com/ctessum/geom"
)

// A Plan describes how to carve a subset out of a source dataset: the
// nodes and elements to keep, the reindexed connectivity table, and
// the record range to copy.
type Plan struct {
	// Nodes holds the kept 0-based node indices, in source order.
	Nodes []int

	// Elements holds the kept 0-based element indices, in source
	// order.
	Elements []int

	// Connectivity is the element table of the subset, flattened
	// like Mesh.Elements, renumbered to refer to positions within
	// Nodes, in the same index base as the source mesh.
	Connectivity []int32

	// FirstRecord and LastRecord bound (inclusively) the records
	// to copy. Both are -1 when the whole time range is kept.
	FirstRecord, LastRecord int
}

// BoundsPolygon converts a bounding box to the polygon form the crop
// functions take.
func BoundsPolygon(b *geom.Bounds) geom.Polygon {
	return geom.Polygon{{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Min.Y},
	}}
}

// CropRegion plans a spatial subset of m: the nodes inside (or on the
// edge of) region survive, as do the elements whose vertices all
// survive. Nodes that end up in no surviving element are still kept,
// matching the cropping behavior of the tools the operational
// workflow was built on.
func CropRegion(m *Mesh, region geom.Polygonal) (*Plan, error) {
	rb := region.Bounds()
	keep := make([]int32, m.NumNodes()) // new 0-based index + 1, or 0 if dropped
	p := &Plan{FirstRecord: -1, LastRecord: -1}
	for i := 0; i < m.NumNodes(); i++ {
		pt := m.Node(i)
		// Cheap bounding-box rejection before the ray-casting test.
		if pt.X < rb.Min.X || pt.X > rb.Max.X || pt.Y < rb.Min.Y || pt.Y > rb.Max.Y {
			continue
		}
		if pt.Within(region) == geom.Outside {
			continue
		}
		p.Nodes = append(p.Nodes, i)
		keep[i] = int32(len(p.Nodes))
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("stofsub: no mesh nodes within the query region")
	}

elements:
	for e := 0; e < m.NumElements(); e++ {
		for _, n := range m.ElementNodes(e) {
			if keep[n] == 0 {
				continue elements
			}
		}
		p.Elements = append(p.Elements, e)
		for _, n := range m.ElementNodes(e) {
			p.Connectivity = append(p.Connectivity, keep[n]-1+m.Base)
		}
	}
	return p, nil
}

// CropBounds is CropRegion for a plain bounding box.
func CropBounds(m *Mesh, b *geom.Bounds) (*Plan, error) {
	return CropRegion(m, BoundsPolygon(b))
}
