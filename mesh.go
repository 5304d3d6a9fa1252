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
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// A Mesh holds the horizontal unstructured grid of a STOFS model run:
// node coordinates and the element connectivity table.
type Mesh struct {
	// X and Y are the node coordinates, typically longitude and
	// latitude in degrees.
	X, Y []float64

	// Depth is the bathymetric depth at each node, if the source
	// dataset provides it.
	Depth []float64

	// Elements is the flattened connectivity table, NumVerts
	// entries per element, holding node indices in the index base
	// of the source file (1-based for ADCIRC meshes).
	Elements []int32

	// NumVerts is the number of vertices per element; triangular
	// meshes have 3.
	NumVerts int

	// Base is the node index base of the connectivity table,
	// normally 1.
	Base int32

	index *rtree.Rtree
}

// meshElement is one mesh triangle held in the spatial index.
type meshElement struct {
	geom.Polygon
	i int // element index
}

// ReadMesh extracts the mesh from a normalized dataset, using the
// element table attached by AttachConnectivity if the dataset itself
// has none.
func (ds *Dataset) ReadMesh() (*Mesh, error) {
	c, err := ds.Convention()
	if err != nil {
		return nil, err
	}
	x, err := ds.ReadFloat(c.XVar)
	if err != nil {
		return nil, err
	}
	y, err := ds.ReadFloat(c.YVar)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("stofsub: mesh has %d x coordinates but %d y coordinates", len(x), len(y))
	}
	m := &Mesh{X: x, Y: y}
	if ds.HasVariable(c.DepthVar) {
		if m.Depth, err = ds.ReadFloat(c.DepthVar); err != nil {
			return nil, err
		}
	}
	switch {
	case ds.HasVariable(c.ElemVar):
		if m.Elements, err = ds.ReadInt(c.ElemVar); err != nil {
			return nil, err
		}
		m.NumVerts = ds.dimLength(c.VertexDim)
	case ds.attached != nil:
		m.Elements = ds.attached.elements
		m.NumVerts = ds.attached.numVerts
	default:
		return nil, fmt.Errorf("stofsub: dataset has no element connectivity; attach a companion dataset")
	}
	if m.NumVerts <= 0 || len(m.Elements)%m.NumVerts != 0 {
		return nil, fmt.Errorf("stofsub: element table length %d is not divisible by %d vertices", len(m.Elements), m.NumVerts)
	}
	m.Base = indexBase(m.Elements, len(x))
	if err := m.checkConnectivity(); err != nil {
		return nil, err
	}
	return m, nil
}

// indexBase infers whether a connectivity table is 0- or 1-based.
// ADCIRC and SCHISM both write 1-based tables; a table that refers to
// node number len(nodes) must be 1-based, and one that refers to node
// 0 must be 0-based.
func indexBase(elements []int32, numNodes int) int32 {
	for _, e := range elements {
		if e == 0 {
			return 0
		}
		if e == int32(numNodes) {
			return 1
		}
	}
	return 1
}

func (m *Mesh) checkConnectivity() error {
	n := int32(m.NumNodes())
	for i, e := range m.Elements {
		if e-m.Base < 0 || e-m.Base >= n {
			return fmt.Errorf("stofsub: element %d refers to node %d of a %d-node mesh", i/m.NumVerts, e, n)
		}
	}
	return nil
}

// NumNodes returns the number of nodes in the mesh.
func (m *Mesh) NumNodes() int { return len(m.X) }

// NumElements returns the number of elements in the mesh.
func (m *Mesh) NumElements() int {
	if m.NumVerts == 0 {
		return 0
	}
	return len(m.Elements) / m.NumVerts
}

// Node returns the location of node i (0-based).
func (m *Mesh) Node(i int) geom.Point { return geom.Point{X: m.X[i], Y: m.Y[i]} }

// ElementNodes returns the 0-based node indices of element i.
func (m *Mesh) ElementNodes(i int) []int {
	nodes := make([]int, m.NumVerts)
	for j := 0; j < m.NumVerts; j++ {
		nodes[j] = int(m.Elements[i*m.NumVerts+j] - m.Base)
	}
	return nodes
}

// ElementPolygon returns the polygon outline of element i.
func (m *Mesh) ElementPolygon(i int) geom.Polygon {
	nodes := m.ElementNodes(i)
	ring := make([]geom.Point, len(nodes)+1)
	for j, n := range nodes {
		ring[j] = m.Node(n)
	}
	ring[len(nodes)] = ring[0]
	return geom.Polygon{ring}
}

// Bounds returns the horizontal extent of the mesh.
func (m *Mesh) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for i := range m.X {
		b.Extend(geom.NewBoundsPoint(m.Node(i)))
	}
	return b
}

// buildIndex creates the element spatial index on first use.
func (m *Mesh) buildIndex() {
	if m.index != nil {
		return
	}
	m.index = rtree.NewTree(25, 50)
	for i := 0; i < m.NumElements(); i++ {
		m.index.Insert(&meshElement{Polygon: m.ElementPolygon(i), i: i})
	}
}

// ElementAt returns the index of an element containing point p, or -1
// if p falls outside the mesh.
func (m *Mesh) ElementAt(p geom.Point) int {
	m.buildIndex()
	for _, e := range m.index.SearchIntersect(p.Bounds()) {
		el := e.(*meshElement)
		if p.Within(el.Polygon) != geom.Outside {
			return el.i
		}
	}
	return -1
}

// NearestNode returns the 0-based index of the mesh node nearest to
// p. If p falls inside the mesh, only the vertices of the containing
// element are considered; otherwise all nodes are scanned.
func (m *Mesh) NearestNode(p geom.Point) int {
	candidates := []int(nil)
	if e := m.ElementAt(p); e >= 0 {
		candidates = m.ElementNodes(e)
	} else {
		candidates = make([]int, m.NumNodes())
		for i := range candidates {
			candidates[i] = i
		}
	}
	best, bestDist := -1, math.Inf(1)
	for _, i := range candidates {
		dx, dy := m.X[i]-p.X, m.Y[i]-p.Y
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
