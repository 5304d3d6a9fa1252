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
)

// A Convention maps the dimension and variable names of a mesh file
// format onto the mesh concepts the subsetter works with. STOFS-2D
// files use ADCIRC naming and STOFS-3D files use SCHISM naming.
type Convention struct {
	Name string

	NodeDim   string
	ElemDim   string
	VertexDim string

	XVar     string
	YVar     string
	DepthVar string
	ElemVar  string
	TimeVar  string
}

var conventions = []Convention{
	{
		Name:      "adcirc",
		NodeDim:   "node",
		ElemDim:   "nele",
		VertexDim: "nvertex",
		XVar:      "x",
		YVar:      "y",
		DepthVar:  "depth",
		ElemVar:   "element",
		TimeVar:   "time",
	},
	{
		Name:      "schism",
		NodeDim:   "nSCHISM_hgrid_node",
		ElemDim:   "nSCHISM_hgrid_face",
		VertexDim: "nMaxSCHISM_hgrid_face_nodes",
		XVar:      "SCHISM_hgrid_node_x",
		YVar:      "SCHISM_hgrid_node_y",
		DepthVar:  "depth",
		ElemVar:   "SCHISM_hgrid_face_nodes",
		TimeVar:   "time",
	},
}

// DefaultDropVariables lists variables that are removed from subsets
// by default. The velocity-node variable in STOFS-2D output reuses a
// dimension name in a way many readers cannot represent, so the
// operational subsetting workflow discards it.
var DefaultDropVariables = []string{"nvel"}

// Convention determines the mesh naming convention the dataset
// follows. A dataset qualifies as long as it has node coordinate
// variables; the connectivity table may be missing (some STOFS
// products omit it and rely on a companion file).
func (ds *Dataset) Convention() (Convention, error) {
	for _, c := range conventions {
		if ds.HasVariable(c.XVar) && ds.HasVariable(c.YVar) && ds.hasDim(c.NodeDim) {
			return c, nil
		}
	}
	return Convention{}, fmt.Errorf("stofsub: dataset does not follow a recognized mesh convention")
}

func (ds *Dataset) hasDim(dim string) bool {
	for _, d := range ds.f.Header.Dimensions("") {
		if d == dim {
			return true
		}
	}
	return false
}

// HasConnectivity reports whether the dataset carries its own element
// table or has had one attached.
func (ds *Dataset) HasConnectivity() bool {
	c, err := ds.Convention()
	if err != nil {
		return false
	}
	return ds.HasVariable(c.ElemVar) || ds.attached != nil
}

// AttachConnectivity copies the element table from a companion
// dataset (e.g. the fields.cwl product of the same forecast cycle)
// into ds, for product files that omit it. The companion must follow
// the same convention and describe a mesh with the same number of
// nodes.
func (ds *Dataset) AttachConnectivity(companion *Dataset) error {
	c, err := ds.Convention()
	if err != nil {
		return err
	}
	cc, err := companion.Convention()
	if err != nil {
		return fmt.Errorf("stofsub: connectivity companion: %v", err)
	}
	if c.Name != cc.Name {
		return fmt.Errorf("stofsub: connectivity companion follows convention %s but dataset follows %s", cc.Name, c.Name)
	}
	if n, nc := ds.dimLength(c.NodeDim), companion.dimLength(cc.NodeDim); n != nc {
		return fmt.Errorf("stofsub: connectivity companion has %d nodes but dataset has %d", nc, n)
	}
	if !companion.HasVariable(cc.ElemVar) {
		return fmt.Errorf("stofsub: connectivity companion has no %s variable", cc.ElemVar)
	}
	elems, err := companion.ReadInt(cc.ElemVar)
	if err != nil {
		return err
	}
	ds.attached = &connectivity{
		elements: elems,
		numElems: companion.dimLength(cc.ElemDim),
		numVerts: companion.dimLength(cc.VertexDim),
	}
	return nil
}

// Normalize prepares the dataset for subsetting: it checks that the
// mesh convention is recognized, drops the default problem variables,
// and, if the dataset lacks an element table, attaches one from
// companion (which may be nil if no companion is available).
func (ds *Dataset) Normalize(companion *Dataset) error {
	c, err := ds.Convention()
	if err != nil {
		return err
	}
	ds.Drop(DefaultDropVariables...)
	if ds.HasVariable(c.ElemVar) {
		return nil
	}
	if companion == nil {
		return fmt.Errorf("stofsub: dataset has no %s variable and no connectivity companion was provided", c.ElemVar)
	}
	return ds.AttachConnectivity(companion)
}
