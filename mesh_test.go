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
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func testMesh(t *testing.T) *Mesh {
	t.Helper()
	ds := openTestFile(t, true)
	m, err := ds.ReadMesh()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestReadMesh(t *testing.T) {
	m := testMesh(t)
	if want, have := 6, m.NumNodes(); want != have {
		t.Errorf("nodes: want %d, have %d", want, have)
	}
	if want, have := 4, m.NumElements(); want != have {
		t.Errorf("elements: want %d, have %d", want, have)
	}
	if want, have := 3, m.NumVerts; want != have {
		t.Errorf("vertices per element: want %d, have %d", want, have)
	}
	if want, have := int32(1), m.Base; want != have {
		t.Errorf("index base: want %d, have %d", want, have)
	}
	if want, have := []int{0, 1, 4}, m.ElementNodes(0); !reflect.DeepEqual(want, have) {
		t.Errorf("element 0 nodes: want %v, have %v", want, have)
	}
	if !reflect.DeepEqual(testDepth, m.Depth) {
		t.Errorf("depth: want %v, have %v", testDepth, m.Depth)
	}
	b := m.Bounds()
	if b.Min.X != 0 || b.Max.X != 2 || b.Min.Y != 0 || b.Max.Y != 1 {
		t.Errorf("bounds: have %+v", b)
	}
}

func TestElementAt(t *testing.T) {
	m := testMesh(t)
	tests := []struct {
		p    geom.Point
		want int
	}{
		{geom.Point{X: 0.5, Y: 0.1}, 0},
		{geom.Point{X: 0.1, Y: 0.8}, 1},
		{geom.Point{X: 3, Y: 3}, -1},
		{geom.Point{X: -0.1, Y: 0.5}, -1},
	}
	for _, test := range tests {
		if have := m.ElementAt(test.p); have != test.want {
			t.Errorf("element at %v: want %d, have %d", test.p, test.want, have)
		}
	}
}

func TestNearestNode(t *testing.T) {
	m := testMesh(t)
	tests := []struct {
		p    geom.Point
		want int
	}{
		{geom.Point{X: 0.9, Y: 0.9}, 4},
		{geom.Point{X: 0.1, Y: 0.1}, 0},
		{geom.Point{X: -5, Y: -5}, 0}, // outside the mesh; full scan
		{geom.Point{X: 2.5, Y: 1.5}, 5},
	}
	for _, test := range tests {
		if have := m.NearestNode(test.p); have != test.want {
			t.Errorf("nearest node to %v: want %d, have %d", test.p, test.want, have)
		}
	}
}

func TestIndexBase(t *testing.T) {
	tests := []struct {
		elements []int32
		numNodes int
		want     int32
	}{
		{[]int32{0, 1, 2}, 6, 0},
		{[]int32{1, 2, 6}, 6, 1},
		{[]int32{2, 3, 4}, 6, 1}, // ambiguous; 1-based is the convention
	}
	for _, test := range tests {
		if have := indexBase(test.elements, test.numNodes); have != test.want {
			t.Errorf("indexBase(%v, %d): want %d, have %d", test.elements, test.numNodes, test.want, have)
		}
	}
}
