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
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/geom"
)

// leftSquare bounds the left half of the test mesh: nodes 1, 2, 4, 5
// (1-based) and the two triangles between them.
var leftSquare = &geom.Bounds{
	Min: geom.Point{X: -0.5, Y: -0.5},
	Max: geom.Point{X: 1.5, Y: 1.5},
}

func cropTestFile(t *testing.T, ds *Dataset, w TimeWindow) string {
	t.Helper()
	m, err := ds.ReadMesh()
	if err != nil {
		t.Fatal(err)
	}
	p, err := CropBounds(m, leftSquare)
	if err != nil {
		t.Fatal(err)
	}
	if !w.IsZero() {
		times, err := ds.Times()
		if err != nil {
			t.Fatal(err)
		}
		if err := p.WithTimeWindow(times, w); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(t.TempDir(), "subset.nc")
	if err := WriteSubsetFile(ds, p, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestWriteSubset(t *testing.T) {
	ds := openTestFile(t, true)
	if err := ds.Normalize(nil); err != nil {
		t.Fatal(err)
	}
	out, err := OpenDataset(cropTestFile(t, ds, TimeWindow{}))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if want, have := 4, out.dimLength("node"); want != have {
		t.Errorf("node dimension: want %d, have %d", want, have)
	}
	if want, have := 2, out.dimLength("nele"); want != have {
		t.Errorf("nele dimension: want %d, have %d", want, have)
	}
	if want, have := 2, out.NumRecords(); want != have {
		t.Errorf("records: want %d, have %d", want, have)
	}
	if out.HasVariable("nvel") {
		t.Error("dropped variable nvel present in subset")
	}

	x, err := out.ReadFloat("x")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 1, 0, 1}; !reflect.DeepEqual(want, x) {
		t.Errorf("x: want %v, have %v", want, x)
	}
	y, err := out.ReadFloat("y")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 0, 1, 1}; !reflect.DeepEqual(want, y) {
		t.Errorf("y: want %v, have %v", want, y)
	}
	depth, err := out.ReadFloat("depth")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{10, 11, 13, 14}; !reflect.DeepEqual(want, depth) {
		t.Errorf("depth: want %v, have %v", want, depth)
	}
	elems, err := out.ReadInt("element")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int32{1, 2, 4, 1, 4, 3}; !reflect.DeepEqual(want, elems) {
		t.Errorf("element: want %v, have %v", want, elems)
	}

	// The first record of zeta, gathered onto the kept nodes.
	buf, err := out.readRecord("zeta", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{0, 1, 3, 4}; !reflect.DeepEqual(want, buf.([]float32)) {
		t.Errorf("zeta record 0: want %v, have %v", want, buf)
	}

	// Attributes carry over.
	if want, have := "test mesh", out.Header().GetAttribute("", "title").(string); want != have {
		t.Errorf("title: want %q, have %q", want, have)
	}
	if want, have := "seconds since 2024-05-16 00:00:00", out.Header().GetAttribute("time", "units").(string); want != have {
		t.Errorf("time units: want %q, have %q", want, have)
	}

	// The subset is a valid mesh in its own right.
	m, err := out.ReadMesh()
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 4, m.NumNodes(); want != have {
		t.Errorf("subset mesh nodes: want %d, have %d", want, have)
	}
	if want, have := 2, m.NumElements(); want != have {
		t.Errorf("subset mesh elements: want %d, have %d", want, have)
	}
}

func TestWriteSubsetTimeWindow(t *testing.T) {
	ds := openTestFile(t, true)
	if err := ds.Normalize(nil); err != nil {
		t.Fatal(err)
	}
	w := TimeWindow{Start: time.Date(2024, 5, 16, 1, 0, 0, 0, time.UTC)}
	out, err := OpenDataset(cropTestFile(t, ds, w))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if want, have := 1, out.NumRecords(); want != have {
		t.Errorf("records: want %d, have %d", want, have)
	}
	times, err := out.Times()
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 5, 16, 1, 0, 0, 0, time.UTC); !times[0].Equal(want) {
		t.Errorf("time: want %v, have %v", want, times[0])
	}
	buf, err := out.readRecord("zeta", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{100, 101, 103, 104}; !reflect.DeepEqual(want, buf.([]float32)) {
		t.Errorf("zeta: want %v, have %v", want, buf)
	}
}

func TestWriteSubsetInjectedConnectivity(t *testing.T) {
	ds := openTestFile(t, false)
	companion := openTestFile(t, true)
	if err := ds.Normalize(companion); err != nil {
		t.Fatal(err)
	}
	out, err := OpenDataset(cropTestFile(t, ds, TimeWindow{}))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if !out.HasVariable("element") {
		t.Fatal("injected element variable missing from subset")
	}
	if want, have := 2, out.dimLength("nele"); want != have {
		t.Errorf("nele dimension: want %d, have %d", want, have)
	}
	if want, have := 3, out.dimLength("nvertex"); want != have {
		t.Errorf("nvertex dimension: want %d, have %d", want, have)
	}
	elems, err := out.ReadInt("element")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int32{1, 2, 4, 1, 4, 3}; !reflect.DeepEqual(want, elems) {
		t.Errorf("element: want %v, have %v", want, elems)
	}
	if want, have := []int32{1}, out.Header().GetAttribute("element", "start_index").([]int32); !reflect.DeepEqual(want, have) {
		t.Errorf("start_index: want %v, have %v", want, have)
	}
	// The subset stands alone: its mesh is readable without a
	// companion.
	if _, err := out.ReadMesh(); err != nil {
		t.Fatal(err)
	}
}
