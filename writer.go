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
	"io"
	"os"
	"reflect"

	"github.com/ctessum/cdf"
)

// WriteSubsetFile applies plan p to ds and writes the result to a new
// NetCDF file at filename.
func WriteSubsetFile(ds *Dataset, p *Plan, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("stofsub: creating subset file: %v", err)
	}
	if err := WriteSubset(ds, p, f); err != nil {
		f.Close()
		os.Remove(filename)
		return err
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		f.Close()
		return fmt.Errorf("stofsub: finalizing subset file: %v", err)
	}
	return f.Close()
}

// WriteSubset applies plan p to ds and writes a classic-format NetCDF
// subset to out. Variable order, data types, dimension names, and
// attributes are carried over from the source; the mesh dimensions
// are shrunk to the plan's node and element counts and record
// variables are restricted to the plan's record range. The caller is
// responsible for updating the output's numrecs field afterwards
// (see cdf.UpdateNumRecs); WriteSubsetFile handles that.
func WriteSubset(ds *Dataset, p *Plan, out cdf.ReaderWriterAt) error {
	conv, err := ds.Convention()
	if err != nil {
		return err
	}
	sh := ds.f.Header

	elemInjected := !ds.HasVariable(conv.ElemVar) && ds.attached != nil

	dims := sh.Dimensions("")
	lengths := sh.Lengths("")
	newDims := make([]string, len(dims))
	newLengths := make([]int, len(dims))
	for i, d := range dims {
		newDims[i] = d
		switch d {
		case conv.NodeDim:
			newLengths[i] = len(p.Nodes)
		case conv.ElemDim:
			newLengths[i] = len(p.Elements)
		default:
			newLengths[i] = lengths[i] // the record dimension stays 0
		}
	}
	if elemInjected {
		// Product files that omit the element table usually omit
		// its dimensions too, but only add the ones missing.
		if !ds.hasDim(conv.ElemDim) {
			newDims = append(newDims, conv.ElemDim)
			newLengths = append(newLengths, len(p.Elements))
		}
		if !ds.hasDim(conv.VertexDim) {
			newDims = append(newDims, conv.VertexDim)
			newLengths = append(newLengths, ds.attached.numVerts)
		}
	}

	h := cdf.NewHeader(newDims, newLengths)
	for _, a := range sh.Attributes("") {
		h.AddAttribute("", a, sh.GetAttribute("", a))
	}

	var outVars []string
	for _, v := range sh.Variables() {
		if ds.IsDropped(v) {
			continue
		}
		h.AddVariable(v, sh.Dimensions(v), sh.ZeroValue(v, 1))
		for _, a := range sh.Attributes(v) {
			h.AddAttribute(v, a, sh.GetAttribute(v, a))
		}
		outVars = append(outVars, v)
	}
	if elemInjected {
		h.AddVariable(conv.ElemVar, []string{conv.ElemDim, conv.VertexDim}, []int32{0})
		h.AddAttribute(conv.ElemVar, "start_index", []int32{ds.mesh0Base()})
		outVars = append(outVars, conv.ElemVar)
	}

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("stofsub: assembling subset header: %v", err)
	}

	f, err := cdf.Create(out, h)
	if err != nil {
		return fmt.Errorf("stofsub: creating subset: %v", err)
	}

	first, last := p.recordRange(ds.NumRecords())
	for _, v := range outVars {
		if v == conv.ElemVar {
			if err := writeAll(f, v, p.Connectivity); err != nil {
				return err
			}
			continue
		}
		if sh.IsRecordVariable(v) {
			if err := copyRecordVar(ds, p, conv, f, v, first, last); err != nil {
				return err
			}
			continue
		}
		buf, err := ds.readVar(v, nil, nil)
		if err != nil {
			return err
		}
		buf = gatherMeshAxes(buf, sh.Lengths(v), sh.Dimensions(v), conv, p)
		if err := writeAll(f, v, buf); err != nil {
			return err
		}
	}
	return nil
}

// mesh0Base returns the index base of the attached connectivity, for
// the start_index attribute of an injected element variable.
func (ds *Dataset) mesh0Base() int32 {
	c, err := ds.Convention()
	if err != nil || ds.attached == nil {
		return 1
	}
	return indexBase(ds.attached.elements, ds.dimLength(c.NodeDim))
}

// copyRecordVar copies records first through last of record variable
// v from ds into f, applying the plan's mesh subsetting to each
// record slab.
func copyRecordVar(ds *Dataset, p *Plan, conv Convention, f *cdf.File, v string, first, last int) error {
	sh := ds.f.Header
	slabShape := sh.Lengths(v)[1:]
	slabDims := sh.Dimensions(v)[1:]
	w := f.Writer(v, nil, nil)
	for r := first; r <= last; r++ {
		buf, err := ds.readRecord(v, r)
		if err != nil {
			return err
		}
		buf = gatherMeshAxes(buf, slabShape, slabDims, conv, p)
		if _, err := w.Write(buf); err != nil && err != io.EOF {
			return fmt.Errorf("stofsub: writing record %d of variable %s: %v", r, v, err)
		}
	}
	return nil
}

// writeAll writes the complete contents of non-record variable v.
func writeAll(f *cdf.File, v string, buf interface{}) error {
	w := f.Writer(v, nil, nil)
	if _, err := w.Write(buf); err != nil && err != io.EOF {
		return fmt.Errorf("stofsub: writing variable %s: %v", v, err)
	}
	return nil
}

// gatherMeshAxes subsets buf, shaped by shape/dims, along any axis
// that runs over the mesh's node or element dimension.
func gatherMeshAxes(buf interface{}, shape []int, dims []string, conv Convention, p *Plan) interface{} {
	for axis, d := range dims {
		switch d {
		case conv.NodeDim:
			buf = gatherAxis(buf, shape, axis, p.Nodes)
			shape = replaceLen(shape, axis, len(p.Nodes))
		case conv.ElemDim:
			buf = gatherAxis(buf, shape, axis, p.Elements)
			shape = replaceLen(shape, axis, len(p.Elements))
		}
	}
	return buf
}

func replaceLen(shape []int, axis, n int) []int {
	out := make([]int, len(shape))
	copy(out, shape)
	out[axis] = n
	return out
}

// gatherAxis picks the given indices out of one axis of a flattened
// array, preserving all other axes.
func gatherAxis(buf interface{}, shape []int, axis int, idx []int) interface{} {
	v := reflect.ValueOf(buf)
	inner := 1
	for _, s := range shape[axis+1:] {
		inner *= s
	}
	outer := 1
	for _, s := range shape[:axis] {
		outer *= s
	}
	out := reflect.MakeSlice(v.Type(), outer*len(idx)*inner, outer*len(idx)*inner)
	for o := 0; o < outer; o++ {
		for j, i := range idx {
			src := (o*shape[axis] + i) * inner
			dst := (o*len(idx) + j) * inner
			reflect.Copy(out.Slice(dst, dst+inner), v.Slice(src, src+inner))
		}
	}
	return out.Interface()
}
