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

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// A Dataset provides access to one STOFS NetCDF model output file.
type Dataset struct {
	f    *cdf.File
	size int64 // storage size in bytes; -1 if unknown.

	closer io.Closer

	// dropped holds variables that should be skipped when the
	// dataset is subset or summarized.
	dropped map[string]struct{}

	// attached holds connectivity data injected from a companion
	// dataset by AttachConnectivity.
	attached *connectivity
}

// connectivity is an element table carried separately from the file
// it applies to.
type connectivity struct {
	elements           []int32
	numElems, numVerts int
}

// OpenDataset opens the NetCDF file at filename for reading.
// The returned Dataset should be closed after use.
func OpenDataset(filename string) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("stofsub: opening dataset: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stofsub: opening dataset: %v", err)
	}
	ds, err := NewDataset(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	ds.closer = f
	return ds, nil
}

// NewDataset creates a Dataset from in-memory or on-disk NetCDF
// storage. size is the total storage size in bytes, which is needed
// to derive the number of records in the unlimited dimension; it may
// be -1 if unknown.
func NewDataset(rw cdf.ReaderWriterAt, size int64) (*Dataset, error) {
	cf, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("stofsub: reading NetCDF header: %v", err)
	}
	return &Dataset{
		f:       cf,
		size:    size,
		dropped: make(map[string]struct{}),
	}, nil
}

// Close closes the underlying file, if the Dataset owns one.
func (ds *Dataset) Close() error {
	if ds.closer != nil {
		return ds.closer.Close()
	}
	return nil
}

// Header returns the NetCDF header of the dataset.
func (ds *Dataset) Header() *cdf.Header { return ds.f.Header }

// HasVariable reports whether the dataset contains a variable named v.
func (ds *Dataset) HasVariable(v string) bool {
	for _, vv := range ds.f.Header.Variables() {
		if vv == v {
			return true
		}
	}
	return false
}

// Drop marks the named variables to be skipped by subsetting and
// summaries. Dropping a variable that does not exist is not an error.
func (ds *Dataset) Drop(names ...string) {
	for _, n := range names {
		ds.dropped[n] = struct{}{}
	}
}

// IsDropped reports whether the named variable has been dropped.
func (ds *Dataset) IsDropped(v string) bool {
	_, ok := ds.dropped[v]
	return ok
}

// NumRecords returns the number of records in the unlimited (time)
// dimension, or 0 if the dataset has no record variables.
func (ds *Dataset) NumRecords() int {
	return int(ds.f.Header.NumRecs(ds.size))
}

// dimLength returns the length of the named dimension, substituting
// the record count for the unlimited dimension.
func (ds *Dataset) dimLength(dim string) int {
	dims := ds.f.Header.Dimensions("")
	lengths := ds.f.Header.Lengths("")
	for i, d := range dims {
		if d == dim {
			if lengths[i] == 0 {
				return ds.NumRecords()
			}
			return lengths[i]
		}
	}
	return -1
}

// varShape returns the shape of variable v with the record dimension,
// if any, resolved to the actual record count.
func (ds *Dataset) varShape(v string) []int {
	lengths := ds.f.Header.Lengths(v)
	if lengths == nil {
		return nil
	}
	shape := make([]int, len(lengths))
	copy(shape, lengths)
	if ds.f.Header.IsRecordVariable(v) {
		shape[0] = ds.NumRecords()
	}
	return shape
}

// readVar reads the hyperslab of variable v between the corners begin
// and end (inclusive), returning a slice of the variable's storage
// type. nil corners select the whole variable; record variables must
// be read with explicit corners.
func (ds *Dataset) readVar(v string, begin, end []int) (interface{}, error) {
	r := ds.f.Reader(v, begin, end)
	if r == nil {
		return nil, fmt.Errorf("stofsub: no variable %q in dataset", v)
	}
	n := -1
	if begin != nil && end != nil {
		n = 1
		for i := range begin {
			n *= end[i] - begin[i] + 1
		}
	}
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("stofsub: reading variable %s: %v", v, err)
	}
	return buf, nil
}

// readRecord reads the r'th record of record variable v.
func (ds *Dataset) readRecord(v string, r int) (interface{}, error) {
	lengths := ds.f.Header.Lengths(v)
	begin := make([]int, len(lengths))
	end := make([]int, len(lengths))
	begin[0], end[0] = r, r
	for i := 1; i < len(lengths); i++ {
		end[i] = lengths[i] - 1
	}
	return ds.readVar(v, begin, end)
}

// ReadFloat reads the full contents of variable v as float64 values,
// converting from float32 storage if necessary.
func (ds *Dataset) ReadFloat(v string) ([]float64, error) {
	buf, err := ds.readVar(v, nil, nil)
	if err != nil {
		return nil, err
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("stofsub: variable %s is not floating point", v)
}

// ReadInt reads the full contents of variable v as int32 values.
func (ds *Dataset) ReadInt(v string) ([]int32, error) {
	buf, err := ds.readVar(v, nil, nil)
	if err != nil {
		return nil, err
	}
	switch b := buf.(type) {
	case []int32:
		return b, nil
	case []int16:
		out := make([]int32, len(b))
		for i, x := range b {
			out[i] = int32(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("stofsub: variable %s is not an integer type", v)
}

// ReadDense reads the full contents of floating-point variable v into
// a dense array shaped like the variable.
func (ds *Dataset) ReadDense(v string) (*sparse.DenseArray, error) {
	vals, err := ds.ReadFloat(v)
	if err != nil {
		return nil, err
	}
	shape := ds.varShape(v)
	if shape == nil {
		return nil, fmt.Errorf("stofsub: no variable %q in dataset", v)
	}
	data := sparse.ZerosDense(shape...)
	copy(data.Elements, vals)
	return data, nil
}

// ReadSeries reads record variable v at a single index of its
// trailing dimension (typically a node) across all records.
func (ds *Dataset) ReadSeries(v string, index int) ([]float64, error) {
	if !ds.f.Header.IsRecordVariable(v) {
		return nil, fmt.Errorf("stofsub: variable %s has no time dimension", v)
	}
	lengths := ds.f.Header.Lengths(v)
	if index < 0 || index >= lengths[len(lengths)-1] {
		return nil, fmt.Errorf("stofsub: index %d out of range for variable %s", index, v)
	}
	nrec := ds.NumRecords()
	out := make([]float64, nrec)
	begin := make([]int, len(lengths))
	end := make([]int, len(lengths))
	for r := 0; r < nrec; r++ {
		begin[0], end[0] = r, r
		begin[len(begin)-1], end[len(end)-1] = index, index
		buf, err := ds.readVar(v, begin, end)
		if err != nil {
			return nil, err
		}
		switch b := buf.(type) {
		case []float64:
			out[r] = b[0]
		case []float32:
			out[r] = float64(b[0])
		default:
			return nil, fmt.Errorf("stofsub: variable %s is not floating point", v)
		}
	}
	return out, nil
}
