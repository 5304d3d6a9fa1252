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
	"bytes"
	"fmt"
	"time"

	"github.com/gonum/floats"
)

// A Summary describes the contents of one dataset.
type Summary struct {
	Convention  string
	NumNodes    int
	NumElements int
	NumRecords  int

	// XMin etc. give the horizontal extent of the mesh nodes.
	XMin, XMax, YMin, YMax float64

	// TimeStart and TimeEnd bound the time coordinate, if the
	// dataset has one.
	TimeStart, TimeEnd time.Time

	Variables []string
}

// Summarize builds a digest of the dataset for logs and the info
// command. The connectivity table is optional here: files that rely
// on a companion report zero elements.
func (ds *Dataset) Summarize() (*Summary, error) {
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
	s := &Summary{
		Convention: c.Name,
		NumNodes:   len(x),
		NumRecords: ds.NumRecords(),
		XMin:       floats.Min(x),
		XMax:       floats.Max(x),
		YMin:       floats.Min(y),
		YMax:       floats.Max(y),
	}
	if ds.hasDim(c.ElemDim) {
		s.NumElements = ds.dimLength(c.ElemDim)
	}
	if ds.HasVariable(c.TimeVar) && s.NumRecords > 0 {
		times, err := ds.Times()
		if err == nil {
			s.TimeStart, s.TimeEnd = times[0], times[len(times)-1]
		}
	}
	for _, v := range ds.f.Header.Variables() {
		if !ds.IsDropped(v) {
			s.Variables = append(s.Variables, v)
		}
	}
	return s, nil
}

func (s *Summary) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "convention: %s\n", s.Convention)
	fmt.Fprintf(&b, "nodes: %d, elements: %d, records: %d\n", s.NumNodes, s.NumElements, s.NumRecords)
	fmt.Fprintf(&b, "extent: lon [%g, %g], lat [%g, %g]\n", s.XMin, s.XMax, s.YMin, s.YMax)
	if !s.TimeStart.IsZero() {
		fmt.Fprintf(&b, "time: %s to %s\n", s.TimeStart.Format(time.RFC3339), s.TimeEnd.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "variables: %v\n", s.Variables)
	return b.String()
}
