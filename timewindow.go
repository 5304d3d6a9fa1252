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
	"strings"
	"time"
)

// A TimeWindow selects the forecast records between Start and End,
// inclusive. A zero Start or End leaves that side unbounded.
type TimeWindow struct {
	Start, End time.Time
}

// IsZero reports whether the window places no constraint on time.
func (w TimeWindow) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// timeUnitScales maps CF time unit names to their durations.
var timeUnitScales = map[string]time.Duration{
	"seconds": time.Second,
	"second":  time.Second,
	"s":       time.Second,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"min":     time.Minute,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"h":       time.Hour,
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"d":       24 * time.Hour,
}

// epochLayouts lists the timestamp layouts seen in STOFS and other
// CF-convention time units attributes.
var epochLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimeUnits interprets a CF-style time units attribute such as
// "seconds since 2024-05-16 00:00:00 UTC", returning the duration of
// one time unit and the epoch it counts from.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("stofsub: cannot interpret time units %q", units)
	}
	scale, ok := timeUnitScales[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("stofsub: unsupported time unit %q", parts[0])
	}
	stamp := strings.TrimSpace(parts[1])
	for _, layout := range epochLayouts {
		if epoch, err := time.Parse(layout, stamp); err == nil {
			return scale, epoch.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("stofsub: cannot parse time epoch %q", stamp)
}

// Times decodes the dataset's time coordinate variable into UTC
// timestamps, one per record.
func (ds *Dataset) Times() ([]time.Time, error) {
	c, err := ds.Convention()
	if err != nil {
		return nil, err
	}
	units, _ := ds.f.Header.GetAttribute(c.TimeVar, "units").(string)
	if units == "" {
		return nil, fmt.Errorf("stofsub: time variable %s has no units attribute", c.TimeVar)
	}
	scale, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	nrec := ds.NumRecords()
	times := make([]time.Time, nrec)
	for r := 0; r < nrec; r++ {
		buf, err := ds.readRecord(c.TimeVar, r)
		if err != nil {
			return nil, err
		}
		var offset float64
		switch b := buf.(type) {
		case []float64:
			offset = b[0]
		case []float32:
			offset = float64(b[0])
		case []int32:
			offset = float64(b[0])
		default:
			return nil, fmt.Errorf("stofsub: time variable %s has unsupported type", c.TimeVar)
		}
		times[r] = epoch.Add(time.Duration(offset * float64(scale)))
	}
	return times, nil
}

// WithTimeWindow narrows the plan to the records whose timestamps
// fall within w, clamping a partially overlapping window to the
// available range. times must be ascending, as decoded by Times.
func (p *Plan) WithTimeWindow(times []time.Time, w TimeWindow) error {
	if w.IsZero() {
		p.FirstRecord, p.LastRecord = -1, -1
		return nil
	}
	if len(times) == 0 {
		return fmt.Errorf("stofsub: dataset has no time records to select from")
	}
	first, last := -1, -1
	for i, t := range times {
		if !w.Start.IsZero() && t.Before(w.Start) {
			continue
		}
		if !w.End.IsZero() && t.After(w.End) {
			break
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	if first == -1 {
		return fmt.Errorf("stofsub: no records between %v and %v; dataset covers %v to %v",
			w.Start, w.End, times[0], times[len(times)-1])
	}
	p.FirstRecord, p.LastRecord = first, last
	return nil
}

// recordRange resolves the plan's record bounds against a dataset
// with nrec records.
func (p *Plan) recordRange(nrec int) (first, last int) {
	first, last = p.FirstRecord, p.LastRecord
	if first < 0 {
		first = 0
	}
	if last < 0 || last >= nrec {
		last = nrec - 1
	}
	return first, last
}
