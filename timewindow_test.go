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
	"testing"
	"time"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units     string
		wantScale time.Duration
		wantEpoch time.Time
		wantErr   bool
	}{
		{
			units:     "seconds since 2024-05-16 00:00:00",
			wantScale: time.Second,
			wantEpoch: time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			units:     "hours since 2024-05-16",
			wantScale: time.Hour,
			wantEpoch: time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			units:     "minutes since 2024-05-16T12:00:00Z",
			wantScale: time.Minute,
			wantEpoch: time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC),
		},
		{units: "furlongs since 2024-05-16", wantErr: true},
		{units: "no epoch here", wantErr: true},
		{units: "seconds since gibberish", wantErr: true},
	}
	for _, test := range tests {
		scale, epoch, err := ParseTimeUnits(test.units)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", test.units)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", test.units, err)
			continue
		}
		if scale != test.wantScale {
			t.Errorf("%q: scale want %v, have %v", test.units, test.wantScale, scale)
		}
		if !epoch.Equal(test.wantEpoch) {
			t.Errorf("%q: epoch want %v, have %v", test.units, test.wantEpoch, epoch)
		}
	}
}

func TestTimes(t *testing.T) {
	ds := openTestFile(t, true)
	times, err := ds.Times()
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 16, 1, 0, 0, 0, time.UTC),
	}
	if len(times) != len(want) {
		t.Fatalf("times: want %d records, have %d", len(want), len(times))
	}
	for i := range want {
		if !times[i].Equal(want[i]) {
			t.Errorf("record %d: want %v, have %v", i, want[i], times[i])
		}
	}
}

func TestWithTimeWindow(t *testing.T) {
	base := time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(1 * time.Hour),
		base.Add(2 * time.Hour),
		base.Add(3 * time.Hour),
	}
	tests := []struct {
		name                string
		window              TimeWindow
		wantFirst, wantLast int
		wantErr             bool
	}{
		{
			name:      "interior",
			window:    TimeWindow{Start: times[1], End: times[2]},
			wantFirst: 1, wantLast: 2,
		},
		{
			name:      "clamped",
			window:    TimeWindow{Start: base.Add(-time.Hour), End: base.Add(10 * time.Hour)},
			wantFirst: 0, wantLast: 3,
		},
		{
			name:      "open start",
			window:    TimeWindow{End: times[1]},
			wantFirst: 0, wantLast: 1,
		},
		{
			name:      "open end",
			window:    TimeWindow{Start: times[2]},
			wantFirst: 2, wantLast: 3,
		},
		{
			name:      "zero window",
			window:    TimeWindow{},
			wantFirst: -1, wantLast: -1,
		},
		{
			name:    "disjoint",
			window:  TimeWindow{Start: base.Add(10 * time.Hour), End: base.Add(12 * time.Hour)},
			wantErr: true,
		},
	}
	for _, test := range tests {
		p := &Plan{FirstRecord: -1, LastRecord: -1}
		err := p.WithTimeWindow(times, test.window)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if p.FirstRecord != test.wantFirst || p.LastRecord != test.wantLast {
			t.Errorf("%s: want [%d, %d], have [%d, %d]",
				test.name, test.wantFirst, test.wantLast, p.FirstRecord, p.LastRecord)
		}
	}
}

func TestWithTimeWindowNoRecords(t *testing.T) {
	p := &Plan{FirstRecord: -1, LastRecord: -1}
	w := TimeWindow{Start: time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)}
	if err := p.WithTimeWindow(nil, w); err == nil {
		t.Error("expected error for a dataset with no time records")
	}
}
