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

package stofsubutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
)

// A Region is a named query bounding box.
type Region struct {
	Name   string
	Bounds *geom.Bounds
}

// ParseBBox parses a single "minLon,maxLon,minLat,maxLat" bounding
// box specification.
func ParseBBox(s string) (*geom.Bounds, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("stofsub: bounding box %q must have 4 comma-separated values", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("stofsub: bounding box %q: %v", s, err)
		}
		vals[i] = v
	}
	return boundsFromCorners(vals)
}

// boundsFromCorners converts the (minLon, maxLon, minLat, maxLat) order
// used by the operational scripts into bounds.
func boundsFromCorners(v []float64) (*geom.Bounds, error) {
	if v[0] >= v[1] || v[2] >= v[3] {
		return nil, fmt.Errorf("stofsub: degenerate bounding box (%g, %g, %g, %g); "+
			"order is minLon, maxLon, minLat, maxLat", v[0], v[1], v[2], v[3])
	}
	return &geom.Bounds{
		Min: geom.Point{X: v[0], Y: v[2]},
		Max: geom.Point{X: v[1], Y: v[3]},
	}, nil
}

// ParseRegions parses the packed multi-region form used by the
// operational scripts:
// "(minLon,maxLon,minLat,maxLat)(minLon,maxLon,minLat,maxLat)…".
func ParseRegions(s string) ([]*geom.Bounds, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	groups := strings.Split(s, ")(")
	groups[0] = strings.TrimPrefix(groups[0], "(")
	groups[len(groups)-1] = strings.TrimSuffix(groups[len(groups)-1], ")")
	out := make([]*geom.Bounds, len(groups))
	for i, g := range groups {
		b, err := ParseBBox(g)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// NamedRegions pairs parsed region bounds with their names. Missing
// names are filled in as region1, region2, ….
func NamedRegions(bounds []*geom.Bounds, names []string) ([]Region, error) {
	if len(names) > len(bounds) {
		return nil, fmt.Errorf("stofsub: %d region names given for %d regions", len(names), len(bounds))
	}
	out := make([]Region, len(bounds))
	for i, b := range bounds {
		name := fmt.Sprintf("region%d", i+1)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = strings.TrimSpace(names[i])
		}
		out[i] = Region{Name: name, Bounds: b}
	}
	return out, nil
}

// regionFile is the TOML region definition format:
//
//	[[region]]
//	name = "Marianas"
//	bbox = [144.5, 145.9, 13.1, 15.5]
type regionFile struct {
	Region []struct {
		Name string    `toml:"name"`
		BBox []float64 `toml:"bbox"`
	} `toml:"region"`
}

// LoadRegionFile reads region definitions from a TOML file.
func LoadRegionFile(path string) ([]Region, error) {
	var rf regionFile
	if _, err := toml.DecodeFile(path, &rf); err != nil {
		return nil, fmt.Errorf("stofsub: reading region file: %v", err)
	}
	out := make([]Region, len(rf.Region))
	for i, r := range rf.Region {
		if len(r.BBox) != 4 {
			return nil, fmt.Errorf("stofsub: region %q bbox must have 4 values", r.Name)
		}
		b, err := boundsFromCorners(r.BBox)
		if err != nil {
			return nil, err
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("region%d", i+1)
		}
		out[i] = Region{Name: name, Bounds: b}
	}
	return out, nil
}
