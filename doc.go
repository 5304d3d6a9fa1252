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

// Package stofsub extracts spatial and temporal subsets from STOFS
// (Surge and Tide Operational Forecast System) model output.
//
// STOFS output is stored in classic-format NetCDF files on an
// unstructured triangular mesh: node coordinate variables, an element
// connectivity table, and an unlimited time dimension carrying the
// forecast records. Subsetting keeps the nodes that fall within a
// query region, keeps the elements whose vertices all survive,
// reindexes the connectivity table, and writes a new self-contained
// NetCDF file that downstream tools can treat exactly like the
// original global file.
package stofsub

// Version gives the version number of this tool.
const Version = "0.3.0"
