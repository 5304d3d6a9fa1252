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
	"strings"

	"github.com/spf13/cast"
)

// getStringSlice returns a []string from the configuration, accounting
// for the fact that the value is a comma-separated string if it was
// set from an environment variable or configuration file.
func getStringSlice(varName string) ([]string, error) {
	i := Cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		return cast.ToStringSliceE(i)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		parts := strings.Split(v, ",")
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("stofsub: invalid type %T for configuration variable %s", i, varName)
	}
}
