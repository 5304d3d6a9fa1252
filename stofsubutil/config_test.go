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
	"reflect"
	"testing"
)

func TestGetStringSlice(t *testing.T) {
	tests := []struct {
		val  interface{}
		want []string
	}{
		{[]string{"00", "06"}, []string{"00", "06"}},
		{"00, 06, 12", []string{"00", "06", "12"}},
		{"", nil},
		{[]interface{}{"a", "b"}, []string{"a", "b"}},
	}
	for _, test := range tests {
		Cfg.Set("cycles", test.val)
		have, err := getStringSlice("cycles")
		if err != nil {
			t.Errorf("%#v: %v", test.val, err)
			continue
		}
		if !reflect.DeepEqual(test.want, have) {
			t.Errorf("%#v: want %v, have %v", test.val, test.want, have)
		}
	}
	Cfg.Set("cycles", []string{"00", "06", "12", "18"})
}
