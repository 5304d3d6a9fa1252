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

// Command stofsub is a command-line interface for subsetting STOFS
// model output.
package main

import (
	"fmt"
	"os"

	"github.com/oceanmodeling/stofsub/stofsubutil"
)

func main() {
	if err := stofsubutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
