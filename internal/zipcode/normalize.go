/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package zipcode resolves Japanese postal codes to a prefecture and city.
package zipcode

import (
	"strings"

	"golang.org/x/text/width"
)

// Length is the number of digits in a complete postal code.
const Length = 7

// Normalize folds full-width characters to half-width and drops everything
// that is not an ASCII digit. "１２３－４５６７" becomes "1234567".
func Normalize(raw string) string {
	narrow := width.Narrow.String(raw)
	var b strings.Builder
	b.Grow(len(narrow))
	for _, r := range narrow {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Ready reports whether zip is a complete, normalized postal code.
func Ready(zip string) bool {
	if len(zip) != Length {
		return false
	}
	for i := 0; i < len(zip); i++ {
		if zip[i] < '0' || zip[i] > '9' {
			return false
		}
	}
	return true
}
