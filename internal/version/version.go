/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

// Values are overridden at build time, e.g.
//
//	go build -ldflags "-X movingcard/internal/version.Version=1.2.0 -X movingcard/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
	Date    = ""
)

// String returns a human readable version line.
func String() string {
	if Date == "" {
		return fmt.Sprintf("movingcard %s (%s)", Version, Commit)
	}
	return fmt.Sprintf("movingcard %s (%s, %s)", Version, Commit, Date)
}
