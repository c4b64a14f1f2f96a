/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type mapPrefs map[string]string

func (m mapPrefs) StringWithFallback(key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func (m mapPrefs) SetString(key, value string) { m[key] = value }

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRecentLayoutsOrderAndDedup(t *testing.T) {
	dir := t.TempDir()
	a, b := touch(t, dir, "a.json"), touch(t, dir, "b.json")
	p := mapPrefs{}
	addRecentLayout(p, a)
	addRecentLayout(p, b)
	addRecentLayout(p, a)
	got := loadRecentLayouts(p)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("recent = %v", got)
	}
}

func TestRecentLayoutsDropsMissingAndCaps(t *testing.T) {
	dir := t.TempDir()
	p := mapPrefs{}
	for i := 0; i < recentMax+3; i++ {
		addRecentLayout(p, touch(t, dir, fmt.Sprintf("%02d.json", i)))
	}
	got := loadRecentLayouts(p)
	if len(got) != recentMax {
		t.Fatalf("len = %d, want %d", len(got), recentMax)
	}
	if err := os.Remove(got[0]); err != nil {
		t.Fatal(err)
	}
	if again := loadRecentLayouts(p); len(again) != recentMax-1 {
		t.Fatalf("missing file kept: %v", again)
	}
	if got := loadRecentLayouts(mapPrefs{recentPrefsKey: "not json"}); len(got) != 0 {
		t.Fatalf("garbage prefs = %v", got)
	}
}
