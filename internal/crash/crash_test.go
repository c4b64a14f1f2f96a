/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReportWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := Report(Info{Command: "serve", Dir: dir, SessionID: "abc", Route: "/api/s/{id}/canvas"}, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written to %s, want dir %s", path, dir)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	for _, want := range []string{"MovingCard Crash Report", "Command: serve", "Session: abc", "Panic: boom", "stacktrace"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report missing %q:\n%s", want, s)
		}
	}
}

func TestReportDefaultsToTempDir(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	path, err := Report(Info{}, "kaboom", nil)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if !strings.HasPrefix(path, os.TempDir()) {
		t.Fatalf("expected report under %s, got %s", os.TempDir(), path)
	}
}

func TestRecoverWritesReportAndExits(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	func() {
		defer Recover(Info{Command: "export", Dir: dir})
		panic("boom")
	}()

	files, _ := os.ReadDir(dir)
	if len(files) != 1 || !strings.HasSuffix(files[0].Name(), ".log") {
		t.Fatalf("expected one crash report, got %v", files)
	}
	b, _ := os.ReadFile(filepath.Join(dir, files[0].Name()))
	if !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report does not contain panic: %s", b)
	}
	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
