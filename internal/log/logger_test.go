/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestInitWritesJSONFile verifies that the rotating file handler writes JSON
// records carrying the static and contextual attributes.
func TestInitWritesJSONFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "movingcard.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})
	t.Cleanup(func() { _ = Close() })

	l := WithOperation(WithComponent("canvas"), "begin")
	l = WithSession(l, "s-1")
	l.InfoContext(ContextWithRequestID(context.Background(), "req-9"), "drag started", slog.String("element", "image"))

	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	want := map[string]string{
		"app":       "movingcard",
		"component": "canvas",
		"op":        "begin",
		"session":   "s-1",
		"req_id":    "req-9",
		"element":   "image",
		"msg":       "drag started",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s = %v, want %q", k, m[k], v)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if !strings.Contains(console.String(), "drag started") {
		t.Fatalf("console output missing record: %q", console.String())
	}
}

func TestRequestIDEmpty(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "")
	if got := RequestID(ctx); got != "" {
		t.Fatalf("RequestID = %q, want empty", got)
	}
}
