/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"movingcard/internal/config"
	"movingcard/internal/domain"
	"movingcard/internal/export"
	applog "movingcard/internal/log"
)

const layoutFixture = `{
  "version": 1,
  "paper": "postcard",
  "elements": [
    {"id": "image", "type": "image", "x": 10, "y": 10, "width": 80, "height": 40, "content": ""},
    {"id": "text", "type": "text", "x": 10, "y": 55, "width": 80, "height": 30, "content": "Hello neighbours", "style": {"fontSizePx": 14, "lineHeight": 1.6}}
  ]
}`

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigPath, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvGeminiAPIKey, "test-key")
	t.Setenv(config.EnvTelemetryOptIn, "false")
	return dir
}

func TestRunExportWritesFiles(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(in, []byte(layoutFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := runExport([]string{"-format", "svg,pdf", "-out", out, "-paper", "a4", in}); err != nil {
		t.Fatalf("runExport: %v", err)
	}
	for _, name := range []string{"card-a4.svg", "card-a4.pdf"} {
		b, err := os.ReadFile(filepath.Join(out, name))
		if err != nil || len(b) == 0 {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	svg, _ := os.ReadFile(filepath.Join(out, "card-a4.svg"))
	if !strings.Contains(string(svg), "<svg") {
		t.Fatalf("bad svg output")
	}
}

func TestRunExportRejectsBadInput(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(in, []byte(`{"version": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runExport([]string{"-out", dir, in}); err == nil {
		t.Fatalf("invalid layout accepted")
	}
	if err := os.WriteFile(in, []byte(layoutFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runExport([]string{"-preset", "poster", in}); err == nil {
		t.Fatalf("unknown preset accepted")
	}
	if err := runExport([]string{"-dpi", "lots", in}); err == nil {
		t.Fatalf("bad dpi accepted")
	}
}

func TestExportOptionsFont(t *testing.T) {
	if _, err := exportOptions(config.ExportConfig{FontPath: filepath.Join(t.TempDir(), "missing.ttf")}, ""); err == nil {
		t.Fatalf("missing font accepted")
	}
	opts, err := exportOptions(config.ExportConfig{Author: "me"}, "")
	if err != nil || opts.Fonts == nil || opts.Author != "me" {
		t.Fatalf("opts = %+v err = %v", opts, err)
	}
}

func TestExportJobRerunsOnSave(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(in, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	job := exportJob{batch: export.BatchOptions{Preset: export.PresetWeb, Formats: []string{"svg"}, OutDir: out, BaseName: "card"}}
	l := applog.WithComponent("test")
	if err := job.run(in, l); err == nil {
		t.Fatalf("empty document accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan error, 4)
	go func() {
		_ = watchFile(ctx, in, 50*time.Millisecond, func() { results <- job.run(in, l) })
	}()
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(in, []byte(layoutFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("re-export: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("save did not trigger an export")
	}
	if _, err := os.Stat(filepath.Join(out, "card-postcard.svg")); err != nil {
		t.Fatalf("svg not written: %v", err)
	}

	bad := job
	bad.paper = domain.PaperKind("b5")
	if err := bad.run(in, l); err == nil {
		t.Fatalf("unknown paper accepted")
	}
}
