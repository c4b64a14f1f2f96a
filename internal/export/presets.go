/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"movingcard/internal/canvas"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls writing one card to several files.
//
// Files are named <BaseName>-<paper>.<ext> inside OutDir, which is created
// when missing. Formats default to the preset's formats.
type BatchOptions struct {
	Preset      PresetName
	Formats     []string
	DPIOverride int
	OutDir      string
	BaseName    string
	Options     Options
}

// Batch exports fr in every requested format and returns the written paths.
func Batch(fr canvas.Frame, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	eo := opt.Options
	if eo.DPI == 0 {
		eo.DPI = presetDPI(opt.Preset)
	}
	if opt.DPIOverride > 0 {
		eo.DPI = opt.DPIOverride
	}
	eo.CropMarks = eo.CropMarks || opt.Preset == PresetPrint
	eo = eo.withDefaults()

	outDir := opt.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	base := strings.TrimSpace(opt.BaseName)
	if base == "" {
		base = "card"
	}

	var written []string
	for _, s := range formats {
		f, err := ParseFormat(s)
		if err != nil {
			return written, err
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s-%s.%s", base, fr.Paper.Kind, f))
		if err := writeFile(path, f, fr, eo); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, f Format, fr canvas.Frame, opt Options) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(out, f, fr, opt)
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf"}
	}
}

func presetDPI(p PresetName) int {
	if p == PresetWeb {
		return 96
	}
	return 300
}
