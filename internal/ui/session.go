/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"movingcard/internal/canvas"
	"movingcard/internal/domain"
	"movingcard/internal/export"
	"movingcard/internal/wizard"
)

// DefaultGreeting seeds a desktop session started without a layout file.
const DefaultGreeting = "はじめまして。\nこれからどうぞよろしくお願いいたします。"

// desktopSessionID names the single desktop session in logs.
const desktopSessionID = "desktop"

// OpenSession returns a wizard already on the layout step. When path is set
// the layout document stored there is loaded into it.
func OpenSession(path string, deps wizard.Deps) (*wizard.Wizard, error) {
	wz := wizard.New(desktopSessionID, deps)
	wz.SetGreeting(DefaultGreeting)
	if err := wz.EnterLayout(); err != nil {
		wz.Close()
		return nil, err
	}
	if path == "" {
		return wz, nil
	}
	if err := LoadLayoutFile(wz, path); err != nil {
		wz.Close()
		return nil, err
	}
	return wz, nil
}

// LoadLayoutFile validates and loads the layout document at path.
func LoadLayoutFile(wz *wizard.Wizard, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := canvas.ParseDocument(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return wz.LoadLayout(doc)
}

// WriteLayout encodes the current layout as indented JSON.
func WriteLayout(wz *wizard.Wizard, w io.Writer) error {
	var doc canvas.Document
	if err := wz.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		doc = e.Snapshot()
		return nil
	}); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteExport renders the print frame of the current layout in format f.
func WriteExport(wz *wizard.Wizard, w io.Writer, f export.Format, opt export.Options) error {
	var fr canvas.Frame
	if err := wz.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		fr = e.Frame(canvas.Print)
		return nil
	}); err != nil {
		return err
	}
	return export.Write(w, f, fr, opt)
}

// Viewport fits the paper into a widget.
type Viewport struct {
	// Zoom scales the fitted page; zero means 1.
	Zoom float64
}

const (
	fitMargin = 0.92
	minZoom   = 0.25
	maxZoom   = 4
)

// PageBox returns the page rectangle centred in a w x h widget.
func (v Viewport) PageBox(w, h float64, p domain.PaperProfile) canvas.Box {
	if w <= 0 || h <= 0 || p.WidthMM <= 0 || p.HeightMM <= 0 {
		return canvas.Box{}
	}
	z := v.Zoom
	if z <= 0 {
		z = 1
	}
	s := math.Min(w/p.WidthMM, h/p.HeightMM) * fitMargin * z
	pw, ph := p.WidthMM*s, p.HeightMM*s
	return canvas.Box{Left: (w - pw) / 2, Top: (h - ph) / 2, Width: pw, Height: ph}
}

// Zoomed returns v with its zoom changed by delta, kept within sane bounds.
func (v Viewport) Zoomed(delta float64) Viewport {
	z := v.Zoom
	if z <= 0 {
		z = 1
	}
	v.Zoom = math.Min(maxZoom, math.Max(minZoom, z+delta))
	return v
}

// RasterDPI is the resolution at which paper p fills box.
func RasterDPI(box canvas.Box, p domain.PaperProfile) int {
	if p.WidthMM <= 0 {
		return 1
	}
	return max(1, int(math.Round(box.Width/p.WidthMM*25.4)))
}
