/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily is the family served when nothing else matches.
const DefaultFamily = "Go"

// FontLibrary stores parsed OpenType fonts by family and caches sized faces.
// The Go Regular font is always present as the default family; it has no
// Japanese glyphs, so a CJK font should be loaded for real cards.
type FontLibrary struct {
	mu      sync.Mutex
	fonts   map[string]*opentype.Font
	data    map[string][]byte
	faces   map[faceKey]font.Face
	primary string
}

type faceKey struct {
	family string
	size   float64
	dpi    float64
}

func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{
		fonts:   make(map[string]*opentype.Font),
		data:    make(map[string][]byte),
		faces:   make(map[faceKey]font.Face),
		primary: DefaultFamily,
	}
	if err := fl.LoadBytes(DefaultFamily, goregular.TTF); err != nil {
		panic(err)
	}
	return fl
}

// LoadFile loads a TTF/OTF file under family and makes it the primary family.
func (fl *FontLibrary) LoadFile(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	if err := fl.LoadBytes(family, data); err != nil {
		return err
	}
	fl.mu.Lock()
	fl.primary = family
	fl.mu.Unlock()
	return nil
}

// LoadBytes parses font data and registers it under family.
func (fl *FontLibrary) LoadBytes(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.fonts[family] = f
	fl.data[family] = data
	return nil
}

// Primary returns the family used when a spec names none.
func (fl *FontLibrary) Primary() string {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.primary
}

// Data returns the raw font bytes of family, for exporters that embed fonts.
func (fl *FontLibrary) Data(family string) ([]byte, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	b, ok := fl.data[family]
	return b, ok
}

func (fl *FontLibrary) find(family string) (string, *opentype.Font) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if family == "" {
		family = fl.primary
	}
	if f, ok := fl.fonts[family]; ok {
		return family, f
	}
	for k, f := range fl.fonts {
		if strings.EqualFold(k, family) {
			return k, f
		}
	}
	return DefaultFamily, fl.fonts[DefaultFamily]
}

// Face returns a cached face for family at sizePx pixels.
func (fl *FontLibrary) Face(family string, sizePx float64) (font.Face, error) {
	if sizePx <= 0 {
		sizePx = 14
	}
	name, f := fl.find(family)
	key := faceKey{family: name, size: sizePx, dpi: 72}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if face, ok := fl.faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("face %s %.1fpx: %w", name, sizePx, err)
	}
	fl.faces[key] = face
	return face, nil
}

// OTProvider resolves FontSpec through a FontLibrary and falls back to another Provider.
type OTProvider struct {
	Lib      *FontLibrary
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if p.Lib != nil {
		if face, err := p.Lib.Face(spec.Family, spec.SizePx); err == nil {
			return face, metricsOf(face)
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
