/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Line breaking and measurement for the greeting text. Japanese text has
// no spaces, so lines may break between any two runes; Latin words break at
// spaces and closing punctuation never starts a line.

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name, "" for the default
	SizePx float64
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Line is a single laid out line.
type Line struct {
	Text  string
	Width float64
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines      []Line
	Width      float64
	Height     float64
	LineHeight float64
	Metrics    Metrics
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  toPx(m.Ascent),
		Descent: toPx(m.Descent),
		LineGap: toPx(m.Height - m.Ascent - m.Descent),
	}
}

func toPx(v fixed.Int26_6) float64 { return float64(v) / 64 }

// noLineStart lists runes that must not begin a line.
const noLineStart = "、。，．・：；？！ー）」』】〕〉》!),.:;?]}"

// Wrapper breaks text into lines no wider than a maximum width.
type Wrapper struct{ Provider Provider }

func NewWrapper(p Provider) *Wrapper { return &Wrapper{Provider: p} }

// Wrap lays out text using spec. lineHeight is a multiplier of the font size
// (CSS line-height); zero uses the face's natural height. maxWidth <= 0
// disables wrapping.
func (w *Wrapper) Wrap(text string, spec FontSpec, maxWidth, lineHeight float64) TextBox {
	p := w.Provider
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	d := &font.Drawer{Face: face}

	lh := met.Ascent + met.Descent + met.LineGap
	if lineHeight > 0 && spec.SizePx > 0 {
		lh = lineHeight * spec.SizePx
	}
	box := TextBox{LineHeight: lh, Metrics: met}
	add := func(s string) {
		s = strings.TrimRight(s, " ")
		lw := toPx(d.MeasureString(s))
		box.Lines = append(box.Lines, Line{Text: s, Width: lw})
		if lw > box.Width {
			box.Width = lw
		}
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if maxWidth <= 0 {
			add(para)
			continue
		}
		var cur strings.Builder
		for _, tok := range tokens(para) {
			candidate := cur.String() + tok
			if cur.Len() > 0 && toPx(d.MeasureString(strings.TrimRight(candidate, " "))) > maxWidth && !hangs(tok) {
				add(cur.String())
				cur.Reset()
				tok = strings.TrimLeft(tok, " ")
			}
			cur.WriteString(tok)
		}
		add(cur.String())
	}
	box.Height = float64(len(box.Lines)) * lh
	return box
}

// tokens splits s into breakable units: Latin words with their trailing
// space, and single runes otherwise.
func tokens(s string) []string {
	var out []string
	for len(s) > 0 {
		r, n := utf8.DecodeRuneInString(s)
		if isWordRune(r) {
			i := n
			for i < len(s) {
				r2, n2 := utf8.DecodeRuneInString(s[i:])
				if !isWordRune(r2) {
					break
				}
				i += n2
			}
			for i < len(s) && s[i] == ' ' {
				i++
			}
			out = append(out, s[:i])
			s = s[i:]
			continue
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

func isWordRune(r rune) bool {
	return r < 0x3000 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
}

func hangs(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return strings.ContainsRune(noLineStart, r)
}

// Measure returns the width and height of a single unwrapped line.
func Measure(p Provider, spec FontSpec, s string) (w, h float64) {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	return toPx((&font.Drawer{Face: face}).MeasureString(s)), met.Ascent + met.Descent
}
