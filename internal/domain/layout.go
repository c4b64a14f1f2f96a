/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// This file defines the layout model shared by the canvas engine and the
// export targets. Coordinates are percentages of the paper surface so the
// same layout prints identically on every paper profile.

// ElementKind distinguishes the two kinds of content that can be placed on a card.
type ElementKind string

const (
	KindImage ElementKind = "image"
	KindText  ElementKind = "text"
)

// Default element ids produced by the canvas initializer.
const (
	ImageElementID = "image"
	TextElementID  = "text"
)

// Minimum footprint of any element, in percent.
const (
	MinWidthPct  = 10.0
	MinHeightPct = 5.0
)

// TextStyle carries presentation hints for text elements.
type TextStyle struct {
	FontSizePx float64 `json:"fontSizePx"`
	LineHeight float64 `json:"lineHeight"`
}

// DefaultTextStyle is the style assigned to the greeting text.
func DefaultTextStyle() TextStyle { return TextStyle{FontSizePx: 14, LineHeight: 1.6} }

// LayoutElement is one positioned box on the card.
// X/Y/Width/Height are percentages of the paper's width and height.
type LayoutElement struct {
	ID      string      `json:"id"`
	Kind    ElementKind `json:"type"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	Content string      `json:"content"`
	Style   *TextStyle  `json:"style,omitempty"`
}

// TextStyleOrDefault returns the element's style, falling back to the default.
func (e LayoutElement) TextStyleOrDefault() TextStyle {
	if e.Style == nil {
		return DefaultTextStyle()
	}
	s := *e.Style
	if s.FontSizePx <= 0 {
		s.FontSizePx = DefaultTextStyle().FontSizePx
	}
	if s.LineHeight <= 0 {
		s.LineHeight = DefaultTextStyle().LineHeight
	}
	return s
}

// IsPlaceholder reports whether the element has nothing to show.
func (e LayoutElement) IsPlaceholder() bool {
	return strings.TrimSpace(e.Content) == ""
}

// PaperKind names a supported paper size.
type PaperKind string

const (
	PaperPostcard PaperKind = "postcard"
	PaperA4       PaperKind = "a4"
)

// PaperProfile describes the physical paper and the on-screen preview scale.
// DisplayScale only affects the preview; it never enters the percentage model.
type PaperProfile struct {
	Kind         PaperKind `json:"kind"`
	Name         string    `json:"name"`
	WidthMM      float64   `json:"widthMm"`
	HeightMM     float64   `json:"heightMm"`
	DisplayScale float64   `json:"displayScale"`
}

var papers = []PaperProfile{
	{Kind: PaperPostcard, Name: "はがき (100x148mm)", WidthMM: 100, HeightMM: 148, DisplayScale: 1.5},
	{Kind: PaperA4, Name: "A4 (210x297mm)", WidthMM: 210, HeightMM: 297, DisplayScale: 0.8},
}

// Papers lists the supported profiles in display order.
func Papers() []PaperProfile {
	out := make([]PaperProfile, len(papers))
	copy(out, papers)
	return out
}

// LookupPaper returns the profile for kind.
func LookupPaper(kind PaperKind) (PaperProfile, bool) {
	k := PaperKind(strings.ToLower(strings.TrimSpace(string(kind))))
	for _, p := range papers {
		if p.Kind == k {
			return p, true
		}
	}
	return PaperProfile{}, false
}

// MustPaper is LookupPaper for compile-time known kinds.
func MustPaper(kind PaperKind) PaperProfile {
	p, ok := LookupPaper(kind)
	if !ok {
		panic(fmt.Sprintf("unknown paper %q", kind))
	}
	return p
}

// AspectRatio is height divided by width.
func (p PaperProfile) AspectRatio() float64 {
	if p.WidthMM == 0 {
		return 0
	}
	return p.HeightMM / p.WidthMM
}

// CSSPixelsPerMM is the CSS reference density (96 px per inch).
const CSSPixelsPerMM = 96.0 / 25.4

// TextPaddingPx is the text element's inner padding in CSS pixels at print size.
const TextPaddingPx = 8.0
