/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"math"

	"movingcard/internal/domain"
)

// Point is a pointer position in container pixels (any origin, only deltas matter).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the container's on-screen bounding box in pixels.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) measurable() bool {
	return finite(b.Width) && finite(b.Height) && b.Width > 0 && b.Height > 0
}

// Geometry is an element's box as percentages of the paper.
type Geometry struct {
	Left   float64 `json:"leftPct"`
	Top    float64 `json:"topPct"`
	Width  float64 `json:"widthPct"`
	Height float64 `json:"heightPct"`
}

// Right returns the far horizontal edge in percent.
func (g Geometry) Right() float64 { return g.Left + g.Width }

// Bottom returns the far vertical edge in percent.
func (g Geometry) Bottom() float64 { return g.Top + g.Height }

// Contains reports whether the percent point (px, py) lies inside g.
func (g Geometry) Contains(px, py float64) bool {
	return px >= g.Left && px <= g.Right() && py >= g.Top && py <= g.Bottom()
}

// RectMM is a rectangle in millimetres on the physical paper.
type RectMM struct {
	X, Y, W, H float64
}

// MM projects g onto the paper in millimetres.
func (g Geometry) MM(p domain.PaperProfile) RectMM {
	return RectMM{
		X: g.Left / 100 * p.WidthMM,
		Y: g.Top / 100 * p.HeightMM,
		W: g.Width / 100 * p.WidthMM,
		H: g.Height / 100 * p.HeightMM,
	}
}

// Pixels projects g onto a raster of w x h pixels.
func (g Geometry) Pixels(w, h float64) (x, y, pw, ph float64) {
	return g.Left / 100 * w, g.Top / 100 * h, g.Width / 100 * w, g.Height / 100 * h
}

// RenderGeometry is the pure projection of an element onto its percentage box.
func RenderGeometry(el domain.LayoutElement) Geometry {
	return Geometry{Left: el.X, Top: el.Y, Width: el.Width, Height: el.Height}
}

// PreviewSize returns the on-screen size of the paper in CSS pixels
// after the profile's display scale.
func PreviewSize(p domain.PaperProfile) (w, h float64) {
	return p.WidthMM * domain.CSSPixelsPerMM * p.DisplayScale, p.HeightMM * domain.CSSPixelsPerMM * p.DisplayScale
}

// clamp bounds v to [lo, hi]; when hi < lo the lower bound wins.
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// normalize applies the minimum footprint and the move bounds to el.
func normalize(el domain.LayoutElement) domain.LayoutElement {
	if !finite(el.Width) {
		el.Width = domain.MinWidthPct
	}
	if !finite(el.Height) {
		el.Height = domain.MinHeightPct
	}
	if !finite(el.X) {
		el.X = 0
	}
	if !finite(el.Y) {
		el.Y = 0
	}
	el.Width = math.Max(domain.MinWidthPct, el.Width)
	el.Height = math.Max(domain.MinHeightPct, el.Height)
	el.X = clamp(el.X, 0, 100-el.Width)
	el.Y = clamp(el.Y, 0, 100-el.Height)
	return el
}
