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

// Target selects what a frame is rendered for.
type Target int

const (
	// Screen includes the active outline and the resize handle.
	Screen Target = iota
	// Print hides interactive affordances and empty image placeholders.
	Print
)

// Item is one element ready to draw.
type Item struct {
	ID          string             `json:"id"`
	Kind        domain.ElementKind `json:"type"`
	Geometry    Geometry           `json:"geometry"`
	Content     string             `json:"content"`
	Style       domain.TextStyle   `json:"style"`
	Active      bool               `json:"active"`
	ShowHandle  bool               `json:"showHandle"`
	Placeholder bool               `json:"placeholder"`
	// FontPx is the text size to draw at the frame's scale.
	FontPx      float64            `json:"fontPx,omitempty"`
}

// Frame is the paint list for one target, bottom to top.
//
// Scale is the paper's display scale on Screen and 1 on Print. Pixel sizes
// (FontPx, TextPaddingPx) are already multiplied by it so text keeps the same
// size relative to the paper in the preview and on print.
type Frame struct {
	Target        Target              `json:"-"`
	Paper         domain.PaperProfile `json:"paper"`
	PreviewW      float64             `json:"previewWidthPx"`
	PreviewH      float64             `json:"previewHeightPx"`
	Scale         float64             `json:"scale"`
	TextPaddingPx float64             `json:"textPaddingPx"`
	Items         []Item              `json:"items"`
	Dragging      bool                `json:"dragging"`
	ActiveID      string              `json:"activeId,omitempty"`
}

// Frame renders the current state for target.
func (e *Engine) Frame(target Target) Frame {
	w, h := e.PreviewSize()
	f := Frame{Target: target, Paper: e.paper, PreviewW: w, PreviewH: h, Scale: 1}
	active := e.ActiveID()
	if target == Screen {
		f.ActiveID = active
		f.Dragging = e.session != nil
		if e.paper.DisplayScale > 0 {
			f.Scale = e.paper.DisplayScale
		}
	}
	f.TextPaddingPx = domain.TextPaddingPx * f.Scale
	for _, el := range e.PaintOrder() {
		it := Item{
			ID:          el.ID,
			Kind:        el.Kind,
			Geometry:    RenderGeometry(el),
			Content:     el.Content,
			Placeholder: el.Kind == domain.KindImage && el.IsPlaceholder(),
		}
		if el.Kind == domain.KindText {
			it.Style = el.TextStyleOrDefault()
			it.FontPx = it.Style.FontSizePx * f.Scale
		}
		if target == Print {
			if it.Placeholder {
				continue
			}
		} else if el.ID == active {
			it.Active, it.ShowHandle = true, true
		}
		f.Items = append(f.Items, it)
	}
	return f
}

// HitTest maps a pointer inside box to the element under it, top first.
// The active element's bottom-right handle within handlePx resolves to Resize.
func (e *Engine) HitTest(p Point, box Box, handlePx float64) (id string, mode Mode, ok bool) {
	if !box.measurable() {
		return "", Move, false
	}
	px := (p.X - box.Left) / box.Width * 100
	py := (p.Y - box.Top) / box.Height * 100
	if a, found := e.Active(); found && handlePx > 0 {
		g := RenderGeometry(a)
		hx := box.Left + g.Right()/100*box.Width
		hy := box.Top + g.Bottom()/100*box.Height
		if math.Hypot(p.X-hx, p.Y-hy) <= handlePx {
			return a.ID, Resize, true
		}
	}
	order := e.PaintOrder()
	for i := len(order) - 1; i >= 0; i-- {
		if RenderGeometry(order[i]).Contains(px, py) {
			return order[i].ID, Move, true
		}
	}
	return "", Move, false
}
