//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"log/slog"
	"slices"

	"fyne.io/fyne/v2"
	fcanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"movingcard/internal/canvas"
	"movingcard/internal/export"
	applog "movingcard/internal/log"
	"movingcard/internal/wizard"
)

// LayoutView shows the card of a wizard on the layout step and turns mouse
// input into engine interactions. Every event measures the page afresh, so
// window resizes during a drag are picked up.
type LayoutView struct {
	widget.BaseWidget

	wz       *wizard.Wizard
	opts     export.Options
	view     Viewport
	handlePx float64
	dragging bool
	log      *slog.Logger

	// OnChange runs after an edit made through the view.
	OnChange func()
}

func NewLayoutView(wz *wizard.Wizard, opts export.Options) *LayoutView {
	v := &LayoutView{wz: wz, opts: opts, handlePx: 12, log: applog.WithComponent("layoutview")}
	v.ExtendBaseWidget(v)
	return v
}

// SetWizard swaps the session shown by the view.
func (v *LayoutView) SetWizard(wz *wizard.Wizard) {
	v.wz = wz
	v.dragging = false
	v.Refresh()
}

func (v *LayoutView) point(pos fyne.Position) canvas.Point {
	return canvas.Point{X: float64(pos.X), Y: float64(pos.Y)}
}

// measure records the current page box as the engine's container bounds.
func (v *LayoutView) measure(e *canvas.Engine, c *canvas.StaticContainer) canvas.Box {
	size := v.Size()
	box := v.view.PageBox(float64(size.Width), float64(size.Height), e.Paper())
	c.Set(box)
	return box
}

// frame returns the screen frame and the page box for the current size.
func (v *LayoutView) frame() (canvas.Frame, canvas.Box, error) {
	var fr canvas.Frame
	var box canvas.Box
	err := v.wz.Canvas(func(e *canvas.Engine, c *canvas.StaticContainer) error {
		box = v.measure(e, c)
		fr = e.Frame(canvas.Screen)
		return nil
	})
	return fr, box, err
}

// MouseDown selects the element under the pointer and starts dragging it.
// A press on empty paper clears the selection.
func (v *LayoutView) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	p := v.point(ev.Position)
	_ = v.wz.Canvas(func(e *canvas.Engine, c *canvas.StaticContainer) error {
		box := v.measure(e, c)
		id, mode, ok := e.HitTest(p, box, v.handlePx)
		if !ok {
			e.EndInteraction()
			e.ClearSelection()
			return nil
		}
		v.dragging = e.BeginInteraction(id, mode, p) != nil
		return nil
	})
	v.Refresh()
}

func (v *LayoutView) MouseUp(*desktop.MouseEvent) { v.endDrag() }

func (v *LayoutView) Dragged(ev *fyne.DragEvent) {
	if !v.dragging {
		return
	}
	p := v.point(ev.Position)
	changed := false
	_ = v.wz.Canvas(func(e *canvas.Engine, c *canvas.StaticContainer) error {
		v.measure(e, c)
		changed = e.UpdateInteraction(p)
		return nil
	})
	if changed {
		v.Refresh()
	}
}

func (v *LayoutView) DragEnd() { v.endDrag() }

func (v *LayoutView) endDrag() {
	if !v.dragging {
		return
	}
	v.dragging = false
	_ = v.wz.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		e.EndInteraction()
		return nil
	})
	v.Refresh()
	if v.OnChange != nil {
		v.OnChange()
	}
}

// Scrolled zooms the page.
func (v *LayoutView) Scrolled(ev *fyne.ScrollEvent) {
	v.view = v.view.Zoomed(float64(ev.Scrolled.DY) * 0.01)
	v.Refresh()
}

func (v *LayoutView) CreateRenderer() fyne.WidgetRenderer {
	bg := fcanvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})

	page := fcanvas.NewRectangle(color.White)
	page.StrokeColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	page.StrokeWidth = 1

	img := fcanvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = fcanvas.ImageFillStretch
	img.ScaleMode = fcanvas.ImageScaleSmooth

	outline := fcanvas.NewRectangle(color.Transparent)
	outline.StrokeColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	outline.StrokeWidth = 2
	outline.Hide()

	handle := fcanvas.NewCircle(color.RGBA{R: 0, G: 170, B: 255, A: 255})
	handle.Hide()

	return &layoutViewRenderer{v: v, bg: bg, page: page, img: img, outline: outline, handle: handle}
}

type layoutViewRenderer struct {
	v       *LayoutView
	bg      *fcanvas.Rectangle
	page    *fcanvas.Rectangle
	img     *fcanvas.Image
	outline *fcanvas.Rectangle
	handle  *fcanvas.Circle
	// dashed boxes for empty image slots
	placeholders []*fcanvas.Rectangle

	// last rasterized items and dpi, to skip redundant rasterizing
	lastItems []canvas.Item
	lastDPI   int
}

func (r *layoutViewRenderer) Destroy() {}

func (r *layoutViewRenderer) MinSize() fyne.Size { return fyne.NewSize(320, 400) }

func (r *layoutViewRenderer) Objects() []fyne.CanvasObject {
	objs := []fyne.CanvasObject{r.bg, r.page, r.img}
	for _, p := range r.placeholders {
		objs = append(objs, p)
	}
	return append(objs, r.outline, r.handle)
}

func (r *layoutViewRenderer) Refresh() {
	r.Layout(r.v.Size())
	fcanvas.Refresh(r.v)
}

func (r *layoutViewRenderer) Layout(size fyne.Size) {
	r.bg.Move(fyne.NewPos(0, 0))
	r.bg.Resize(size)

	fr, box, err := r.v.frame()
	if err != nil || box.Width <= 0 {
		r.page.Hide()
		r.img.Hide()
		r.outline.Hide()
		r.handle.Hide()
		r.showPlaceholders(nil, box)
		return
	}
	pos := fyne.NewPos(float32(box.Left), float32(box.Top))
	sz := fyne.NewSize(float32(box.Width), float32(box.Height))
	r.page.Move(pos)
	r.page.Resize(sz)
	r.page.Show()

	r.raster(fr, box)
	r.img.Move(pos)
	r.img.Resize(sz)
	r.img.Show()

	var slots []canvas.Geometry
	r.outline.Hide()
	r.handle.Hide()
	for _, it := range fr.Items {
		if it.Placeholder {
			slots = append(slots, it.Geometry)
		}
		if !it.Active {
			continue
		}
		x, y, w, h := it.Geometry.Pixels(box.Width, box.Height)
		r.outline.Move(fyne.NewPos(float32(box.Left+x), float32(box.Top+y)))
		r.outline.Resize(fyne.NewSize(float32(w), float32(h)))
		r.outline.Show()
		if it.ShowHandle {
			const d = 10
			r.handle.Move(fyne.NewPos(float32(box.Left+x+w)-d/2, float32(box.Top+y+h)-d/2))
			r.handle.Resize(fyne.NewSize(d, d))
			r.handle.Show()
		}
	}
	r.showPlaceholders(slots, box)
}

// raster redraws the page image when the printable content or the zoom changed.
func (r *layoutViewRenderer) raster(fr canvas.Frame, box canvas.Box) {
	dpi := RasterDPI(box, fr.Paper)
	items := make([]canvas.Item, len(fr.Items))
	for i, it := range fr.Items {
		it.Active, it.ShowHandle = false, false
		items[i] = it
	}
	if dpi == r.lastDPI && slices.Equal(items, r.lastItems) {
		return
	}
	opt := r.v.opts
	opt.DPI = dpi
	opt.CropMarks = false
	img, err := export.Raster(fr, opt)
	if err != nil {
		r.v.log.Warn("preview raster failed", slog.Any("err", err))
		return
	}
	r.img.Image = img
	r.img.Refresh()
	r.lastItems, r.lastDPI = items, dpi
}

func (r *layoutViewRenderer) showPlaceholders(slots []canvas.Geometry, box canvas.Box) {
	for len(r.placeholders) < len(slots) {
		p := fcanvas.NewRectangle(color.RGBA{R: 240, G: 240, B: 240, A: 255})
		p.StrokeColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}
		p.StrokeWidth = 1
		r.placeholders = append(r.placeholders, p)
	}
	for i, p := range r.placeholders {
		if i >= len(slots) {
			p.Hide()
			continue
		}
		x, y, w, h := slots[i].Pixels(box.Width, box.Height)
		p.Move(fyne.NewPos(float32(box.Left+x), float32(box.Top+y)))
		p.Resize(fyne.NewSize(float32(w), float32(h)))
		p.Show()
	}
}
