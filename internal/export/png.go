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
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"movingcard/internal/canvas"
	"movingcard/internal/domain"
)

// PNG rasterizes the frame at opt.DPI (300 by default) on a white page.
func PNG(w io.Writer, fr canvas.Frame, opt Options) error {
	opt = opt.withDefaults()
	img, err := Raster(fr, opt)
	if err != nil {
		return err
	}
	dc := gg.NewContextForRGBA(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// Raster draws the frame into a new RGBA image.
func Raster(fr canvas.Frame, opt Options) (*image.RGBA, error) {
	opt = opt.withDefaults()
	pxPerMM := float64(opt.DPI) / 25.4
	W := int(math.Round(fr.Paper.WidthMM * pxPerMM))
	H := int(math.Round(fr.Paper.HeightMM * pxPerMM))
	if W <= 0 || H <= 0 {
		return nil, fmt.Errorf("raster: empty paper %q", fr.Paper.Kind)
	}
	dc := gg.NewContext(W, H)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, it := range fr.Items {
		x, y, bw, bh := it.Geometry.Pixels(float64(W), float64(H))
		switch it.Kind {
		case domain.KindImage:
			if it.Placeholder {
				continue
			}
			if err := rasterImage(dc, it, x, y, bw, bh); err != nil {
				return nil, fmt.Errorf("png image %s: %w", it.ID, err)
			}
		case domain.KindText:
			if err := rasterText(dc, it, fr.Paper, x, y, bw, bh, opt); err != nil {
				return nil, fmt.Errorf("png text %s: %w", it.ID, err)
			}
		}
	}
	if opt.CropMarks {
		dc.SetRGB255(180, 180, 180)
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, float64(W)-1, float64(H)-1)
		dc.Stroke()
	}
	rgba, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("raster: unexpected image type %T", dc.Image())
	}
	return rgba, nil
}

func rasterImage(dc *gg.Context, it canvas.Item, x, y, w, h float64) error {
	d, err := decodeImage(it.Content)
	if err != nil {
		return err
	}
	tw, th := int(math.Round(w)), int(math.Round(h))
	if tw <= 0 || th <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), d.img, coverCrop(d.img.Bounds(), w, h), draw.Src, nil)
	dc.DrawImage(dst, int(math.Round(x)), int(math.Round(y)))
	return nil
}

func rasterText(dc *gg.Context, it canvas.Item, paper domain.PaperProfile, x, y, w, h float64, opt Options) error {
	tb := layoutText(it, it.Geometry.MM(paper), opt)
	// CSS px to raster px.
	scale := float64(opt.DPI) / 96
	face, err := opt.Fonts.Face(opt.Family, tb.sizePx*scale)
	if err != nil {
		return err
	}
	dc.Push()
	defer dc.Pop()
	dc.DrawRectangle(x, y, w, h)
	dc.Clip()
	dc.SetFontFace(face)
	dc.SetRGB255(textColor[0], textColor[1], textColor[2])
	for i, line := range tb.lines {
		if line == "" {
			continue
		}
		dc.DrawString(line, x+textPaddingPx*scale, y+tb.baseline(i)*scale)
	}
	dc.ResetClip()
	return nil
}
