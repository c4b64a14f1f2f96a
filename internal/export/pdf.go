/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"movingcard/internal/canvas"
	"movingcard/internal/domain"
	"movingcard/internal/textlayout"
)

const pdfFont = "card"

// mmPerPx converts CSS pixels to millimetres.
const mmPerPx = 1 / domain.CSSPixelsPerMM

// PDF writes the frame as a single page sized to the paper, in millimetres.
// Text uses the configured TrueType font so Japanese greetings embed correctly.
// Drawing is clipped to each element and to the paper.
func PDF(w io.Writer, fr canvas.Frame, opt Options) error {
	opt = opt.withDefaults()
	paper := fr.Paper

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: paper.WidthMM, Ht: paper.HeightMM},
	})
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor(opt.Author, true)
	pdf.SetCreator("movingcard", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	fontData, ok := opt.Fonts.Data(opt.Family)
	if !ok {
		fontData, _ = opt.Fonts.Data(textlayout.DefaultFamily)
	}
	pdf.AddUTF8FontFromBytes(pdfFont, "", fontData)
	pdf.AddPage()

	pdf.ClipRect(0, 0, paper.WidthMM, paper.HeightMM, false)
	for i, it := range fr.Items {
		r := it.Geometry.MM(paper)
		switch it.Kind {
		case domain.KindImage:
			if it.Placeholder {
				continue
			}
			if err := pdfImage(pdf, fmt.Sprintf("img%d", i), it, r); err != nil {
				return fmt.Errorf("pdf image %s: %w", it.ID, err)
			}
		case domain.KindText:
			pdfText(pdf, it, r, opt)
		}
	}
	pdf.ClipEnd()

	if opt.CropMarks {
		pdf.SetDrawColor(180, 180, 180)
		pdf.SetLineWidth(0.1)
		pdf.Rect(0, 0, paper.WidthMM, paper.HeightMM, "D")
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfImage(pdf *gofpdf.Fpdf, name string, it canvas.Item, r canvas.RectMM) error {
	d, err := decodeImage(it.Content)
	if err != nil {
		return err
	}
	var tp string
	raw := d.raw
	switch d.mime {
	case "image/png":
		tp = "PNG"
	case "image/jpeg", "image/jpg":
		tp = "JPG"
	case "image/gif":
		tp = "GIF"
	default:
		if raw, err = d.pngBytes(); err != nil {
			return err
		}
		tp = "PNG"
	}
	iopt := gofpdf.ImageOptions{ImageType: tp}
	pdf.RegisterImageOptionsReader(name, iopt, bytes.NewReader(raw))
	if pdf.Err() {
		return pdf.Error()
	}

	b := d.img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	s := r.W / iw
	if r.H/ih > s {
		s = r.H / ih
	}
	dw, dh := iw*s, ih*s
	pdf.ClipRect(r.X, r.Y, r.W, r.H, false)
	pdf.ImageOptions(name, r.X+(r.W-dw)/2, r.Y+(r.H-dh)/2, dw, dh, false, iopt, 0, "")
	pdf.ClipEnd()
	return nil
}

func pdfText(pdf *gofpdf.Fpdf, it canvas.Item, r canvas.RectMM, opt Options) {
	tb := layoutText(it, r, opt)
	pdf.SetFont(pdfFont, "", tb.sizePx*0.75)
	pdf.SetTextColor(textColor[0], textColor[1], textColor[2])
	pdf.ClipRect(r.X, r.Y, r.W, r.H, false)
	for i, line := range tb.lines {
		if line == "" {
			continue
		}
		pdf.Text(r.X+textPaddingPx*mmPerPx, r.Y+tb.baseline(i)*mmPerPx, line)
	}
	pdf.ClipEnd()
}
