/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a card frame to print formats. Every exporter
// consumes only canvas.Frame, so what prints is exactly what the engine holds.
package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "golang.org/x/image/webp"

	"movingcard/internal/canvas"
	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
	"movingcard/internal/textlayout"
)

// Format is an export file format.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat accepts "pdf", "png" and "svg" case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatPNG, FormatSVG:
		return f, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// Options controls all exporters.
type Options struct {
	// DPI is the raster resolution for PNG; 300 when zero.
	DPI int
	// Fonts supplies the text face; a library with the default font when nil.
	Fonts *textlayout.FontLibrary
	// Family selects a font from Fonts; its primary family when empty.
	Family string
	Title  string
	Author string
	// CropMarks draws a hairline around the paper edge.
	CropMarks bool
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.Fonts == nil {
		o.Fonts = textlayout.NewFontLibrary()
	}
	if o.Family == "" {
		o.Family = o.Fonts.Primary()
	}
	if o.Title == "" {
		o.Title = "Moving card"
	}
	if o.Author == "" {
		o.Author = "movingcard"
	}
	return o
}

// Write dispatches to the exporter for f.
func Write(w io.Writer, f Format, fr canvas.Frame, opt Options) error {
	switch f {
	case FormatPDF:
		return PDF(w, fr, opt)
	case FormatPNG:
		return PNG(w, fr, opt)
	case FormatSVG:
		return SVG(w, fr, opt)
	}
	return fmt.Errorf("unknown format: %s", f)
}

// Text is drawn in gray-800 with an 8px inner padding.
var textColor = [3]int{31, 41, 55}

const textPaddingPx = domain.TextPaddingPx

// textBlock is a wrapped text element in CSS pixel units. All exporters
// share it so line breaks match across formats.
type textBlock struct {
	lines      []string
	sizePx     float64
	lineHeight float64 // px
	ascent     float64 // px
}

func layoutText(it canvas.Item, box canvas.RectMM, opt Options) textBlock {
	st := it.Style
	if st.FontSizePx <= 0 || st.LineHeight <= 0 {
		st = domain.DefaultTextStyle()
	}
	maxW := box.W*domain.CSSPixelsPerMM - 2*textPaddingPx
	w := textlayout.NewWrapper(textlayout.OTProvider{Lib: opt.Fonts})
	tb := w.Wrap(it.Content, textlayout.FontSpec{Family: opt.Family, SizePx: st.FontSizePx}, maxW, st.LineHeight)
	out := textBlock{sizePx: st.FontSizePx, lineHeight: tb.LineHeight, ascent: tb.Metrics.Ascent}
	for _, l := range tb.Lines {
		out.lines = append(out.lines, l.Text)
	}
	return out
}

// baseline returns the y offset in px of line i from the element top,
// centring the glyphs in the CSS line box.
func (tb textBlock) baseline(i int) float64 {
	half := (tb.lineHeight - tb.sizePx) / 2
	return textPaddingPx + float64(i)*tb.lineHeight + half + tb.ascent
}

// decodedImage is an image element's payload ready for drawing.
type decodedImage struct {
	img  image.Image
	mime string
	raw  []byte
}

func decodeImage(content string) (decodedImage, error) {
	mime, raw, err := dataurl.Decode(content)
	if err != nil {
		return decodedImage{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return decodedImage{}, fmt.Errorf("decode %s: %w", mime, err)
	}
	return decodedImage{img: img, mime: mime, raw: raw}, nil
}

// pngBytes re-encodes the image for consumers that cannot read its source format.
func (d decodedImage) pngBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, d.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// coverCrop returns the centred region of src with the aspect ratio of a
// w x h box, so scaling it fills the box without distortion.
func coverCrop(src image.Rectangle, w, h float64) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	if w <= 0 || h <= 0 || sw <= 0 || sh <= 0 {
		return src
	}
	target := w / h
	if sw/sh > target {
		cw := int(sh*target + 0.5)
		x0 := src.Min.X + (src.Dx()-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := int(sw/target + 0.5)
	y0 := src.Min.Y + (src.Dy()-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}
