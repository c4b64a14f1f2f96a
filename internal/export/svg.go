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
	"strings"

	"movingcard/internal/canvas"
	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
)

// SVG writes the frame as a standalone document sized in millimetres with a
// millimetre viewBox. Images stay embedded as data URLs.
func SVG(w io.Writer, fr canvas.Frame, opt Options) error {
	opt = opt.withDefaults()
	paper := fr.Paper
	var buf bytes.Buffer
	wf := func(format string, a ...any) { fmt.Fprintf(&buf, format, a...) }

	wf(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	wf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%smm" height="%smm" viewBox="0 0 %s %s">`+"\n",
		num(paper.WidthMM), num(paper.HeightMM), num(paper.WidthMM), num(paper.HeightMM))
	wf(`<title>%s</title>`+"\n", escText(opt.Title))
	wf(`<rect x="0" y="0" width="%s" height="%s" fill="#ffffff"/>`+"\n", num(paper.WidthMM), num(paper.HeightMM))

	wf("<defs>\n")
	for i, it := range fr.Items {
		r := it.Geometry.MM(paper)
		wf(`<clipPath id="clip%d"><rect x="%s" y="%s" width="%s" height="%s"/></clipPath>`+"\n", i, num(r.X), num(r.Y), num(r.W), num(r.H))
	}
	wf("</defs>\n")

	for i, it := range fr.Items {
		r := it.Geometry.MM(paper)
		switch it.Kind {
		case domain.KindImage:
			if it.Placeholder || !dataurl.IsImage(it.Content) {
				continue
			}
			wf(`<image id="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="xMidYMid slice" clip-path="url(#clip%d)" href="%s"/>`+"\n",
				escAttr(it.ID), num(r.X), num(r.Y), num(r.W), num(r.H), i, escAttr(it.Content))
		case domain.KindText:
			tb := layoutText(it, r, opt)
			wf(`<text id="%s" clip-path="url(#clip%d)" font-family="%s" font-size="%s" fill="rgb(%d,%d,%d)">`,
				escAttr(it.ID), i, escAttr(opt.Family+", sans-serif"), num(tb.sizePx*mmPerPx), textColor[0], textColor[1], textColor[2])
			for li, line := range tb.lines {
				if line == "" {
					continue
				}
				wf(`<tspan x="%s" y="%s">%s</tspan>`, num(r.X+textPaddingPx*mmPerPx), num(r.Y+tb.baseline(li)*mmPerPx), escText(line))
			}
			wf("</text>\n")
		}
	}
	if opt.CropMarks {
		wf(`<rect x="0" y="0" width="%s" height="%s" fill="none" stroke="#b4b4b4" stroke-width="0.1"/>`+"\n", num(paper.WidthMM), num(paper.HeightMM))
	}
	wf("</svg>\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escAttr(s string) string { return attrEscaper.Replace(s) }
func escText(s string) string { return textEscaper.Replace(s) }
