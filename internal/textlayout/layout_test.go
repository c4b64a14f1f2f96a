/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"
	"strings"
	"testing"
)

func TestWrapLatinBreaksAtSpaces(t *testing.T) {
	w := NewWrapper(BasicProvider{})
	box := w.Wrap("Hello world from Go", FontSpec{}, 50, 0)
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(box.Lines))
	}
	for _, l := range box.Lines {
		if strings.HasPrefix(l.Text, " ") || strings.HasSuffix(l.Text, " ") {
			t.Fatalf("line keeps edge spaces: %q", l.Text)
		}
		if strings.Contains(l.Text, "wor ") {
			t.Fatalf("word split mid-way: %q", l.Text)
		}
	}
	if box.Width <= 0 || box.Height <= 0 {
		t.Fatalf("expected positive box size: %+v", box)
	}
}

func TestWrapJapaneseBreaksBetweenRunes(t *testing.T) {
	w := NewWrapper(BasicProvider{})
	// basicfont renders every rune 7px wide.
	box := w.Wrap("はじめまして、よろしくお願いします。", FontSpec{SizePx: 14}, 42, 1.6)
	if len(box.Lines) < 3 {
		t.Fatalf("expected several lines, got %d", len(box.Lines))
	}
	for _, l := range box.Lines {
		if hangs(l.Text) {
			t.Fatalf("line starts with closing punctuation: %q", l.Text)
		}
	}
	if math.Abs(box.LineHeight-22.4) > 1e-9 {
		t.Fatalf("line height = %v", box.LineHeight)
	}
	if box.Height != float64(len(box.Lines))*box.LineHeight {
		t.Fatalf("height = %v", box.Height)
	}
}

func TestWrapKeepsParagraphs(t *testing.T) {
	box := NewWrapper(nil).Wrap("a\n\nb", FontSpec{}, 0, 0)
	if len(box.Lines) != 3 || box.Lines[1].Text != "" {
		t.Fatalf("lines = %+v", box.Lines)
	}
}

func TestMeasureDeterministic(t *testing.T) {
	w1, h1 := Measure(BasicProvider{}, FontSpec{}, "ABC")
	w2, h2 := Measure(nil, FontSpec{}, "ABC")
	if w1 != w2 || h1 != h2 || w1 != 21 {
		t.Fatalf("measure mismatch: %v/%v vs %v/%v", w1, h1, w2, h2)
	}
}

func TestFontLibraryDefaultAndFallback(t *testing.T) {
	fl := NewFontLibrary()
	if fl.Primary() != DefaultFamily {
		t.Fatalf("primary = %q", fl.Primary())
	}
	f1, err := fl.Face("", 14)
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	f2, _ := fl.Face("unknown family", 14)
	if f1 != f2 {
		t.Fatalf("unknown family should resolve to the cached default face")
	}
	if _, ok := fl.Data(DefaultFamily); !ok {
		t.Fatalf("default font bytes missing")
	}
	if err := fl.LoadBytes("broken", []byte("nope")); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := fl.LoadFile("missing", "/does/not/exist.ttf"); err == nil {
		t.Fatalf("expected read error")
	}
	_, met := OTProvider{Lib: fl}.Resolve(FontSpec{SizePx: 20})
	if met.Ascent <= 0 {
		t.Fatalf("metrics = %+v", met)
	}
}
