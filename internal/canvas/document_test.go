/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"encoding/json"
	"errors"
	"testing"

	"movingcard/internal/domain"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	s := e.BeginInteraction("text", Move, Point{})
	s.Update(Point{X: 20, Y: 0})
	s.End()
	if err := e.SetPaperProfile(domain.PaperA4); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(e.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	other := New(nil)
	if err := other.Restore(doc); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if other.Paper().Kind != domain.PaperA4 || other.ActiveID() != "text" {
		t.Fatalf("paper/selection not restored: %v %q", other.Paper().Kind, other.ActiveID())
	}
	if got := mustElement(t, other, "text"); !near(got.X, 15) {
		t.Fatalf("text x = %v, want 15", got.X)
	}
}

func TestRestoreDropsDanglingSelection(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SelectElement("image")
	s := e.BeginInteraction("image", Move, Point{})
	err := e.Restore(Document{Version: 1, Paper: domain.PaperPostcard, ActiveID: "image", Elements: []domain.LayoutElement{
		{ID: "text", Kind: domain.KindText, X: 0, Y: 0, Width: 50, Height: 20, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if e.ActiveID() != "" {
		t.Fatalf("dangling active id should read as no selection")
	}
	if s.Live() || e.State() != Idle {
		t.Fatalf("restore must end the drag")
	}
}

func TestParseDocumentRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad paper":  `{"version":1,"paper":"letter","elements":[]}`,
		"tiny width": `{"version":1,"paper":"a4","elements":[{"id":"a","type":"text","x":0,"y":0,"width":2,"height":10}]}`,
		"bad kind":   `{"version":1,"paper":"a4","elements":[{"id":"a","type":"video","x":0,"y":0,"width":20,"height":10}]}`,
		"not json":   `{`,
	}
	for name, in := range cases {
		if _, err := ParseDocument([]byte(in)); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("%s: err = %v, want ErrInvalidDocument", name, err)
		}
	}
}
