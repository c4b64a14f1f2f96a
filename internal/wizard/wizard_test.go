/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"movingcard/internal/canvas"
	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
	"movingcard/internal/zipcode"
)

// blockingGen hands each call a channel so tests decide when and how it returns.
type blockingGen struct {
	mu       sync.Mutex
	greeting []chan result
	image    []chan result
}

type result struct {
	text string
	err  error
}

func (g *blockingGen) GenerateGreeting(ctx context.Context, _ domain.FormData) (string, error) {
	ch := make(chan result, 1)
	g.mu.Lock()
	g.greeting = append(g.greeting, ch)
	g.mu.Unlock()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *blockingGen) GenerateStyledImage(ctx context.Context, _ string, _ domain.ImageStyle) (string, error) {
	ch := make(chan result, 1)
	g.mu.Lock()
	g.image = append(g.image, ch)
	g.mu.Unlock()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *blockingGen) call(t *testing.T, list *[]chan result, i int) chan result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		g.mu.Lock()
		if len(*list) > i {
			ch := (*list)[i]
			g.mu.Unlock()
			return ch
		}
		g.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("generator call #%d never happened", i)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeZip map[string]string

func (f fakeZip) Lookup(_ context.Context, zip string) (string, error) {
	if zip == "5000000" {
		return "", errors.New("upstream down")
	}
	loc, ok := f[zip]
	if !ok {
		return "", zipcode.ErrNoResult
	}
	return loc, nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSetZipNormalizesAndLooksUp(t *testing.T) {
	w := New("t", Deps{Zip: fakeZip{"1000001": "東京都千代田区"}})
	defer w.Close()

	if got := w.SetZip(OldAddress, "１００－０００１"); got != "1000001" {
		t.Fatalf("stored zip = %q", got)
	}
	w.Wait()
	if loc := w.Form().OldAddress.Location; loc != "東京都千代田区" {
		t.Fatalf("location = %q", loc)
	}

	w.SetZip(NewAddress, "9999999")
	w.Wait()
	v := w.Snapshot()
	if v.Form.NewAddress.Location != "" || len(v.Notices) != 1 || v.Notices[0].Message != MsgZipNotFound {
		t.Fatalf("no-result handling wrong: %+v", v)
	}

	w.SetZip(NewAddress, "5000000")
	w.Wait()
	if n := w.Snapshot().Notices; len(n) != 2 || n[1].Message != MsgZipFailed {
		t.Fatalf("failure notice missing: %+v", n)
	}

	if got := w.SetZip(NewAddress, "123"); got != "123" {
		t.Fatalf("partial zip = %q", got)
	}
	if w.Snapshot().Pending.NewZip {
		t.Fatalf("partial zip must not start a lookup")
	}
}

func TestEnterDraftingGeneratesOnce(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()

	w.EnterDrafting()
	if w.Step() != StepDrafting || !w.Snapshot().Pending.Greeting {
		t.Fatalf("expected drafting with pending greeting")
	}
	w.Back()
	w.EnterDrafting()
	gen.call(t, &gen.greeting, 0) <- result{text: "はじめまして。"}
	w.Wait()
	if got := w.Content().GreetingText; got != "はじめまして。" {
		t.Fatalf("greeting = %q", got)
	}
	gen.mu.Lock()
	calls := len(gen.greeting)
	gen.mu.Unlock()
	if calls != 1 {
		t.Fatalf("generator called %d times, want 1", calls)
	}
	// Existing text is kept on re-entry.
	w.Back()
	w.EnterDrafting()
	w.Wait()
	if w.Snapshot().Pending.Greeting {
		t.Fatalf("no generation expected when greeting exists")
	}
}

func TestLatestGreetingWins(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()

	w.RegenerateGreeting()
	first := gen.call(t, &gen.greeting, 0)
	w.RegenerateGreeting()
	second := gen.call(t, &gen.greeting, 1)

	second <- result{text: "new"}
	first <- result{text: "old"}
	w.Wait()
	if got := w.Content().GreetingText; got != "new" {
		t.Fatalf("greeting = %q, want the latest request's result", got)
	}
}

func TestUserEditBeatsPendingGeneration(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()

	w.RegenerateGreeting()
	ch := gen.call(t, &gen.greeting, 0)
	w.SetGreeting("typed by hand")
	ch <- result{text: "generated"}
	w.Wait()
	if got := w.Content().GreetingText; got != "typed by hand" {
		t.Fatalf("greeting = %q", got)
	}
}

func TestGreetingFailureAddsNotice(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()
	w.SetGreeting("keep me")
	w.RegenerateGreeting()
	gen.call(t, &gen.greeting, 0) <- result{err: errors.New("quota")}
	w.Wait()
	v := w.Snapshot()
	if v.Content.GreetingText != "keep me" || len(v.Notices) != 1 || v.Notices[0].Message != MsgGreetingFailed {
		t.Fatalf("unexpected state: %+v", v)
	}
	w.DismissNotices(v.Notices[0].ID)
	if len(w.Snapshot().Notices) != 0 {
		t.Fatalf("notice not dismissed")
	}
}

func TestImageGeneration(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()

	if err := w.GenerateImage(); !errors.Is(err, ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
	if err := w.UploadImage([]byte("plain text"), ""); !errors.Is(err, ErrNotImage) {
		t.Fatalf("err = %v, want ErrNotImage", err)
	}
	if err := w.UploadImage(pngBytes, ""); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(w.Content().OriginalImage, "data:image/png;base64,") {
		t.Fatalf("original = %q", w.Content().OriginalImage)
	}
	if err := w.SelectStyle("gorgeous"); err != nil {
		t.Fatalf("SelectStyle: %v", err)
	}
	if err := w.SelectStyle("Baroque"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("err = %v", err)
	}

	if err := w.GenerateImage(); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	gen.call(t, &gen.image, 0) <- result{err: errors.New("boom")}
	w.Wait()
	v := w.Snapshot()
	if v.Content.GeneratedImage != "" || len(v.Notices) != 1 || v.Notices[0].Message != MsgImageFailed {
		t.Fatalf("failure handling wrong: %+v", v.Notices)
	}
	if v.Content.SelectedStyle != domain.StyleGorgeous {
		t.Fatalf("style = %s", v.Content.SelectedStyle)
	}

	_ = w.GenerateImage()
	gen.call(t, &gen.image, 1) <- result{text: "data:image/png;base64,AAAA"}
	w.Wait()
	if got := w.Content().ImageContent(); got != "data:image/png;base64,AAAA" {
		t.Fatalf("image content = %q", got)
	}

	// A new upload drops the generated image.
	_ = w.UploadImage(pngBytes, "image/png")
	if w.Content().GeneratedImage != "" {
		t.Fatalf("generated image should reset on upload")
	}
}

func TestLayoutLifecycle(t *testing.T) {
	w := New("t", Deps{Paper: domain.PaperA4})
	defer w.Close()

	if err := w.EnterLayout(); !errors.Is(err, ErrGreetingRequired) {
		t.Fatalf("err = %v, want ErrGreetingRequired", err)
	}
	if err := w.Canvas(func(*canvas.Engine, *canvas.StaticContainer) error { return nil }); !errors.Is(err, ErrNotInLayout) {
		t.Fatalf("err = %v, want ErrNotInLayout", err)
	}
	w.SetGreeting("hello")
	if err := w.EnterLayout(); err != nil {
		t.Fatalf("EnterLayout: %v", err)
	}
	err := w.Canvas(func(e *canvas.Engine, c *canvas.StaticContainer) error {
		if e.Paper().Kind != domain.PaperA4 {
			t.Fatalf("paper = %s", e.Paper().Kind)
		}
		img, ok := e.Element(domain.ImageElementID)
		if !ok || !img.IsPlaceholder() {
			t.Fatalf("image placeholder expected: %+v", img)
		}
		c.Set(canvas.Box{Width: 400, Height: 400})
		s := e.BeginInteraction(domain.TextElementID, canvas.Move, canvas.Point{})
		s.Update(canvas.Point{X: 20})
		s.End()
		return e.SetPaperProfile(domain.PaperPostcard)
	})
	if err != nil {
		t.Fatalf("Canvas: %v", err)
	}
	v := w.Snapshot()
	if v.Layout == nil || v.Paper != domain.PaperPostcard {
		t.Fatalf("layout snapshot missing: %+v", v)
	}
	if el := v.Layout.Elements[1]; el.ID != domain.TextElementID || el.X != 15 {
		t.Fatalf("text element = %+v", el)
	}

	// Edits on the drafting payload reach the canvas without moving anything.
	w.SetGreeting("updated")
	_ = w.UploadImage(pngBytes, "image/png")
	_ = w.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		txt, _ := e.Element(domain.TextElementID)
		img, _ := e.Element(domain.ImageElementID)
		if txt.Content != "updated" || txt.X != 15 || img.IsPlaceholder() {
			t.Fatalf("content sync wrong: %+v %+v", txt, img)
		}
		return nil
	})

	w.Back()
	if w.Step() != StepDrafting || w.Snapshot().Layout != nil {
		t.Fatalf("leaving layout should discard the canvas")
	}
	_ = w.Next()
	_ = w.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		txt, _ := e.Element(domain.TextElementID)
		if txt.X != 10 || e.Paper().Kind != domain.PaperPostcard {
			t.Fatalf("re-entered layout should start fresh on the last paper: %+v", txt)
		}
		return nil
	})
}

func TestLoadLayoutAdoptsContent(t *testing.T) {
	w := New("l", Deps{})
	defer w.Close()
	w.SetGreeting("old")
	if err := w.LoadLayout(canvas.Document{}); !errors.Is(err, ErrNotInLayout) {
		t.Fatalf("err = %v, want ErrNotInLayout", err)
	}
	_ = w.EnterLayout()
	_ = w.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		return e.SetPaperProfile(domain.PaperA4)
	})
	img := dataurl.Encode("image/png", pngBytes)
	doc := canvas.Document{Version: canvas.DocumentVersion, Paper: domain.PaperPostcard, Elements: []domain.LayoutElement{
		{ID: domain.ImageElementID, Kind: domain.KindImage, X: 0, Y: 0, Width: 100, Height: 50, Content: img},
		{ID: domain.TextElementID, Kind: domain.KindText, X: 5, Y: 60, Width: 90, Height: 30, Content: "loaded"},
	}}
	if err := w.LoadLayout(doc); err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	v := w.Snapshot()
	if v.Content.GreetingText != "loaded" || v.Content.OriginalImage != img || v.Paper != domain.PaperPostcard {
		t.Fatalf("content not adopted: %+v paper=%s", v.Content, v.Paper)
	}
}

func TestLateImageAppliedOnLayout(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	defer w.Close()
	w.SetGreeting("hi")
	_ = w.UploadImage(pngBytes, "image/png")
	_ = w.GenerateImage()
	ch := gen.call(t, &gen.image, 0)
	if err := w.EnterLayout(); err != nil {
		t.Fatalf("EnterLayout: %v", err)
	}
	ch <- result{text: "data:image/png;base64,BBBB"}
	w.Wait()
	_ = w.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		img, _ := e.Element(domain.ImageElementID)
		if img.Content != "data:image/png;base64,BBBB" || img.X != 10 || img.Width != 80 {
			t.Fatalf("late image not applied in place: %+v", img)
		}
		return nil
	})
}

func TestSnapshotJSON(t *testing.T) {
	w := New("abc", Deps{})
	defer w.Close()
	w.SetForm(domain.FormData{Name: "山田"})
	b, err := json.Marshal(w.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"id":"abc"`, `"step":1`, `"stepName":"input"`, `"name":"山田"`, `"selectedStyle":"Pop"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("snapshot missing %s: %s", want, s)
		}
	}
}

func TestCloseCancelsWork(t *testing.T) {
	gen := &blockingGen{}
	w := New("t", Deps{Generator: gen})
	w.RegenerateGreeting()
	gen.call(t, &gen.greeting, 0)
	done := make(chan struct{})
	go func() { w.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not cancel the pending generation")
	}
	w.RegenerateGreeting()
	if w.Snapshot().Pending.Greeting {
		t.Fatalf("closed wizard should not start work")
	}
}
