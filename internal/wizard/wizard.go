/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package wizard drives one card session through input, drafting and layout.
//
// A Wizard owns the form, the drafted content and, on the layout step, the
// canvas engine. Every method takes the wizard's lock, so HTTP handlers and
// background generation results never touch the engine concurrently.
// Background work is ticketed per field: only the most recently started
// request for a field may write its result.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"movingcard/internal/canvas"
	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
	"movingcard/internal/generate"
	applog "movingcard/internal/log"
	"movingcard/internal/telemetry"
	"movingcard/internal/zipcode"
)

type Step int

const (
	StepInput    Step = 1
	StepDrafting Step = 2
	StepLayout   Step = 3
)

func (s Step) String() string {
	switch s {
	case StepInput:
		return "input"
	case StepDrafting:
		return "drafting"
	case StepLayout:
		return "layout"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Address selects one of the two address blocks on the form.
type Address string

const (
	OldAddress Address = "old"
	NewAddress Address = "new"
)

// ParseAddress accepts "old" or "new".
func ParseAddress(s string) (Address, bool) {
	switch Address(strings.ToLower(strings.TrimSpace(s))) {
	case OldAddress:
		return OldAddress, true
	case NewAddress:
		return NewAddress, true
	}
	return "", false
}

var (
	ErrGreetingRequired = errors.New("greeting text is required")
	ErrNoImage          = errors.New("upload an image first")
	ErrNotImage         = errors.New("not an image")
	ErrNotInLayout      = errors.New("layout is only available on the layout step")
	ErrUnknownStyle     = errors.New("unknown image style")
	ErrClosed           = errors.New("session closed")
)

// User-facing notice texts.
const (
	MsgImageFailed    = "画像の生成に失敗しました。"
	MsgGreetingFailed = "エラーが発生しました。もう一度お試しください。"
	MsgZipFailed      = "住所の取得に失敗しました。"
	MsgZipNotFound    = "該当する住所が見つかりませんでした。"
)

// Notice is a recoverable, user-visible message.
type Notice struct {
	ID      int       `json:"id"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type field string

const (
	fieldGreeting field = "greeting"
	fieldImage    field = "image"
	fieldOldZip   field = "oldZip"
	fieldNewZip   field = "newZip"
)

func zipField(a Address) field {
	if a == OldAddress {
		return fieldOldZip
	}
	return fieldNewZip
}

// Deps are the collaborators a wizard calls out to.
type Deps struct {
	Generator generate.Generator
	// Zip may be nil; lookups are then skipped.
	Zip             zipcode.Lookuper
	GenerateTimeout time.Duration
	LookupTimeout   time.Duration
	Paper           domain.PaperKind
}

func (d Deps) withDefaults() Deps {
	if d.Generator == nil {
		d.Generator = generate.Static{}
	}
	if d.GenerateTimeout <= 0 {
		d.GenerateTimeout = time.Minute
	}
	if d.LookupTimeout <= 0 {
		d.LookupTimeout = 5 * time.Second
	}
	if _, ok := domain.LookupPaper(d.Paper); !ok {
		d.Paper = domain.PaperPostcard
	}
	return d
}

type Wizard struct {
	id   string
	deps Deps
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	step       Step
	form       domain.FormData
	content    domain.GeneratedContent
	engine     *canvas.Engine
	container  *canvas.StaticContainer
	paper      domain.PaperKind
	notices    []Notice
	nextNotice int
	tickets    map[field]uint64
	pending    map[field]bool
}

// New creates a wizard on the input step.
func New(id string, deps Deps) *Wizard {
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Wizard{
		id:      id,
		deps:    deps,
		log:     applog.WithSession(applog.WithComponent("wizard"), id),
		ctx:     ctx,
		cancel:  cancel,
		step:    StepInput,
		content: domain.GeneratedContent{SelectedStyle: domain.StylePop},
		paper:   deps.Paper,
		tickets: map[field]uint64{},
		pending: map[field]bool{},
	}
}

func (w *Wizard) ID() string { return w.id }

// Close cancels in-flight work and waits for it to finish.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	clear(w.pending)
	w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}

// Wait blocks until all background work started so far has settled.
func (w *Wizard) Wait() { w.wg.Wait() }

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Form() domain.FormData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

func (w *Wizard) Content() domain.GeneratedContent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content
}

// SetForm replaces name, family and both locations. Zip codes go through SetZip.
func (w *Wizard) SetForm(f domain.FormData) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.Name = f.Name
	w.form.Family = f.Family
	w.form.OldAddress.Location = f.OldAddress.Location
	w.form.NewAddress.Location = f.NewAddress.Location
}

// SetZip stores the normalized postal code and, once it has seven digits,
// looks up the location in the background. It returns the stored value.
func (w *Wizard) SetZip(which Address, raw string) string {
	zip := zipcode.Normalize(raw)
	if len(zip) > zipcode.Length {
		zip = zip[:zipcode.Length]
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	addr := w.address(which)
	addr.Zip = zip
	f := zipField(which)
	if !zipcode.Ready(zip) || w.deps.Zip == nil {
		// Invalidate any lookup for the previous value.
		w.tickets[f]++
		w.pending[f] = false
		return zip
	}
	lookup := w.deps.Zip
	w.startLocked(f, w.deps.LookupTimeout,
		func(ctx context.Context) (string, error) { return lookup.Lookup(ctx, zip) },
		func(loc string) { w.address(which).Location = loc },
		func(err error) {
			if errors.Is(err, zipcode.ErrNoResult) {
				w.noticeLocked(f, MsgZipNotFound)
				return
			}
			w.noticeLocked(f, MsgZipFailed)
			telemetry.Event(telemetry.EventZipLookupFailed, nil)
		})
	return zip
}

func (w *Wizard) address(which Address) *domain.AddressData {
	if which == OldAddress {
		return &w.form.OldAddress
	}
	return &w.form.NewAddress
}

// EnterDrafting moves to the drafting step and starts a greeting when none exists.
func (w *Wizard) EnterDrafting() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepLayout {
		w.leaveLayoutLocked()
	}
	w.step = StepDrafting
	if strings.TrimSpace(w.content.GreetingText) == "" && !w.pending[fieldGreeting] {
		w.regenerateLocked()
	}
}

// RegenerateGreeting asks the generator for a new greeting. A newer request
// supersedes an older one still in flight.
func (w *Wizard) RegenerateGreeting() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.regenerateLocked()
}

func (w *Wizard) regenerateLocked() {
	form := w.form
	gen := w.deps.Generator
	w.startLocked(fieldGreeting, w.deps.GenerateTimeout,
		func(ctx context.Context) (string, error) { return gen.GenerateGreeting(ctx, form) },
		func(text string) { w.setGreetingLocked(text) },
		func(err error) {
			w.noticeLocked(fieldGreeting, MsgGreetingFailed)
			telemetry.Event(telemetry.EventGreetingFailed, map[string]any{"timeout": errors.Is(err, context.DeadlineExceeded)})
		})
}

// SetGreeting stores user-edited text and cancels any pending generation.
func (w *Wizard) SetGreeting(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tickets[fieldGreeting]++
	w.pending[fieldGreeting] = false
	w.setGreetingLocked(text)
}

func (w *Wizard) setGreetingLocked(text string) {
	w.content.GreetingText = text
	if w.engine != nil {
		w.engine.SetContent(domain.TextElementID, text)
	}
}

// UploadImage stores data as the original image and clears any generated one.
// An empty mime is sniffed from the data.
func (w *Wizard) UploadImage(data []byte, mime string) error {
	if len(data) == 0 {
		return ErrNotImage
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(strings.ToLower(mime))
	if !strings.HasPrefix(mime, "image/") {
		return ErrNotImage
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tickets[fieldImage]++
	w.pending[fieldImage] = false
	w.content.OriginalImage = dataurl.Encode(mime, data)
	w.content.GeneratedImage = ""
	w.syncImageLocked()
	return nil
}

func (w *Wizard) SelectStyle(style domain.ImageStyle) error {
	st, ok := domain.ParseImageStyle(string(style))
	if !ok {
		return ErrUnknownStyle
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.content.SelectedStyle = st
	return nil
}

// GenerateImage restyles the original image with the selected style. On
// failure a notice is added and the current images stay as they are.
func (w *Wizard) GenerateImage() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.content.OriginalImage == "" {
		return ErrNoImage
	}
	src, style := w.content.OriginalImage, w.content.SelectedStyle
	gen := w.deps.Generator
	w.startLocked(fieldImage, w.deps.GenerateTimeout,
		func(ctx context.Context) (string, error) { return gen.GenerateStyledImage(ctx, src, style) },
		func(img string) {
			w.content.GeneratedImage = img
			w.syncImageLocked()
		},
		func(err error) {
			w.noticeLocked(fieldImage, MsgImageFailed)
			telemetry.Event(telemetry.EventImageFailed, map[string]any{"style": string(style)})
		})
	return nil
}

func (w *Wizard) syncImageLocked() {
	if w.engine != nil {
		w.engine.SetContent(domain.ImageElementID, w.content.ImageContent())
	}
}

// EnterLayout builds the canvas from the drafted content.
func (w *Wizard) EnterLayout() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if strings.TrimSpace(w.content.GreetingText) == "" {
		return ErrGreetingRequired
	}
	if w.step == StepLayout && w.engine != nil {
		return nil
	}
	w.container = &canvas.StaticContainer{}
	w.engine = canvas.FromContent(w.content,
		canvas.WithPaper(w.paper),
		canvas.WithContainer(w.container),
		canvas.WithLogger(w.log.With(slog.String("component", "canvas"))))
	w.step = StepLayout
	w.log.Info("layout entered", slog.String("paper", string(w.paper)))
	telemetry.Event(telemetry.EventLayoutEntered, map[string]any{"paper": string(w.paper)})
	return nil
}

// Next advances one step.
func (w *Wizard) Next() error {
	switch w.Step() {
	case StepInput:
		w.EnterDrafting()
		return nil
	case StepDrafting:
		return w.EnterLayout()
	}
	return nil
}

// Back goes one step back. Leaving the layout step discards the canvas.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepLayout:
		w.leaveLayoutLocked()
		w.step = StepDrafting
	case StepDrafting:
		w.step = StepInput
	}
}

func (w *Wizard) leaveLayoutLocked() {
	if w.engine != nil {
		w.paper = w.engine.Paper().Kind
	}
	w.engine = nil
	w.container = nil
}

// Canvas runs fn with exclusive access to the engine and its container.
func (w *Wizard) Canvas(fn func(e *canvas.Engine, c *canvas.StaticContainer) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.engine == nil {
		return ErrNotInLayout
	}
	err := fn(w.engine, w.container)
	w.paper = w.engine.Paper().Kind
	return err
}

// LoadLayout replaces the layout with doc. The document's text and image become the drafted content, cancelling any
// generation still in flight.
func (w *Wizard) LoadLayout(doc canvas.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.engine == nil {
		return ErrNotInLayout
	}
	if err := w.engine.Restore(doc); err != nil {
		return err
	}
	w.paper = w.engine.Paper().Kind
	if txt, ok := w.engine.Element(domain.TextElementID); ok {
		w.tickets[fieldGreeting]++
		w.pending[fieldGreeting] = false
		w.content.GreetingText = txt.Content
	}
	if img, ok := w.engine.Element(domain.ImageElementID); ok {
		w.tickets[fieldImage]++
		w.pending[fieldImage] = false
		w.content.OriginalImage, w.content.GeneratedImage = "", ""
		if dataurl.IsImage(img.Content) {
			w.content.OriginalImage = img.Content
		}
	}
	return nil
}

// DismissNotices drops notices with an ID up to and including upTo.
func (w *Wizard) DismissNotices(upTo int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.notices[:0]
	for _, n := range w.notices {
		if n.ID > upTo {
			kept = append(kept, n)
		}
	}
	w.notices = kept
}

func (w *Wizard) noticeLocked(f field, msg string) {
	w.nextNotice++
	w.notices = append(w.notices, Notice{ID: w.nextNotice, Field: string(f), Message: msg, At: time.Now()})
}

// startLocked runs job in the background under a fresh ticket for f. Exactly
// one of ok or fail runs, with the lock held, and only while the ticket is
// still the latest for f.
func (w *Wizard) startLocked(f field, timeout time.Duration, job func(context.Context) (string, error), ok func(string), fail func(error)) {
	if w.closed {
		return
	}
	w.tickets[f]++
	ticket := w.tickets[f]
	w.pending[f] = true
	l := w.log.With(slog.String("field", string(f)), slog.Uint64("ticket", ticket))
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(w.ctx, timeout)
		defer cancel()
		start := time.Now()
		res, err := job(ctx)

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.tickets[f] != ticket {
			l.Debug("stale result dropped")
			return
		}
		w.pending[f] = false
		if err != nil {
			l.Warn("background job failed", slog.Any("err", err), slog.Duration("took", time.Since(start)))
			fail(err)
			return
		}
		l.Debug("background job done", slog.Duration("took", time.Since(start)))
		ok(res)
	}()
}
