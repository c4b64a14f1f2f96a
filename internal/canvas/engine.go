/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas is the headless layout engine behind the card editor.
//
// Elements live in percentage space relative to the paper so a layout keeps
// its proportions on every paper profile. Pointer input arrives in pixels and
// is converted against the live size of the on-screen container. The engine
// is not safe for concurrent use; owners serialize access.
package canvas

import (
	"errors"
	"fmt"
	"log/slog"

	"movingcard/internal/domain"
	applog "movingcard/internal/log"
)

var (
	ErrUnknownPaper = errors.New("unknown paper size")
	ErrDuplicateID  = errors.New("duplicate element id")
	ErrInvalidKind  = errors.New("invalid element kind")
)

// State is the interaction state of the engine.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Container reports the current on-screen box of the canvas.
// ok is false while the container is not laid out.
type Container interface {
	Bounds() (b Box, ok bool)
}

// Engine owns the elements of one card and the pointer interaction on them.
type Engine struct {
	elements  []domain.LayoutElement
	activeID  string
	paper     domain.PaperProfile
	session   *Session
	container Container
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPaper selects the initial paper profile. Unknown kinds are ignored.
func WithPaper(kind domain.PaperKind) Option {
	return func(e *Engine) {
		if p, ok := domain.LookupPaper(kind); ok {
			e.paper = p
		}
	}
}

// WithContainer sets the source of the container's pixel box.
func WithContainer(c Container) Option { return func(e *Engine) { e.container = c } }

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// New builds an engine holding elems. Invalid or duplicate elements are dropped
// with a warning; the remaining geometry is normalized.
func New(elems []domain.LayoutElement, opts ...Option) *Engine {
	e := &Engine{paper: domain.MustPaper(domain.PaperPostcard)}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = applog.WithComponent("canvas")
	}
	for _, el := range elems {
		if err := e.AddElement(el); err != nil {
			e.log.Warn("skip element", slog.String("id", el.ID), slog.Any("err", err))
		}
	}
	return e
}

// FromContent builds the default two-element card from the drafting payload.
// The image element is kept even without any image and renders as a placeholder.
func FromContent(c domain.GeneratedContent, opts ...Option) *Engine {
	style := domain.DefaultTextStyle()
	return New([]domain.LayoutElement{
		{ID: domain.ImageElementID, Kind: domain.KindImage, X: 10, Y: 10, Width: 80, Height: 40, Content: c.ImageContent()},
		{ID: domain.TextElementID, Kind: domain.KindText, X: 10, Y: 55, Width: 80, Height: 30, Content: c.GreetingText, Style: &style},
	}, opts...)
}

// AddElement appends el on top of the existing elements.
func (e *Engine) AddElement(el domain.LayoutElement) error {
	if el.ID == "" {
		return fmt.Errorf("add element: empty id")
	}
	if el.Kind != domain.KindImage && el.Kind != domain.KindText {
		return fmt.Errorf("add element %q: %w: %q", el.ID, ErrInvalidKind, el.Kind)
	}
	if e.index(el.ID) >= 0 {
		return fmt.Errorf("add element %q: %w", el.ID, ErrDuplicateID)
	}
	if el.Kind == domain.KindImage {
		el.Style = nil
	} else if el.Style != nil {
		s := *el.Style
		el.Style = &s
	}
	e.elements = append(e.elements, normalize(el))
	return nil
}

// SetContainer replaces the container source.
func (e *Engine) SetContainer(c Container) { e.container = c }

func (e *Engine) index(id string) int {
	for i := range e.elements {
		if e.elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Elements returns a copy of the elements in creation order.
func (e *Engine) Elements() []domain.LayoutElement {
	out := make([]domain.LayoutElement, len(e.elements))
	copy(out, e.elements)
	return out
}

// Element looks up an element by id.
func (e *Engine) Element(id string) (domain.LayoutElement, bool) {
	if i := e.index(id); i >= 0 {
		return e.elements[i], true
	}
	return domain.LayoutElement{}, false
}

// SelectElement makes id the active element. Unknown ids are ignored.
func (e *Engine) SelectElement(id string) {
	if id == e.activeID || e.index(id) < 0 {
		return
	}
	e.activeID = id
}

// ClearSelection drops the active element.
func (e *Engine) ClearSelection() { e.activeID = "" }

// Active resolves the active element. A stale id reads as no selection.
func (e *Engine) Active() (domain.LayoutElement, bool) {
	if e.activeID == "" {
		return domain.LayoutElement{}, false
	}
	return e.Element(e.activeID)
}

// ActiveID returns the id of the active element or "".
func (e *Engine) ActiveID() string {
	if _, ok := e.Active(); !ok {
		return ""
	}
	return e.activeID
}

// PaintOrder returns the elements bottom to top: creation order with the
// active element lifted to the top.
func (e *Engine) PaintOrder() []domain.LayoutElement {
	out := make([]domain.LayoutElement, 0, len(e.elements))
	var top *domain.LayoutElement
	for i := range e.elements {
		if e.elements[i].ID == e.activeID {
			top = &e.elements[i]
			continue
		}
		out = append(out, e.elements[i])
	}
	if top != nil {
		out = append(out, *top)
	}
	return out
}

// Paper returns the current paper profile.
func (e *Engine) Paper() domain.PaperProfile { return e.paper }

// SetPaperProfile swaps the paper. Element geometry is untouched.
func (e *Engine) SetPaperProfile(kind domain.PaperKind) error {
	p, ok := domain.LookupPaper(kind)
	if !ok {
		return fmt.Errorf("set paper %q: %w", kind, ErrUnknownPaper)
	}
	e.paper = p
	return nil
}

// SetContent replaces an element's content without touching its geometry.
// It reports whether the element exists.
func (e *Engine) SetContent(id, content string) bool {
	i := e.index(id)
	if i < 0 {
		return false
	}
	e.elements[i].Content = content
	return true
}

// SetTextStyle replaces the style of a text element.
func (e *Engine) SetTextStyle(id string, s domain.TextStyle) bool {
	i := e.index(id)
	if i < 0 || e.elements[i].Kind != domain.KindText {
		return false
	}
	e.elements[i].Style = &s
	return true
}

// State reports whether a drag session is open.
func (e *Engine) State() State {
	if e.session != nil {
		return Dragging
	}
	return Idle
}

// RenderGeometry projects el onto its percentage box.
func (e *Engine) RenderGeometry(el domain.LayoutElement) Geometry { return RenderGeometry(el) }

// PreviewSize returns the paper's on-screen size in CSS pixels.
func (e *Engine) PreviewSize() (w, h float64) { return PreviewSize(e.paper) }
