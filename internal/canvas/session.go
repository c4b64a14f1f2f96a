/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"log/slog"
	"math"

	"movingcard/internal/domain"
)

// Mode is the kind of pointer interaction.
type Mode int

const (
	Move Mode = iota
	Resize
)

func (m Mode) String() string {
	if m == Resize {
		return "resize"
	}
	return "move"
}

// ParseMode maps "move" and "resize" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "move":
		return Move, true
	case "resize":
		return Resize, true
	}
	return Move, false
}

// Session is the token for one drag. It is released by End or by the next
// BeginInteraction; updates through a released token are ignored.
type Session struct {
	eng       *Engine
	elementID string
	mode      Mode
	origin    Point
	startBox  Box
	start     Geometry
	released  bool
}

// ElementID returns the id of the element being dragged.
func (s *Session) ElementID() string { return s.elementID }

// Mode returns the interaction kind.
func (s *Session) Mode() Mode { return s.mode }

// StartBox returns the container box recorded when the drag began.
func (s *Session) StartBox() Box { return s.startBox }

// Live reports whether the token still owns the engine's drag.
func (s *Session) Live() bool {
	return s != nil && !s.released && s.eng.session == s
}

// Update applies the pointer position p. It reports whether geometry changed.
func (s *Session) Update(p Point) bool {
	if !s.Live() {
		return false
	}
	return s.eng.apply(s, p)
}

// End releases the session. Selection is kept.
func (s *Session) End() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if s.eng.session == s {
		s.eng.session = nil
		s.eng.log.Debug("drag end", slog.String("id", s.elementID), slog.String("mode", s.mode.String()))
	}
}

// BeginInteraction selects id and opens a drag session anchored at p.
// An open session is ended first. When the element is unknown or the
// container cannot be measured no session is opened and nil is returned.
func (e *Engine) BeginInteraction(id string, mode Mode, p Point) *Session {
	if e.session != nil {
		e.session.End()
	}
	i := e.index(id)
	if i < 0 {
		return nil
	}
	e.SelectElement(id)
	if !finite(p.X) || !finite(p.Y) {
		return nil
	}
	box, ok := e.bounds()
	if !ok {
		e.log.Debug("drag skipped, container not measurable", slog.String("id", id))
		return nil
	}
	s := &Session{
		eng:       e,
		elementID: id,
		mode:      mode,
		origin:    p,
		startBox:  box,
		start:     RenderGeometry(e.elements[i]),
	}
	e.session = s
	e.log.Debug("drag begin", slog.String("id", id), slog.String("mode", mode.String()))
	return s
}

// UpdateInteraction feeds p to the open session, if any.
func (e *Engine) UpdateInteraction(p Point) bool {
	if e.session == nil {
		return false
	}
	return e.session.Update(p)
}

// EndInteraction ends the open session, if any.
func (e *Engine) EndInteraction() {
	if e.session != nil {
		e.session.End()
	}
}

// Session returns the open drag session or nil.
func (e *Engine) Session() *Session { return e.session }

func (e *Engine) bounds() (Box, bool) {
	if e.container == nil {
		return Box{}, false
	}
	b, ok := e.container.Bounds()
	if !ok || !b.measurable() {
		return Box{}, false
	}
	return b, true
}

// apply converts the pixel delta with the live container size and updates
// the dragged element. Moves stay on the paper; resizes only keep the
// minimum footprint and may grow past the far edges.
func (e *Engine) apply(s *Session, p Point) bool {
	if !finite(p.X) || !finite(p.Y) {
		return false
	}
	i := e.index(s.elementID)
	if i < 0 {
		return false
	}
	box, ok := e.bounds()
	if !ok {
		return false
	}
	dx := (p.X - s.origin.X) / box.Width * 100
	dy := (p.Y - s.origin.Y) / box.Height * 100

	el := &e.elements[i]
	before := *el
	switch s.mode {
	case Move:
		el.X = clamp(s.start.Left+dx, 0, 100-el.Width)
		el.Y = clamp(s.start.Top+dy, 0, 100-el.Height)
	case Resize:
		el.Width = math.Max(domain.MinWidthPct, s.start.Width+dx)
		el.Height = math.Max(domain.MinHeightPct, s.start.Height+dy)
	}
	return el.X != before.X || el.Y != before.Y || el.Width != before.Width || el.Height != before.Height
}

// StaticContainer is a Container whose box is pushed by the caller, e.g.
// from the measurement a browser sends with each pointer event.
type StaticContainer struct {
	box Box
	ok  bool
}

// Set records the latest measurement.
func (c *StaticContainer) Set(b Box) { c.box, c.ok = b, true }

// Reset forgets the measurement.
func (c *StaticContainer) Reset() { c.box, c.ok = Box{}, false }

func (c *StaticContainer) Bounds() (Box, bool) { return c.box, c.ok }
