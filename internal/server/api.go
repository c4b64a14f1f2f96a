/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"movingcard/internal/canvas"
	"movingcard/internal/domain"
	"movingcard/internal/wizard"
)

var (
	errSessionNotFound = errors.New("session not found")
	errBadPhase        = errors.New("phase must be down, move or up")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wizard.ErrNotInLayout),
		errors.Is(err, wizard.ErrGreetingRequired),
		errors.Is(err, wizard.ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, wizard.ErrUnknownStyle),
		errors.Is(err, canvas.ErrUnknownPaper),
		errors.Is(err, canvas.ErrInvalidDocument),
		errors.Is(err, canvas.ErrDuplicateID),
		errors.Is(err, canvas.ErrInvalidKind),
		errors.Is(err, errBadPhase):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeError(w, status, err)
}

func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

// handleCloseSession discards the session and any work still running for it.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := sessionFrom(r).ID()
	s.reg.Remove(id)
	s.log.Info("session closed", slog.String("session", id))
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	var f domain.FormData
	if err := decodeBody(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	wz.SetForm(f)
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleZip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Which string `json:"which"`
		Zip   string `json:"zip"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	which, ok := wizard.ParseAddress(req.Which)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("which must be old or new"))
		return
	}
	wz := sessionFrom(r)
	wz.SetZip(which, req.Zip)
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	switch req.Action {
	case "next":
		if err := wz.Next(); err != nil {
			s.fail(w, r, err)
			return
		}
	case "back":
		wz.Back()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("action must be next or back"))
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UpTo int `json:"upTo"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	wz.DismissNotices(req.UpTo)
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleGreetingGenerate(w http.ResponseWriter, r *http.Request) {
	wz := sessionFrom(r)
	wz.RegenerateGreeting()
	writeJSON(w, http.StatusAccepted, wz.Snapshot())
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	wz.SetGreeting(req.Text)
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, hdr, err := r.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("image larger than %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("image field: %w", err))
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	if err := wz.UploadImage(data, hdr.Header.Get("Content-Type")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style domain.ImageStyle `json:"style"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wz := sessionFrom(r)
	if err := wz.SelectStyle(req.Style); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Snapshot())
}

func (s *Server) handleImageGenerate(w http.ResponseWriter, r *http.Request) {
	wz := sessionFrom(r)
	if err := wz.GenerateImage(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, wz.Snapshot())
}

// canvasDo runs fn on the session's engine and answers with the screen frame.
func (s *Server) canvasDo(w http.ResponseWriter, r *http.Request, fn func(e *canvas.Engine, c *canvas.StaticContainer) error) {
	var fr canvas.Frame
	err := sessionFrom(r).Canvas(func(e *canvas.Engine, c *canvas.StaticContainer) error {
		if err := fn(e, c); err != nil {
			return err
		}
		fr = e.Frame(canvas.Screen)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fr)
}

func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.URL.Query().Get("target"), "print") {
		fr, err := printFrame(sessionFrom(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fr)
		return
	}
	s.canvasDo(w, r, func(*canvas.Engine, *canvas.StaticContainer) error { return nil })
}

func printFrame(wz *wizard.Wizard) (canvas.Frame, error) {
	var fr canvas.Frame
	err := wz.Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		fr = e.Frame(canvas.Print)
		return nil
	})
	return fr, err
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.canvasDo(w, r, func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		e.SelectElement(req.ID)
		return nil
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.canvasDo(w, r, func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		e.ClearSelection()
		return nil
	})
}

type pointerRequest struct {
	Phase string      `json:"phase"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Box   *canvas.Box `json:"box,omitempty"`
	ID    string      `json:"id,omitempty"`
	Mode  string      `json:"mode,omitempty"`
}

// handlePointer feeds browser pointer events to the engine. Each event carries
// the container's current bounding box, which becomes the live measurement.
// A "down" without an id is hit-tested; a miss ends any open drag and clears
// the selection.
func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p := canvas.Point{X: req.X, Y: req.Y}
	s.canvasDo(w, r, func(e *canvas.Engine, c *canvas.StaticContainer) error {
		if req.Box != nil {
			c.Set(*req.Box)
		}
		switch req.Phase {
		case "down":
			id, mode := req.ID, canvas.Move
			if m, ok := canvas.ParseMode(req.Mode); ok {
				mode = m
			}
			if id == "" {
				box, _ := c.Bounds()
				hit, hitMode, ok := e.HitTest(p, box, s.opts.HandlePx)
				if !ok {
					// A lost "up" may have left a session open.
					e.EndInteraction()
					e.ClearSelection()
					return nil
				}
				id, mode = hit, hitMode
			}
			e.BeginInteraction(id, mode, p)
		case "move":
			e.UpdateInteraction(p)
		case "up", "cancel":
			e.EndInteraction()
		default:
			return errBadPhase
		}
		return nil
	})
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paper domain.PaperKind `json:"paper"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.canvasDo(w, r, func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		return e.SetPaperProfile(req.Paper)
	})
}

func (s *Server) handleTextStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		domain.TextStyle
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" {
		req.ID = domain.TextElementID
	}
	if req.FontSizePx <= 0 || req.LineHeight <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("fontSizePx and lineHeight must be positive"))
		return
	}
	s.canvasDo(w, r, func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		if !e.SetTextStyle(req.ID, req.TextStyle) {
			return fmt.Errorf("%w: %q is not a text element", canvas.ErrInvalidKind, req.ID)
		}
		return nil
	})
}

func (s *Server) handleLayoutGet(w http.ResponseWriter, r *http.Request) {
	var doc canvas.Document
	err := sessionFrom(r).Canvas(func(e *canvas.Engine, _ *canvas.StaticContainer) error {
		doc = e.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="layout.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleLayoutPut(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := canvas.ParseDocument(b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := sessionFrom(r).LoadLayout(doc); err != nil {
		s.fail(w, r, err)
		return
	}
	s.canvasDo(w, r, func(*canvas.Engine, *canvas.StaticContainer) error { return nil })
}
