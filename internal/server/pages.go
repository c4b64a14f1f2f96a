/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"movingcard/internal/canvas"
	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
	"movingcard/internal/version"
)

var templateFuncs = template.FuncMap{
	"num": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	// imageSrc lets image data URLs through html/template's URL filter.
	"imageSrc": func(s string) template.URL {
		if dataurl.IsImage(s) {
			return template.URL(s)
		}
		return ""
	},
	"isImage": func(it canvas.Item) bool { return it.Kind == domain.KindImage },
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.ErrorContext(r.Context(), "render template", slog.String("template", name), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	wz := s.reg.Create()
	http.Redirect(w, r, "/s/"+wz.ID()+"/", http.StatusSeeOther)
}

func (s *Server) handleWizardPage(w http.ResponseWriter, r *http.Request) {
	wz := sessionFrom(r)
	state, err := json.Marshal(wz.Snapshot())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "wizard.html", map[string]any{
		"ID":      wz.ID(),
		"State":   template.JS(state),
		"Version": version.String(),
	})
}

// handlePrintPage renders the card at its physical size for the browser's
// print dialog. Outside the layout step it sends the user back to the wizard.
func (s *Server) handlePrintPage(w http.ResponseWriter, r *http.Request) {
	wz := sessionFrom(r)
	fr, err := printFrame(wz)
	if err != nil {
		http.Redirect(w, r, "/s/"+wz.ID()+"/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "print.html", map[string]any{
		"ID":    wz.ID(),
		"Frame": fr,
	})
}
