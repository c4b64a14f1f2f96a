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
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"movingcard/internal/config"
	"movingcard/internal/export"
	"movingcard/internal/telemetry"
)

const maxDPI = 1200

// handleExport renders the print frame as PDF, PNG or SVG. Query parameters:
// dpi (PNG resolution) and crop=1 (PDF crop marks).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	opt := s.opts.Export
	if v := r.URL.Query().Get("dpi"); v != "" {
		dpi, err := config.ParseDPI(v)
		if err == nil && dpi > maxDPI {
			err = fmt.Errorf("dpi above %d", maxDPI)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opt.DPI = dpi
	}
	if v, err := strconv.ParseBool(r.URL.Query().Get("crop")); err == nil {
		opt.CropMarks = v
	}
	fr, err := printFrame(sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	start := time.Now()
	var buf bytes.Buffer
	if err := export.Write(&buf, f, fr, opt); err != nil {
		telemetry.Event(telemetry.EventExportFailed, map[string]any{"format": string(f)})
		s.fail(w, r, fmt.Errorf("export %s: %w", f, err))
		return
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"format": string(f), "paper": string(fr.Paper.Kind)})
	s.log.InfoContext(r.Context(), "export",
		slog.String("format", string(f)),
		slog.String("paper", string(fr.Paper.Kind)),
		slog.Int("bytes", buf.Len()),
		slog.Duration("took", time.Since(start)))

	name := fmt.Sprintf("movingcard-%s.%s", fr.Paper.Kind, f)
	disposition := "attachment"
	if r.URL.Query().Get("inline") == "1" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
