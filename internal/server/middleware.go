/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"movingcard/internal/crash"
	applog "movingcard/internal/log"
	"movingcard/internal/wizard"
)

type ctxKey int

const wizardKey ctxKey = iota

// requestLogger logs one line per request and carries the chi request id
// into the context so downstream log records are tagged with it.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := applog.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		s.log.Log(ctx, level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)))
	})
}

// crashReporter writes a crash report for a handler panic and re-panics so
// middleware.Recoverer answers with 500.
func (s *Server) crashReporter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec != http.ErrAbortHandler {
				info := crash.Info{
					Command:   "serve",
					Dir:       s.opts.CrashDir,
					SessionID: chi.URLParam(r, "id"),
					Route:     r.Method + " " + r.URL.Path,
				}
				if path, err := crash.Report(info, rec, debug.Stack()); err == nil {
					s.log.Error("handler panic", slog.Any("panic", rec), slog.String("report", path))
				}
			}
			panic(rec)
		}()
		next.ServeHTTP(w, r)
	})
}

// withSession resolves {id} to a wizard. Unknown ids get 404.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wz, ok := s.reg.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, errSessionNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), wizardKey, wz)))
	})
}

func sessionFrom(r *http.Request) *wizard.Wizard {
	wz, _ := r.Context().Value(wizardKey).(*wizard.Wizard)
	return wz
}
