/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the card wizard over HTTP: HTML pages, a JSON API
// driving the wizard and its layout canvas, and PDF/PNG/SVG downloads.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"movingcard/internal/export"
	applog "movingcard/internal/log"
	"movingcard/internal/version"
	"movingcard/internal/wizard"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

type Options struct {
	Addr     string
	Registry *wizard.Registry
	// Export carries fonts, author and default DPI for downloads.
	Export export.Options
	// CrashDir receives reports for panics inside handlers.
	CrashDir       string
	RequestTimeout time.Duration
	// MaxUploadBytes caps image uploads.
	MaxUploadBytes int64
	// HandlePx is the grab radius of the resize handle in screen pixels.
	HandlePx float64
}

type Server struct {
	opts   Options
	reg    *wizard.Registry
	router *chi.Mux
	pages  *template.Template
	log    *slog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("server: registry is required")
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8088"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.HandlePx <= 0 {
		opts.HandlePx = 12
	}
	pages, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{opts: opts, reg: opts.Registry, pages: pages, log: applog.WithComponent("server")}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.crashReporter)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", s.handleNewSession)
	r.Route("/s/{id}", func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/", s.handleWizardPage)
		r.Get("/print", s.handlePrintPage)
	})
	r.Route("/api/s/{id}", func(r chi.Router) {
		r.Use(s.withSession)
		r.Delete("/", s.handleCloseSession)
		r.Get("/state", s.handleState)
		r.Put("/form", s.handleForm)
		r.Put("/zip", s.handleZip)
		r.Post("/step", s.handleStep)
		r.Post("/notices/dismiss", s.handleDismiss)
		r.Post("/greeting/generate", s.handleGreetingGenerate)
		r.Put("/greeting", s.handleGreeting)
		r.Post("/image", s.handleImageUpload)
		r.Put("/style", s.handleStyle)
		r.Post("/image/generate", s.handleImageGenerate)
		r.Route("/canvas", func(r chi.Router) {
			r.Get("/", s.handleCanvas)
			r.Post("/select", s.handleSelect)
			r.Post("/clear", s.handleClear)
			r.Post("/pointer", s.handlePointer)
			r.Put("/paper", s.handlePaper)
			r.Put("/style", s.handleTextStyle)
			r.Get("/layout", s.handleLayoutGet)
			r.Put("/layout", s.handleLayoutPut)
		})
		r.Get("/export.{format}", s.handleExport)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
