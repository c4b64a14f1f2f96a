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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	applog "movingcard/internal/log"
	"movingcard/internal/telemetry"
)

// DefaultReapSchedule is the cron spec for expiring idle sessions.
const DefaultReapSchedule = "@every 5m"

type entry struct {
	w        *Wizard
	lastSeen time.Time
}

// Registry keeps wizard sessions in memory, keyed by UUID. Sessions idle for
// longer than the TTL are removed by Reap, which Start schedules with cron.
type Registry struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	cron     *cron.Cron
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
		log:      applog.WithComponent("sessions"),
		sessions: map[string]*entry{},
	}
}

// Create registers a fresh wizard.
func (r *Registry) Create() *Wizard {
	id := uuid.NewString()
	w := New(id, r.deps)
	r.mu.Lock()
	r.sessions[id] = &entry{w: w, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()
	r.log.Info("session created", slog.String("session", id), slog.Int("active", n))
	telemetry.Event(telemetry.EventSessionStarted, nil)
	return w
}

// Get returns the wizard for id and marks it as seen. Malformed ids miss.
func (r *Registry) Get(id string) (*Wizard, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.w, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.w.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes and removes sessions idle for longer than the TTL.
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.ttl)
	var idle []*Wizard
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.w)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		r.log.Info("idle sessions reaped", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Start schedules Reap with a cron spec such as "@every 5m".
func (r *Registry) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultReapSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Reap() }); err != nil {
		return fmt.Errorf("reap schedule %q: %w", schedule, err)
	}
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return fmt.Errorf("registry already started")
	}
	r.cron = c
	r.mu.Unlock()
	c.Start()
	r.log.Info("session reaper started", slog.String("schedule", schedule), slog.Duration("ttl", r.ttl))
	return nil
}

// Stop halts the reaper and closes every session.
func (r *Registry) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	all := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	for _, e := range all {
		e.w.Close()
	}
}
