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
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(Deps{}, time.Hour)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Create()
	b := r.Create()
	if a.ID() == b.ID() || r.Len() != 2 {
		t.Fatalf("expected two distinct sessions")
	}
	if got, ok := r.Get(a.ID()); !ok || got != a {
		t.Fatalf("Get(a) failed")
	}
	if _, ok := r.Get("not-a-uuid"); ok {
		t.Fatalf("malformed id should miss")
	}

	now = now.Add(50 * time.Minute)
	r.Get(b.ID())
	now = now.Add(20 * time.Minute)
	if n := r.Reap(); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if _, ok := r.Get(a.ID()); ok {
		t.Fatalf("idle session should be gone")
	}
	if _, ok := r.Get(b.ID()); !ok {
		t.Fatalf("recently used session should survive")
	}
	r.Remove(b.ID())
	if r.Len() != 0 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestRegistryStart(t *testing.T) {
	r := NewRegistry(Deps{}, time.Minute)
	if err := r.Start("not a schedule"); err == nil {
		t.Fatalf("expected schedule error")
	}
	if err := r.Start("@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start("@every 1h"); err == nil {
		t.Fatalf("second Start should fail")
	}
	r.Create()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	if r.Len() != 0 {
		t.Fatalf("Stop should close all sessions")
	}
}
