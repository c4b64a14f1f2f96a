/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wizard

import (
	"movingcard/internal/canvas"
	"movingcard/internal/domain"
)

// Pending flags background work that has not settled yet.
type Pending struct {
	Greeting bool `json:"greeting"`
	Image    bool `json:"image"`
	OldZip   bool `json:"oldZip"`
	NewZip   bool `json:"newZip"`
}

// View is the front end's picture of a session.
type View struct {
	ID       string                  `json:"id"`
	Step     Step                    `json:"step"`
	StepName string                  `json:"stepName"`
	Form     domain.FormData         `json:"form"`
	Content  domain.GeneratedContent `json:"content"`
	Styles   []domain.ImageStyle     `json:"styles"`
	Papers   []domain.PaperProfile   `json:"papers"`
	Paper    domain.PaperKind        `json:"paper"`
	Pending  Pending                 `json:"pending"`
	Notices  []Notice                `json:"notices"`
	// CanLayout mirrors the enabled state of the "next" button on the drafting step.
	CanLayout bool             `json:"canLayout"`
	Layout    *canvas.Document `json:"layout,omitempty"`
}

func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		ID:       w.id,
		Step:     w.step,
		StepName: w.step.String(),
		Form:     w.form,
		Content:  w.content,
		Styles:   domain.ImageStyles(),
		Papers:   domain.Papers(),
		Paper:    w.paper,
		Pending: Pending{
			Greeting: w.pending[fieldGreeting],
			Image:    w.pending[fieldImage],
			OldZip:   w.pending[fieldOldZip],
			NewZip:   w.pending[fieldNewZip],
		},
		Notices:   append([]Notice(nil), w.notices...),
		CanLayout: w.content.GreetingText != "",
	}
	if w.engine != nil {
		doc := w.engine.Snapshot()
		v.Layout = &doc
	}
	return v
}
