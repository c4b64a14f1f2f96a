/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"movingcard/internal/domain"
)

// DocumentVersion is the current layout document version.
const DocumentVersion = 1

//go:embed layout.schema.json
var layoutSchema []byte

var ErrInvalidDocument = errors.New("invalid layout document")

// Document is the JSON interchange form of a card layout.
type Document struct {
	Version  int                    `json:"version"`
	Paper    domain.PaperKind       `json:"paper"`
	ActiveID string                 `json:"activeId,omitempty"`
	Elements []domain.LayoutElement `json:"elements"`
}

// Snapshot captures the current layout.
func (e *Engine) Snapshot() Document {
	return Document{Version: DocumentVersion, Paper: e.paper.Kind, ActiveID: e.ActiveID(), Elements: e.Elements()}
}

// Restore replaces the layout with doc. Any drag session is ended first.
func (e *Engine) Restore(doc Document) error {
	p, ok := domain.LookupPaper(doc.Paper)
	if !ok {
		return fmt.Errorf("restore: %w", ErrUnknownPaper)
	}
	next := New(nil, WithLogger(e.log))
	for _, el := range doc.Elements {
		if err := next.AddElement(el); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	e.EndInteraction()
	e.elements = next.elements
	e.paper = p
	e.activeID = ""
	e.SelectElement(doc.ActiveID)
	return nil
}

// ParseDocument validates data against the layout schema and decodes it.
func ParseDocument(data []byte) (Document, error) {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(layoutSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}
