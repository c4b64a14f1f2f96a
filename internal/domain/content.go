/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// AddressData is a postal code plus the prefecture and city it resolves to.
type AddressData struct {
	Zip      string `json:"zip"`
	Location string `json:"location"`
}

// FormData is what the sender enters in the first wizard step.
type FormData struct {
	Name       string      `json:"name"`
	Family     string      `json:"family"`
	OldAddress AddressData `json:"oldAddress"`
	NewAddress AddressData `json:"newAddress"`
}

// ImageStyle selects the illustration style for the generated image.
type ImageStyle string

const (
	StyleSimple   ImageStyle = "Simple"
	StylePop      ImageStyle = "Pop"
	StyleCheap    ImageStyle = "Cheap"
	StyleGorgeous ImageStyle = "Gorgeous"
)

// ImageStyles lists the styles in display order.
func ImageStyles() []ImageStyle {
	return []ImageStyle{StyleSimple, StylePop, StyleCheap, StyleGorgeous}
}

// ParseImageStyle accepts a style name case-insensitively.
func ParseImageStyle(s string) (ImageStyle, bool) {
	for _, st := range ImageStyles() {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// GeneratedContent is the payload handed from drafting to layout.
// Images are data URLs; empty means absent.
type GeneratedContent struct {
	GreetingText   string     `json:"greetingText"`
	OriginalImage  string     `json:"originalImage,omitempty"`
	GeneratedImage string     `json:"generatedImage,omitempty"`
	SelectedStyle  ImageStyle `json:"selectedStyle"`
}

// ImageContent prefers the generated image and falls back to the original.
func (c GeneratedContent) ImageContent() string {
	if c.GeneratedImage != "" {
		return c.GeneratedImage
	}
	return c.OriginalImage
}
