/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package generate produces the greeting text and the stylized illustration.
package generate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"movingcard/internal/domain"
)

var (
	ErrEmptyResponse = errors.New("generator returned no content")
	ErrNoImage       = errors.New("no image returned")
	ErrNoSource      = errors.New("no source image")
)

// Generator is the generative collaborator of the wizard.
type Generator interface {
	GenerateGreeting(ctx context.Context, form domain.FormData) (string, error)
	// GenerateStyledImage restyles the image in the data URL and returns a data URL.
	GenerateStyledImage(ctx context.Context, image string, style domain.ImageStyle) (string, error)
}

// GreetingPrompt builds the instruction for the neighbour greeting.
func GreetingPrompt(f domain.FormData) string {
	var b strings.Builder
	b.WriteString("以下の情報を元に、引っ越し先の近隣住民に向けた挨拶状の文章を作成してください。\n\n")
	b.WriteString("【情報】\n")
	fmt.Fprintf(&b, "名前: %s\n", strings.TrimSpace(f.Name))
	fmt.Fprintf(&b, "家族構成: %s\n", strings.TrimSpace(f.Family))
	fmt.Fprintf(&b, "旧住所: %s\n", strings.TrimSpace(f.OldAddress.Location))
	fmt.Fprintf(&b, "新住所: %s\n\n", strings.TrimSpace(f.NewAddress.Location))
	b.WriteString("【シチュエーション】\n")
	b.WriteString("- 新居への引っ越しの挨拶。\n")
	b.WriteString("- 相手は初対面の近隣住民（向こう三軒両隣など）。\n\n")
	b.WriteString("【必須要素】\n")
	b.WriteString("- 「はじめまして」という挨拶。\n")
	b.WriteString("- 「これからよろしくお願いします」という気持ち。\n")
	b.WriteString("- 引っ越しや工事の期間中、騒音などで迷惑をかけたことへのお詫び（「工事期間中はご迷惑をおかけしました」等）を必ず含めること。\n")
	b.WriteString("- 200文字以内で簡潔に。\n")
	b.WriteString("- 丁寧語（です・ます調）で。\n")
	b.WriteString("- 郵便番号や具体的な番地は記載せず、文章のみを出力してください。\n")
	return b.String()
}

var stylePrompts = map[domain.ImageStyle]string{
	domain.StyleSimple:   "Transform this image into a simple, minimalist line art illustration. Clean lines, few colors, elegant.",
	domain.StylePop:      "Transform this image into a colorful, vibrant Pop Art style illustration. Bold colors, comic book dots, energetic.",
	domain.StyleCheap:    "Transform this image into a deliberately low-quality, MS Paint style, funny and crude doodle. Pixelated, bad anatomy, humorous.",
	domain.StyleGorgeous: "Transform this image into a luxurious, highly detailed oil painting style. Gold accents, dramatic lighting, baroque aesthetic.",
}

// StylePrompt returns the restyling instruction for style; unknown styles get Pop.
func StylePrompt(style domain.ImageStyle) string {
	if p, ok := stylePrompts[style]; ok {
		return p
	}
	return stylePrompts[domain.StylePop]
}

var textPolicy = bluemonday.StrictPolicy()

// Clean strips markup from generated text and trims surrounding blank lines.
func Clean(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n ")
}
