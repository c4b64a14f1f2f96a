/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
	applog "movingcard/internal/log"
)

// GeminiOptions configures the Gemini backed generator.
type GeminiOptions struct {
	APIKey     string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
}

// Gemini implements Generator with the Gemini API.
type Gemini struct {
	models *genai.Models
	opts   GeminiOptions
	log    *slog.Logger
}

// NewGemini creates a client for the Gemini developer API.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	if opts.TextModel == "" {
		opts.TextModel = "gemini-3-flash-preview"
	}
	if opts.ImageModel == "" {
		opts.ImageModel = "gemini-2.5-flash-image"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{models: c.Models, opts: opts, log: applog.WithComponent("generate")}, nil
}

func (g *Gemini) GenerateGreeting(ctx context.Context, form domain.FormData) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.opts.TextModel, genai.Text(GreetingPrompt(form)), nil)
	if err != nil {
		g.log.Error("greeting generation failed", slog.String("model", g.opts.TextModel), slog.Any("err", err))
		return "", fmt.Errorf("generate greeting: %w", err)
	}
	text := Clean(textFromResponse(resp))
	if text == "" {
		return "", fmt.Errorf("generate greeting: %w", ErrEmptyResponse)
	}
	g.log.Info("greeting generated", slog.Int("runes", len([]rune(text))), slog.Duration("took", time.Since(start)))
	return text, nil
}

func (g *Gemini) GenerateStyledImage(ctx context.Context, image string, style domain.ImageStyle) (string, error) {
	mime, data, err := dataurl.Decode(image)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", ErrNoSource)
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mime),
			genai.NewPartFromText(StylePrompt(style)),
		}, genai.RoleUser),
	}
	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.opts.ImageModel, contents, nil)
	if err != nil {
		g.log.Error("image generation failed", slog.String("style", string(style)), slog.Any("err", err))
		return "", fmt.Errorf("generate image: %w", err)
	}
	out, err := imageFromResponse(resp)
	if err != nil {
		g.log.Warn("image generation returned no image", slog.String("style", string(style)))
		return "", fmt.Errorf("generate image: %w", err)
	}
	g.log.Info("image generated", slog.String("style", string(style)), slog.Duration("took", time.Since(start)))
	return out, nil
}

func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.Text != "" && !p.Thought {
				b.WriteString(p.Text)
			}
		}
		break
	}
	return b.String()
}

// imageFromResponse returns the first inline image of the first candidate as a data URL.
func imageFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoImage
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return "", ErrNoImage
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return dataurl.Encode(p.InlineData.MIMEType, p.InlineData.Data), nil
		}
	}
	return "", ErrNoImage
}
