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
	"strings"

	"movingcard/internal/dataurl"
	"movingcard/internal/domain"
)

// Static is an offline Generator. It fills a fixed greeting template and
// returns the source image unchanged; used when no API key is configured.
type Static struct{}

func (Static) GenerateGreeting(ctx context.Context, f domain.FormData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("はじめまして。")
	if loc := strings.TrimSpace(f.NewAddress.Location); loc != "" {
		fmt.Fprintf(&b, "このたび%sに", loc)
	} else {
		b.WriteString("このたび近所に")
	}
	b.WriteString("引っ越してまいりました")
	if name := strings.TrimSpace(f.Name); name != "" {
		fmt.Fprintf(&b, "%sと申します。", name)
	} else {
		b.WriteString("。")
	}
	if fam := strings.TrimSpace(f.Family); fam != "" {
		fmt.Fprintf(&b, "%sで暮らしております。", fam)
	}
	b.WriteString("\n工事期間中はご迷惑をおかけしました。\nこれからどうぞよろしくお願いいたします。")
	return b.String(), nil
}

func (Static) GenerateStyledImage(ctx context.Context, image string, _ domain.ImageStyle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !dataurl.IsImage(image) {
		return "", ErrNoSource
	}
	return image, nil
}
