/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dataurl encodes and decodes base64 data URLs (RFC 2397) as used for
// uploaded and generated images.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrMalformed = errors.New("malformed data url")

// Encode returns data as a base64 data URL. An empty mime type is sniffed.
func Encode(mime string, data []byte) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a base64 data URL into its mime type and payload.
func Decode(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, ErrMalformed
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformed
	}
	params := strings.Split(meta, ";")
	mime = strings.ToLower(params[0])
	if mime == "" {
		mime = "text/plain"
	}
	b64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			b64 = true
		}
	}
	if !b64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return mime, data, nil
}

// Payload strips the data URL prefix and returns the raw base64 text.
// Strings without the prefix are returned unchanged.
func Payload(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, p, ok := strings.Cut(s, ","); ok {
		return p
	}
	return s
}

// IsImage reports whether s is a data URL carrying an image type.
func IsImage(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "data:image/")
}
