/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package zipcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	applog "movingcard/internal/log"
)

var (
	// ErrNoResult means the postal code is well-formed but unknown.
	ErrNoResult = errors.New("zipcode: no result")
	// ErrIncomplete means the input does not hold exactly seven digits.
	ErrIncomplete = errors.New("zipcode: incomplete postal code")
)

const DefaultBaseURL = "https://zipcloud.ibsnet.co.jp/api/search"

// Lookuper resolves a normalized postal code to "prefecture + city".
type Lookuper interface {
	Lookup(ctx context.Context, zip string) (string, error)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Cache      *Cache
	HTTPClient *http.Client
}

// Client queries the zipcloud search API, consulting Cache first when set.
type Client struct {
	base  string
	http  *http.Client
	cache *Cache
	log   *slog.Logger
}

func NewClient(opts Options) *Client {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{base: opts.BaseURL, http: hc, cache: opts.Cache, log: applog.WithComponent("zipcode")}
}

type searchResponse struct {
	Status  int     `json:"status"`
	Message *string `json:"message"`
	Results []struct {
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		Address3 string `json:"address3"`
	} `json:"results"`
}

// Lookup normalizes zip and returns address1+address2 of the first result.
func (c *Client) Lookup(ctx context.Context, zip string) (string, error) {
	zip = Normalize(zip)
	if !Ready(zip) {
		return "", ErrIncomplete
	}
	l := c.log.With(slog.String("zip", zip))
	if c.cache != nil {
		if loc, ok, err := c.cache.Get(ctx, zip); err != nil {
			l.Warn("cache read failed", slog.Any("err", err))
		} else if ok {
			l.Debug("cache hit")
			return loc, nil
		}
	}
	loc, err := c.fetch(ctx, zip)
	if err != nil {
		if !errors.Is(err, ErrNoResult) {
			l.Warn("lookup failed", slog.Any("err", err))
		}
		return "", err
	}
	if c.cache != nil {
		if err := c.cache.Put(ctx, zip, loc); err != nil {
			l.Warn("cache write failed", slog.Any("err", err))
		}
	}
	return loc, nil
}

func (c *Client) fetch(ctx context.Context, zip string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("zipcode base url: %w", err)
	}
	q := u.Query()
	q.Set("zipcode", zip)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("zipcode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zipcode request: status %d", resp.StatusCode)
	}
	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&sr); err != nil {
		return "", fmt.Errorf("zipcode decode: %w", err)
	}
	if sr.Status != 0 && sr.Status != http.StatusOK {
		msg := ""
		if sr.Message != nil {
			msg = *sr.Message
		}
		return "", fmt.Errorf("zipcode api status %d: %s", sr.Status, msg)
	}
	if len(sr.Results) == 0 {
		return "", ErrNoResult
	}
	return sr.Results[0].Address1 + sr.Results[0].Address2, nil
}
