/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for the OS keychain.
const (
	keyringService = "MovingCard"
	keyringAPIKey  = "gemini_api_key"
)

// TokenStore abstracts the keychain so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// osKeyring implements TokenStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// apiKey resolves the Gemini key from the environment, then the keychain.
// A missing keychain entry or an unavailable keychain yields "".
func apiKey() string {
	for _, env := range []string{EnvGeminiAPIKey, EnvGeminiAPIKeyStd} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	v, err := tokenStore.Get(keyringService, keyringAPIKey)
	if err != nil {
		return ""
	}
	return v
}

// StoreAPIKey saves the Gemini key in the OS keychain.
func StoreAPIKey(v string) error {
	return tokenStore.Set(keyringService, keyringAPIKey, strings.TrimSpace(v))
}

// DeleteAPIKey removes the Gemini key from the OS keychain. Absence is not an error.
func DeleteAPIKey() error {
	err := tokenStore.Delete(keyringService, keyringAPIKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
