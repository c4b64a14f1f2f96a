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
	"path/filepath"
	"testing"
	"time"
)

type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (s *memStore) Set(service, key, value string) error { s.m[service+"/"+key] = value; return nil }
func (s *memStore) Delete(service, key string) error    { delete(s.m, service+"/"+key); return nil }

func useMemStore(t *testing.T) *memStore {
	t.Helper()
	old := tokenStore
	ms := &memStore{m: map[string]string{}}
	tokenStore = ms
	t.Cleanup(func() { tokenStore = old })
	return ms
}

func useConfigFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if body != "" {
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	t.Setenv(EnvConfigPath, p)
	return p
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	useMemStore(t)
	useConfigFile(t, "")
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvGeminiAPIKeyStd, "")
	cfg, key, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if key != "" {
		t.Fatalf("unexpected api key %q", key)
	}
	if cfg.Server.Addr != Defaults().Server.Addr || cfg.Export.DPI != 300 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadMergesFile(t *testing.T) {
	useMemStore(t)
	useConfigFile(t, `
config_version: 1
server:
  addr: ":9000"
zipcode:
  cache_dsn: "/tmp/zip.db"
export:
  dpi: 150
logging:
  level: DEBUG
`)
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Zipcode.CacheDSN != "/tmp/zip.db" || cfg.Export.DPI != 150 {
		t.Fatalf("file values not merged: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Gemini.TextModel != Defaults().Gemini.TextModel {
		t.Fatalf("unset field lost its default: %q", cfg.Gemini.TextModel)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	useMemStore(t)
	useConfigFile(t, "server: [unterminated")
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	useMemStore(t)
	useConfigFile(t, "")
	t.Setenv(EnvServerAddr, "0.0.0.0:80")
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvZipCacheDSN, "postgres://u:p@localhost/zip")
	t.Setenv(EnvLogSource, "1")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:80" || !cfg.General.TelemetryOptIn || !cfg.Logging.Source {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Zipcode.CacheDSN != "postgres://u:p@localhost/zip" {
		t.Fatalf("cache dsn = %q", cfg.Zipcode.CacheDSN)
	}
	if env, ok := EnvOverrideFor("server.addr"); !ok || env != EnvServerAddr {
		t.Fatalf("EnvOverrideFor(server.addr) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("gemini.text_model"); ok {
		t.Fatalf("gemini.text_model should not be overridden")
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	ms := useMemStore(t)
	useConfigFile(t, "")
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvGeminiAPIKeyStd, "")
	if err := StoreAPIKey(" from-keychain "); err != nil {
		t.Fatalf("StoreAPIKey: %v", err)
	}
	if ms.m["MovingCard/gemini_api_key"] != "from-keychain" {
		t.Fatalf("key not trimmed/stored: %v", ms.m)
	}
	if _, key, _ := Load(); key != "from-keychain" {
		t.Fatalf("key = %q, want keychain value", key)
	}
	t.Setenv(EnvGeminiAPIKeyStd, "from-env")
	if _, key, _ := Load(); key != "from-env" {
		t.Fatalf("key = %q, want env value", key)
	}
	if err := DeleteAPIKey(); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	ms := useMemStore(t)
	p := useConfigFile(t, "")
	cfg := Defaults()
	cfg.Export.FontPath = "/fonts/NotoSansJP.ttf"
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if ms.m["MovingCard/gemini_api_key"] != "secret" {
		t.Fatalf("api key not stored in keychain")
	}
	got, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Export.FontPath != cfg.Export.FontPath {
		t.Fatalf("FontPath = %q", got.Export.FontPath)
	}
}

func TestTimeoutsFallBack(t *testing.T) {
	if got := (GeminiConfig{}).Timeout(); got != time.Minute {
		t.Fatalf("gemini timeout = %v", got)
	}
	if got := (ZipcodeConfig{TimeoutMs: 1500}).Timeout(); got != 1500*time.Millisecond {
		t.Fatalf("zip timeout = %v", got)
	}
	if got := (ServerConfig{}).SessionTTL(); got != 2*time.Hour {
		t.Fatalf("session ttl = %v", got)
	}
}

func TestParseDPI(t *testing.T) {
	if n, err := ParseDPI("150dpi"); err != nil || n != 150 {
		t.Fatalf("ParseDPI = %d, %v", n, err)
	}
	if _, err := ParseDPI("-3"); err == nil {
		t.Fatalf("expected error for negative dpi")
	}
}
