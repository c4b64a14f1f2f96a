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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides at runtime. The Gemini API key is
// never written to the file; it lives in the OS keychain.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionTTLMin expires wizard sessions idle for longer than this.
	SessionTTLMin int `yaml:"session_ttl_min"`
	// ReapSchedule is a cron spec for the idle session sweep.
	ReapSchedule string `yaml:"reap_schedule"`
}

type GeminiConfig struct {
	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type ZipcodeConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// CacheDSN selects the lookup cache: a file path (SQLite), a postgres:// URL, or empty for none.
	CacheDSN string `yaml:"cache_dsn"`
}

type ExportConfig struct {
	FontPath string `yaml:"font_path"`
	DPI      int    `yaml:"dpi"`
	Author   string `yaml:"author"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Server        ServerConfig  `yaml:"server"`
	Gemini        GeminiConfig  `yaml:"gemini"`
	Zipcode       ZipcodeConfig `yaml:"zipcode"`
	Export        ExportConfig  `yaml:"export"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Server:        ServerConfig{Addr: "127.0.0.1:8088", SessionTTLMin: 120, ReapSchedule: "@every 5m"},
		Gemini:        GeminiConfig{TextModel: "gemini-3-flash-preview", ImageModel: "gemini-2.5-flash-image", TimeoutMs: 60000},
		Zipcode:       ZipcodeConfig{BaseURL: "https://zipcloud.ibsnet.co.jp/api/search", TimeoutMs: 5000},
		Export:        ExportConfig{DPI: 300, Author: "movingcard"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "MCW_CONFIG"
	EnvTelemetryOptIn   = "MCW_TELEMETRY_OPT_IN"
	EnvServerAddr       = "MCW_ADDR"
	EnvGeminiAPIKey     = "MCW_GEMINI_API_KEY"
	EnvGeminiAPIKeyStd  = "GEMINI_API_KEY"
	EnvGeminiTextModel  = "MCW_GEMINI_TEXT_MODEL"
	EnvGeminiImageModel = "MCW_GEMINI_IMAGE_MODEL"
	EnvZipBaseURL       = "MCW_ZIP_BASE_URL"
	EnvZipCacheDSN      = "MCW_ZIP_CACHE_DSN"
	EnvExportFont       = "MCW_EXPORT_FONT"
	EnvLogLevel         = "MCW_LOG_LEVEL"
	EnvLogFormat        = "MCW_LOG_FORMAT"
	EnvLogSource        = "MCW_LOG_SOURCE"
	EnvLogFile          = "MCW_LOG_FILE"
)

// ConfigPath returns the per-user config file path. MCW_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MovingCard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MovingCard")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "movingcard")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "movingcard")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges environment
// overrides. The Gemini API key is returned separately: env first, then the keychain.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, apiKey(), nil
}

// Save writes the user config YAML and stores the API key in the OS keychain (if non-empty).
func Save(cfg AppConfig, key string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if key != "" {
		if err := StoreAPIKey(key); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	setString(&dst.Server.Addr, src.Server.Addr)
	setInt(&dst.Server.SessionTTLMin, src.Server.SessionTTLMin)
	setString(&dst.Server.ReapSchedule, src.Server.ReapSchedule)

	setString(&dst.Gemini.TextModel, src.Gemini.TextModel)
	setString(&dst.Gemini.ImageModel, src.Gemini.ImageModel)
	setInt(&dst.Gemini.TimeoutMs, src.Gemini.TimeoutMs)

	setString(&dst.Zipcode.BaseURL, src.Zipcode.BaseURL)
	setInt(&dst.Zipcode.TimeoutMs, src.Zipcode.TimeoutMs)
	setString(&dst.Zipcode.CacheDSN, src.Zipcode.CacheDSN)

	setString(&dst.Export.FontPath, src.Export.FontPath)
	setInt(&dst.Export.DPI, src.Export.DPI)
	setString(&dst.Export.Author, src.Export.Author)

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	setString(&cfg.Server.Addr, os.Getenv(EnvServerAddr))
	setString(&cfg.Gemini.TextModel, os.Getenv(EnvGeminiTextModel))
	setString(&cfg.Gemini.ImageModel, os.Getenv(EnvGeminiImageModel))
	setString(&cfg.Zipcode.BaseURL, os.Getenv(EnvZipBaseURL))
	setString(&cfg.Zipcode.CacheDSN, os.Getenv(EnvZipCacheDSN))
	setString(&cfg.Export.FontPath, os.Getenv(EnvExportFont))
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	setString(&cfg.Logging.File, os.Getenv(EnvLogFile))
}

var overrides = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"server.addr":              EnvServerAddr,
	"gemini.text_model":        EnvGeminiTextModel,
	"gemini.image_model":       EnvGeminiImageModel,
	"zipcode.base_url":         EnvZipBaseURL,
	"zipcode.cache_dsn":        EnvZipCacheDSN,
	"export.font_path":         EnvExportFont,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrides[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

func millis(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

// Timeout returns the per-call generation timeout.
func (g GeminiConfig) Timeout() time.Duration {
	return millis(g.TimeoutMs, Defaults().Gemini.TimeoutMs)
}

// Timeout returns the postal lookup HTTP timeout.
func (z ZipcodeConfig) Timeout() time.Duration {
	return millis(z.TimeoutMs, Defaults().Zipcode.TimeoutMs)
}

// SessionTTL returns the idle expiry for wizard sessions.
func (s ServerConfig) SessionTTL() time.Duration {
	if s.SessionTTLMin <= 0 {
		return time.Duration(Defaults().Server.SessionTTLMin) * time.Minute
	}
	return time.Duration(s.SessionTTLMin) * time.Minute
}

// ParseDPI accepts strings such as "300" or "300dpi".
func ParseDPI(s string) (int, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "dpi")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid dpi %q", s)
	}
	return n, nil
}
