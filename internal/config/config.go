/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user-scoped namedraft configuration.
//
// The YAML file is the persisted source, defaults fill the gaps and ND_*
// environment variables override both at runtime without being written back.
// The downstream API token never touches the file; it lives in the OS keychain.
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

	"namedraft/internal/log"

	"gopkg.in/yaml.v3"
)

// EditorConfig holds defaults for a fresh editing session.
type EditorConfig struct {
	Template    string `yaml:"template"`
	Guides      bool   `yaml:"guides"`
	PresetsFile string `yaml:"presets_file"` // optional YAML override of the built-in tables
	ExportDir   string `yaml:"export_dir"`
}

// StorageConfig selects where the project document is persisted.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // "sqlite" | "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DownstreamConfig points at the authoring tool that receives published pages.
type DownstreamConfig struct {
	BaseURL   string  `yaml:"base_url"`
	TimeoutMs int     `yaml:"timeout_ms"`
	RatePerS  float64 `yaml:"rate_per_s"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type ServerConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration. Bump ConfigVersion on
// incompatible structure changes.
type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	Editor        EditorConfig     `yaml:"editor"`
	Storage       StorageConfig    `yaml:"storage"`
	Downstream    DownstreamConfig `yaml:"downstream"`
	Server        ServerConfig     `yaml:"server"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{Template: "4koma", Guides: true, ExportDir: "."},
		Storage:       StorageConfig{Driver: "sqlite"},
		Downstream:    DownstreamConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, RatePerS: 2},
		Server:        ServerConfig{Enable: false, Addr: "127.0.0.1:7420"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvTemplate        = "ND_TEMPLATE"
	EnvGuides          = "ND_GUIDES"
	EnvPresetsFile     = "ND_PRESETS_FILE"
	EnvExportDir       = "ND_EXPORT_DIR"
	EnvStorageDriver   = "ND_STORAGE_DRIVER"
	EnvSQLitePath      = "ND_SQLITE_PATH"
	EnvPostgresDSN     = "ND_PG_DSN"
	EnvDownstreamURL   = "ND_DOWNSTREAM_URL"
	EnvDownstreamTOms  = "ND_DOWNSTREAM_TIMEOUT_MS"
	EnvServerAddr      = "ND_SERVER_ADDR"
	EnvServerEnable    = "ND_ENABLE_SERVER"
	EnvLogLevel        = "ND_LOG_LEVEL"
	EnvLogFormat       = "ND_LOG_FORMAT"
	EnvLogSource       = "ND_LOG_SOURCE"
	EnvLogFile         = "ND_LOG_FILE"
	envConfigPathForce = "ND_CONFIG"
)

// Dir returns the per-user namedraft directory (config, database, crash logs).
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "NameDraft")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "NameDraft")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "namedraft")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "namedraft")
		}
	}
	if base == "" || base == "namedraft" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path. ND_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(envConfigPathForce)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and env
// overrides, and fetches the downstream token from the keychain.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, "", err
	}
	tok, terr := tokenStore.Get(keyringService, keyringToken)
	if terr != nil && !errors.Is(terr, ErrTokenNotFound) {
		log.WithComponent("config").Debug("keyring unavailable", "err", terr)
	}
	return cfg, tok, nil
}

// LoadFrom reads a specific YAML file. A missing file yields defaults; a
// malformed one is reported so the user does not silently lose settings.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the config YAML and stores the token in the keychain when non-empty.
func Save(cfg AppConfig, token string) error {
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
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// LogOptions maps the logging section onto log.Options.
func (c AppConfig) LogOptions() log.Options {
	return log.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}

// SQLitePath resolves the database location, defaulting into Dir().
func (c AppConfig) SQLitePath() (string, error) {
	if p := strings.TrimSpace(c.Storage.SQLitePath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "namedraft.db"), nil
}

// Timeout returns the downstream request timeout.
func (d DownstreamConfig) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return time.Duration(Defaults().Downstream.TimeoutMs) * time.Millisecond
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if s := strings.TrimSpace(src.Editor.Template); s != "" {
		dst.Editor.Template = s
	}
	dst.Editor.Guides = src.Editor.Guides
	if s := strings.TrimSpace(src.Editor.PresetsFile); s != "" {
		dst.Editor.PresetsFile = s
	}
	if s := strings.TrimSpace(src.Editor.ExportDir); s != "" {
		dst.Editor.ExportDir = s
	}
	if s := strings.TrimSpace(src.Storage.Driver); s != "" {
		dst.Storage.Driver = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Storage.SQLitePath); s != "" {
		dst.Storage.SQLitePath = s
	}
	if s := strings.TrimSpace(src.Storage.PostgresDSN); s != "" {
		dst.Storage.PostgresDSN = s
	}
	if s := strings.TrimSpace(src.Downstream.BaseURL); s != "" {
		dst.Downstream.BaseURL = s
	}
	if src.Downstream.TimeoutMs != 0 {
		dst.Downstream.TimeoutMs = src.Downstream.TimeoutMs
	}
	if src.Downstream.RatePerS > 0 {
		dst.Downstream.RatePerS = src.Downstream.RatePerS
	}
	dst.Server.Enable = src.Server.Enable
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = truthy(v)
		}
	}
	str(EnvTemplate, &cfg.Editor.Template)
	flag(EnvGuides, &cfg.Editor.Guides)
	str(EnvPresetsFile, &cfg.Editor.PresetsFile)
	str(EnvExportDir, &cfg.Editor.ExportDir)
	str(EnvStorageDriver, &cfg.Storage.Driver)
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	str(EnvSQLitePath, &cfg.Storage.SQLitePath)
	str(EnvPostgresDSN, &cfg.Storage.PostgresDSN)
	str(EnvDownstreamURL, &cfg.Downstream.BaseURL)
	if v := strings.TrimSpace(os.Getenv(EnvDownstreamTOms)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Downstream.TimeoutMs = n
		}
	}
	str(EnvServerAddr, &cfg.Server.Addr)
	flag(EnvServerEnable, &cfg.Server.Enable)
	str(EnvLogLevel, &cfg.Logging.Level)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	flag(EnvLogSource, &cfg.Logging.Source)
	str(EnvLogFile, &cfg.Logging.File)
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

var overrideKeys = map[string]string{
	"editor.template":       EnvTemplate,
	"editor.guides":         EnvGuides,
	"editor.presets_file":   EnvPresetsFile,
	"editor.export_dir":     EnvExportDir,
	"storage.driver":        EnvStorageDriver,
	"storage.sqlite_path":   EnvSQLitePath,
	"storage.postgres_dsn":  EnvPostgresDSN,
	"downstream.base_url":   EnvDownstreamURL,
	"downstream.timeout_ms": EnvDownstreamTOms,
	"server.addr":           EnvServerAddr,
	"server.enable":         EnvServerEnable,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor reports which env var, if any, currently overrides a dotted config key.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
