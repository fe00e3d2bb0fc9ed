/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type memTokens struct{ m map[string]string }

func (s *memTokens) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", ErrTokenNotFound
	}
	return v, nil
}
func (s *memTokens) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}
func (s *memTokens) Delete(service, key string) error {
	if _, ok := s.m[service+"/"+key]; !ok {
		return ErrTokenNotFound
	}
	delete(s.m, service+"/"+key)
	return nil
}

func isolate(t *testing.T) (string, *memTokens) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv(envConfigPathForce, path)
	for _, k := range overrideKeys {
		t.Setenv(k, "")
	}
	ts := &memTokens{m: map[string]string{}}
	prev := SetTokenStore(ts)
	t.Cleanup(func() { SetTokenStore(prev) })
	return path, ts
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
	def := Defaults()
	if cfg.Editor.Template != def.Editor.Template || cfg.Storage.Driver != "sqlite" || cfg.Server.Addr != def.Server.Addr {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	_, ts := isolate(t)
	cfg := Defaults()
	cfg.Editor.Template = "3koma"
	cfg.Storage.Driver = "postgres"
	cfg.Storage.PostgresDSN = "postgres://u@localhost/nd"
	cfg.Downstream.TimeoutMs = 2500
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ts.m[keyringService+"/"+keyringToken] != "secret" {
		t.Fatalf("token not written to keyring: %v", ts.m)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "secret" {
		t.Fatalf("token = %q", tok)
	}
	if got.Editor.Template != "3koma" || got.Storage.Driver != "postgres" || got.Storage.PostgresDSN != cfg.Storage.PostgresDSN {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if got.Downstream.Timeout() != 2500*time.Millisecond {
		t.Fatalf("timeout = %v", got.Downstream.Timeout())
	}
}

func TestTokenFileNeverContainsSecret(t *testing.T) {
	path, _ := isolate(t)
	if err := Save(Defaults(), "hunter2"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatalf("token leaked into config file")
	}
}

func TestMalformedFileReported(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("editor: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Editor.Template != "4koma" {
		t.Fatalf("defaults should survive a parse error: %#v", cfg.Editor)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTemplate, "webtoon")
	t.Setenv(EnvGuides, "off")
	t.Setenv(EnvStorageDriver, "POSTGRES")
	t.Setenv(EnvDownstreamTOms, "900")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvLogSource, "1")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Editor.Template != "webtoon" || cfg.Editor.Guides {
		t.Fatalf("editor overrides: %#v", cfg.Editor)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Downstream.TimeoutMs != 900 {
		t.Fatalf("storage/downstream overrides: %#v %#v", cfg.Storage, cfg.Downstream)
	}
	opts := cfg.LogOptions()
	if opts.Level != "debug" || !opts.AddSource {
		t.Fatalf("log options: %#v", opts)
	}
	if env, ok := EnvOverrideFor("editor.template"); !ok || env != EnvTemplate {
		t.Fatalf("EnvOverrideFor(editor.template) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("server.addr"); ok {
		t.Fatalf("server.addr should not be overridden")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " Debug "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/nd.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/nd.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestDeleteTokenMissingIsNoError(t *testing.T) {
	isolate(t)
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	tok, err := Token()
	if err != nil || tok != "" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
}

func TestSQLitePathDefaultsIntoDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	p, err := Defaults().SQLitePath()
	if err != nil {
		t.Fatalf("SQLitePath: %v", err)
	}
	if filepath.Base(p) != "namedraft.db" {
		t.Fatalf("unexpected db path %q", p)
	}
}
