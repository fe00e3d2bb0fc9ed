/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"namedraft/internal/backend"
	"namedraft/internal/geom"
	"namedraft/internal/interact"
	applog "namedraft/internal/log"
	"namedraft/internal/presets"
	"namedraft/internal/scene"
	"namedraft/internal/storage"
)

type stubPublisher struct {
	name string
	doc  []byte
}

func (p *stubPublisher) Publish(_ context.Context, name string, doc []byte) (backend.Receipt, error) {
	p.name, p.doc = name, doc
	return backend.Receipt{Name: name, Bytes: len(doc)}, nil
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = func(string) error { return errors.New("no clipboard in tests") }
	}
	if opts.ExportDir == "" {
		opts.ExportDir = t.TempDir()
	}
	return New(presets.Default(), opts)
}

func run(t *testing.T, s *Session, name string, kv ...string) Result {
	t.Helper()
	res, err := s.Dispatch(context.Background(), cmd(name, kv...))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func cmd(name string, kv ...string) Command {
	a := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		a[kv[i]] = kv[i+1]
	}
	return Command{Name: name, Args: a}
}

func TestAddCharacterNeedsSelectedPanel(t *testing.T) {
	s := newSession(t, Options{})
	run(t, s, "template", "name", "4koma")
	_, err := s.Dispatch(context.Background(), cmd("add-character", "type", "hero"))
	var ve *scene.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Reason, "select a panel first") {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, c := range []Command{
		cmd("add-character", "panel", "1", "type", "hero"),
		cmd("add-bubble", "panel", "2", "text", "Hi"),
	} {
		if _, err := s.Dispatch(context.Background(), c); !scene.IsValidation(err) {
			t.Fatalf("%s with panel arg and no selection: got %v", c.Name, err)
		}
	}
	if len(s.Model().Characters()) != 0 || len(s.Model().Bubbles()) != 0 {
		t.Fatal("nothing should have been added")
	}
	run(t, s, "select", "kind", "panel", "id", "1")
	if _, err := s.Dispatch(context.Background(), cmd("add-character", "panel", "3")); !scene.IsValidation(err) {
		t.Fatalf("panel arg other than the selection: got %v", err)
	}
	res := run(t, s, "add-character", "type", "hero")
	if res.Notice != "added Hero" {
		t.Fatalf("notice %q", res.Notice)
	}
	cs := s.Model().Characters()
	if len(cs) != 1 || cs[0].PanelID != 1 {
		t.Fatalf("unexpected characters %+v", cs)
	}
}

func TestAddBubbleReadsPendingText(t *testing.T) {
	s := newSession(t, Options{})
	run(t, s, "template", "name", "4koma")
	run(t, s, "select", "kind", "panel", "id", "2")

	if _, err := s.Dispatch(context.Background(), cmd("add-bubble")); !scene.IsValidation(err) {
		t.Fatalf("empty pending text must be rejected, got %v", err)
	}
	s.SetPendingText("Hi")
	run(t, s, "add-bubble")
	bs := s.Model().Bubbles()
	if len(bs) != 1 || bs[0].Text != "Hi" || bs[0].Width != 60 || bs[0].PanelID != 2 {
		t.Fatalf("unexpected bubbles %+v", bs)
	}
	if s.PendingText() != "" {
		t.Fatal("pending text should be consumed")
	}
	run(t, s, "add-bubble", "type", "narration", "text", "")
	if len(s.Model().Bubbles()) != 2 {
		t.Fatal("narration without text should be accepted")
	}
}

func TestLookupErrorsAreNoOps(t *testing.T) {
	s := newSession(t, Options{})
	run(t, s, "template", "name", "4koma")
	before := s.Model().Panels()
	res := run(t, s, "template", "name", "unknown")
	if res.Notice != "" || res.Files != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := s.Model().Panels(); len(got) != len(before) || s.Model().TemplateName() != "4koma" {
		t.Fatalf("unknown template changed state")
	}
	run(t, s, "apply-layout", "layout", "nope", "panel", "1")
	if len(s.Model().Characters()) != 0 {
		t.Fatal("unknown layout must not add characters")
	}
}

func TestUnknownCommand(t *testing.T) {
	s := newSession(t, Options{})
	_, err := s.Dispatch(context.Background(), Command{Name: "frobnicate"})
	if !errors.Is(err, ErrUnknownCommand) || !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("got %v", err)
	}
}

func TestSceneAndLayoutCommands(t *testing.T) {
	s := newSession(t, Options{})
	res := run(t, s, "scene", "type", "dialogue")
	if !strings.Contains(res.Notice, "4koma") || s.Model().SceneType() != "dialogue" {
		t.Fatalf("scene not applied: %+v", res)
	}
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "apply-layout", "layout", "dialogue")
	run(t, s, "apply-layout", "layout", "dialogue")
	if n := len(s.Model().Characters()); n != 2 {
		t.Fatalf("layout should replace, got %d characters", n)
	}
	s.SetPendingText("one")
	run(t, s, "add-bubble")
	s.SetPendingText("two")
	run(t, s, "add-bubble")
	run(t, s, "auto-place")
	cs, bs := s.Model().Characters(), s.Model().Bubbles()
	if bs[0].X != cs[0].X || bs[1].X != cs[1].X {
		t.Fatalf("bubbles not placed above characters: %+v %+v", cs, bs)
	}
}

func TestPoseRotateFlipAndDelete(t *testing.T) {
	s := newSession(t, Options{})
	run(t, s, "template", "name", "4koma")
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "add-character", "type", "rival")
	id := s.Model().Characters()[0].ID

	if _, err := s.Dispatch(context.Background(), cmd("flip")); !scene.IsValidation(err) {
		t.Fatalf("flip without selection should be rejected, got %v", err)
	}
	run(t, s, "select", "kind", "character", "id", id)
	run(t, s, "set-pose", "x", "2", "scale", "1.5")
	run(t, s, "rotate", "deg", "190")
	run(t, s, "flip")
	c, _ := s.Model().Character(id)
	if c.X != 1 || c.Y != 0.6 || c.Scale != 1.5 || c.Rotation != -170 || !c.Flip {
		t.Fatalf("unexpected character %+v", c)
	}
	if _, err := s.Dispatch(context.Background(), cmd("set-pose", "x", "abc")); !scene.IsValidation(err) {
		t.Fatalf("bad number should be rejected, got %v", err)
	}

	run(t, s, "delete")
	if len(s.Model().Characters()) != 0 {
		t.Fatal("character not deleted")
	}
	if _, _, ok := s.Model().SelectedElement(); ok {
		t.Fatal("selection should be cleared")
	}
}

func TestToggleGuides(t *testing.T) {
	s := newSession(t, Options{Guides: true})
	run(t, s, "template", "name", "4koma")
	if len(s.Frame().Guides) == 0 {
		t.Fatal("guides expected")
	}
	run(t, s, "toggle-guides")
	if s.Guides() || len(s.Frame().Guides) != 0 {
		t.Fatal("guides should be off")
	}
}

func TestSaveLoadThroughStore(t *testing.T) {
	st, err := storage.OpenSQLite(filepath.Join(t.TempDir(), storage.DBFileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	s := newSession(t, Options{Store: st})
	run(t, s, "template", "name", "3koma")
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "add-character", "type", "hero")
	run(t, s, "save")
	want := s.Model().Snapshot()

	run(t, s, "template", "name", "4koma")
	res := run(t, s, "load")
	if res.Notice != "loaded page 1" {
		t.Fatalf("notice %q", res.Notice)
	}
	got := s.Model().Snapshot()
	if got.Template != "3koma" || len(got.Characters) != 1 || got.Characters[0] != want.Characters[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveWithoutStore(t *testing.T) {
	s := newSession(t, Options{})
	if _, err := s.Dispatch(context.Background(), Command{Name: "save"}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("got %v", err)
	}
}

func TestExportAllWritesEveryVariant(t *testing.T) {
	dir := t.TempDir()
	s := newSession(t, Options{ExportDir: dir})
	run(t, s, "template", "name", "4koma")
	run(t, s, "page", "n", "3")
	res := run(t, s, "export-all")
	if len(res.Files) != 4 {
		t.Fatalf("files %v", res.Files)
	}
	for _, name := range []string{"name_project_page3.json", "name_downstream_page3.json", "name_page3.png", "name_page3.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	res = run(t, s, "load", "file", filepath.Join(dir, "name_project_page3.json"))
	if res.Notice != "loaded page 3" {
		t.Fatalf("notice %q", res.Notice)
	}
}

func TestCopyJSONAndPublish(t *testing.T) {
	var copied string
	pub := &stubPublisher{}
	s := newSession(t, Options{Publisher: pub, Clipboard: func(s string) error { copied = s; return nil }})
	run(t, s, "scene", "type", "action")
	run(t, s, "copy-json")
	var doc map[string]any
	if err := json.Unmarshal([]byte(copied), &doc); err != nil {
		t.Fatalf("clipboard is not JSON: %v", err)
	}
	if _, ok := doc["canvas"]; !ok {
		t.Fatalf("downstream JSON lacks canvas: %v", doc)
	}
	res := run(t, s, "publish")
	if pub.name != "name_project_page1" || len(pub.doc) == 0 || !strings.Contains(res.Notice, "published") {
		t.Fatalf("publish not forwarded: %+v %q", pub, res.Notice)
	}
}

func TestShortcuts(t *testing.T) {
	s := newSession(t, Options{})
	ctx := context.Background()
	if _, err := s.Key(ctx, "ctrl+s"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("ctrl+s should save, got %v", err)
	}
	if _, err := s.Key(ctx, "delete"); err != nil {
		t.Fatalf("delete without selection should be quiet, got %v", err)
	}
	if _, err := s.Key(ctx, "f13"); err != nil {
		t.Fatalf("unbound key: %v", err)
	}
	run(t, s, "template", "name", "4koma")
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "add-character")
	run(t, s, "select", "kind", "character", "id", s.Model().Characters()[0].ID)
	if _, err := s.Key(ctx, "backspace"); err != nil {
		t.Fatalf("backspace: %v", err)
	}
	if len(s.Model().Characters()) != 0 {
		t.Fatal("backspace should delete the selection")
	}
}

func TestDispatchEndsActiveGesture(t *testing.T) {
	s := newSession(t, Options{})
	run(t, s, "template", "name", "4koma")
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "add-character")
	c := s.Model().Characters()[0]
	p, _ := s.Model().Panel(1)
	anchor := geom.ToAbsolute(p.Rect(), c.X, c.Y)
	s.Controller().PointerDown(anchor)
	if !s.Controller().Active() {
		t.Fatal("drag should be active")
	}
	run(t, s, "toggle-guides")
	if s.Controller().Active() {
		t.Fatal("dispatch should end the gesture")
	}
}

func TestCommandsListed(t *testing.T) {
	names := Commands()
	for _, want := range []string{"add-bubble", "copy-json", "export-all", "publish", "save", "template"} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Fatalf("%s missing from %v", want, names)
		}
	}
}

func TestInputLockHeldOnlyDuringResize(t *testing.T) {
	lock := &interact.ExclusiveLock{}
	s := newSession(t, Options{InputLock: lock})
	run(t, s, "template", "name", "4koma")
	run(t, s, "select", "kind", "panel", "id", "1")
	run(t, s, "add-character")
	c := s.Model().Characters()[0]

	if err := s.Controller().HandleDown(c.ID, geom.TopLeft, geom.Pt{X: 5, Y: 5}); err != nil {
		t.Fatalf("handle down: %v", err)
	}
	if !lock.Held() {
		t.Fatal("resize should hold the session's input lock")
	}
	run(t, s, "toggle-guides")
	if lock.Held() || s.Controller().Active() {
		t.Fatal("a command must end the gesture and release the lock")
	}
}
