/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"namedraft/internal/presets"
	"namedraft/internal/scene"
)

func populated(t *testing.T) *scene.Model {
	t.Helper()
	m := scene.New(presets.Default())
	if _, err := m.SetScene("dialogue"); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyLayout(1, "dialogue"); err != nil {
		t.Fatal(err)
	}
	c, _ := m.AddCharacter(2, "elder")
	_ = m.SetCharacterRotation(c.ID, 12.5)
	_, _ = m.AddBubble(1, "speech", "Where were you?")
	_, _ = m.AddBubble(1, scene.Narration, "")
	_ = m.AutoPlaceBubbles(1)
	_ = m.SetPage(3)
	return m
}

func TestRoundTripReproducesModel(t *testing.T) {
	src := populated(t)
	data, err := Marshal(Export(src))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dst := scene.New(presets.Default())
	if err := Apply(dst, doc); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(src.Snapshot(), dst.Snapshot()) {
		t.Fatalf("round trip mismatch:\n src=%+v\n dst=%+v", src.Snapshot(), dst.Snapshot())
	}
}

func TestExportFields(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	m := populated(t)
	data, _ := Marshal(Export(m))
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"panels", "characters", "speechBubbles", "currentPage", "currentScene", "metadata"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("export lacks %q", k)
		}
	}
	meta := raw["metadata"].(map[string]any)
	if meta["version"] != FormatVersion || meta["created"] != "2025-03-01T12:00:00Z" {
		t.Fatalf("metadata = %v", meta)
	}
	if raw["currentPage"] != float64(3) || raw["currentScene"] != "dialogue" {
		t.Fatalf("page/scene = %v %v", raw["currentPage"], raw["currentScene"])
	}
}

func TestEmptyModelExportsArrays(t *testing.T) {
	data, _ := Marshal(Export(scene.New(presets.Default())))
	if !strings.Contains(string(data), `"panels": []`) || !strings.Contains(string(data), `"speechBubbles": []`) {
		t.Fatalf("empty collections should encode as []: %s", data)
	}
	if err := Validate(data); err != nil {
		t.Fatalf("empty export should validate: %v", err)
	}
}

func TestDownstreamShape(t *testing.T) {
	m := populated(t)
	d := ExportDownstream(m)
	if d.Canvas.Width != 600 || d.Canvas.Height != 840 {
		t.Fatalf("canvas = %+v", d.Canvas)
	}
	if d.Scene.Type != "dialogue" || d.Scene.Page != 3 || d.Scene.Template != "4koma" || d.Scene.Layout != "dialogue" || d.Scene.Camera == "" {
		t.Fatalf("scene = %+v", d.Scene)
	}
	if !strings.HasPrefix(d.Metadata.Generator, "namedraft ") {
		t.Fatalf("generator = %q", d.Metadata.Generator)
	}
	if len(d.Characters) != 3 || len(d.SpeechBubbles) != 2 || len(d.Panels) != 4 {
		t.Fatalf("entity counts: %d %d %d", len(d.Characters), len(d.SpeechBubbles), len(d.Panels))
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := []string{
		`{"characters": [], "speechBubbles": []}`,
		`{"panels": [{"id": 1, "x": 0, "y": 0, "width": 0, "height": 10}], "characters": [], "speechBubbles": []}`,
		`{"panels": [], "characters": [{"id": "", "panelId": 1, "x": 0, "y": 0, "scale": 1}], "speechBubbles": []}`,
		`{"panels": [], "characters": [], "speechBubbles": [{"id": "b", "panelId": 1, "x": 0, "y": 0, "scale": 1, "width": 60, "height": 40}]}`,
		`{"panels": "nope", "characters": [], "speechBubbles": []}`,
	}
	for _, src := range cases {
		_, err := Decode(strings.NewReader(src))
		var se *SchemaError
		if !errors.As(err, &se) || len(se.Problems) == 0 {
			t.Fatalf("expected schema error for %s, got %v", src, err)
		}
	}
	if _, err := Decode(strings.NewReader("{not json")); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestDecodeDefaultsPage(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"panels": [], "characters": [], "speechBubbles": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.CurrentPage != 1 {
		t.Fatalf("page = %d", doc.CurrentPage)
	}
}

func TestApplyRejectsDuplicateIDs(t *testing.T) {
	doc := Document{
		Panels:     []scene.Panel{{ID: 1, Width: 10, Height: 10}},
		Characters: []scene.Character{{ID: "x", PanelID: 1, Scale: 1}, {ID: "x", PanelID: 1, Scale: 1}},
	}
	m := scene.New(presets.Default())
	if err := Apply(m, doc); !scene.IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestFileNames(t *testing.T) {
	if ProjectFileName(2) != "name_project_page2.json" || PNGFileName(2) != "name_page2.png" || PDFFileName(7) != "name_page7.pdf" {
		t.Fatalf("file names: %s %s %s", ProjectFileName(2), PNGFileName(2), PDFFileName(7))
	}
}

func TestCreatedSurvivesLoadAndSave(t *testing.T) {
	created := time.Date(2024, 11, 5, 8, 30, 0, 0, time.UTC)
	now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	doc := Document{
		Panels:   []scene.Panel{{ID: 1, Width: 100, Height: 100}},
		Metadata: Metadata{Created: created, Version: FormatVersion},
	}
	m := scene.New(presets.Default())
	if err := Apply(m, doc); err != nil {
		t.Fatal(err)
	}
	if got := Export(m).Metadata.Created; !got.Equal(created) {
		t.Fatalf("created = %v, want %v", got, created)
	}
	if got := ExportDownstream(m).Metadata.Created; !got.Equal(created) {
		t.Fatalf("downstream created = %v, want %v", got, created)
	}

	fresh := scene.New(presets.Default())
	first := Export(fresh).Metadata.Created
	now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if again := Export(fresh).Metadata.Created; !again.Equal(first) {
		t.Fatalf("re-export moved created from %v to %v", first, again)
	}
}
