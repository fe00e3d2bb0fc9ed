/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"image/png"
	"testing"

	"namedraft/internal/geom"
	"namedraft/internal/presets"
	"namedraft/internal/scene"
)

func sample(t *testing.T) (*scene.Model, scene.Character, scene.Bubble) {
	t.Helper()
	m := scene.New(presets.Default())
	if err := m.LoadTemplate("4koma"); err != nil {
		t.Fatal(err)
	}
	c, err := m.AddCharacter(1, "hero")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.AddBubble(1, "speech", "Hi")
	if err != nil {
		t.Fatal(err)
	}
	return m, c, b
}

func TestBuildPanelsAndGuides(t *testing.T) {
	m, _, _ := sample(t)
	_ = m.SelectPanel(2)
	f := Build(m, Options{Guides: true})
	if f.Width != 600 || f.Height != 840 || f.Page != 1 {
		t.Fatalf("frame header = %vx%v page %d", f.Width, f.Height, f.Page)
	}
	if len(f.Panels) != 4 || len(f.Guides) != 16 {
		t.Fatalf("panels=%d guides=%d", len(f.Panels), len(f.Guides))
	}
	for _, p := range f.Panels {
		if p.Selected != (p.ID == 2) {
			t.Fatalf("panel %d selected=%v", p.ID, p.Selected)
		}
		if p.Selected && p.Stroke != Highlight {
			t.Fatalf("selected panel not highlighted")
		}
	}
	if g := Build(m, Options{}); len(g.Guides) != 0 {
		t.Fatalf("guides drawn while disabled")
	}
	if f.Revision != m.Revision() {
		t.Fatalf("frame revision mismatch")
	}
}

func TestBuildOverlaysUseHitBoxes(t *testing.T) {
	m, c, b := sample(t)
	_ = m.SetCharacterRotation(c.ID, 30)
	_ = m.SelectCharacter(c.ID)
	f := Build(m, Options{})
	if len(f.Overlays) != 2 {
		t.Fatalf("overlays = %d", len(f.Overlays))
	}
	p, _ := m.Panel(1)
	cur, _ := m.Character(c.ID)
	for _, o := range f.Overlays {
		switch o.ID {
		case c.ID:
			if o.Box != cur.Box(p) || o.Rotation != 30 || !o.Selected || o.Label != "Hero" {
				t.Fatalf("character overlay = %+v", o)
			}
			if o.Transform == geom.Identity {
				t.Fatalf("rotation should give a non-identity transform")
			}
		case b.ID:
			if o.Box != b.Box(p) || o.Shape != ShapeEllipse || o.Selected {
				t.Fatalf("bubble overlay = %+v", o)
			}
		default:
			t.Fatalf("unexpected overlay %q", o.ID)
		}
	}
	if len(f.Handles) != 4 {
		t.Fatalf("selected character should show 4 handles, got %d", len(f.Handles))
	}
}

func TestBuildSkipsOrphans(t *testing.T) {
	m, _, _ := sample(t)
	s := m.Snapshot()
	s.Characters = append(s.Characters, scene.Character{ID: "ghost", PanelID: 12, X: 0.5, Y: 0.5, Scale: 1})
	s.Bubbles = append(s.Bubbles, scene.Bubble{ID: "lost", PanelID: 12, Type: "speech", Text: "?", X: 0.5, Y: 0.5, Scale: 1, Width: 60, Height: 40})
	if err := m.Restore(s); err != nil {
		t.Fatal(err)
	}
	f := Build(m, Options{})
	for _, o := range f.Overlays {
		if o.ID == "ghost" || o.ID == "lost" {
			t.Fatalf("orphan %q rendered", o.ID)
		}
	}
	if len(f.Overlays) != 2 {
		t.Fatalf("overlays = %d", len(f.Overlays))
	}
}

func TestPNGRasterises(t *testing.T) {
	m, _, _ := sample(t)
	_, _ = m.AddBubble(2, scene.Narration, "")
	_, _ = m.AddBubble(3, "shout", "NO!")
	_, _ = m.AddBubble(3, "whisper", "psst")
	var buf bytes.Buffer
	if err := PNG(&buf, Build(m, Options{Guides: true})); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 840 {
		t.Fatalf("image size = %v", b)
	}
	r, g, bl, _ := img.At(10, 10).RGBA()
	if r>>8 != uint32(Paper.R) || g>>8 != uint32(Paper.G) || bl>>8 != uint32(Paper.B) {
		t.Fatalf("background pixel = %d,%d,%d", r>>8, g>>8, bl>>8)
	}
	r, g, bl, _ = img.At(80, 700).RGBA()
	if r>>8 != 255 || g>>8 != 255 || bl>>8 != 255 {
		t.Fatalf("panel interior pixel = %d,%d,%d", r>>8, g>>8, bl>>8)
	}
}

func TestPNGRejectsEmptyCanvas(t *testing.T) {
	if err := PNG(&bytes.Buffer{}, Frame{}); err == nil {
		t.Fatalf("expected error for empty frame")
	}
}

func TestPDFWritesDocument(t *testing.T) {
	m, c, _ := sample(t)
	_ = m.ToggleCharacterFlip(c.ID)
	var buf bytes.Buffer
	if err := PDF(&buf, Build(m, Options{Guides: true})); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
	if err := PDF(&bytes.Buffer{}, Frame{}); err == nil {
		t.Fatalf("expected error for empty frame")
	}
}

func TestBlend(t *testing.T) {
	if got := blend(White, Color{0, 0, 0, 255}); got != (Color{0, 0, 0, 255}) {
		t.Fatalf("opaque blend = %+v", got)
	}
	if got := blend(White, Transparent); got != White {
		t.Fatalf("transparent blend = %+v", got)
	}
}
