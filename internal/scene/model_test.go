/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"math"
	"reflect"
	"testing"

	"namedraft/internal/geom"
	"namedraft/internal/presets"
)

const tol = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < tol }

func newModel(t *testing.T, template string) *Model {
	t.Helper()
	m := New(presets.Default())
	if err := m.LoadTemplate(template); err != nil {
		t.Fatalf("LoadTemplate(%q): %v", template, err)
	}
	return m
}

func TestLoad4komaAndAddCharacter(t *testing.T) {
	m := newModel(t, "4koma")
	panels := m.Panels()
	if len(panels) != 4 {
		t.Fatalf("want 4 panels, got %d", len(panels))
	}
	for i, p := range panels {
		if p.ID != i+1 {
			t.Fatalf("panel %d id = %d", i, p.ID)
		}
	}
	if r := panels[0].Rect(); r != geom.R(50, 50, 500, 170) {
		t.Fatalf("first panel = %+v", r)
	}

	if err := m.SelectPanel(1); err != nil {
		t.Fatalf("SelectPanel: %v", err)
	}
	c, err := m.AddCharacter(m.SelectedPanel(), "hero")
	if err != nil {
		t.Fatalf("AddCharacter: %v", err)
	}
	if c.PanelID != 1 || c.X != 0.5 || c.Y != 0.6 || c.Scale != 0.8 {
		t.Fatalf("unexpected character: %+v", c)
	}
	if c.ID == "" || c.Name != "Hero" {
		t.Fatalf("id/name not set: %+v", c)
	}
	if got := m.Characters(); len(got) != 1 {
		t.Fatalf("want 1 character, got %d", len(got))
	}

	anchor := geom.ToAbsolute(panels[0].Rect(), c.X, c.Y)
	hit, ok := m.CharacterAt(anchor)
	if !ok || hit.ID != c.ID {
		t.Fatalf("CharacterAt(anchor) = %+v, %v", hit, ok)
	}
}

func TestAddCharacterPreconditions(t *testing.T) {
	m := newModel(t, "4koma")
	rev := m.Revision()
	_, err := m.AddCharacter(m.SelectedPanel(), "hero")
	if !IsValidation(err) {
		t.Fatalf("want ValidationError without selection, got %v", err)
	}
	_, err = m.AddCharacter(42, "hero")
	if !IsLookup(err) {
		t.Fatalf("want LookupError for missing panel, got %v", err)
	}
	if len(m.Characters()) != 0 || m.Revision() != rev {
		t.Fatalf("failed adds must not mutate")
	}
}

func TestAddBubbleWidth(t *testing.T) {
	m := newModel(t, "4koma")
	_ = m.SelectPanel(1)
	b, err := m.AddBubble(m.SelectedPanel(), "speech", "Hi")
	if err != nil {
		t.Fatalf("AddBubble: %v", err)
	}
	if b.Width != 60 || b.Height != 40 {
		t.Fatalf("bubble size = %vx%v", b.Width, b.Height)
	}
	if b.X != 0.5 || b.Y != 0.3 || b.Scale != 1 {
		t.Fatalf("bubble pose = %+v", b)
	}
	long, _ := m.AddBubble(1, "speech", "Hello there friend")
	if long.Width != 18*8+20 {
		t.Fatalf("long width = %v", long.Width)
	}
	if w := BubbleWidth("ありがとうございます"); w != 10*8+20 {
		t.Fatalf("width counts runes, got %v", w)
	}
}

func TestAddBubbleEmptyText(t *testing.T) {
	m := newModel(t, "4koma")
	if _, err := m.AddBubble(1, "speech", "   "); !IsValidation(err) {
		t.Fatalf("want ValidationError for blank speech, got %v", err)
	}
	if len(m.Bubbles()) != 0 {
		t.Fatalf("rejected bubble was stored")
	}
	b, err := m.AddBubble(1, Narration, "")
	if err != nil {
		t.Fatalf("narration without text should pass: %v", err)
	}
	if b.Width != 60 {
		t.Fatalf("narration width = %v", b.Width)
	}
	if _, err := m.AddBubble(0, "speech", "Hi"); !IsValidation(err) {
		t.Fatalf("want ValidationError without panel, got %v", err)
	}
}

func TestAutoPlaceAboveCharacters(t *testing.T) {
	m := newModel(t, "4koma")
	c0, _ := m.AddCharacter(1, "hero")
	c1, _ := m.AddCharacter(1, "heroine")
	_ = m.SetCharacterPose(c0.ID, 0.3, 0.4, 0.8)
	_ = m.SetCharacterPose(c1.ID, 0.7, 0.7, 0.8)
	b0, _ := m.AddBubble(1, "speech", "Hey")
	b1, _ := m.AddBubble(1, "speech", "Yo")
	other, _ := m.AddBubble(2, "speech", "elsewhere")

	if err := m.AutoPlaceBubbles(1); err != nil {
		t.Fatalf("AutoPlaceBubbles: %v", err)
	}
	got0, _ := m.Bubble(b0.ID)
	got1, _ := m.Bubble(b1.ID)
	if !near(got0.X, 0.3) || !near(got0.Y, 0.1) {
		t.Fatalf("bubble0 = (%v,%v)", got0.X, got0.Y)
	}
	if !near(got1.X, 0.7) || !near(got1.Y, 0.4) {
		t.Fatalf("bubble1 = (%v,%v)", got1.X, got1.Y)
	}
	if o, _ := m.Bubble(other.ID); o.X != other.X || o.Y != other.Y {
		t.Fatalf("bubble in another panel moved")
	}
}

func TestAutoPlaceWrapsAndFloors(t *testing.T) {
	m := newModel(t, "single")
	c, _ := m.AddCharacter(1, "hero")
	_ = m.SetCharacterPose(c.ID, 0.2, 0.1, 1)
	var ids []string
	for _, txt := range []string{"a", "b", "c"} {
		b, _ := m.AddBubble(1, "speech", txt)
		ids = append(ids, b.ID)
	}
	_ = m.AutoPlaceBubbles(1)
	for _, id := range ids {
		b, _ := m.Bubble(id)
		if !near(b.X, 0.2) || !near(b.Y, 0.1) {
			t.Fatalf("bubble %s = (%v,%v), want (0.2,0.1)", id, b.X, b.Y)
		}
	}
}

func TestAutoPlaceWithoutCharacters(t *testing.T) {
	m := newModel(t, "single")
	var ids []string
	for _, txt := range []string{"a", "b", "c", "d"} {
		b, _ := m.AddBubble(1, "speech", txt)
		ids = append(ids, b.ID)
	}
	_ = m.AutoPlaceBubbles(1)
	want := []float64{0.2, 0.5, 0.8, 1}
	for i, id := range ids {
		b, _ := m.Bubble(id)
		if !near(b.X, want[i]) || b.Y != 0.2 {
			t.Fatalf("bubble %d = (%v,%v), want (%v,0.2)", i, b.X, b.Y, want[i])
		}
	}
	if err := m.AutoPlaceBubbles(9); !IsLookup(err) {
		t.Fatalf("want LookupError for missing panel, got %v", err)
	}
}

func TestUnknownTemplateIsNoOp(t *testing.T) {
	m := newModel(t, "4koma")
	_, _ = m.AddCharacter(1, "hero")
	_, _ = m.AddBubble(2, "speech", "Hi")
	_ = m.SelectPanel(3)
	before := m.Snapshot()
	sel := m.Selection()
	rev := m.Revision()

	err := m.LoadTemplate("unknown")
	if !IsLookup(err) {
		t.Fatalf("want LookupError, got %v", err)
	}
	if !reflect.DeepEqual(before, m.Snapshot()) || m.Selection() != sel || m.Revision() != rev {
		t.Fatalf("state changed on unknown template")
	}
}

func TestLoadTemplateClearsEntities(t *testing.T) {
	m := newModel(t, "4koma")
	_, _ = m.AddCharacter(1, "hero")
	_, _ = m.AddBubble(1, "speech", "Hi")
	_ = m.SelectPanel(1)
	if err := m.LoadTemplate("2split"); err != nil {
		t.Fatal(err)
	}
	if len(m.Panels()) != 2 || len(m.Characters()) != 0 || len(m.Bubbles()) != 0 {
		t.Fatalf("template reload did not replace everything")
	}
	if m.Selection().Kind != KindNone || m.TemplateName() != "2split" {
		t.Fatalf("selection/template after reload: %+v %q", m.Selection(), m.TemplateName())
	}
}

func TestApplyLayoutIsReplace(t *testing.T) {
	m := newModel(t, "4koma")
	_, _ = m.AddCharacter(1, "mob")
	keep, _ := m.AddCharacter(2, "hero")
	layout, _ := presets.Default().Layout("trio")

	for round := 0; round < 2; round++ {
		if err := m.ApplyLayout(1, "trio"); err != nil {
			t.Fatalf("ApplyLayout round %d: %v", round, err)
		}
		var inPanel []Character
		for _, c := range m.Characters() {
			if c.PanelID == 1 {
				inPanel = append(inPanel, c)
			}
		}
		if len(inPanel) != len(layout) {
			t.Fatalf("round %d: %d characters, want %d", round, len(inPanel), len(layout))
		}
		for i, c := range inPanel {
			e := layout[i]
			if c.Type != e.Type || c.X != e.X || c.Y != e.Y || c.Scale != e.Scale || c.Flip != e.Flip {
				t.Fatalf("entry %d = %+v, want %+v", i, c, e)
			}
		}
	}
	if _, ok := m.Character(keep.ID); !ok {
		t.Fatalf("character in another panel removed")
	}
}

func TestApplyLayoutUnknownLeavesPanel(t *testing.T) {
	m := newModel(t, "4koma")
	c, _ := m.AddCharacter(1, "hero")
	if err := m.ApplyLayout(1, "nope"); !IsLookup(err) {
		t.Fatalf("want LookupError, got %v", err)
	}
	if err := m.ApplyLayout(99, "solo"); !IsLookup(err) {
		t.Fatalf("want LookupError for panel, got %v", err)
	}
	if _, ok := m.Character(c.ID); !ok || len(m.Characters()) != 1 {
		t.Fatalf("failed layout mutated the panel")
	}
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	m := newModel(t, "4koma")
	c, _ := m.AddCharacter(1, "hero")
	b, _ := m.AddBubble(1, "speech", "Hi")

	_ = m.SelectCharacter(c.ID)
	if err := m.DeleteSelected(); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if _, _, ok := m.SelectedElement(); ok {
		t.Fatalf("selected element not cleared")
	}
	if _, ok := m.Character(c.ID); ok {
		t.Fatalf("character not removed")
	}

	_ = m.SelectBubble(b.ID)
	_ = m.DeleteSelected()
	if len(m.Bubbles()) != 0 || m.Selection().Kind != KindNone {
		t.Fatalf("bubble delete failed")
	}

	if err := m.DeleteSelected(); !IsValidation(err) {
		t.Fatalf("want ValidationError with nothing selected, got %v", err)
	}
}

func TestDeleteUnselectedKeepsSelection(t *testing.T) {
	m := newModel(t, "4koma")
	c0, _ := m.AddCharacter(1, "hero")
	c1, _ := m.AddCharacter(1, "rival")
	_ = m.SelectCharacter(c0.ID)
	if err := m.DeleteCharacter(c1.ID); err != nil {
		t.Fatal(err)
	}
	k, id, ok := m.SelectedElement()
	if !ok || k != KindCharacter || id != c0.ID {
		t.Fatalf("selection changed: %v %v %v", k, id, ok)
	}
	if err := m.DeleteBubble("ghost"); !IsLookup(err) {
		t.Fatalf("want LookupError, got %v", err)
	}
}

func TestSelectionIsExclusive(t *testing.T) {
	m := newModel(t, "4koma")
	c, _ := m.AddCharacter(1, "hero")
	b, _ := m.AddBubble(1, "speech", "Hi")

	_ = m.SelectPanel(2)
	_ = m.SelectCharacter(c.ID)
	if m.SelectedPanel() != 0 {
		t.Fatalf("panel still selected after character selection")
	}
	_ = m.SelectBubble(b.ID)
	if k, id, _ := m.SelectedElement(); k != KindBubble || id != b.ID {
		t.Fatalf("bubble selection = %v %v", k, id)
	}
	_ = m.SelectPanel(1)
	if _, _, ok := m.SelectedElement(); ok || m.SelectedPanel() != 1 {
		t.Fatalf("panel selection did not replace element")
	}
	if err := m.SelectPanel(77); !IsLookup(err) || m.SelectedPanel() != 1 {
		t.Fatalf("unknown panel should not change selection")
	}
}

func TestNumericControlsClamp(t *testing.T) {
	m := newModel(t, "4koma")
	c, _ := m.AddCharacter(1, "hero")
	_ = m.SetCharacterPose(c.ID, -1, 3, 40)
	got, _ := m.Character(c.ID)
	if got.X != 0 || got.Y != 1 || got.Scale != geom.MaxScale {
		t.Fatalf("pose not clamped: %+v", got)
	}
	_ = m.SetCharacterRotation(c.ID, 270)
	_ = m.ToggleCharacterFlip(c.ID)
	got, _ = m.Character(c.ID)
	if got.Rotation != -90 || !got.Flip {
		t.Fatalf("rotation/flip = %v %v", got.Rotation, got.Flip)
	}
	if err := m.SetCharacterRotation(c.ID, math.NaN()); !IsValidation(err) {
		t.Fatalf("NaN rotation accepted")
	}

	b, _ := m.AddBubble(1, "speech", "Hi")
	_ = m.SetBubblePose(b.ID, 0.25, 1.5, 0)
	bb, _ := m.Bubble(b.ID)
	if bb.X != 0.25 || bb.Y != 1 || bb.Scale != geom.MinScale {
		t.Fatalf("bubble pose = %+v", bb)
	}
	if err := m.SetBubbleText(b.ID, "A much longer line"); err != nil {
		t.Fatal(err)
	}
	bb, _ = m.Bubble(b.ID)
	if bb.Width != 18*8+20 {
		t.Fatalf("width not recomputed: %v", bb.Width)
	}
	if err := m.SetBubbleText(b.ID, ""); !IsValidation(err) {
		t.Fatalf("empty speech text accepted")
	}
}

func TestMoveElementClamps(t *testing.T) {
	m := newModel(t, "4koma")
	b, _ := m.AddBubble(1, "speech", "Hi")
	if err := m.MoveElement(KindBubble, b.ID, 1.7, -0.2); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Bubble(b.ID)
	if got.X != 1 || got.Y != 0 {
		t.Fatalf("move not clamped: %+v", got)
	}
	if err := m.MoveElement(KindPanel, "1", 0, 0); !IsValidation(err) {
		t.Fatalf("panels must not move through MoveElement")
	}
}

func TestResizePanel(t *testing.T) {
	m := newModel(t, "4koma")
	if err := m.ResizePanel(2, geom.R(10, 10, 100, 50)); err != nil {
		t.Fatal(err)
	}
	p, _ := m.Panel(2)
	if p.Rect() != geom.R(10, 10, 100, 50) {
		t.Fatalf("panel = %+v", p)
	}
	if err := m.ResizePanel(2, geom.R(0, 0, 0, 10)); !IsValidation(err) {
		t.Fatalf("zero width accepted")
	}
}

func TestSetSceneLoadsRecommendedTemplate(t *testing.T) {
	m := New(presets.Default())
	rec, err := m.SetScene("action")
	if err != nil {
		t.Fatal(err)
	}
	if m.TemplateName() != rec.Template || m.SceneType() != "action" || len(m.Panels()) == 0 {
		t.Fatalf("scene not applied: %q %q", m.TemplateName(), m.SceneType())
	}
	if _, err := m.SetScene("opera"); !IsLookup(err) || m.SceneType() != "action" {
		t.Fatalf("unknown scene should be a no-op")
	}
}

func TestRestoreRejectsDuplicates(t *testing.T) {
	m := newModel(t, "4koma")
	s := m.Snapshot()
	s.Characters = []Character{{ID: "a", PanelID: 1, Scale: 1}, {ID: "a", PanelID: 1, Scale: 1}}
	if err := m.Restore(s); !IsValidation(err) {
		t.Fatalf("duplicate ids accepted")
	}
	s.Characters = nil
	s.Panels = append(s.Panels, s.Panels[0])
	if err := m.Restore(s); !IsValidation(err) {
		t.Fatalf("duplicate panel ids accepted")
	}
}

func TestRestoreClampsPoses(t *testing.T) {
	m := newModel(t, "4koma")
	s := m.Snapshot()
	s.Characters = []Character{{ID: "c", PanelID: 1, X: -0.4, Y: 1.7, Scale: 12}}
	s.Bubbles = []Bubble{{ID: "b", PanelID: 1, X: 2, Y: -1, Scale: 0, Width: 60, Height: 40}}
	if err := m.Restore(s); err != nil {
		t.Fatalf("restore: %v", err)
	}
	c, _ := m.Character("c")
	if c.X != 0 || c.Y != 1 || c.Scale != 5 {
		t.Fatalf("character not clamped: %+v", c)
	}
	b, _ := m.Bubble("b")
	if b.X != 1 || b.Y != 0 || b.Scale != 0.1 {
		t.Fatalf("bubble not clamped: %+v", b)
	}
	if s.Characters[0].X != -0.4 {
		t.Fatal("restore must not modify the caller's state")
	}
}

func TestRevisionBumps(t *testing.T) {
	m := New(presets.Default())
	r0 := m.Revision()
	_ = m.LoadTemplate("single")
	r1 := m.Revision()
	_ = m.SelectPanel(1)
	r2 := m.Revision()
	_ = m.SelectPanel(1)
	if !(r0 < r1 && r1 < r2) || m.Revision() != r2 {
		t.Fatalf("revisions: %d %d %d %d", r0, r1, r2, m.Revision())
	}
}
