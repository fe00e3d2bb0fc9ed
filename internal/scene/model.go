/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene owns the page being edited: panels, characters, speech
// bubbles and the active selection. Slice order is z-order; later entries
// draw and hit-test on top. Characters and bubbles whose panel is gone are
// orphans: they are kept, but hit-testing and rendering skip them.
//
// The model is not safe for concurrent use. Hosts serialise access.
package scene

import (
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"namedraft/internal/geom"
	applog "namedraft/internal/log"
	"namedraft/internal/presets"

	"github.com/google/uuid"
)

// Catalog is the preset source the model consumes by name.
type Catalog interface {
	Template(name string) ([]presets.PanelSpec, bool)
	Layout(name string) ([]presets.Placement, bool)
	Recommend(scene string) (presets.Recommendation, bool)
	CharacterLabel(kind string) string
	Canvas() presets.Size
}

type Model struct {
	cat      Catalog
	log      *slog.Logger
	newID    func() string
	panels   []Panel
	chars    []Character
	bubbles  []Bubble
	sel      Selection
	page     int
	scene    string
	template string
	created  time.Time
	rev      uint64
}

// New returns an empty model on page 1.
func New(cat Catalog) *Model {
	return &Model{cat: cat, log: applog.Discard(), newID: uuid.NewString, page: 1}
}

// WithLogger enables debug diagnostics (hit-tests, no-op lookups).
func (m *Model) WithLogger(l *slog.Logger) *Model {
	if l == nil {
		l = applog.Discard()
	}
	m.log = l
	return m
}

// Revision increases on every mutation, selection changes included.
func (m *Model) Revision() uint64 { return m.rev }

func (m *Model) touch() { m.rev++ }

func (m *Model) Catalog() Catalog { return m.cat }

func (m *Model) Page() int            { return m.page }
func (m *Model) SceneType() string    { return m.scene }
func (m *Model) TemplateName() string { return m.template }

// Canvas returns the page size in pixels.
func (m *Model) Canvas() geom.Rect {
	s := m.cat.Canvas()
	return geom.R(0, 0, s.Width, s.Height)
}

// SetPage sets the page number used for file names. Values below 1 are rejected.
func (m *Model) SetPage(n int) error {
	if n < 1 {
		return invalid("set page", "page numbers start at 1")
	}
	m.page = n
	m.touch()
	return nil
}

// LoadTemplate replaces all panels with the named template and clears
// characters, bubbles and selection. An unknown name changes nothing.
func (m *Model) LoadTemplate(name string) error {
	specs, ok := m.cat.Template(name)
	if !ok {
		return missing("template", name)
	}
	panels := make([]Panel, len(specs))
	for i, s := range specs {
		panels[i] = Panel{ID: s.ID, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
	}
	m.panels = panels
	m.chars = nil
	m.bubbles = nil
	m.sel = Selection{}
	m.template = name
	m.touch()
	return nil
}

// SetScene records the scene type and loads the template it recommends.
func (m *Model) SetScene(sceneType string) (presets.Recommendation, error) {
	rec, ok := m.cat.Recommend(sceneType)
	if !ok {
		return rec, missing("scene", sceneType)
	}
	if err := m.LoadTemplate(rec.Template); err != nil {
		return rec, err
	}
	m.scene = sceneType
	return rec, nil
}

// AddCharacter appends a character with the default pose to a panel.
// panelID 0 means no panel was selected.
func (m *Model) AddCharacter(panelID int, kind string) (Character, error) {
	if panelID == 0 {
		return Character{}, invalid("add character", "select a panel first")
	}
	if _, ok := m.Panel(panelID); !ok {
		return Character{}, missing("panel", panelID)
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Character{}, invalid("add character", "character type is required")
	}
	c := Character{
		ID:      m.newID(),
		PanelID: panelID,
		Type:    kind,
		Name:    m.cat.CharacterLabel(kind),
		X:       CharacterX,
		Y:       CharacterY,
		Scale:   CharacterScale,
	}
	m.chars = append(m.chars, c)
	m.touch()
	return c, nil
}

// BubbleWidth is the intrinsic width for text: 8px per character plus 20,
// never below 60.
func BubbleWidth(text string) float64 {
	return math.Max(bubbleMinWidth, float64(utf8.RuneCountInString(text)*8+20))
}

// AddBubble appends a bubble to a panel. Text is trimmed and must be
// non-empty unless kind is narration.
func (m *Model) AddBubble(panelID int, kind, text string) (Bubble, error) {
	if panelID == 0 {
		return Bubble{}, invalid("add bubble", "select a panel first")
	}
	text = strings.TrimSpace(text)
	if text == "" && kind != Narration {
		return Bubble{}, invalid("add bubble", "enter the dialogue text first")
	}
	if _, ok := m.Panel(panelID); !ok {
		return Bubble{}, missing("panel", panelID)
	}
	b := Bubble{
		ID:      m.newID(),
		PanelID: panelID,
		Type:    kind,
		Text:    text,
		X:       BubbleX,
		Y:       BubbleY,
		Scale:   BubbleScale,
		Width:   BubbleWidth(text),
		Height:  BubbleHeight,
	}
	m.bubbles = append(m.bubbles, b)
	m.touch()
	return b, nil
}

// ApplyLayout replaces every character of a panel with one per layout
// entry, in layout order. The new slice is built first and swapped in, so
// a failed lookup leaves the panel untouched.
func (m *Model) ApplyLayout(panelID int, layout string) error {
	if _, ok := m.Panel(panelID); !ok {
		return missing("panel", panelID)
	}
	entries, ok := m.cat.Layout(layout)
	if !ok {
		return missing("layout", layout)
	}
	next := make([]Character, 0, len(m.chars)+len(entries))
	for _, c := range m.chars {
		if c.PanelID != panelID {
			next = append(next, c)
		}
	}
	for _, e := range entries {
		next = append(next, Character{
			ID:       m.newID(),
			PanelID:  panelID,
			Type:     e.Type,
			Name:     m.cat.CharacterLabel(e.Type),
			X:        geom.Clamp01(e.X),
			Y:        geom.Clamp01(e.Y),
			Scale:    geom.ClampScale(e.Scale),
			Rotation: e.Rotation,
			Flip:     e.Flip,
		})
	}
	if m.sel.Kind == KindCharacter {
		if i := m.charIndex(m.sel.ID); i >= 0 && m.chars[i].PanelID == panelID {
			m.sel = Selection{Kind: KindPanel, PanelID: panelID}
		}
	}
	m.chars = next
	m.touch()
	return nil
}

// AutoPlaceBubbles puts the panel's bubbles above its characters: bubble i
// goes over character i mod n at y-0.3 (floored at 0.1). Without
// characters the bubbles are spread along y=0.2 from x=0.2 in 0.3 steps.
func (m *Model) AutoPlaceBubbles(panelID int) error {
	if _, ok := m.Panel(panelID); !ok {
		return missing("panel", panelID)
	}
	var anchors []Character
	for _, c := range m.chars {
		if c.PanelID == panelID {
			anchors = append(anchors, c)
		}
	}
	i := 0
	for bi := range m.bubbles {
		b := &m.bubbles[bi]
		if b.PanelID != panelID {
			continue
		}
		if n := len(anchors); n > 0 {
			c := anchors[i%n]
			b.X = geom.Clamp01(c.X)
			b.Y = geom.Clamp01(math.Max(0.1, c.Y-0.3))
		} else {
			b.X = geom.Clamp01(0.2 + 0.3*float64(i))
			b.Y = 0.2
		}
		i++
	}
	m.touch()
	return nil
}

// DeleteSelected removes the selected character or bubble and clears the selection.
func (m *Model) DeleteSelected() error {
	switch m.sel.Kind {
	case KindCharacter:
		return m.DeleteCharacter(m.sel.ID)
	case KindBubble:
		return m.DeleteBubble(m.sel.ID)
	}
	return invalid("delete", "select a character or bubble first")
}

// DeleteCharacter removes a character. The selection is cleared only when it
// pointed at that character.
func (m *Model) DeleteCharacter(id string) error {
	i := m.charIndex(id)
	if i < 0 {
		m.dropStaleSelection(KindCharacter, id)
		return missing("character", id)
	}
	m.chars = slices.Delete(m.chars, i, i+1)
	m.dropStaleSelection(KindCharacter, id)
	m.touch()
	return nil
}

// DeleteBubble removes a bubble, with the same selection rule as DeleteCharacter.
func (m *Model) DeleteBubble(id string) error {
	i := m.bubbleIndex(id)
	if i < 0 {
		m.dropStaleSelection(KindBubble, id)
		return missing("bubble", id)
	}
	m.bubbles = slices.Delete(m.bubbles, i, i+1)
	m.dropStaleSelection(KindBubble, id)
	m.touch()
	return nil
}

func (m *Model) dropStaleSelection(k Kind, id string) {
	if m.sel.Kind == k && m.sel.ID == id {
		m.sel = Selection{}
		m.touch()
	}
}

// MoveElement writes a new relative position for a character or bubble,
// clamped to [0,1].
func (m *Model) MoveElement(k Kind, id string, x, y float64) error {
	x, y = geom.Clamp01(x), geom.Clamp01(y)
	switch k {
	case KindCharacter:
		i := m.charIndex(id)
		if i < 0 {
			return missing("character", id)
		}
		m.chars[i].X, m.chars[i].Y = x, y
	case KindBubble:
		i := m.bubbleIndex(id)
		if i < 0 {
			return missing("bubble", id)
		}
		m.bubbles[i].X, m.bubbles[i].Y = x, y
	default:
		return invalid("move", "only characters and bubbles can be moved")
	}
	m.touch()
	return nil
}

// SetCharacterPose is the numeric-control write path. Position clamps to
// [0,1] and scale to [geom.MinScale, geom.MaxScale], same as drag and resize.
func (m *Model) SetCharacterPose(id string, x, y, scale float64) error {
	i := m.charIndex(id)
	if i < 0 {
		return missing("character", id)
	}
	c := &m.chars[i]
	c.X, c.Y, c.Scale = geom.Clamp01(x), geom.Clamp01(y), geom.ClampScale(scale)
	m.touch()
	return nil
}

// SetCharacterScale writes a clamped scale.
func (m *Model) SetCharacterScale(id string, scale float64) error {
	i := m.charIndex(id)
	if i < 0 {
		return missing("character", id)
	}
	m.chars[i].Scale = geom.ClampScale(scale)
	m.touch()
	return nil
}

// SetCharacterRotation sets the cosmetic rotation, normalised to (-180, 180].
func (m *Model) SetCharacterRotation(id string, deg float64) error {
	i := m.charIndex(id)
	if i < 0 {
		return missing("character", id)
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return invalid("rotate", "rotation must be a finite number")
	}
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	m.chars[i].Rotation = deg
	m.touch()
	return nil
}

func (m *Model) ToggleCharacterFlip(id string) error {
	i := m.charIndex(id)
	if i < 0 {
		return missing("character", id)
	}
	m.chars[i].Flip = !m.chars[i].Flip
	m.touch()
	return nil
}

func (m *Model) SetBubblePose(id string, x, y, scale float64) error {
	i := m.bubbleIndex(id)
	if i < 0 {
		return missing("bubble", id)
	}
	b := &m.bubbles[i]
	b.X, b.Y, b.Scale = geom.Clamp01(x), geom.Clamp01(y), geom.ClampScale(scale)
	m.touch()
	return nil
}

// SetBubbleText replaces the text and recomputes the width. The empty-text
// rule of AddBubble applies.
func (m *Model) SetBubbleText(id, text string) error {
	i := m.bubbleIndex(id)
	if i < 0 {
		return missing("bubble", id)
	}
	text = strings.TrimSpace(text)
	if text == "" && m.bubbles[i].Type != Narration {
		return invalid("edit bubble", "text must not be empty")
	}
	m.bubbles[i].Text = text
	m.bubbles[i].Width = BubbleWidth(text)
	m.touch()
	return nil
}

// ResizePanel sets a panel's rectangle. Children keep their relative positions.
func (m *Model) ResizePanel(id int, r geom.Rect) error {
	i := m.panelIndex(id)
	if i < 0 {
		return missing("panel", id)
	}
	if !(r.W > 0 && r.H > 0) {
		return invalid("resize panel", "width and height must be positive")
	}
	m.panels[i] = Panel{ID: id, X: r.X, Y: r.Y, Width: r.W, Height: r.H}
	m.touch()
	return nil
}

// Snapshot copies the persisted content.
func (m *Model) Snapshot() State {
	return State{
		Panels:     m.Panels(),
		Characters: m.Characters(),
		Bubbles:    m.Bubbles(),
		Page:       m.page,
		Scene:      m.scene,
		Template:   m.template,
		Created:    m.created,
	}
}

// Created is when the project was first exported; zero until then.
func (m *Model) Created() time.Time { return m.created }

// SetCreated records t unless a creation time is already set.
func (m *Model) SetCreated(t time.Time) {
	if m.created.IsZero() {
		m.created = t
	}
}

// Restore replaces the model content with s and clears the selection.
// Orphans are accepted; duplicate ids are not. Positions are clamped to
// [0,1] and scales to the scale range, like every other write.
func (m *Model) Restore(s State) error {
	pids := map[int]bool{}
	for _, p := range s.Panels {
		if p.ID <= 0 || pids[p.ID] {
			return invalid("restore", "panel ids must be positive and unique")
		}
		pids[p.ID] = true
	}
	ids := map[string]bool{}
	for _, c := range s.Characters {
		if c.ID == "" || ids[c.ID] {
			return invalid("restore", "character ids must be non-empty and unique")
		}
		ids[c.ID] = true
	}
	for _, b := range s.Bubbles {
		if b.ID == "" || ids[b.ID] {
			return invalid("restore", "bubble ids must be non-empty and unique")
		}
		ids[b.ID] = true
	}
	page := s.Page
	if page < 1 {
		page = 1
	}
	chars := slices.Clone(s.Characters)
	for i := range chars {
		c := &chars[i]
		c.X, c.Y, c.Scale = geom.Clamp01(c.X), geom.Clamp01(c.Y), geom.ClampScale(c.Scale)
	}
	bubbles := slices.Clone(s.Bubbles)
	for i := range bubbles {
		b := &bubbles[i]
		b.X, b.Y, b.Scale = geom.Clamp01(b.X), geom.Clamp01(b.Y), geom.ClampScale(b.Scale)
	}
	m.panels = slices.Clone(s.Panels)
	m.chars = chars
	m.bubbles = bubbles
	m.page = page
	m.scene = s.Scene
	m.template = s.Template
	m.created = s.Created
	m.sel = Selection{}
	m.touch()
	return nil
}

func (m *Model) Panels() []Panel         { return slices.Clone(m.panels) }
func (m *Model) Characters() []Character { return slices.Clone(m.chars) }
func (m *Model) Bubbles() []Bubble       { return slices.Clone(m.bubbles) }

func (m *Model) Panel(id int) (Panel, bool) {
	if i := m.panelIndex(id); i >= 0 {
		return m.panels[i], true
	}
	return Panel{}, false
}

func (m *Model) Character(id string) (Character, bool) {
	if i := m.charIndex(id); i >= 0 {
		return m.chars[i], true
	}
	return Character{}, false
}

func (m *Model) Bubble(id string) (Bubble, bool) {
	if i := m.bubbleIndex(id); i >= 0 {
		return m.bubbles[i], true
	}
	return Bubble{}, false
}

// Orphaned reports whether panelID no longer names a panel.
func (m *Model) Orphaned(panelID int) bool { return m.panelIndex(panelID) < 0 }

// ElementPanel returns the panel holding a character or bubble. ok is false
// when the element is missing or orphaned.
func (m *Model) ElementPanel(k Kind, id string) (Panel, bool) {
	var pid int
	switch k {
	case KindCharacter:
		c, ok := m.Character(id)
		if !ok {
			return Panel{}, false
		}
		pid = c.PanelID
	case KindBubble:
		b, ok := m.Bubble(id)
		if !ok {
			return Panel{}, false
		}
		pid = b.PanelID
	default:
		return Panel{}, false
	}
	return m.Panel(pid)
}

// ElementPos returns the relative position of a character or bubble.
func (m *Model) ElementPos(k Kind, id string) (x, y float64, ok bool) {
	switch k {
	case KindCharacter:
		if c, found := m.Character(id); found {
			return c.X, c.Y, true
		}
	case KindBubble:
		if b, found := m.Bubble(id); found {
			return b.X, b.Y, true
		}
	}
	return 0, 0, false
}

func (m *Model) panelIndex(id int) int {
	return slices.IndexFunc(m.panels, func(p Panel) bool { return p.ID == id })
}

func (m *Model) charIndex(id string) int {
	return slices.IndexFunc(m.chars, func(c Character) bool { return c.ID == id })
}

func (m *Model) bubbleIndex(id string) int {
	return slices.IndexFunc(m.bubbles, func(b Bubble) bool { return b.ID == id })
}
