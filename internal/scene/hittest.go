/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"log/slog"

	"namedraft/internal/geom"
)

// Hit is the result of a composed hit-test.
type Hit struct {
	Kind    Kind
	ID      string // character or bubble id
	PanelID int
}

// CharacterAt returns the topmost character whose box contains pt.
func (m *Model) CharacterAt(pt geom.Pt) (Character, bool) {
	for i := len(m.chars) - 1; i >= 0; i-- {
		c := m.chars[i]
		p, ok := m.Panel(c.PanelID)
		if !ok {
			continue
		}
		if c.Box(p).Contains(pt) {
			m.log.Debug("hit character", slog.String("id", c.ID), slog.Float64("x", pt.X), slog.Float64("y", pt.Y))
			return c, true
		}
	}
	return Character{}, false
}

// BubbleAt returns the topmost bubble whose box contains pt.
func (m *Model) BubbleAt(pt geom.Pt) (Bubble, bool) {
	for i := len(m.bubbles) - 1; i >= 0; i-- {
		b := m.bubbles[i]
		p, ok := m.Panel(b.PanelID)
		if !ok {
			continue
		}
		if b.Box(p).Contains(pt) {
			m.log.Debug("hit bubble", slog.String("id", b.ID), slog.Float64("x", pt.X), slog.Float64("y", pt.Y))
			return b, true
		}
	}
	return Bubble{}, false
}

// PanelAt returns the topmost panel whose rectangle contains pt.
func (m *Model) PanelAt(pt geom.Pt) (Panel, bool) {
	for i := len(m.panels) - 1; i >= 0; i-- {
		if m.panels[i].Rect().Contains(pt) {
			return m.panels[i], true
		}
	}
	return Panel{}, false
}

// HitTest resolves pt with precedence character, bubble, panel.
func (m *Model) HitTest(pt geom.Pt) Hit {
	if c, ok := m.CharacterAt(pt); ok {
		return Hit{Kind: KindCharacter, ID: c.ID, PanelID: c.PanelID}
	}
	if b, ok := m.BubbleAt(pt); ok {
		return Hit{Kind: KindBubble, ID: b.ID, PanelID: b.PanelID}
	}
	if p, ok := m.PanelAt(pt); ok {
		return Hit{Kind: KindPanel, PanelID: p.ID}
	}
	return Hit{}
}
