/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Selection returns the active selection.
func (m *Model) Selection() Selection { return m.sel }

// SelectPanel makes a panel the active selection.
func (m *Model) SelectPanel(id int) error {
	if m.panelIndex(id) < 0 {
		return missing("panel", id)
	}
	m.setSelection(Selection{Kind: KindPanel, PanelID: id})
	return nil
}

func (m *Model) SelectCharacter(id string) error {
	if m.charIndex(id) < 0 {
		return missing("character", id)
	}
	m.setSelection(Selection{Kind: KindCharacter, ID: id})
	return nil
}

func (m *Model) SelectBubble(id string) error {
	if m.bubbleIndex(id) < 0 {
		return missing("bubble", id)
	}
	m.setSelection(Selection{Kind: KindBubble, ID: id})
	return nil
}

func (m *Model) ClearSelection() { m.setSelection(Selection{}) }

func (m *Model) setSelection(s Selection) {
	if m.sel == s {
		return
	}
	m.sel = s
	m.touch()
}

// SelectedPanel returns the selected panel id, or 0 when the active
// selection is not a panel.
func (m *Model) SelectedPanel() int {
	if m.sel.Kind == KindPanel {
		return m.sel.PanelID
	}
	return 0
}

// SelectedElement returns the selected character or bubble. ok is false when
// the selection is empty or a panel.
func (m *Model) SelectedElement() (k Kind, id string, ok bool) {
	switch m.sel.Kind {
	case KindCharacter, KindBubble:
		return m.sel.Kind, m.sel.ID, true
	}
	return KindNone, "", false
}
