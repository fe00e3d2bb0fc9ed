/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"time"

	"namedraft/internal/geom"
)

// Panel is a rectangular frame on the page, in canvas pixels.
type Panel struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (p Panel) Rect() geom.Rect { return geom.R(p.X, p.Y, p.Width, p.Height) }

// Character is a placeholder for a character's position within a panel.
// X and Y are panel-relative.
type Character struct {
	ID       string  `json:"id"`
	PanelID  int     `json:"panelId"`
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation,omitempty"`
	Flip     bool    `json:"flip,omitempty"`
}

// Box is the character's hit box inside panel.
func (c Character) Box(panel Panel) geom.Rect {
	return geom.CharacterBox(panel.Rect(), c.X, c.Y, c.Scale)
}

// Bubble is a speech bubble anchored within a panel. Width and Height are
// intrinsic pixel sizes before Scale.
type Bubble struct {
	ID      string  `json:"id"`
	PanelID int     `json:"panelId"`
	Type    string  `json:"type"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (b Bubble) Box(panel Panel) geom.Rect {
	return geom.BubbleBox(panel.Rect(), b.X, b.Y, b.Scale, b.Width, b.Height)
}

// Narration is the bubble type that may carry empty text.
const Narration = "narration"

// Defaults for newly added entities.
const (
	CharacterX     = 0.5
	CharacterY     = 0.6
	CharacterScale = 0.8
	BubbleX        = 0.5
	BubbleY        = 0.3
	BubbleScale    = 1.0
	BubbleHeight   = 40
	bubbleMinWidth = 60
)

// Kind names the entity collections.
type Kind int

const (
	KindNone Kind = iota
	KindPanel
	KindCharacter
	KindBubble
)

func (k Kind) String() string {
	switch k {
	case KindPanel:
		return "panel"
	case KindCharacter:
		return "character"
	case KindBubble:
		return "bubble"
	}
	return "none"
}

// Selection is the single active selection. PanelID is set for panel
// selections; ID is set for character and bubble selections.
type Selection struct {
	Kind    Kind
	PanelID int
	ID      string
}

// State is a full copy of the model's persisted content.
type State struct {
	Panels     []Panel
	Characters []Character
	Bubbles    []Bubble
	Page       int
	Scene      string
	Template   string
	Created    time.Time
}
