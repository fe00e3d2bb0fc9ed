/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns the scene model into a display list (Frame) and
// rasterises or prints it. Frame building is pure; hosts redraw by calling
// Frame again after every change.
package render

import (
	"namedraft/internal/geom"
	"namedraft/internal/interact"
	"namedraft/internal/scene"
)

// Color is an 8-bit RGBA colour.
type Color struct{ R, G, B, A uint8 }

var (
	White       = Color{255, 255, 255, 255}
	Black       = Color{0, 0, 0, 255}
	Paper       = Color{250, 250, 247, 255}
	Highlight   = Color{229, 57, 53, 255}
	SelectFill  = Color{229, 57, 53, 28}
	GuideColor  = Color{100, 160, 230, 200}
	FigureFill  = Color{66, 135, 245, 64}
	FigureLine  = Color{30, 100, 200, 255}
	BubbleLine  = Color{20, 20, 20, 255}
	Transparent = Color{}
)

// Options are the host toggles that affect drawing.
type Options struct {
	Guides bool
}

// Shape of an overlay box.
type Shape string

const (
	ShapeFigure  Shape = "figure"
	ShapeEllipse Shape = "ellipse"
	ShapeCloud   Shape = "cloud"
	ShapeBurst   Shape = "burst"
	ShapeBox     Shape = "box"
)

type PanelDraw struct {
	ID          int       `json:"id"`
	Rect        geom.Rect `json:"rect"`
	Stroke      Color     `json:"stroke"`
	StrokeWidth float64   `json:"strokeWidth"`
	Fill        Color     `json:"fill"`
	Selected    bool      `json:"selected"`
}

// Overlay is a positioned box for a character or bubble. Box is also the hit
// box; Transform only affects how the content inside is drawn.
type Overlay struct {
	Kind      string        `json:"kind"`
	ID        string        `json:"id"`
	PanelID   int           `json:"panelId"`
	Type      string        `json:"type"`
	Label     string        `json:"label"`
	Shape     Shape         `json:"shape"`
	Box       geom.Rect     `json:"box"`
	Transform geom.Affine2D `json:"transform"`
	Rotation  float64       `json:"rotation,omitempty"`
	Flip      bool          `json:"flip,omitempty"`
	Dashed    bool          `json:"dashed,omitempty"`
	Selected  bool          `json:"selected"`
}

// Frame is the full display list for one redraw, in paint order.
type Frame struct {
	Page       int         `json:"page"`
	Revision   uint64      `json:"revision"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Background Color       `json:"background"`
	Panels     []PanelDraw `json:"panels"`
	Guides     []geom.Line `json:"guides,omitempty"`
	Overlays   []Overlay   `json:"overlays"`
	Handles    []geom.Rect `json:"handles,omitempty"`
}

// Build produces the display list for m. Orphaned characters and bubbles
// are left out.
func Build(m *scene.Model, opt Options) Frame {
	canvas := m.Canvas()
	sel := m.Selection()
	f := Frame{
		Page:       m.Page(),
		Revision:   m.Revision(),
		Width:      canvas.W,
		Height:     canvas.H,
		Background: Paper,
	}
	panels := m.Panels()
	byID := make(map[int]scene.Panel, len(panels))
	for _, p := range panels {
		byID[p.ID] = p
		d := PanelDraw{ID: p.ID, Rect: p.Rect(), Stroke: Black, StrokeWidth: 2, Fill: White}
		if sel.Kind == scene.KindPanel && sel.PanelID == p.ID {
			d.Selected = true
			d.Stroke = Highlight
			d.StrokeWidth = 3
			d.Fill = blend(White, SelectFill)
		}
		f.Panels = append(f.Panels, d)
		if opt.Guides {
			f.Guides = append(f.Guides, geom.ThirdsGuides(p.Rect())...)
		}
	}
	for _, b := range m.Bubbles() {
		p, ok := byID[b.PanelID]
		if !ok {
			continue
		}
		box := b.Box(p)
		label := b.Text
		if label == "" && b.Type == scene.Narration {
			label = "(narration)"
		}
		shape, dashed := bubbleShape(b.Type)
		f.Overlays = append(f.Overlays, Overlay{
			Kind: scene.KindBubble.String(), ID: b.ID, PanelID: b.PanelID, Type: b.Type,
			Label: label, Shape: shape, Dashed: dashed, Box: box, Transform: geom.Identity,
			Selected: sel.Kind == scene.KindBubble && sel.ID == b.ID,
		})
	}
	for _, c := range m.Characters() {
		p, ok := byID[c.PanelID]
		if !ok {
			continue
		}
		box := c.Box(p)
		o := Overlay{
			Kind: scene.KindCharacter.String(), ID: c.ID, PanelID: c.PanelID, Type: c.Type,
			Label: c.Name, Shape: ShapeFigure, Box: box,
			Transform: geom.OverlayTransform(box, c.Rotation, c.Flip),
			Rotation:  c.Rotation, Flip: c.Flip,
			Selected: sel.Kind == scene.KindCharacter && sel.ID == c.ID,
		}
		f.Overlays = append(f.Overlays, o)
		if o.Selected {
			for corner := geom.TopLeft; corner <= geom.BottomLeft; corner++ {
				f.Handles = append(f.Handles, geom.HandleRect(box, corner, interact.HandleSize))
			}
		}
	}
	return f
}

func bubbleShape(kind string) (Shape, bool) {
	switch kind {
	case "thought":
		return ShapeCloud, false
	case "shout":
		return ShapeBurst, false
	case "whisper":
		return ShapeEllipse, true
	case scene.Narration:
		return ShapeBox, false
	}
	return ShapeEllipse, false
}

// blend paints src over dst.
func blend(dst, src Color) Color {
	a := float64(src.A) / 255
	mix := func(d, s uint8) uint8 { return uint8(float64(s)*a + float64(d)*(1-a) + 0.5) }
	return Color{mix(dst.R, src.R), mix(dst.G, src.G), mix(dst.B, src.B), 255}
}
