/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom maps between panel-relative coordinates (0..1 of a panel's
// width/height) and absolute canvas pixels, and derives the placeholder
// boxes used for drawing and hit-testing. Everything here is pure.
package geom

import "math"

// Pt is a point in canvas pixels.
type Pt struct{ X, Y float64 }

func (p Pt) Sub(o Pt) Pt { return Pt{p.X - o.X, p.Y - o.Y} }
func (p Pt) Add(o Pt) Pt { return Pt{p.X + o.X, p.Y + o.Y} }

// Dist returns the euclidean distance between p and o.
func (p Pt) Dist(o Pt) float64 { return math.Hypot(p.X-o.X, p.Y-o.Y) }

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt    { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt    { return Pt{r.X + r.W, r.Y + r.H} }
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }

// Contains reports whether p lies inside r. Edges count as inside.
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Inset returns a rectangle inset by dx,dy on all sides (negative grows).
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W - 2*dx, H: r.H - 2*dy}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1, y1 := math.Max(r.X+r.W, o.X+o.W), math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Character placeholder box, in pixels, before scaling.
const (
	CharacterW       = 60
	CharacterH       = 40
	characterOffsetX = 30
	characterOffsetY = 20
)

// Scale bounds applied to every scale write.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// ToAbsolute converts a panel-relative position into canvas pixels.
func ToAbsolute(panel Rect, rx, ry float64) Pt {
	return Pt{X: panel.X + panel.W*rx, Y: panel.Y + panel.H*ry}
}

// ToRelative is the inverse of ToAbsolute. The result is not clamped;
// zero-sized panels give NaN or ±Inf.
func ToRelative(panel Rect, p Pt) (rx, ry float64) {
	return (p.X - panel.X) / panel.W, (p.Y - panel.Y) / panel.H
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ClampScale limits v to [MinScale, MaxScale]. NaN maps to MinScale.
func ClampScale(v float64) float64 {
	switch {
	case math.IsNaN(v), v < MinScale:
		return MinScale
	case v > MaxScale:
		return MaxScale
	}
	return v
}

// CharacterBox is the hit and draw box of a character placeholder. The box
// origin sits at the anchor minus (30,20) regardless of scale; rotation and
// flip never change it.
func CharacterBox(panel Rect, rx, ry, scale float64) Rect {
	a := ToAbsolute(panel, rx, ry)
	return Rect{X: a.X - characterOffsetX, Y: a.Y - characterOffsetY, W: CharacterW * scale, H: CharacterH * scale}
}

// BubbleBox is the box of a speech bubble centred on its anchor.
func BubbleBox(panel Rect, rx, ry, scale, w, h float64) Rect {
	a := ToAbsolute(panel, rx, ry)
	sw, sh := w*scale, h*scale
	return Rect{X: a.X - sw/2, Y: a.Y - sh/2, W: sw, H: sh}
}

// Corner identifies one of the four corners of a box.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "nw"
	case TopRight:
		return "ne"
	case BottomRight:
		return "se"
	case BottomLeft:
		return "sw"
	}
	return "?"
}

// ParseCorner accepts the compass names produced by Corner.String.
func ParseCorner(s string) (Corner, bool) {
	for c := TopLeft; c <= BottomLeft; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// CornerPt returns the position of corner c of r.
func (r Rect) CornerPt(c Corner) Pt {
	switch c {
	case TopRight:
		return Pt{r.X + r.W, r.Y}
	case BottomRight:
		return Pt{r.X + r.W, r.Y + r.H}
	case BottomLeft:
		return Pt{r.X, r.Y + r.H}
	}
	return Pt{r.X, r.Y}
}

// HandleRect is the size×size square centred on corner c of r.
func HandleRect(r Rect, c Corner, size float64) Rect {
	p := r.CornerPt(c)
	return Rect{X: p.X - size/2, Y: p.Y - size/2, W: size, H: size}
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
