/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

// Orientation of a guide line.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// Line is a guide segment drawn over a panel.
type Line struct {
	Orientation Orientation
	Position    float64 // x for vertical lines, y for horizontal ones
	From, To    Pt
}

// ThirdsGuides returns the rule-of-thirds lines of a panel: two vertical
// lines followed by two horizontal ones.
func ThirdsGuides(panel Rect) []Line {
	out := make([]Line, 0, 4)
	for i := 1; i <= 2; i++ {
		x := panel.X + panel.W*float64(i)/3
		out = append(out, Line{Orientation: Vertical, Position: x, From: Pt{x, panel.Y}, To: Pt{x, panel.Y + panel.H}})
	}
	for i := 1; i <= 2; i++ {
		y := panel.Y + panel.H*float64(i)/3
		out = append(out, Line{Orientation: Horizontal, Position: y, From: Pt{panel.X, y}, To: Pt{panel.X + panel.W, y}})
	}
	return out
}
