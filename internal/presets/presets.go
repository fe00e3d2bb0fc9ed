/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package presets holds the lookup tables the editor consumes by name:
// page templates (panel rectangles), character layouts for a single panel
// and scene-type recommendations. The built-in tables are embedded; a user
// YAML file may extend or replace entries.
package presets

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"namedraft/internal/geom"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtin []byte

// PanelSpec is one panel rectangle of a template, in canvas pixels.
type PanelSpec struct {
	ID     int     `yaml:"id" json:"id"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func (p PanelSpec) Rect() geom.Rect { return geom.R(p.X, p.Y, p.Width, p.Height) }

// Placement is one character of a layout, in panel-relative coordinates.
type Placement struct {
	Type     string  `yaml:"type" json:"type"`
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Scale    float64 `yaml:"scale" json:"scale"`
	Flip     bool    `yaml:"flip,omitempty" json:"flip,omitempty"`
	Rotation float64 `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// Recommendation is what a scene type suggests for a page.
type Recommendation struct {
	Template string `yaml:"template" json:"template"`
	Layout   string `yaml:"layout" json:"layout"`
	Camera   string `yaml:"camera" json:"camera"`
}

// Size is the canvas size in pixels.
type Size struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type tables struct {
	Canvas     Size                      `yaml:"canvas"`
	Characters map[string]string         `yaml:"characters"`
	Bubbles    []string                  `yaml:"bubbles"`
	Templates  map[string][]PanelSpec    `yaml:"templates"`
	Layouts    map[string][]Placement    `yaml:"layouts"`
	Scenes     map[string]Recommendation `yaml:"scenes"`
}

// Catalog is safe for concurrent use; Replace swaps the tables atomically.
type Catalog struct {
	mu sync.RWMutex
	t  tables
}

// Default returns a catalog built from the embedded tables.
func Default() *Catalog {
	c, err := Parse(builtin, nil)
	if err != nil {
		panic(fmt.Sprintf("presets: embedded tables invalid: %v", err))
	}
	return c
}

// Parse decodes YAML tables. When base is non-nil the result starts as a copy
// of base and the parsed entries are layered on top by name.
func Parse(data []byte, base *Catalog) (*Catalog, error) {
	var in tables
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("presets: parse: %w", err)
	}
	var out tables
	if base != nil {
		out = base.snapshot()
	}
	merge(&out, &in)
	if err := validate(&out); err != nil {
		return nil, err
	}
	return &Catalog{t: out}, nil
}

// LoadFile reads a user override file on top of the built-in tables.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("presets: read %s: %w", path, err)
	}
	return Parse(data, Default())
}

// Replace swaps in the tables of other.
func (c *Catalog) Replace(other *Catalog) {
	t := other.snapshot()
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Catalog) snapshot() tables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := tables{
		Canvas:     c.t.Canvas,
		Characters: make(map[string]string, len(c.t.Characters)),
		Bubbles:    append([]string(nil), c.t.Bubbles...),
		Templates:  make(map[string][]PanelSpec, len(c.t.Templates)),
		Layouts:    make(map[string][]Placement, len(c.t.Layouts)),
		Scenes:     make(map[string]Recommendation, len(c.t.Scenes)),
	}
	for k, v := range c.t.Characters {
		out.Characters[k] = v
	}
	for k, v := range c.t.Templates {
		out.Templates[k] = append([]PanelSpec(nil), v...)
	}
	for k, v := range c.t.Layouts {
		out.Layouts[k] = append([]Placement(nil), v...)
	}
	for k, v := range c.t.Scenes {
		out.Scenes[k] = v
	}
	return out
}

func merge(dst, src *tables) {
	if src.Canvas.Width > 0 && src.Canvas.Height > 0 {
		dst.Canvas = src.Canvas
	}
	if len(src.Bubbles) > 0 {
		dst.Bubbles = append([]string(nil), src.Bubbles...)
	}
	if dst.Characters == nil {
		dst.Characters = map[string]string{}
	}
	if dst.Templates == nil {
		dst.Templates = map[string][]PanelSpec{}
	}
	if dst.Layouts == nil {
		dst.Layouts = map[string][]Placement{}
	}
	if dst.Scenes == nil {
		dst.Scenes = map[string]Recommendation{}
	}
	for k, v := range src.Characters {
		dst.Characters[k] = v
	}
	for k, v := range src.Templates {
		dst.Templates[k] = v
	}
	for k, v := range src.Layouts {
		dst.Layouts[k] = v
	}
	for k, v := range src.Scenes {
		dst.Scenes[k] = v
	}
}

func validate(t *tables) error {
	if t.Canvas.Width <= 0 || t.Canvas.Height <= 0 {
		return fmt.Errorf("presets: canvas size must be positive")
	}
	for name, panels := range t.Templates {
		if len(panels) == 0 {
			return fmt.Errorf("presets: template %q has no panels", name)
		}
		seen := map[int]bool{}
		for _, p := range panels {
			if p.ID <= 0 || seen[p.ID] {
				return fmt.Errorf("presets: template %q: bad or duplicate panel id %d", name, p.ID)
			}
			if p.Width <= 0 || p.Height <= 0 {
				return fmt.Errorf("presets: template %q: panel %d has zero size", name, p.ID)
			}
			seen[p.ID] = true
		}
	}
	for name, entries := range t.Layouts {
		for i := range entries {
			if entries[i].Scale <= 0 {
				entries[i].Scale = 1
			}
			if strings.TrimSpace(entries[i].Type) == "" {
				return fmt.Errorf("presets: layout %q entry %d has no type", name, i)
			}
		}
	}
	for name, r := range t.Scenes {
		if _, ok := t.Templates[r.Template]; !ok {
			return fmt.Errorf("presets: scene %q references unknown template %q", name, r.Template)
		}
		if _, ok := t.Layouts[r.Layout]; !ok {
			return fmt.Errorf("presets: scene %q references unknown layout %q", name, r.Layout)
		}
	}
	return nil
}

// Template returns a copy of the named template's panels.
func (c *Catalog) Template(name string) ([]PanelSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.t.Templates[name]
	return append([]PanelSpec(nil), p...), ok
}

// Layout returns a copy of the named layout's placements.
func (c *Catalog) Layout(name string) ([]Placement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.t.Layouts[name]
	return append([]Placement(nil), p...), ok
}

// Recommend returns the suggestion for a scene type.
func (c *Catalog) Recommend(scene string) (Recommendation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.t.Scenes[scene]
	return r, ok
}

// CharacterLabel returns the display name of a character type, or the type itself.
func (c *Catalog) CharacterLabel(kind string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if l, ok := c.t.Characters[kind]; ok && l != "" {
		return l
	}
	return kind
}

func (c *Catalog) Canvas() Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Canvas
}

func (c *Catalog) BubbleTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.t.Bubbles...)
}

func (c *Catalog) TemplateNames() []string {
	return c.names(func(t *tables) []string { return keys(t.Templates) })
}
func (c *Catalog) LayoutNames() []string {
	return c.names(func(t *tables) []string { return keys(t.Layouts) })
}
func (c *Catalog) SceneNames() []string {
	return c.names(func(t *tables) []string { return keys(t.Scenes) })
}
func (c *Catalog) CharacterTypes() []string {
	return c.names(func(t *tables) []string { return keys(t.Characters) })
}

func (c *Catalog) names(f func(*tables) []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := f(&c.t)
	sort.Strings(out)
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
