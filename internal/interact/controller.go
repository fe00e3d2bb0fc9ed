/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interact turns raw pointer events into scene mutations. A
// Controller is a three-state machine (Idle, Dragging, Resizing); only one
// gesture runs at a time and every way out of a gesture goes through the
// same finish step, which also drops the input lock taken for resizing.
package interact

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"namedraft/internal/geom"
	applog "namedraft/internal/log"
	"namedraft/internal/scene"
)

// HandleSize is the edge length of the square resize handles drawn on the
// corners of the selected character's box.
const HandleSize = 10

// ErrBusy is returned when a gesture is requested while another is running.
var ErrBusy = errors.New("interact: gesture in progress")

type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	}
	return "idle"
}

// Drag describes a running drag.
type Drag struct {
	Kind   scene.Kind
	ID     string
	Offset geom.Pt // pointer minus the entity anchor at grab time
}

// Snapshot is captured when a resize starts, before anything is mutated.
type Snapshot struct {
	CharacterID  string
	Handle       geom.Corner
	PanelID      int
	StartScale   float64
	StartCharX   float64
	StartCharY   float64
	StartPointer geom.Pt
	HandlePos    geom.Pt
}

type Controller struct {
	m    *scene.Model
	lock InputLock
	log  *slog.Logger

	// OnChange runs after every mutation or state change so the host can redraw.
	OnChange func()

	state   State
	drag    Drag
	resize  Snapshot
	release func()
}

// New creates an idle controller. A nil lock means the host has nothing to
// suppress; an ExclusiveLock is used.
func New(m *scene.Model, lock InputLock) *Controller {
	if lock == nil {
		lock = &ExclusiveLock{}
	}
	return &Controller{m: m, lock: lock, log: applog.Discard()}
}

func (c *Controller) WithLogger(l *slog.Logger) *Controller {
	if l != nil {
		c.log = l
	}
	return c
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Active() bool { return c.state != Idle }

// Drag returns the running drag, if any.
func (c *Controller) Drag() (Drag, bool) { return c.drag, c.state == Dragging }

// Resize returns the snapshot of the running resize, if any.
func (c *Controller) Resize() (Snapshot, bool) { return c.resize, c.state == Resizing }

// PointerDown selects what is under pt. Characters and bubbles start a drag;
// a panel is only selected; empty canvas clears the selection. Ignored while
// a gesture is running.
func (c *Controller) PointerDown(pt geom.Pt) scene.Hit {
	if c.state != Idle {
		c.log.Debug("pointer down ignored", slog.String("state", c.state.String()))
		return scene.Hit{}
	}
	h := c.m.HitTest(pt)
	switch h.Kind {
	case scene.KindCharacter, scene.KindBubble:
		panel, ok := c.m.ElementPanel(h.Kind, h.ID)
		x, y, found := c.m.ElementPos(h.Kind, h.ID)
		if !ok || !found {
			return scene.Hit{}
		}
		anchor := geom.ToAbsolute(panel.Rect(), x, y)
		if h.Kind == scene.KindCharacter {
			_ = c.m.SelectCharacter(h.ID)
		} else {
			_ = c.m.SelectBubble(h.ID)
		}
		c.drag = Drag{Kind: h.Kind, ID: h.ID, Offset: pt.Sub(anchor)}
		c.state = Dragging
		c.log.Debug("drag start", slog.String("kind", h.Kind.String()), slog.String("id", h.ID))
	case scene.KindPanel:
		_ = c.m.SelectPanel(h.PanelID)
	default:
		c.m.ClearSelection()
	}
	c.changed()
	return h
}

// HandleAt reports which resize handle of the selected character lies under pt.
func (c *Controller) HandleAt(pt geom.Pt) (characterID string, corner geom.Corner, ok bool) {
	k, id, sel := c.m.SelectedElement()
	if !sel || k != scene.KindCharacter {
		return "", 0, false
	}
	ch, found := c.m.Character(id)
	panel, inPanel := c.m.Panel(ch.PanelID)
	if !found || !inPanel {
		return "", 0, false
	}
	box := ch.Box(panel)
	for corner := geom.TopLeft; corner <= geom.BottomLeft; corner++ {
		if geom.HandleRect(box, corner, HandleSize).Contains(pt) {
			return id, corner, true
		}
	}
	return "", 0, false
}

// HandleDown starts a resize of a character from one of its handles. The
// input lock is taken first; if that fails the controller stays idle.
func (c *Controller) HandleDown(characterID string, handle geom.Corner, pt geom.Pt) error {
	if c.state != Idle {
		return ErrBusy
	}
	ch, ok := c.m.Character(characterID)
	if !ok {
		return &scene.LookupError{Kind: "character", Name: characterID}
	}
	panel, ok := c.m.Panel(ch.PanelID)
	if !ok {
		return &scene.LookupError{Kind: "panel", Name: strconv.Itoa(ch.PanelID)}
	}
	snap := Snapshot{
		CharacterID:  ch.ID,
		Handle:       handle,
		PanelID:      panel.ID,
		StartScale:   ch.Scale,
		StartCharX:   ch.X,
		StartCharY:   ch.Y,
		StartPointer: pt,
		HandlePos:    ch.Box(panel).CornerPt(handle),
	}
	if err := c.lock.Acquire(); err != nil {
		return err
	}
	c.release = sync.OnceFunc(c.lock.Release)
	c.resize = snap
	c.state = Resizing
	_ = c.m.SelectCharacter(ch.ID)
	c.log.Debug("resize start", slog.String("id", ch.ID), slog.String("handle", handle.String()))
	c.changed()
	return nil
}

// Press is the host entry point for a primary-button press: a resize handle
// of the selected character takes priority over a generic hit.
func (c *Controller) Press(pt geom.Pt) {
	if id, corner, ok := c.HandleAt(pt); ok {
		if err := c.HandleDown(id, corner, pt); err == nil {
			return
		}
	}
	c.PointerDown(pt)
}

// PointerMove advances the running gesture. A drag writes the clamped
// relative position; a resize scales by the pointer's distance from the
// character anchor relative to the distance at gesture start. If the target
// or its panel disappeared the gesture ends.
func (c *Controller) PointerMove(pt geom.Pt) {
	switch c.state {
	case Dragging:
		panel, ok := c.m.ElementPanel(c.drag.Kind, c.drag.ID)
		if !ok {
			c.finish("drag target gone")
			return
		}
		rx, ry := geom.ToRelative(panel.Rect(), pt.Sub(c.drag.Offset))
		if err := c.m.MoveElement(c.drag.Kind, c.drag.ID, rx, ry); err != nil {
			c.finish("drag target gone")
			return
		}
		c.changed()
	case Resizing:
		panel, ok := c.m.Panel(c.resize.PanelID)
		if !ok {
			c.finish("resize panel gone")
			return
		}
		scale, ok := ResizeScale(panel.Rect(), c.resize, pt)
		if !ok {
			return
		}
		if err := c.m.SetCharacterScale(c.resize.CharacterID, scale); err != nil {
			c.finish("resize target gone")
			return
		}
		c.changed()
	}
}

// ResizeScale computes the scale for pointer pt during a resize. ok is false
// when the gesture started within a pixel of the anchor.
func ResizeScale(panel geom.Rect, s Snapshot, pt geom.Pt) (float64, bool) {
	anchor := geom.ToAbsolute(panel, s.StartCharX, s.StartCharY)
	d0 := s.StartPointer.Dist(anchor)
	if d0 < 1 {
		return s.StartScale, false
	}
	return geom.ClampScale(s.StartScale * pt.Dist(anchor) / d0), true
}

// PointerUp ends any running gesture.
func (c *Controller) PointerUp(geom.Pt) { c.finish("pointer up") }

// Blur ends any running gesture after the host lost pointer capture or focus.
func (c *Controller) Blur() { c.finish("blur") }

// Cancel ends any running gesture on request (Escape, shutdown).
func (c *Controller) Cancel() { c.finish("cancel") }

// finish is the only exit from Dragging and Resizing.
func (c *Controller) finish(reason string) {
	if c.state == Idle {
		return
	}
	prev := c.state
	release := c.release
	c.state = Idle
	c.drag = Drag{}
	c.resize = Snapshot{}
	c.release = nil
	if release != nil {
		release()
	}
	c.log.Debug("gesture end", slog.String("state", prev.String()), slog.String("reason", reason))
	c.changed()
}

func (c *Controller) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}
