//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests exercise the page canvas widget. They are gated behind the "fyne" build tag so CI
// (which is headless) does not need Fyne or a display. To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"math"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"namedraft/internal/editor"
	"namedraft/internal/geom"
	"namedraft/internal/interact"
	applog "namedraft/internal/log"
	"namedraft/internal/presets"
)

func newCanvas(t *testing.T) (*PageCanvas, *editor.Session) {
	t.Helper()
	test.NewApp()
	sess := editor.New(presets.Default(), editor.Options{Logger: applog.Discard(), Guides: true})
	if _, err := sess.Dispatch(context.Background(), editor.Command{Name: "template", Args: map[string]string{"name": "4koma"}}); err != nil {
		t.Fatal(err)
	}
	pc := NewPageCanvas(sess)
	pc.Resize(fyne.NewSize(800, 1000))
	return pc, sess
}

func TestPageCanvas_ScreenMappingRoundTrip(t *testing.T) {
	pc, _ := newCanvas(t)
	pc.offsetX, pc.offsetY = 30, -12
	in := geom.Pt{X: 123.5, Y: 456.25}
	out := pc.toPage(pc.toScreen(in))
	if math.Abs(out.X-in.X) > 0.01 || math.Abs(out.Y-in.Y) > 0.01 {
		t.Fatalf("round trip %v -> %v", in, out)
	}
}

func TestPageCanvas_RendererBuildsFrameObjects(t *testing.T) {
	pc, _ := newCanvas(t)
	r := pc.CreateRenderer().(*pageCanvasRenderer)
	r.Layout(pc.Size())
	// background + page + 4 panels with labels + 16 guide lines
	if got, want := len(r.Objects()), 2+4*2+16; got != want {
		t.Fatalf("objects = %d, want %d", got, want)
	}
}

func TestPageCanvas_MouseDragMovesCharacter(t *testing.T) {
	pc, sess := newCanvas(t)
	ctx := context.Background()
	_, _ = sess.Dispatch(ctx, editor.Command{Name: "select", Args: map[string]string{"kind": "panel", "id": "1"}})
	if _, err := sess.Dispatch(ctx, editor.Command{Name: "add-character"}); err != nil {
		t.Fatal(err)
	}
	c := sess.Model().Characters()[0]
	p, _ := sess.Model().Panel(1)
	start := pc.toScreen(geom.ToAbsolute(p.Rect(), c.X, c.Y))

	pc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: start}, Button: desktop.MouseButtonPrimary})
	if !sess.Controller().Active() {
		t.Fatal("press on character should start a drag")
	}
	pc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(start.X+5000, start.Y)}})
	pc.DragEnd()
	if sess.Controller().Active() {
		t.Fatal("drag end should return to idle")
	}
	got, _ := sess.Model().Character(c.ID)
	if got.X != 1 {
		t.Fatalf("expected clamped x=1, got %v", got.X)
	}
}

func TestPageCanvas_ResizeClaimFreezesZoomAndPan(t *testing.T) {
	test.NewApp()
	lock := &interact.ExclusiveLock{}
	sess := editor.New(presets.Default(), editor.Options{Logger: applog.Discard(), InputLock: lock})
	ctx := context.Background()
	_, _ = sess.Dispatch(ctx, editor.Command{Name: "template", Args: map[string]string{"name": "4koma"}})
	_, _ = sess.Dispatch(ctx, editor.Command{Name: "select", Args: map[string]string{"kind": "panel", "id": "1"}})
	if _, err := sess.Dispatch(ctx, editor.Command{Name: "add-character"}); err != nil {
		t.Fatal(err)
	}
	pc := NewPageCanvas(sess)
	pc.Resize(fyne.NewSize(800, 1000))
	pc.Claim(lock)

	c := sess.Model().Characters()[0]
	if err := sess.Controller().HandleDown(c.ID, geom.BottomRight, geom.Pt{X: 10, Y: 10}); err != nil {
		t.Fatal(err)
	}
	if !pc.locked {
		t.Fatal("resize should claim the canvas")
	}
	zoom := pc.zoom
	pc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 4)})
	if pc.zoom != zoom {
		t.Fatalf("zoom changed during resize: %v -> %v", zoom, pc.zoom)
	}

	sess.Controller().Blur()
	if pc.locked || lock.Held() {
		t.Fatal("blur should release the claim")
	}
	pc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 4)})
	if pc.zoom == zoom {
		t.Fatal("zoom should work again after release")
	}
}
