//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"namedraft/internal/crash"
	"namedraft/internal/editor"
	"namedraft/internal/geom"
	"namedraft/internal/interact"
	applog "namedraft/internal/log"
	"namedraft/internal/render"
)

// Run opens the desktop editor for sess and blocks until the window closes.
// lock, when non-nil, must be the InputLock sess was built with. dataDir receives crash
// reports and autosaves.
func Run(sess *editor.Session, lock *interact.ExclusiveLock, dataDir string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	defer crash.Recover(dataDir, sess)

	fyneApp := app.NewWithID("namedraft")
	w := fyneApp.NewWindow("NameDraft")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(prefs.IntWithFallback("window.height", 900), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	pc := NewPageCanvas(sess)
	sess.Controller().OnChange = pc.Refresh
	if lock != nil {
		pc.Claim(lock)
	}

	// dispatch runs a command and reports the outcome; validation failures block with a notice.
	dispatch := func(name string, kv ...string) {
		args := map[string]string{}
		for i := 0; i+1 < len(kv); i += 2 {
			args[kv[i]] = kv[i+1]
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := sess.Dispatch(ctx, editor.Command{Name: name, Args: args})
		if err != nil {
			l.Warn("command failed", slog.String("cmd", name), slog.Any("err", err))
			dialog.ShowError(err, w)
			status.SetText(name + " failed")
		} else if res.Notice != "" {
			status.SetText(res.Notice)
		}
		pc.Refresh()
	}

	cat := sess.Catalog()
	templateSel := widget.NewSelect(cat.TemplateNames(), func(s string) { dispatch("template", "name", s) })
	templateSel.PlaceHolder = "Template"
	sceneSel := widget.NewSelect(cat.SceneNames(), func(s string) { dispatch("scene", "type", s) })
	sceneSel.PlaceHolder = "Scene"
	charSel := widget.NewSelect(cat.CharacterTypes(), nil)
	charSel.SetSelected("hero")
	layoutSel := widget.NewSelect(cat.LayoutNames(), nil)
	layoutSel.PlaceHolder = "Layout"
	bubbleSel := widget.NewSelect(cat.BubbleTypes(), nil)
	bubbleSel.SetSelected("speech")
	dialogue := widget.NewEntry()
	dialogue.SetPlaceHolder("Dialogue…")
	dialogue.OnChanged = sess.SetPendingText

	guides := widget.NewCheck("Guides", func(on bool) {
		sess.SetGuides(on)
		pc.Refresh()
	})
	guides.SetChecked(sess.Guides())

	rotation := widget.NewEntry()
	rotation.SetPlaceHolder("deg")
	rotation.OnSubmitted = func(s string) { dispatch("rotate", "deg", s) }

	toolbar := container.NewVBox(
		container.NewHBox(
			templateSel, sceneSel, guides,
			widget.NewButton("Save", func() { dispatch("save") }),
			widget.NewButton("Load", func() { dispatch("load") }),
			widget.NewButton("Export", func() { dispatch("export-all") }),
			widget.NewButton("Copy JSON", func() { dispatch("copy-json") }),
			widget.NewButton("Publish", func() { dispatch("publish") }),
		),
		container.NewHBox(
			charSel,
			widget.NewButton("Add character", func() { dispatch("add-character", "type", charSel.Selected) }),
			layoutSel,
			widget.NewButton("Apply layout", func() { dispatch("apply-layout", "layout", layoutSel.Selected) }),
			widget.NewButton("Flip", func() { dispatch("flip") }),
			rotation,
			widget.NewButton("Delete", func() { dispatch("delete") }),
		),
		container.NewBorder(nil, nil, bubbleSel, container.NewHBox(
			widget.NewButton("Add bubble", func() {
				dispatch("add-bubble", "type", bubbleSel.Selected)
				dialogue.SetText(sess.PendingText())
			}),
			widget.NewButton("Auto-place", func() { dispatch("auto-place") }),
		), dialogue),
	)

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		dispatch(editor.Shortcuts["ctrl+s"])
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyE, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		dispatch(editor.Shortcuts["ctrl+e"])
	})
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			if _, err := sess.Key(context.Background(), "delete"); err != nil {
				dialog.ShowError(err, w)
			}
			pc.Refresh()
		case fyne.KeyEscape:
			sess.Controller().Cancel()
		}
	})
	// Losing focus mid-gesture must not leave the input lock held.
	fyneApp.Lifecycle().SetOnExitedForeground(func() { sess.Controller().Blur() })

	w.SetContent(container.NewBorder(toolbar, status, nil, nil, pc))
	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	return nil
}

// PageCanvas draws the session's display list and forwards pointer input to its controller.
type PageCanvas struct {
	widget.BaseWidget
	sess    *editor.Session
	zoom    float32
	offsetX float32
	offsetY float32
	// pressed is set between MouseDown and the matching MouseUp or DragEnd.
	pressed bool
	// locked is set while a resize holds the input claim; zoom and pan are frozen.
	locked bool
}

var (
	_ desktop.Mouseable = (*PageCanvas)(nil)
	_ fyne.Draggable    = (*PageCanvas)(nil)
	_ fyne.Scrollable   = (*PageCanvas)(nil)
)

func NewPageCanvas(sess *editor.Session) *PageCanvas {
	pc := &PageCanvas{sess: sess, zoom: 0.8}
	pc.ExtendBaseWidget(pc)
	return pc
}

// Claim installs the canvas as the holder-side hooks of l.
func (p *PageCanvas) Claim(l *interact.ExclusiveLock) {
	l.OnAcquire = func() { p.locked = true }
	l.OnRelease = func() { p.locked = false }
}

func (p *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &pageCanvasRenderer{pc: p, bg: canvas.NewRectangle(color.NRGBA{R: 30, G: 30, B: 34, A: 255})}
	r.rebuild(p.Size())
	return r
}

func (p *PageCanvas) MinSize() fyne.Size { return fyne.NewSize(480, 640) }

// Coordinate helpers: page <-> screen mapping
func (p *PageCanvas) pageOriginAndScale() (cx, cy, scale float32) {
	size := p.Size()
	c := p.sess.Model().Canvas()
	cx = size.Width/2 - float32(c.W)*p.zoom/2 + p.offsetX
	cy = size.Height/2 - float32(c.H)*p.zoom/2 + p.offsetY
	return cx, cy, p.zoom
}

func (p *PageCanvas) toScreen(pt geom.Pt) fyne.Position {
	cx, cy, s := p.pageOriginAndScale()
	return fyne.NewPos(cx+float32(pt.X)*s, cy+float32(pt.Y)*s)
}

func (p *PageCanvas) toPage(pos fyne.Position) geom.Pt {
	cx, cy, s := p.pageOriginAndScale()
	return geom.Pt{X: float64((pos.X - cx) / s), Y: float64((pos.Y - cy) / s)}
}

func (p *PageCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	p.pressed = true
	p.sess.Controller().Press(p.toPage(e.Position))
	p.Refresh()
}

func (p *PageCanvas) MouseUp(e *desktop.MouseEvent) {
	if !p.pressed {
		return
	}
	p.pressed = false
	p.sess.Controller().PointerUp(p.toPage(e.Position))
}

func (p *PageCanvas) Dragged(e *fyne.DragEvent) {
	if !p.sess.Controller().Active() {
		if p.locked {
			return
		}
		// No gesture: a drag on empty space pans the page.
		p.offsetX += e.Dragged.DX
		p.offsetY += e.Dragged.DY
		p.Refresh()
		return
	}
	p.sess.Controller().PointerMove(p.toPage(e.Position))
}

func (p *PageCanvas) DragEnd() {
	p.pressed = false
	p.sess.Controller().PointerUp(geom.Pt{})
}

// Scrolled zooms with the wheel unless a resize holds the input claim.
func (p *PageCanvas) Scrolled(e *fyne.ScrollEvent) {
	if p.locked {
		return
	}
	p.zoom = min(max(p.zoom+e.Scrolled.DY*0.05, 0.2), 4.0)
	p.Refresh()
}

// pageCanvasRenderer lays out one canvas object per display-list item.
type pageCanvasRenderer struct {
	pc      *PageCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *pageCanvasRenderer) Destroy()                     {}
func (r *pageCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *pageCanvasRenderer) MinSize() fyne.Size           { return r.pc.MinSize() }
func (r *pageCanvasRenderer) Layout(size fyne.Size)        { r.rebuild(size) }
func (r *pageCanvasRenderer) Refresh() {
	r.rebuild(r.pc.Size())
	canvas.Refresh(r.pc)
}

func (r *pageCanvasRenderer) rebuild(size fyne.Size) {
	p := r.pc
	f := p.sess.Frame()
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	objs := []fyne.CanvasObject{r.bg}

	page := canvas.NewRectangle(nrgba(f.Background))
	objs = append(objs, place(page, p, geom.R(0, 0, f.Width, f.Height)))

	for _, pd := range f.Panels {
		rc := canvas.NewRectangle(nrgba(pd.Fill))
		rc.StrokeColor = nrgba(pd.Stroke)
		rc.StrokeWidth = float32(pd.StrokeWidth) * p.zoom
		objs = append(objs, place(rc, p, pd.Rect))
		id := canvas.NewText(strconv.Itoa(pd.ID), nrgba(pd.Stroke))
		id.TextSize = 10
		id.Move(p.toScreen(geom.Pt{X: pd.Rect.X + 4, Y: pd.Rect.Y + 2}))
		objs = append(objs, id)
	}
	for _, g := range f.Guides {
		ln := canvas.NewLine(nrgba(render.GuideColor))
		ln.StrokeWidth = 1
		if g.Orientation == geom.Vertical {
			ln.Position1 = p.toScreen(geom.Pt{X: g.Position, Y: g.From})
			ln.Position2 = p.toScreen(geom.Pt{X: g.Position, Y: g.To})
		} else {
			ln.Position1 = p.toScreen(geom.Pt{X: g.From, Y: g.Position})
			ln.Position2 = p.toScreen(geom.Pt{X: g.To, Y: g.Position})
		}
		objs = append(objs, ln)
	}
	for _, o := range f.Overlays {
		objs = append(objs, overlayObjects(p, o)...)
	}
	for _, h := range f.Handles {
		hr := canvas.NewRectangle(nrgba(render.Highlight))
		objs = append(objs, place(hr, p, h))
	}
	r.objects = objs
}

func overlayObjects(p *PageCanvas, o render.Overlay) []fyne.CanvasObject {
	line, fill := render.BubbleLine, render.White
	if o.Kind == "character" {
		line, fill = render.FigureLine, render.FigureFill
	}
	if o.Selected {
		line = render.Highlight
	}
	var shape fyne.CanvasObject
	switch o.Shape {
	case render.ShapeEllipse, render.ShapeCloud, render.ShapeBurst:
		c := canvas.NewCircle(nrgba(fill))
		c.StrokeColor = nrgba(line)
		c.StrokeWidth = 1.5
		shape = place(c, p, o.Box)
	default:
		rc := canvas.NewRectangle(nrgba(fill))
		rc.StrokeColor = nrgba(line)
		rc.StrokeWidth = 1.5
		if o.Kind == "character" {
			rc.CornerRadius = 6 * p.zoom
		}
		shape = place(rc, p, o.Box)
	}
	label := o.Label
	if o.Flip {
		label = "⇋ " + label
	}
	if o.Rotation != 0 {
		label = fmt.Sprintf("%s %+.0f°", label, o.Rotation)
	}
	txt := canvas.NewText(label, nrgba(render.Black))
	txt.TextSize = max(8, 11*p.zoom)
	txt.Alignment = fyne.TextAlignCenter
	c := o.Box.Center()
	pos := p.toScreen(geom.Pt{X: o.Box.X, Y: c.Y})
	txt.Resize(fyne.NewSize(float32(o.Box.W)*p.zoom, txt.MinSize().Height))
	txt.Move(fyne.NewPos(pos.X, pos.Y-txt.MinSize().Height/2))
	return []fyne.CanvasObject{shape, txt}
}

func place(obj fyne.CanvasObject, p *PageCanvas, r geom.Rect) fyne.CanvasObject {
	obj.Move(p.toScreen(geom.Pt{X: r.X, Y: r.Y}))
	obj.Resize(fyne.NewSize(float32(r.W)*p.zoom, float32(r.H)*p.zoom))
	return obj
}

func nrgba(c render.Color) color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }
