/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"namedraft/internal/project"
	"namedraft/internal/scene"
)

type handler func(ctx context.Context, s *Session, a args) (Result, error)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"template":      cmdTemplate,
		"scene":         cmdScene,
		"page":          cmdPage,
		"select":        cmdSelect,
		"add-character": cmdAddCharacter,
		"add-bubble":    cmdAddBubble,
		"apply-layout":  cmdApplyLayout,
		"auto-place":    cmdAutoPlace,
		"delete":        cmdDelete,
		"toggle-guides": cmdToggleGuides,
		"set-pose":      cmdSetPose,
		"set-text":      cmdSetText,
		"rotate":        cmdRotate,
		"flip":          cmdFlip,
		"save":          cmdSave,
		"load":          cmdLoad,
		"export-json":   exportCmd(VariantJSON),
		"export-png":    exportCmd(VariantPNG),
		"export-pdf":    exportCmd(VariantPDF),
		"export-all":    exportCmd(VariantJSON, VariantDownstream, VariantPNG, VariantPDF),
		"copy-json":     cmdCopyJSON,
		"publish":       cmdPublish,
	}
}

// Commands lists every command name Dispatch accepts, sorted.
func Commands() []string {
	out := make([]string, 0, len(handlers))
	for k := range handlers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

type args map[string]string

func (a args) str(k string) string { return strings.TrimSpace(a[k]) }

func (a args) has(k string) bool {
	_, ok := a[k]
	return ok && strings.TrimSpace(a[k]) != ""
}

func (a args) float(op, k string, def float64) (float64, error) {
	if !a.has(k) {
		return def, nil
	}
	v, err := strconv.ParseFloat(a.str(k), 64)
	if err != nil {
		return 0, &scene.ValidationError{Op: op, Reason: k + " must be a number"}
	}
	return v, nil
}

func (a args) int(op, k string, def int) (int, error) {
	if !a.has(k) {
		return def, nil
	}
	v, err := strconv.Atoi(a.str(k))
	if err != nil {
		return 0, &scene.ValidationError{Op: op, Reason: k + " must be an integer"}
	}
	return v, nil
}

func required(op string, a args, k string) (string, error) {
	if !a.has(k) {
		return "", &scene.ValidationError{Op: op, Reason: k + " is required"}
	}
	return a.str(k), nil
}

// panelArg reads an explicit panel id or falls back to the selected panel (0 when none).
func (s *Session) panelArg(op string, a args) (int, error) {
	return a.int(op, "panel", s.model.SelectedPanel())
}

// selectedPanelArg returns the selected panel. An explicit panel argument must name that panel.
func (s *Session) selectedPanelArg(op string, a args) (int, error) {
	sel := s.model.SelectedPanel()
	if sel == 0 {
		return 0, &scene.ValidationError{Op: op, Reason: "select a panel first"}
	}
	p, err := a.int(op, "panel", sel)
	if err != nil {
		return 0, err
	}
	if p != sel {
		return 0, &scene.ValidationError{Op: op, Reason: "panel is not the selected panel"}
	}
	return sel, nil
}

// target resolves the element a command applies to: the id argument, else the selection.
func (s *Session) target(op string, a args) (scene.Kind, string, error) {
	if id := a.str("id"); id != "" {
		if _, ok := s.model.Character(id); ok {
			return scene.KindCharacter, id, nil
		}
		if _, ok := s.model.Bubble(id); ok {
			return scene.KindBubble, id, nil
		}
		return scene.KindNone, "", &scene.LookupError{Kind: "element", Name: id}
	}
	k, id, ok := s.model.SelectedElement()
	if !ok {
		return scene.KindNone, "", &scene.ValidationError{Op: op, Reason: "select a character or bubble first"}
	}
	return k, id, nil
}

func cmdTemplate(_ context.Context, s *Session, a args) (Result, error) {
	name, err := required("template", a, "name")
	if err != nil {
		return Result{}, err
	}
	if err := s.model.LoadTemplate(name); err != nil {
		return Result{}, err
	}
	return Result{Notice: fmt.Sprintf("template %s: %d panels", name, len(s.model.Panels()))}, nil
}

func cmdScene(_ context.Context, s *Session, a args) (Result, error) {
	kind, err := required("scene", a, "type")
	if err != nil {
		return Result{}, err
	}
	rec, err := s.model.SetScene(kind)
	if err != nil {
		return Result{}, err
	}
	return Result{Notice: fmt.Sprintf("template %s, layout %s, camera: %s", rec.Template, rec.Layout, rec.Camera)}, nil
}

func cmdPage(_ context.Context, s *Session, a args) (Result, error) {
	n, err := a.int("page", "n", 0)
	if err != nil {
		return Result{}, err
	}
	if err := s.model.SetPage(n); err != nil {
		return Result{}, err
	}
	return Result{Notice: fmt.Sprintf("page %d", n)}, nil
}

func cmdSelect(_ context.Context, s *Session, a args) (Result, error) {
	switch kind := a.str("kind"); kind {
	case "panel":
		id, err := a.int("select", "id", 0)
		if err != nil {
			return Result{}, err
		}
		return Result{}, s.model.SelectPanel(id)
	case "character":
		return Result{}, s.model.SelectCharacter(a.str("id"))
	case "bubble":
		return Result{}, s.model.SelectBubble(a.str("id"))
	case "", "none":
		s.model.ClearSelection()
		return Result{}, nil
	default:
		return Result{}, &scene.ValidationError{Op: "select", Reason: "unknown kind " + strconv.Quote(kind)}
	}
}

func cmdAddCharacter(_ context.Context, s *Session, a args) (Result, error) {
	panel, err := s.selectedPanelArg("add-character", a)
	if err != nil {
		return Result{}, err
	}
	kind := a.str("type")
	if kind == "" {
		kind = "hero"
	}
	c, err := s.model.AddCharacter(panel, kind)
	if err != nil {
		return Result{}, err
	}
	return Result{Notice: "added " + c.Name}, nil
}

func cmdAddBubble(_ context.Context, s *Session, a args) (Result, error) {
	panel, err := s.selectedPanelArg("add-bubble", a)
	if err != nil {
		return Result{}, err
	}
	kind := a.str("type")
	if kind == "" {
		kind = "speech"
	}
	text, ok := a["text"]
	if !ok {
		text = s.pending
	}
	b, err := s.model.AddBubble(panel, kind, text)
	if err != nil {
		return Result{}, err
	}
	s.pending = ""
	return Result{Notice: "added " + b.Type + " bubble"}, nil
}

func cmdApplyLayout(_ context.Context, s *Session, a args) (Result, error) {
	name, err := required("apply-layout", a, "layout")
	if err != nil {
		return Result{}, err
	}
	panel, err := s.panelArg("apply-layout", a)
	if err != nil {
		return Result{}, err
	}
	if panel == 0 {
		return Result{}, &scene.ValidationError{Op: "apply-layout", Reason: "select a panel first"}
	}
	if err := s.model.ApplyLayout(panel, name); err != nil {
		return Result{}, err
	}
	return Result{Notice: "layout " + name}, nil
}

func cmdAutoPlace(_ context.Context, s *Session, a args) (Result, error) {
	panel, err := s.panelArg("auto-place", a)
	if err != nil {
		return Result{}, err
	}
	if panel == 0 {
		return Result{}, &scene.ValidationError{Op: "auto-place", Reason: "select a panel first"}
	}
	return Result{}, s.model.AutoPlaceBubbles(panel)
}

func cmdDelete(_ context.Context, s *Session, _ args) (Result, error) {
	return Result{}, s.model.DeleteSelected()
}

func cmdToggleGuides(_ context.Context, s *Session, _ args) (Result, error) {
	s.guides = !s.guides
	if s.guides {
		return Result{Notice: "guides on"}, nil
	}
	return Result{Notice: "guides off"}, nil
}

func cmdSetPose(_ context.Context, s *Session, a args) (Result, error) {
	const op = "set-pose"
	k, id, err := s.target(op, a)
	if err != nil {
		return Result{}, err
	}
	var x, y, scale float64
	switch k {
	case scene.KindCharacter:
		c, _ := s.model.Character(id)
		x, y, scale = c.X, c.Y, c.Scale
	default:
		b, _ := s.model.Bubble(id)
		x, y, scale = b.X, b.Y, b.Scale
	}
	if x, err = a.float(op, "x", x); err != nil {
		return Result{}, err
	}
	if y, err = a.float(op, "y", y); err != nil {
		return Result{}, err
	}
	if scale, err = a.float(op, "scale", scale); err != nil {
		return Result{}, err
	}
	if k == scene.KindCharacter {
		return Result{}, s.model.SetCharacterPose(id, x, y, scale)
	}
	return Result{}, s.model.SetBubblePose(id, x, y, scale)
}

func (s *Session) characterTarget(op string, a args) (string, error) {
	k, id, err := s.target(op, a)
	if err != nil {
		return "", err
	}
	if k != scene.KindCharacter {
		return "", &scene.ValidationError{Op: op, Reason: "select a character first"}
	}
	return id, nil
}

func cmdRotate(_ context.Context, s *Session, a args) (Result, error) {
	id, err := s.characterTarget("rotate", a)
	if err != nil {
		return Result{}, err
	}
	if !a.has("deg") {
		return Result{}, &scene.ValidationError{Op: "rotate", Reason: "deg is required"}
	}
	deg, err := a.float("rotate", "deg", 0)
	if err != nil {
		return Result{}, err
	}
	return Result{}, s.model.SetCharacterRotation(id, deg)
}

func cmdFlip(_ context.Context, s *Session, a args) (Result, error) {
	id, err := s.characterTarget("flip", a)
	if err != nil {
		return Result{}, err
	}
	return Result{}, s.model.ToggleCharacterFlip(id)
}

func cmdSetText(_ context.Context, s *Session, a args) (Result, error) {
	k, id, err := s.target("set-text", a)
	if err != nil {
		return Result{}, err
	}
	if k != scene.KindBubble {
		return Result{}, &scene.ValidationError{Op: "set-text", Reason: "select a bubble first"}
	}
	return Result{}, s.model.SetBubbleText(id, a["text"])
}

func cmdSave(ctx context.Context, s *Session, _ args) (Result, error) {
	if s.store == nil {
		return Result{}, ErrNoStore
	}
	b, err := s.Document()
	if err != nil {
		return Result{}, err
	}
	if err := s.store.Save(ctx, project.ProjectKey, b); err != nil {
		return Result{}, fmt.Errorf("save project: %w", err)
	}
	return Result{Notice: "saved"}, nil
}

func cmdLoad(ctx context.Context, s *Session, a args) (Result, error) {
	var (
		data []byte
		err  error
	)
	if f := a.str("file"); f != "" {
		data, err = os.ReadFile(f)
	} else if s.store == nil {
		return Result{}, ErrNoStore
	} else {
		data, err = s.store.Load(ctx, project.ProjectKey)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load project: %w", err)
	}
	doc, err := project.Unmarshal(data)
	if err != nil {
		return Result{}, err
	}
	if err := project.Apply(s.model, doc); err != nil {
		return Result{}, err
	}
	return Result{Notice: fmt.Sprintf("loaded page %d", doc.CurrentPage)}, nil
}

func cmdCopyJSON(_ context.Context, s *Session, _ args) (Result, error) {
	b, err := s.DownstreamDocument()
	if err != nil {
		return Result{}, err
	}
	if err := s.clip(string(b)); err != nil {
		return Result{}, fmt.Errorf("copy to clipboard: %w", err)
	}
	return Result{Notice: "copied downstream JSON"}, nil
}

func cmdPublish(ctx context.Context, s *Session, _ args) (Result, error) {
	if s.pub == nil {
		return Result{}, ErrNoPublisher
	}
	b, err := s.DownstreamDocument()
	if err != nil {
		return Result{}, err
	}
	name := fmt.Sprintf("%s_page%d", project.ProjectKey, s.model.Page())
	rc, err := s.pub.Publish(ctx, name, b)
	if err != nil {
		return Result{}, fmt.Errorf("publish: %w", err)
	}
	return Result{Notice: fmt.Sprintf("published %s (%d bytes)", rc.Name, rc.Bytes)}, nil
}
