/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the host-facing side of the name editor. A Session owns one scene model and its
// interaction controller and turns named host commands (toolbar buttons, keyboard shortcuts, HTTP
// calls) into model operations, exports and saves.
//
// A Session is not safe for concurrent use; hosts serialise calls.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"

	"namedraft/internal/backend"
	"namedraft/internal/interact"
	applog "namedraft/internal/log"
	"namedraft/internal/presets"
	"namedraft/internal/project"
	"namedraft/internal/render"
	"namedraft/internal/scene"
	"namedraft/internal/storage"
)

// ErrUnknownCommand is returned by Dispatch for names it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoStore is returned by save and load when the session has no store.
var ErrNoStore = errors.New("no project store configured")

// ErrNoPublisher is returned by publish when no downstream tool is configured.
var ErrNoPublisher = errors.New("no downstream tool configured")

// Publisher sends a downstream document to the authoring tool.
type Publisher interface {
	Publish(ctx context.Context, name string, doc []byte) (backend.Receipt, error)
}

// Options wire a Session to its collaborators. Zero values disable the matching commands.
type Options struct {
	Store     storage.Store
	Publisher Publisher
	ExportDir string
	Guides    bool
	// Clipboard receives copied text; nil uses the system clipboard.
	Clipboard func(string) error
	// InputLock is claimed for the duration of a resize; nil means the host has nothing to suppress.
	InputLock interact.InputLock
	Logger    *slog.Logger
}

// Command is a named host request. Args are the string-typed parameters a toolbar, a shortcut or a
// request body carries.
type Command struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// Result reports what a command did.
type Result struct {
	Notice string   `json:"notice,omitempty"`
	Files  []string `json:"files,omitempty"`
}

type Session struct {
	model   *scene.Model
	ctrl    *interact.Controller
	cat     *presets.Catalog
	store   storage.Store
	pub     Publisher
	clip    func(string) error
	dir     string
	guides  bool
	pending string
	log     *slog.Logger
}

// New builds a session over cat. The model starts empty on page 1.
func New(cat *presets.Catalog, opts Options) *Session {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("editor")
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}
	dir := opts.ExportDir
	if dir == "" {
		dir = "."
	}
	m := scene.New(cat).WithLogger(l.With(slog.String("component", "scene")))
	return &Session{
		model:  m,
		ctrl:   interact.New(m, opts.InputLock).WithLogger(l.With(slog.String("component", "interact"))),
		cat:    cat,
		store:  opts.Store,
		pub:    opts.Publisher,
		clip:   clip,
		dir:    dir,
		guides: opts.Guides,
		log:    l,
	}
}

func (s *Session) Model() *scene.Model              { return s.model }
func (s *Session) Controller() *interact.Controller { return s.ctrl }
func (s *Session) Catalog() *presets.Catalog        { return s.cat }
func (s *Session) ExportDir() string                { return s.dir }

// Guides reports whether rule-of-thirds guides are drawn.
func (s *Session) Guides() bool { return s.guides }

// SetGuides sets the guides flag.
func (s *Session) SetGuides(on bool) { s.guides = on }

// PendingText is the dialogue text the next add-bubble uses when no text argument is given.
func (s *Session) PendingText() string { return s.pending }

// SetPendingText stores the dialogue input.
func (s *Session) SetPendingText(text string) { s.pending = text }

// Frame builds the current display list.
func (s *Session) Frame() render.Frame {
	return render.Build(s.model, render.Options{Guides: s.guides})
}

// Document returns the project export as indented JSON.
func (s *Session) Document() ([]byte, error) {
	return project.Marshal(project.Export(s.model))
}

// DownstreamDocument returns the downstream export as indented JSON.
func (s *Session) DownstreamDocument() ([]byte, error) {
	return project.Marshal(project.ExportDownstream(s.model))
}

// Dispatch runs a named command. Unknown template, layout, scene or stale panel references are
// logged and ignored. Validation failures are returned so the host can show a notice; nothing has
// changed when they occur.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	h, ok := handlers[cmd.Name]
	if !ok {
		return Result{}, &UnknownCommandError{Name: cmd.Name}
	}
	if s.ctrl.Active() {
		// A gesture owns the model until it ends.
		s.ctrl.Cancel()
	}
	res, err := h(ctx, s, args(cmd.Args))
	switch {
	case err == nil:
		s.log.Debug("command", slog.String("cmd", cmd.Name))
		return res, nil
	case scene.IsLookup(err):
		s.log.Debug("command ignored", slog.String("cmd", cmd.Name), slog.Any("err", err))
		return Result{}, nil
	case scene.IsValidation(err):
		s.log.Info("command rejected", slog.String("cmd", cmd.Name), slog.Any("err", err))
		return Result{}, err
	default:
		s.log.Error("command failed", slog.String("cmd", cmd.Name), slog.Any("err", err))
		return Result{}, err
	}
}

// UnknownCommandError names the command Dispatch could not route. It matches ErrUnknownCommand.
type UnknownCommandError struct{ Name string }

func (e *UnknownCommandError) Error() string        { return fmt.Sprintf("unknown command %q", e.Name) }
func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// Shortcuts maps host key chords to commands.
var Shortcuts = map[string]string{
	"ctrl+s":    "save",
	"ctrl+e":    "export-all",
	"delete":    "delete",
	"backspace": "delete",
}

// Key runs the command bound to a key chord. Unbound keys do nothing.
func (s *Session) Key(ctx context.Context, chord string) (Result, error) {
	name, ok := Shortcuts[chord]
	if !ok {
		return Result{}, nil
	}
	if _, _, sel := s.model.SelectedElement(); name == "delete" && !sel {
		return Result{}, nil
	}
	return s.Dispatch(ctx, Command{Name: name})
}
