/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes an editor Session over HTTP. Every request takes the same mutex, so
// pointer events, commands and renders are applied one at a time in arrival order.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"namedraft/internal/editor"
	"namedraft/internal/geom"
	applog "namedraft/internal/log"
	"namedraft/internal/project"
	"namedraft/internal/render"
	"namedraft/internal/scene"
	"namedraft/internal/version"
)

const maxBody = 1 << 20

// localArgs name filesystem paths. Only in-process callers (CLI, desktop UI) may pass them.
var localArgs = []string{"dir", "file"}

type Server struct {
	mu    sync.Mutex
	sess  *editor.Session
	pngs  *cache.Cache
	log   *slog.Logger
	start time.Time
}

// New wraps sess. Rendered PNGs are cached per model revision.
func New(sess *editor.Session) *Server {
	return &Server{
		sess:  sess,
		pngs:  cache.New(5*time.Minute, 10*time.Minute),
		log:   applog.WithComponent("server"),
		start: time.Now(),
	}
}

// Handler returns the routed mux. Cross-origin browser requests that change state are refused.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version": version.String(),
			"uptime":  time.Since(s.start).Round(time.Second).String(),
		})
	})
	mux.HandleFunc("GET /api/presets", s.presets)
	mux.HandleFunc("GET /api/project", s.project)
	mux.HandleFunc("GET /api/downstream", s.downstream)
	mux.HandleFunc("GET /api/frame", s.frame)
	mux.HandleFunc("GET /api/page.png", s.pagePNG)
	mux.HandleFunc("POST /api/commands/{name}", s.command)
	mux.HandleFunc("POST /api/keys/{chord}", s.key)
	mux.HandleFunc("POST /api/text", s.text)
	mux.HandleFunc("POST /api/pointer", s.pointer)
	return withLogging(s.log, http.NewCrossOriginProtection().Handler(mux))
}

// ListenAndServe serves on addr until ctx is done. Shutdown ends any active gesture.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		s.mu.Lock()
		s.sess.Controller().Blur()
		s.mu.Unlock()
	}()
	s.log.Info("listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) presets(w http.ResponseWriter, _ *http.Request) {
	cat := s.sess.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"templates":  cat.TemplateNames(),
		"layouts":    cat.LayoutNames(),
		"scenes":     cat.SceneNames(),
		"characters": cat.CharacterTypes(),
		"bubbles":    cat.BubbleTypes(),
		"commands":   editor.Commands(),
	})
}

func (s *Server) project(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := project.Export(s.sess.Model())
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) downstream(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := project.ExportDownstream(s.sess.Model())
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) frame(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	f := s.sess.Frame()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) pagePNG(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	key := fmt.Sprintf("%d/%t", s.sess.Model().Revision(), s.sess.Guides())
	var f render.Frame
	cached, hit := s.pngs.Get(key)
	if !hit {
		f = s.sess.Frame()
	}
	s.mu.Unlock()

	var png []byte
	if hit {
		png = cached.([]byte)
	} else {
		var buf bytes.Buffer
		if err := render.PNG(&buf, f); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		png = buf.Bytes()
		s.pngs.SetDefault(key, png)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", strconv.Quote(key))
	if r.Header.Get("If-None-Match") == strconv.Quote(key) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(png)
}

// command runs POST /api/commands/{name}; the optional body is a JSON object of string args.
func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	var a map[string]string
	if err := decodeBody(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, k := range localArgs {
		if _, ok := a[k]; ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("argument %q is not accepted over HTTP", k))
			return
		}
	}
	s.mu.Lock()
	res, err := s.sess.Dispatch(r.Context(), editor.Command{Name: r.PathValue("name"), Args: a})
	rev := s.sess.Model().Revision()
	s.mu.Unlock()
	s.respond(w, res, rev, err)
}

func (s *Server) key(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res, err := s.sess.Key(r.Context(), r.PathValue("chord"))
	rev := s.sess.Model().Revision()
	s.mu.Unlock()
	s.respond(w, res, rev, err)
}

func (s *Server) respond(w http.ResponseWriter, res editor.Result, rev uint64, err error) {
	var ve *scene.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"result": res, "revision": rev})
	case errors.Is(err, editor.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, editor.ErrNoStore), errors.Is(err, editor.ErrNoPublisher):
		writeError(w, http.StatusNotImplemented, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) text(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	s.sess.SetPendingText(req.Text)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// PointerEvent is the body of POST /api/pointer.
type PointerEvent struct {
	Event  string  `json:"event"` // down, press, move, up, blur, handle
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ID     string  `json:"id,omitempty"`     // handle: character id
	Corner string  `json:"corner,omitempty"` // handle: nw, ne, se, sw
}

// PointerState is the reply to a pointer event.
type PointerState struct {
	State     string `json:"state"`
	Selection struct {
		Kind    string `json:"kind"`
		PanelID int    `json:"panelId,omitempty"`
		ID      string `json:"id,omitempty"`
	} `json:"selection"`
	Revision uint64 `json:"revision"`
}

func (s *Server) pointer(w http.ResponseWriter, r *http.Request) {
	var ev PointerEvent
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pt := geom.Pt{X: ev.X, Y: ev.Y}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl := s.sess.Controller()
	switch ev.Event {
	case "down":
		ctrl.PointerDown(pt)
	case "press":
		ctrl.Press(pt)
	case "move":
		ctrl.PointerMove(pt)
	case "up":
		ctrl.PointerUp(pt)
	case "blur":
		ctrl.Blur()
	case "handle":
		c, ok := geom.ParseCorner(ev.Corner)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown corner %q", ev.Corner))
			return
		}
		if err := ctrl.HandleDown(ev.ID, c, pt); err != nil {
			if scene.IsLookup(err) {
				s.log.Debug("handle ignored", slog.Any("err", err))
				break
			}
			writeError(w, http.StatusConflict, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown pointer event %q", ev.Event))
		return
	}
	var st PointerState
	st.State = ctrl.State().String()
	sel := s.sess.Model().Selection()
	st.Selection.Kind = sel.Kind.String()
	st.Selection.PanelID = sel.PanelID
	st.Selection.ID = sel.ID
	st.Revision = s.sess.Model().Revision()
	writeJSON(w, http.StatusOK, st)
}

func decodeBody(r *http.Request, dst any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	_ = r.Body.Close()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		t0 := time.Now()
		next.ServeHTTP(rec, r)
		l.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("dur", time.Since(t0)),
		)
	})
}
