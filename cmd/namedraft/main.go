/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"namedraft/internal/backend"
	"namedraft/internal/config"
	"namedraft/internal/crash"
	"namedraft/internal/editor"
	"namedraft/internal/interact"
	applog "namedraft/internal/log"
	"namedraft/internal/presets"
	"namedraft/internal/render"
	"namedraft/internal/server"
	"namedraft/internal/storage"
	"namedraft/internal/ui"
	"namedraft/internal/version"
)

const envHubSecret = "ND_HUB_SECRET"

func usage() {
	fmt.Println("NameDraft - manga name storyboard editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  namedraft version|-v|--version            Show version")
	fmt.Println("  namedraft templates                       List templates, layouts, scenes and character types")
	fmt.Println("  namedraft new <template> <out.json> [scene]")
	fmt.Println("                                            Write a fresh project from a template")
	fmt.Println("  namedraft render <project.json> <out.png|out.pdf>")
	fmt.Println("                                            Render a project page")
	fmt.Println("  namedraft export <project.json> [<dir>]   Write project JSON, downstream JSON, PNG and PDF")
	fmt.Println("  namedraft publish <project.json>          Send the downstream document to the authoring tool")
	fmt.Println("  namedraft token <value>|--delete          Store or remove the downstream token in the OS keychain")
	fmt.Println("  namedraft serve [<addr>]                  Run the editor behind a local HTTP API")
	fmt.Println("  namedraft hub [<addr>]                    Run the Postgres-backed publishing hub")
	fmt.Println("  namedraft ui                              Launch desktop UI (build with -tags fyne for full UI)")
}

// sessionRef lets the crash handler reach a session created after the defer is registered.
type sessionRef struct{ sess *editor.Session }

func (r *sessionRef) Document() ([]byte, error) {
	if r.sess == nil {
		return nil, errors.New("no session")
	}
	return r.sess.Document()
}

func main() {
	cfg, token, cfgErr := config.Load()
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", cfgErr))
	}
	dataDir, err := config.Dir()
	if err != nil {
		dataDir = ""
	}
	ref := &sessionRef{}
	defer crash.Recover(dataDir, ref)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("NameDraft")
		fmt.Println(version.String())
	case "templates":
		cat := mustCatalog(l, cfg)
		fmt.Println("Templates:      ", strings.Join(cat.TemplateNames(), ", "))
		fmt.Println("Layouts:        ", strings.Join(cat.LayoutNames(), ", "))
		fmt.Println("Scenes:         ", strings.Join(cat.SceneNames(), ", "))
		fmt.Println("Character types:", strings.Join(cat.CharacterTypes(), ", "))
		fmt.Println("Bubble types:   ", strings.Join(cat.BubbleTypes(), ", "))
	case "new":
		if len(args) < 4 {
			fmt.Println("new requires <template> and <out.json>")
			usage()
			os.Exit(2)
		}
		sess := newSession(l, cfg, mustCatalog(l, cfg), editor.Options{})
		ref.sess = sess
		dispatch(ctx, l, sess, editor.Command{Name: "template", Args: map[string]string{"name": args[2]}})
		if len(args) >= 5 {
			dispatch(ctx, l, sess, editor.Command{Name: "scene", Args: map[string]string{"name": args[4]}})
		}
		b, err := sess.Document()
		if err != nil {
			fail(l, "encode failed", err)
		}
		if err := storage.WriteFileAtomic(args[3], b); err != nil {
			fail(l, "write failed", err)
		}
		fmt.Println("Created project at", args[3])
	case "render":
		if len(args) < 4 {
			fmt.Println("render requires <project.json> and <out.png|out.pdf>")
			usage()
			os.Exit(2)
		}
		sess := loadSession(ctx, l, cfg, args[2], editor.Options{})
		ref.sess = sess
		encode := render.PNG
		if strings.EqualFold(filepath.Ext(args[3]), ".pdf") {
			encode = render.PDF
		}
		if err := renderTo(sess.Frame(), encode, args[3]); err != nil {
			fail(l, "render failed", err)
		}
		fmt.Println("Rendered", args[3])
	case "export":
		if len(args) < 3 {
			fmt.Println("export requires <project.json>")
			usage()
			os.Exit(2)
		}
		dir := cfg.Editor.ExportDir
		if len(args) >= 4 {
			dir = args[3]
		}
		sess := loadSession(ctx, l, cfg, args[2], editor.Options{ExportDir: dir})
		ref.sess = sess
		res, err := sess.ExportAll(ctx, dir)
		if err != nil {
			fail(l, "export failed", err)
		}
		for _, f := range res.Files {
			fmt.Println("Wrote", f)
		}
	case "publish":
		if len(args) < 3 {
			fmt.Println("publish requires <project.json>")
			usage()
			os.Exit(2)
		}
		sess := loadSession(ctx, l, cfg, args[2], editor.Options{Publisher: publisher(cfg, token)})
		ref.sess = sess
		res := dispatch(ctx, l, sess, editor.Command{Name: "publish"})
		fmt.Println(res.Notice)
	case "token":
		if len(args) < 3 {
			fmt.Println("token requires <value> or --delete")
			usage()
			os.Exit(2)
		}
		if args[2] == "--delete" {
			if err := config.DeleteToken(); err != nil {
				fail(l, "delete token failed", err)
			}
			fmt.Println("Token removed")
			return
		}
		if err := config.Save(cfg, args[2]); err != nil {
			fail(l, "store token failed", err)
		}
		fmt.Println("Token stored in the OS keychain")
	case "serve":
		addr := cfg.Server.Addr
		if len(args) >= 3 {
			addr = args[2]
		}
		sess, closeStore := interactiveSession(ctx, l, cfg, token, nil)
		defer closeStore()
		ref.sess = sess
		srv := server.New(sess)
		fmt.Println("Serving editor on", addr)
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			fail(l, "serve failed", err)
		}
	case "hub":
		addr := ":8080"
		if len(args) >= 3 {
			addr = args[2]
		}
		dsn := strings.TrimSpace(cfg.Storage.PostgresDSN)
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			fmt.Println("hub requires storage.postgres_dsn, ND_PG_DSN or DATABASE_URL")
			os.Exit(2)
		}
		secret := os.Getenv(envHubSecret)
		if secret == "" {
			l.Warn("using development hub secret", slog.String("env", envHubSecret))
			secret = backend.DevSecret
		}
		if err := backend.Serve(ctx, addr, dsn, secret); err != nil {
			fail(l, "hub failed", err)
		}
	case "ui":
		lock := &interact.ExclusiveLock{}
		sess, closeStore := interactiveSession(ctx, l, cfg, token, lock)
		defer closeStore()
		ref.sess = sess
		if err := ui.Run(sess, lock, dataDir); err != nil {
			fmt.Println("Error:", err)
			usage()
			os.Exit(1)
		}
	default:
		usage()
	}
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func mustCatalog(l *slog.Logger, cfg config.AppConfig) *presets.Catalog {
	path := strings.TrimSpace(cfg.Editor.PresetsFile)
	if path == "" {
		return presets.Default()
	}
	cat, err := presets.LoadFile(path)
	if err != nil {
		fail(l, "load presets failed", err)
	}
	return cat
}

func newSession(l *slog.Logger, cfg config.AppConfig, cat *presets.Catalog, opts editor.Options) *editor.Session {
	if opts.ExportDir == "" {
		opts.ExportDir = cfg.Editor.ExportDir
	}
	opts.Guides = cfg.Editor.Guides
	opts.Logger = applog.WithComponent("editor")
	l.Debug("session", slog.String("export_dir", opts.ExportDir), slog.Bool("guides", opts.Guides))
	return editor.New(cat, opts)
}

func loadSession(ctx context.Context, l *slog.Logger, cfg config.AppConfig, file string, opts editor.Options) *editor.Session {
	sess := newSession(l, cfg, mustCatalog(l, cfg), opts)
	dispatch(ctx, l, sess, editor.Command{Name: "load", Args: map[string]string{"file": file}})
	return sess
}

// interactiveSession wires the configured store, the downstream publisher and the presets
// watcher. lock, when non-nil, is claimed by resize gestures. The returned func closes the store.
func interactiveSession(ctx context.Context, l *slog.Logger, cfg config.AppConfig, token string, lock interact.InputLock) (*editor.Session, func()) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fail(l, "open store failed", err)
	}
	cat := mustCatalog(l, cfg)
	if path := strings.TrimSpace(cfg.Editor.PresetsFile); path != "" {
		err := presets.Watch(ctx, path, func(next *presets.Catalog, err error) {
			if err != nil {
				l.Warn("presets reload failed", slog.Any("err", err))
				return
			}
			cat.Replace(next)
			l.Info("presets reloaded", slog.String("path", path))
		})
		if err != nil {
			l.Warn("presets watch disabled", slog.Any("err", err))
		}
	}
	sess := newSession(l, cfg, cat, editor.Options{Store: store, Publisher: publisher(cfg, token), InputLock: lock})
	if tpl := cfg.Editor.Template; tpl != "" {
		if _, err := sess.Dispatch(ctx, editor.Command{Name: "template", Args: map[string]string{"name": tpl}}); err != nil {
			l.Warn("default template", slog.String("name", tpl), slog.Any("err", err))
		}
	}
	if _, err := sess.Dispatch(ctx, editor.Command{Name: "load"}); err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.Warn("restore last project failed", slog.Any("err", err))
	}
	return sess, closeStore
}

func openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "postgres", "pg":
		pg, err := backend.OpenPG(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		path, err := cfg.SQLitePath()
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		st, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}
}

func publisher(cfg config.AppConfig, token string) editor.Publisher {
	if strings.TrimSpace(cfg.Downstream.BaseURL) == "" {
		return nil
	}
	return backend.NewClient(cfg.Downstream.BaseURL, token, cfg.Downstream.Timeout(), cfg.Downstream.RatePerS)
}

func dispatch(ctx context.Context, l *slog.Logger, sess *editor.Session, cmd editor.Command) editor.Result {
	res, err := sess.Dispatch(ctx, cmd)
	if err != nil {
		fail(l, cmd.Name+" failed", err)
	}
	return res
}

func renderTo(frame render.Frame, encode func(io.Writer, render.Frame) error, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := encode(f, frame); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
