/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	applog "namedraft/internal/log"
)

// File is one artifact of an export bundle. Write renders its content.
type File struct {
	Name  string
	Write func(w io.Writer) error
}

// ExportBundle renders and writes every file into dir concurrently. It returns the written paths in
// the order of files. The first failure cancels the remaining work.
func ExportBundle(ctx context.Context, dir string, files []File) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "export_bundle").With(slog.String("dir", dir))
	paths := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := f.Write(&buf); err != nil {
				return fmt.Errorf("render %s: %w", f.Name, err)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			p := filepath.Join(dir, f.Name)
			if err := WriteFileAtomic(p, buf.Bytes()); err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Error("export failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("export written", slog.Int("files", len(files)))
	return paths, nil
}
