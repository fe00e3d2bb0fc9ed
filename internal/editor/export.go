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
	"io"

	"namedraft/internal/project"
	"namedraft/internal/render"
	"namedraft/internal/storage"
)

// Variant is one export file format.
type Variant int

const (
	VariantJSON Variant = iota
	VariantDownstream
	VariantPNG
	VariantPDF
)

func exportCmd(kinds ...Variant) handler {
	return func(ctx context.Context, s *Session, a args) (Result, error) {
		dir := a.str("dir")
		if dir == "" {
			dir = s.dir
		}
		return s.Export(ctx, dir, kinds...)
	}
}

// Export writes the requested variants of the current page into dir. Content is captured before
// any file is written, so the files agree with each other.
func (s *Session) Export(ctx context.Context, dir string, kinds ...Variant) (Result, error) {
	page := s.model.Page()
	doc := project.Export(s.model)
	down := project.ExportDownstream(s.model)
	frame := s.Frame()

	files := make([]storage.File, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case VariantJSON:
			files = append(files, storage.File{Name: project.ProjectFileName(page), Write: func(w io.Writer) error {
				return project.Encode(w, doc)
			}})
		case VariantDownstream:
			files = append(files, storage.File{Name: project.DownstreamFileName(page), Write: func(w io.Writer) error {
				return project.Encode(w, down)
			}})
		case VariantPNG:
			files = append(files, storage.File{Name: project.PNGFileName(page), Write: func(w io.Writer) error {
				return render.PNG(w, frame)
			}})
		case VariantPDF:
			files = append(files, storage.File{Name: project.PDFFileName(page), Write: func(w io.Writer) error {
				return render.PDF(w, frame)
			}})
		}
	}
	paths, err := storage.ExportBundle(ctx, dir, files)
	if err != nil {
		return Result{}, err
	}
	return Result{Notice: fmt.Sprintf("exported %d file(s)", len(paths)), Files: paths}, nil
}

// ExportAll writes every variant of the current page into dir.
func (s *Session) ExportAll(ctx context.Context, dir string) (Result, error) {
	return s.Export(ctx, dir, VariantJSON, VariantDownstream, VariantPNG, VariantPDF)
}
