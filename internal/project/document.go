/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package project converts the scene model to and from the persisted
// project document and the shape handed to the downstream authoring tool.
package project

import (
	"fmt"
	"time"

	"namedraft/internal/scene"
	"namedraft/internal/version"
)

// FormatVersion is written into metadata.version.
const FormatVersion = "1.0"

// ProjectKey is the fixed name the project is stored under locally.
const ProjectKey = "name_project"

var now = time.Now

type Metadata struct {
	Created   time.Time `json:"created"`
	Version   string    `json:"version"`
	Generator string    `json:"generator,omitempty"`
}

// Document is the persisted project.
type Document struct {
	Panels        []scene.Panel     `json:"panels"`
	Characters    []scene.Character `json:"characters"`
	SpeechBubbles []scene.Bubble    `json:"speechBubbles"`
	CurrentPage   int               `json:"currentPage"`
	CurrentScene  string            `json:"currentScene"`
	Template      string            `json:"template,omitempty"`
	Metadata      Metadata          `json:"metadata"`
}

type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SceneInfo describes the page for the downstream tool.
type SceneInfo struct {
	Type     string `json:"type"`
	Page     int    `json:"page"`
	Template string `json:"template"`
	Layout   string `json:"layout,omitempty"`
	Camera   string `json:"camera,omitempty"`
}

// DownstreamDocument is the project shaped for an external authoring tool.
type DownstreamDocument struct {
	Canvas        Canvas            `json:"canvas"`
	Scene         SceneInfo         `json:"scene"`
	Panels        []scene.Panel     `json:"panels"`
	Characters    []scene.Character `json:"characters"`
	SpeechBubbles []scene.Bubble    `json:"speechBubbles"`
	Metadata      Metadata          `json:"metadata"`
}

// Export snapshots m into a Document. The first export of a model stamps its creation time;
// later exports, and exports of loaded projects, keep it.
func Export(m *scene.Model) Document {
	s := m.Snapshot()
	if s.Created.IsZero() {
		s.Created = now().UTC().Truncate(time.Second)
		m.SetCreated(s.Created)
	}
	return Document{
		Panels:        nonNil(s.Panels),
		Characters:    nonNil(s.Characters),
		SpeechBubbles: nonNil(s.Bubbles),
		CurrentPage:   s.Page,
		CurrentScene:  s.Scene,
		Template:      s.Template,
		Metadata:      Metadata{Created: s.Created, Version: FormatVersion},
	}
}

// ExportDownstream adds canvas size and the scene recommendation to the export.
func ExportDownstream(m *scene.Model) DownstreamDocument {
	doc := Export(m)
	canvas := m.Canvas()
	info := SceneInfo{Type: doc.CurrentScene, Page: doc.CurrentPage, Template: doc.Template}
	if rec, ok := m.Catalog().Recommend(doc.CurrentScene); ok {
		info.Layout = rec.Layout
		info.Camera = rec.Camera
	}
	meta := doc.Metadata
	meta.Generator = "namedraft " + version.String()
	return DownstreamDocument{
		Canvas:        Canvas{Width: canvas.W, Height: canvas.H},
		Scene:         info,
		Panels:        doc.Panels,
		Characters:    doc.Characters,
		SpeechBubbles: doc.SpeechBubbles,
		Metadata:      meta,
	}
}

// Apply replaces the content of m with doc.
func Apply(m *scene.Model, doc Document) error {
	err := m.Restore(scene.State{
		Panels:     doc.Panels,
		Characters: doc.Characters,
		Bubbles:    doc.SpeechBubbles,
		Page:       doc.CurrentPage,
		Scene:      doc.CurrentScene,
		Template:   doc.Template,
		Created:    doc.Metadata.Created,
	})
	if err != nil {
		return fmt.Errorf("apply project: %w", err)
	}
	return nil
}

// ProjectFileName is the download name of the project JSON for a page.
func ProjectFileName(page int) string { return fmt.Sprintf("%s_page%d.json", ProjectKey, page) }

// PNGFileName is the download name of the rendered page.
func PNGFileName(page int) string { return fmt.Sprintf("name_page%d.png", page) }

// PDFFileName is the download name of the printable page.
func PDFFileName(page int) string { return fmt.Sprintf("name_page%d.pdf", page) }

// DownstreamFileName is the download name of the downstream export.
func DownstreamFileName(page int) string { return fmt.Sprintf("name_downstream_page%d.json", page) }

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
