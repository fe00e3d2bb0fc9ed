/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDF writes f as a single-page PDF sized to the canvas, one point per
// canvas unit. Labels use the built-in Helvetica.
func PDF(w io.Writer, f Frame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("render: empty canvas %vx%v", f.Width, f.Height)
	}
	size := gofpdf.SizeType{Wd: f.Width, Ht: f.Height}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle(fmt.Sprintf("name draft page %d", f.Page), false)
	pdf.SetCreator("namedraft", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("P", size)

	setFill(pdf, f.Background)
	pdf.Rect(0, 0, f.Width, f.Height, "F")

	for _, p := range f.Panels {
		setFill(pdf, p.Fill)
		setDraw(pdf, p.Stroke)
		pdf.SetLineWidth(p.StrokeWidth)
		pdf.Rect(p.Rect.X, p.Rect.Y, p.Rect.W, p.Rect.H, "FD")
	}

	if len(f.Guides) > 0 {
		setDraw(pdf, GuideColor)
		pdf.SetLineWidth(0.5)
		pdf.SetDashPattern([]float64{4, 4}, 0)
		for _, g := range f.Guides {
			pdf.Line(g.From.X, g.From.Y, g.To.X, g.To.Y)
		}
		pdf.SetDashPattern(nil, 0)
	}

	pdf.SetFont("Helvetica", "", labelSize)
	for _, o := range f.Overlays {
		b := o.Box
		c := b.Center()
		pdf.TransformBegin()
		if o.Rotation != 0 {
			// gofpdf rotates counter-clockwise; canvas degrees turn clockwise
			pdf.TransformRotate(-o.Rotation, c.X, c.Y)
		}
		if o.Flip {
			pdf.TransformMirrorHorizontal(c.X)
		}
		if o.Dashed {
			pdf.SetDashPattern([]float64{3, 3}, 0)
		}
		pdf.SetLineWidth(1.5)
		switch o.Shape {
		case ShapeFigure:
			setFill(pdf, blend(White, FigureFill))
			setDraw(pdf, FigureLine)
			pdf.Rect(b.X, b.Y, b.W, b.H, "FD")
		case ShapeBox:
			setFill(pdf, White)
			setDraw(pdf, BubbleLine)
			pdf.Rect(b.X, b.Y, b.W, b.H, "FD")
		default:
			setFill(pdf, White)
			setDraw(pdf, BubbleLine)
			pdf.Ellipse(c.X, c.Y, b.W/2, b.H/2, 0, "FD")
		}
		pdf.SetDashPattern(nil, 0)
		pdf.TransformEnd()

		if o.Selected {
			setDraw(pdf, Highlight)
			pdf.SetLineWidth(2)
			pdf.Rect(b.X-2, b.Y-2, b.W+4, b.H+4, "D")
		}
		if o.Label != "" {
			setText(pdf, Black)
			tw := pdf.GetStringWidth(o.Label)
			y := c.Y + labelSize/3
			if o.Shape == ShapeFigure {
				y = b.Y + b.H + labelSize
			}
			pdf.Text(c.X-tw/2, y, o.Label)
		}
	}

	setFill(pdf, Highlight)
	for _, h := range f.Handles {
		pdf.Rect(h.X, h.Y, h.W, h.H, "F")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render: write pdf: %w", err)
	}
	return nil
}

func setDraw(pdf *gofpdf.Fpdf, c Color) { pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }
func setFill(pdf *gofpdf.Fpdf, c Color) { pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }
func setText(pdf *gofpdf.Fpdf, c Color) { pdf.SetTextColor(int(c.R), int(c.G), int(c.B)) }
