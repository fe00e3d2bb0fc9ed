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
	"math"
	"sync"

	"namedraft/internal/geom"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const labelSize = 11.0

var (
	monoOnce sync.Once
	monoFont *truetype.Font
	monoErr  error
)

func labelFace() (font.Face, error) {
	monoOnce.Do(func() { monoFont, monoErr = truetype.Parse(gomono.TTF) })
	if monoErr != nil {
		return nil, fmt.Errorf("render: parse font: %w", monoErr)
	}
	return truetype.NewFace(monoFont, &truetype.Options{Size: labelSize, DPI: 72, Hinting: font.HintingFull}), nil
}

// PNG rasterises f at 1 pixel per canvas unit and writes it to w.
func PNG(w io.Writer, f Frame) error {
	dc, err := Raster(f)
	if err != nil {
		return err
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// Raster draws f into a new gg context.
func Raster(f Frame) (*gg.Context, error) {
	wpx, hpx := int(math.Ceil(f.Width)), int(math.Ceil(f.Height))
	if wpx <= 0 || hpx <= 0 {
		return nil, fmt.Errorf("render: empty canvas %vx%v", f.Width, f.Height)
	}
	face, err := labelFace()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(wpx, hpx)
	dc.SetFontFace(face)
	setColor(dc, f.Background)
	dc.Clear()

	for _, p := range f.Panels {
		setColor(dc, p.Fill)
		dc.DrawRectangle(p.Rect.X, p.Rect.Y, p.Rect.W, p.Rect.H)
		dc.Fill()
		setColor(dc, p.Stroke)
		dc.SetLineWidth(p.StrokeWidth)
		dc.DrawRectangle(p.Rect.X, p.Rect.Y, p.Rect.W, p.Rect.H)
		dc.Stroke()
	}

	if len(f.Guides) > 0 {
		dc.Push()
		setColor(dc, GuideColor)
		dc.SetLineWidth(1)
		dc.SetDash(4, 4)
		for _, g := range f.Guides {
			dc.DrawLine(g.From.X, g.From.Y, g.To.X, g.To.Y)
			dc.Stroke()
		}
		dc.Pop()
	}

	for _, o := range f.Overlays {
		drawOverlay(dc, o)
	}

	setColor(dc, Highlight)
	for _, h := range f.Handles {
		dc.DrawRectangle(h.X, h.Y, h.W, h.H)
		dc.Fill()
	}
	return dc, nil
}

func drawOverlay(dc *gg.Context, o Overlay) {
	b := o.Box
	c := b.Center()
	dc.Push()
	if o.Rotation != 0 {
		dc.RotateAbout(gg.Radians(o.Rotation), c.X, c.Y)
	}
	if o.Flip {
		dc.ScaleAbout(-1, 1, c.X, c.Y)
	}
	if o.Dashed {
		dc.SetDash(3, 3)
	}
	switch o.Shape {
	case ShapeFigure:
		setColor(dc, FigureFill)
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 4)
		dc.Fill()
		setColor(dc, FigureLine)
		dc.SetLineWidth(1.5)
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 4)
		dc.Stroke()
		// facing marker on the right edge; mirrored by flip
		dc.DrawCircle(b.X+b.W*0.8, b.Y+b.H*0.3, math.Max(2, b.H*0.08))
		dc.Fill()
	case ShapeBox:
		shapePath(dc, func() { dc.DrawRectangle(b.X, b.Y, b.W, b.H) })
	case ShapeBurst:
		shapePath(dc, func() { burst(dc, b) })
	case ShapeCloud:
		shapePath(dc, func() { dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, math.Min(b.W, b.H)/2) })
	default:
		shapePath(dc, func() { dc.DrawEllipse(c.X, c.Y, b.W/2, b.H/2) })
	}
	dc.Pop()

	if o.Selected {
		dc.Push()
		setColor(dc, Highlight)
		dc.SetLineWidth(2)
		dc.SetDash(5, 3)
		dc.DrawRectangle(b.X-2, b.Y-2, b.W+4, b.H+4)
		dc.Stroke()
		dc.Pop()
	}
	if o.Label != "" {
		setColor(dc, Black)
		if o.Shape == ShapeFigure {
			dc.DrawStringAnchored(o.Label, c.X, b.Y+b.H+labelSize, 0.5, 0)
		} else {
			dc.DrawStringWrapped(o.Label, c.X, c.Y, 0.5, 0.5, math.Max(b.W-12, 10), 1.2, gg.AlignCenter)
		}
	}
}

func shapePath(dc *gg.Context, path func()) {
	setColor(dc, White)
	path()
	dc.FillPreserve()
	setColor(dc, BubbleLine)
	dc.SetLineWidth(1.5)
	dc.Stroke()
}

// burst is a spiky outline for shouted lines.
func burst(dc *gg.Context, b geom.Rect) {
	c := b.Center()
	const spikes = 12
	for i := 0; i < spikes*2; i++ {
		r := 1.0
		if i%2 == 1 {
			r = 0.78
		}
		a := float64(i) * math.Pi / spikes
		x := c.X + math.Cos(a)*b.W/2*r
		y := c.Y + math.Sin(a)*b.H/2*r
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
}

func setColor(dc *gg.Context, c Color) {
	dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
}
