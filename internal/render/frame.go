package render

import (
	"image/color"

	"github.com/fogleman/gg"

	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/pkg/colormap"
)

const gridDivisions = 10

// Legend box geometry, anchored to the bottom-left corner.
const (
	legendX      = 20.0
	legendWidth  = 200.0
	legendHeight = 70.0
	legendBottom = 80.0
)

// RenderFrame draws the full canvas: background, grid, title, markers, legend
// and tooltip.
func (r *Renderer) RenderFrame(s engine.Scene) ([]byte, error) {
	style := StyleFor(s.Basemap)
	return r.draw(s.Width, s.Height, func(dc *gg.Context) {
		w, h := float64(s.Width), float64(s.Height)

		dc.SetColor(style.Background)
		dc.Clear()
		drawGrid(dc, w, h, style.Grid)

		if s.Title != "" {
			dc.SetColor(style.Text)
			dc.DrawString(s.Title, 20, 30)
		}

		drawMarkers(dc, s.Markers)
		if len(s.Legend) > 0 {
			drawLegend(dc, h, s.Legend, style)
		}
		if s.Tooltip != nil {
			drawTooltip(dc, w, s.Tooltip)
		}
	})
}

// RenderTile draws the markers of one map tile on a transparent background.
func (r *Renderer) RenderTile(s engine.Scene) ([]byte, error) {
	if len(s.Markers) == 0 {
		return r.CreateEmptyTile()
	}
	size := s.Width
	if size <= 0 {
		size = r.config.TileSize
	}
	return r.draw(size, size, func(dc *gg.Context) {
		dc.SetColor(color.Transparent)
		dc.Clear()
		drawMarkers(dc, s.Markers)
	})
}

func drawGrid(dc *gg.Context, w, h float64, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(0.5)
	for i := 0; i <= gridDivisions; i++ {
		x := w / gridDivisions * float64(i)
		y := h / gridDivisions * float64(i)
		dc.DrawLine(x, 0, x, h)
		dc.Stroke()
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
	}
}

func drawMarkers(dc *gg.Context, markers []engine.Marker) {
	for _, m := range markers {
		dc.SetColor(colormap.Buckets.AtIndex(int(m.Bucket)))
		dc.DrawCircle(m.X, m.Y, m.Radius)
		if !m.Selected {
			dc.Fill()
			continue
		}
		dc.FillPreserve()
		dc.SetColor(color.Black)
		dc.SetLineWidth(engine.SelectedWidth)
		dc.Stroke()
	}
}

func drawLegend(dc *gg.Context, h float64, items []colormap.LegendItem, style Style) {
	top := h - legendBottom

	dc.SetColor(style.LegendFill)
	dc.DrawRectangle(legendX, top-10, legendWidth, legendHeight)
	dc.FillPreserve()
	dc.SetColor(style.LegendStroke)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetColor(style.Text)
	dc.DrawString("Legend", legendX+10, top+5)

	for i, item := range items {
		y := top + 15 + float64(i)*12
		dc.SetColor(colormap.ParseHex(item.Color))
		dc.DrawCircle(legendX+15, y, 4)
		dc.Fill()
		dc.SetColor(style.Text)
		dc.DrawString(item.Label, legendX+25, y+3)
	}
}

// drawTooltip draws the hover card with its bottom-left corner at the
// tooltip anchor, shifted left when it would overflow the surface.
func drawTooltip(dc *gg.Context, w float64, t *engine.Tooltip) {
	const pad, lineHeight = 8.0, 15.0

	lines := append([]string{t.Title}, t.Lines...)
	var textWidth float64
	for _, l := range lines {
		if lw, _ := dc.MeasureString(l); lw > textWidth {
			textWidth = lw
		}
	}
	boxW := textWidth + 2*pad
	boxH := float64(len(lines))*lineHeight + 2*pad
	x, y := t.X, t.Y-boxH
	if x+boxW > w {
		x = w - boxW
	}
	if y < 0 {
		y = 0
	}

	dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 242})
	dc.DrawRectangle(x, y, boxW, boxH)
	dc.FillPreserve()
	dc.SetColor(axisColor)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetColor(darkText)
	for i, l := range lines {
		dc.DrawStringAnchored(l, x+pad, y+pad+float64(i)*lineHeight, 0, 1)
	}
}
