package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/zfe-tiles/server/internal/stats"
	"github.com/zfe-tiles/server/pkg/colormap"
)

// Chart surfaces in pixels.
const (
	RadarSize       = 200
	HistogramWidth  = 300
	HistogramHeight = 150

	radarRings = 5
)

var histogramMargin = struct{ top, right, bottom, left float64 }{20, 20, 30, 40}

// RenderRadar draws the radar profile: five rings, one axis per point starting
// at 12 o'clock and a filled polygon of values clamped to [0, 1].
func (r *Renderer) RenderRadar(points []stats.RadarPoint) ([]byte, error) {
	return r.draw(RadarSize, RadarSize, func(dc *gg.Context) {
		dc.SetColor(color.Transparent)
		dc.Clear()
		if len(points) == 0 {
			return
		}

		c := float64(RadarSize) / 2
		radius := c - 40
		step := 2 * math.Pi / float64(len(points))
		at := func(i int, dist float64) (float64, float64) {
			angle := float64(i)*step - math.Pi/2
			return c + math.Cos(angle)*dist, c + math.Sin(angle)*dist
		}

		dc.SetLineWidth(1)
		dc.SetColor(ringColor)
		for i := 1; i <= radarRings; i++ {
			dc.DrawCircle(c, c, radius*float64(i)/radarRings)
			dc.Stroke()
		}

		dc.SetColor(axisColor)
		for i := range points {
			x, y := at(i, radius)
			dc.DrawLine(c, c, x, y)
			dc.Stroke()
		}

		for i, p := range points {
			x, y := at(i, radius*clamp01(p.Value))
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.SetColor(color.NRGBA{R: seriesRGB.R, G: seriesRGB.G, B: seriesRGB.B, A: 51})
		dc.FillPreserve()
		dc.SetColor(seriesRGB)
		dc.SetLineWidth(2)
		dc.Stroke()

		dc.SetColor(darkText)
		for i, p := range points {
			x, y := at(i, radius+20)
			dc.DrawStringAnchored(p.Label, x, y, 0.5, 0.5)
		}
	})
}

// RenderHistogram draws equal-width bins as bars scaled to the tallest one,
// colored along viridis, with every other bin edge labelled.
func (r *Renderer) RenderHistogram(bins []stats.Bin) ([]byte, error) {
	return r.draw(HistogramWidth, HistogramHeight, func(dc *gg.Context) {
		dc.SetColor(color.Transparent)
		dc.Clear()
		if len(bins) == 0 {
			return
		}

		m := histogramMargin
		w, h := float64(HistogramWidth), float64(HistogramHeight)
		chartW := w - m.left - m.right
		chartH := h - m.top - m.bottom
		barW := chartW / float64(len(bins))
		baseline := h - m.bottom

		dc.SetColor(axisColor)
		dc.SetLineWidth(1)
		dc.DrawLine(m.left, m.top, m.left, baseline)
		dc.Stroke()
		dc.DrawLine(m.left, baseline, w-m.right, baseline)
		dc.Stroke()

		tallest := 0
		for _, b := range bins {
			if b.Count > tallest {
				tallest = b.Count
			}
		}
		for i, b := range bins {
			if tallest == 0 || b.Count == 0 {
				continue
			}
			barH := float64(b.Count) / float64(tallest) * chartH
			x := m.left + float64(i)*barW
			dc.SetColor(colormap.Viridis.At(float64(i) / math.Max(1, float64(len(bins)-1))))
			dc.DrawRectangle(x+1, baseline-barH, barW-2, barH)
			dc.Fill()
		}

		dc.SetColor(darkText)
		for i := 0; i <= len(bins); i += 2 {
			var edge float64
			if i < len(bins) {
				edge = bins[i].Lo
			} else {
				edge = bins[len(bins)-1].Hi
			}
			x := m.left + float64(i)*barW
			dc.DrawStringAnchored(fmt.Sprintf("%.2f", edge), x, baseline+5, 0.5, 1)
		}
	})
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
