package render

import (
	"image/color"

	"github.com/zfe-tiles/server/internal/engine"
	"github.com/zfe-tiles/server/pkg/colormap"
)

// Style holds the colors of one basemap.
type Style struct {
	Background   color.Color
	Grid         color.Color
	Text         color.Color
	LegendFill   color.Color
	LegendStroke color.Color
}

var (
	darkText  = colormap.ParseHex("#374151")
	lightText = colormap.ParseHex("#ffffff")
	axisColor = colormap.ParseHex("#d1d5db")
	ringColor = colormap.ParseHex("#e5e7eb")
	seriesRGB = colormap.ParseHex("#003da5")
)

// StyleFor returns the colors of a basemap. Unknown names get the osm style.
func StyleFor(b engine.Basemap) Style {
	s := Style{
		Text:         darkText,
		LegendFill:   color.NRGBA{R: 255, G: 255, B: 255, A: 230},
		LegendStroke: axisColor,
	}
	switch b {
	case engine.BasemapEsri:
		s.Background, s.Grid = colormap.ParseHex("#f8f9fa"), colormap.ParseHex("#dee2e6")
	case engine.BasemapSatellite:
		s.Background, s.Grid = colormap.ParseHex("#2d3748"), colormap.ParseHex("#4a5568")
		s.Text = lightText
		s.LegendFill = color.NRGBA{R: 45, G: 55, B: 72, A: 230}
		s.LegendStroke = colormap.ParseHex("#718096")
	case engine.BasemapTopo:
		s.Background, s.Grid = colormap.ParseHex("#f7fafc"), colormap.ParseHex("#e2e8f0")
	default:
		s.Background, s.Grid = colormap.ParseHex("#ffffff"), ringColor
	}
	return s
}
