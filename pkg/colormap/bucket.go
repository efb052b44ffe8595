package colormap

import (
	"image/color"
	"math"
)

// Bucket is an ordinal value class used for cell coloring.
type Bucket int

const (
	Low Bucket = iota
	Medium
	High
	VeryHigh
)

// Upper bounds of Low, Medium and High. A value equal to a bound belongs to
// the lower bucket.
const (
	LowMax    = 0.25
	MediumMax = 0.5
	HighMax   = 0.75
)

var bucketNames = [...]string{"low", "medium", "high", "very_high"}

func (b Bucket) String() string {
	if b < Low || b > VeryHigh {
		return "unknown"
	}
	return bucketNames[b]
}

// Classify returns the bucket for v. ok is false for NaN; such points are not drawn.
func Classify(v float64) (b Bucket, ok bool) {
	switch {
	case math.IsNaN(v):
		return 0, false
	case v > HighMax:
		return VeryHigh, true
	case v > MediumMax:
		return High, true
	case v > LowMax:
		return Medium, true
	default:
		return Low, true
	}
}

// BucketColormap colors values by bucket.
type BucketColormap struct {
	colors [4]color.RGBA
}

// Buckets is the cell palette, blue to red.
var Buckets = BucketColormap{
	colors: [4]color.RGBA{
		{0x00, 0x3d, 0xa5, 255},
		{0x66, 0xbb, 0x6a, 255},
		{0xff, 0xa7, 0x26, 255},
		{0xff, 0x3d, 0x00, 255},
	},
}

// At returns the bucket color for t. NaN maps to the Low color; callers that
// must skip missing values use Classify first.
func (c BucketColormap) At(t float64) color.Color {
	b, _ := Classify(t)
	return c.colors[b]
}

// AtIndex returns the color of bucket i, clamped to the valid range.
func (c BucketColormap) AtIndex(i int) color.Color {
	if i < 0 {
		i = 0
	}
	if i > int(VeryHigh) {
		i = int(VeryHigh)
	}
	return c.colors[i]
}

// LegendItem is one legend row.
type LegendItem struct {
	Bucket string  `json:"bucket"`
	Color  string  `json:"color"`
	Label  string  `json:"label"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Legend returns the four legend rows in bucket order.
func Legend() []LegendItem {
	return []LegendItem{
		{Bucket: Low.String(), Color: Hex(Buckets.colors[Low]), Label: "Low (0-0.25)", Min: 0, Max: LowMax},
		{Bucket: Medium.String(), Color: Hex(Buckets.colors[Medium]), Label: "Medium (0.25-0.5)", Min: LowMax, Max: MediumMax},
		{Bucket: High.String(), Color: Hex(Buckets.colors[High]), Label: "High (0.5-0.75)", Min: MediumMax, Max: HighMax},
		{Bucket: VeryHigh.String(), Color: Hex(Buckets.colors[VeryHigh]), Label: "Very high (0.75-1)", Min: HighMax, Max: 1},
	}
}
