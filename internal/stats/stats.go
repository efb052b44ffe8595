// Package stats aggregates cell values over a working set. Missing values are
// skipped, never counted as zero, and every function returns zeroed results for
// empty input.
package stats

import (
	"math"
	"sort"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// Summary backs the KPI cards.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P90   float64 `json:"p90"`
}

// Summarize counts the working set and computes the mean and nearest-rank
// 90th percentile of f over its numeric values. The percentile index is
// floor(0.9*n) on the sorted numeric values.
func Summarize(set []*cells.Record, f cells.Field) Summary {
	s := Summary{Count: len(set)}
	values := numeric(set, f)
	if len(values) == 0 {
		return s
	}
	sort.Float64s(values)
	s.Mean = mean(values)
	s.P90 = values[int(math.Floor(0.9*float64(len(values))))]
	return s
}

// RadarPoint is one radar axis.
type RadarPoint struct {
	Label string  `json:"index"`
	Value float64 `json:"value"`
}

// RadarProfile returns the mean of each index's normalized column, in the
// order of indices. An empty set yields zero values on every axis.
func RadarProfile(set []*cells.Record, indices []cells.Index) []RadarPoint {
	out := make([]RadarPoint, len(indices))
	for i, idx := range indices {
		out[i] = RadarPoint{
			Label: cells.AxisLabel(idx.Normalized),
			Value: mean(numeric(set, idx.Normalized)),
		}
	}
	return out
}

// IndexCard holds raw and normalized means of one composite index.
type IndexCard struct {
	Key            string  `json:"key"`
	Label          string  `json:"label"`
	Normalized     string  `json:"normalized"`
	RawMean        float64 `json:"raw_mean"`
	NormalizedMean float64 `json:"normalized_mean"`
	Active         bool    `json:"active"`
}

// IndexCards computes the index panel. active marks the card whose normalized
// column is the displayed field.
func IndexCards(set []*cells.Record, indices []cells.Index, active cells.Field) []IndexCard {
	out := make([]IndexCard, len(indices))
	for i, idx := range indices {
		out[i] = IndexCard{
			Key:            idx.Key,
			Label:          idx.Label,
			Normalized:     idx.Normalized.String(),
			RawMean:        mean(numeric(set, idx.Raw)),
			NormalizedMean: mean(numeric(set, idx.Normalized)),
			Active:         idx.Normalized == active,
		}
	}
	return out
}

// VariableMean holds the sidebar means of one variable.
type VariableMean struct {
	Key            string  `json:"key"`
	Label          string  `json:"label"`
	Editable       bool    `json:"editable"`
	RawMean        float64 `json:"raw_mean"`
	NormalizedMean float64 `json:"normalized_mean"`
}

// VariableMeans computes the sidebar means.
func VariableMeans(set []*cells.Record, vars []cells.Variable) []VariableMean {
	out := make([]VariableMean, len(vars))
	for i, v := range vars {
		out[i] = VariableMean{
			Key:            v.Key.String(),
			Label:          v.Label,
			Editable:       v.Editable,
			RawMean:        mean(numeric(set, v.Key)),
			NormalizedMean: mean(numeric(set, v.Normalized)),
		}
	}
	return out
}

// Total is the sum of one field over the numeric values of a set.
type Total struct {
	Key   string  `json:"key"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// Totals sums each field.
func Totals(set []*cells.Record, fields []cells.Field) []Total {
	out := make([]Total, len(fields))
	for i, f := range fields {
		values := numeric(set, f)
		out[i] = Total{Key: f.String(), Sum: sum(values), Count: len(values)}
	}
	return out
}

// DefaultBins is the histogram bin count.
const DefaultBins = 10

// Bin is one histogram bar over [Lo, Hi).
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram splits the numeric values of f into equal-width bins between
// their min and max. The max value falls in the last bin. When every value is
// equal, all of them land in the first bin.
func Histogram(set []*cells.Record, f cells.Field, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultBins
	}
	values := numeric(set, f)
	if len(values) == 0 {
		return []Bin{}
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lo: lo + float64(i)*width, Hi: lo + float64(i+1)*width}
	}
	for _, v := range values {
		b := 0
		if width > 0 {
			b = int(math.Floor((v - lo) / width))
			b = max(0, min(b, bins-1))
		}
		out[b].Count++
	}
	return out
}

// numeric returns the finite values of f. Missing and infinite values are skipped.
func numeric(set []*cells.Record, f cells.Field) []float64 {
	values := make([]float64, 0, len(set))
	for _, r := range set {
		if v := r.Value(f); !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	return values
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// mean sorts values in place before summing, so the result does not depend
// on the order of the working set.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	return sum(values) / float64(len(values))
}
