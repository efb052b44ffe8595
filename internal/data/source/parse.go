// Package source fetches and parses the delimited cell payload.
package source

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// DefaultIDColumn is the header of the cell identifier column.
const DefaultIDColumn = "idcar_200m"

// Options controls parsing.
type Options struct {
	IDColumn  string
	Delimiter rune
}

// Report summarizes one parse.
type Report struct {
	Rows           int      `json:"rows"`
	Dropped        int      `json:"dropped"`
	Unlocated      int      `json:"unlocated"`
	Duplicates     int      `json:"duplicates"`
	UnknownColumns []string `json:"unknown_columns,omitempty"`
}

// Parse reads a header row followed by one record per non-blank line.
// Rows whose column count differs from the header are dropped, as are
// located rows repeating an id already seen.
func Parse(r io.Reader, opts Options) (*cells.Dataset, Report, error) {
	var report Report

	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, report, eris.Wrap(ErrLoadFailed, "source: empty payload")
	}
	if err != nil {
		return nil, report, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: read header")
	}

	idPos := -1
	columns := make([]cells.Field, len(header))
	for i, h := range header {
		name := cleanCell(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == idColumn {
			idPos = i
			columns[i] = -1
			continue
		}
		f, ok := cells.ParseField(name)
		if !ok {
			columns[i] = -1
			if name != "" {
				report.UnknownColumns = append(report.UnknownColumns, name)
			}
			continue
		}
		columns[i] = f
	}
	if idPos < 0 {
		return nil, report, eris.Wrapf(ErrLoadFailed, "source: id column %q not in header", idColumn)
	}

	var records []cells.Record
	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: read row")
		}
		if blank(row) {
			continue
		}
		if len(row) != len(header) {
			report.Dropped++
			continue
		}

		values := make(map[cells.Field]float64, len(row))
		for i, raw := range row {
			f := columns[i]
			if f < 0 {
				continue
			}
			if v, ok := parseNumber(raw); ok {
				values[f] = v
			}
		}
		rec := cells.NewRecord(cleanCell(row[idPos]), values)
		if _, ok := rec.Location(); !ok {
			report.Unlocated++
		} else if _, dup := seen[rec.ID()]; dup {
			report.Duplicates++
			continue
		} else {
			seen[rec.ID()] = struct{}{}
		}
		records = append(records, rec)
	}
	report.Rows = len(records)

	return cells.NewDataset(records), report, nil
}

func cleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseNumber accepts non-empty numeric text. NaN and infinity spellings count
// as non-numeric.
func parseNumber(raw string) (float64, bool) {
	s := cleanCell(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
