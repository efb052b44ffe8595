package source

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfe-tiles/server/internal/data/cells"
)

const sampleCSV = `"idcar_200m","men","EWB_n","SSI_n","extra_col"
"CRS3035RES200mN2469200E3982600","12.5","0.3","0.8","x"
"CRS3035RES200mN2469400E3982600","","0.9","abc","y"

"bad-id","4","0.1","0.2","z"
"CRS3035RES200mN2469600E3982600","1","0.5"
`

func TestParse_HeaderAndValues(t *testing.T) {
	ds, report, err := Parse(strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 1, report.Dropped, "short row must be dropped")
	assert.Equal(t, 1, report.Unlocated)
	assert.Equal(t, []string{"extra_col"}, report.UnknownColumns)

	require.Equal(t, 3, ds.Len())
	first := ds.At(0)
	assert.Equal(t, "CRS3035RES200mN2469200E3982600", first.ID())
	assert.Equal(t, 12.5, first.Value(cells.FieldMen))
	assert.Equal(t, 0.3, first.Value(cells.FieldEWBN))

	second := ds.At(1)
	assert.True(t, math.IsNaN(second.Value(cells.FieldMen)), "empty text is missing")
	assert.True(t, math.IsNaN(second.Value(cells.FieldSSIN)), "text is missing")

	third := ds.At(2)
	_, ok := third.Location()
	assert.False(t, ok)
	assert.Equal(t, 4.0, third.Value(cells.FieldMen))
}

func TestParse_CustomIDColumnAndDelimiter(t *testing.T) {
	payload := "cell;men\nN2469200E3982600;3\n"
	ds, report, err := Parse(strings.NewReader(payload), Options{IDColumn: "cell", Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rows)
	assert.Equal(t, 3.0, ds.At(0).Value(cells.FieldMen))
}

func TestParse_InfinityIsMissing(t *testing.T) {
	payload := "idcar_200m,EWB_n\nN2469200E3982600,Infinity\nN2469400E3982600,inf\nN2469600E3982600,0.4\n"
	ds, _, err := Parse(strings.NewReader(payload), Options{})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	assert.True(t, math.IsNaN(ds.At(0).Value(cells.FieldEWBN)))
	assert.True(t, math.IsNaN(ds.At(1).Value(cells.FieldEWBN)))
	assert.Equal(t, 0.4, ds.At(2).Value(cells.FieldEWBN))
}

func TestParse_RepeatedLocatedIDsDropped(t *testing.T) {
	payload := "idcar_200m,EWB_n\nN2469200E3982600,0.1\nN2469200E3982600,0.9\nno-location,0.2\nno-location,0.3\n"
	ds, report, err := Parse(strings.NewReader(payload), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Unlocated)
	assert.Equal(t, 3, report.Rows)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, 0.1, ds.At(0).Value(cells.FieldEWBN), "first occurrence wins")
	assert.Len(t, ds.Located(), 1)
}

func TestParse_MissingIDColumn(t *testing.T) {
	_, _, err := Parse(strings.NewReader("men,ind\n1,2\n"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailed))
}

func TestParse_Empty(t *testing.T) {
	_, _, err := Parse(strings.NewReader(""), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailed))
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{` "2" `, 2, true},
		{"-0", 0, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"  ", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"+Inf", 0, false},
		{"Infinity", 0, false},
		{"-infinity", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	data, err := Fetch(context.Background(), srv.Client(), srv.URL+"/grid.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailed))
}

func TestFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Fetch(context.Background(), nil, url+"/grid.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailed))
}

func TestFetch_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	data, err := Fetch(context.Background(), nil, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))

	_, err = Fetch(context.Background(), nil, filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, ErrLoadFailed))
}

func TestDecompress(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstdPayload := enc.EncodeAll([]byte(sampleCSV), nil)
	require.NoError(t, enc.Close())

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err = zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	for name, payload := range map[string][]byte{
		"zstd":  zstdPayload,
		"gzip":  gz.Bytes(),
		"plain": []byte(sampleCSV),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Decompress(payload)
			require.NoError(t, err)
			assert.Equal(t, sampleCSV, string(out))
		})
	}
}

func TestLoad_CompressedOverHTTP(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	payload := enc.EncodeAll([]byte(sampleCSV), nil)
	require.NoError(t, enc.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	ds, report, err := Load(context.Background(), srv.Client(), srv.URL+"/grid.csv.zst", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 1, report.Dropped)
}
