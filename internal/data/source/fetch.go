package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	"github.com/zfe-tiles/server/internal/data/cells"
)

// ErrLoadFailed marks a failed load attempt. It is not retried.
var ErrLoadFailed = errors.New("source: load failed")

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Fetch retrieves the raw payload. Locations with an http or https scheme are
// fetched with a single GET; anything else is read from the local filesystem.
// There is no timeout beyond the one carried by ctx.
func Fetch(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: read file")
		}
		return data, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: GET")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Wrapf(ErrLoadFailed, "source: HTTP error status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: read body")
	}
	return data, nil
}

// Decompress inflates zstd or gzip payloads, detected by their magic bytes.
// Other payloads are returned unchanged.
func Decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, eris.Wrap(err, "source: create zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: zstd decode")
		}
		return out, nil
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: gzip header")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrLoadFailed, err), "source: gzip decode")
		}
		return out, nil
	}
	return data, nil
}

// Load fetches, decompresses and parses the payload at location.
func Load(ctx context.Context, client *http.Client, location string, opts Options) (*cells.Dataset, Report, error) {
	raw, err := Fetch(ctx, client, location)
	if err != nil {
		return nil, Report{}, err
	}
	data, err := Decompress(raw)
	if err != nil {
		return nil, Report{}, err
	}
	return Parse(bytes.NewReader(data), opts)
}
