package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const gridCSV = `idcar_200m,EWB_n,GAI_n,men,men_pauv
CRS3035RES200mN2469200E3982600,0.2,0.8,10,1
CRS3035RES200mN2469400E3982600,0.4,0.6,12,2
CRS3035RES200mN2472000E3986000,0.9,0.1,8,
`

func TestSnapshotCommand(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	dir := t.TempDir()
	gridPath := filepath.Join(dir, "grid.csv")
	require.NoError(t, os.WriteFile(gridPath, []byte(gridCSV), 0o644))

	configFile := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("data:\n  url: "+gridPath+"\nlog:\n  level: error\n"), 0o644))

	framePath := filepath.Join(dir, "frame.png")
	radarPath := filepath.Join(dir, "radar.png")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"--config", configFile, "snapshot", "-o", framePath, "--radar", radarPath, "--index", "GAI_n", "--basemap", "esri"})
	require.NoError(t, rootCmd.Execute())

	for _, p := range []string{framePath, radarPath} {
		f, err := os.Open(p)
		require.NoError(t, err)
		_, err = png.Decode(f)
		f.Close()
		assert.NoError(t, err, p)
	}

	var out struct {
		Index   string `json:"index"`
		Summary struct {
			Count int     `json:"count"`
			Mean  float64 `json:"mean"`
		} `json:"summary"`
		Status struct {
			State   string `json:"state"`
			Records int    `json:"records"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "GAI_n", out.Index)
	assert.Equal(t, "ready", out.Status.State)
	assert.Equal(t, 3, out.Status.Records)
	assert.Equal(t, 3, out.Summary.Count)
	assert.InDelta(t, 0.5, out.Summary.Mean, 1e-9)
}
