package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	snapshotOut     string
	snapshotRadar   string
	snapshotIndex   string
	snapshotBasemap string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load the grid once, write a rendered frame and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.data.Load(cmd.Context()); err != nil {
			return err
		}

		view := a.registry.Default()
		if snapshotIndex != "" {
			if err := view.SetIndex(snapshotIndex); err != nil {
				return err
			}
		}
		if snapshotBasemap != "" {
			if err := view.SetBasemap(snapshotBasemap); err != nil {
				return err
			}
		}

		frame, err := view.Frame()
		if err != nil {
			return err
		}
		if err := os.WriteFile(snapshotOut, frame, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", snapshotOut)
		}
		zap.L().Info("frame written", zap.String("path", snapshotOut), zap.Int("bytes", len(frame)))

		if snapshotRadar != "" {
			radar, err := view.RadarPNG()
			if err != nil {
				return err
			}
			if err := os.WriteFile(snapshotRadar, radar, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", snapshotRadar)
			}
		}

		summary, err := view.Stats("")
		if err != nil {
			return err
		}
		out := map[string]any{
			"status":  a.data.Status(),
			"index":   view.State().Index,
			"summary": json.RawMessage(summary),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode summary")
		}
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "frame.png", "output PNG path")
	snapshotCmd.Flags().StringVar(&snapshotRadar, "radar", "", "optional radar chart PNG path")
	snapshotCmd.Flags().StringVar(&snapshotIndex, "index", "", "index to display (default from config)")
	snapshotCmd.Flags().StringVar(&snapshotBasemap, "basemap", "", "basemap style (default from config)")
	rootCmd.AddCommand(snapshotCmd)
}
