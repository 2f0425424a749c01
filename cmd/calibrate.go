/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/geo/pathloss"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/stream"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var optCalibrateSave bool

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate [measurements]",
	Short: "Fit the path loss model to measured distances",
	Long: `Calibrate reads NDJSON measurements, each a signal strength observed at a known
distance from an access point:

	{"distance_m": 4.5, "rssi": -58}

and fits the log-distance path loss model's reference RSSI and exponent by least squares.
The result is printed as YAML that can be pasted into the config file.
With --save it is also written to calibration.yaml in the data directory.`,
	Args:             cobra.MaximumNArgs(1),
	PersistentPreRun: setDefaultSlog,
	Run: func(cmd *cobra.Command, args []string) {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		if err := runCalibrate(context.Background(), path, cmd.OutOrStdout()); err != nil {
			slog.Error("Calibrate failed", "error", err)
			os.Exit(1)
		}
	},
}

func runCalibrate(ctx context.Context, path string, out io.Writer) error {
	rc, err := catz.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	ms := stream.Collect(ctx, stream.NDJSON[pathloss.Measurement](ctx, rc))
	c, err := pathloss.Calibrate(ms)
	if err != nil {
		return err
	}
	slog.Info("Calibrated path loss model",
		"samples", c.Samples, "reference_rssi", c.ReferenceRSSI,
		"exponent", c.Exponent, "rmse_db", c.RMSE)

	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := out.Write(b); err != nil {
		return err
	}
	if !optCalibrateSave {
		return nil
	}
	if err := os.MkdirAll(optDatadir, 0755); err != nil {
		return err
	}
	target := filepath.Join(optDatadir, params.CalibrationFileName)
	if err := os.WriteFile(target, b, 0644); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	slog.Info("Saved calibration", "path", target)
	return nil
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().BoolVar(&optCalibrateSave, "save", false, "Also write calibration.yaml to the data directory")
}
