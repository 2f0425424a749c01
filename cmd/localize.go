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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rotblauer/aploc/api"
	"github.com/rotblauer/aploc/catdb"
	"github.com/rotblauer/aploc/catz"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/metrics/influxdb"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/publish"
	"github.com/rotblauer/aploc/types/estimate"
	"github.com/rotblauer/aploc/types/observation"
	"github.com/spf13/cobra"
)

type localizeOptions struct {
	OutDir        string
	Format        string
	MinConfidence float64
	Store         bool
	Cells         bool
}

var optLocalize = localizeOptions{}

// localizeCmd represents the localize command
var localizeCmd = &cobra.Command{
	Use:   "localize [capture...]",
	Short: "Estimate access point positions from captures",
	Long: `Localize reads one or more NDJSON captures (plain or gzipped, "-" for stdin),
merges them into one run, and writes one estimate per access point.

Estimates go to stdout in the chosen --format. With --out-dir they are also written
as estimates.ndjson.gz and estimates.geojson. With --store they are saved in the
data directory's database, where 'aploc serve' finds them.

When influxdb.url is configured the run is exported as line protocol points.
When mqtt.broker is configured each estimate is published to its own topic.

Example:

	cat drive.ndjson | aploc localize --format geojson - > aps.geojson
	aploc localize --store --min-confidence 0.3 monday.ndjson.gz tuesday.ndjson.gz
`,
	PersistentPreRun: setDefaultSlog,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"-"}
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-common.Interrupted():
				slog.Warn("Interrupted, canceling run")
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := runLocalize(ctx, optLocalize, args, cmd.OutOrStdout()); err != nil {
			slog.Error("Localize failed", "error", err)
			os.Exit(1)
		}
	},
}

func runLocalize(ctx context.Context, opts localizeOptions, paths []string, out io.Writer) error {
	lcfg, err := params.LoadLocalizationConfig(config)
	if err != nil {
		return err
	}
	localizer, err := api.NewLocalizer(lcfg)
	if err != nil {
		return err
	}

	batch := &observation.Batch{}
	for _, p := range paths {
		b, err := observation.ReadFile(ctx, p)
		if err != nil {
			return err
		}
		batch.Merge(b)
	}

	run, err := localizer.LocalizeBatch(ctx, batch)
	if err != nil {
		return err
	}
	ps := run.Estimates.MinConfidence(opts.MinConfidence)

	if err := writeEstimates(out, opts.Format, ps, opts.Cells); err != nil {
		return err
	}
	if opts.OutDir != "" {
		if err := api.ExportFlat(catz.NewFlatWithRoot(opts.OutDir), ps); err != nil {
			return err
		}
	}
	if opts.Store {
		if err := storeRun(optDatadir, run.Summary, ps); err != nil {
			return err
		}
	}
	return publishRun(run.Summary, ps)
}

func writeEstimates(w io.Writer, format string, ps estimate.Positions, cells bool) error {
	switch format {
	case "", "ndjson":
		return api.WriteNDJSON(w, ps)
	case "geojson":
		return api.WriteGeoJSON(w, ps, cells)
	case "json":
		return writeIndentedJSON(w, ps)
	case "none":
		return nil
	}
	return fmt.Errorf("unknown format %q (want ndjson, json, geojson or none)", format)
}

func storeRun(datadir string, sum estimate.RunSummary, ps []estimate.Position) error {
	store, err := catdb.Open(datadir, false)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.PutEstimates(ps); err != nil {
		return err
	}
	return store.PutRun(sum)
}

// publishRun sends the run to the configured influxdb and mqtt targets.
// Each target is skipped when not configured. Failures are joined.
func publishRun(sum estimate.RunSummary, ps []estimate.Position) error {
	var errs []error

	icfg, err := params.LoadInfluxDBConfig(config)
	if err != nil {
		return err
	}
	if icfg.URL != "" {
		if err := influxdb.Export(icfg, sum, ps); err != nil {
			errs = append(errs, fmt.Errorf("influxdb export: %w", err))
		}
	}

	mcfg, err := params.LoadMQTTConfig(config)
	if err != nil {
		return err
	}
	if mcfg.Broker != "" {
		client, err := publish.NewClient(mcfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("mqtt connect: %w", err))
		} else {
			pub := publish.NewPublisher(client, mcfg)
			if err := pub.PublishEstimates(ps); err != nil {
				errs = append(errs, err)
			}
			if err := pub.PublishSummary(sum); err != nil {
				errs = append(errs, err)
			}
			pub.Close()
		}
	}
	return errors.Join(errs...)
}

func init() {
	rootCmd.AddCommand(localizeCmd)

	flags := localizeCmd.Flags()
	flags.StringVar(&optLocalize.OutDir, "out-dir", "", "Also write estimates.ndjson.gz and estimates.geojson to this directory")
	flags.StringVarP(&optLocalize.Format, "format", "f", "ndjson", "Output format: ndjson, json, geojson or none")
	flags.Float64Var(&optLocalize.MinConfidence, "min-confidence", 0, "Drop estimates below this confidence")
	flags.BoolVar(&optLocalize.Store, "store", false, "Save estimates and the run summary in the data directory database")
	flags.BoolVar(&optLocalize.Cells, "cells", false, "Include each estimate's S2 cell polygon in geojson output")
}
