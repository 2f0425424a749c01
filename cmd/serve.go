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
	"log/slog"
	"os"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/daemon/webd"
	"github.com/rotblauer/aploc/params"
	"github.com/spf13/cobra"
)

var optServeConfig = params.DefaultWebDaemonConfig()

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored estimates over HTTP and localize posted captures",
	Long: `Serve runs the web daemon on --address.

	GET  /ping               liveness
	GET  /status             uptime, stored estimate count, last run
	GET  /aps                stored estimates (?min_confidence=0.3)
	GET  /aps.geojson        stored estimates as a FeatureCollection
	GET  /aps/{bssid}        one estimate
	POST /localize           run the pipeline on an NDJSON capture body and store the result
	GET  /socket             websocket: a snapshot, then every stored estimate and run

With --token, POST /localize needs "Authorization: Bearer <token>" or ?api_token=<token>.`,
	PersistentPreRun: setDefaultSlog,
	Run: func(cmd *cobra.Command, args []string) {
		lcfg, err := params.LoadLocalizationConfig(config)
		if err != nil {
			slog.Error("Invalid localization config", "error", err)
			os.Exit(1)
		}
		optServeConfig.DataDir = optDatadir

		d, err := webd.NewWebDaemon(optServeConfig, lcfg)
		if err != nil {
			slog.Error("Failed to create web daemon", "error", err)
			os.Exit(1)
		}
		defer d.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-common.Interrupted()
			cancel()
		}()
		if err := d.Run(ctx); err != nil {
			slog.Error("Web daemon exited", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringVar(&optServeConfig.Network, "network", optServeConfig.Network, "Listener network")
	flags.StringVar(&optServeConfig.Address, "address", optServeConfig.Address, "Listener address")
	flags.Int64Var(&optServeConfig.MaxBodyBytes, "max-body", optServeConfig.MaxBodyBytes, "Largest accepted POST /localize body, in bytes")
	flags.StringVar(&optServeConfig.Token, "token", "", "Require this token for POST /localize")
}
