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
	"log/slog"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/aploc/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var optVerbosity int
var optDatadir string

// config holds file, environment (APLOC_*) and flag values, in viper's precedence.
var config = params.NewViper()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aploc",
	Short: "Locate Wi-Fi access points from wardriving captures",
	Long: `aploc estimates where access points are from GPS-tagged signal strength observations.

Captures are newline-delimited JSON, plain or gzipped. Each observation record carries
a bssid, a time, the observer's lat/lon and an rssi (dBm). Records without a bssid
are GPS fixes, and are used as the track when present.

The pipeline smooths the GPS track, drops spatial outliers per access point,
converts signal strength to distance, and fuses multilateration, a Bayesian grid
and a weighted centroid into one estimate per access point.

Configuration is read from $HOME/.aploc.yaml (or --config), then APLOC_* environment
variables, then flags. Run 'aploc config' to see the effective values.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Here you will define your flags and configuration settings.
	// Cobra supports persistent flags, which, if defined here,
	// will be global for your application.
	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aploc.yaml)")
	pFlags.IntVarP(&optVerbosity, "verbosity", "v", int(slog.LevelInfo), "Log level (-4 debug, 0 info, 4 warn, 8 error)")
	pFlags.StringVar(&optDatadir, "datadir", params.DatadirRoot, "Data directory (store, exports)")
	pFlags.Int("workers", params.DefaultLocalizationConfig().Workers, "Per-access-point estimation workers (0: one per CPU)")
	_ = config.BindPFlag("workers", pFlags.Lookup("workers"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".aploc" (without extension).
		config.AddConfigPath(home)
		config.SetConfigType("yaml")
		config.SetConfigName(".aploc")
	}

	if err := config.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "file", config.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
		slog.Error("Failed to read config file", "error", err)
		os.Exit(1)
	}
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(optVerbosity),
	})))
}
