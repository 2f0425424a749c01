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
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/rotblauer/aploc/params"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

type effectiveConfig struct {
	params.LocalizationConfig `yaml:",inline"`
	InfluxDB                  *params.InfluxDBConfig `yaml:"influxdb"`
	MQTT                      *params.MQTTConfig     `yaml:"mqtt"`
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints every setting after applying the config file, APLOC_* environment
variables and flags. The output is a valid config file. Secrets are redacted.`,
	PersistentPreRun: setDefaultSlog,
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeEffectiveConfig(cmd.OutOrStdout()); err != nil {
			slog.Error("Failed to print config", "error", err)
			os.Exit(1)
		}
	},
}

func writeEffectiveConfig(w io.Writer) error {
	lcfg, err := params.LoadLocalizationConfig(config)
	if err != nil {
		return err
	}
	icfg, err := params.LoadInfluxDBConfig(config)
	if err != nil {
		return err
	}
	mcfg, err := params.LoadMQTTConfig(config)
	if err != nil {
		return err
	}
	if icfg.Token != "" {
		icfg.Token = redacted
	}
	if mcfg.Password != "" {
		mcfg.Password = redacted
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(effectiveConfig{LocalizationConfig: *lcfg, InfluxDB: icfg, MQTT: mcfg}); err != nil {
		return err
	}
	return enc.Close()
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(configCmd)
}
