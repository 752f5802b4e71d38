// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	schemaFile string
	encoding   string
	hexOutput  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "uacodec",
	Short: "OPC UA structure codec",
	Long: `Encode and decode OPC UA structures declared in a schema file.

Examples:
  uacodec schemas -f boiler.yaml
  uacodec encode -f boiler.yaml -t Boiler -i boiler-17.yaml --hex
  uacodec decode -f boiler.yaml -t Boiler -i boiler-17.bin
  uacodec attributes Variable`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schemas", "f", "", "Path to the schema declaration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&encoding, "encoding", "E", "binary", "Wire encoding (binary, xml)")
	rootCmd.PersistentFlags().BoolVar(&hexOutput, "hex", false, "Read and write binary data as hex text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	viper.BindPFlag("schemas", rootCmd.PersistentFlags().Lookup("schemas"))
	viper.BindPFlag("encoding", rootCmd.PersistentFlags().Lookup("encoding"))
	viper.BindPFlag("hex", rootCmd.PersistentFlags().Lookup("hex"))

	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(attributesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("UACODEC")
	viper.AutomaticEnv()

	schemaFile = viper.GetString("schemas")
	encoding = viper.GetString("encoding")
	hexOutput = viper.GetBool("hex")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
