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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgeo-scada/uacodec"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a structure from YAML values",
	Long: `Encode a structure declared in the schema file. Field values are read
from a YAML mapping; fields that are not listed keep their defaults.

Examples:
  uacodec encode -f boiler.yaml -t Boiler -i boiler-17.yaml -o boiler-17.bin
  echo '{Id: 17, Phase: Heating}' | uacodec encode -f boiler.yaml -t Boiler --hex
  uacodec encode -f boiler.yaml -t Boiler -i boiler-17.yaml -E xml`,
	RunE: runEncode,
}

var (
	encodeType   string
	encodeInput  string
	encodeOutput string
)

func init() {
	encodeCmd.Flags().StringVarP(&encodeType, "type", "t", "", "Name of the structure to encode")
	encodeCmd.Flags().StringVarP(&encodeInput, "input", "i", "-", "YAML values file (- for stdin)")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "-", "Output file (- for stdout)")
	encodeCmd.MarkFlagRequired("type")
}

func runEncode(cmd *cobra.Command, args []string) error {
	enc, err := parseEncoding(encoding)
	if err != nil {
		return err
	}

	metrics := uacodec.NewMetrics()
	reg, err := loadRegistry(metrics)
	if err != nil {
		return err
	}
	schema, ok := reg.Lookup(encodeType)
	if !ok {
		return fmt.Errorf("unknown structure %q in %s", encodeType, schemaFile)
	}

	values, err := readInput(encodeInput)
	if err != nil {
		return fmt.Errorf("failed to read values: %w", err)
	}
	rec := schema.New()
	if err := rec.SetFromYAML(values); err != nil {
		return err
	}

	data, err := reg.Encode(rec, enc)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	if hexOutput && enc == uacodec.EncodingBinary {
		data = []byte(hex.EncodeToString(data) + "\n")
	}
	if err := writeOutput(encodeOutput, data); err != nil {
		return err
	}

	if verbose {
		summary, _ := yaml.Marshal(rec)
		fmt.Fprintf(os.Stderr, "%s %s\n%s", schema.Name, rec, summary)
		printMetrics(metrics)
	}
	return nil
}
