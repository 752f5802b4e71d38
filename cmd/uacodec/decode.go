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
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a structure",
	Long: `Decode an encoded structure and print its field values.

Examples:
  uacodec decode -f boiler.yaml -t Boiler -i boiler-17.bin
  uacodec decode -f boiler.yaml -t Boiler -i boiler-17.hex --hex
  uacodec decode -f boiler.yaml -t Boiler -i boiler-17.xml -E xml --format text`,
	RunE: runDecode,
}

var (
	decodeType   string
	decodeInput  string
	decodeFormat string
)

func init() {
	decodeCmd.Flags().StringVarP(&decodeType, "type", "t", "", "Name of the structure to decode")
	decodeCmd.Flags().StringVarP(&decodeInput, "input", "i", "-", "Encoded input file (- for stdin)")
	decodeCmd.Flags().StringVar(&decodeFormat, "format", "yaml", "Output format (yaml, text)")
	decodeCmd.MarkFlagRequired("type")
}

func runDecode(cmd *cobra.Command, args []string) error {
	enc, err := parseEncoding(encoding)
	if err != nil {
		return err
	}

	metrics := uacodec.NewMetrics()
	reg, err := loadRegistry(metrics)
	if err != nil {
		return err
	}

	data, err := readInput(decodeInput)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if hexOutput && enc == uacodec.EncodingBinary {
		if data, err = unhex(data); err != nil {
			return err
		}
	}

	rec, err := reg.Decode(decodeType, data, enc)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	switch decodeFormat {
	case "text":
		fmt.Println(rec)
	case "yaml", "":
		out, err := yaml.Marshal(complextype.RecordToMap(rec))
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		return fmt.Errorf("unknown output format: %s", decodeFormat)
	}

	if verbose {
		printMetrics(metrics)
	}
	return nil
}
