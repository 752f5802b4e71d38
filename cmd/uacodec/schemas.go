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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas [name...]",
	Short: "List the structures declared in the schema file",
	Long: `List the structures declared in the schema file with their fields in
encoding order.

Examples:
  uacodec schemas -f boiler.yaml
  uacodec schemas -f boiler.yaml Boiler`,
	RunE: runSchemas,
}

func runSchemas(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(nil)
	if err != nil {
		return err
	}

	schemas := reg.Schemas()
	if len(args) > 0 {
		schemas = schemas[:0:0]
		for _, name := range args {
			s, ok := reg.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown structure %q", name)
			}
			schemas = append(schemas, s)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, s := range schemas {
		printSchema(w, s)
	}
	return w.Flush()
}

func printSchema(w *tabwriter.Writer, s *complextype.Schema) {
	fmt.Fprintf(w, "%s (%s)\n", s.Name, s.Kind)
	if !s.TypeID().IsNull() {
		fmt.Fprintf(w, "  TypeId:\t%s\n", s.TypeID().Format())
	}
	if !s.BinaryEncodingID().IsNull() {
		fmt.Fprintf(w, "  BinaryEncodingId:\t%s\n", s.BinaryEncodingID().Format())
	}
	for _, f := range s.Fields() {
		var flags string
		if f.IsOptional {
			flags = fmt.Sprintf("optional bit=0x%x", f.OptionalMaskBit())
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", f.Order, f.Name, f.TypeString(),
			uacodec.FormatValue(f.DefaultValue()), flags)
	}
	fmt.Fprintln(w)
}
