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
	"github.com/edgeo-scada/uacodec/node"
)

var attributesCmd = &cobra.Command{
	Use:   "attributes [node-class...]",
	Short: "Show the attributes of node classes or of an encoded node",
	Long: `Show the attributes each node class carries with the value an unset
attribute takes. With --node, decode an encoded Node and show its values.

Examples:
  uacodec attributes
  uacodec attributes Variable Method
  uacodec attributes --node pump-speed.bin
  uacodec attributes --node pump-speed.xml -E xml`,
	RunE: runAttributes,
}

var attributesNode string

func init() {
	attributesCmd.Flags().StringVarP(&attributesNode, "node", "n", "", "Encoded Node file to decode (- for stdin)")
}

func runAttributes(cmd *cobra.Command, args []string) error {
	if attributesNode != "" {
		return showNode(attributesNode)
	}

	classes := uacodec.NodeClasses
	if len(args) > 0 {
		classes = nil
		for _, arg := range args {
			nc, ok := uacodec.ParseNodeClass(arg)
			if !ok {
				return fmt.Errorf("unknown node class: %s", arg)
			}
			classes = append(classes, nc)
		}
	}

	m := node.Attributes()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, nc := range classes {
		fmt.Fprintf(w, "%s\n", nc)
		for _, id := range m.ValidAttributes(nc) {
			def, optional, _ := m.Default(nc, id)
			use := "mandatory"
			if optional {
				use = "optional"
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", uint32(id), id, use, uacodec.FormatValue(def))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func showNode(path string) error {
	enc, err := parseEncoding(encoding)
	if err != nil {
		return err
	}
	data, err := readInput(path)
	if err != nil {
		return fmt.Errorf("failed to read node: %w", err)
	}

	metrics := uacodec.NewMetrics()
	opts := []uacodec.Option{uacodec.WithLogger(newLogger()), uacodec.WithMetrics(metrics)}
	n := node.NewGenericNode()
	if enc == uacodec.EncodingXML {
		err = uacodec.DecodeXML(data, n, opts...)
	} else {
		if hexOutput {
			if data, err = unhex(data); err != nil {
				return err
			}
		}
		err = uacodec.DecodeBinary(data, n, opts...)
	}
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s %s\n", n.NodeClass(), n)
	for _, id := range node.Attributes().ValidAttributes(n.NodeClass()) {
		v, err := n.Attribute(id)
		if err != nil {
			return err
		}
		mark := ""
		if _, ok := n.Lookup(id); !ok {
			mark = "(default)"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", id, uacodec.FormatValue(v), mark)
	}
	if n.SymbolicName != "" {
		fmt.Fprintf(w, "  SymbolicName\t%s\t\n", n.SymbolicName)
	}
	if !n.ModellingRule.IsNull() {
		fmt.Fprintf(w, "  ModellingRule\t%s\t\n", n.ModellingRule.Format())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if verbose {
		printMetrics(metrics)
	}
	return nil
}
