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
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

// parseEncoding converts a string to an EncodingType.
func parseEncoding(s string) (uacodec.EncodingType, error) {
	switch strings.ToLower(s) {
	case "binary", "bin", "":
		return uacodec.EncodingBinary, nil
	case "xml":
		return uacodec.EncodingXML, nil
	default:
		return 0, fmt.Errorf("unknown encoding: %s", s)
	}
}

// newLogger returns a stderr logger, at debug level when verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadRegistry loads the schema file named by --schemas.
func loadRegistry(metrics *uacodec.Metrics) (*complextype.Registry, error) {
	if schemaFile == "" {
		return nil, fmt.Errorf("no schema file given (use --schemas or UACODEC_SCHEMAS)")
	}
	opts := []complextype.Option{complextype.WithLogger(newLogger())}
	if metrics != nil {
		opts = append(opts, complextype.WithMetrics(metrics))
	}
	reg, err := complextype.LoadSchemaFile(schemaFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	return reg, nil
}

// readInput reads a file, or stdin for "" and "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes to a file, or stdout for "" and "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// unhex decodes hex text, ignoring whitespace.
func unhex(data []byte) ([]byte, error) {
	clean := strings.Join(strings.Fields(string(data)), "")
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return out, nil
}

// printMetrics writes codec statistics to stderr.
func printMetrics(m *uacodec.Metrics) {
	stats := m.Collect()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if l, ok := stats[k].(uacodec.LatencyStats); ok {
			fmt.Fprintf(os.Stderr, "%s: count=%d avg=%.3fms max=%.3fms\n", k, l.Count, l.Avg, l.Max)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", k, stats[k])
	}
}
