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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uacodec"
)

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]uacodec.EncodingType{
		"":       uacodec.EncodingBinary,
		"binary": uacodec.EncodingBinary,
		"BIN":    uacodec.EncodingBinary,
		"xml":    uacodec.EncodingXML,
	} {
		got, err := parseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseEncoding("json")
	assert.Error(t, err)
}

func TestUnhex(t *testing.T) {
	got, err := unhex([]byte("01 00\n0000 ff\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0xff}, got)

	_, err = unhex([]byte("zz"))
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	schemaFile = ""
	_, err := loadRegistry(nil)
	assert.Error(t, err)

	schemaFile = filepath.Join(t.TempDir(), "point.yaml")
	t.Cleanup(func() { schemaFile = "" })
	require.NoError(t, os.WriteFile(schemaFile, []byte(`
schemas:
  - name: Point
    typeId: ns=2;i=1000
    binaryEncodingId: ns=2;i=1001
    fields:
      - {name: X, type: Double}
      - {name: Y, type: Double}
`), 0o600))

	metrics := uacodec.NewMetrics()
	reg, err := loadRegistry(metrics)
	require.NoError(t, err)
	point, ok := reg.Lookup("Point")
	require.True(t, ok)

	rec := point.New()
	require.NoError(t, rec.SetFromYAML([]byte("{X: 1, Y: 2}")))
	data, err := reg.Encode(rec, uacodec.EncodingBinary)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.Equal(t, int64(1), metrics.Encoded.Value())
}
