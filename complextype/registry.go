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

package complextype

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/edgeo-scada/uacodec"
)

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *uacodec.Metrics
}

func defaultOptions() *options {
	return &options{logger: slog.Default()}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics collects codec metrics for calls made through the registry.
func WithMetrics(m *uacodec.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Registry holds schemas by name and by type and encoding id. It implements
// uacodec.EncodeableFactory so decoders can materialise ExtensionObject
// bodies of registered structures.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Schema
	byID   map[string]*Schema
	opts   *options
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Registry{
		byName: make(map[string]*Schema),
		byID:   make(map[string]*Schema),
		opts:   o,
	}
}

// Register adds schemas. A name or non-null id already bound to a different
// schema is an error; nothing is registered in that case.
func (r *Registry) Register(schemas ...*Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range schemas {
		if prev, ok := r.byName[s.Name]; ok && prev != s {
			return uacodec.SchemaError("", "schema %s already registered", s.Name)
		}
		for _, id := range schemaIDs(s) {
			if prev, ok := r.byID[id]; ok && prev != s {
				return uacodec.SchemaError("", "id %s of %s already used by %s", id, s.Name, prev.Name)
			}
		}
	}
	for _, s := range schemas {
		r.byName[s.Name] = s
		for _, id := range schemaIDs(s) {
			r.byID[id] = s
		}
		r.opts.logger.Debug("registered structure schema",
			"name", s.Name, "kind", s.Kind.String(), "fields", len(s.fields), "type_id", s.typeID.Format())
	}
	return nil
}

func schemaIDs(s *Schema) []string {
	var ids []string
	for _, id := range []uacodec.ExpandedNodeID{s.typeID, s.binaryID, s.xmlID} {
		if !id.IsNull() {
			ids = append(ids, id.Format())
		}
	}
	return ids
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// LookupID returns the schema whose type or encoding id is id.
func (r *Registry) LookupID(id uacodec.ExpandedNodeID) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id.Format()]
	return s, ok
}

// NewEncodeable creates an empty record for a registered type or encoding id.
func (r *Registry) NewEncodeable(id uacodec.ExpandedNodeID) (uacodec.Encodeable, bool) {
	s, ok := r.LookupID(id)
	if !ok {
		return nil, false
	}
	return NewRecord(s), true
}

// Schemas returns the registered schemas sorted by name.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	out := make([]*Schema, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// CodecOptions returns encoder and decoder options that resolve nested
// ExtensionObjects through the registry and share its logger and metrics.
func (r *Registry) CodecOptions(extra ...uacodec.Option) []uacodec.Option {
	opts := []uacodec.Option{
		uacodec.WithFactory(r),
		uacodec.WithLogger(r.opts.logger),
	}
	if r.opts.metrics != nil {
		opts = append(opts, uacodec.WithMetrics(r.opts.metrics))
	}
	return append(opts, extra...)
}

// Encode encodes rec with the given encoding.
func (r *Registry) Encode(rec *Record, encoding uacodec.EncodingType, extra ...uacodec.Option) ([]byte, error) {
	if encoding == uacodec.EncodingXML {
		return uacodec.EncodeXML(rec, r.CodecOptions(extra...)...)
	}
	return uacodec.EncodeBinary(rec, r.CodecOptions(extra...)...)
}

// Decode decodes data as a record of the named schema.
func (r *Registry) Decode(name string, data []byte, encoding uacodec.EncodingType, extra ...uacodec.Option) (*Record, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, uacodec.NewCodecError(uacodec.StatusBadDataTypeIdUnknown, "", "unknown structure %q", name)
	}
	rec := NewRecord(s)
	var err error
	if encoding == uacodec.EncodingXML {
		err = uacodec.DecodeXML(data, rec, r.CodecOptions(extra...)...)
	} else {
		err = uacodec.DecodeBinary(data, rec, r.CodecOptions(extra...)...)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
