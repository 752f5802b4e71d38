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

package uacodec

import "log/slog"

// Default limits applied by decoders.
const (
	DefaultMaxStringLength = 1 << 24
	DefaultMaxArrayLength  = 1 << 20
	DefaultMaxNestingDepth = 100
)

// Option configures an encoder or decoder.
type Option func(*codecOptions)

// codecOptions holds encoder and decoder configuration.
type codecOptions struct {
	factory         EncodeableFactory
	maxStringLength int
	maxArrayLength  int
	maxDepth        int
	namespace       string
	indent          string
	logger          *slog.Logger
	metrics         *Metrics
}

func defaultOptions() *codecOptions {
	return &codecOptions{
		maxStringLength: DefaultMaxStringLength,
		maxArrayLength:  DefaultMaxArrayLength,
		maxDepth:        DefaultMaxNestingDepth,
		namespace:       NamespaceOPCUA,
		logger:          slog.Default(),
	}
}

func applyOptions(opts []Option) *codecOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFactory sets the factory used to materialise extension object bodies.
func WithFactory(f EncodeableFactory) Option {
	return func(o *codecOptions) {
		o.factory = f
	}
}

// WithMaxStringLength limits the length of decoded strings and byte strings.
func WithMaxStringLength(n int) Option {
	return func(o *codecOptions) {
		o.maxStringLength = n
	}
}

// WithMaxArrayLength limits the number of elements of decoded arrays.
func WithMaxArrayLength(n int) Option {
	return func(o *codecOptions) {
		o.maxArrayLength = n
	}
}

// WithMaxNestingDepth limits the nesting of encodeables and variants.
func WithMaxNestingDepth(n int) Option {
	return func(o *codecOptions) {
		o.maxDepth = n
	}
}

// WithNamespace sets the default XML namespace.
func WithNamespace(ns string) Option {
	return func(o *codecOptions) {
		o.namespace = ns
	}
}

// WithIndent makes the XML encoder indent its output.
func WithIndent(indent string) Option {
	return func(o *codecOptions) {
		o.indent = indent
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *codecOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector updated by the Encode and Decode helpers.
func WithMetrics(m *Metrics) Option {
	return func(o *codecOptions) {
		o.metrics = m
	}
}
