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

package node

import "log/slog"

// DefaultConcurrency is the number of nodes ReadNodes reads at once.
const DefaultConcurrency = 8

// Option configures ReadNodes.
type Option func(*readOptions)

type readOptions struct {
	concurrency int
	skipValue   bool
	logger      *slog.Logger
}

func defaultOptions() *readOptions {
	return &readOptions{
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
}

// WithConcurrency bounds the number of nodes read in parallel.
func WithConcurrency(n int) Option {
	return func(o *readOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSkipValue leaves the Value attribute of variables unread.
func WithSkipValue(skip bool) Option {
	return func(o *readOptions) {
		o.skipValue = skip
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *readOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
