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

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	c.value.Add(delta)
}

// Inc increments the counter.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Reset resets the counter to zero.
func (c *Counter) Reset() {
	c.value.Store(0)
}

var (
	latencyBounds = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100}
	latencyLabels = []string{"10us", "50us", "100us", "500us", "1ms", "5ms", "10ms", "50ms", "100ms", "100ms+"}
)

// LatencyHistogram tracks the distribution of codec call durations.
type LatencyHistogram struct {
	mu      sync.Mutex
	buckets []int64
	sum     float64
	count   int64
	min     float64
	max     float64
}

// NewLatencyHistogram creates a histogram with sub-millisecond buckets.
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		buckets: make([]int64, len(latencyBounds)+1),
		min:     -1,
		max:     -1,
	}
}

// Observe records a duration.
func (h *LatencyHistogram) Observe(d time.Duration) {
	ms := float64(d.Nanoseconds()) / 1e6

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += ms
	h.count++
	if h.min < 0 || ms < h.min {
		h.min = ms
	}
	if ms > h.max {
		h.max = ms
	}

	for i, bound := range latencyBounds {
		if ms <= bound {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

// Stats returns histogram statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make(map[string]int64, len(h.buckets)),
	}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
		stats.Min = h.min
		stats.Max = h.max
	}
	for i, n := range h.buckets {
		stats.Buckets[latencyLabels[i]] = n
	}
	return stats
}

// Reset clears the histogram.
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.buckets {
		h.buckets[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = -1
	h.max = -1
}

// LatencyStats holds latency statistics in milliseconds.
type LatencyStats struct {
	Count   int64
	Sum     float64
	Avg     float64
	Min     float64
	Max     float64
	Buckets map[string]int64
}

// Metrics counts codec operations per encoding.
type Metrics struct {
	Encoded      Counter
	Decoded      Counter
	EncodeErrors Counter
	DecodeErrors Counter
	BytesOut     Counter
	BytesIn      Counter
	Latency      *LatencyHistogram
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{Latency: NewLatencyHistogram()}
}

func (m *Metrics) observeEncode(start time.Time, n int, err error) {
	if m == nil {
		return
	}
	m.Latency.Observe(time.Since(start))
	if err != nil {
		m.EncodeErrors.Inc()
		return
	}
	m.Encoded.Inc()
	m.BytesOut.Add(int64(n))
}

func (m *Metrics) observeDecode(start time.Time, n int, err error) {
	if m == nil {
		return
	}
	m.Latency.Observe(time.Since(start))
	if err != nil {
		m.DecodeErrors.Inc()
		return
	}
	m.Decoded.Inc()
	m.BytesIn.Add(int64(n))
}

// Collect returns all metrics as a map.
func (m *Metrics) Collect() map[string]any {
	return map[string]any{
		"encoded":       m.Encoded.Value(),
		"decoded":       m.Decoded.Value(),
		"encode_errors": m.EncodeErrors.Value(),
		"decode_errors": m.DecodeErrors.Value(),
		"bytes_out":     m.BytesOut.Value(),
		"bytes_in":      m.BytesIn.Value(),
		"latency":       m.Latency.Stats(),
	}
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.Encoded.Reset()
	m.Decoded.Reset()
	m.EncodeErrors.Reset()
	m.DecodeErrors.Reset()
	m.BytesOut.Reset()
	m.BytesIn.Reset()
	m.Latency.Reset()
}
