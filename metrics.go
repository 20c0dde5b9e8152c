// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package flipper

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics holds the link counters of one client. File byte counters track
// file payload only; chunk byte counters track everything written to the
// link, framing included.
type Metrics struct {
	set              *metrics.Set
	commands         *metrics.Counter
	commandErrors    *metrics.Counter
	chunksWritten    *metrics.Counter
	chunkBytes       *metrics.Counter
	uploadBytes      *metrics.Counter
	downloadBytes    *metrics.Counter
	flowSignals      *metrics.Counter
	decodeIncomplete *metrics.Counter
	decodeMalformed  *metrics.Counter
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Commands          uint64
	CommandErrors     uint64
	ChunksWritten     uint64
	ChunkBytes        uint64
	FileBytesUp       uint64
	FileBytesDown     uint64
	FlowControlEvents uint64
	DecodeIncomplete  uint64
	DecodeMalformed   uint64
}

// NewMetrics creates an isolated counter set.
func NewMetrics() *Metrics {
	s := metrics.NewSet()
	return &Metrics{
		set:              s,
		commands:         s.NewCounter("flipper_commands_total"),
		commandErrors:    s.NewCounter("flipper_command_errors_total"),
		chunksWritten:    s.NewCounter("flipper_chunks_written_total"),
		chunkBytes:       s.NewCounter("flipper_chunk_bytes_written_total"),
		uploadBytes:      s.NewCounter(`flipper_file_bytes_total{direction="upload"}`),
		downloadBytes:    s.NewCounter(`flipper_file_bytes_total{direction="download"}`),
		flowSignals:      s.NewCounter("flipper_flow_control_signals_total"),
		decodeIncomplete: s.NewCounter("flipper_decode_incomplete_total"),
		decodeMalformed:  s.NewCounter("flipper_decode_malformed_total"),
	}
}

// WritePrometheus writes the counters in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Commands:          m.commands.Get(),
		CommandErrors:     m.commandErrors.Get(),
		ChunksWritten:     m.chunksWritten.Get(),
		ChunkBytes:        m.chunkBytes.Get(),
		FileBytesUp:       m.uploadBytes.Get(),
		FileBytesDown:     m.downloadBytes.Get(),
		FlowControlEvents: m.flowSignals.Get(),
		DecodeIncomplete:  m.decodeIncomplete.Get(),
		DecodeMalformed:   m.decodeMalformed.Get(),
	}
}
