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

// Package frame splits encoded RPC messages into link-sized chunks and
// reassembles inbound notification fragments into messages.
package frame

// Link sizing defaults.
const (
	// DefaultTransportUnit is the largest single GATT write, leaving headroom
	// under the negotiated MTU.
	DefaultTransportUnit = 350
	// DefaultFileSegment is the file content carried by one write request.
	// Larger segments overrun the device receive buffer.
	DefaultFileSegment = 512
)

// Chunk is one link-level write. Chunks carry no framing of their own.
type Chunk struct {
	Data []byte
	// FileBytes is the file payload completed by this chunk, used only for
	// progress. It is set on the last chunk of a write segment.
	FileBytes int
}

// Split cuts data into consecutive chunks of at most unit bytes. Data at or
// under the unit, including empty data, yields a single chunk. A unit of zero
// or less disables splitting. Chunks alias data.
func Split(data []byte, unit int) []Chunk {
	if unit <= 0 || len(data) <= unit {
		return []Chunk{{Data: data}}
	}

	chunks := make([]Chunk, 0, (len(data)+unit-1)/unit)
	for start := 0; start < len(data); start += unit {
		end := min(start+unit, len(data))
		chunks = append(chunks, Chunk{Data: data[start:end]})
	}
	return chunks
}

// Join concatenates chunk payloads.
func Join(chunks []Chunk) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c.Data)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
