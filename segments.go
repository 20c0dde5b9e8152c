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
	"fmt"

	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/message"
)

// WriteSegment is one write request of an upload, already split into link
// chunks.
type WriteSegment struct {
	Message   *message.Main
	Chunks    []frame.Chunk
	FileBytes int
}

// BuildWriteSegments wraps data in write requests of at most segmentSize
// file bytes each, chained with HasNext, and splits every encoded request
// into chunks of at most unit bytes. An empty file still produces one
// terminal request without file payload.
//
// All requests share the codec's current command id, which is advanced
// once after the last request is built.
func BuildWriteSegments(codec *message.Codec, data []byte, path string, segmentSize, unit int) ([]WriteSegment, error) {
	if segmentSize <= 0 {
		return nil, fmt.Errorf("%w: segment size must be positive, got %d", ErrInvalidParameters, segmentSize)
	}

	count := max(1, (len(data)+segmentSize-1)/segmentSize)
	segments := make([]WriteSegment, 0, count)
	for i := range count {
		start := i * segmentSize
		end := min(start+segmentSize, len(data))

		req := &message.StorageWriteRequest{Path: path}
		if end > start {
			req.File = &message.File{Data: data[start:end]}
		}
		msg := codec.NewRequest(req, false)
		msg.HasNext = i < count-1

		encoded, err := message.Encode(msg)
		if err != nil {
			return nil, fmt.Errorf("encode write segment %d: %w", i, err)
		}

		chunks := frame.Split(encoded, unit)
		chunks[len(chunks)-1].FileBytes = end - start
		segments = append(segments, WriteSegment{
			Message:   msg,
			Chunks:    chunks,
			FileBytes: end - start,
		})
	}
	codec.Increment()
	return segments, nil
}
