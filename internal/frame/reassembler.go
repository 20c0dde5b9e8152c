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

package frame

import (
	"errors"

	"github.com/ZaparooProject/go-flipper/message"
)

// Reassembler accumulates notification fragments and decodes messages from
// them.
//
// The buffer is never trimmed on an incomplete decode. A successful decode
// removes exactly the message's bytes, so a following message that arrived
// in the same notification is kept. A malformed decode discards everything.
type Reassembler struct {
	buf []byte
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends a fragment. The fragment is copied.
func (r *Reassembler) Feed(fragment []byte) {
	r.buf = append(r.buf, fragment...)
}

// TryDecode attempts to decode the next message from the buffer. It returns
// an error matching message.ErrIncomplete when more bytes are needed and
// message.ErrMalformed when the buffer cannot become valid.
func (r *Reassembler) TryDecode() (*message.Main, error) {
	m, n, err := message.Decode(r.buf)
	if err != nil {
		if errors.Is(err, message.ErrMalformed) {
			r.Reset()
		}
		return nil, err
	}

	rest := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:rest]
	return m, nil
}

// Reset drops any buffered bytes.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

// Len returns the number of buffered bytes.
func (r *Reassembler) Len() int {
	return len(r.buf)
}
