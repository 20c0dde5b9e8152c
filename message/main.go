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

// Package message implements the Flipper Zero RPC message codec.
//
// Every message on the wire is a PB.Main protobuf body prefixed with its
// length as a varint. The package encodes and decodes that framing by hand
// with protowire, so no generated bindings are required, and keeps the
// per-connection command id counter in Codec.
package message

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxMessageSize bounds the declared length of a single message. The device
// never sends anything close to this; a larger prefix means the stream is out
// of sync.
const MaxMessageSize = 64 * 1024

var (
	ErrNilMessage     = errors.New("message: nil message")
	ErrInvalidContent = errors.New("message: invalid content")
	ErrTooLarge       = errors.New("message: message exceeds maximum size")
)

// Main is one RPC unit (PB.Main).
type Main struct {
	Content   Content
	CommandID uint32
	Status    CommandStatus
	HasNext   bool
}

// String renders a short description for logs.
func (m *Main) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("id=%d status=%s has_next=%t content=%s",
		m.CommandID, m.Status, m.HasNext, Kind(m.Content))
}

// Encode serializes m as varint(len) || body. Output is deterministic:
// fields are written in field-number order and zero scalars are omitted.
func Encode(m *Main) ([]byte, error) {
	body, err := encodeBody(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, protowire.SizeVarint(uint64(len(body)))+len(body))
	out = protowire.AppendVarint(out, uint64(len(body)))
	return append(out, body...), nil
}

func encodeBody(m *Main) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}

	var b []byte
	b = appendVarintField(b, fieldCommandID, uint64(m.CommandID))
	b = appendVarintField(b, fieldCommandStatus, uint64(int64(m.Status)))
	b = appendBoolField(b, fieldHasNext, m.HasNext)

	if m.Content != nil {
		if err := checkContent(m.Content); err != nil {
			return nil, err
		}
		b = appendMessageField(b, m.Content.field(), m.Content)
	}

	if len(b) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(b))
	}
	return b, nil
}

func checkContent(c Content) error {
	u, ok := c.(*Unknown)
	if !ok {
		return nil
	}
	if u == nil || protowire.Number(u.Field) < fieldEmpty {
		return fmt.Errorf("%w: unknown payload needs a field number above %d", ErrInvalidContent, fieldHasNext)
	}
	if _, known := contentDecoders[protowire.Number(u.Field)]; known {
		return fmt.Errorf("%w: field %d has a concrete type", ErrInvalidContent, u.Field)
	}
	return nil
}
