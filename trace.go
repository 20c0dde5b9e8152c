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
	"errors"
	"fmt"
	"strings"
	"time"
)

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates a chunk written to the device
	TraceTX TraceDirection = "TX"
	// TraceRX indicates a notification or read from the device
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single link-level operation
type TraceEntry struct {
	Timestamp      time.Time
	Direction      TraceDirection
	Note           string
	Data           []byte
	Characteristic Characteristic
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	base := fmt.Sprintf("[%s] %s %s: %s",
		e.Timestamp.Format("15:04:05.000"), e.Direction, e.Characteristic, formatHexBytes(e.Data))
	if e.Note != "" {
		return base + " (" + e.Note + ")"
	}
	return base
}

// TraceableError carries the wire trace of the command that failed:
//
//	var te *flipper.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport TransportType
	Command   string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Command)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Command, len(e.Trace))
	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %-12s %s", direction, entry.Characteristic, formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	const maxShown = 32
	shown := data
	if len(data) > maxShown {
		shown = data[:maxShown]
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	out := strings.Join(parts, " ")
	if len(data) > maxShown {
		out += fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return out
}

// TraceBuffer keeps the most recent link operations of one command in a
// fixed-size ring.
type TraceBuffer struct {
	transport TransportType
	command   string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport TransportType, command string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 32
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		command:   command,
	}
}

// RecordTX records a write to the device
func (tb *TraceBuffer) RecordTX(ch Characteristic, data []byte, note string) {
	tb.record(TraceTX, ch, data, note)
}

// RecordRX records data received from the device
func (tb *TraceBuffer) RecordRX(ch Characteristic, data []byte, note string) {
	tb.record(TraceRX, ch, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(ch Characteristic, note string) {
	tb.record(TraceRX, ch, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, ch Characteristic, data []byte, note string) {
	entry := TraceEntry{
		Direction:      dir,
		Characteristic: ch,
		Data:           append([]byte(nil), data...),
		Timestamp:      time.Now(),
		Note:           note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
		return
	}
	tb.entries = append(tb.entries, entry)
}

// Len returns the number of recorded entries.
func (tb *TraceBuffer) Len() int {
	return len(tb.entries)
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Trace:     append([]TraceEntry(nil), tb.entries...),
		Transport: tb.transport,
		Command:   tb.command,
	}
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
