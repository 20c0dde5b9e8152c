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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBufferRing(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer(TransportBLE, "upload", 3)
	for i := range 5 {
		tb.RecordTX(CharacteristicRX, []byte{byte(i)}, "")
	}
	assert.Equal(t, 3, tb.Len())

	err := GetTrace(tb.WrapError(ErrTransportWrite))
	require.NotNil(t, err)
	require.Len(t, err.Trace, 3)
	assert.Equal(t, []byte{2}, err.Trace[0].Data)
	assert.Equal(t, []byte{4}, err.Trace[2].Data)
}

func TestTraceBufferCopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer(TransportMock, "ping", 0)
	data := []byte{0xAA, 0xBB}
	tb.RecordRX(CharacteristicTX, data, "")
	data[0] = 0

	te := GetTrace(tb.WrapError(errors.New("x")))
	require.NotNil(t, te)
	assert.Equal(t, []byte{0xAA, 0xBB}, te.Trace[0].Data)
}

func TestTraceableErrorFormat(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer(TransportSerial, "list", 8)
	tb.RecordTX(CharacteristicRX, []byte{0x01, 0x02}, "chunk 1/1")
	tb.RecordRX(CharacteristicTX, nil, "")
	tb.RecordTimeout(CharacteristicTX, "no response")

	err := fmt.Errorf("list: %w", tb.WrapError(ErrTransportTimeout))
	require.ErrorIs(t, err, ErrTransportTimeout)
	require.True(t, HasTrace(err))

	out := GetTrace(err).FormatTrace()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[serial:list] Wire trace (3 entries):", lines[0])
	assert.Contains(t, lines[1], "> rx")
	assert.Contains(t, lines[1], "01 02 (chunk 1/1)")
	assert.Contains(t, lines[2], "< tx")
	assert.Contains(t, lines[2], "(empty)")
	assert.Contains(t, lines[3], "TIMEOUT: no response")
}

func TestTraceHelpers(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewTraceBuffer(TransportBLE, "x", 1).WrapError(nil))
	assert.False(t, HasTrace(errors.New("plain")))
	assert.Nil(t, GetTrace(errors.New("plain")))

	empty := &TraceableError{Err: ErrProtocol, Transport: TransportBLE, Command: "stat"}
	assert.Equal(t, "[ble:stat] (no trace data)", empty.FormatTrace())
	assert.Equal(t, ErrProtocol.Error(), empty.Error())
}

func TestFormatHexBytesTruncates(t *testing.T) {
	t.Parallel()

	long := make([]byte, 40)
	out := formatHexBytes(long)
	assert.True(t, strings.HasSuffix(out, "... (40 bytes total)"))
	assert.Equal(t, 32, strings.Count(out, "00"))
	assert.Equal(t, "(empty)", formatHexBytes(nil))
}
