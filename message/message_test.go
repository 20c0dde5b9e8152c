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

package message

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripCases() []struct {
	msg  *Main
	name string
} {
	return []struct {
		msg  *Main
		name string
	}{
		{name: "no content", msg: &Main{CommandID: 9}},
		{name: "empty", msg: &Main{CommandID: 1, Content: &Empty{}}},
		{name: "ping request", msg: &Main{CommandID: 2, Content: &PingRequest{Data: []byte{1, 2, 3}}}},
		{name: "ping response", msg: &Main{CommandID: 2, Content: &PingResponse{Data: []byte("pong")}}},
		{name: "list request", msg: &Main{CommandID: 3, Content: &StorageListRequest{Path: "/ext/apps"}}},
		{
			name: "list response with continuation",
			msg: &Main{
				CommandID: 3,
				HasNext:   true,
				Content: &StorageListResponse{Files: []File{
					{Type: FileTypeDir, Name: "nfc"},
					{Type: FileTypeFile, Name: "a.txt", Size: 42},
				}},
			},
		},
		{name: "read request", msg: &Main{CommandID: 4, Content: &StorageReadRequest{Path: "/ext/a.txt"}}},
		{
			name: "read response",
			msg: &Main{CommandID: 4, HasNext: true, Content: &StorageReadResponse{
				File: &File{Data: []byte("hello"), Size: 5},
			}},
		},
		{
			name: "write request",
			msg: &Main{CommandID: 5, HasNext: true, Content: &StorageWriteRequest{
				Path: "/ext/b.bin",
				File: &File{Data: []byte{0x00, 0xFF, 0x10}},
			}},
		},
		{
			name: "write request with empty file",
			msg:  &Main{CommandID: 5, Content: &StorageWriteRequest{Path: "/ext/empty", File: &File{}}},
		},
		{name: "delete request", msg: &Main{CommandID: 6, Content: &StorageDeleteRequest{Path: "/ext/x", Recursive: true}}},
		{name: "mkdir request", msg: &Main{CommandID: 7, Content: &StorageMkdirRequest{Path: "/ext/new"}}},
		{name: "md5 request", msg: &Main{CommandID: 8, Content: &StorageMd5sumRequest{Path: "/ext/a"}}},
		{
			name: "md5 response",
			msg:  &Main{CommandID: 8, Content: &StorageMd5sumResponse{Md5sum: "d41d8cd98f00b204e9800998ecf8427e"}},
		},
		{
			name: "app start",
			msg:  &Main{CommandID: 10, Content: &AppStartRequest{Name: "/ext/app.fap", Args: "RPC"}},
		},
		{name: "stat request", msg: &Main{CommandID: 11, Content: &StorageStatRequest{Path: "/ext/a"}}},
		{
			name: "stat response",
			msg: &Main{CommandID: 11, Content: &StorageStatResponse{
				File: &File{Name: "a", Size: 1023, Md5sum: "abc"},
			}},
		},
		{name: "info request", msg: &Main{CommandID: 12, Content: &StorageInfoRequest{Path: "/ext"}}},
		{
			name: "info response",
			msg:  &Main{CommandID: 12, Content: &StorageInfoResponse{TotalSpace: 1 << 34, FreeSpace: 1 << 20}},
		},
		{
			name: "rename request",
			msg:  &Main{CommandID: 13, Content: &StorageRenameRequest{OldPath: "/ext/a", NewPath: "/ext/b"}},
		},
		{name: "get datetime", msg: &Main{CommandID: 14, Content: &SystemGetDateTimeRequest{}}},
		{
			name: "get datetime response",
			msg: &Main{CommandID: 14, Content: &SystemGetDateTimeResponse{DateTime: &DateTime{
				Hour: 23, Minute: 59, Second: 1, Day: 31, Month: 12, Year: 2025, Weekday: 3,
			}}},
		},
		{
			name: "set datetime",
			msg: &Main{CommandID: 15, Content: &SystemSetDateTimeRequest{DateTime: &DateTime{
				Hour: 8, Day: 1, Month: 1, Year: 2026, Weekday: 4,
			}}},
		},
		{name: "alert", msg: &Main{CommandID: 16, Content: &SystemPlayAudiovisualAlertRequest{}}},
		{name: "error status", msg: &Main{CommandID: 17, Status: StatusStorageNotExist}},
		{name: "unknown content", msg: &Main{CommandID: 18, Content: &Unknown{Field: 20, Raw: []byte{0x08, 0x01}}}},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tt := range roundTripCases() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, n, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, len(encoded), n)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestEncodeMatchesDeviceBytes(t *testing.T) {
	t.Parallel()

	// Captured from a list request for /ext/apps/NFC/ at command id 0.
	want := append([]byte{18, 58, 16, 10, 14}, []byte("/ext/apps/NFC/")...)

	got, err := Encode(&Main{Content: &StorageListRequest{Path: "/ext/apps/NFC/"}})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeNegativeEnumsSignExtend(t *testing.T) {
	t.Parallel()

	got, err := Encode(&Main{Status: CommandStatus(-1)})
	require.NoError(t, err)
	want := []byte{11, 0x10, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	assert.Equal(t, want, got)

	m, n, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, len(got), n)
	assert.Equal(t, CommandStatus(-1), m.Status)

	stat := &Main{Content: &StorageStatResponse{File: &File{Name: "x", Type: FileType(-2)}}}
	encoded, err := Encode(stat)
	require.NoError(t, err)
	decoded, _, err := Decode(encoded)
	require.NoError(t, err)
	resp, ok := decoded.Content.(*StorageStatResponse)
	require.True(t, ok)
	assert.Equal(t, FileType(-2), resp.File.Type)
}

func TestEncodeEmptyContentIsPresent(t *testing.T) {
	t.Parallel()

	got, err := Encode(&Main{CommandID: 3, Content: &Empty{}})
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 0x08, 0x03, 0x22, 0x00}, got)
}

func TestEncodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Encode(nil)
	require.ErrorIs(t, err, ErrNilMessage)

	_, err = Encode(&Main{Content: &Unknown{Field: 2}})
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = Encode(&Main{Content: &Unknown{Field: int32(fieldPingRequest)}})
	require.ErrorIs(t, err, ErrInvalidContent)

	big := make([]byte, MaxMessageSize)
	_, err = Encode(&Main{Content: &PingRequest{Data: big}})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestLaunchRequestAtCommandIDOne(t *testing.T) {
	t.Parallel()

	codec := NewCodec()
	codec.Increment()

	req := codec.NewRequest(&AppStartRequest{Name: "/ext/app.fap", Args: "/ext/chungus_app.fap"}, true)
	encoded, err := Encode(req)
	require.NoError(t, err)

	decoded, _, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), decoded.CommandID)
	assert.Equal(t, StatusOK, decoded.Status)

	start, ok := decoded.Content.(*AppStartRequest)
	require.True(t, ok, "content is %s", Kind(decoded.Content))
	assert.Equal(t, "/ext/app.fap", start.Name)
	assert.Equal(t, "/ext/chungus_app.fap", start.Args)
	assert.Equal(t, uint32(2), codec.CommandID())
}

func TestCodecIncrement(t *testing.T) {
	t.Parallel()

	codec := NewCodec()
	assert.Equal(t, uint32(0), codec.CommandID())

	first := codec.NewRequest(&StorageWriteRequest{Path: "/a"}, false)
	second := codec.NewRequest(&StorageWriteRequest{Path: "/a"}, false)
	assert.Equal(t, first.CommandID, second.CommandID)
	assert.Equal(t, uint32(0), codec.CommandID())

	codec.Increment()
	alert := codec.NewRequest(&SystemPlayAudiovisualAlertRequest{}, true)
	assert.Equal(t, uint32(1), alert.CommandID)
	assert.Equal(t, uint32(2), codec.CommandID())
}

func TestDecodeIncompletePrefixes(t *testing.T) {
	t.Parallel()

	encoded, err := Encode(&Main{
		CommandID: 300,
		HasNext:   true,
		Content:   &StorageReadResponse{File: &File{Data: make([]byte, 200)}},
	})
	require.NoError(t, err)

	for i := 0; i < len(encoded); i++ {
		_, n, err := Decode(encoded[:i])
		require.Error(t, err, "prefix %d", i)
		assert.True(t, IsIncomplete(err), "prefix %d: %v", i, err)
		assert.Zero(t, n)
	}

	_, n, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	t.Parallel()

	first, err := Encode(&Main{CommandID: 1, HasNext: true, Content: &Empty{}})
	require.NoError(t, err)
	second, err := Encode(&Main{CommandID: 1})
	require.NoError(t, err)

	buf := append(append([]byte{}, first...), second[:1]...)
	m, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(first), n)
	assert.True(t, m.HasNext)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	path := []byte("/ext/apps/NFC/")
	tests := []struct {
		name string
		data []byte
	}{
		{name: "zero field number", data: append([]byte{18, 0, 16, 10, 14}, path...)},
		{name: "garbage tag", data: []byte{3, 0xFF, 0xFF, 0xFF}},
		{name: "overflowing length prefix", data: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "declared length too large", data: []byte{0x80, 0x80, 0x08, 0x00}},
		{name: "submessage longer than body", data: []byte{3, 58, 10, 10}},
		{name: "invalid wire type", data: []byte{2, 0x0F, 0x00}},
		{name: "invalid utf8 path", data: []byte{5, 58, 3, 10, 1, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, n, err := Decode(tt.data)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Zero(t, n)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.False(t, IsIncomplete(err))

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, Malformed, decErr.Kind)
		})
	}
}

func TestDecodeDeclaredLengthBeyondData(t *testing.T) {
	t.Parallel()

	// Declares 40 bytes but carries a truncated, garbage body.
	_, _, err := Decode([]byte{40, 0x0A, 0x05, 'a', 'b'})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncomplete)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 41, decErr.Needed)
	assert.Equal(t, 5, decErr.Have)
}

func TestDecodeUnknownContent(t *testing.T) {
	t.Parallel()

	// A prefix of 4 cuts the field 20 submessage short.
	_, _, err := Decode([]byte{4, 0x08, 0x02, 0xA2, 0x01, 0x00})
	require.ErrorIs(t, err, ErrMalformed)

	// command_id=2, field 20 (gui start screen stream) with an empty body.
	m, n, err := Decode([]byte{5, 0x08, 0x02, 0xA2, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, &Unknown{Field: 20}, m.Content)
	assert.Equal(t, "unknown", Kind(m.Content))
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "ERROR_STORAGE_NOT_EXIST", StatusStorageNotExist.String())
	assert.Equal(t, "STATUS(99)", CommandStatus(99).String())
	assert.True(t, StatusAppCmdError.Known())
	assert.False(t, CommandStatus(40).Known())
}

func TestDateTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", 3600)
	sunday := time.Date(2026, time.March, 1, 13, 4, 5, 0, loc)

	dt := NewDateTime(sunday)
	assert.Equal(t, &DateTime{
		Hour: 13, Minute: 4, Second: 5, Day: 1, Month: 3, Year: 2026, Weekday: 7,
	}, dt)
	assert.True(t, sunday.Equal(dt.Time(loc)))

	monday := NewDateTime(sunday.AddDate(0, 0, 1))
	assert.Equal(t, uint32(1), monday.Weekday)
}

func TestMainString(t *testing.T) {
	t.Parallel()

	var nilMsg *Main
	assert.Equal(t, "<nil>", nilMsg.String())
	assert.Equal(t, "id=4 status=OK has_next=true content=storage_read_request",
		(&Main{CommandID: 4, HasNext: true, Content: &StorageReadRequest{}}).String())
}
