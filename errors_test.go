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
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-flipper/message"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout", err: ErrTransportTimeout, want: true},
		{name: "wrapped read", err: fmt.Errorf("tx: %w", ErrTransportRead), want: true},
		{name: "device not found", err: ErrDeviceNotFound, want: true},
		{name: "busy status", err: &StatusError{Status: message.StatusErrorBusy}, want: true},
		{name: "invalid path", err: &PathError{Op: "stat", Path: "/ext/x"}, want: false},
		{name: "closed transport", err: NewTransportError("write", CharacteristicRX, ErrTransportClosed), want: false},
		{name: "transient transport", err: NewTransportError("write", CharacteristicRX, ErrTransportWrite), want: true},
		{name: "session terminated", err: ErrSessionTerminated, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "closed", err: ErrTransportClosed, want: true},
		{name: "session terminated", err: fmt.Errorf("ping: %w", ErrSessionTerminated), want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "closed pipe", err: io.ErrClosedPipe, want: true},
		{name: "usb unplugged", err: fmt.Errorf("read: %w", syscall.ENXIO), want: true},
		{name: "eio", err: syscall.EIO, want: true},
		{name: "timeout", err: NewTimeoutError("receive", CharacteristicTX), want: false},
		{name: "status", err: &StatusError{Status: message.StatusStorageNotExist}, want: false},
		{name: "unrelated errno", err: syscall.EAGAIN, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestNewTransportErrorClassification(t *testing.T) {
	t.Parallel()

	timeout := NewTimeoutError("receive", CharacteristicTX)
	assert.Equal(t, ErrorTypeTimeout, timeout.Type)
	assert.True(t, timeout.Retryable)
	assert.ErrorIs(t, timeout, ErrTransportTimeout)
	assert.Equal(t, "receive tx: transport timeout", timeout.Error())

	closed := NewTransportError("subscribe", CharacteristicFlowControl, ErrTransportClosed)
	assert.Equal(t, ErrorTypePermanent, closed.Type)
	assert.False(t, closed.Retryable)

	write := NewTransportError("write", CharacteristicRX, ErrTransportWrite)
	assert.Equal(t, ErrorTypeTransient, write.Type)
}

func TestStatusErrorSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want   error
		name   string
		status message.CommandStatus
	}{
		{name: "not exist", status: message.StatusStorageNotExist, want: ErrInvalidPath},
		{name: "invalid name", status: message.StatusStorageInvalidName, want: ErrInvalidPath},
		{name: "exist", status: message.StatusStorageExist, want: ErrAlreadyExists},
		{name: "dir not empty", status: message.StatusStorageDirNotEmpty, want: ErrDirNotEmpty},
		{name: "decode", status: message.StatusErrorDecode, want: ErrDeviceDecode},
		{name: "busy", status: message.StatusErrorBusy, want: ErrDeviceBusy},
		{name: "locked", status: message.StatusAppSystemLocked, want: ErrDeviceLocked},
		{name: "invalid parameters", status: message.StatusInvalidParameters, want: ErrInvalidParameters},
		{name: "storage parameter", status: message.StatusStorageInvalidParameter, want: ErrInvalidParameters},
		{name: "gpio", status: message.StatusGpioModeIncorrect, want: ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkStatus("op", &message.Main{CommandID: 3, Status: tt.status})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, uint32(3), se.CommandID)
			assert.Contains(t, err.Error(), tt.status.String())
		})
	}
}

func TestCheckStatusOK(t *testing.T) {
	t.Parallel()
	assert.NoError(t, checkStatus("op", &message.Main{Status: message.StatusOK}))
}

func TestPathError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &PathError{Op: "list", Path: "/ext/missing"})
	require.ErrorIs(t, err, ErrInvalidPath)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/ext/missing", pe.Path)
	assert.Equal(t, "list /ext/missing: invalid path", pe.Error())
}
