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
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-flipper/message"
)

// Error categories
var (
	// Transport errors - abort the current command
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")
	ErrSubscribe         = errors.New("notification subscribe failed")

	// Protocol errors
	ErrProtocol           = errors.New("protocol error")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrSessionTerminated  = errors.New("device terminated the RPC session")

	// Device errors - reported through a command status
	ErrDeviceError        = errors.New("device reported an error")
	ErrDeviceDecode       = errors.New("device could not decode the request")
	ErrNotImplemented     = errors.New("command not implemented by device")
	ErrDeviceBusy         = errors.New("device busy")
	ErrDeviceLocked       = errors.New("device is locked")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrCommandInterrupted = errors.New("continuous command interrupted")
	ErrAppCantStart       = errors.New("application cannot start")
	ErrAppNotRunning      = errors.New("application not running")
	ErrAppCommand         = errors.New("application command failed")

	// Storage errors
	ErrInvalidPath     = errors.New("invalid path")
	ErrStorageNotReady = errors.New("storage not ready")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAccessDenied    = errors.New("access denied")
	ErrStorageInternal = errors.New("storage internal error")
	ErrAlreadyOpen     = errors.New("file already open")
	ErrDirNotEmpty     = errors.New("directory not empty")

	// Connection errors
	ErrDeviceNotFound = errors.New("device not found")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates the connection is unusable
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err            error          // Underlying error
	Op             string         // Operation that failed
	Characteristic Characteristic // Characteristic involved
	Type           ErrorType      // Error category
	Retryable      bool           // Whether a connection retry may help
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Characteristic, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error, classifying err.
func NewTransportError(op string, ch Characteristic, err error) *TransportError {
	errType := ErrorTypeTransient
	switch {
	case errors.Is(err, ErrTransportTimeout):
		errType = ErrorTypeTimeout
	case IsFatal(err):
		errType = ErrorTypePermanent
	}
	return &TransportError{
		Op:             op,
		Characteristic: ch,
		Err:            err,
		Type:           errType,
		Retryable:      errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a timeout error for a characteristic wait.
func NewTimeoutError(op string, ch Characteristic) *TransportError {
	return NewTransportError(op, ch, ErrTransportTimeout)
}

// StatusError is a non-OK command status reported by the device.
type StatusError struct {
	Command   string
	CommandID uint32
	Status    message.CommandStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (id %d): device status %s: %v",
		e.Command, e.CommandID, e.Status, statusSentinel(e.Status))
}

// Unwrap returns the sentinel for the status, so callers can use
// errors.Is(err, ErrInvalidPath) and friends.
func (e *StatusError) Unwrap() error {
	return statusSentinel(e.Status)
}

// PathError reports a storage path the device does not recognize. The
// device signals this with an empty payload instead of a status code.
type PathError struct {
	Op   string
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, ErrInvalidPath)
}

func (*PathError) Unwrap() error {
	return ErrInvalidPath
}

// IsRetryable returns true if reconnecting and repeating the operation may
// succeed. Commands themselves are never retried automatically.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransportNotReady),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrDeviceBusy):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the connection or the RPC
// session is gone and a new connection is required.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrSessionTerminated),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when the USB cable is
// pulled during serial I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}
