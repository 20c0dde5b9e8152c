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

import "github.com/ZaparooProject/go-flipper/message"

var statusErrors = map[message.CommandStatus]error{
	message.StatusError:                        ErrDeviceError,
	message.StatusErrorDecode:                  ErrDeviceDecode,
	message.StatusErrorNotImplemented:          ErrNotImplemented,
	message.StatusErrorBusy:                    ErrDeviceBusy,
	message.StatusStorageNotReady:              ErrStorageNotReady,
	message.StatusStorageExist:                 ErrAlreadyExists,
	message.StatusStorageNotExist:              ErrInvalidPath,
	message.StatusStorageInvalidParameter:      ErrInvalidParameters,
	message.StatusStorageDenied:                ErrAccessDenied,
	message.StatusStorageInvalidName:           ErrInvalidPath,
	message.StatusStorageInternal:              ErrStorageInternal,
	message.StatusStorageNotImplemented:        ErrNotImplemented,
	message.StatusStorageAlreadyOpen:           ErrAlreadyOpen,
	message.StatusContinuousCommandInterrupted: ErrCommandInterrupted,
	message.StatusInvalidParameters:            ErrInvalidParameters,
	message.StatusAppCantStart:                 ErrAppCantStart,
	message.StatusAppSystemLocked:              ErrDeviceLocked,
	message.StatusStorageDirNotEmpty:           ErrDirNotEmpty,
	message.StatusAppNotRunning:                ErrAppNotRunning,
	message.StatusAppCmdError:                  ErrAppCommand,
}

// statusSentinel maps a device status to its sentinel error. Codes without
// a dedicated sentinel map to ErrUnexpectedResponse.
func statusSentinel(s message.CommandStatus) error {
	if err, ok := statusErrors[s]; ok {
		return err
	}
	return ErrUnexpectedResponse
}

// checkStatus returns nil for OK and a *StatusError otherwise.
func checkStatus(command string, m *message.Main) error {
	if m.Status == message.StatusOK {
		return nil
	}
	return &StatusError{Command: command, CommandID: m.CommandID, Status: m.Status}
}
