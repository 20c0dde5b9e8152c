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

import "fmt"

// CommandStatus is the outcome code the device attaches to every response.
type CommandStatus int32

// Device status codes (PB.CommandStatus).
const (
	StatusOK                           CommandStatus = 0
	StatusError                        CommandStatus = 1
	StatusErrorDecode                  CommandStatus = 2
	StatusErrorNotImplemented          CommandStatus = 3
	StatusErrorBusy                    CommandStatus = 4
	StatusStorageNotReady              CommandStatus = 5
	StatusStorageExist                 CommandStatus = 6
	StatusStorageNotExist              CommandStatus = 7
	StatusStorageInvalidParameter      CommandStatus = 8
	StatusStorageDenied                CommandStatus = 9
	StatusStorageInvalidName           CommandStatus = 10
	StatusStorageInternal              CommandStatus = 11
	StatusStorageNotImplemented        CommandStatus = 12
	StatusStorageAlreadyOpen           CommandStatus = 13
	StatusContinuousCommandInterrupted CommandStatus = 14
	StatusInvalidParameters            CommandStatus = 15
	StatusAppCantStart                 CommandStatus = 16
	StatusAppSystemLocked              CommandStatus = 17
	StatusStorageDirNotEmpty           CommandStatus = 18
	StatusVirtualDisplayAlreadyStarted CommandStatus = 19
	StatusVirtualDisplayNotStarted     CommandStatus = 20
	StatusAppNotRunning                CommandStatus = 21
	StatusAppCmdError                  CommandStatus = 22
	StatusGpioModeIncorrect            CommandStatus = 58
	StatusGpioUnknownPinMode           CommandStatus = 59
)

var statusNames = map[CommandStatus]string{
	StatusOK:                           "OK",
	StatusError:                        "ERROR",
	StatusErrorDecode:                  "ERROR_DECODE",
	StatusErrorNotImplemented:          "ERROR_NOT_IMPLEMENTED",
	StatusErrorBusy:                    "ERROR_BUSY",
	StatusStorageNotReady:              "ERROR_STORAGE_NOT_READY",
	StatusStorageExist:                 "ERROR_STORAGE_EXIST",
	StatusStorageNotExist:              "ERROR_STORAGE_NOT_EXIST",
	StatusStorageInvalidParameter:      "ERROR_STORAGE_INVALID_PARAMETER",
	StatusStorageDenied:                "ERROR_STORAGE_DENIED",
	StatusStorageInvalidName:           "ERROR_STORAGE_INVALID_NAME",
	StatusStorageInternal:              "ERROR_STORAGE_INTERNAL",
	StatusStorageNotImplemented:        "ERROR_STORAGE_NOT_IMPLEMENTED",
	StatusStorageAlreadyOpen:           "ERROR_STORAGE_ALREADY_OPEN",
	StatusContinuousCommandInterrupted: "ERROR_CONTINUOUS_COMMAND_INTERRUPTED",
	StatusInvalidParameters:            "ERROR_INVALID_PARAMETERS",
	StatusAppCantStart:                 "ERROR_APP_CANT_START",
	StatusAppSystemLocked:              "ERROR_APP_SYSTEM_LOCKED",
	StatusStorageDirNotEmpty:           "ERROR_STORAGE_DIR_NOT_EMPTY",
	StatusVirtualDisplayAlreadyStarted: "ERROR_VIRTUAL_DISPLAY_ALREADY_STARTED",
	StatusVirtualDisplayNotStarted:     "ERROR_VIRTUAL_DISPLAY_NOT_STARTED",
	StatusAppNotRunning:                "ERROR_APP_NOT_RUNNING",
	StatusAppCmdError:                  "ERROR_APP_CMD_ERROR",
	StatusGpioModeIncorrect:            "ERROR_GPIO_MODE_INCORRECT",
	StatusGpioUnknownPinMode:           "ERROR_GPIO_UNKNOWN_PIN_MODE",
}

// String returns the protocol name of the status, or a numeric form for
// codes this package does not know.
func (s CommandStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int32(s))
}

// Known reports whether s is one of the defined status codes.
func (s CommandStatus) Known() bool {
	_, ok := statusNames[s]
	return ok
}
