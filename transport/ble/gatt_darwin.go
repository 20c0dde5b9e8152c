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

package ble

// gattCharacteristic is what the CoreBluetooth backend offers. It cannot
// read a value directly.
type gattCharacteristic interface {
	Write(p []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
	EnableNotifications(callback func(buf []byte)) error
}

// coreBluetoothCharacteristic reports reads as unsupported so the transport
// falls back to notifications.
type coreBluetoothCharacteristic struct {
	gattCharacteristic
}

func (coreBluetoothCharacteristic) Read([]byte) (int, error) {
	return 0, errReadUnsupported
}

func newCharacteristic(c gattCharacteristic) characteristic {
	return coreBluetoothCharacteristic{c}
}
