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

//go:build !baremetal

package ble

// gattCharacteristic is what the BlueZ backend offers. It has no
// acknowledged write.
type gattCharacteristic interface {
	WriteWithoutResponse(p []byte) (int, error)
	Read(data []byte) (int, error)
	EnableNotifications(callback func(buf []byte)) error
}

// bluezCharacteristic sends writes with response as writes without
// response. BlueZ keeps them in order and the device answers on TX either
// way.
type bluezCharacteristic struct {
	gattCharacteristic
}

func (c bluezCharacteristic) Write(p []byte) (int, error) {
	return c.WriteWithoutResponse(p)
}

func newCharacteristic(c gattCharacteristic) characteristic {
	return bluezCharacteristic{c}
}
