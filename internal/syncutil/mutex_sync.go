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

//go:build !deadlock

// Package syncutil holds the locks used across the client. Builds with
// -tags=deadlock swap them for github.com/sasha-s/go-deadlock so a command
// stuck behind another command's lock is reported instead of hanging.
package syncutil

import "sync"

// DeadlockDetection reports whether the deadlock-detecting locks are
// compiled in.
const DeadlockDetection = false

// Mutex serializes commands on one connection.
//
//nolint:gocritic // embedded so callers get Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex guards state read far more often than written, such as
// notification queues.
//
//nolint:gocritic // embedded so callers get Lock/Unlock directly
type RWMutex struct {
	sync.RWMutex
}
