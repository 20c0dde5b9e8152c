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

//go:build deadlock

package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection reports whether the deadlock-detecting locks are
// compiled in.
const DeadlockDetection = true

func init() {
	// A download of a large file holds the command lock for minutes.
	deadlock.Opts.DeadlockTimeout = 10 * time.Minute
}

// Mutex serializes commands on one connection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex guards state read far more often than written.
type RWMutex struct {
	deadlock.RWMutex
}
