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

import "github.com/ZaparooProject/go-flipper/internal/syncutil"

// notificationQueue buffers notification values of one characteristic
// until the client polls them. When full, the oldest value is dropped.
type notificationQueue struct {
	items   [][]byte
	limit   int
	dropped uint64
	mu      syncutil.Mutex
}

func newNotificationQueue(limit int) *notificationQueue {
	return &notificationQueue{limit: limit}
}

// push stores a copy of value and reports whether an older value had to
// be dropped to make room.
func (q *notificationQueue) push(value []byte) bool {
	item := append([]byte(nil), value...)
	q.mu.Lock()
	defer q.mu.Unlock()
	overflow := len(q.items) >= q.limit
	if overflow {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, item)
	return overflow
}

func (q *notificationQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item, true
}

func (q *notificationQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *notificationQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
