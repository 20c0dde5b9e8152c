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

package frame

import "sync"

// ReadBufferSize is the size of pooled transport read buffers.
const ReadBufferSize = 1024

// BufferPool hands out fixed-size read buffers for transport reader loops,
// which otherwise allocate on every inbound block.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = ReadBufferSize
	}
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a buffer of the pool's size.
func (p *BufferPool) Get() []byte {
	bufPtr, ok := p.pool.Get().(*[]byte)
	if !ok {
		return make([]byte, p.size)
	}
	return (*bufPtr)[:p.size]
}

// Put returns buf to the pool. Buffers of a foreign size are dropped.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	clear(buf)
	p.pool.Put(&buf)
}
