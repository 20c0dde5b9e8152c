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

package testing

import (
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig shapes how a virtual device delivers its bytes: fragment
// sizes drawn between MinFragment and MaxFragment, optional latency, and a
// flow-control notification every FlowControlEvery received bytes.
type JitterConfig struct {
	Seed             uint64
	MinFragment      int
	MaxFragment      int
	FlowControlEvery int
	MaxLatency       time.Duration
}

// DefaultJitterConfig mimics a BLE link with a negotiated MTU around 20
// to 244 bytes and no added latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MinFragment:      20,
		MaxFragment:      244,
		FlowControlEvery: 1024,
	}
}

func newRNG(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // test fragmentation only
	}
	return rand.New(rand.NewPCG(seed, seed^0xF11BBE5)) //nolint:gosec // test fragmentation only
}

// Fragmenter draws fragment sizes from a JitterConfig.
type Fragmenter struct {
	rng    *rand.Rand
	config JitterConfig
}

// NewFragmenter normalizes config and seeds the size generator. A zero seed
// picks a random one.
func NewFragmenter(config JitterConfig) *Fragmenter {
	if config.MinFragment < 1 {
		config.MinFragment = 1
	}
	if config.MaxFragment < config.MinFragment {
		config.MaxFragment = config.MinFragment
	}
	return &Fragmenter{config: config, rng: newRNG(config.Seed)}
}

// Next returns the size of the next fragment when pending bytes wait.
func (f *Fragmenter) Next(pending int) int {
	if pending <= 0 {
		return 0
	}
	size := f.config.MinFragment
	if span := f.config.MaxFragment - f.config.MinFragment; span > 0 {
		size += f.rng.IntN(span + 1)
	}
	return min(size, pending)
}

// Latency returns a random delay up to MaxLatency.
func (f *Fragmenter) Latency() time.Duration {
	if f.config.MaxLatency <= 0 {
		return 0
	}
	return time.Duration(f.rng.Int64N(int64(f.config.MaxLatency) + 1))
}

// JitteryConnection wraps a byte stream such as a virtual serial port and
// returns its data in random fragments, the way a USB CDC endpoint splits
// reads. Writes pass through untouched.
type JitteryConnection struct {
	backend io.ReadWriter
	frag    *Fragmenter
	readBuf []byte
}

// NewJitteryConnection wraps backend.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	return &JitteryConnection{
		backend: backend,
		frag:    NewFragmenter(config),
		readBuf: make([]byte, 0, 1024),
	}
}

// Write passes data to the backend.
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns at most one fragment of buffered backend data. Bytes that
// do not fit the fragment stay buffered for the next Read.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	if d := j.frag.Latency(); d > 0 {
		time.Sleep(d)
	}

	if len(j.readBuf) == 0 {
		tmp := make([]byte, max(len(buf), 256))
		n, err := j.backend.Read(tmp)
		if n > 0 {
			j.readBuf = append(j.readBuf, tmp[:n]...)
		}
		if len(j.readBuf) == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
	}

	n := min(j.frag.Next(len(j.readBuf)), len(buf))
	copy(buf, j.readBuf[:n])
	j.readBuf = j.readBuf[n:]
	return n, nil
}

// Buffered returns the number of bytes read from the backend but not yet
// returned.
func (j *JitteryConnection) Buffered() int {
	return len(j.readBuf)
}
