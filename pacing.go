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
	"context"
	"time"

	"github.com/ZaparooProject/go-flipper/internal/syncutil"
)

// Pacer decides how long to wait after each chunk write. flowControl is
// true when the device sent a flow-control notification since the previous
// chunk. The device has no per-chunk acknowledgement, so pacing is the only
// thing keeping its receive buffer from overrunning.
type Pacer interface {
	Pause(ctx context.Context, flowControl bool) error
}

// FixedPacer waits ChunkDelay after every chunk, plus FlowControlDelay
// first when flow control was signalled.
type FixedPacer struct {
	ChunkDelay       time.Duration
	FlowControlDelay time.Duration
}

// Pause implements Pacer.
func (p *FixedPacer) Pause(ctx context.Context, flowControl bool) error {
	if flowControl {
		if err := sleepContext(ctx, p.FlowControlDelay); err != nil {
			return err
		}
	}
	return sleepContext(ctx, p.ChunkDelay)
}

// NoDelayPacer never waits. It is meant for tests and loopback links.
type NoDelayPacer struct{}

// Pause implements Pacer.
func (NoDelayPacer) Pause(ctx context.Context, _ bool) error {
	return ctx.Err()
}

// AdaptivePacer backs off exponentially on repeated flow-control signals and
// recovers on quiet chunks. The extra delay starts at ChunkDelay, doubles per
// signal up to MaxDelay and halves per quiet chunk back to zero.
type AdaptivePacer struct {
	ChunkDelay time.Duration
	MaxDelay   time.Duration
	extra      time.Duration
	mu         syncutil.Mutex
}

// NewAdaptivePacer returns an adaptive pacer with the default delays.
func NewAdaptivePacer() *AdaptivePacer {
	return &AdaptivePacer{ChunkDelay: DefaultChunkDelay, MaxDelay: DefaultFlowControlDelay}
}

// Pause implements Pacer.
func (p *AdaptivePacer) Pause(ctx context.Context, flowControl bool) error {
	p.mu.Lock()
	switch {
	case flowControl && p.extra == 0:
		p.extra = min(max(p.ChunkDelay, time.Millisecond), p.MaxDelay)
	case flowControl:
		p.extra = min(p.extra*2, p.MaxDelay)
	default:
		p.extra /= 2
		if p.extra < time.Millisecond {
			p.extra = 0
		}
	}
	wait := p.ChunkDelay + p.extra
	p.mu.Unlock()

	return sleepContext(ctx, wait)
}

// Backoff returns the current extra delay.
func (p *AdaptivePacer) Backoff() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extra
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
