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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPacerAddsFlowControlDelay(t *testing.T) {
	t.Parallel()

	p := &FixedPacer{ChunkDelay: time.Millisecond, FlowControlDelay: 30 * time.Millisecond}

	start := time.Now()
	require.NoError(t, p.Pause(context.Background(), false))
	quiet := time.Since(start)

	start = time.Now()
	require.NoError(t, p.Pause(context.Background(), true))
	signalled := time.Since(start)

	assert.GreaterOrEqual(t, signalled, 31*time.Millisecond)
	assert.Less(t, quiet, signalled)
}

func TestPacersHonourCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pacers := map[string]Pacer{
		"fixed":    &FixedPacer{ChunkDelay: time.Hour},
		"no delay": NoDelayPacer{},
		"adaptive": &AdaptivePacer{ChunkDelay: time.Hour, MaxDelay: time.Hour},
	}
	for name, p := range pacers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, p.Pause(ctx, true), context.Canceled)
		})
	}
}

func TestAdaptivePacerBackoff(t *testing.T) {
	t.Parallel()

	p := &AdaptivePacer{MaxDelay: 8 * time.Millisecond}
	ctx := context.Background()

	steps := []struct {
		flow bool
		want time.Duration
	}{
		{flow: true, want: time.Millisecond},
		{flow: true, want: 2 * time.Millisecond},
		{flow: true, want: 4 * time.Millisecond},
		{flow: true, want: 8 * time.Millisecond},
		{flow: true, want: 8 * time.Millisecond},
		{flow: false, want: 4 * time.Millisecond},
		{flow: false, want: 2 * time.Millisecond},
		{flow: false, want: time.Millisecond},
		{flow: false, want: 0},
		{flow: false, want: 0},
	}
	for i, step := range steps {
		require.NoError(t, p.Pause(ctx, step.flow))
		assert.Equal(t, step.want, p.Backoff(), "step %d", i)
	}
}

func TestAdaptivePacerFirstSignalRespectsMaxDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pacer *AdaptivePacer
		want  time.Duration
	}{
		{name: "no backoff allowed", pacer: &AdaptivePacer{}, want: 0},
		{name: "chunk delay above max", pacer: &AdaptivePacer{ChunkDelay: 5 * time.Millisecond, MaxDelay: 2 * time.Millisecond}, want: 2 * time.Millisecond},
		{name: "chunk delay below max", pacer: &AdaptivePacer{ChunkDelay: time.Millisecond, MaxDelay: 8 * time.Millisecond}, want: time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, tt.pacer.Pause(context.Background(), true))
			assert.Equal(t, tt.want, tt.pacer.Backoff())
		})
	}
}

func TestNewAdaptivePacerDefaults(t *testing.T) {
	t.Parallel()

	p := NewAdaptivePacer()
	assert.Equal(t, DefaultChunkDelay, p.ChunkDelay)
	assert.Equal(t, DefaultFlowControlDelay, p.MaxDelay)
	assert.Zero(t, p.Backoff())
}
