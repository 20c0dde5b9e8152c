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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 350, cfg.TransportUnitSize)
	assert.Equal(t, 512, cfg.FileSegmentSize)
	assert.Equal(t, 80*time.Millisecond, cfg.ChunkDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.FlowControlDelay)
	assert.False(t, cfg.AckDownload)

	pacer, ok := cfg.pacer().(*FixedPacer)
	require.True(t, ok)
	assert.Equal(t, cfg.ChunkDelay, pacer.ChunkDelay)
	assert.Equal(t, cfg.FlowControlDelay, pacer.FlowControlDelay)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*Config)
		name   string
	}{
		{name: "zero unit", mutate: func(c *Config) { c.TransportUnitSize = 0 }},
		{name: "negative segment", mutate: func(c *Config) { c.FileSegmentSize = -1 }},
		{name: "negative chunk delay", mutate: func(c *Config) { c.ChunkDelay = -time.Millisecond }},
		{name: "negative settle delay", mutate: func(c *Config) { c.ReplySettleDelay = -1 }},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.ResponseTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidParameters)

			_, err := New(NewMockTransport(), WithConfig(cfg))
			require.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestConfigPacerOverride(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Pacer = NoDelayPacer{}
	assert.Equal(t, NoDelayPacer{}, cfg.pacer())
}

func TestTransportEnums(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rx", CharacteristicRX.String())
	assert.Equal(t, "tx", CharacteristicTX.String())
	assert.Equal(t, "flow_control", CharacteristicFlowControl.String())
	assert.Equal(t, "unknown", Characteristic(9).String())
	assert.Equal(t, RXCharacteristicUUID, CharacteristicRX.UUID())
	assert.Equal(t, FlowCharacteristicUUID, CharacteristicFlowControl.UUID())
	assert.Empty(t, Characteristic(9).UUID())
	assert.Equal(t, "with_response", WriteWithResponse.String())
	assert.Equal(t, "without_response", WriteWithoutResponse.String())
}
