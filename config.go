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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-flipper/internal/frame"
)

// Link timing defaults. These were tuned against real hardware over BLE and
// are not part of the protocol; slower links may need larger values.
const (
	DefaultChunkDelay       = 80 * time.Millisecond
	DefaultFlowControlDelay = 800 * time.Millisecond
	DefaultReplySettleDelay = 400 * time.Millisecond
	DefaultReadRequestDelay = 200 * time.Millisecond
	DefaultPollInterval     = 5 * time.Millisecond
	DefaultResponseTimeout  = 30 * time.Second
)

// Config contains the link tunables of a Client.
type Config struct {
	// Pacer overrides the pacing policy built from ChunkDelay and
	// FlowControlDelay.
	Pacer Pacer
	// TransportUnitSize is the largest single link write.
	TransportUnitSize int
	// FileSegmentSize is the file content carried by one write request.
	FileSegmentSize int
	// ChunkDelay is the pause after every chunk write.
	ChunkDelay time.Duration
	// FlowControlDelay is the extra pause after the device signals flow
	// control.
	FlowControlDelay time.Duration
	// ReplySettleDelay is the wait before reading the reply of an upload.
	ReplySettleDelay time.Duration
	// ReadRequestDelay is the wait after sending a read request before
	// polling for its data.
	ReadRequestDelay time.Duration
	// PollInterval is the sleep between empty notification polls.
	PollInterval time.Duration
	// ResponseTimeout bounds the wait for each response message.
	ResponseTimeout time.Duration
	// AckDownload sends an empty OK request after a completed download.
	// Some firmware answers it, so it is off by default.
	AckDownload bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() *Config {
	return &Config{
		TransportUnitSize: frame.DefaultTransportUnit,
		FileSegmentSize:   frame.DefaultFileSegment,
		ChunkDelay:        DefaultChunkDelay,
		FlowControlDelay:  DefaultFlowControlDelay,
		ReplySettleDelay:  DefaultReplySettleDelay,
		ReadRequestDelay:  DefaultReadRequestDelay,
		PollInterval:      DefaultPollInterval,
		ResponseTimeout:   DefaultResponseTimeout,
	}
}

// Validate checks that sizes and delays are usable.
func (c *Config) Validate() error {
	switch {
	case c.TransportUnitSize <= 0:
		return fmt.Errorf("%w: transport unit size must be positive, got %d",
			ErrInvalidParameters, c.TransportUnitSize)
	case c.FileSegmentSize <= 0:
		return fmt.Errorf("%w: file segment size must be positive, got %d",
			ErrInvalidParameters, c.FileSegmentSize)
	case c.ChunkDelay < 0, c.FlowControlDelay < 0, c.ReplySettleDelay < 0, c.ReadRequestDelay < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidParameters)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalidParameters, c.PollInterval)
	case c.ResponseTimeout <= 0:
		return fmt.Errorf("%w: response timeout must be positive, got %v", ErrInvalidParameters, c.ResponseTimeout)
	}
	return nil
}

func (c *Config) pacer() Pacer {
	if c.Pacer != nil {
		return c.Pacer
	}
	return &FixedPacer{ChunkDelay: c.ChunkDelay, FlowControlDelay: c.FlowControlDelay}
}
