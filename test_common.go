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

//go:build !prod

package flipper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
	testutil "github.com/ZaparooProject/go-flipper/internal/testing"
	"github.com/ZaparooProject/go-flipper/message"
)

// testConfig keeps the real sizes but removes every delay.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ChunkDelay = 0
	cfg.FlowControlDelay = 0
	cfg.ReplySettleDelay = 0
	cfg.ReadRequestDelay = 0
	cfg.PollInterval = time.Millisecond
	cfg.ResponseTimeout = 2 * time.Second
	return cfg
}

// createMockClient creates a client on a MockTransport with pacing
// disabled.
func createMockClient(t *testing.T, opts ...Option) (*Client, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	opts = append([]Option{WithConfig(testConfig()), WithPacer(NoDelayPacer{})}, opts...)
	client, err := New(mock, opts...)
	require.NoError(t, err)
	return client, mock
}

// mockResponder decodes the requests written to a MockTransport and
// queues scripted answers once a request is complete.
type mockResponder struct {
	mock     *MockTransport
	reasm    *frame.Reassembler
	answer   func(req *message.Main) (notify, read [][]byte)
	requests []*message.Main
	mu       syncutil.Mutex
}

// respondWith installs answer as the device behaviour of mock. Answers in
// notify are queued as TX notifications, those in read as TX read values.
func respondWith(mock *MockTransport, answer func(req *message.Main) (notify, read [][]byte)) *mockResponder {
	r := &mockResponder{mock: mock, reasm: frame.NewReassembler(), answer: answer}
	mock.OnWrite(r.onWrite)
	return r
}

func (r *mockResponder) onWrite(rec WriteRecord) {
	if rec.Characteristic != CharacteristicRX {
		return
	}
	r.mu.Lock()
	r.reasm.Feed(rec.Data)
	var decoded []*message.Main
	for {
		m, err := r.reasm.TryDecode()
		if err != nil {
			break
		}
		decoded = append(decoded, m)
	}
	r.requests = append(r.requests, decoded...)
	r.mu.Unlock()

	for _, m := range decoded {
		notify, read := r.answer(m)
		for _, n := range notify {
			r.mock.QueueNotification(CharacteristicTX, n)
		}
		for _, v := range read {
			r.mock.QueueRead(CharacteristicTX, v)
		}
	}
}

// Requests returns the requests decoded so far.
func (r *mockResponder) Requests() []*message.Main {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*message.Main(nil), r.requests...)
}

// fragments splits b into pieces of at most size bytes.
func fragments(b []byte, size int) [][]byte {
	var out [][]byte
	for _, c := range frame.Split(b, size) {
		out = append(out, c.Data)
	}
	return out
}

// virtualTransport adapts a VirtualFlipper to Transport: RX writes go to
// the device, TX notifications and reads come from its fragmented output.
type virtualTransport struct {
	device     *testutil.VirtualFlipper
	subscribed map[Characteristic]bool
	writes     int
	mu         syncutil.Mutex
	closed     bool
}

func newVirtualTransport(device *testutil.VirtualFlipper) *virtualTransport {
	return &virtualTransport{device: device, subscribed: map[Characteristic]bool{}}
}

func (v *virtualTransport) Write(ctx context.Context, ch Characteristic, data []byte, _ WriteMode) error {
	if err := v.check(ctx); err != nil {
		return err
	}
	if ch != CharacteristicRX {
		return ErrTransportWrite
	}
	v.mu.Lock()
	v.writes++
	v.mu.Unlock()
	_, err := v.device.Write(data)
	return err //nolint:wrapcheck // test adapter
}

func (v *virtualTransport) Read(ctx context.Context, ch Characteristic) ([]byte, error) {
	if err := v.check(ctx); err != nil {
		return nil, err
	}
	if ch != CharacteristicTX {
		return nil, nil
	}
	data, _ := v.device.NextNotification()
	return data, nil
}

func (v *virtualTransport) Subscribe(ctx context.Context, ch Characteristic) error {
	if err := v.check(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	v.subscribed[ch] = true
	v.mu.Unlock()
	return nil
}

func (v *virtualTransport) PollNotification(ch Characteristic) ([]byte, bool) {
	v.mu.Lock()
	subscribed := v.subscribed[ch]
	v.mu.Unlock()
	if !subscribed {
		return nil, false
	}
	switch ch {
	case CharacteristicTX:
		return v.device.NextNotification()
	case CharacteristicFlowControl:
		return v.device.NextFlowControl()
	default:
		return nil, false
	}
}

func (v *virtualTransport) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

func (v *virtualTransport) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

func (*virtualTransport) Type() TransportType {
	return TransportMock
}

func (v *virtualTransport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // test adapter
	}
	if !v.IsConnected() {
		return ErrTransportClosed
	}
	return nil
}

// createVirtualClient connects a client to a fresh virtual device.
func createVirtualClient(t *testing.T, config testutil.JitterConfig, opts ...Option) (*Client, *testutil.VirtualFlipper) {
	t.Helper()
	device := testutil.NewVirtualFlipper(config)
	opts = append([]Option{WithConfig(testConfig()), WithPacer(NoDelayPacer{})}, opts...)
	client, err := New(newVirtualTransport(device), opts...)
	require.NoError(t, err)
	return client, device
}
