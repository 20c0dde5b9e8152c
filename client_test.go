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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	testutil "github.com/ZaparooProject/go-flipper/internal/testing"
	"github.com/ZaparooProject/go-flipper/message"
)

type recordingPacer struct {
	flags []bool
	mu    sync.Mutex
}

func (p *recordingPacer) Pause(ctx context.Context, flowControl bool) error {
	p.mu.Lock()
	p.flags = append(p.flags, flowControl)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *recordingPacer) Flags() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.flags...)
}

func pingAnswer(req *message.Main) ([][]byte, [][]byte) {
	ping, ok := req.Content.(*message.PingRequest)
	if !ok {
		return nil, nil
	}
	resp := &message.Main{CommandID: req.CommandID, Content: &message.PingResponse{Data: ping.Data}}
	return [][]byte{testutil.EncodeResponse(resp)}, nil
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(NewMockTransport(), WithConfig(nil))
	require.ErrorIs(t, err, ErrInvalidParameters)

	bad := DefaultConfig()
	bad.TransportUnitSize = 0
	_, err = New(NewMockTransport(), WithConfig(bad))
	require.ErrorIs(t, err, ErrInvalidParameters)

	client, err := New(NewMockTransport())
	require.NoError(t, err)
	assert.IsType(t, &FixedPacer{}, client.pacer)
	assert.Equal(t, TransportMock, client.Transport().Type())
}

func TestWithConfigCopies(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	client, _ := createMockClient(t, WithConfig(cfg))
	cfg.FileSegmentSize = 1
	assert.Equal(t, DefaultConfig().FileSegmentSize, client.config.FileSegmentSize)
}

func TestConfigPacer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pacer = NewAdaptivePacer()
	client, err := New(NewMockTransport(), WithConfig(cfg))
	require.NoError(t, err)
	assert.IsType(t, &AdaptivePacer{}, client.pacer)
}

func TestSendPollsFlowControlPerChunk(t *testing.T) {
	t.Parallel()

	pacer := &recordingPacer{}
	cfg := testConfig()
	cfg.TransportUnitSize = 64
	client, mock := createMockClient(t, WithConfig(cfg), WithPacer(pacer))

	// Signal flow control after every second chunk.
	writes := 0
	respondWith(mock, func(req *message.Main) ([][]byte, [][]byte) {
		return nil, [][]byte{testutil.BuildStatusResponse(req.CommandID, message.StatusOK)}
	})
	responderHook := mock.onWrite
	mock.OnWrite(func(rec WriteRecord) {
		writes++
		if writes%2 == 0 {
			mock.QueueNotification(CharacteristicFlowControl, []byte{0, 0, 0, 0})
		}
		responderHook(rec)
	})

	require.NoError(t, client.Upload(context.Background(), make([]byte, 300), "/ext/f", nil))

	flags := pacer.Flags()
	require.Len(t, flags, writes)
	for i, flag := range flags {
		assert.Equal(t, i%2 == 1, flag, "chunk %d", i)
	}
	assert.Equal(t, uint64(writes/2), client.Metrics().Snapshot().FlowControlEvents)
}

func TestResponseTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ResponseTimeout = 30 * time.Millisecond
	client, _ := createMockClient(t, WithConfig(cfg))

	_, err := client.Stat(context.Background(), "/ext/a")
	require.ErrorIs(t, err, ErrTransportTimeout)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorTypeTimeout, te.Type)
	assert.True(t, IsRetryable(err))

	trace := GetTrace(err)
	require.NotNil(t, trace)
	assert.Contains(t, trace.FormatTrace(), "TIMEOUT")
	assert.Equal(t, "stat", trace.Command)

	// The connection stays usable.
	assert.False(t, client.SessionTerminated())
	assert.Equal(t, uint32(1), client.CommandID())
}

func TestContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	client, _ := createMockClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Stat(ctx, "/ext/a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		setup   func(m *MockTransport)
		wantErr error
		name    string
	}{
		{name: "write", setup: func(m *MockTransport) { m.SetError("write", boom) }, wantErr: ErrTransportWrite},
		{name: "subscribe", setup: func(m *MockTransport) { m.SetError("subscribe", boom) }, wantErr: ErrSubscribe},
		{name: "closed", setup: func(m *MockTransport) { _ = m.Close() }, wantErr: ErrTransportClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, mock := createMockClient(t)
			tt.setup(mock)

			_, err := client.Ping(context.Background(), []byte{1})
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, client.SessionTerminated())
		})
	}
}

func TestUploadReadFailure(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	mock.SetError("read", errors.New("gatt read"))

	err := client.Upload(context.Background(), []byte("abc"), "/ext/abc", nil)
	require.ErrorIs(t, err, ErrTransportRead)
}

func TestSkipsResponsesForOtherCommands(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	respondWith(mock, func(req *message.Main) ([][]byte, [][]byte) {
		notify, _ := pingAnswer(req)
		late := testutil.BuildStatusResponse(req.CommandID+40, message.StatusOK)
		return append([][]byte{late}, notify...), nil
	})

	_, err := client.Ping(context.Background(), []byte("abc"))
	require.NoError(t, err)
}

func TestDiscardsStaleNotifications(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	require.NoError(t, client.Alert(context.Background()))

	// Half a message from an earlier command would poison the next decode.
	mock.QueueNotification(CharacteristicTX, []byte{0x20, 0x08})
	mock.QueueNotification(CharacteristicFlowControl, []byte{0, 0, 0, 0})
	respondWith(mock, pingAnswer)

	_, err := client.Ping(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Zero(t, client.Metrics().Snapshot().FlowControlEvents)
}

func TestMalformedResponse(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	respondWith(mock, func(*message.Main) ([][]byte, [][]byte) {
		return [][]byte{{0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}, nil
	})

	_, err := client.Ping(context.Background(), nil)
	require.ErrorIs(t, err, ErrProtocol)
	require.ErrorIs(t, err, message.ErrMalformed)
	assert.Equal(t, uint64(1), client.Metrics().Snapshot().DecodeMalformed)

	// Only the command failed.
	respondWith(mock, pingAnswer)
	_, err = client.Ping(context.Background(), []byte{7})
	require.NoError(t, err)
}

func TestDeviceDecodeErrorEndsSession(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	respondWith(mock, pingAnswer)
	_, err := client.Ping(context.Background(), []byte{1})
	require.NoError(t, err)

	respondWith(mock, func(*message.Main) ([][]byte, [][]byte) {
		return [][]byte{testutil.BuildStatusResponse(0, message.StatusErrorDecode)}, nil
	})
	_, err = client.Stat(context.Background(), "/ext/a")
	require.ErrorIs(t, err, ErrDeviceDecode)
	assert.True(t, client.SessionTerminated())

	writes := len(mock.Writes())
	_, err = client.Ping(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrSessionTerminated)
	assert.True(t, IsFatal(err))
	assert.Len(t, mock.Writes(), writes)
}

func TestIncompleteDecodesCounted(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	respondWith(mock, func(req *message.Main) ([][]byte, [][]byte) {
		notify, _ := pingAnswer(req)
		return fragments(notify[0], 3), nil
	})

	_, err := client.Ping(context.Background(), []byte("0123456789"))
	require.NoError(t, err)
	assert.Positive(t, client.Metrics().Snapshot().DecodeIncomplete)
}

func TestCommandsAreSerialized(t *testing.T) {
	t.Parallel()

	client, device := createVirtualClient(t, testutil.JitterConfig{Seed: 11, MinFragment: 1, MaxFragment: 8})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Ping(context.Background(), bytes.Repeat([]byte{byte(i)}, 20))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reqs := device.Requests()
	require.Len(t, reqs, 8)
	for i, r := range reqs {
		assert.Equal(t, uint32(i), r.CommandID)
	}
}

func TestLoggingAndMetricsOutput(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	client, mock := createMockClient(t, WithLogger(zap.New(core)))
	respondWith(mock, pingAnswer)

	_, err := client.Ping(context.Background(), []byte("hi"))
	require.NoError(t, err)

	complete := logs.FilterMessage("command complete").All()
	require.Len(t, complete, 1)
	assert.Equal(t, "ping", complete[0].ContextMap()["command"])
	assert.NotEmpty(t, logs.FilterMessage("sending").All())

	var out strings.Builder
	client.WriteMetrics(&out)
	assert.Contains(t, out.String(), "flipper_commands_total 1")
	assert.Contains(t, out.String(), "flipper_chunks_written_total 1")
}

func TestSharedMetrics(t *testing.T) {
	t.Parallel()

	shared := NewMetrics()
	a, mockA := createMockClient(t, WithMetrics(shared))
	b, mockB := createMockClient(t, WithMetrics(shared))
	respondWith(mockA, pingAnswer)
	respondWith(mockB, pingAnswer)

	_, err := a.Ping(context.Background(), nil)
	require.NoError(t, err)
	_, err = b.Ping(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), shared.Snapshot().Commands)
}

func TestCloseDisconnects(t *testing.T) {
	t.Parallel()

	client, mock := createMockClient(t)
	require.NoError(t, client.Close())
	assert.False(t, mock.IsConnected())

	err := client.Alert(context.Background())
	require.ErrorIs(t, err, ErrTransportClosed)
}
