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

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
	"github.com/ZaparooProject/go-flipper/message"
)

type fakeCharacteristic struct {
	notify    func([]byte)
	onWrite   func([]byte)
	writeErr  error
	readErr   error
	value     []byte
	withResp  [][]byte
	withoutRe [][]byte
	enables   int
	mu        syncutil.Mutex
}

func (f *fakeCharacteristic) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.withResp = append(f.withResp, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.withoutRe = append(f.withoutRe, append([]byte(nil), p...))
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	f.mu.Lock()
	return len(p), nil
}

func (f *fakeCharacteristic) Read(data []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return copy(data, f.value), nil
}

func (f *fakeCharacteristic) EnableNotifications(cb func([]byte)) error {
	f.enables++
	f.notify = cb
	return nil
}

func newFakeTransport(t *testing.T, queueSize int) (*Transport, map[flipper.Characteristic]*fakeCharacteristic) {
	t.Helper()
	fakes := map[flipper.Characteristic]*fakeCharacteristic{
		flipper.CharacteristicRX:          {},
		flipper.CharacteristicTX:          {},
		flipper.CharacteristicFlowControl: {},
	}
	chars := make(map[flipper.Characteristic]characteristic, len(fakes))
	for ch, f := range fakes {
		chars[ch] = f
	}
	o := buildOptions([]Option{WithQueueSize(queueSize)})
	return newTransport("Flipper Test", "AA:BB", chars, func() error { return nil }, o), fakes
}

func TestWriteModes(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 8)
	ctx := context.Background()
	rx := fakes[flipper.CharacteristicRX]

	require.NoError(t, tr.Write(ctx, flipper.CharacteristicRX, []byte{1}, flipper.WriteWithoutResponse))
	require.NoError(t, tr.Write(ctx, flipper.CharacteristicRX, []byte{2}, flipper.WriteWithResponse))
	assert.Equal(t, [][]byte{{1}}, rx.withoutRe)
	assert.Equal(t, [][]byte{{2}}, rx.withResp)

	rx.writeErr = errors.New("gatt busy")
	require.Error(t, tr.Write(ctx, flipper.CharacteristicRX, []byte{3}, flipper.WriteWithoutResponse))
}

func TestReadReturnsValue(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 8)
	fakes[flipper.CharacteristicTX].value = []byte{0x03, 0x08, 0x01, 0x2A}

	data, err := tr.Read(context.Background(), flipper.CharacteristicTX)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x08, 0x01, 0x2A}, data)
}

func TestNotificationsAreQueuedPerCharacteristic(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 2)
	ctx := context.Background()

	_, ok := tr.PollNotification(flipper.CharacteristicTX)
	assert.False(t, ok)

	require.NoError(t, tr.Subscribe(ctx, flipper.CharacteristicTX))
	require.NoError(t, tr.Subscribe(ctx, flipper.CharacteristicTX))
	require.NoError(t, tr.Subscribe(ctx, flipper.CharacteristicFlowControl))
	assert.Equal(t, 1, fakes[flipper.CharacteristicTX].enables)
	require.Error(t, tr.Subscribe(ctx, flipper.CharacteristicRX))

	value := []byte{1}
	fakes[flipper.CharacteristicTX].notify(value)
	value[0] = 9
	fakes[flipper.CharacteristicTX].notify([]byte{2})
	fakes[flipper.CharacteristicTX].notify([]byte{3})
	fakes[flipper.CharacteristicFlowControl].notify([]byte{0, 0, 4, 0})

	got, ok := tr.PollNotification(flipper.CharacteristicTX)
	require.True(t, ok)
	assert.Equal(t, []byte{2}, got, "oldest value dropped on overflow")
	got, _ = tr.PollNotification(flipper.CharacteristicTX)
	assert.Equal(t, []byte{3}, got)
	_, ok = tr.PollNotification(flipper.CharacteristicTX)
	assert.False(t, ok)

	flow, ok := tr.PollNotification(flipper.CharacteristicFlowControl)
	require.True(t, ok)
	assert.Len(t, flow, 4)
	assert.Equal(t, uint64(1), tr.queues[flipper.CharacteristicTX].droppedCount())
}

func TestQueueCopiesValues(t *testing.T) {
	t.Parallel()

	q := newNotificationQueue(4)
	value := []byte{1, 2}
	assert.False(t, q.push(value))
	value[0] = 7
	got, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Zero(t, q.len())
}

func TestClose(t *testing.T) {
	t.Parallel()

	tr, _ := newFakeTransport(t, 8)
	assert.True(t, tr.IsConnected())
	assert.Equal(t, flipper.TransportBLE, tr.Type())
	assert.Equal(t, "Flipper Test", tr.Name())
	assert.Equal(t, "AA:BB", tr.Address())

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	require.ErrorIs(t, tr.Write(context.Background(), flipper.CharacteristicRX, []byte{1},
		flipper.WriteWithoutResponse), flipper.ErrTransportClosed)
}

func TestClientOverFakeGATT(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 64)
	tx := fakes[flipper.CharacteristicTX]
	reasm := frame.NewReassembler()
	fakes[flipper.CharacteristicRX].onWrite = func(p []byte) {
		reasm.Feed(p)
		req, err := reasm.TryDecode()
		if err != nil {
			return
		}
		ping, ok := req.Content.(*message.PingRequest)
		if !ok {
			return
		}
		resp, err := message.Encode(&message.Main{
			CommandID: req.CommandID,
			Content:   &message.PingResponse{Data: ping.Data},
		})
		if err != nil {
			panic(err)
		}
		for _, c := range frame.Split(resp, 20) {
			tx.notify(c.Data)
		}
	}

	cfg := flipper.DefaultConfig()
	cfg.ResponseTimeout = time.Second
	cfg.PollInterval = time.Millisecond
	client, err := flipper.New(tr, flipper.WithConfig(cfg), flipper.WithPacer(flipper.NoDelayPacer{}))
	require.NoError(t, err)

	_, err = client.Ping(context.Background(), []byte("over the air"))
	require.NoError(t, err)
	assert.Equal(t, 1, tx.enables)
}

func TestReadUnsupportedFallsBackToNotifications(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 8)
	ctx := context.Background()
	fakes[flipper.CharacteristicTX].readErr = errReadUnsupported

	_, err := tr.Read(ctx, flipper.CharacteristicTX)
	require.ErrorIs(t, err, flipper.ErrTransportNotReady)
	require.ErrorIs(t, err, errReadUnsupported)

	require.NoError(t, tr.Subscribe(ctx, flipper.CharacteristicTX))
	data, err := tr.Read(ctx, flipper.CharacteristicTX)
	require.NoError(t, err)
	assert.Empty(t, data)

	fakes[flipper.CharacteristicTX].readErr = errors.New("gatt timeout")
	_, err = tr.Read(ctx, flipper.CharacteristicTX)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errReadUnsupported)
}

func TestLaunchWithoutGATTRead(t *testing.T) {
	t.Parallel()

	tr, fakes := newFakeTransport(t, 64)
	tx := fakes[flipper.CharacteristicTX]
	tx.readErr = errReadUnsupported
	reasm := frame.NewReassembler()
	fakes[flipper.CharacteristicRX].onWrite = func(p []byte) {
		reasm.Feed(p)
		req, err := reasm.TryDecode()
		if err != nil {
			return
		}
		if _, ok := req.Content.(*message.AppStartRequest); !ok {
			return
		}
		resp, err := message.Encode(&message.Main{CommandID: req.CommandID, Content: &message.Empty{}})
		if err != nil {
			panic(err)
		}
		tx.notify(resp)
	}

	cfg := flipper.DefaultConfig()
	cfg.ResponseTimeout = time.Second
	cfg.PollInterval = time.Millisecond
	client, err := flipper.New(tr, flipper.WithConfig(cfg), flipper.WithPacer(flipper.NoDelayPacer{}))
	require.NoError(t, err)

	require.NoError(t, client.Launch(context.Background(), "NFC", ""))
}
