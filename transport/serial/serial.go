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

// Package serial implements flipper.Transport over the USB CDC port of a
// Flipper. The port starts in the text CLI; Open switches it to the RPC
// session, after which the byte stream carries the same varint framed
// messages as the BLE serial service.
package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
)

const (
	// DefaultBaudRate is ignored by the CDC device but required to open
	// the port on some hosts.
	DefaultBaudRate = 230400
	// DefaultHandshakeTimeout bounds the switch from CLI to RPC mode.
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultQueueSize is the number of inbound blocks buffered before the
	// reader stops draining the port.
	DefaultQueueSize = 256

	portReadTimeout = 50 * time.Millisecond
	idleDelay       = time.Millisecond
)

var (
	cliPrompt       = []byte(">: ")
	startRPCCommand = []byte("start_rpc_session\r")
	startRPCEcho    = []byte("start_rpc_session\r\n")
)

// ErrHandshake is returned when the CLI does not acknowledge the RPC
// session request in time.
var ErrHandshake = errors.New("rpc session handshake failed")

// Port is the byte stream under the transport. go.bug.st/serial ports
// satisfy it; ports that also implement Drain() error are drained after
// each write.
type Port interface {
	io.ReadWriteCloser
}

type drainer interface {
	Drain() error
}

type options struct {
	logger           *zap.Logger
	baudRate         int
	handshakeTimeout time.Duration
	queueSize        int
	skipHandshake    bool
}

// Option configures a serial transport.
type Option func(*options)

// WithLogger sets the logger for handshake and reader events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBaudRate overrides DefaultBaudRate.
func WithBaudRate(baud int) Option {
	return func(o *options) { o.baudRate = baud }
}

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithoutHandshake assumes the port is already in RPC mode.
func WithoutHandshake() Option {
	return func(o *options) { o.skipHandshake = true }
}

func buildOptions(opts []Option) *options {
	o := &options{
		logger:           zap.NewNop(),
		baudRate:         DefaultBaudRate,
		handshakeTimeout: DefaultHandshakeTimeout,
		queueSize:        DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transport is a flipper.Transport over a serial RPC session. TX
// notifications are the blocks returned by port reads. The flow-control
// characteristic never signals.
type Transport struct {
	port     Port
	logger   *zap.Logger
	pool     *frame.BufferPool
	inbound  chan []byte
	done     chan struct{}
	stopped  chan struct{}
	readErr  error
	portName string
	mu       syncutil.Mutex
	closed   bool
}

// Open opens portName and starts the RPC session.
func Open(ctx context.Context, portName string, opts ...Option) (*Transport, error) {
	o := buildOptions(opts)
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: o.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(portReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		o.logger.Debug("reset input buffer failed", zap.String("port", portName), zap.Error(err))
	}

	t, err := newTransport(ctx, port, portName, o)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewFromPort starts an RPC session on an already open port. The
// transport owns port and closes it on Close.
func NewFromPort(ctx context.Context, port Port, portName string, opts ...Option) (*Transport, error) {
	return newTransport(ctx, port, portName, buildOptions(opts))
}

func newTransport(ctx context.Context, port Port, portName string, o *options) (*Transport, error) {
	t := &Transport{
		port:     port,
		portName: portName,
		logger:   o.logger.With(zap.String("port", portName)),
		pool:     frame.NewBufferPool(frame.ReadBufferSize),
		inbound:  make(chan []byte, o.queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	var leftover []byte
	if !o.skipHandshake {
		hctx, cancel := context.WithTimeout(ctx, o.handshakeTimeout)
		var err error
		leftover, err = t.handshake(hctx)
		cancel()
		if err != nil {
			return nil, err
		}
	}
	if len(leftover) > 0 {
		t.inbound <- leftover
	}

	go t.readLoop()
	return t, nil
}

// handshake waits for the CLI prompt, requests the RPC session and
// consumes the command echo. Bytes after the echo already belong to the
// RPC stream and are returned.
func (t *Transport) handshake(ctx context.Context) ([]byte, error) {
	var pending []byte
	readUntil := func(marker []byte) error {
		buf := t.pool.Get()
		defer t.pool.Put(buf)
		for {
			if idx := bytes.Index(pending, marker); idx >= 0 {
				pending = pending[idx+len(marker):]
				return nil
			}
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w on %s: waiting for %q: %w", ErrHandshake, t.portName, marker, err)
			}
			n, err := t.port.Read(buf)
			if err != nil {
				return fmt.Errorf("%w on %s: %w", ErrHandshake, t.portName, err)
			}
			if n == 0 {
				time.Sleep(idleDelay)
				continue
			}
			pending = append(pending, buf[:n]...)
		}
	}

	if err := t.writeAll([]byte("\r")); err != nil {
		return nil, err
	}
	if err := readUntil(cliPrompt); err != nil {
		return nil, err
	}
	pending = nil
	if err := t.writeAll(startRPCCommand); err != nil {
		return nil, err
	}
	if err := readUntil(startRPCEcho); err != nil {
		return nil, err
	}
	t.logger.Debug("rpc session started", zap.Int("leftover", len(pending)))
	return pending, nil
}

func (t *Transport) readLoop() {
	defer close(t.stopped)
	for {
		select {
		case <-t.done:
			return
		default:
		}

		buf := t.pool.Get()
		n, err := t.port.Read(buf)
		if n > 0 {
			block := append([]byte(nil), buf[:n]...)
			t.pool.Put(buf)
			select {
			case t.inbound <- block:
			case <-t.done:
				return
			}
		} else {
			t.pool.Put(buf)
		}
		if err != nil {
			t.mu.Lock()
			if !t.closed {
				t.readErr = err
				t.logger.Debug("serial reader stopped", zap.Error(err))
			}
			t.mu.Unlock()
			return
		}
		if n == 0 {
			time.Sleep(idleDelay)
		}
	}
}

func (t *Transport) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := t.port.Write(data)
		if err != nil {
			return fmt.Errorf("serial write on %s: %w", t.portName, err)
		}
		if n == 0 {
			return fmt.Errorf("serial write on %s: %w", t.portName, io.ErrShortWrite)
		}
		data = data[n:]
	}
	return t.drainWithRetry()
}

// drainWithRetry waits for written bytes to leave the host, retrying when
// the syscall is interrupted.
func (t *Transport) drainWithRetry() error {
	d, ok := t.port.(drainer)
	if !ok {
		return nil
	}
	const maxRetries = 3
	delay := 2 * time.Millisecond
	var err error
	for range maxRetries {
		if err = d.Drain(); err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return fmt.Errorf("serial drain on %s: %w", t.portName, err)
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}

func (t *Transport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return flipper.ErrTransportClosed
	}
	if t.readErr != nil {
		return fmt.Errorf("%w: %w", flipper.ErrTransportClosed, t.readErr)
	}
	return nil
}

// Write implements flipper.Transport. Only the RX characteristic is
// writable; the write mode has no meaning on a byte stream.
func (t *Transport) Write(ctx context.Context, ch flipper.Characteristic, data []byte, _ flipper.WriteMode) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if ch != flipper.CharacteristicRX {
		return fmt.Errorf("%w: %s is not writable", flipper.ErrTransportWrite, ch)
	}
	return t.writeAll(data)
}

// Read implements flipper.Transport by waiting for the next inbound block.
func (t *Transport) Read(ctx context.Context, ch flipper.Characteristic) ([]byte, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if ch != flipper.CharacteristicTX {
		return nil, nil
	}
	select {
	case block := <-t.inbound:
		return block, nil
	case <-t.stopped:
		return nil, flipper.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe implements flipper.Transport. Inbound data is always queued,
// so only the characteristic is checked.
func (t *Transport) Subscribe(ctx context.Context, ch flipper.Characteristic) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	switch ch {
	case flipper.CharacteristicTX, flipper.CharacteristicFlowControl:
		return nil
	default:
		return fmt.Errorf("%w: %s does not notify", flipper.ErrSubscribe, ch)
	}
}

// PollNotification implements flipper.Transport.
func (t *Transport) PollNotification(ch flipper.Characteristic) ([]byte, bool) {
	if ch != flipper.CharacteristicTX {
		return nil, false
	}
	select {
	case block := <-t.inbound:
		return block, true
	default:
		return nil, false
	}
}

// Close stops the reader and closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	err := t.port.Close()
	<-t.stopped
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected implements flipper.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.readErr == nil
}

// Type implements flipper.Transport.
func (*Transport) Type() flipper.TransportType {
	return flipper.TransportSerial
}

// PortName returns the device path.
func (t *Transport) PortName() string {
	return t.portName
}
