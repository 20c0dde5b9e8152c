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
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
	"github.com/ZaparooProject/go-flipper/message"
)

// Progress reports file payload bytes transferred so far out of total.
// Protocol framing is never counted.
type Progress func(done, total uint64)

// Client runs RPC commands against a Flipper over a Transport.
//
// Thread Safety: commands are serialized by an internal mutex. The device
// handles one command at a time and the command id and receive buffer are
// per-connection state, so concurrent callers simply queue.
type Client struct {
	transport   Transport
	codec       *message.Codec
	config      *Config
	pacer       Pacer
	logger      *zap.Logger
	metrics     *Metrics
	now         func() time.Time
	mu          syncutil.Mutex
	subscribed  bool
	sessionLost bool
}

// Option configures a Client.
type Option func(*Client) error

// WithConfig replaces the default link configuration.
func WithConfig(config *Config) Option {
	return func(c *Client) error {
		if config == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidParameters)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		cfg := *config
		c.config = &cfg
		return nil
	}
}

// WithPacer sets the pacing policy, overriding Config.Pacer.
func WithPacer(p Pacer) Option {
	return func(c *Client) error {
		c.pacer = p
		return nil
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics shares a counter set between clients.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) error {
		if m != nil {
			c.metrics = m
		}
		return nil
	}
}

// WithClock sets the wall clock used by SyncTime.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// New creates a client on an already connected transport. No I/O happens
// until the first command.
func New(transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameters)
	}
	c := &Client{
		transport: transport,
		codec:     message.NewCodec(),
		config:    DefaultConfig(),
		logger:    zap.NewNop(),
		metrics:   NewMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.pacer == nil {
		c.pacer = c.config.pacer()
	}
	c.logger.Debug("client created",
		zap.String("transport", string(transport.Type())),
		zap.Int("unit", c.config.TransportUnitSize),
		zap.Int("segment", c.config.FileSegmentSize),
		zap.Bool("deadlock_detection", syncutil.DeadlockDetection))
	return c, nil
}

// Transport returns the underlying transport
func (c *Client) Transport() Transport {
	return c.transport
}

// Metrics returns the client's counters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// WriteMetrics writes the client's counters in Prometheus text format.
func (c *Client) WriteMetrics(w io.Writer) {
	c.metrics.WritePrometheus(w)
}

// CommandID returns the id the next command will use.
func (c *Client) CommandID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.CommandID()
}

// SessionTerminated reports whether the device ended the RPC session after
// failing to decode a request. A new connection is required afterwards.
func (c *Client) SessionTerminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLost
}

// Close disconnects the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// command is the state owned by one in-flight command.
type command struct {
	trace  *TraceBuffer
	reasm  *frame.Reassembler
	logger *zap.Logger
	name   string
	id     uint32
}

// run executes fn as one command under the client lock.
func (c *Client) run(ctx context.Context, name string, fn func(ctx context.Context, cmd *command) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionLost {
		return fmt.Errorf("%s: %w", name, ErrSessionTerminated)
	}
	if !c.transport.IsConnected() {
		return fmt.Errorf("%s: %w", name, ErrTransportClosed)
	}
	if err := c.ensureSubscribed(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	cmd := &command{
		name:   name,
		id:     c.codec.CommandID(),
		trace:  NewTraceBuffer(c.transport.Type(), name, 64),
		reasm:  frame.NewReassembler(),
		logger: c.logger.With(zap.String("command", name)),
	}
	c.discardStale(cmd)
	c.metrics.commands.Inc()

	start := time.Now()
	err := fn(ctx, cmd)
	elapsed := time.Since(start)
	if err == nil {
		cmd.logger.Info("command complete", zap.Uint32("command_id", cmd.id), zap.Duration("elapsed", elapsed))
		return nil
	}

	c.metrics.commandErrors.Inc()
	if errors.Is(err, ErrDeviceDecode) {
		c.sessionLost = true
		cmd.logger.Warn("device rejected a request as undecodable; RPC session is over")
	}
	cmd.logger.Debug("command failed",
		zap.Uint32("command_id", cmd.id),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
	return cmd.trace.WrapError(err)
}

func (c *Client) ensureSubscribed(ctx context.Context) error {
	if c.subscribed {
		return nil
	}
	for _, ch := range []Characteristic{CharacteristicTX, CharacteristicFlowControl} {
		if err := c.transport.Subscribe(ctx, ch); err != nil {
			return NewTransportError("subscribe", ch, fmt.Errorf("%w: %w", ErrSubscribe, err))
		}
	}
	c.subscribed = true
	return nil
}

// discardStale drops notifications left over from earlier commands, such
// as the replies to fire-and-forget requests.
func (c *Client) discardStale(cmd *command) {
	for _, ch := range []Characteristic{CharacteristicTX, CharacteristicFlowControl} {
		dropped := 0
		for {
			data, ok := c.transport.PollNotification(ch)
			if !ok {
				break
			}
			dropped++
			cmd.trace.RecordRX(ch, data, "stale")
		}
		if dropped > 0 {
			cmd.logger.Debug("discarded stale notifications",
				zap.Stringer("characteristic", ch), zap.Int("count", dropped))
		}
	}
}

// request builds a single-message request, advances the command id and
// sends it.
func (c *Client) request(ctx context.Context, cmd *command, content message.Content, mode WriteMode) error {
	msg := c.codec.NewRequest(content, true)
	cmd.id = msg.CommandID
	return c.send(ctx, cmd, msg, mode)
}

func (c *Client) send(ctx context.Context, cmd *command, msg *message.Main, mode WriteMode) error {
	encoded, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", message.Kind(msg.Content), err)
	}
	cmd.logger.Debug("sending", zap.Stringer("message", msg), zap.Int("bytes", len(encoded)))
	return c.sendSequence(ctx, cmd, frame.Split(encoded, c.config.TransportUnitSize), mode, nil)
}

// sendSequence writes chunks in order. After each write it checks, without
// blocking, for a flow-control notification and lets the pacer wait.
// Response notifications that arrive meanwhile stay queued.
func (c *Client) sendSequence(
	ctx context.Context, cmd *command, chunks []frame.Chunk, mode WriteMode, onChunk func(frame.Chunk),
) error {
	for i, chunk := range chunks {
		if err := c.transport.Write(ctx, CharacteristicRX, chunk.Data, mode); err != nil {
			cmd.trace.RecordTX(CharacteristicRX, chunk.Data, "write failed")
			return NewTransportError("write", CharacteristicRX, fmt.Errorf("%w: %w", ErrTransportWrite, err))
		}
		cmd.trace.RecordTX(CharacteristicRX, chunk.Data, "")
		c.metrics.chunksWritten.Inc()
		c.metrics.chunkBytes.Add(len(chunk.Data))
		if onChunk != nil {
			onChunk(chunk)
		}

		flow := c.pollFlowControl(cmd)
		if flow {
			cmd.logger.Debug("flow control signalled", zap.Int("chunk", i), zap.Int("chunks", len(chunks)))
		}
		if err := c.pacer.Pause(ctx, flow); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) pollFlowControl(cmd *command) bool {
	signalled := false
	for {
		data, ok := c.transport.PollNotification(CharacteristicFlowControl)
		if !ok {
			return signalled
		}
		signalled = true
		c.metrics.flowSignals.Inc()
		cmd.trace.RecordRX(CharacteristicFlowControl, data, "")
	}
}

// handler consumes one decoded response of the current command and reports
// whether the response stream is complete.
type handler func(m *message.Main) (done bool, err error)

// receive feeds TX notifications into the command's reassembler until the
// handler reports completion. Messages for other command ids are skipped.
// The timeout restarts with every accepted message.
func (c *Client) receive(ctx context.Context, cmd *command, handle handler) error {
	deadline := time.Now().Add(c.config.ResponseTimeout)
	fresh := true
	for {
		if fresh {
			done, accepted, err := c.drainDecoded(cmd, handle)
			if err != nil || done {
				return err
			}
			if accepted {
				deadline = time.Now().Add(c.config.ResponseTimeout)
			}
			fresh = false
		}

		data, ok := c.transport.PollNotification(CharacteristicTX)
		if ok {
			cmd.trace.RecordRX(CharacteristicTX, data, "")
			cmd.reasm.Feed(data)
			fresh = true
			continue
		}

		if time.Now().After(deadline) {
			cmd.trace.RecordTimeout(CharacteristicTX, fmt.Sprintf("%d bytes buffered", cmd.reasm.Len()))
			return NewTimeoutError("receive", CharacteristicTX)
		}
		if err := sleepContext(ctx, c.config.PollInterval); err != nil {
			return err
		}
	}
}

// drainDecoded decodes every complete message currently buffered.
func (c *Client) drainDecoded(cmd *command, handle handler) (done, accepted bool, err error) {
	for {
		m, err := cmd.reasm.TryDecode()
		if err != nil {
			if message.IsIncomplete(err) {
				if cmd.reasm.Len() > 0 {
					c.metrics.decodeIncomplete.Inc()
				}
				return false, accepted, nil
			}
			c.metrics.decodeMalformed.Inc()
			return false, accepted, fmt.Errorf("%w: %s response: %w", ErrProtocol, cmd.name, err)
		}

		// A request the device cannot decode has no id it could echo, so
		// its decode error is accepted whatever id it carries.
		if m.CommandID != cmd.id && m.Status != message.StatusErrorDecode {
			cmd.logger.Debug("skipping response for another command",
				zap.Uint32("want", cmd.id), zap.Stringer("message", m))
			continue
		}
		accepted = true
		cmd.logger.Debug("received", zap.Stringer("message", m))

		done, err := handle(m)
		if err != nil || done {
			return done, accepted, err
		}
	}
}

// readReply reads the reply of a request directly from the TX
// characteristic. Replies that do not fit one read are completed from
// notifications.
func (c *Client) readReply(ctx context.Context, cmd *command) (*message.Main, error) {
	data, err := c.transport.Read(ctx, CharacteristicTX)
	if err != nil {
		return nil, NewTransportError("read", CharacteristicTX, fmt.Errorf("%w: %w", ErrTransportRead, err))
	}
	if len(data) > 0 {
		cmd.trace.RecordRX(CharacteristicTX, data, "read")
		cmd.reasm.Feed(data)
	}
	return c.expectOne(ctx, cmd)
}

// expectOne receives a response stream and returns its terminal message.
func (c *Client) expectOne(ctx context.Context, cmd *command) (*message.Main, error) {
	var last *message.Main
	err := c.receive(ctx, cmd, func(m *message.Main) (bool, error) {
		last = m
		return !m.HasNext, nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

// expectStatus receives a single response and interprets its status.
func (c *Client) expectStatus(ctx context.Context, cmd *command) error {
	m, err := c.expectOne(ctx, cmd)
	if err != nil {
		return err
	}
	return checkStatus(cmd.name, m)
}

func unexpectedContent(cmd *command, m *message.Main) error {
	return fmt.Errorf("%w: %s got %s", ErrUnexpectedResponse, cmd.name, message.Kind(m.Content))
}
