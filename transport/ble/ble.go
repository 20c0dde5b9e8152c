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

// Package ble implements flipper.Transport as a BLE central talking to
// the Flipper serial service.
package ble

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
)

const (
	// DefaultQueueSize bounds the notifications buffered per
	// characteristic.
	DefaultQueueSize = 4096
	// DefaultScanTimeout bounds the search for the peripheral.
	DefaultScanTimeout = 30 * time.Second
	// NamePrefix starts the advertised local name of every Flipper.
	NamePrefix = "Flipper "

	readBufferSize = 512
)

// ErrNotFound is returned when no matching peripheral advertises before
// the scan timeout.
var ErrNotFound = errors.New("flipper not found")

// errReadUnsupported is returned by characteristics whose platform backend
// cannot read a value directly.
var errReadUnsupported = errors.New("gatt read not supported on this platform")

// characteristic is what the transport needs from a GATT characteristic.
// Each platform adapts bluetooth.DeviceCharacteristic to it with
// newCharacteristic.
type characteristic interface {
	Write(p []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
	Read(data []byte) (int, error)
	EnableNotifications(callback func(buf []byte)) error
}

type options struct {
	logger      *zap.Logger
	adapter     *bluetooth.Adapter
	scanTimeout time.Duration
	queueSize   int
}

// Option configures a BLE transport.
type Option func(*options)

// WithLogger sets the logger for connection and queue events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAdapter selects a non-default Bluetooth adapter.
func WithAdapter(adapter *bluetooth.Adapter) Option {
	return func(o *options) {
		if adapter != nil {
			o.adapter = adapter
		}
	}
}

// WithScanTimeout overrides DefaultScanTimeout.
func WithScanTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.scanTimeout = d
		}
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		logger:      zap.NewNop(),
		adapter:     bluetooth.DefaultAdapter,
		scanTimeout: DefaultScanTimeout,
		queueSize:   DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transport is a connected Flipper serial service.
type Transport struct {
	chars      map[flipper.Characteristic]characteristic
	queues     map[flipper.Characteristic]*notificationQueue
	subscribed map[flipper.Characteristic]bool
	disconnect func() error
	logger     *zap.Logger
	name       string
	address    string
	mu         syncutil.Mutex
	closed     bool
}

func newTransport(name, address string, chars map[flipper.Characteristic]characteristic,
	disconnect func() error, o *options,
) *Transport {
	queues := make(map[flipper.Characteristic]*notificationQueue, 2)
	for _, ch := range []flipper.Characteristic{flipper.CharacteristicTX, flipper.CharacteristicFlowControl} {
		queues[ch] = newNotificationQueue(o.queueSize)
	}
	return &Transport{
		chars:      chars,
		queues:     queues,
		subscribed: make(map[flipper.Characteristic]bool, 2),
		disconnect: disconnect,
		logger:     o.logger.With(zap.String("device", name)),
		name:       name,
		address:    address,
	}
}

// Connect scans for a Flipper whose advertised name contains name (any
// Flipper when empty), connects and discovers the serial service.
func Connect(ctx context.Context, name string, opts ...Option) (*Transport, error) {
	o := buildOptions(opts)
	if err := enable(o.adapter); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, o.scanTimeout)
	defer cancel()
	var found *bluetooth.ScanResult
	err := scan(scanCtx, o.adapter, func(r bluetooth.ScanResult) bool {
		local := r.LocalName()
		if found != nil {
			return true
		}
		if !strings.HasPrefix(local, NamePrefix) || !strings.Contains(local, name) {
			return false
		}
		found = &r
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, name, flipper.ErrDeviceNotFound)
	}

	local := found.LocalName()
	address := found.Address.String()
	o.logger.Debug("connecting", zap.String("name", local), zap.String("address", address),
		zap.Int16("rssi", found.RSSI))

	device, err := o.adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w: %w", address, flipper.ErrTransportNotReady, err)
	}
	chars, err := discover(device)
	if err != nil {
		_ = device.Disconnect()
		return nil, err
	}
	return newTransport(local, address, chars, device.Disconnect, o), nil
}

var (
	enableMu syncutil.Mutex
	enabled  = map[*bluetooth.Adapter]bool{}
)

func enable(adapter *bluetooth.Adapter) error {
	enableMu.Lock()
	defer enableMu.Unlock()
	if enabled[adapter] {
		return nil
	}
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	enabled[adapter] = true
	return nil
}

// scan runs a scan until match returns true or ctx ends. The scan is
// stopped either way.
func scan(ctx context.Context, adapter *bluetooth.Adapter, match func(bluetooth.ScanResult) bool) error {
	stop := context.AfterFunc(ctx, func() { _ = adapter.StopScan() })
	defer stop()

	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if match(r) {
			_ = a.StopScan()
		}
	})
	if err != nil {
		return fmt.Errorf("bluetooth scan: %w", err)
	}
	return nil
}

// Peripheral is an advertising Flipper seen by Discover.
type Peripheral struct {
	Name    string
	Address string
	RSSI    int16
}

// Discover scans for the scan timeout, or until ctx ends, and returns
// every Flipper that advertised, strongest signal first.
func Discover(ctx context.Context, opts ...Option) ([]Peripheral, error) {
	o := buildOptions(opts)
	if err := enable(o.adapter); err != nil {
		return nil, err
	}
	scanCtx, cancel := context.WithTimeout(ctx, o.scanTimeout)
	defer cancel()

	seen := map[string]int{}
	var found []Peripheral
	err := scan(scanCtx, o.adapter, func(r bluetooth.ScanResult) bool {
		local := r.LocalName()
		if !strings.HasPrefix(local, NamePrefix) {
			return false
		}
		p := Peripheral{Name: local, Address: r.Address.String(), RSSI: r.RSSI}
		if i, ok := seen[p.Address]; ok {
			found[i] = p
			return false
		}
		seen[p.Address] = len(found)
		found = append(found, p)
		return false
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(found, func(a, b Peripheral) int { return int(b.RSSI) - int(a.RSSI) })
	return found, nil
}

func discover(device bluetooth.Device) (map[flipper.Characteristic]characteristic, error) {
	serviceUUID, err := bluetooth.ParseUUID(flipper.SerialServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		return nil, fmt.Errorf("discover serial service: %w: %w", flipper.ErrTransportNotReady, err)
	}

	wanted := []flipper.Characteristic{
		flipper.CharacteristicRX, flipper.CharacteristicTX, flipper.CharacteristicFlowControl,
	}
	uuids := make([]bluetooth.UUID, 0, len(wanted))
	for _, ch := range wanted {
		u, err := bluetooth.ParseUUID(ch.UUID())
		if err != nil {
			return nil, fmt.Errorf("parse %s uuid: %w", ch, err)
		}
		uuids = append(uuids, u)
	}
	found, err := services[0].DiscoverCharacteristics(uuids)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w: %w", flipper.ErrTransportNotReady, err)
	}

	chars := make(map[flipper.Characteristic]characteristic, len(wanted))
	for _, c := range found {
		for i, u := range uuids {
			if c.UUID() == u {
				chars[wanted[i]] = newCharacteristic(c)
			}
		}
	}
	for _, ch := range wanted {
		if chars[ch] == nil {
			return nil, fmt.Errorf("%w: characteristic %s missing", flipper.ErrTransportNotReady, ch)
		}
	}
	return chars, nil
}

func (t *Transport) check(ctx context.Context, ch flipper.Characteristic) (characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, flipper.ErrTransportClosed
	}
	c, ok := t.chars[ch]
	if !ok {
		return nil, fmt.Errorf("%w: unknown characteristic %s", flipper.ErrTransportNotReady, ch)
	}
	return c, nil
}

// Write implements flipper.Transport.
func (t *Transport) Write(ctx context.Context, ch flipper.Characteristic, data []byte, mode flipper.WriteMode) error {
	c, err := t.check(ctx, ch)
	if err != nil {
		return err
	}
	var n int
	if mode == flipper.WriteWithResponse {
		n, err = c.Write(data)
	} else {
		n, err = c.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("gatt write %s: %w", ch, err)
	}
	if n != len(data) {
		return fmt.Errorf("gatt write %s: wrote %d of %d bytes", ch, n, len(data))
	}
	return nil
}

// Read implements flipper.Transport with a GATT read of the value. Where
// the platform cannot read, a subscribed characteristic returns no data and
// the value is left to arrive as a notification.
func (t *Transport) Read(ctx context.Context, ch flipper.Characteristic) ([]byte, error) {
	c, err := t.check(ctx, ch)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, readBufferSize)
	n, err := c.Read(buf)
	if errors.Is(err, errReadUnsupported) {
		if !t.isSubscribed(ch) {
			return nil, fmt.Errorf("gatt read %s: %w: %w", ch, flipper.ErrTransportNotReady, err)
		}
		t.logger.Debug("gatt read unsupported, waiting for notification", zap.Stringer("characteristic", ch))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gatt read %s: %w", ch, err)
	}
	return buf[:n], nil
}

func (t *Transport) isSubscribed(ch flipper.Characteristic) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribed[ch]
}

// Subscribe implements flipper.Transport. Repeated calls are no-ops.
func (t *Transport) Subscribe(ctx context.Context, ch flipper.Characteristic) error {
	c, err := t.check(ctx, ch)
	if err != nil {
		return err
	}
	queue, ok := t.queues[ch]
	if !ok {
		return fmt.Errorf("%s does not notify", ch)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subscribed[ch] {
		return nil
	}
	err = c.EnableNotifications(func(value []byte) {
		if queue.push(value) {
			t.logger.Warn("notification queue full, dropped oldest",
				zap.Stringer("characteristic", ch), zap.Uint64("dropped", queue.droppedCount()))
		}
	})
	if err != nil {
		return fmt.Errorf("enable notifications on %s: %w", ch, err)
	}
	t.subscribed[ch] = true
	return nil
}

// PollNotification implements flipper.Transport.
func (t *Transport) PollNotification(ch flipper.Characteristic) ([]byte, bool) {
	queue, ok := t.queues[ch]
	if !ok {
		return nil, false
	}
	return queue.pop()
}

// Close disconnects from the peripheral.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.disconnect == nil {
		return nil
	}
	if err := t.disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", t.address, err)
	}
	return nil
}

// IsConnected implements flipper.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type implements flipper.Transport.
func (*Transport) Type() flipper.TransportType {
	return flipper.TransportBLE
}

// Name returns the advertised name of the connected Flipper.
func (t *Transport) Name() string {
	return t.name
}

// Address returns the Bluetooth address of the connected Flipper.
func (t *Transport) Address() string {
	return t.address
}
