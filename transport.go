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

// Transport is the link to a Flipper. The BLE backend maps each
// Characteristic to a GATT characteristic of the serial service; the USB
// serial backend emulates them over the CDC RPC session.
type Transport interface {
	// Write sends data to a characteristic in a single link write.
	Write(ctx context.Context, ch Characteristic, data []byte, mode WriteMode) error

	// Read performs a direct read of a characteristic value.
	Read(ctx context.Context, ch Characteristic) ([]byte, error)

	// Subscribe enables notifications for a characteristic.
	Subscribe(ctx context.Context, ch Characteristic) error

	// PollNotification returns the oldest queued notification for ch without
	// blocking. ok is false when the queue is empty.
	PollNotification(ch Characteristic) (data []byte, ok bool)

	// Close disconnects from the device.
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// Characteristic names one endpoint of the Flipper serial service.
type Characteristic int

const (
	// CharacteristicRX receives host writes (the device's RX).
	CharacteristicRX Characteristic = iota
	// CharacteristicTX carries device responses as notifications or reads.
	CharacteristicTX
	// CharacteristicFlowControl notifies when the device receive buffer
	// drains. It is only used as a pacing hint.
	CharacteristicFlowControl
)

// GATT identifiers of the Flipper serial service.
const (
	SerialServiceUUID      = "8fe5b3d5-2e7f-4a98-2a48-7acc60fe0000"
	RXCharacteristicUUID   = "19ed82ae-ed21-4c9d-4145-228e62fe0000"
	TXCharacteristicUUID   = "19ed82ae-ed21-4c9d-4145-228e61fe0000"
	FlowCharacteristicUUID = "19ed82ae-ed21-4c9d-4145-228e63fe0000"
)

func (c Characteristic) String() string {
	switch c {
	case CharacteristicRX:
		return "rx"
	case CharacteristicTX:
		return "tx"
	case CharacteristicFlowControl:
		return "flow_control"
	default:
		return "unknown"
	}
}

// UUID returns the GATT UUID string of the characteristic.
func (c Characteristic) UUID() string {
	switch c {
	case CharacteristicRX:
		return RXCharacteristicUUID
	case CharacteristicTX:
		return TXCharacteristicUUID
	case CharacteristicFlowControl:
		return FlowCharacteristicUUID
	default:
		return ""
	}
}

// WriteMode selects the GATT write procedure.
type WriteMode int

const (
	// WriteWithoutResponse is used for all streamed chunk writes.
	WriteWithoutResponse WriteMode = iota
	// WriteWithResponse is used for single requests whose reply is read
	// directly instead of arriving as a notification.
	WriteWithResponse
)

func (m WriteMode) String() string {
	if m == WriteWithResponse {
		return "with_response"
	}
	return "without_response"
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportBLE represents a Bluetooth LE GATT connection.
	TransportBLE TransportType = "ble"
	// TransportSerial represents the USB CDC RPC session.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// WriteRecord is one write captured by MockTransport.
type WriteRecord struct {
	Data           []byte
	Characteristic Characteristic
	Mode           WriteMode
}

// MockTransport provides a scriptable Transport for testing. Notifications
// and read values are queued per characteristic and handed out in order.
type MockTransport struct {
	notifications map[Characteristic][][]byte
	reads         map[Characteristic][][]byte
	errorMap      map[string]error
	subscribed    map[Characteristic]bool
	onWrite       func(WriteRecord)
	writes        []WriteRecord
	delay         time.Duration
	mu            syncutil.RWMutex
	connected     bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected:     true,
		notifications: make(map[Characteristic][][]byte),
		reads:         make(map[Characteristic][][]byte),
		errorMap:      make(map[string]error),
		subscribed:    make(map[Characteristic]bool),
	}
}

// Write implements Transport interface
func (m *MockTransport) Write(ctx context.Context, ch Characteristic, data []byte, mode WriteMode) error {
	if err := m.begin(ctx, "write"); err != nil {
		return err
	}

	rec := WriteRecord{Characteristic: ch, Mode: mode, Data: append([]byte(nil), data...)}
	m.mu.Lock()
	m.writes = append(m.writes, rec)
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(rec)
	}
	return nil
}

// Read implements Transport interface
func (m *MockTransport) Read(ctx context.Context, ch Characteristic) ([]byte, error) {
	if err := m.begin(ctx, "read"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.reads[ch]
	if len(queue) == 0 {
		return nil, nil
	}
	m.reads[ch] = queue[1:]
	return queue[0], nil
}

// Subscribe implements Transport interface
func (m *MockTransport) Subscribe(ctx context.Context, ch Characteristic) error {
	if err := m.begin(ctx, "subscribe"); err != nil {
		return err
	}
	m.mu.Lock()
	m.subscribed[ch] = true
	m.mu.Unlock()
	return nil
}

// PollNotification implements Transport interface
func (m *MockTransport) PollNotification(ch Characteristic) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.notifications[ch]
	if len(queue) == 0 {
		return nil, false
	}
	m.notifications[ch] = queue[1:]
	return queue[0], true
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

func (m *MockTransport) begin(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	err := m.errorMap[op]
	m.mu.RUnlock()

	if !connected {
		return ErrTransportClosed
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Test helper methods

// QueueNotification queues a notification for ch.
func (m *MockTransport) QueueNotification(ch Characteristic, data []byte) {
	m.mu.Lock()
	m.notifications[ch] = append(m.notifications[ch], data)
	m.mu.Unlock()
}

// QueueRead queues a value returned by the next Read of ch.
func (m *MockTransport) QueueRead(ch Characteristic, data []byte) {
	m.mu.Lock()
	m.reads[ch] = append(m.reads[ch], data)
	m.mu.Unlock()
}

// SetError makes every op ("write", "read" or "subscribe") fail with err.
func (m *MockTransport) SetError(op string, err error) {
	m.mu.Lock()
	m.errorMap[op] = err
	m.mu.Unlock()
}

// ClearError removes error injection for an op
func (m *MockTransport) ClearError(op string) {
	m.mu.Lock()
	delete(m.errorMap, op)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate link latency
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// OnWrite registers a hook called after every successful write, outside the
// mock's lock, so it may queue notifications in response.
func (m *MockTransport) OnWrite(hook func(WriteRecord)) {
	m.mu.Lock()
	m.onWrite = hook
	m.mu.Unlock()
}

// Writes returns a copy of all recorded writes.
func (m *MockTransport) Writes() []WriteRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WriteRecord(nil), m.writes...)
}

// IsSubscribed reports whether Subscribe was called for ch.
func (m *MockTransport) IsSubscribed(ch Characteristic) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribed[ch]
}

// Reset clears recorded writes and queued data
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.notifications = make(map[Characteristic][][]byte)
	m.reads = make(map[Characteristic][][]byte)
	m.errorMap = make(map[string]error)
	m.mu.Unlock()
}
