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
	"time"

	"go.uber.org/zap"

	"github.com/ZaparooProject/go-flipper/detection"
)

// TransportFactory opens a transport to the device at path, a serial port
// or a BLE name or address depending on the factory.
type TransportFactory func(ctx context.Context, path string) (Transport, error)

// TransportFromDeviceFactory opens a transport to a detected device.
type TransportFromDeviceFactory func(ctx context.Context, device detection.DeviceInfo) (Transport, error)

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)
	retry                  *RetryConfig
	logger                 *zap.Logger
	clientOptions          []Option
	detectionOptions       detection.Options
	timeout                time.Duration
	autoDetect             bool
	ping                   bool
}

// WithAutoDetection connects to the best detected device instead of a
// given path.
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDetectionOptions replaces detection.DefaultOptions for
// auto-detection.
func WithDetectionOptions(opts detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectionOptions = opts
		return nil
	}
}

// WithClientOptions passes options to New.
func WithClientOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.clientOptions = append(c.clientOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds the whole connection attempt, retries
// included.
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: connect timeout must be positive, got %v", ErrInvalidParameters, timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets how a path is opened.
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets how a detected device is opened.
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets the number of connection attempts.
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: connection retries must be at least 1, got %d", ErrInvalidParameters, maxAttempts)
		}
		c.retry.MaxAttempts = maxAttempts
		return nil
	}
}

// WithDeviceDetector replaces detection.DetectAll.
func WithDeviceDetector(
	detector func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error),
) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// WithConnectLogger sets the logger for connection attempts.
func WithConnectLogger(logger *zap.Logger) ConnectOption {
	return func(c *connectConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithPingCheck pings the RPC session after connecting, so a link that
// opens but does not answer counts as a failed attempt.
func WithPingCheck() ConnectOption {
	return func(c *connectConfig) error {
		c.ping = true
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		retry:            DefaultRetryConfig(),
		logger:           zap.NewNop(),
		detectionOptions: detection.DefaultOptions(),
		timeout:          ConnectionRetryTimeout,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("apply connect option: %w", err)
		}
	}
	config.retry.RetryTimeout = config.timeout
	return config, nil
}

// Connect opens a transport and creates a client on it. With a path the
// transport factory is used and failed attempts are retried with backoff.
// Without a path, or with WithAutoDetection, the best detected device is
// opened once.
//
//	client, err := flipper.Connect(ctx, "/dev/ttyACM0",
//	    flipper.WithTransportFactory(openSerial))
func Connect(ctx context.Context, path string, opts ...ConnectOption) (*Client, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	if config.autoDetect || path == "" {
		return connectDetected(ctx, config)
	}
	if config.transportFactory == nil {
		return nil, fmt.Errorf("%w: transport factory not provided", ErrInvalidParameters)
	}

	var client *Client
	err = Retry(ctx, config.retry, config.logger, "connect "+path, func(ctx context.Context) error {
		transport, err := config.transportFactory(ctx, path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		client, err = setupClient(ctx, transport, config)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func connectDetected(ctx context.Context, config *connectConfig) (*Client, error) {
	if config.transportDeviceFactory == nil {
		return nil, fmt.Errorf("%w: transport device factory not provided", ErrInvalidParameters)
	}
	detect := config.deviceDetector
	if detect == nil {
		detect = detection.DetectAll
	}

	opts := config.detectionOptions
	devices, err := detect(ctx, &opts)
	if err != nil {
		if errors.Is(err, detection.ErrNoDevicesFound) {
			return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	device := devices[0]
	config.logger.Debug("connecting to detected device", zap.Stringer("device", device))
	transport, err := config.transportDeviceFactory(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device.Path, err)
	}
	return setupClient(ctx, transport, config)
}

// setupClient creates the client and runs the optional ping check. The
// transport is closed when either fails.
func setupClient(ctx context.Context, transport Transport, config *connectConfig) (*Client, error) {
	client, err := New(transport, config.clientOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}
	if config.ping {
		if _, err := client.Ping(ctx, []byte("connect")); err != nil {
			_ = transport.Close()
			return nil, fmt.Errorf("ping after connect: %w", err)
		}
	}
	return client, nil
}
