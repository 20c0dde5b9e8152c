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

// Package serial registers a detector for Flipper USB CDC ports.
package serial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/detection"
	serialtransport "github.com/ZaparooProject/go-flipper/transport/serial"
)

const probeTimeout = 3 * time.Second

// Detector enumerates USB serial ports and reports those with the
// Flipper VID and PID.
type Detector struct {
	listPorts func() ([]*enumerator.PortDetails, error)
	probe     func(ctx context.Context, path string) error
}

// New creates a detector backed by the system port enumerator.
func New() *Detector {
	return &Detector{listPorts: enumerator.GetDetailedPortsList, probe: probePort}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport implements detection.Detector.
func (*Detector) Transport() string {
	return detection.TransportSerial
}

// Detect implements detection.Detector.
func (d *Detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		device, ok := describePort(port)
		if !ok {
			continue
		}
		if len(detection.FilterDevices([]detection.DeviceInfo{device}, opts)) == 0 {
			continue
		}
		if opts.Mode == detection.Probe {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := d.probe(pctx, port.Name)
			cancel()
			if err != nil {
				// A busy port may still be a Flipper, owned by another app.
				device.Confidence = detection.Low
				device.Metadata["probe_error"] = err.Error()
			} else {
				device.Confidence = detection.High
			}
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// describePort turns a Flipper port into a DeviceInfo. Other ports are
// rejected.
func describePort(port *enumerator.PortDetails) (detection.DeviceInfo, bool) {
	if port == nil || !port.IsUSB {
		return detection.DeviceInfo{}, false
	}
	if !strings.EqualFold(port.VID, detection.FlipperVID) || !strings.EqualFold(port.PID, detection.FlipperPID) {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport:  detection.TransportSerial,
		Path:       port.Name,
		Name:       deviceName(port.SerialNumber),
		Confidence: detection.Medium,
		Metadata: map[string]string{
			"vidpid": detection.FormatVIDPID(port.VID, port.PID),
		},
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	return device, true
}

// deviceName extracts the Flipper name from its USB serial number, which
// the firmware sets to "flip_" followed by the name.
func deviceName(serialNumber string) string {
	name, ok := strings.CutPrefix(serialNumber, "flip_")
	if !ok {
		return ""
	}
	return name
}

// probePort opens the RPC session and pings it once. Detection never
// retries a probe.
func probePort(ctx context.Context, path string) error {
	tr, err := serialtransport.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	client, err := flipper.New(tr)
	if err != nil {
		return err
	}
	if _, err := client.Ping(ctx, []byte("probe")); err != nil {
		return fmt.Errorf("ping %s: %w", path, err)
	}
	return nil
}
