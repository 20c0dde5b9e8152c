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

// Package ble registers a detector for advertising Flipper devices.
package ble

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-flipper/detection"
	bletransport "github.com/ZaparooProject/go-flipper/transport/ble"
)

// DefaultScanTime is the scan length when the detection options carry no
// timeout.
const DefaultScanTime = 3 * time.Second

// Detector scans BLE advertisements for Flipper names.
type Detector struct {
	discover func(ctx context.Context, scanTime time.Duration) ([]bletransport.Peripheral, error)
}

// New creates a detector on the default Bluetooth adapter.
func New() *Detector {
	return &Detector{discover: func(ctx context.Context, scanTime time.Duration) ([]bletransport.Peripheral, error) {
		return bletransport.Discover(ctx, bletransport.WithScanTimeout(scanTime))
	}}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport implements detection.Detector.
func (*Detector) Transport() string {
	return detection.TransportBLE
}

// Detect implements detection.Detector. It scans for slightly less than
// the detection timeout so results come back before DetectAll gives up.
// Advertisements identify a Flipper by name, so Probe mode adds nothing.
func (d *Detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	scanTime := DefaultScanTime
	if opts.Timeout > 0 {
		scanTime = opts.Timeout * 4 / 5
	}

	found, err := d.discover(ctx, scanTime)
	if err != nil {
		return nil, err
	}

	devices := make([]detection.DeviceInfo, 0, len(found))
	for _, p := range found {
		devices = append(devices, detection.DeviceInfo{
			Transport:  detection.TransportBLE,
			Path:       p.Address,
			Name:       strings.TrimPrefix(p.Name, bletransport.NamePrefix),
			Confidence: detection.Medium,
			Metadata:   map[string]string{"rssi": strconv.Itoa(int(p.RSSI))},
		})
	}
	devices = detection.FilterDevices(devices, opts)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}
