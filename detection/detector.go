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

// Package detection finds Flipper devices reachable from the host. Each
// link has its own Detector, registered by importing its subpackage:
//
//	import _ "github.com/ZaparooProject/go-flipper/detection/serial"
package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ZaparooProject/go-flipper/internal/syncutil"
)

// Mode selects how much a detector may touch a candidate device.
type Mode int

const (
	// Passive only looks at descriptors and advertisements.
	Passive Mode = iota
	// Probe opens the link and pings the RPC session.
	Probe
)

// Confidence is how sure a detector is that it found a Flipper.
type Confidence int

const (
	// Low means a plausible but unverified candidate.
	Low Confidence = iota
	// Medium means the descriptor or advertisement identifies a Flipper.
	Medium
	// High means the device answered an RPC ping.
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Transport names used by the bundled detectors.
const (
	TransportSerial = "serial"
	TransportBLE    = "ble"
)

// DeviceInfo is one detected Flipper.
type DeviceInfo struct {
	// Metadata holds link details such as "vidpid", "serial" or "rssi".
	Metadata map[string]string
	// Transport is the link kind, TransportSerial or TransportBLE.
	Transport string
	// Path is the serial port or the Bluetooth address.
	Path string
	// Name is the Flipper name, when known.
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s %q at %s (confidence: %s)", d.Transport, d.Name, d.Path, d.Confidence)
	}
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures detection.
type Options struct {
	// Blocklist holds USB VID:PID pairs to skip.
	Blocklist []string
	// IgnorePaths holds ports or addresses to skip.
	IgnorePaths []string
	// Transports restricts detection to these links (empty means all).
	Transports []string
	// CacheTTL is how long results stay cached.
	CacheTTL time.Duration
	// Timeout bounds the whole detection, including BLE scanning.
	Timeout     time.Duration
	Mode        Mode
	EnableCache bool
}

// DefaultOptions returns passive detection with a short cache.
func DefaultOptions() Options {
	return Options{
		Mode:        Passive,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector finds devices over one link kind.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

var (
	// ErrNoDevicesFound is returned when no detector found a Flipper.
	ErrNoDevicesFound = errors.New("no Flipper devices found")
	// ErrDetectionTimeout is returned when detection outlives its timeout.
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrNoDetectors is returned when no detector serves the requested
	// transports.
	ErrNoDetectors = errors.New("no detectors available for the requested transports")
)

var (
	registryMu syncutil.RWMutex
	registry   []Detector
)

// RegisterDetector adds d to the registry. Detector subpackages call it
// from init.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

func detectorsFor(transports []string) []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var out []Detector
	for _, d := range registry {
		if len(transports) == 0 || slices.Contains(transports, d.Transport()) {
			out = append(out, d)
		}
	}
	return out
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every selected detector in parallel. Devices are
// returned when at least one detector found some, even if others failed.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := detectorsFor(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func() { results <- runDetector(ctx, d, opts) }()
	}

	var devices []DeviceInfo
	var errs []error
	for range detectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			devices = append(devices, res.devices...)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrDetectionTimeout, ctx.Err())
		}
	}

	switch {
	case len(devices) > 0:
		slices.SortStableFunc(devices, func(a, b DeviceInfo) int { return int(b.Confidence) - int(a.Confidence) })
		return devices, nil
	case len(errs) > 0:
		return nil, errors.Join(errs...)
	default:
		return nil, ErrNoDevicesFound
	}
}

func runDetector(ctx context.Context, d Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, ok := getCached(d.Transport(), opts.CacheTTL); ok {
			// Cached results skipped Detect, so filter them again.
			return detectionResult{devices: FilterDevices(cached, opts)}
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: fmt.Errorf("%s detection: %w", d.Transport(), err)}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(d.Transport(), devices)
		} else {
			// A device that went away must not linger until the TTL.
			clearCacheForTransport(d.Transport())
		}
	}
	return detectionResult{devices: devices}
}

// FilterDevices drops devices whose path is ignored or whose VID:PID is
// blocked.
func FilterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	var out []DeviceInfo
	for _, d := range devices {
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := d.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ClearDetectionCache removes all cached results.
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport removes the cached results of one link.
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
