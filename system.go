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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-flipper/message"
)

// Alert plays the audiovisual alert so the device can be found. The
// request is not answered.
func (c *Client) Alert(ctx context.Context) error {
	return c.run(ctx, "alert", func(ctx context.Context, cmd *command) error {
		return c.request(ctx, cmd, &message.SystemPlayAudiovisualAlertRequest{}, WriteWithoutResponse)
	})
}

// SetDateTime sets the device clock to t as seen in t's location. The
// request is not answered.
func (c *Client) SetDateTime(ctx context.Context, t time.Time) error {
	return c.run(ctx, "set_datetime", func(ctx context.Context, cmd *command) error {
		req := &message.SystemSetDateTimeRequest{DateTime: message.NewDateTime(t)}
		return c.request(ctx, cmd, req, WriteWithoutResponse)
	})
}

// SyncTime sets the device clock to the host's local time.
func (c *Client) SyncTime(ctx context.Context) error {
	return c.SetDateTime(ctx, c.now().Local())
}

// GetDateTime reads the device clock. The device has no time zone, so the
// result is interpreted in loc (time.Local when nil).
func (c *Client) GetDateTime(ctx context.Context, loc *time.Location) (time.Time, error) {
	var t time.Time
	err := c.run(ctx, "get_datetime", func(ctx context.Context, cmd *command) error {
		if err := c.request(ctx, cmd, &message.SystemGetDateTimeRequest{}, WriteWithoutResponse); err != nil {
			return err
		}
		m, err := c.expectOne(ctx, cmd)
		if err != nil {
			return err
		}
		if err := checkStatus(cmd.name, m); err != nil {
			return err
		}
		resp, ok := m.Content.(*message.SystemGetDateTimeResponse)
		if !ok || resp.DateTime == nil {
			return unexpectedContent(cmd, m)
		}
		t = resp.DateTime.Time(loc)
		return nil
	})
	return t, err
}

// Ping sends data to the device and checks that it comes back unchanged.
func (c *Client) Ping(ctx context.Context, data []byte) (time.Duration, error) {
	var rtt time.Duration
	err := c.run(ctx, "ping", func(ctx context.Context, cmd *command) error {
		start := time.Now()
		if err := c.request(ctx, cmd, &message.PingRequest{Data: data}, WriteWithoutResponse); err != nil {
			return err
		}
		m, err := c.expectOne(ctx, cmd)
		if err != nil {
			return err
		}
		rtt = time.Since(start)
		if err := checkStatus(cmd.name, m); err != nil {
			return err
		}
		resp, ok := m.Content.(*message.PingResponse)
		if !ok {
			return unexpectedContent(cmd, m)
		}
		if !bytes.Equal(resp.Data, data) {
			return fmt.Errorf("%w: ping echoed %d bytes, sent %d", ErrUnexpectedResponse, len(resp.Data), len(data))
		}
		return nil
	})
	return rtt, err
}
