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

	"github.com/ZaparooProject/go-flipper/message"
)

// Launch starts an application by name or by the path of a .fap file,
// passing args to it. The reply is a single short message read directly
// from the TX characteristic.
func (c *Client) Launch(ctx context.Context, app, args string) error {
	if app == "" {
		return fmt.Errorf("%w: empty application", ErrInvalidParameters)
	}
	return c.run(ctx, "launch", func(ctx context.Context, cmd *command) error {
		req := &message.AppStartRequest{Name: app, Args: args}
		if err := c.request(ctx, cmd, req, WriteWithoutResponse); err != nil {
			return err
		}
		m, err := c.readReply(ctx, cmd)
		if err != nil {
			return err
		}

		err = checkStatus(cmd.name, m)
		var se *StatusError
		if errors.As(err, &se) && se.Status == message.StatusInvalidParameters {
			// The loader answers a missing .fap with invalid parameters.
			return fmt.Errorf("application path %q: %w: %w", app, ErrInvalidPath, err)
		}
		return err
	})
}
