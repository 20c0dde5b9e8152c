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

package message

import "time"

// Codec builds requests and owns the command id for one connection.
// The id advances once per logical command, never per chunk or per
// continuation message. Codec is not safe for concurrent use; the client
// serializes commands around it.
type Codec struct {
	commandID uint32
}

// NewCodec returns a codec whose first command id is 0.
func NewCodec() *Codec {
	return &Codec{}
}

// CommandID returns the id the next request will carry.
func (c *Codec) CommandID() uint32 {
	return c.commandID
}

// Increment advances the command id. Multi-message requests call it once
// after building every message of the operation.
func (c *Codec) Increment() {
	c.commandID++
}

// NewRequest builds a request with the current command id and status OK.
// When increment is true the id advances afterwards.
func (c *Codec) NewRequest(content Content, increment bool) *Main {
	m := &Main{
		CommandID: c.commandID,
		Status:    StatusOK,
		Content:   content,
	}
	if increment {
		c.Increment()
	}
	return m
}

// NewDateTime converts t, in its own location, to the device calendar form.
func NewDateTime(t time.Time) *DateTime {
	weekday := uint32(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return &DateTime{
		Hour:    uint32(t.Hour()),
		Minute:  uint32(t.Minute()),
		Second:  uint32(t.Second()),
		Day:     uint32(t.Day()),
		Month:   uint32(t.Month()),
		Year:    uint32(t.Year()),
		Weekday: weekday,
	}
}

// Time interprets d in loc. Weekday is ignored since the date fixes it.
func (d *DateTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day),
		int(d.Hour), int(d.Minute), int(d.Second), 0, loc)
}
