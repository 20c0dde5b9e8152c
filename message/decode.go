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

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decode failure classes. Incomplete means the caller should wait for more
// bytes; Malformed means waiting will not help.
var (
	ErrIncomplete = errors.New("message: incomplete")
	ErrMalformed  = errors.New("message: malformed")
)

// DecodeErrorKind classifies a decode failure.
type DecodeErrorKind int

const (
	Incomplete DecodeErrorKind = iota + 1
	Malformed
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Incomplete:
		return "incomplete"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError reports why a buffer could not be decoded. It matches
// ErrIncomplete or ErrMalformed with errors.Is depending on Kind.
type DecodeError struct {
	Err    error
	Kind   DecodeErrorKind
	Have   int // bytes available
	Needed int // bytes declared by the length prefix, 0 if unknown
}

func (e *DecodeError) Error() string {
	if e.Kind == Incomplete && e.Needed > 0 {
		return fmt.Sprintf("message: incomplete: have %d of %d bytes", e.Have, e.Needed)
	}
	if e.Err != nil {
		return fmt.Sprintf("message: %s: %v", e.Kind, e.Err)
	}
	return "message: " + e.Kind.String()
}

func (e *DecodeError) Unwrap() []error {
	kind := ErrMalformed
	if e.Kind == Incomplete {
		kind = ErrIncomplete
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// IsIncomplete reports whether err means more bytes are required.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// Decode parses one length-prefixed message from the start of b and returns
// it with the number of bytes consumed. Bytes after the message are ignored.
func Decode(b []byte) (*Main, int, error) {
	size, n := protowire.ConsumeVarint(b)
	if n < 0 {
		err := protowire.ParseError(n)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, &DecodeError{Kind: Incomplete, Have: len(b)}
		}
		return nil, 0, &DecodeError{Kind: Malformed, Have: len(b), Err: fmt.Errorf("length prefix: %w", err)}
	}
	if size > MaxMessageSize {
		return nil, 0, &DecodeError{
			Kind: Malformed,
			Have: len(b),
			Err:  fmt.Errorf("declared length %d exceeds %d", size, MaxMessageSize),
		}
	}

	total := n + int(size)
	if len(b) < total {
		return nil, 0, &DecodeError{Kind: Incomplete, Have: len(b), Needed: total}
	}

	m, err := decodeMain(b[n:total])
	if err != nil {
		return nil, 0, &DecodeError{Kind: Malformed, Have: len(b), Needed: total, Err: err}
	}
	return m, total, nil
}

// DecodeBody parses an unprefixed PB.Main body.
func DecodeBody(body []byte) (*Main, error) {
	m, err := decodeMain(body)
	if err != nil {
		return nil, &DecodeError{Kind: Malformed, Have: len(body), Needed: len(body), Err: err}
	}
	return m, nil
}

type field struct {
	val []byte
	u   uint64
	num protowire.Number
	typ protowire.Type
}

func (f *field) isVarint() bool { return f.typ == protowire.VarintType }
func (f *field) isBytes() bool  { return f.typ == protowire.BytesType }

func (f *field) str() (string, error) {
	if !utf8.Valid(f.val) {
		return "", fmt.Errorf("field %d: invalid UTF-8", f.num)
	}
	return string(f.val), nil
}

// bytes copies the value so decoded messages never alias a reused buffer.
func (f *field) bytes() []byte {
	if len(f.val) == 0 {
		return nil
	}
	return append([]byte(nil), f.val...)
}

func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.val, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

type contentDecoder func(body []byte) (Content, error)

var contentDecoders map[protowire.Number]contentDecoder

func init() {
	contentDecoders = map[protowire.Number]contentDecoder{
		fieldEmpty:                     decodeEmpty,
		fieldPingRequest:               decodePingRequest,
		fieldPingResponse:              decodePingResponse,
		fieldStorageListRequest:        pathDecoder(func(p string) Content { return &StorageListRequest{Path: p} }),
		fieldStorageListResponse:       decodeListResponse,
		fieldStorageReadRequest:        pathDecoder(func(p string) Content { return &StorageReadRequest{Path: p} }),
		fieldStorageReadResponse:       fileDecoder(func(f *File) Content { return &StorageReadResponse{File: f} }),
		fieldStorageWriteRequest:       decodeWriteRequest,
		fieldStorageDeleteRequest:      decodeDeleteRequest,
		fieldStorageMkdirRequest:       pathDecoder(func(p string) Content { return &StorageMkdirRequest{Path: p} }),
		fieldStorageMd5sumRequest:      pathDecoder(func(p string) Content { return &StorageMd5sumRequest{Path: p} }),
		fieldStorageMd5sumResponse:     decodeMd5sumResponse,
		fieldAppStartRequest:           decodeAppStartRequest,
		fieldStorageStatRequest:        pathDecoder(func(p string) Content { return &StorageStatRequest{Path: p} }),
		fieldStorageStatResponse:       fileDecoder(func(f *File) Content { return &StorageStatResponse{File: f} }),
		fieldStorageInfoRequest:        pathDecoder(func(p string) Content { return &StorageInfoRequest{Path: p} }),
		fieldStorageInfoResponse:       decodeInfoResponse,
		fieldStorageRenameRequest:      decodeRenameRequest,
		fieldSystemGetDateTimeRequest:  decodeGetDateTimeRequest,
		fieldSystemGetDateTimeResponse: dateTimeDecoder(func(d *DateTime) Content { return &SystemGetDateTimeResponse{DateTime: d} }),
		fieldSystemSetDateTimeRequest:  dateTimeDecoder(func(d *DateTime) Content { return &SystemSetDateTimeRequest{DateTime: d} }),
		fieldSystemAlertRequest:        decodeAlertRequest,
	}
}

func decodeMain(body []byte) (*Main, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}

	m := &Main{}
	for i := range fields {
		f := &fields[i]
		switch {
		case f.num == fieldCommandID && f.isVarint():
			m.CommandID = uint32(f.u)
		case f.num == fieldCommandStatus && f.isVarint():
			m.Status = CommandStatus(int32(f.u))
		case f.num == fieldHasNext && f.isVarint():
			m.HasNext = f.u != 0
		case f.num >= fieldEmpty && f.isBytes():
			c, err := decodeContent(f)
			if err != nil {
				return nil, err
			}
			m.Content = c
		}
	}
	return m, nil
}

func decodeContent(f *field) (Content, error) {
	dec, ok := contentDecoders[f.num]
	if !ok {
		return &Unknown{Field: int32(f.num), Raw: f.bytes()}, nil
	}
	c, err := dec(f.val)
	if err != nil {
		return nil, fmt.Errorf("content field %d: %w", f.num, err)
	}
	return c, nil
}

func decodeEmpty([]byte) (Content, error) { return &Empty{}, nil }

func decodeGetDateTimeRequest([]byte) (Content, error) {
	return &SystemGetDateTimeRequest{}, nil
}

func decodeAlertRequest([]byte) (Content, error) {
	return &SystemPlayAudiovisualAlertRequest{}, nil
}

func decodePingRequest(body []byte) (Content, error) {
	data, err := decodeSingleBytes(body)
	if err != nil {
		return nil, err
	}
	return &PingRequest{Data: data}, nil
}

func decodePingResponse(body []byte) (Content, error) {
	data, err := decodeSingleBytes(body)
	if err != nil {
		return nil, err
	}
	return &PingResponse{Data: data}, nil
}

func decodeSingleBytes(body []byte) ([]byte, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	var data []byte
	for i := range fields {
		if fields[i].num == 1 && fields[i].isBytes() {
			data = fields[i].bytes()
		}
	}
	return data, nil
}

func decodeStrings(body []byte, dst ...*string) error {
	fields, err := parseFields(body)
	if err != nil {
		return err
	}
	for i := range fields {
		f := &fields[i]
		idx := int(f.num) - 1
		if idx < 0 || idx >= len(dst) || !f.isBytes() {
			continue
		}
		s, err := f.str()
		if err != nil {
			return err
		}
		*dst[idx] = s
	}
	return nil
}

func pathDecoder(build func(path string) Content) contentDecoder {
	return func(body []byte) (Content, error) {
		var path string
		if err := decodeStrings(body, &path); err != nil {
			return nil, err
		}
		return build(path), nil
	}
}

func fileDecoder(build func(f *File) Content) contentDecoder {
	return func(body []byte) (Content, error) {
		fields, err := parseFields(body)
		if err != nil {
			return nil, err
		}
		var file *File
		for i := range fields {
			if fields[i].num == 1 && fields[i].isBytes() {
				if file, err = decodeFile(fields[i].val); err != nil {
					return nil, err
				}
			}
		}
		return build(file), nil
	}
}

func dateTimeDecoder(build func(d *DateTime) Content) contentDecoder {
	return func(body []byte) (Content, error) {
		fields, err := parseFields(body)
		if err != nil {
			return nil, err
		}
		var dt *DateTime
		for i := range fields {
			if fields[i].num == 1 && fields[i].isBytes() {
				if dt, err = decodeDateTime(fields[i].val); err != nil {
					return nil, err
				}
			}
		}
		return build(dt), nil
	}
}

func decodeFile(body []byte) (*File, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	file := &File{}
	for i := range fields {
		f := &fields[i]
		switch {
		case f.num == fileFieldType && f.isVarint():
			file.Type = FileType(int32(f.u))
		case f.num == fileFieldName && f.isBytes():
			if file.Name, err = f.str(); err != nil {
				return nil, err
			}
		case f.num == fileFieldSize && f.isVarint():
			file.Size = uint32(f.u)
		case f.num == fileFieldData && f.isBytes():
			file.Data = f.bytes()
		case f.num == fileFieldMd5sum && f.isBytes():
			if file.Md5sum, err = f.str(); err != nil {
				return nil, err
			}
		}
	}
	return file, nil
}

func decodeDateTime(body []byte) (*DateTime, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	dt := &DateTime{}
	slots := map[protowire.Number]*uint32{
		dateTimeFieldHour:    &dt.Hour,
		dateTimeFieldMinute:  &dt.Minute,
		dateTimeFieldSecond:  &dt.Second,
		dateTimeFieldDay:     &dt.Day,
		dateTimeFieldMonth:   &dt.Month,
		dateTimeFieldYear:    &dt.Year,
		dateTimeFieldWeekday: &dt.Weekday,
	}
	for i := range fields {
		if slot, ok := slots[fields[i].num]; ok && fields[i].isVarint() {
			*slot = uint32(fields[i].u)
		}
	}
	return dt, nil
}

func decodeListResponse(body []byte) (Content, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	resp := &StorageListResponse{}
	for i := range fields {
		if fields[i].num != 1 || !fields[i].isBytes() {
			continue
		}
		file, err := decodeFile(fields[i].val)
		if err != nil {
			return nil, err
		}
		resp.Files = append(resp.Files, *file)
	}
	return resp, nil
}

func decodeWriteRequest(body []byte) (Content, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	req := &StorageWriteRequest{}
	for i := range fields {
		f := &fields[i]
		switch {
		case f.num == 1 && f.isBytes():
			if req.Path, err = f.str(); err != nil {
				return nil, err
			}
		case f.num == 2 && f.isBytes():
			if req.File, err = decodeFile(f.val); err != nil {
				return nil, err
			}
		}
	}
	return req, nil
}

func decodeDeleteRequest(body []byte) (Content, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	req := &StorageDeleteRequest{}
	for i := range fields {
		f := &fields[i]
		switch {
		case f.num == 1 && f.isBytes():
			if req.Path, err = f.str(); err != nil {
				return nil, err
			}
		case f.num == 2 && f.isVarint():
			req.Recursive = f.u != 0
		}
	}
	return req, nil
}

func decodeMd5sumResponse(body []byte) (Content, error) {
	resp := &StorageMd5sumResponse{}
	if err := decodeStrings(body, &resp.Md5sum); err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeAppStartRequest(body []byte) (Content, error) {
	req := &AppStartRequest{}
	if err := decodeStrings(body, &req.Name, &req.Args); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeRenameRequest(body []byte) (Content, error) {
	req := &StorageRenameRequest{}
	if err := decodeStrings(body, &req.OldPath, &req.NewPath); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeInfoResponse(body []byte) (Content, error) {
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	resp := &StorageInfoResponse{}
	for i := range fields {
		f := &fields[i]
		switch {
		case f.num == 1 && f.isVarint():
			resp.TotalSpace = f.u
		case f.num == 2 && f.isVarint():
			resp.FreeSpace = f.u
		}
	}
	return resp, nil
}
