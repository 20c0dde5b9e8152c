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

import "google.golang.org/protobuf/encoding/protowire"

// Content is the payload carried by a Main message. The set of
// implementations is closed: only the types in this package satisfy it.
type Content interface {
	field() protowire.Number
	kind() string
	appendBody(b []byte) []byte
}

// Kind returns the wire name of a payload, or "none" for a nil payload.
func Kind(c Content) string {
	if c == nil {
		return "none"
	}
	return c.kind()
}

// FileType distinguishes regular files from directories in storage entries.
type FileType int32

const (
	FileTypeFile FileType = 0
	FileTypeDir  FileType = 1
)

func (t FileType) String() string {
	if t == FileTypeDir {
		return "dir"
	}
	return "file"
}

// File is a storage entry. Directories carry no size; Data is only set on
// read responses and write requests.
type File struct {
	Name   string
	Md5sum string
	Data   []byte
	Type   FileType
	Size   uint32
}

// IsDir reports whether the entry is a directory.
func (f *File) IsDir() bool { return f.Type == FileTypeDir }

func (f *File) appendBody(b []byte) []byte {
	b = appendVarintField(b, fileFieldType, uint64(int64(f.Type)))
	b = appendStringField(b, fileFieldName, f.Name)
	b = appendVarintField(b, fileFieldSize, uint64(f.Size))
	b = appendBytesField(b, fileFieldData, f.Data)
	return appendStringField(b, fileFieldMd5sum, f.Md5sum)
}

// DateTime is the device calendar time. Weekday runs from 1 (Monday) to
// 7 (Sunday).
type DateTime struct {
	Hour    uint32
	Minute  uint32
	Second  uint32
	Day     uint32
	Month   uint32
	Year    uint32
	Weekday uint32
}

func (d *DateTime) appendBody(b []byte) []byte {
	b = appendVarintField(b, dateTimeFieldHour, uint64(d.Hour))
	b = appendVarintField(b, dateTimeFieldMinute, uint64(d.Minute))
	b = appendVarintField(b, dateTimeFieldSecond, uint64(d.Second))
	b = appendVarintField(b, dateTimeFieldDay, uint64(d.Day))
	b = appendVarintField(b, dateTimeFieldMonth, uint64(d.Month))
	b = appendVarintField(b, dateTimeFieldYear, uint64(d.Year))
	return appendVarintField(b, dateTimeFieldWeekday, uint64(d.Weekday))
}

// Empty is the explicit "no data" payload. The device answers stat, read and
// list requests for missing paths with it.
type Empty struct{}

func (*Empty) field() protowire.Number    { return fieldEmpty }
func (*Empty) kind() string               { return "empty" }
func (*Empty) appendBody(b []byte) []byte { return b }

// PingRequest asks the device to echo Data back.
type PingRequest struct {
	Data []byte
}

func (*PingRequest) field() protowire.Number { return fieldPingRequest }
func (*PingRequest) kind() string            { return "system_ping_request" }
func (c *PingRequest) appendBody(b []byte) []byte {
	return appendBytesField(b, 1, c.Data)
}

// PingResponse carries the echoed ping payload.
type PingResponse struct {
	Data []byte
}

func (*PingResponse) field() protowire.Number { return fieldPingResponse }
func (*PingResponse) kind() string            { return "system_ping_response" }
func (c *PingResponse) appendBody(b []byte) []byte {
	return appendBytesField(b, 1, c.Data)
}

type StorageListRequest struct {
	Path string
}

func (*StorageListRequest) field() protowire.Number { return fieldStorageListRequest }
func (*StorageListRequest) kind() string            { return "storage_list_request" }
func (c *StorageListRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

// StorageListResponse holds one batch of directory entries. Large
// directories arrive as several responses chained with HasNext.
type StorageListResponse struct {
	Files []File
}

func (*StorageListResponse) field() protowire.Number { return fieldStorageListResponse }
func (*StorageListResponse) kind() string            { return "storage_list_response" }
func (c *StorageListResponse) appendBody(b []byte) []byte {
	for i := range c.Files {
		b = appendMessageField(b, 1, &c.Files[i])
	}
	return b
}

type StorageReadRequest struct {
	Path string
}

func (*StorageReadRequest) field() protowire.Number { return fieldStorageReadRequest }
func (*StorageReadRequest) kind() string            { return "storage_read_request" }
func (c *StorageReadRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

type StorageReadResponse struct {
	File *File
}

func (*StorageReadResponse) field() protowire.Number { return fieldStorageReadResponse }
func (*StorageReadResponse) kind() string            { return "storage_read_response" }
func (c *StorageReadResponse) appendBody(b []byte) []byte {
	return appendFileField(b, 1, c.File)
}

// StorageWriteRequest carries one file segment. All segments of a single
// upload share one command id.
type StorageWriteRequest struct {
	File *File
	Path string
}

func (*StorageWriteRequest) field() protowire.Number { return fieldStorageWriteRequest }
func (*StorageWriteRequest) kind() string            { return "storage_write_request" }
func (c *StorageWriteRequest) appendBody(b []byte) []byte {
	b = appendStringField(b, 1, c.Path)
	return appendFileField(b, 2, c.File)
}

type StorageDeleteRequest struct {
	Path      string
	Recursive bool
}

func (*StorageDeleteRequest) field() protowire.Number { return fieldStorageDeleteRequest }
func (*StorageDeleteRequest) kind() string            { return "storage_delete_request" }
func (c *StorageDeleteRequest) appendBody(b []byte) []byte {
	b = appendStringField(b, 1, c.Path)
	return appendBoolField(b, 2, c.Recursive)
}

type StorageMkdirRequest struct {
	Path string
}

func (*StorageMkdirRequest) field() protowire.Number { return fieldStorageMkdirRequest }
func (*StorageMkdirRequest) kind() string            { return "storage_mkdir_request" }
func (c *StorageMkdirRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

type StorageMd5sumRequest struct {
	Path string
}

func (*StorageMd5sumRequest) field() protowire.Number { return fieldStorageMd5sumRequest }
func (*StorageMd5sumRequest) kind() string            { return "storage_md5sum_request" }
func (c *StorageMd5sumRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

type StorageMd5sumResponse struct {
	Md5sum string
}

func (*StorageMd5sumResponse) field() protowire.Number { return fieldStorageMd5sumResponse }
func (*StorageMd5sumResponse) kind() string            { return "storage_md5sum_response" }
func (c *StorageMd5sumResponse) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Md5sum)
}

// AppStartRequest launches an application by name or .fap path.
type AppStartRequest struct {
	Name string
	Args string
}

func (*AppStartRequest) field() protowire.Number { return fieldAppStartRequest }
func (*AppStartRequest) kind() string            { return "app_start_request" }
func (c *AppStartRequest) appendBody(b []byte) []byte {
	b = appendStringField(b, 1, c.Name)
	return appendStringField(b, 2, c.Args)
}

type StorageStatRequest struct {
	Path string
}

func (*StorageStatRequest) field() protowire.Number { return fieldStorageStatRequest }
func (*StorageStatRequest) kind() string            { return "storage_stat_request" }
func (c *StorageStatRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

type StorageStatResponse struct {
	File *File
}

func (*StorageStatResponse) field() protowire.Number { return fieldStorageStatResponse }
func (*StorageStatResponse) kind() string            { return "storage_stat_response" }
func (c *StorageStatResponse) appendBody(b []byte) []byte {
	return appendFileField(b, 1, c.File)
}

type StorageInfoRequest struct {
	Path string
}

func (*StorageInfoRequest) field() protowire.Number { return fieldStorageInfoRequest }
func (*StorageInfoRequest) kind() string            { return "storage_info_request" }
func (c *StorageInfoRequest) appendBody(b []byte) []byte {
	return appendStringField(b, 1, c.Path)
}

// StorageInfoResponse reports the capacity of a storage root in bytes.
type StorageInfoResponse struct {
	TotalSpace uint64
	FreeSpace  uint64
}

func (*StorageInfoResponse) field() protowire.Number { return fieldStorageInfoResponse }
func (*StorageInfoResponse) kind() string            { return "storage_info_response" }
func (c *StorageInfoResponse) appendBody(b []byte) []byte {
	b = appendVarintField(b, 1, c.TotalSpace)
	return appendVarintField(b, 2, c.FreeSpace)
}

type StorageRenameRequest struct {
	OldPath string
	NewPath string
}

func (*StorageRenameRequest) field() protowire.Number { return fieldStorageRenameRequest }
func (*StorageRenameRequest) kind() string            { return "storage_rename_request" }
func (c *StorageRenameRequest) appendBody(b []byte) []byte {
	b = appendStringField(b, 1, c.OldPath)
	return appendStringField(b, 2, c.NewPath)
}

type SystemGetDateTimeRequest struct{}

func (*SystemGetDateTimeRequest) field() protowire.Number    { return fieldSystemGetDateTimeRequest }
func (*SystemGetDateTimeRequest) kind() string               { return "system_get_datetime_request" }
func (*SystemGetDateTimeRequest) appendBody(b []byte) []byte { return b }

type SystemGetDateTimeResponse struct {
	DateTime *DateTime
}

func (*SystemGetDateTimeResponse) field() protowire.Number { return fieldSystemGetDateTimeResponse }
func (*SystemGetDateTimeResponse) kind() string            { return "system_get_datetime_response" }
func (c *SystemGetDateTimeResponse) appendBody(b []byte) []byte {
	if c.DateTime == nil {
		return b
	}
	return appendMessageField(b, 1, c.DateTime)
}

type SystemSetDateTimeRequest struct {
	DateTime *DateTime
}

func (*SystemSetDateTimeRequest) field() protowire.Number { return fieldSystemSetDateTimeRequest }
func (*SystemSetDateTimeRequest) kind() string            { return "system_set_datetime_request" }
func (c *SystemSetDateTimeRequest) appendBody(b []byte) []byte {
	if c.DateTime == nil {
		return b
	}
	return appendMessageField(b, 1, c.DateTime)
}

// SystemPlayAudiovisualAlertRequest makes the device beep and flash.
type SystemPlayAudiovisualAlertRequest struct{}

func (*SystemPlayAudiovisualAlertRequest) field() protowire.Number {
	return fieldSystemAlertRequest
}
func (*SystemPlayAudiovisualAlertRequest) kind() string               { return "system_play_audiovisual_alert_request" }
func (*SystemPlayAudiovisualAlertRequest) appendBody(b []byte) []byte { return b }

// Unknown preserves a payload this package has no type for (gui, gpio,
// desktop, ...). Raw is the undecoded submessage body.
type Unknown struct {
	Raw   []byte
	Field int32
}

func (c *Unknown) field() protowire.Number { return protowire.Number(c.Field) }
func (*Unknown) kind() string              { return "unknown" }
func (c *Unknown) appendBody(b []byte) []byte {
	return append(b, c.Raw...)
}

type bodyAppender interface {
	appendBody(b []byte) []byte
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessageField writes a submessage even when its body is empty, which
// is how presence is expressed for message-typed fields.
func appendMessageField(b []byte, num protowire.Number, m bodyAppender) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendBody(nil))
}

func appendFileField(b []byte, num protowire.Number, f *File) []byte {
	if f == nil {
		return b
	}
	return appendMessageField(b, num, f)
}
