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

package testing

import "github.com/ZaparooProject/go-flipper/message"

// EncodeResponse encodes m and panics on failure. Only for test fixtures.
func EncodeResponse(m *message.Main) []byte {
	encoded, err := message.Encode(m)
	if err != nil {
		panic("encode fixture response: " + err.Error())
	}
	return encoded
}

// BuildStatusResponse encodes a bare status answer.
func BuildStatusResponse(id uint32, status message.CommandStatus) []byte {
	return EncodeResponse(&message.Main{CommandID: id, Status: status, Content: &message.Empty{}})
}

// BuildEmptyResponse encodes the answer firmware gives for a path that does
// not exist.
func BuildEmptyResponse(id uint32) []byte {
	return BuildStatusResponse(id, message.StatusOK)
}

// BuildStatResponse encodes a stat answer for file.
func BuildStatResponse(id uint32, file *message.File) []byte {
	return EncodeResponse(&message.Main{CommandID: id, Content: &message.StorageStatResponse{File: file}})
}

// BuildListResponses streams files in pages of pageSize entries. An empty
// listing is one terminal message without entries.
func BuildListResponses(id uint32, files []message.File, pageSize int) [][]byte {
	pageSize = max(pageSize, 1)
	var out [][]byte
	for start := 0; ; start += pageSize {
		end := min(start+pageSize, len(files))
		out = append(out, EncodeResponse(&message.Main{
			CommandID: id,
			HasNext:   end < len(files),
			Content:   &message.StorageListResponse{Files: files[start:end]},
		}))
		if end == len(files) {
			return out
		}
	}
}

// BuildReadResponses streams data in chunks of chunkSize bytes.
func BuildReadResponses(id uint32, data []byte, chunkSize int) [][]byte {
	chunkSize = max(chunkSize, 1)
	var out [][]byte
	for start := 0; ; start += chunkSize {
		end := min(start+chunkSize, len(data))
		out = append(out, EncodeResponse(&message.Main{
			CommandID: id,
			HasNext:   end < len(data),
			Content:   &message.StorageReadResponse{File: &message.File{Data: data[start:end]}},
		}))
		if end == len(data) {
			return out
		}
	}
}
