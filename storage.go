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
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/message"
)

// Listing is the content of a device directory. Dirs and Files are each
// sorted by name in byte order.
type Listing struct {
	Path  string
	Dirs  []message.File
	Files []message.File
}

// Len returns the number of entries.
func (l *Listing) Len() int {
	return len(l.Dirs) + len(l.Files)
}

func newListing(path string, entries []message.File) *Listing {
	l := &Listing{Path: path}
	for _, e := range entries {
		if e.IsDir() {
			l.Dirs = append(l.Dirs, e)
		} else {
			l.Files = append(l.Files, e)
		}
	}
	byName := func(a, b message.File) int {
		return bytes.Compare([]byte(a.Name), []byte(b.Name))
	}
	slices.SortStableFunc(l.Dirs, byName)
	slices.SortStableFunc(l.Files, byName)
	return l
}

// maxDownloadPrealloc caps the buffer reserved from the size a stat reports.
const maxDownloadPrealloc = 1 << 20

// cleanPath trims trailing slashes, which the device rejects. The root
// path stays "/".
func cleanPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidParameters)
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/", nil
	}
	return trimmed, nil
}

// Stat returns the metadata of a file or directory.
func (c *Client) Stat(ctx context.Context, path string) (*message.File, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	var file *message.File
	err = c.run(ctx, "stat", func(ctx context.Context, cmd *command) error {
		file, err = c.stat(ctx, cmd, path)
		return err
	})
	return file, err
}

func (c *Client) stat(ctx context.Context, cmd *command, path string) (*message.File, error) {
	if err := c.request(ctx, cmd, &message.StorageStatRequest{Path: path}, WriteWithoutResponse); err != nil {
		return nil, err
	}
	m, err := c.expectOne(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(cmd.name, m); err != nil {
		return nil, err
	}
	switch content := m.Content.(type) {
	case *message.StorageStatResponse:
		if content.File == nil {
			return nil, &PathError{Op: cmd.name, Path: path}
		}
		return content.File, nil
	case *message.Empty, nil:
		return nil, &PathError{Op: cmd.name, Path: path}
	default:
		return nil, unexpectedContent(cmd, m)
	}
}

// Download reads a whole file from the device. The size reported by a
// preceding stat is used as the progress total.
func (c *Client) Download(ctx context.Context, path string, progress Progress) ([]byte, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = c.run(ctx, "download", func(ctx context.Context, cmd *command) error {
		data, err = c.download(ctx, cmd, path, progress)
		return err
	})
	return data, err
}

func (c *Client) download(ctx context.Context, cmd *command, path string, progress Progress) ([]byte, error) {
	info, err := c.stat(ctx, cmd, path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidParameters, path)
	}
	total := uint64(info.Size)
	cmd.logger.Debug("file size", zap.String("path", path), zap.Uint64("bytes", total))

	if err := c.request(ctx, cmd, &message.StorageReadRequest{Path: path}, WriteWithResponse); err != nil {
		return nil, err
	}
	if err := sleepContext(ctx, c.config.ReadRequestDelay); err != nil {
		return nil, err
	}

	data := make([]byte, 0, min(total, maxDownloadPrealloc))
	err = c.receive(ctx, cmd, func(m *message.Main) (bool, error) {
		if err := checkStatus(cmd.name, m); err != nil {
			return true, err
		}
		switch content := m.Content.(type) {
		case *message.StorageReadResponse:
			// A read response without a file is an empty file.
			if content.File != nil {
				data = append(data, content.File.Data...)
				c.metrics.downloadBytes.Add(len(content.File.Data))
				if progress != nil {
					progress(uint64(len(data)), total)
				}
			}
		case *message.Empty:
			// The file went away between stat and read.
			return true, &PathError{Op: cmd.name, Path: path}
		case nil:
		default:
			return true, unexpectedContent(cmd, m)
		}
		return !m.HasNext, nil
	})
	if err != nil {
		return nil, err
	}

	if c.config.AckDownload {
		if err := c.request(ctx, cmd, &message.Empty{}, WriteWithoutResponse); err != nil {
			return nil, err
		}
		cmd.logger.Debug("acknowledged download")
	}
	return data, nil
}

// Upload writes data to dest on the device, replacing any existing file.
// The device replies once, after the last segment.
func (c *Client) Upload(ctx context.Context, data []byte, dest string, progress Progress) error {
	dest, err := cleanPath(dest)
	if err != nil {
		return err
	}
	return c.run(ctx, "upload", func(ctx context.Context, cmd *command) error {
		return c.upload(ctx, cmd, data, dest, progress)
	})
}

func (c *Client) upload(ctx context.Context, cmd *command, data []byte, dest string, progress Progress) error {
	segments, err := BuildWriteSegments(c.codec, data, dest, c.config.FileSegmentSize, c.config.TransportUnitSize)
	if err != nil {
		return err
	}
	cmd.id = segments[0].Message.CommandID

	chunks := make([]frame.Chunk, 0, len(segments))
	for _, seg := range segments {
		chunks = append(chunks, seg.Chunks...)
	}
	cmd.logger.Debug("uploading",
		zap.String("path", dest),
		zap.Int("bytes", len(data)),
		zap.Int("segments", len(segments)),
		zap.Int("chunks", len(chunks)))

	total := uint64(len(data))
	var done uint64
	err = c.sendSequence(ctx, cmd, chunks, WriteWithoutResponse, func(ch frame.Chunk) {
		if ch.FileBytes == 0 {
			return
		}
		done += uint64(ch.FileBytes)
		c.metrics.uploadBytes.Add(ch.FileBytes)
		if progress != nil {
			progress(done, total)
		}
	})
	if err != nil {
		return err
	}

	if err := sleepContext(ctx, c.config.ReplySettleDelay); err != nil {
		return err
	}
	m, err := c.readReply(ctx, cmd)
	if err != nil {
		return err
	}
	return checkStatus(cmd.name, m)
}

// List returns the entries of a directory.
func (c *Client) List(ctx context.Context, path string) (*Listing, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	var listing *Listing
	err = c.run(ctx, "list", func(ctx context.Context, cmd *command) error {
		if err := c.request(ctx, cmd, &message.StorageListRequest{Path: path}, WriteWithoutResponse); err != nil {
			return err
		}
		var entries []message.File
		err := c.receive(ctx, cmd, func(m *message.Main) (bool, error) {
			if err := checkStatus(cmd.name, m); err != nil {
				return true, err
			}
			switch content := m.Content.(type) {
			case *message.StorageListResponse:
				entries = append(entries, content.Files...)
			case *message.Empty:
				// An empty directory still answers with a list response.
				return true, &PathError{Op: cmd.name, Path: path}
			case nil:
			default:
				return true, unexpectedContent(cmd, m)
			}
			return !m.HasNext, nil
		})
		if err != nil {
			return err
		}
		listing = newListing(path, entries)
		return nil
	})
	return listing, err
}

// Delete removes a file or directory. Non-empty directories need
// recursive.
func (c *Client) Delete(ctx context.Context, path string, recursive bool) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	return c.run(ctx, "delete", func(ctx context.Context, cmd *command) error {
		req := &message.StorageDeleteRequest{Path: path, Recursive: recursive}
		if err := c.request(ctx, cmd, req, WriteWithoutResponse); err != nil {
			return err
		}
		return c.expectStatus(ctx, cmd)
	})
}

// Mkdir creates a directory.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	return c.run(ctx, "mkdir", func(ctx context.Context, cmd *command) error {
		if err := c.request(ctx, cmd, &message.StorageMkdirRequest{Path: path}, WriteWithoutResponse); err != nil {
			return err
		}
		return c.expectStatus(ctx, cmd)
	})
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPath, err := cleanPath(oldPath)
	if err != nil {
		return err
	}
	newPath, err = cleanPath(newPath)
	if err != nil {
		return err
	}
	return c.run(ctx, "rename", func(ctx context.Context, cmd *command) error {
		req := &message.StorageRenameRequest{OldPath: oldPath, NewPath: newPath}
		if err := c.request(ctx, cmd, req, WriteWithoutResponse); err != nil {
			return err
		}
		return c.expectStatus(ctx, cmd)
	})
}

// Md5sum returns the hex MD5 digest the device computes for a file.
func (c *Client) Md5sum(ctx context.Context, path string) (string, error) {
	path, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	var sum string
	err = c.run(ctx, "md5sum", func(ctx context.Context, cmd *command) error {
		if err := c.request(ctx, cmd, &message.StorageMd5sumRequest{Path: path}, WriteWithoutResponse); err != nil {
			return err
		}
		m, err := c.expectOne(ctx, cmd)
		if err != nil {
			return err
		}
		if err := checkStatus(cmd.name, m); err != nil {
			return err
		}
		switch content := m.Content.(type) {
		case *message.StorageMd5sumResponse:
			if content.Md5sum == "" {
				return &PathError{Op: cmd.name, Path: path}
			}
			sum = content.Md5sum
			return nil
		case *message.Empty, nil:
			return &PathError{Op: cmd.name, Path: path}
		default:
			return unexpectedContent(cmd, m)
		}
	})
	return sum, err
}

// StorageInfo returns the capacity of the storage holding path, such as
// "/ext" or "/int".
func (c *Client) StorageInfo(ctx context.Context, path string) (*message.StorageInfoResponse, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	var info *message.StorageInfoResponse
	err = c.run(ctx, "storage_info", func(ctx context.Context, cmd *command) error {
		if err := c.request(ctx, cmd, &message.StorageInfoRequest{Path: path}, WriteWithoutResponse); err != nil {
			return err
		}
		m, err := c.expectOne(ctx, cmd)
		if err != nil {
			return err
		}
		if err := checkStatus(cmd.name, m); err != nil {
			return err
		}
		switch content := m.Content.(type) {
		case *message.StorageInfoResponse:
			info = content
			return nil
		case *message.Empty, nil:
			return &PathError{Op: cmd.name, Path: path}
		default:
			return unexpectedContent(cmd, m)
		}
	})
	return info, err
}
