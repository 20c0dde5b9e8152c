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

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/detection"
	"github.com/ZaparooProject/go-flipper/message"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		in   uint64
	}{
		{in: 0, want: "0 B"},
		{in: 1023, want: "1023 B"},
		{in: 1024, want: "1.0 KiB"},
		{in: 1536, want: "1.5 KiB"},
		{in: 5 << 20, want: "5.0 MiB"},
		{in: 3 << 30, want: "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.in), "size %d", tt.in)
	}
}

func TestUploadDest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/ext/a.txt", uploadDest("dir/a.txt", "/ext/a.txt"))
	assert.Equal(t, "/ext/apps/a.fap", uploadDest("build/a.fap", "/ext/apps/"))
	assert.Equal(t, "/ext/b.bin", uploadDest(`C:\tmp\b.bin`, "/ext/"))
}

func testListing() *flipper.Listing {
	return &flipper.Listing{
		Path: "/ext",
		Dirs: []message.File{{Name: "apps", Type: message.FileTypeDir}},
		Files: []message.File{
			{Name: "a.txt", Size: 12},
			{Name: "b.bin", Size: 2048},
		},
	}
}

func TestWriteListingText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, testListing(), "text"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "apps/")
	assert.Contains(t, lines[1], "a.txt")
	assert.Contains(t, lines[1], "12 B")
	assert.Contains(t, lines[2], "2.0 KiB")
}

func TestWriteListingYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, testListing(), "yaml"))

	var doc listingDoc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "/ext", doc.Path)
	assert.Equal(t, []entry{{Name: "apps"}}, doc.Dirs)
	assert.Equal(t, []entry{{Name: "a.txt", Size: 12}, {Name: "b.bin", Size: 2048}}, doc.Files)
}

func TestWriteListingUnknownFormat(t *testing.T) {
	t.Parallel()

	err := writeListing(&bytes.Buffer{}, testListing(), "json")
	require.ErrorIs(t, err, flipper.ErrInvalidParameters)
}

func TestProgressBarRedrawsOnPercentChange(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := newProgressBar(&buf, "upload")
	bar.update(0, 1000)
	bar.update(1, 1000)
	bar.update(500, 1000)
	bar.update(1000, 1000)
	bar.finish()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "\r"))
	assert.Contains(t, out, "100%")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestProgressBarEmptyFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := newProgressBar(&buf, "upload")
	bar.update(0, 0)
	bar.finish()
	assert.Contains(t, buf.String(), "100%")

	buf.Reset()
	idle := newProgressBar(&buf, "download")
	idle.finish()
	assert.Empty(t, buf.String())
}

func TestSettingsFromFlagsAndEnv(t *testing.T) {
	t.Setenv("FLIPPER_PORT", "/dev/ttyACM0")
	t.Setenv("FLIPPER_CHUNK_DELAY", "20ms")

	v := viper.New()
	root := buildRootCommand(v)
	require.NoError(t, root.ParseFlags([]string{"-n", "Abcd", "--adaptive", "--retries", "2"}))
	require.NoError(t, initConfig(v, root))

	s := loadSettings(v)
	assert.Equal(t, "Abcd", s.name)
	assert.Equal(t, "/dev/ttyACM0", s.port)
	assert.Equal(t, 20*time.Millisecond, s.chunkDelay)
	assert.Equal(t, flipper.DefaultFlowControlDelay, s.flowControlDelay)
	assert.Equal(t, 2, s.retries)
	assert.True(t, s.adaptive)
	assert.False(t, s.disconnect)

	config := s.clientConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 20*time.Millisecond, config.ChunkDelay)
	require.IsType(t, &flipper.AdaptivePacer{}, config.Pacer)
	pacer := config.Pacer.(*flipper.AdaptivePacer)
	assert.Equal(t, 20*time.Millisecond, pacer.ChunkDelay)
	assert.Equal(t, flipper.DefaultFlowControlDelay, pacer.MaxDelay)
}

func TestConnectRejectsZeroRetries(t *testing.T) {
	t.Parallel()

	_, err := connect(context.Background(), &settings{port: "/dev/null", retries: 0}, nil)
	require.ErrorIs(t, err, flipper.ErrInvalidParameters)
}

func TestOpenDeviceUnknownTransport(t *testing.T) {
	t.Parallel()

	_, err := openDevice(context.Background(), detection.DeviceInfo{Transport: "nfc", Path: "x"}, nil)
	require.ErrorIs(t, err, flipper.ErrInvalidParameters)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	for _, name := range []string{
		"ls", "upload", "download", "rm", "mkdir", "mv", "md5", "stat",
		"info", "launch", "alert", "synctime", "time", "ping", "detect",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
