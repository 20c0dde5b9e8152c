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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv enables debug logging when set to any non-empty value.
const DebugEnv = "FLIPPER_DEBUG"

// DebugEnabled reports whether debug logging was requested through the
// environment.
func DebugEnabled() bool {
	return os.Getenv(DebugEnv) != "" || os.Getenv("DEBUG") != ""
}

// NewLogger builds a human-readable logger writing to w. Debug level is used
// when debug is true or DebugEnabled reports true, info otherwise.
func NewLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug || DebugEnabled() {
		level = zapcore.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "message",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// SessionLog is a per-run JSON log file that records every debug entry,
// regardless of the console level.
type SessionLog struct {
	file *os.File
	path string
}

// OpenSessionLog creates flipper_YYYYMMDD_HHMMSS.log in dir (the current
// directory when empty) and writes a session header.
func OpenSessionLog(dir string) (*SessionLog, error) {
	name := fmt.Sprintf("flipper_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	file, err := os.Create(path) //nolint:gosec // filename is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to create session log: %w", err)
	}
	writeSessionHeader(file)
	return &SessionLog{file: file, path: path}, nil
}

// Path returns the log file path for display to the user.
func (s *SessionLog) Path() string {
	return s.path
}

// Attach returns a logger that writes to both logger and the session file.
func (s *SessionLog) Attach(logger *zap.Logger) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(s.file),
		zapcore.DebugLevel,
	)
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
}

// Close writes the session footer and closes the file.
func (s *SessionLog) Close() error {
	if s.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(s.file, "\n%s === Session ended ===\n", time.Now().Format("15:04:05.000"))
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== Flipper RPC Session Log ===\n")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		_, _ = fmt.Fprintf(w, "Executable: %s\n", exe)
	}
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "===============================\n\n")
}
