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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/detection"
	_ "github.com/ZaparooProject/go-flipper/detection/ble"
	_ "github.com/ZaparooProject/go-flipper/detection/serial"
	bletransport "github.com/ZaparooProject/go-flipper/transport/ble"
	serialtransport "github.com/ZaparooProject/go-flipper/transport/serial"
)

const envPrefix = "flipper"

// settings is the resolved configuration of one invocation. Values come
// from flags, FLIPPER_* environment variables, .env files and an optional
// flipper.yaml, in that order of precedence.
type settings struct {
	name             string
	port             string
	sessionLogDir    string
	chunkDelay       time.Duration
	flowControlDelay time.Duration
	responseTimeout  time.Duration
	retries          int
	disconnect       bool
	debug            bool
	sessionLog       bool
	metrics          bool
	adaptive         bool
	ackDownload      bool
}

func newRootCommand() *cobra.Command {
	return buildRootCommand(viper.New())
}

func buildRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "flipperctl",
		Short:         "Manage a Flipper Zero over BLE or USB serial",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("name", "n", "", "BLE name of the Flipper (any Flipper when empty)")
	flags.String("port", "", "serial port to use instead of BLE")
	flags.BoolP("disconnect", "d", false, "disconnect from the Flipper when done")
	flags.Bool("debug", flipper.DebugEnabled(), "enable debug logging")
	flags.Bool("session-log", false, "write a JSON session log file")
	flags.String("session-log-dir", "", "directory of the session log file")
	flags.Bool("metrics", false, "print link metrics when done")
	flags.Duration("chunk-delay", flipper.DefaultChunkDelay, "pause after every chunk write")
	flags.Duration("flow-control-delay", flipper.DefaultFlowControlDelay, "extra pause on device flow control")
	flags.Duration("response-timeout", flipper.DefaultResponseTimeout, "wait for each response message")
	flags.Bool("adaptive", false, "back off chunk pacing on flow control instead of fixed delays")
	flags.Bool("ack-download", false, "acknowledge completed downloads")
	flags.Int("retries", flipper.DefaultRetryConfig().MaxAttempts, "connection attempts")

	root.AddCommand(
		newListCommand(v),
		newUploadCommand(v),
		newDownloadCommand(v),
		newDeleteCommand(v),
		newMkdirCommand(v),
		newRenameCommand(v),
		newMd5Command(v),
		newStatCommand(v),
		newInfoCommand(v),
		newLaunchCommand(v),
		newAlertCommand(v),
		newSyncTimeCommand(v),
		newTimeCommand(v),
		newPingCommand(v),
		newDetectCommand(v),
	)
	return root
}

// initConfig loads env files and the optional config file, then binds the
// flags of the running command.
func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("flipper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(dir + "/flipperctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}

func loadSettings(v *viper.Viper) *settings {
	return &settings{
		name:             v.GetString("name"),
		port:             v.GetString("port"),
		disconnect:       v.GetBool("disconnect"),
		debug:            v.GetBool("debug"),
		sessionLog:       v.GetBool("session-log"),
		sessionLogDir:    v.GetString("session-log-dir"),
		metrics:          v.GetBool("metrics"),
		chunkDelay:       v.GetDuration("chunk-delay"),
		flowControlDelay: v.GetDuration("flow-control-delay"),
		responseTimeout:  v.GetDuration("response-timeout"),
		adaptive:         v.GetBool("adaptive"),
		ackDownload:      v.GetBool("ack-download"),
		retries:          v.GetInt("retries"),
	}
}

// clientConfig applies the pacing overrides to the default link tunables.
func (s *settings) clientConfig() *flipper.Config {
	config := flipper.DefaultConfig()
	config.ChunkDelay = s.chunkDelay
	config.FlowControlDelay = s.flowControlDelay
	config.ResponseTimeout = s.responseTimeout
	config.AckDownload = s.ackDownload
	if s.adaptive {
		config.Pacer = &flipper.AdaptivePacer{ChunkDelay: s.chunkDelay, MaxDelay: s.flowControlDelay}
	}
	return config
}

// session is an open connection plus the resources tied to its lifetime.
type session struct {
	client     *flipper.Client
	logger     *zap.Logger
	sessionLog *flipper.SessionLog
	settings   *settings
}

func openSession(ctx context.Context, v *viper.Viper) (*session, error) {
	s := loadSettings(v)
	logger := flipper.NewLogger(os.Stderr, s.debug)

	var sessionLog *flipper.SessionLog
	if s.sessionLog {
		var err error
		sessionLog, err = flipper.OpenSessionLog(s.sessionLogDir)
		if err != nil {
			return nil, err
		}
		logger = sessionLog.Attach(logger)
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", sessionLog.Path())
	}

	client, err := connect(ctx, s, logger)
	if err != nil {
		if sessionLog != nil {
			_ = sessionLog.Close()
		}
		return nil, err
	}
	return &session{client: client, logger: logger, sessionLog: sessionLog, settings: s}, nil
}

func connect(ctx context.Context, s *settings, logger *zap.Logger) (*flipper.Client, error) {
	if s.retries < 1 {
		return nil, fmt.Errorf("%w: retries must be at least 1", flipper.ErrInvalidParameters)
	}
	opts := []flipper.ConnectOption{
		flipper.WithConnectLogger(logger),
		flipper.WithConnectionRetries(s.retries),
		flipper.WithClientOptions(
			flipper.WithConfig(s.clientConfig()),
			flipper.WithLogger(logger),
		),
		flipper.WithTransportFromDeviceFactory(func(ctx context.Context, d detection.DeviceInfo) (flipper.Transport, error) {
			return openDevice(ctx, d, logger)
		}),
	}

	switch {
	case s.port != "":
		opts = append(opts, flipper.WithTransportFactory(func(ctx context.Context, path string) (flipper.Transport, error) {
			return openSerial(ctx, path, logger)
		}))
		return flipper.Connect(ctx, s.port, opts...)
	case s.name != "":
		opts = append(opts, flipper.WithTransportFactory(func(ctx context.Context, name string) (flipper.Transport, error) {
			return openBLE(ctx, name, logger)
		}))
		return flipper.Connect(ctx, s.name, opts...)
	default:
		return flipper.Connect(ctx, "", opts...)
	}
}

func openDevice(ctx context.Context, d detection.DeviceInfo, logger *zap.Logger) (flipper.Transport, error) {
	switch d.Transport {
	case detection.TransportSerial:
		return openSerial(ctx, d.Path, logger)
	case detection.TransportBLE:
		return openBLE(ctx, d.Name, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported transport %q", flipper.ErrInvalidParameters, d.Transport)
	}
}

func openSerial(ctx context.Context, port string, logger *zap.Logger) (flipper.Transport, error) {
	t, err := serialtransport.Open(ctx, port, serialtransport.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func openBLE(ctx context.Context, name string, logger *zap.Logger) (flipper.Transport, error) {
	t, err := bletransport.Connect(ctx, name, bletransport.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return t, nil
}

// close releases the session. The link is only torn down explicitly with
// --disconnect; otherwise it drops when the process exits.
func (s *session) close() {
	if s.settings.metrics {
		s.client.WriteMetrics(os.Stderr)
	}
	if s.settings.disconnect {
		s.logger.Debug("disconnecting")
		if err := s.client.Close(); err != nil {
			s.logger.Error("failed to disconnect", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
	if s.sessionLog != nil {
		_ = s.sessionLog.Close()
	}
}

// withSession runs fn on a fresh connection.
func withSession(
	v *viper.Viper, fn func(ctx context.Context, s *session, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, v)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(ctx, s, args)
	}
}
