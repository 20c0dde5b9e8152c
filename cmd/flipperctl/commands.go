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
	"fmt"
	"maps"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZaparooProject/go-flipper/detection"
)

func newListCommand(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory (default /ext)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			dir := "/ext"
			if len(args) == 1 {
				dir = args[0]
			}
			listing, err := s.client.List(ctx, dir)
			if err != nil {
				return err
			}
			return writeListing(os.Stdout, listing, format)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

func newUploadCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local> <dest>",
		Short: "Upload a local file",
		Long:  "Upload a local file. A dest ending in / keeps the local file name.",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			dest := uploadDest(args[0], args[1])
			bar := newProgressBar(os.Stderr, "upload")
			err = s.client.Upload(ctx, data, dest, bar.update)
			bar.finish()
			if err != nil {
				return err
			}
			_, _ = fmt.Printf("uploaded %s to %s\n", formatSize(uint64(len(data))), dest)
			return nil
		}),
	}
}

// uploadDest appends the local base name to a directory destination.
func uploadDest(local, dest string) string {
	if strings.HasSuffix(dest, "/") {
		return dest + path.Base(strings.ReplaceAll(local, "\\", "/"))
	}
	return dest
}

func newDownloadCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "download <path> [local]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			local := path.Base(args[0])
			if len(args) == 2 {
				local = args[1]
			}
			bar := newProgressBar(os.Stderr, "download")
			data, err := s.client.Download(ctx, args[0], bar.update)
			bar.finish()
			if err != nil {
				return err
			}
			if err := os.WriteFile(local, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", local, err)
			}
			_, _ = fmt.Printf("downloaded %s to %s\n", formatSize(uint64(len(data))), local)
			return nil
		}),
	}
}

func newDeleteCommand(v *viper.Viper) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			return s.client.Delete(ctx, args[0], recursive)
		}),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "delete directory contents")
	return cmd
}

func newMkdirCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			return s.client.Mkdir(ctx, args[0])
		}),
	}
}

func newRenameCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename or move a file",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			return s.client.Rename(ctx, args[0], args[1])
		}),
	}
}

func newMd5Command(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "md5 <path>",
		Short: "Print the MD5 digest of a file",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			sum, err := s.client.Md5sum(ctx, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Printf("%s  %s\n", sum, args[0])
			return nil
		}),
	}
}

func newStatCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show file metadata",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			f, err := s.client.Stat(ctx, args[0])
			if err != nil {
				return err
			}
			writeStat(os.Stdout, args[0], f)
			return nil
		}),
	}
}

func newInfoCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "info [storage]",
		Short: "Show storage capacity (default /ext)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			storage := "/ext"
			if len(args) == 1 {
				storage = args[0]
			}
			info, err := s.client.StorageInfo(ctx, storage)
			if err != nil {
				return err
			}
			_, _ = fmt.Printf("%s: %s free of %s\n", storage, formatSize(info.FreeSpace), formatSize(info.TotalSpace))
			return nil
		}),
	}
}

func newLaunchCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <app|path.fap> [args]",
		Short: "Start an application",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			return s.client.Launch(ctx, args[0], strings.Join(args[1:], " "))
		}),
	}
}

func newAlertCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "alert",
		Short: "Play the find-my-Flipper alert",
		Args:  cobra.NoArgs,
		RunE: withSession(v, func(ctx context.Context, s *session, _ []string) error {
			return s.client.Alert(ctx)
		}),
	}
}

func newSyncTimeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "synctime",
		Short: "Set the device clock to the local time",
		Args:  cobra.NoArgs,
		RunE: withSession(v, func(ctx context.Context, s *session, _ []string) error {
			return s.client.SyncTime(ctx)
		}),
	}
}

func newTimeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Print the device clock",
		Args:  cobra.NoArgs,
		RunE: withSession(v, func(ctx context.Context, s *session, _ []string) error {
			t, err := s.client.GetDateTime(ctx, time.Local)
			if err != nil {
				return err
			}
			_, _ = fmt.Println(t.Format(time.DateTime))
			return nil
		}),
	}
}

func newPingCommand(v *viper.Viper) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "ping [data]",
		Short: "Check the link round trip",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(v, func(ctx context.Context, s *session, args []string) error {
			data := []byte("ping")
			if len(args) == 1 {
				data = []byte(args[0])
			}
			for i := range count {
				rtt, err := s.client.Ping(ctx, data)
				if err != nil {
					return err
				}
				_, _ = fmt.Printf("%d bytes: seq=%d time=%s\n", len(data), i, rtt.Round(time.Millisecond))
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of pings")
	return cmd
}

func newDetectCommand(v *viper.Viper) *cobra.Command {
	var (
		probe      bool
		transports []string
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List reachable Flipper devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := detection.DefaultOptions()
			opts.Transports = transports
			opts.EnableCache = false
			if probe {
				opts.Mode = detection.Probe
			}
			devices, err := detection.DetectAll(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			for _, d := range devices {
				_, _ = fmt.Println(d.String())
				if v.GetBool("debug") {
					for _, k := range slices.Sorted(maps.Keys(d.Metadata)) {
						_, _ = fmt.Printf("  %s: %s\n", k, d.Metadata[k])
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "ping serial devices to confirm them")
	cmd.Flags().StringSliceVar(&transports, "transport", nil, "restrict to serial or ble")
	return cmd
}
