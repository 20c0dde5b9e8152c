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
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	flipper "github.com/ZaparooProject/go-flipper"
	"github.com/ZaparooProject/go-flipper/message"
)

var (
	dirStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// entry is the YAML form of a listed file.
type entry struct {
	Name string `yaml:"name"`
	Size uint32 `yaml:"size,omitempty"`
}

type listingDoc struct {
	Path  string  `yaml:"path"`
	Dirs  []entry `yaml:"dirs,omitempty"`
	Files []entry `yaml:"files,omitempty"`
}

func writeListing(w io.Writer, l *flipper.Listing, format string) error {
	switch format {
	case "text", "":
		return writeListingText(w, l)
	case "yaml":
		return writeListingYAML(w, l)
	default:
		return fmt.Errorf("%w: unknown format %q", flipper.ErrInvalidParameters, format)
	}
}

func writeListingText(w io.Writer, l *flipper.Listing) error {
	for _, d := range l.Dirs {
		if _, err := fmt.Fprintf(w, "%s\n", dirStyle.Render(d.Name+"/")); err != nil {
			return err
		}
	}
	for _, f := range l.Files {
		if _, err := fmt.Fprintf(w, "%-32s %s\n", f.Name, mutedStyle.Render(formatSize(uint64(f.Size)))); err != nil {
			return err
		}
	}
	return nil
}

func writeListingYAML(w io.Writer, l *flipper.Listing) error {
	doc := listingDoc{Path: l.Path}
	for _, d := range l.Dirs {
		doc.Dirs = append(doc.Dirs, entry{Name: d.Name})
	}
	for _, f := range l.Files {
		doc.Files = append(doc.Files, entry{Name: f.Name, Size: f.Size})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return enc.Close()
}

func writeStat(w io.Writer, path string, f *message.File) {
	_, _ = fmt.Fprintf(w, "path: %s\ntype: %s\n", path, f.Type)
	if !f.IsDir() {
		_, _ = fmt.Fprintf(w, "size: %s (%d bytes)\n", formatSize(uint64(f.Size)), f.Size)
	}
}

func formatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
