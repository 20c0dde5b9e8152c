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

	"github.com/charmbracelet/bubbles/progress"
)

const progressWidth = 40

// progressBar draws a single updating transfer line. It only redraws when
// the whole percentage changes.
type progressBar struct {
	w     io.Writer
	label string
	bar   progress.Model
	last  int
}

func newProgressBar(w io.Writer, label string) *progressBar {
	return &progressBar{
		w:     w,
		label: label,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		last:  -1,
	}
}

func (p *progressBar) update(done, total uint64) {
	percent := 1.0
	if total > 0 {
		percent = min(float64(done)/float64(total), 1)
	}
	whole := int(percent * 100)
	if whole == p.last {
		return
	}
	p.last = whole
	_, _ = fmt.Fprintf(p.w, "\r%s %s %s/%s", p.label, p.bar.ViewAs(percent), formatSize(done), formatSize(total))
}

func (p *progressBar) finish() {
	if p.last >= 0 {
		_, _ = fmt.Fprintln(p.w)
	}
}
