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

import (
	"crypto/md5" //nolint:gosec // the device reports MD5, not used for security
	"encoding/hex"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/ZaparooProject/go-flipper/message"
)

// Filesystem errors, each answered with its device status.
var (
	ErrNotExist    = errors.New("no such file or directory")
	ErrExist       = errors.New("already exists")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrNotEmpty    = errors.New("directory not empty")
	ErrInvalidName = errors.New("invalid name")
)

// Storage capacity reported for both volumes.
const (
	VirtualStorageTotal uint64 = 16 << 20
)

type fsNode struct {
	children map[string]*fsNode
	data     []byte
	dir      bool
}

// VirtualFS is the in-memory storage of a VirtualFlipper: the two volumes
// /int and /ext under a root that only holds them.
type VirtualFS struct {
	root *fsNode
}

// NewVirtualFS creates empty /int and /ext volumes.
func NewVirtualFS() *VirtualFS {
	root := &fsNode{dir: true, children: map[string]*fsNode{}}
	root.children["int"] = &fsNode{dir: true, children: map[string]*fsNode{}}
	root.children["ext"] = &fsNode{dir: true, children: map[string]*fsNode{}}
	return &VirtualFS{root: root}
}

func splitPath(p string) ([]string, error) {
	if !strings.HasPrefix(p, "/") || (strings.HasSuffix(p, "/") && p != "/") {
		return nil, ErrInvalidName
	}
	clean := path.Clean(p)
	if clean == "/" {
		return nil, nil
	}
	return strings.Split(clean[1:], "/"), nil
}

func (fs *VirtualFS) lookup(p string) (*fsNode, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	node := fs.root
	for _, part := range parts {
		if !node.dir {
			return nil, ErrNotDir
		}
		next, ok := node.children[part]
		if !ok {
			return nil, ErrNotExist
		}
		node = next
	}
	return node, nil
}

func (fs *VirtualFS) parent(p string) (*fsNode, string, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, "", err
	}
	// Nothing may be created next to the volumes.
	if len(parts) < 2 {
		return nil, "", ErrInvalidName
	}
	dir, err := fs.lookup("/" + strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	if !dir.dir {
		return nil, "", ErrNotDir
	}
	return dir, parts[len(parts)-1], nil
}

// WriteFile creates or replaces a file.
func (fs *VirtualFS) WriteFile(p string, data []byte) error {
	dir, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	if existing, ok := dir.children[name]; ok && existing.dir {
		return ErrIsDir
	}
	dir.children[name] = &fsNode{data: append([]byte(nil), data...)}
	return nil
}

// ReadFile returns a copy of a file's content.
func (fs *VirtualFS) ReadFile(p string) ([]byte, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if node.dir {
		return nil, ErrIsDir
	}
	return append([]byte(nil), node.data...), nil
}

// Mkdir creates one directory.
func (fs *VirtualFS) Mkdir(p string) error {
	dir, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	if _, ok := dir.children[name]; ok {
		return ErrExist
	}
	dir.children[name] = &fsNode{dir: true, children: map[string]*fsNode{}}
	return nil
}

// MkdirAll creates a directory and any missing parents.
func (fs *VirtualFS) MkdirAll(p string) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	for i := 2; i <= len(parts); i++ {
		err := fs.Mkdir("/" + strings.Join(parts[:i], "/"))
		if err != nil && !errors.Is(err, ErrExist) {
			return err
		}
	}
	return nil
}

// Remove deletes a file or directory. A non-empty directory needs
// recursive.
func (fs *VirtualFS) Remove(p string, recursive bool) error {
	dir, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	node, ok := dir.children[name]
	if !ok {
		return ErrNotExist
	}
	if node.dir && len(node.children) > 0 && !recursive {
		return ErrNotEmpty
	}
	delete(dir.children, name)
	return nil
}

// Rename moves a file or directory. The destination must not exist.
func (fs *VirtualFS) Rename(oldPath, newPath string) error {
	oldDir, oldName, err := fs.parent(oldPath)
	if err != nil {
		return err
	}
	node, ok := oldDir.children[oldName]
	if !ok {
		return ErrNotExist
	}
	newDir, newName, err := fs.parent(newPath)
	if err != nil {
		return err
	}
	if _, exists := newDir.children[newName]; exists {
		return ErrExist
	}
	delete(oldDir.children, oldName)
	newDir.children[newName] = node
	return nil
}

// Stat describes one entry. Directories have no size.
func (fs *VirtualFS) Stat(p string) (*message.File, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	return describe(path.Base(p), node), nil
}

// List returns the entries of a directory in reverse name order, so
// callers cannot depend on the device sorting them.
func (fs *VirtualFS) List(p string) ([]message.File, error) {
	node, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if !node.dir {
		return nil, ErrNotDir
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	files := make([]message.File, 0, len(names))
	for _, name := range names {
		files = append(files, *describe(name, node.children[name]))
	}
	return files, nil
}

// Md5sum returns the hex MD5 of a file.
func (fs *VirtualFS) Md5sum(p string) (string, error) {
	data, err := fs.ReadFile(p)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data) //nolint:gosec // device protocol uses MD5
	return hex.EncodeToString(sum[:]), nil
}

// Used returns the bytes stored under a volume.
func (fs *VirtualFS) Used(volume string) uint64 {
	node, err := fs.lookup(volume)
	if err != nil {
		return 0
	}
	return usage(node)
}

func usage(n *fsNode) uint64 {
	if !n.dir {
		return uint64(len(n.data))
	}
	var total uint64
	for _, child := range n.children {
		total += usage(child)
	}
	return total
}

func describe(name string, n *fsNode) *message.File {
	if n.dir {
		return &message.File{Name: name, Type: message.FileTypeDir}
	}
	return &message.File{Name: name, Type: message.FileTypeFile, Size: uint32(len(n.data))}
}
