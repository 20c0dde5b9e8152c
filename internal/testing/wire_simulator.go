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

// Package testing provides a virtual Flipper Zero for exercising the RPC
// client without hardware.
//
// VirtualFlipper decodes the bytes written to its RX side with the same
// reassembler the client uses, runs each request against an in-memory
// filesystem and encodes the responses the way firmware does: list and
// read results streamed with has_next, bad paths answered with an Empty
// payload, undecodable input answered with ERROR_DECODE followed by the
// end of the RPC session. Responses leave either as BLE-sized
// notification fragments (NextNotification) or as a byte stream (Read),
// and a flow-control notification is raised every FlowControlEvery bytes
// received.
package testing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/ZaparooProject/go-flipper/internal/frame"
	"github.com/ZaparooProject/go-flipper/internal/syncutil"
	"github.com/ZaparooProject/go-flipper/message"
)

// Streaming sizes used by firmware.
const (
	ListPageSize  = 8
	ReadChunkSize = 512
)

// CLIPrompt is printed by the serial CLI before an RPC session starts.
const CLIPrompt = "\r\n>: "

const startRPCCommand = "start_rpc_session\r"

type pendingWrite struct {
	path string
	data []byte
}

// VirtualFlipper simulates the RPC side of a Flipper Zero.
type VirtualFlipper struct {
	fs           *VirtualFS
	frag         *Fragmenter
	reasm        *frame.Reassembler
	upload       *pendingWrite
	apps         map[string]bool
	clock        *message.DateTime
	flow         [][]byte
	requests     []*message.Main
	cliInput     []byte
	txBuffer     bytes.Buffer
	config       JitterConfig
	mu           syncutil.Mutex
	rxSinceFlow  int
	alerts       int
	failNext     message.CommandStatus
	cliMode      bool
	silent       bool
	corruptNext  bool
	sessionEnded bool
}

// NewVirtualFlipper creates a device in RPC mode with empty storage.
func NewVirtualFlipper(config JitterConfig) *VirtualFlipper {
	return &VirtualFlipper{
		fs:     NewVirtualFS(),
		frag:   NewFragmenter(config),
		reasm:  frame.NewReassembler(),
		apps:   map[string]bool{},
		config: config,
		clock:  &message.DateTime{Year: 2026, Month: 1, Day: 1, Weekday: 4},
	}
}

// EnableCLI puts the device in the serial CLI, as after plugging in USB.
// Input is echoed until start_rpc_session switches to RPC mode.
func (v *VirtualFlipper) EnableCLI() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cliMode = true
	v.txBuffer.WriteString(CLIPrompt)
}

// Write implements io.Writer for the host-to-device direction.
func (v *VirtualFlipper) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cliMode {
		v.handleCLI(data)
		return len(data), nil
	}
	v.receive(data)
	return len(data), nil
}

// Read implements io.Reader, draining pending response bytes without
// fragmenting them. An empty buffer reads as 0, nil.
func (v *VirtualFlipper) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, _ := v.txBuffer.Read(buf)
	return n, nil
}

// NextNotification returns the next TX fragment. Fragments ignore message
// boundaries, so one may end a message and start the next.
func (v *VirtualFlipper) NextNotification() ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	size := v.frag.Next(v.txBuffer.Len())
	if size == 0 {
		return nil, false
	}
	return append([]byte(nil), v.txBuffer.Next(size)...), true
}

// NextFlowControl returns the next pending flow-control notification.
func (v *VirtualFlipper) NextFlowControl() ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.flow) == 0 {
		return nil, false
	}
	data := v.flow[0]
	v.flow = v.flow[1:]
	return data, true
}

// Pending returns the number of response bytes not yet delivered.
func (v *VirtualFlipper) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len()
}

// FS returns the device storage for test setup and inspection. It must not
// be used while a request is being handled.
func (v *VirtualFlipper) FS() *VirtualFS {
	return v.fs
}

// Requests returns every request decoded so far.
func (v *VirtualFlipper) Requests() []*message.Main {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*message.Main(nil), v.requests...)
}

// Alerts returns how many audiovisual alerts were played.
func (v *VirtualFlipper) Alerts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alerts
}

// DateTime returns the device clock.
func (v *VirtualFlipper) DateTime() message.DateTime {
	v.mu.Lock()
	defer v.mu.Unlock()
	return *v.clock
}

// SessionEnded reports whether the device left RPC mode after a decode
// error.
func (v *VirtualFlipper) SessionEnded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessionEnded
}

// InstallApp makes AppStart accept name.
func (v *VirtualFlipper) InstallApp(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.apps[name] = true
}

// FailNext answers the next request with status and an Empty payload.
func (v *VirtualFlipper) FailNext(status message.CommandStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNext = status
}

// SetSilent stops the device from answering.
func (v *VirtualFlipper) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// CorruptNext replaces the next response with bytes that cannot decode.
func (v *VirtualFlipper) CorruptNext() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

func (v *VirtualFlipper) handleCLI(data []byte) {
	v.txBuffer.Write(data)
	v.cliInput = append(v.cliInput, data...)
	idx := bytes.Index(v.cliInput, []byte(startRPCCommand))
	if idx < 0 {
		if i := bytes.LastIndexByte(v.cliInput, '\r'); i >= 0 {
			v.txBuffer.WriteString("\n" + CLIPrompt)
			v.cliInput = v.cliInput[i+1:]
		}
		return
	}
	v.txBuffer.WriteString("\n")
	rest := v.cliInput[idx+len(startRPCCommand):]
	v.cliInput = nil
	v.cliMode = false
	if len(rest) > 0 {
		v.receive(rest)
	}
}

func (v *VirtualFlipper) receive(data []byte) {
	if v.sessionEnded {
		return
	}
	v.countFlow(len(data))
	v.reasm.Feed(data)
	for {
		req, err := v.reasm.TryDecode()
		if err != nil {
			if !errors.Is(err, message.ErrIncomplete) {
				v.respond(&message.Main{Status: message.StatusErrorDecode, Content: &message.Empty{}})
				v.sessionEnded = true
			}
			return
		}
		v.requests = append(v.requests, req)
		v.handle(req)
	}
}

// countFlow raises a flow-control notification carrying the free buffer
// space, which the host only uses as a signal.
func (v *VirtualFlipper) countFlow(n int) {
	if v.config.FlowControlEvery <= 0 {
		return
	}
	v.rxSinceFlow += n
	for v.rxSinceFlow >= v.config.FlowControlEvery {
		v.rxSinceFlow -= v.config.FlowControlEvery
		v.flow = append(v.flow, binary.BigEndian.AppendUint32(nil, 0))
	}
}

func (v *VirtualFlipper) respond(m *message.Main) {
	if v.corruptNext {
		v.corruptNext = false
		v.txBuffer.Write([]byte{0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		return
	}
	encoded, err := message.Encode(m)
	if err != nil {
		panic("virtual flipper built an unencodable response: " + err.Error())
	}
	v.txBuffer.Write(encoded)
}

func (v *VirtualFlipper) reply(req *message.Main, status message.CommandStatus, content message.Content) {
	if content == nil {
		content = &message.Empty{}
	}
	v.respond(&message.Main{CommandID: req.CommandID, Status: status, Content: content})
}

func (v *VirtualFlipper) handle(req *message.Main) {
	if v.silent {
		return
	}
	if v.failNext != message.StatusOK {
		status := v.failNext
		v.failNext = message.StatusOK
		v.upload = nil
		v.reply(req, status, nil)
		return
	}

	switch c := req.Content.(type) {
	case *message.StorageWriteRequest:
		v.handleWrite(req, c)
	case *message.StorageReadRequest:
		v.handleRead(req, c.Path)
	case *message.StorageStatRequest:
		file, err := v.fs.Stat(c.Path)
		if errors.Is(err, ErrNotExist) {
			v.reply(req, message.StatusOK, nil)
			return
		}
		v.replyResult(req, err, &message.StorageStatResponse{File: file})
	case *message.StorageListRequest:
		v.handleList(req, c.Path)
	case *message.StorageDeleteRequest:
		v.replyResult(req, v.fs.Remove(c.Path, c.Recursive), nil)
	case *message.StorageMkdirRequest:
		v.replyResult(req, v.fs.Mkdir(c.Path), nil)
	case *message.StorageRenameRequest:
		v.replyResult(req, v.fs.Rename(c.OldPath, c.NewPath), nil)
	case *message.StorageMd5sumRequest:
		sum, err := v.fs.Md5sum(c.Path)
		v.replyResult(req, err, &message.StorageMd5sumResponse{Md5sum: sum})
	case *message.StorageInfoRequest:
		if c.Path != "/int" && c.Path != "/ext" {
			v.reply(req, message.StatusStorageInvalidParameter, nil)
			return
		}
		v.reply(req, message.StatusOK, &message.StorageInfoResponse{
			TotalSpace: VirtualStorageTotal,
			FreeSpace:  VirtualStorageTotal - v.fs.Used(c.Path),
		})
	case *message.AppStartRequest:
		v.handleAppStart(req, c)
	case *message.SystemPlayAudiovisualAlertRequest:
		v.alerts++
		v.reply(req, message.StatusOK, nil)
	case *message.SystemSetDateTimeRequest:
		if c.DateTime == nil {
			v.reply(req, message.StatusInvalidParameters, nil)
			return
		}
		dt := *c.DateTime
		v.clock = &dt
		v.reply(req, message.StatusOK, nil)
	case *message.SystemGetDateTimeRequest:
		dt := *v.clock
		v.reply(req, message.StatusOK, &message.SystemGetDateTimeResponse{DateTime: &dt})
	case *message.PingRequest:
		v.reply(req, message.StatusOK, &message.PingResponse{Data: c.Data})
	case *message.Empty, nil:
		// Acknowledgements need no answer.
	default:
		v.reply(req, message.StatusErrorNotImplemented, nil)
	}
}

func (v *VirtualFlipper) replyResult(req *message.Main, err error, content message.Content) {
	if err != nil {
		v.reply(req, statusFor(err), nil)
		return
	}
	v.reply(req, message.StatusOK, content)
}

func (v *VirtualFlipper) handleWrite(req *message.Main, c *message.StorageWriteRequest) {
	if v.upload == nil || v.upload.path != c.Path {
		v.upload = &pendingWrite{path: c.Path}
	}
	if c.File != nil {
		v.upload.data = append(v.upload.data, c.File.Data...)
	}
	if req.HasNext {
		return
	}
	err := v.fs.WriteFile(v.upload.path, v.upload.data)
	v.upload = nil
	v.replyResult(req, err, nil)
}

func (v *VirtualFlipper) handleRead(req *message.Main, path string) {
	data, err := v.fs.ReadFile(path)
	switch {
	case errors.Is(err, ErrNotExist):
		v.reply(req, message.StatusOK, nil)
		return
	case err != nil:
		v.reply(req, statusFor(err), nil)
		return
	}

	for start := 0; ; start += ReadChunkSize {
		end := min(start+ReadChunkSize, len(data))
		last := end == len(data)
		v.respond(&message.Main{
			CommandID: req.CommandID,
			HasNext:   !last,
			Content:   &message.StorageReadResponse{File: &message.File{Data: data[start:end]}},
		})
		if last {
			return
		}
	}
}

func (v *VirtualFlipper) handleList(req *message.Main, path string) {
	files, err := v.fs.List(path)
	switch {
	case errors.Is(err, ErrNotExist):
		v.reply(req, message.StatusOK, nil)
		return
	case err != nil:
		v.reply(req, statusFor(err), nil)
		return
	}

	for start := 0; ; start += ListPageSize {
		end := min(start+ListPageSize, len(files))
		last := end == len(files)
		v.respond(&message.Main{
			CommandID: req.CommandID,
			HasNext:   !last,
			Content:   &message.StorageListResponse{Files: files[start:end]},
		})
		if last {
			return
		}
	}
}

func (v *VirtualFlipper) handleAppStart(req *message.Main, c *message.AppStartRequest) {
	if v.apps[c.Name] {
		v.reply(req, message.StatusOK, nil)
		return
	}
	if strings.HasSuffix(c.Name, ".fap") {
		if _, err := v.fs.ReadFile(c.Name); err == nil {
			v.reply(req, message.StatusOK, nil)
			return
		}
	}
	v.reply(req, message.StatusInvalidParameters, nil)
}

func statusFor(err error) message.CommandStatus {
	switch {
	case errors.Is(err, ErrNotExist):
		return message.StatusStorageNotExist
	case errors.Is(err, ErrExist):
		return message.StatusStorageExist
	case errors.Is(err, ErrNotEmpty):
		return message.StatusStorageDirNotEmpty
	case errors.Is(err, ErrInvalidName):
		return message.StatusStorageInvalidName
	case errors.Is(err, ErrNotDir), errors.Is(err, ErrIsDir):
		return message.StatusStorageInvalidParameter
	default:
		return message.StatusStorageInternal
	}
}
