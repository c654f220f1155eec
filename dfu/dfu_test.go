// Copyright 2013 Google Inc.  All rights reserved.
// Copyright 2016 the gousb Authors.  All rights reserved.
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

package dfu

import (
	"sync"
	"time"

	"github.com/antfarm/usbdfu/libusb"
)

// fakeClock sleeps not at all but records every requested duration, so
// tests can assert on poll cadence without real waits.
type fakeClock struct {
	mu     sync.Mutex
	Sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeps = append(c.Sleeps, d)
}

// simDevice is a minimal in-memory simulation of a DFU device's class
// state machine, driving a FakeDevice's Control handler in tests.
type simDevice struct {
	mu sync.Mutex

	state  State
	status Status
	poll   uint32 // ms

	attrs uint8

	dnloads   [][]byte
	dnloadTxs []uint16
	detach    []uint16
	aborts    int
	clrStatus int

	uploadData []byte
}

func newSimDevice(attrs uint8) *simDevice {
	return &simDevice{state: StateAppIdle, attrs: attrs}
}

func (s *simDevice) statusBytes() []byte {
	ms := s.poll
	return []byte{
		byte(s.status),
		byte(ms), byte(ms >> 8), byte(ms >> 16),
		byte(s.state),
		0,
	}
}

func (s *simDevice) control(rType, request uint8, val, idx uint16, data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch request {
	case ReqGetStatus:
		b := s.statusBytes()
		if s.state == StateDfuManifest {
			// A simulated device completes manifestation the instant it is
			// next asked about its status.
			s.state = StateDfuIdle
		}
		return b, nil
	case ReqClrStatus:
		s.clrStatus++
		s.status = StatusOK
		s.state = StateDfuIdle
		return nil, nil
	case ReqGetState:
		return []byte{byte(s.state)}, nil
	case ReqAbort:
		s.aborts++
		s.state = StateDfuIdle
		return nil, nil
	case ReqDetach:
		s.detach = append(s.detach, val)
		s.state = StateAppDetach
		return nil, nil
	case ReqDnload:
		s.dnloadTxs = append(s.dnloadTxs, val)
		if len(data) == 0 {
			s.state = StateDfuManifest
			return nil, nil
		}
		s.dnloads = append(s.dnloads, append([]byte{}, data...))
		s.state = StateDfuDnloadIdle
		return nil, nil
	case ReqUpload:
		n := len(data)
		if n > len(s.uploadData) {
			n = len(s.uploadData)
		}
		chunk := s.uploadData[:n]
		s.uploadData = s.uploadData[n:]
		s.state = StateDfuUploadIdle
		return chunk, nil
	}
	return nil, nil
}

func attachSimDevice(f *libusb.FakeLibusb, desc libusb.DeviceDescriptor, strings map[uint8]string, sim *simDevice) libusb.Device {
	fd := &libusb.FakeDevice{
		Desc:    desc,
		Strings: strings,
		Control: sim.control,
	}
	return f.Attach(fd)
}
