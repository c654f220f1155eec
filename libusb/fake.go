// Copyright 2017 the gousb Authors.  All rights reserved.
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

package libusb

import (
	"fmt"
	"sync"
	"time"
)

// ControlFunc handles one control transfer directed at a simulated
// device. It receives the request type/code/value/index and, for OUT
// transfers, a copy of the payload, or for IN transfers a zeroed buffer
// whose length is the requested wLength; it returns the bytes to hand back
// for an IN transfer (truncated to that length; ignored for OUT) and an
// error (use Error values to simulate stalls and the like).
type ControlFunc func(rType, request uint8, val, idx uint16, data []byte) ([]byte, error)

// FakeDevice is one simulated USB device plumbed into a FakeLibusb.
type FakeDevice struct {
	Desc    DeviceDescriptor
	Strings map[uint8]string // string descriptor index -> UTF-16LE-free test string

	mu      sync.Mutex
	alt     map[uint8]uint8
	claimed map[uint8]bool
	Control ControlFunc
}

// FakeLibusb is an in-memory Intf implementation standing in for the real
// USB stack in tests, grounded on the teacher's fakeLibusb (see
// usb/fakelibusb_test.go and fakelibusb_test.go in the retrieval pack).
// Unlike the teacher's fake (which leaves control() unimplemented since
// gousb tests only exercise bulk/iso endpoints), this one fully simulates
// control transfers because that is the DFU engine's only transport.
type FakeLibusb struct {
	mu      sync.Mutex
	devices map[Device]*FakeDevice
	handles map[DevHandle]Device
	reset   map[Device]bool
}

// NewFakeLibusb creates an empty fake with no devices attached. Use
// Attach to add simulated devices before calling GetDevices.
func NewFakeLibusb() *FakeLibusb {
	return &FakeLibusb{
		devices: make(map[Device]*FakeDevice),
		handles: make(map[DevHandle]Device),
		reset:   make(map[Device]bool),
	}
}

// Attach registers a simulated device and returns its Device handle.
func (f *FakeLibusb) Attach(fd *FakeDevice) Device {
	fd.alt = make(map[uint8]uint8)
	fd.claimed = make(map[uint8]bool)
	f.mu.Lock()
	defer f.mu.Unlock()
	d := Device(new(rawDevice))
	f.devices[d] = fd
	return d
}

// Detach removes a previously attached device, simulating re-enumeration
// after a bus reset or DFU_DETACH.
func (f *FakeLibusb) Detach(d Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.devices, d)
}

// WasReset reports whether Reset was called on the given device since the
// fake was created.
func (f *FakeLibusb) WasReset(d Device) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reset[d]
}

// IsClaimed reports whether iface is currently claimed on d.
func (f *FakeLibusb) IsClaimed(d Device, iface uint8) bool {
	f.mu.Lock()
	fd, ok := f.devices[d]
	f.mu.Unlock()
	if !ok {
		return false
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.claimed[iface]
}

func (f *FakeLibusb) Init() (*rawContext, error) { return new(rawContext), nil }
func (f *FakeLibusb) Exit(*rawContext)           {}
func (f *FakeLibusb) SetDebug(*rawContext, int)  {}

func (f *FakeLibusb) GetDevices(*rawContext) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Device, 0, len(f.devices))
	for d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

func (f *FakeLibusb) Reference(d Device) Device { return d }
func (f *FakeLibusb) Dereference(Device)         {}

func (f *FakeLibusb) GetDeviceDescriptor(d Device) (*DeviceDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd, ok := f.devices[d]
	if !ok {
		return nil, fmt.Errorf("libusb: invalid device %p", d)
	}
	desc := fd.Desc
	return &desc, nil
}

func (f *FakeLibusb) Open(d Device) (DevHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[d]; !ok {
		return nil, fmt.Errorf("libusb: invalid device %p", d)
	}
	h := DevHandle(new(rawDevHandle))
	f.handles[h] = d
	return h, nil
}

func (f *FakeLibusb) Close(h DevHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, h)
}

func (f *FakeLibusb) Reset(h DevHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.handles[h]
	if !ok {
		return ErrorNoDevice
	}
	f.reset[d] = true
	return nil
}

func (f *FakeLibusb) device(h DevHandle) (Device, *FakeDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.handles[h]
	if !ok {
		return nil, nil, ErrorNoDevice
	}
	fd, ok := f.devices[d]
	if !ok {
		return nil, nil, ErrorNoDevice
	}
	return d, fd, nil
}

func (f *FakeLibusb) Control(h DevHandle, _ time.Duration, rType, request uint8, val, idx uint16, data []byte) (int, error) {
	_, fd, err := f.device(h)
	if err != nil {
		return 0, err
	}
	if fd.Control == nil {
		return 0, fmt.Errorf("libusb: device has no Control handler")
	}
	out := make([]byte, len(data))
	if rType&0x80 == 0 {
		copy(out, data)
	}
	resp, err := fd.Control(rType, request, val, idx, out)
	if err != nil {
		return 0, err
	}
	if rType&0x80 != 0 {
		n := copy(data, resp)
		return n, nil
	}
	return len(data), nil
}

func (f *FakeLibusb) GetDescriptor(h DevHandle, timeout time.Duration, descType, index uint8, wIndex uint16, data []byte) (int, error) {
	return f.Control(h, timeout, 0x80, 0x06, uint16(descType)<<8|uint16(index), wIndex, data)
}

func (f *FakeLibusb) GetConfig(DevHandle) (uint8, error) { return 1, nil }
func (f *FakeLibusb) SetConfig(DevHandle, uint8) error   { return nil }

func (f *FakeLibusb) GetStringDescriptorRaw(h DevHandle, index uint8, _ uint16, data []byte) (int, error) {
	_, fd, err := f.device(h)
	if err != nil {
		return 0, err
	}
	s, ok := fd.Strings[index]
	if !ok {
		return 0, ErrorNotFound
	}
	raw := encodeUTF16LEStringDescriptor(s)
	n := copy(data, raw)
	return n, nil
}

func (f *FakeLibusb) Claim(h DevHandle, iface uint8) error {
	_, fd, err := f.device(h)
	if err != nil {
		return err
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.claimed[iface] = true
	return nil
}

func (f *FakeLibusb) Release(h DevHandle, iface uint8) {
	_, fd, err := f.device(h)
	if err != nil {
		return
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.claimed[iface] = false
}

func (f *FakeLibusb) SetInterfaceAltSetting(h DevHandle, iface, alt uint8) error {
	_, fd, err := f.device(h)
	if err != nil {
		return err
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if !fd.claimed[iface] {
		return fmt.Errorf("libusb: interface %d must be claimed before setting an alternate", iface)
	}
	fd.alt[iface] = alt
	return nil
}

// encodeUTF16LEStringDescriptor builds a standard USB string descriptor
// (bLength, bDescriptorType=0x03, then UTF-16LE code units) for test
// fixtures that want to exercise the real decode path.
func encodeUTF16LEStringDescriptor(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2+2*len(runes))
	buf[0] = byte(len(buf))
	buf[1] = 0x03
	for i, r := range runes {
		buf[2+2*i] = byte(r)
		buf[2+2*i+1] = byte(r >> 8)
	}
	return buf
}
