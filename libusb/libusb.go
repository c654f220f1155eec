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

// Package libusb is a thin wrapper around libusb-1.0, trimmed to the
// operations the DFU protocol engine needs: enumeration, descriptor
// access (including the raw "extra" bytes trailing configuration and
// interface descriptors, where class-specific functional descriptors
// live), control transfers, and interface claim/release.
package libusb

import (
	"fmt"
	"time"
)

type rawContext struct{}
// rawDevice and rawDevHandle have a non-zero size so that each new() of
// them is a distinct pointer; FakeLibusb keys devices and handles by it.
type rawDevice struct{ _ byte }
type rawDevHandle struct{ _ byte }

// Device is an opaque handle identifying one enumerated USB device before
// it has been opened.
type Device *rawDevice

// DevHandle is an opaque handle to an opened USB device.
type DevHandle *rawDevHandle

// EndpointDescriptor is a decoded endpoint descriptor, 7 bytes on the wire.
type EndpointDescriptor struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
	Interval      uint8
}

// InterfaceDescriptor is a decoded interface descriptor, 9 bytes on the
// wire, plus whatever class-specific descriptor bytes immediately follow
// it in the configuration's descriptor block (Extra).
type InterfaceDescriptor struct {
	Number      uint8
	Alternate   uint8
	Class       uint8
	SubClass    uint8
	Protocol    uint8
	IInterface  uint8
	Endpoints   []EndpointDescriptor
	Extra       []byte
}

// InterfaceInfo groups every alternate setting sharing an interface number.
type InterfaceInfo struct {
	Number  uint8
	Altsets []InterfaceDescriptor
}

// ConfigDescriptor is a decoded configuration descriptor, 9 bytes on the
// wire, plus the raw Extra bytes appearing before the first interface
// descriptor (where a device-level DFU functional descriptor may live).
type ConfigDescriptor struct {
	Value      uint8
	Attributes uint8
	MaxPower   uint8
	Interfaces []InterfaceInfo
	Extra      []byte
}

// DeviceDescriptor is a decoded device descriptor, 18 bytes on the wire.
type DeviceDescriptor struct {
	Bus             uint8
	Address         uint8
	PortNumbers     []uint8
	Spec            uint16
	Device          uint16
	Vendor          uint16
	Product         uint16
	Class           uint8
	SubClass        uint8
	Protocol        uint8
	MaxPacketSize0  uint8
	NumConfigs      uint8
	ISerialNumber   uint8
	Configs         []ConfigDescriptor
}

// Intf is the set of libusb operations the rest of this module depends
// on. It exists so tests can inject a fake implementation instead of
// talking to the real USB stack; see FakeLibusb.
type Intf interface {
	Init() (*rawContext, error)
	Exit(*rawContext)
	SetDebug(*rawContext, int)
	GetDevices(*rawContext) ([]Device, error)
	Reference(Device) Device
	Dereference(Device)
	GetDeviceDescriptor(Device) (*DeviceDescriptor, error)

	Open(Device) (DevHandle, error)
	Close(DevHandle)
	Reset(DevHandle) error
	Control(DevHandle, time.Duration, uint8, uint8, uint16, uint16, []byte) (int, error)
	GetDescriptor(DevHandle, time.Duration, uint8, uint8, uint16, []byte) (int, error)
	GetConfig(DevHandle) (uint8, error)
	SetConfig(DevHandle, uint8) error
	GetStringDescriptorRaw(DevHandle, uint8, uint16, []byte) (int, error)

	Claim(DevHandle, uint8) error
	Release(DevHandle, uint8)
	SetInterfaceAltSetting(DevHandle, uint8, uint8) error
}

// Default is the package-level implementation used in production. Tests
// leave it alone and pass a *FakeLibusb to NewContextWithImpl instead.
var Default Intf = cgoImpl{}

// wrapError adapts an Error into a plain error with additional context,
// mirroring the teacher's fromUSBError/usbError composition.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("libusb: %s: %w", op, err)
}
