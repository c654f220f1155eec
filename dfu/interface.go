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
	"fmt"

	"github.com/antfarm/usbdfu/libusb"
	"github.com/antfarm/usbdfu/quirks"
)

// Flags is a bitset of properties discovered about a matched interface.
type Flags uint8

const (
	// IsDfuMode is set when the interface's alternate setting was
	// determined to be operating in DFU mode rather than run-time mode.
	IsDfuMode Flags = 1 << iota
	// HasMultipleAlts is set when the owning interface exposes more than
	// one alternate setting.
	HasMultipleAlts
)

// FunctionalDescriptor is the decoded DFU class-specific functional
// descriptor (USB DFU spec, section 4.1.3).
type FunctionalDescriptor struct {
	BLength           uint8
	BmAttributes      uint8
	WDetachTimeOut    uint16
	WTransferSize     uint16
	BcdDFUVersion     uint16
}

// synthesizeFunctionalDescriptor builds the fallback functional descriptor
// spec.md 4.1 requires when none could be located on the wire.
func synthesizeFunctionalDescriptor() FunctionalDescriptor {
	return FunctionalDescriptor{BLength: 7, BcdDFUVersion: 0x0100}
}

// decodeFunctionalDescriptor parses the wire bytes of a DFU functional
// descriptor, applying spec.md 4.1's version-deduction rules for
// descriptors shorter than the full 9-byte form.
func decodeFunctionalDescriptor(b []byte) (FunctionalDescriptor, []string) {
	var warnings []string
	if len(b) < 7 {
		warnings = append(warnings, fmt.Sprintf("dfu functional descriptor too short (%d bytes)", len(b)))
		return synthesizeFunctionalDescriptor(), warnings
	}
	fd := FunctionalDescriptor{
		BLength:      b[0],
		BmAttributes: b[2],
	}
	if len(b) >= 9 {
		fd.WDetachTimeOut = uint16(b[3]) | uint16(b[4])<<8
		fd.WTransferSize = uint16(b[5]) | uint16(b[6])<<8
	}
	if len(b) >= 9 && fd.BLength != 7 {
		fd.BcdDFUVersion = uint16(b[7]) | uint16(b[8])<<8
	}
	switch {
	case fd.BLength == 7:
		fd.BcdDFUVersion = 0x0100
	case fd.BLength < 9:
		warnings = append(warnings, "DFU functional descriptor shorter than 9 bytes; assuming DFU version 1.0 and unknown transfer size")
		fd.BcdDFUVersion = 0x0100
		fd.WTransferSize = 0
	}
	return fd, warnings
}

// MemorySegment is a contiguous region of device address space with
// uniform page size and access permissions, as parsed from a DfuSe
// alt-setting name string. Segments are immutable once constructed.
type MemorySegment struct {
	StartAddress uint32
	EndAddress   uint32 // inclusive
	PageSize     uint32
	Readable     bool
	Erasable     bool
	Writeable    bool
}

// Contains reports whether addr falls within the segment's inclusive
// range.
func (m MemorySegment) Contains(addr uint32) bool {
	return addr >= m.StartAddress && addr <= m.EndAddress
}

// FindSegment returns the segment of layout containing addr, following
// find_segment() from spec.md 4.4.
func FindSegment(layout []MemorySegment, addr uint32) (MemorySegment, bool) {
	for _, seg := range layout {
		if seg.Contains(addr) {
			return seg, true
		}
	}
	return MemorySegment{}, false
}

// Interface is one matched alt-setting surviving discovery and the match
// filter: spec.md's DfuInterface.
type Interface struct {
	Device       libusb.Device
	handle       libusb.DevHandle
	impl         libusb.Intf
	pathStr      string
	serialIndex  uint8

	VendorID, ProductID, BcdDevice uint16
	ConfigurationValue             uint8
	InterfaceNumber                uint8
	AlternateSetting               uint8
	DeviceAddress, BusNumber       uint8
	MaxPacketSize0                 uint8

	AltName, SerialName string

	Flags    Flags
	FuncDFU  FunctionalDescriptor
	Quirks   quirks.Mask

	MemoryLayout []MemorySegment
}

// String renders the interface the way the original tool's
// print_dfu_if() does.
func (i *Interface) String() string {
	mode := "Runtime"
	if i.Flags&IsDfuMode != 0 {
		mode = "DFU"
	}
	return fmt.Sprintf("%s [%04x:%04x] ver=%04x, devnum=%d, cfg=%d, intf=%d, alt=%d, name=%q, serial=%q",
		mode, i.VendorID, i.ProductID, i.BcdDevice, i.DeviceAddress,
		i.ConfigurationValue, i.InterfaceNumber, i.AlternateSetting, i.AltName, i.SerialName)
}

// Open opens a handle to the interface's owning USB device, idempotently.
// It does not claim the interface; see Claim.
func (i *Interface) Open() error {
	if i.handle != nil {
		return nil
	}
	h, err := i.impl.Open(i.Device)
	if err != nil {
		return fmt.Errorf("dfu: open %s: %w", i, err)
	}
	i.handle = h
	return nil
}

// Handle returns the lazily-opened device handle, opening it if needed.
func (i *Interface) Handle() (libusb.DevHandle, error) {
	if err := i.Open(); err != nil {
		return nil, err
	}
	return i.handle, nil
}

// Close closes any open device handle and releases the underlying USB
// device reference. Safe to call multiple times.
func (i *Interface) Close() {
	if i.handle != nil {
		i.impl.Close(i.handle)
		i.handle = nil
	}
	if i.Device != nil {
		i.impl.Dereference(i.Device)
		i.Device = nil
	}
}
