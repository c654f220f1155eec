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
	"testing"

	"github.com/antfarm/usbdfu/libusb"
)

// dfuFunctionalDescriptorBytes builds the 9-byte wire form of a DFU
// functional descriptor for test fixtures.
func dfuFunctionalDescriptorBytes(attrs uint8, detachTimeout, transferSize, bcdDFU uint16) []byte {
	return []byte{
		9, DescriptorTypeDFU, attrs,
		byte(detachTimeout), byte(detachTimeout >> 8),
		byte(transferSize), byte(transferSize >> 8),
		byte(bcdDFU), byte(bcdDFU >> 8),
	}
}

func runtimeDfuDevice(vendor, product uint16, attrs uint8) (libusb.DeviceDescriptor, map[uint8]string) {
	desc := libusb.DeviceDescriptor{
		Bus:            1,
		Address:        5,
		Vendor:         vendor,
		Product:        product,
		MaxPacketSize0: 8,
		NumConfigs:     1,
		ISerialNumber:  0,
		Configs: []libusb.ConfigDescriptor{{
			Value: 1,
			Interfaces: []libusb.InterfaceInfo{{
				Number: 0,
				Altsets: []libusb.InterfaceDescriptor{{
					Number:     0,
					Alternate:  0,
					Class:      ClassApplicationSpecific,
					SubClass:   SubClassDFU,
					Protocol:   ProtocolRuntime,
					IInterface: 1,
					Extra:      dfuFunctionalDescriptorBytes(attrs, 1000, 256, 0x0110),
				}},
			}},
		}},
	}
	return desc, map[uint8]string{1: "firmware"}
}

func TestWalkBaselineEnumerate(t *testing.T) {
	f := libusb.NewFakeLibusb()
	desc, strs := runtimeDfuDevice(0x1234, 0x5678, AttrCanDnload|AttrCanUpload)
	sim := newSimDevice(AttrCanDnload | AttrCanUpload)
	attachSimDevice(f, desc, strs, sim)

	ctx, err := libusb.NewContextWithImpl(f)
	if err != nil {
		t.Fatalf("NewContextWithImpl: %v", err)
	}
	defer ctx.Close()

	ifaces, err := Walk(ctx, NewMatchSpec())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(ifaces) != 1 {
		t.Fatalf("Walk: got %d interfaces, want 1", len(ifaces))
	}
	iface := ifaces[0]
	if iface.VendorID != 0x1234 || iface.ProductID != 0x5678 {
		t.Errorf("vendor/product = %04x:%04x, want 1234:5678", iface.VendorID, iface.ProductID)
	}
	if iface.AltName != "firmware" {
		t.Errorf("AltName = %q, want %q", iface.AltName, "firmware")
	}
	if iface.Flags&IsDfuMode != 0 {
		t.Errorf("expected runtime mode, got IsDfuMode set")
	}
	if iface.FuncDFU.BLength < 7 {
		t.Errorf("FuncDFU.BLength = %d, want >= 7", iface.FuncDFU.BLength)
	}
}

func TestWalkFiltersVendorProduct(t *testing.T) {
	f := libusb.NewFakeLibusb()
	desc, strs := runtimeDfuDevice(0x1234, 0x5678, AttrCanDnload)
	sim := newSimDevice(AttrCanDnload)
	attachSimDevice(f, desc, strs, sim)

	ctx, err := libusb.NewContextWithImpl(f)
	if err != nil {
		t.Fatalf("NewContextWithImpl: %v", err)
	}
	defer ctx.Close()

	spec := NewMatchSpec()
	spec.VendorProduct = VendorProduct{Vendor: Token{Value: 0xdead}, Product: AnyToken}
	ifaces, err := Walk(ctx, spec)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(ifaces) != 0 {
		t.Fatalf("Walk: got %d interfaces, want 0", len(ifaces))
	}
}

func TestFindInExtra(t *testing.T) {
	other := []byte{4, 0x22, 0xaa, 0xbb}
	dfuDesc := dfuFunctionalDescriptorBytes(AttrCanDnload, 1000, 256, 0x0110)
	extra := append(append([]byte{}, other...), dfuDesc...)
	raw, ok := findInExtra(extra)
	if !ok {
		t.Fatal("findInExtra: not found")
	}
	if raw[1] != DescriptorTypeDFU {
		t.Errorf("findInExtra: found wrong descriptor type %#x", raw[1])
	}
}
