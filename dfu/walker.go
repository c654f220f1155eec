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
	"io"
	"log"
	"strings"

	"github.com/antfarm/usbdfu/libusb"
	"github.com/antfarm/usbdfu/quirks"
)

// debug is silent unless a caller raises its output, following the
// teacher's usb/debug.go convention.
var debug = log.New(io.Discard, "dfu: ", log.Lshortfile)

// SetDebugOutput redirects the package's debug logger, e.g. to os.Stderr
// when -v is given on the command line.
func SetDebugOutput(w io.Writer) { debug.SetOutput(w) }

// QuirksFor resolves the quirks bitmask for a device; tests substitute a
// fake table via this indirection.
var QuirksFor = quirks.For

// Walk enumerates every USB device visible through ctx, locates every
// alt-setting belonging to the DFU interface subclass, and returns the
// ones passing spec. The returned interfaces are in discovery order;
// devices not contributing any matching alt-setting are dereferenced
// before Walk returns.
func Walk(ctx *libusb.Context, spec MatchSpec) ([]*Interface, error) {
	devs, descs, err := ctx.ListDevices()
	if err != nil {
		return nil, err
	}
	var out []*Interface
	for i, dev := range descs {
		ifaces, err := walkDevice(ctx, devs[i], dev)
		if err != nil {
			debug.Printf("skipping device %04x:%04x: %v", dev.Vendor, dev.Product, err)
		}
		if len(ifaces) == 0 {
			ctx.Dereference(devs[i])
			continue
		}
		for _, iface := range ifaces {
			if spec.Matches(iface, iface.path()) {
				out = append(out, iface)
			} else {
				iface.Close()
			}
		}
	}
	return out, nil
}

// path renders the "bus-port.port.port" string spec.md 4.1 filters on.
func (i *Interface) path() string {
	// Reconstructed at walk time from the device descriptor's port chain;
	// stored here so MatchSpec.Matches and callers can both use it.
	return i.pathStr
}

func walkDevice(ctx *libusb.Context, dev libusb.Device, desc *libusb.DeviceDescriptor) ([]*Interface, error) {
	impl := ctx.Impl()
	pathStr := formatPath(desc.Bus, desc.PortNumbers)

	var out []*Interface
	first := true
	for _, cfg := range desc.Configs {
		for _, ii := range cfg.Interfaces {
			multi := len(ii.Altsets) > 1
			for _, alt := range ii.Altsets {
				if alt.Class != ClassApplicationSpecific || alt.SubClass != SubClassDFU {
					continue
				}
				// Walk's caller already holds one reference to dev (from
				// ListDevices); every DfuInterface built here owns its own,
				// per spec.md 3's ownership invariant, so only the first
				// one re-uses that reference.
				ifaceDev := dev
				if !first {
					ifaceDev = impl.Reference(dev)
				}
				first = false
				iface := &Interface{
					Device:              ifaceDev,
					impl:                impl,
					pathStr:             pathStr,
					VendorID:            desc.Vendor,
					ProductID:           desc.Product,
					BcdDevice:           desc.Device,
					ConfigurationValue:  cfg.Value,
					InterfaceNumber:     alt.Number,
					AlternateSetting:    alt.Alternate,
					DeviceAddress:       desc.Address,
					BusNumber:           desc.Bus,
					MaxPacketSize0:      desc.MaxPacketSize0,
				}
				if multi {
					iface.Flags |= HasMultipleAlts
				}
				iface.Quirks = QuirksFor(desc.Vendor, desc.Product, desc.Device)
				iface.serialIndex = desc.ISerialNumber

				fd, warnings := locateFunctionalDescriptor(impl, dev, cfg, alt)
				for _, w := range warnings {
					debug.Print(w)
				}
				iface.FuncDFU = fd
				if iface.Quirks&quirks.ForceDFU11 != 0 {
					iface.FuncDFU.BcdDFUVersion = 0x0110
				}

				if isDfuMode(desc.Vendor, desc.Product, alt.Protocol, fd.BcdDFUVersion, len(cfg.Interfaces) == 1) {
					iface.Flags |= IsDfuMode
				}

				if err := fetchStrings(impl, dev, alt.IInterface, iface); err != nil {
					debug.Printf("string descriptor fetch failed for %04x:%04x: %v", desc.Vendor, desc.Product, err)
				}

				out = append(out, iface)
			}
		}
	}
	return out, nil
}

// isDfuMode implements spec.md 4.1's mode-detection rule and its three
// compatibility overrides.
func isDfuMode(vendor, product uint16, protocol uint8, bcdDFUVersion uint16, singleInterfaceConfig bool) bool {
	if protocol == ProtocolDFU {
		return true
	}
	if bcdDFUVersion == BcdDFUSe && protocol == 0 {
		return true
	}
	if vendor == 0x1fc9 && product == 0x000c && protocol == 1 {
		return true
	}
	if vendor == 0x0b0e && protocol == 0 && singleInterfaceConfig {
		return true
	}
	return false
}

// locateFunctionalDescriptor implements spec.md 4.1's three-step search
// order, falling back to a synthesized descriptor when nothing is found.
func locateFunctionalDescriptor(impl libusb.Intf, dev libusb.Device, cfg libusb.ConfigDescriptor, alt libusb.InterfaceDescriptor) (FunctionalDescriptor, []string) {
	if raw, ok := findInExtra(cfg.Extra); ok {
		return decodeFunctionalDescriptor(raw)
	}
	if raw, ok := findInExtra(alt.Extra); ok {
		return decodeFunctionalDescriptor(raw)
	}
	if raw, ok := fetchViaGetDescriptor(impl, dev); ok {
		return decodeFunctionalDescriptor(raw)
	}
	return synthesizeFunctionalDescriptor(), []string{"no DFU functional descriptor found; synthesizing bLength=7"}
}

// findInExtra scans a config or interface descriptor's trailing raw bytes
// (a concatenation of TLV-style sub-descriptors) for the first one tagged
// DescriptorTypeDFU.
func findInExtra(extra []byte) ([]byte, bool) {
	for i := 0; i+2 <= len(extra); {
		length := int(extra[i])
		if length < 2 || i+length > len(extra) {
			break
		}
		if extra[i+1] == DescriptorTypeDFU {
			return extra[i : i+length], true
		}
		i += length
	}
	return nil, false
}

// fetchViaGetDescriptor issues an explicit GET_DESCRIPTOR(type=DFU,
// index=0) on a transiently opened handle, the last-resort step of
// spec.md 4.1's search order.
func fetchViaGetDescriptor(impl libusb.Intf, dev libusb.Device) ([]byte, bool) {
	h, err := impl.Open(dev)
	if err != nil {
		return nil, false
	}
	defer impl.Close(h)
	buf := make([]byte, 64)
	n, err := impl.GetDescriptor(h, ControlTimeout, DescriptorTypeDFU, 0, 0, buf)
	if err != nil || n < 7 {
		return nil, false
	}
	return buf[:n], true
}

// fetchStrings resolves the alt-setting name and serial-number string
// descriptors, applying the truncation tolerance and UTF8Serial quirk
// from spec.md 4.1.
func fetchStrings(impl libusb.Intf, dev libusb.Device, iInterface uint8, iface *Interface) error {
	if iInterface == 0 {
		iface.AltName = "UNKNOWN"
		return nil
	}
	h, err := impl.Open(dev)
	if err != nil {
		iface.AltName = "UNKNOWN"
		return err
	}
	defer impl.Close(h)

	name, err := fetchStringDescriptor(impl, h, iInterface, false)
	if err != nil {
		iface.AltName = "UNKNOWN"
	} else {
		iface.AltName = name
	}

	if iface.iSerialNumber() != 0 {
		serial, err := fetchStringDescriptor(impl, h, iface.iSerialNumber(), iface.Quirks&quirks.UTF8Serial != 0)
		if err == nil {
			iface.SerialName = serial
		}
	}
	return nil
}

// iSerialNumber returns the device descriptor's iSerialNumber index,
// recorded in serialIndex when the walker built the Interface.
func (i *Interface) iSerialNumber() uint8 { return i.serialIndex }

const languageIDEnglish = 0x0409

// fetchStringDescriptor fetches and decodes a USB string descriptor,
// tolerating the short-bLength misreport some bootloaders exhibit.
func fetchStringDescriptor(impl libusb.Intf, h libusb.DevHandle, index uint8, rawUTF8 bool) (string, error) {
	buf := make([]byte, 255)
	n, err := impl.GetStringDescriptorRaw(h, index, languageIDEnglish, buf)
	if err != nil {
		return "", fmt.Errorf("dfu: get string descriptor %d: %w", index, err)
	}
	if n < 2 {
		return "", fmt.Errorf("dfu: string descriptor %d too short", index)
	}
	raw := buf[2:n]
	if rawUTF8 {
		return string(raw), nil
	}
	return decodeUTF16LEToASCII(raw), nil
}

// decodeUTF16LEToASCII maps a UTF-16LE string-descriptor payload to
// printable ASCII, replacing anything outside that range with '?'.
func decodeUTF16LEToASCII(b []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		cp := uint16(b[i]) | uint16(b[i+1])<<8
		if cp >= 0x20 && cp < 0x7f {
			sb.WriteByte(byte(cp))
		} else {
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

// formatPath renders the "bus-port.port.port" string from a port-number
// chain, spec.md 4.1's USB path filter format.
func formatPath(bus uint8, ports []uint8) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", bus)
	for i, p := range ports {
		sep := "."
		if i == 0 {
			sep = "-"
		}
		fmt.Fprintf(&sb, "%s%d", sep, p)
	}
	return sb.String()
}
