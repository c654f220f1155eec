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

// Package quirks holds the static (vendor, product, bcdDevice) -> quirk
// bitmask table consulted by the descriptor walker and the DfuSe engine.
package quirks

// Mask is a bitset of device-specific behavioral overrides.
type Mask uint16

const (
	// ForceDFU11 overrides a reported bcdDFUVersion to 0x0110.
	ForceDFU11 Mask = 1 << iota
	// UTF8Serial treats the serial-number string descriptor payload as
	// raw UTF-8 instead of UTF-16LE.
	UTF8Serial
	// DfuSeLayout marks a DfuSe bootloader's memory layout for
	// vendor-specific fixups. The bit is only recorded in the mask: no
	// code reads it, and parsed layouts are used unchanged.
	DfuSeLayout
	// DfuSeLeave tolerates no response on the DfuSe leave request.
	DfuSeLeave
)

// entry pins a quirk mask to a vendor/product pair, optionally narrowed to
// a bcdDevice range. A zero Low/High pair (the default value) means "any
// bcdDevice".
type entry struct {
	vendor, product uint16
	low, high        uint16 // inclusive bcdDevice range; both zero means "any"
	mask             Mask
}

// table is the static quirk database. Entries are grounded on the
// vendor-specific workarounds spec.md documents: the STM32F405 mass-erase
// poll-timeout lie and the general need for UTF-8 serial / forced-1.1 /
// DfuSe-layout overrides on specific bootloaders.
var table = []entry{
	// STMicroelectronics DfuSe bootloaders: ST-LINK/DFU and the STM32
	// system bootloader family report bcdDFUVersion 0x011a, carry the
	// DfuSeLayout bit (no layout fixup is applied for it), and tolerate a
	// missing response to the leave request after the final
	// SET_ADDRESS+DNLOAD.
	{vendor: 0x0483, product: 0xdf11, mask: DfuSeLayout | DfuSeLeave},
	// GD32VF103 bootloader stores meaningful data in the serial-number
	// descriptor as raw UTF-8 instead of UTF-16LE.
	{vendor: 0x28e9, product: 0x0189, mask: UTF8Serial},
}

// For returns the quirk mask that applies to a device: the OR of every
// entry for the vendor/product that has no bcdDevice range or whose range
// contains bcdDevice. No entry takes precedence over another.
func For(vendor, product, bcdDevice uint16) Mask {
	var mask Mask
	for _, e := range table {
		if e.vendor != vendor || e.product != product {
			continue
		}
		if e.low == 0 && e.high == 0 {
			mask |= e.mask
			continue
		}
		if bcdDevice >= e.low && bcdDevice <= e.high {
			mask |= e.mask
		}
	}
	return mask
}
