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

package dfuse

import (
	"fmt"
	"io"
	"log"

	"github.com/antfarm/usbdfu/dfu"
)

var debug = log.New(io.Discard, "dfuse: ", log.Lshortfile)

// SetDebugOutput redirects the package's debug logger.
func SetDebugOutput(w io.Writer) { debug.SetOutput(w) }

// Download writes every target in file to the matching alt-setting
// among ifaces, per spec.md 4.5: for each target, select the interface
// whose AlternateSetting matches, SET_INTERFACE to it, and write each
// element in order against that interface's own memory layout (parsed
// from its alt-setting name). Targets with no matching alt-setting are
// skipped with a warning, not an error. The first element address
// written is returned (nil if no element was written).
func Download(ifaces []*dfu.Interface, clock dfu.Clock, file *File, xferSize int, opts WriteElementOptions) (*uint32, error) {
	var dfuseAddress *uint32

	for _, target := range file.Targets {
		iface := findAltSetting(ifaces, target.AlternateSetting)
		if iface == nil {
			debug.Printf("no interface for alt-setting %d (target %q); skipping", target.AlternateSetting, target.Name)
			continue
		}
		if err := iface.SetAltSetting(target.AlternateSetting); err != nil {
			return dfuseAddress, fmt.Errorf("dfuse: select alt-setting %d: %w", target.AlternateSetting, err)
		}
		layout, err := ParseLayout(iface.AltName)
		if err != nil {
			return dfuseAddress, fmt.Errorf("dfuse: alt-setting %d memory layout: %w", target.AlternateSetting, err)
		}
		session := NewSession(iface, clock)
		for _, el := range target.Elements {
			if dfuseAddress == nil {
				addr := el.Address
				dfuseAddress = &addr
			}
			if err := session.WriteElement(layout, el.Address, el.Data, xferSize, opts); err != nil {
				return dfuseAddress, fmt.Errorf("dfuse: write element at %#x: %w", el.Address, err)
			}
		}
	}
	return dfuseAddress, nil
}

func findAltSetting(ifaces []*dfu.Interface, alt uint8) *dfu.Interface {
	for _, iface := range ifaces {
		if iface.AlternateSetting == alt {
			return iface
		}
	}
	return nil
}

// Upload reads length bytes off a DfuSe device. DfuSe addresses its
// UPLOAD transfers the same way baseline DFU does once the address has
// been positioned by a prior SET_ADDRESS; this delegates to the
// baseline upload loop (spec.md 4.3), which already starts transactions
// at 2 per the shared Open Question resolution in spec.md 9.
func Upload(session *Session, addr uint32, xferSize, length int) ([]byte, error) {
	if err := session.SetAddress(addr); err != nil {
		return nil, err
	}
	return dfu.UploadAll(session.Iface, xferSize, length, dfu.NoProgress)
}
