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
	"time"

	"github.com/antfarm/usbdfu/libusb"
)

// TestEntryProcedureWillDetach covers spec.md 8 scenario 2: a device
// advertising AttrWillDetach must not be bus-reset after DFU_DETACH.
func TestEntryProcedureWillDetach(t *testing.T) {
	f := libusb.NewFakeLibusb()
	runtimeDesc, strs := runtimeDfuDevice(0x1234, 0x5678, AttrWillDetach|AttrCanDnload)
	sim := newSimDevice(AttrWillDetach | AttrCanDnload)

	dfuDesc := runtimeDesc
	dfuDesc.Configs = []libusb.ConfigDescriptor{{
		Value: 1,
		Interfaces: []libusb.InterfaceInfo{{
			Number: 0,
			Altsets: []libusb.InterfaceDescriptor{{
				Number:     0,
				Class:      ClassApplicationSpecific,
				SubClass:   SubClassDFU,
				Protocol:   ProtocolDFU,
				IInterface: 1,
				Extra:      dfuFunctionalDescriptorBytes(AttrWillDetach|AttrCanDnload, 1000, 256, 0x0110),
			}},
		}},
	}}

	// On DFU_DETACH, swap the fake bus contents to simulate the
	// re-enumeration: the run-time device disappears, a DFU-mode one with
	// the same VID/PID appears in its place.
	var runtimeDev libusb.Device
	runtimeDev = f.Attach(&libusb.FakeDevice{
		Desc:    runtimeDesc,
		Strings: strs,
		Control: func(rType, request uint8, val, idx uint16, data []byte) ([]byte, error) {
			resp, err := sim.control(rType, request, val, idx, data)
			if request == ReqDetach {
				f.Detach(runtimeDev)
				attachSimDevice(f, dfuDesc, strs, sim)
			}
			return resp, err
		},
	})

	ctx, err := libusb.NewContextWithImpl(f)
	if err != nil {
		t.Fatalf("NewContextWithImpl: %v", err)
	}
	defer ctx.Close()

	ifaces, err := Walk(ctx, NewMatchSpec())
	if err != nil || len(ifaces) != 1 {
		t.Fatalf("Walk: got %d interfaces, err %v", len(ifaces), err)
	}
	runtimeIface := ifaces[0]

	clock := &fakeClock{}
	result, err := EnterDfuMode(ctx, runtimeIface, NewMatchSpec(), clock, 0)
	if err != nil {
		t.Fatalf("EnterDfuMode: %v", err)
	}
	defer result.Close()

	if len(sim.detach) != 1 {
		t.Fatalf("detach calls = %d, want 1", len(sim.detach))
	}
	wantTimeout := uint16(DetachTimeout / time.Millisecond)
	if sim.detach[0] != wantTimeout {
		t.Errorf("detach timeout wValue = %d, want %d", sim.detach[0], wantTimeout)
	}
	if f.WasReset(runtimeDev) {
		t.Error("expected no bus reset when AttrWillDetach is set")
	}
	if result.Flags&IsDfuMode == 0 {
		t.Error("expected the re-probed interface to be in DFU mode")
	}
}

// TestDownloadAllChunking covers spec.md 8 scenario 3: 1024 bytes to a
// device advertising wTransferSize=256 produces four non-empty DNLOAD
// transactions followed by one empty terminator.
func TestDownloadAllChunking(t *testing.T) {
	f := libusb.NewFakeLibusb()
	desc, strs := runtimeDfuDevice(0x1234, 0x5678, AttrManifestTolerant)
	desc.Configs[0].Interfaces[0].Altsets[0].Protocol = ProtocolDFU
	desc.Configs[0].Interfaces[0].Altsets[0].Extra = dfuFunctionalDescriptorBytes(AttrManifestTolerant, 1000, 256, 0x0100)
	sim := newSimDevice(AttrManifestTolerant)
	attachSimDevice(f, desc, strs, sim)

	ctx, err := libusb.NewContextWithImpl(f)
	if err != nil {
		t.Fatalf("NewContextWithImpl: %v", err)
	}
	defer ctx.Close()

	ifaces, err := Walk(ctx, NewMatchSpec())
	if err != nil || len(ifaces) != 1 {
		t.Fatalf("Walk: got %d interfaces, err %v", len(ifaces), err)
	}
	iface := ifaces[0]
	defer iface.Close()

	if err := iface.Claim(); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	clock := &fakeClock{}
	if err := DownloadAll(iface, payload, 256, clock, nil); err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}

	if len(sim.dnloads) != 4 {
		t.Fatalf("non-empty DNLOAD count = %d, want 4", len(sim.dnloads))
	}
	for i, tx := range sim.dnloadTxs[:4] {
		if tx != uint16(i) {
			t.Errorf("dnload[%d] transaction = %d, want %d", i, tx, i)
		}
	}
	if sim.dnloadTxs[4] != 4 {
		t.Errorf("terminating dnload transaction = %d, want 4", sim.dnloadTxs[4])
	}
}

func TestTransferSizeFloorsAtMaxPacketSize0(t *testing.T) {
	iface := &Interface{MaxPacketSize0: 64, FuncDFU: FunctionalDescriptor{WTransferSize: 16}}
	got := TransferSize(iface, 0)
	if got < 64 {
		t.Errorf("TransferSize = %d, want >= bMaxPacketSize0 (64)", got)
	}
}

func TestTransferSizeUserOverride(t *testing.T) {
	iface := &Interface{MaxPacketSize0: 8, FuncDFU: FunctionalDescriptor{WTransferSize: 256}}
	got := TransferSize(iface, 128)
	if got != 128 {
		t.Errorf("TransferSize = %d, want 128", got)
	}
}
