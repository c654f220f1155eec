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

package libusb

import "testing"

func TestListDevices(t *testing.T) {
	fake := NewFakeLibusb()
	fake.Attach(&FakeDevice{Desc: DeviceDescriptor{Vendor: 0x1234, Product: 0x5678}})
	fake.Attach(&FakeDevice{Desc: DeviceDescriptor{Vendor: 0x9999, Product: 0x0001}})

	ctx, err := NewContextWithImpl(fake)
	if err != nil {
		t.Fatalf("NewContextWithImpl: %v", err)
	}
	defer ctx.Close()

	devs, descs, err := ctx.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devs) != 2 || len(descs) != 2 {
		t.Fatalf("ListDevices: got %d devices, %d descriptors, want 2 and 2", len(devs), len(descs))
	}
}

func TestOpenAndClaim(t *testing.T) {
	fake := NewFakeLibusb()
	d := fake.Attach(&FakeDevice{Desc: DeviceDescriptor{Vendor: 0x1234, Product: 0x5678}})

	h, err := fake.Open(d)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fake.Close(h)

	if err := fake.SetInterfaceAltSetting(h, 0, 0); err == nil {
		t.Fatalf("SetInterfaceAltSetting before Claim: want error, got nil")
	}
	if err := fake.Claim(h, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := fake.SetInterfaceAltSetting(h, 0, 1); err != nil {
		t.Fatalf("SetInterfaceAltSetting: %v", err)
	}
}
