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

import "testing"

func TestTokenMatches(t *testing.T) {
	tests := []struct {
		name string
		tok  Token
		v    uint16
		want bool
	}{
		{"wildcard matches anything", AnyToken, 0x1234, true},
		{"impossible matches nothing", ImpossibleToken, 0x1234, false},
		{"literal match", Token{Value: 0x1234}, 0x1234, true},
		{"literal mismatch", Token{Value: 0x1234}, 0x5678, false},
	}
	for _, tc := range tests {
		if got := tc.tok.Matches(tc.v); got != tc.want {
			t.Errorf("%s: Matches(%#x) = %v, want %v", tc.name, tc.v, got, tc.want)
		}
	}
}

func TestSerialTokenPrefix(t *testing.T) {
	tok := SerialToken{Prefix: "200364500000"}
	if !tok.Matches("200364500000ABCDEF") {
		t.Error("expected serial with matching prefix to match")
	}
	if tok.Matches("100000000000") {
		t.Error("expected serial with non-matching prefix to not match")
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		in      string
		want    Token
		wantErr bool
	}{
		{"*", AnyToken, false},
		{"-", ImpossibleToken, false},
		{"1234", Token{Value: 0x1234}, false},
		{"0x1234", Token{Value: 0x1234}, false},
		{"zzzz", Token{}, true},
	}
	for _, tc := range tests {
		got, err := ParseToken(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseToken(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseToken(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestMatchSpecRequireDfuMode(t *testing.T) {
	runtimeIface := &Interface{VendorID: 1, ProductID: 2}
	dfuIface := &Interface{VendorID: 1, ProductID: 2, Flags: IsDfuMode}

	spec := NewMatchSpec()
	spec.RequireDfuMode = true

	if spec.Matches(runtimeIface, "") {
		t.Error("expected runtime-mode interface to be rejected when RequireDfuMode is set")
	}
	if !spec.Matches(dfuIface, "") {
		t.Error("expected DFU-mode interface to be accepted when RequireDfuMode is set")
	}
}

func TestMatchSpecSerialRejectsSerialLessDeviceWhenExplicitlyRequested(t *testing.T) {
	spec := NewMatchSpec()
	spec.Serial = SerialToken{Prefix: "200364500000"}

	serialLess := &Interface{VendorID: 1, ProductID: 2}
	if spec.Matches(serialLess, "") {
		t.Error("expected a device with no serial number to be rejected once -S names a prefix")
	}

	matching := &Interface{VendorID: 1, ProductID: 2, SerialName: "200364500000ABCDEF"}
	if !spec.Matches(matching, "") {
		t.Error("expected a device whose serial has the requested prefix to match")
	}
}

func TestMatchSpecVendorProductDfuOverride(t *testing.T) {
	spec := NewMatchSpec()
	spec.VendorProduct = VendorProduct{Vendor: Token{Value: 0x1111}, Product: AnyToken}
	spec.VendorProductDfu = &VendorProduct{Vendor: Token{Value: 0x2222}, Product: AnyToken}

	runtimeIface := &Interface{VendorID: 0x1111, ProductID: 5}
	if !spec.Matches(runtimeIface, "") {
		t.Error("expected runtime-mode interface to match the run-time vendor pair")
	}

	dfuIface := &Interface{VendorID: 0x2222, ProductID: 5, Flags: IsDfuMode}
	if !spec.Matches(dfuIface, "") {
		t.Error("expected DFU-mode interface to match the dfu-mode vendor pair")
	}

	dfuIfaceWrongVendor := &Interface{VendorID: 0x1111, ProductID: 5, Flags: IsDfuMode}
	if spec.Matches(dfuIfaceWrongVendor, "") {
		t.Error("expected DFU-mode interface with run-time vendor to be rejected once an override is set")
	}
}
