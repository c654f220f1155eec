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

package dfudriver

import "testing"

func TestParseVendorProductSinglePair(t *testing.T) {
	run, dfuPair, err := ParseVendorProduct("1234:5678")
	if err != nil {
		t.Fatalf("ParseVendorProduct: %v", err)
	}
	if dfuPair != nil {
		t.Fatalf("dfuPair = %v, want nil for a single pair", dfuPair)
	}
	if !run.Matches(0x1234, 0x5678) {
		t.Errorf("run pair did not match 1234:5678")
	}
}

func TestParseVendorProductTwoPairs(t *testing.T) {
	run, dfuPair, err := ParseVendorProduct("1234:5678,abcd:ef01")
	if err != nil {
		t.Fatalf("ParseVendorProduct: %v", err)
	}
	if dfuPair == nil {
		t.Fatal("dfuPair = nil, want non-nil for the two-pair form")
	}
	if !run.Matches(0x1234, 0x5678) {
		t.Errorf("run pair did not match 1234:5678")
	}
	if !dfuPair.Matches(0xabcd, 0xef01) {
		t.Errorf("dfu pair did not match abcd:ef01")
	}
}

func TestParseVendorProductRejectsMalformedPair(t *testing.T) {
	if _, _, err := ParseVendorProduct("not-a-pair"); err == nil {
		t.Fatal("ParseVendorProduct: expected an error for a pair with no colon")
	}
}

func TestParseSerialWildcard(t *testing.T) {
	run, dfuToken, err := ParseSerial("*")
	if err != nil {
		t.Fatalf("ParseSerial: %v", err)
	}
	if dfuToken != nil {
		t.Fatalf("dfuToken = %v, want nil", dfuToken)
	}
	if !run.Matches("anything") {
		t.Errorf("wildcard serial token should match any string")
	}
}

func TestParseSerialTwoTokens(t *testing.T) {
	run, dfuToken, err := ParseSerial("200364,300100")
	if err != nil {
		t.Fatalf("ParseSerial: %v", err)
	}
	if dfuToken == nil {
		t.Fatal("dfuToken = nil, want non-nil")
	}
	if !run.Matches("200364500000") {
		t.Errorf("run serial token did not prefix-match")
	}
	if !dfuToken.Matches("300100abcdef") {
		t.Errorf("dfu serial token did not prefix-match")
	}
}

func TestParseAltIndex(t *testing.T) {
	idx, name := ParseAlt("2")
	if idx == nil || *idx != 2 {
		t.Fatalf("idx = %v, want pointer to 2", idx)
	}
	if name != nil {
		t.Fatalf("name = %v, want nil", name)
	}
}

func TestParseAltName(t *testing.T) {
	idx, name := ParseAlt("@Internal Flash")
	if idx != nil {
		t.Fatalf("idx = %v, want nil", idx)
	}
	if name == nil || *name != "@Internal Flash" {
		t.Fatalf("name = %v, want pointer to the literal string", name)
	}
}

func TestParseDfuseAddressTokens(t *testing.T) {
	opts, err := ParseDfuseAddress("0x08000000:force:leave:mass-erase:unprotect:will-reset:1024")
	if err != nil {
		t.Fatalf("ParseDfuseAddress: %v", err)
	}
	if !opts.HaveAddress || opts.Address != 0x08000000 {
		t.Fatalf("Address = %#x, have=%v, want 0x08000000", opts.Address, opts.HaveAddress)
	}
	if !opts.Force || !opts.Leave || !opts.MassErase || !opts.Unprotect || !opts.WillReset {
		t.Fatalf("opts = %+v, want every boolean token set", opts)
	}
	if !opts.HaveUploadLength || opts.UploadLength != 1024 {
		t.Fatalf("UploadLength = %d, have=%v, want 1024", opts.UploadLength, opts.HaveUploadLength)
	}
}

func TestParseDfuseAddressRejectsUnknownToken(t *testing.T) {
	if _, err := ParseDfuseAddress("0x08000000:bogus"); err == nil {
		t.Fatal("ParseDfuseAddress: expected an error for an unrecognized token")
	}
}

func TestParsePathAcceptsBusDashPortDotPort(t *testing.T) {
	got, err := ParsePath("1-2.3")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if got != "1-2.3" {
		t.Errorf("ParsePath = %q, want %q", got, "1-2.3")
	}
}

func TestParsePathRejectsMissingBus(t *testing.T) {
	if _, err := ParsePath("2.3"); err == nil {
		t.Fatal("ParsePath: expected an error when the bus-port separator is missing")
	}
}

func TestParsePathRejectsNonNumericPort(t *testing.T) {
	if _, err := ParsePath("1-x"); err == nil {
		t.Fatal("ParsePath: expected an error for a non-numeric port")
	}
}
