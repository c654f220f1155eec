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

import "strings"

// Token is one side of a "V:P" vendor/product pair, or one comma-separated
// serial alternative. The wildcard "*" and the impossible-match "-" both
// parse into a Token rather than a plain uint16 so they stay
// distinguishable from a literal value. The zero Token matches only
// 0x0000; an absent criterion is AnyToken (see NewMatchSpec).
type Token struct {
	Any        bool
	Impossible bool
	Value      uint16
}

// AnyToken matches every value.
var AnyToken = Token{Any: true}

// ImpossibleToken matches no value.
var ImpossibleToken = Token{Impossible: true}

// Matches reports whether v satisfies the token.
func (t Token) Matches(v uint16) bool {
	if t.Impossible {
		return false
	}
	if t.Any {
		return true
	}
	return t.Value == v
}

// VendorProduct is one "V:P" pair from the -d/--device flag grammar.
type VendorProduct struct {
	Vendor  Token
	Product Token
}

// Matches reports whether the pair of 16-bit IDs satisfies both tokens.
func (vp VendorProduct) Matches(vendor, product uint16) bool {
	return vp.Vendor.Matches(vendor) && vp.Product.Matches(product)
}

// SerialToken is one comma-separated alternative of the -S/--serial flag
// grammar: a prefix string to match against the start of the device's
// serial-number string, or an absent/wildcard "match anything".
type SerialToken struct {
	Any    bool
	Prefix string
}

// Matches reports whether s starts with the token's prefix.
func (t SerialToken) Matches(s string) bool {
	if t.Any {
		return true
	}
	return strings.HasPrefix(s, t.Prefix)
}

// MatchSpec is the match-criteria bundle the descriptor walker filters
// against: spec.md 4.1's "{path?, vendor?, product?, configIndex?,
// interfaceIndex?, altIndex?, altName?, devnum?, serial?, vendorDfu?,
// productDfu?, serialDfu?}". VendorProduct and Serial apply to both
// run-time and DFU-mode candidates unless VendorProductDfu or SerialDfu is
// set, in which case that field overrides for DFU-mode candidates only
// (the "Vrun:Prun,Vdfu:Pdfu" two-pair form).
type MatchSpec struct {
	Path            *string
	ConfigIndex     *int
	InterfaceIndex  *int
	AltIndex        *int
	AltName         *string
	DevNum          *int
	VendorProduct   VendorProduct
	VendorProductDfu *VendorProduct
	Serial          SerialToken
	SerialDfu       *SerialToken

	// RequireDfuMode restricts matches to interfaces already detected as
	// running in DFU mode. Set by the protocol engine's re-probe after a
	// detach, rather than by the CLI.
	RequireDfuMode bool
}

// NewMatchSpec returns a MatchSpec with "match anything" defaults.
func NewMatchSpec() MatchSpec {
	return MatchSpec{
		VendorProduct: VendorProduct{Vendor: AnyToken, Product: AnyToken},
		Serial:        SerialToken{Any: true},
	}
}

// effectiveConfigIndex applies the "configIndex present and zero means
// absent" tie-break from spec.md 4.1.
func (m MatchSpec) effectiveConfigIndex() (int, bool) {
	if m.ConfigIndex == nil || *m.ConfigIndex == 0 {
		return 0, false
	}
	return *m.ConfigIndex, true
}

func (m MatchSpec) vendorProductFor(isDfuMode bool) VendorProduct {
	if isDfuMode && m.VendorProductDfu != nil {
		return *m.VendorProductDfu
	}
	return m.VendorProduct
}

func (m MatchSpec) serialFor(isDfuMode bool) SerialToken {
	if isDfuMode && m.SerialDfu != nil {
		return *m.SerialDfu
	}
	return m.Serial
}

// Matches applies every criterion in m to iface, following the filter
// tie-breaking rules of spec.md 4.1.
func (m MatchSpec) Matches(iface *Interface, path string) bool {
	isDfuMode := iface.Flags&IsDfuMode != 0

	if m.RequireDfuMode && !isDfuMode {
		return false
	}
	if !m.vendorProductFor(isDfuMode).Matches(iface.VendorID, iface.ProductID) {
		return false
	}
	if !m.serialFor(isDfuMode).Matches(iface.SerialName) {
		return false
	}
	if idx, ok := m.effectiveConfigIndex(); ok && int(iface.ConfigurationValue) != idx {
		return false
	}
	if m.InterfaceIndex != nil && int(iface.InterfaceNumber) != *m.InterfaceIndex {
		return false
	}
	if m.AltIndex != nil && int(iface.AlternateSetting) != *m.AltIndex {
		return false
	}
	if m.AltName != nil && iface.AltName != *m.AltName {
		return false
	}
	if m.DevNum != nil && int(iface.DeviceAddress) != *m.DevNum {
		return false
	}
	if m.Path != nil && path != *m.Path {
		return false
	}
	return true
}

// ParseToken parses a single "*"/"-"/literal vendor or product token.
func ParseToken(s string) (Token, error) {
	switch s {
	case "*", "":
		return AnyToken, nil
	case "-":
		return ImpossibleToken, nil
	}
	v, err := parseHex16(s)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: v}, nil
}
