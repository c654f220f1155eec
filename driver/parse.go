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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antfarm/usbdfu/dfu"
)

// ParseVendorProduct parses the -d/--device grammar: a single "V:P" pair,
// or the two-pair "Vrun:Prun,Vdfu:Pdfu" form recovered from the original
// source's parse_vendprod, where the second pair overrides matching once
// a candidate is already in DFU mode.
func ParseVendorProduct(s string) (dfu.VendorProduct, *dfu.VendorProduct, error) {
	runPart, dfuPart, hasDfu := strings.Cut(s, ",")
	run, err := parseOnePair(runPart)
	if err != nil {
		return dfu.VendorProduct{}, nil, fmt.Errorf("-d/--device %q: %w", s, err)
	}
	if !hasDfu {
		return run, nil, nil
	}
	dfuPair, err := parseOnePair(dfuPart)
	if err != nil {
		return dfu.VendorProduct{}, nil, fmt.Errorf("-d/--device %q: %w", s, err)
	}
	return run, &dfuPair, nil
}

func parseOnePair(s string) (dfu.VendorProduct, error) {
	vendorStr, productStr, ok := strings.Cut(s, ":")
	if !ok {
		return dfu.VendorProduct{}, fmt.Errorf("expected \"vendor:product\", got %q", s)
	}
	vendor, err := dfu.ParseToken(vendorStr)
	if err != nil {
		return dfu.VendorProduct{}, fmt.Errorf("vendor %q: %w", vendorStr, err)
	}
	product, err := dfu.ParseToken(productStr)
	if err != nil {
		return dfu.VendorProduct{}, fmt.Errorf("product %q: %w", productStr, err)
	}
	return dfu.VendorProduct{Vendor: vendor, Product: product}, nil
}

// ParseSerial parses the -S/--serial grammar: a run-time serial prefix,
// optionally followed by ",serialDfu" for the DFU-mode override.
func ParseSerial(s string) (dfu.SerialToken, *dfu.SerialToken, error) {
	runPart, dfuPart, hasDfu := strings.Cut(s, ",")
	run := parseOneSerial(runPart)
	if !hasDfu {
		return run, nil, nil
	}
	dfuToken := parseOneSerial(dfuPart)
	return run, &dfuToken, nil
}

func parseOneSerial(s string) dfu.SerialToken {
	if s == "" || s == "*" {
		return dfu.SerialToken{Any: true}
	}
	return dfu.SerialToken{Prefix: s}
}

// ParseAlt parses the -a/--alt grammar: either an integer alt-setting
// index, or (per original_source/main.c's match_iface_alt_name) an
// alt-setting name string. Returns exactly one of the two non-nil.
func ParseAlt(s string) (idx *int, name *string) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, &s
	}
	return &n, nil
}

// ParseDfuseAddress parses the -s/--dfuse-address grammar:
// "addr[:tok…]", where each colon-separated token after the address is
// one of "force", "leave", "mass-erase", "unprotect", "will-reset", or a
// bare integer giving an upload byte-limit.
func ParseDfuseAddress(s string) (*DfuSeOptions, error) {
	parts := strings.Split(s, ":")
	opts := &DfuSeOptions{}
	if parts[0] != "" {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(parts[0], "0x"), "0X"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("-s/--dfuse-address %q: bad address %q: %w", s, parts[0], err)
		}
		opts.Address = uint32(addr)
		opts.HaveAddress = true
	}
	for _, tok := range parts[1:] {
		switch tok {
		case "force":
			opts.Force = true
		case "leave":
			opts.Leave = true
		case "mass-erase":
			opts.MassErase = true
		case "unprotect":
			opts.Unprotect = true
		case "will-reset":
			opts.WillReset = true
		default:
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("-s/--dfuse-address %q: unrecognized token %q", s, tok)
			}
			opts.UploadLength = n
			opts.HaveUploadLength = true
		}
	}
	return opts, nil
}

// ParsePath validates the -p/--path grammar ("bus-port.port…", matching
// the walker's formatPath) and returns it unchanged: the string itself,
// not a decomposed form, is what MatchSpec.Path compares against.
func ParsePath(s string) (string, error) {
	bus, rest, ok := strings.Cut(s, "-")
	if !ok {
		return "", fmt.Errorf("-p/--path %q: expected \"bus-port.port…\"", s)
	}
	if _, err := strconv.Atoi(bus); err != nil {
		return "", fmt.Errorf("-p/--path %q: bad bus number %q: %w", s, bus, err)
	}
	if rest == "" {
		return "", fmt.Errorf("-p/--path %q: missing port list", s)
	}
	for _, port := range strings.Split(rest, ".") {
		if _, err := strconv.Atoi(port); err != nil {
			return "", fmt.Errorf("-p/--path %q: bad port number %q: %w", s, port, err)
		}
	}
	return s, nil
}
