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

// Package dfuse implements the ST Microelectronics DfuSe (1.1a)
// extension to the USB DFU class: special commands, memory-layout
// parsing, per-element erase-then-write, and the DfuSe file container
// format.
package dfuse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antfarm/usbdfu/dfu"
)

// ParseLayout parses an alt-setting name string of the form
// "@label/address/count*sizeUNITtype,..." into an ordered list of
// MemorySegment, per spec.md 4.4's grammar. Names that don't start with
// "@" are not a DfuSe layout and return a nil, non-error result.
func ParseLayout(name string) ([]dfu.MemorySegment, error) {
	if !strings.HasPrefix(name, "@") {
		return nil, nil
	}
	rest := name[1:]
	firstSlash := strings.Index(rest, "/")
	if firstSlash < 0 {
		return nil, fmt.Errorf("dfuse: malformed memory layout %q: missing address", name)
	}
	body := rest[firstSlash+1:]
	addrStr, sectorsStr, ok := strings.Cut(body, "/")
	if !ok {
		return nil, fmt.Errorf("dfuse: malformed memory layout %q: missing sector list", name)
	}
	addr, err := strconv.ParseUint(strings.TrimSpace(addrStr), 0, 32)
	if err != nil {
		return nil, fmt.Errorf("dfuse: malformed memory layout %q: bad address: %w", name, err)
	}

	var segments []dfu.MemorySegment
	running := uint32(addr)
	for _, sector := range strings.Split(sectorsStr, ",") {
		sector = strings.TrimSpace(sector)
		if sector == "" {
			continue
		}
		segs, next, err := parseSectorBlock(sector, running)
		if err != nil {
			return nil, fmt.Errorf("dfuse: malformed memory layout %q: %w", name, err)
		}
		segments = append(segments, segs...)
		running = next
	}
	return segments, nil
}

// parseSectorBlock parses one "count*sizeUNITtype" block starting at
// addr, returning its expanded segments and the address immediately
// after the block.
func parseSectorBlock(sector string, addr uint32) ([]dfu.MemorySegment, uint32, error) {
	star := strings.Index(sector, "*")
	if star < 0 {
		return nil, 0, fmt.Errorf("malformed sector block %q: missing '*'", sector)
	}
	count, err := strconv.Atoi(sector[:star])
	if err != nil {
		return nil, 0, fmt.Errorf("malformed sector block %q: bad count: %w", sector, err)
	}
	rest := sector[star+1:]
	if len(rest) < 2 {
		return nil, 0, fmt.Errorf("malformed sector block %q: missing size/unit/type", sector)
	}
	typeLetter := rest[len(rest)-1]
	unitAndSize := rest[:len(rest)-1]
	unit := unitAndSize[len(unitAndSize)-1]
	sizeStr := unitAndSize[:len(unitAndSize)-1]
	var unitMultiplier uint32 = 1
	switch unit {
	case 'K':
		unitMultiplier = 1024
	case 'M':
		unitMultiplier = 1024 * 1024
	case ' ':
		unitMultiplier = 1
	default:
		// No unit letter at all: the whole unitAndSize string is the size
		// in bytes.
		sizeStr = unitAndSize
		unitMultiplier = 1
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
	if err != nil {
		return nil, 0, fmt.Errorf("malformed sector block %q: bad size: %w", sector, err)
	}

	perms, err := permsForType(typeLetter)
	if err != nil {
		return nil, 0, fmt.Errorf("malformed sector block %q: %w", sector, err)
	}

	pageSize := uint32(size) * unitMultiplier
	segs := make([]dfu.MemorySegment, 0, count)
	cur := addr
	for i := 0; i < count; i++ {
		segs = append(segs, dfu.MemorySegment{
			StartAddress: cur,
			EndAddress:   cur + pageSize - 1,
			PageSize:     pageSize,
			Readable:     perms&1 != 0,
			Erasable:     perms&2 != 0,
			Writeable:    perms&4 != 0,
		})
		cur += pageSize
	}
	return segs, cur, nil
}

// permsForType decodes spec.md 4.4's type letter into the
// readable/erasable/writeable bit pattern: bit0=readable, bit1=erasable,
// bit2=writeable, encoded as (letter - 'a').
func permsForType(c byte) (int, error) {
	if c < 'a' || c > 'g' {
		return 0, fmt.Errorf("unknown sector type %q", c)
	}
	return int(c - 'a'), nil
}
