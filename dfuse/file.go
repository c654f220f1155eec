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
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	filePrefixLen      = 11
	fileTargetHeaderLen = 274
	fileElementHeaderLen = 8
)

// Element is one contiguous payload within a Target, addressed
// absolutely.
type Element struct {
	Address uint32
	Data    []byte
}

// Target is one alternate-setting-scoped group of elements within a
// DfuSe container.
type Target struct {
	AlternateSetting uint8
	Name             string
	Elements         []Element
}

// File is a parsed DfuSe container: spec.md 4.5's prefix/target/element
// layout, with the trailing DFU suffix already stripped by the caller.
type File struct {
	Targets []Target
}

// ParseFile parses a DfuSe container. b must already have the trailing
// DFU suffix removed.
func ParseFile(b []byte) (*File, error) {
	if len(b) < filePrefixLen {
		return nil, fmt.Errorf("dfuse: file too short for prefix (%d bytes)", len(b))
	}
	if string(b[0:5]) != "DfuSe" {
		return nil, fmt.Errorf("dfuse: bad signature %q, want \"DfuSe\"", b[0:5])
	}
	if b[5] != 0x01 {
		return nil, fmt.Errorf("dfuse: unsupported DfuSe version %d", b[5])
	}
	totalSize := binary.LittleEndian.Uint32(b[6:10])
	if int(totalSize) != len(b) {
		return nil, fmt.Errorf("dfuse: prefix declares size %d, file has %d bytes", totalSize, len(b))
	}
	numTargets := int(b[10])

	f := &File{}
	off := filePrefixLen
	for t := 0; t < numTargets; t++ {
		target, next, err := parseTarget(b, off)
		if err != nil {
			return nil, fmt.Errorf("dfuse: target %d: %w", t, err)
		}
		f.Targets = append(f.Targets, target)
		off = next
	}
	if off != len(b) {
		debug.Printf("dfuse: %d trailing bytes after last target", len(b)-off)
	}
	return f, nil
}

func parseTarget(b []byte, off int) (Target, int, error) {
	if off+fileTargetHeaderLen > len(b) {
		return Target{}, 0, fmt.Errorf("file too short for target header at offset %d", off)
	}
	header := b[off : off+fileTargetHeaderLen]
	if string(header[0:6]) != "Target" {
		return Target{}, 0, fmt.Errorf("bad target signature %q, want \"Target\"", header[0:6])
	}
	alt := header[6]
	named := binary.LittleEndian.Uint32(header[7:11])
	var name string
	if named != 0 {
		nameBytes := header[11:266]
		if i := bytes.IndexByte(nameBytes, 0); i >= 0 {
			nameBytes = nameBytes[:i]
		}
		name = string(nameBytes)
	}
	size := binary.LittleEndian.Uint32(header[266:270])
	numElements := binary.LittleEndian.Uint32(header[270:274])

	target := Target{AlternateSetting: alt, Name: name}
	off += fileTargetHeaderLen
	elementsStart := off
	for e := uint32(0); e < numElements; e++ {
		el, next, err := parseElement(b, off)
		if err != nil {
			return Target{}, 0, fmt.Errorf("element %d: %w", e, err)
		}
		target.Elements = append(target.Elements, el)
		off = next
	}
	if got := uint32(off - elementsStart); got != size {
		return Target{}, 0, fmt.Errorf("target declares size %d, elements consumed %d", size, got)
	}
	return target, off, nil
}

func parseElement(b []byte, off int) (Element, int, error) {
	if off+fileElementHeaderLen > len(b) {
		return Element{}, 0, fmt.Errorf("file too short for element header at offset %d", off)
	}
	addr := binary.LittleEndian.Uint32(b[off : off+4])
	size := binary.LittleEndian.Uint32(b[off+4 : off+8])
	off += fileElementHeaderLen
	if off+int(size) > len(b) {
		return Element{}, 0, fmt.Errorf("file too short for %d-byte element payload at offset %d", size, off)
	}
	data := b[off : off+int(size)]
	return Element{Address: addr, Data: data}, off + int(size), nil
}
