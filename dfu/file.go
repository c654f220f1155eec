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

import "time"

// FirmwareFile is the external file-accessor collaborator: spec.md's
// DfuFile. Parsing the DFU suffix/prefix itself (CRC, signature) is out
// of scope; callers populate the fields after reading and validating a
// file by whatever means they choose.
type FirmwareFile struct {
	Firmware  []byte
	PrefixLen int
	SuffixLen int
	IDVendor  uint16
	IDProduct uint16
	BCDDevice uint16
	BCDDFU    uint16
}

// Payload returns the firmware bytes with the prefix and suffix
// stripped.
func (f *FirmwareFile) Payload() []byte {
	return f.Firmware[f.PrefixLen : len(f.Firmware)-f.SuffixLen]
}

// IsDfuSe reports whether the file's bcdDFU field identifies a DfuSe
// container.
func (f *FirmwareFile) IsDfuSe() bool {
	return f.BCDDFU == BcdDFUSe
}

// Clock abstracts calendar-time waits so tests can run the protocol
// engine's poll loops without real delays, grounded on the teacher's
// injected "done chan struct{}" cooperative-wait idiom in
// usb/libusb.go's handleEvents.
type Clock interface {
	Sleep(time.Duration)
}

// SystemClock sleeps for real; the production default.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ProgressSink observes transfer progress; it has no bearing on
// correctness and a nil-op implementation is the default.
type ProgressSink interface {
	SetTotal(int)
	Advance(int)
}

// NoProgress discards every update.
var NoProgress ProgressSink = noProgress{}

type noProgress struct{}

func (noProgress) SetTotal(int) {}
func (noProgress) Advance(int)  {}
