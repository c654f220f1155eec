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
	"fmt"
	"time"
)

// DfuStatus is the fixed 6-byte record returned by DFU_GETSTATUS.
type DfuStatus struct {
	Status      Status
	PollTimeout time.Duration
	State       State
	IString     uint8
}

// decodeStatus parses the 6-byte wire format:
//
//	byte 0:   bStatus
//	byte 1-3: bwPollTimeout (24-bit little-endian milliseconds)
//	byte 4:   bState
//	byte 5:   iString
func decodeStatus(b []byte) (DfuStatus, error) {
	if len(b) < 6 {
		return DfuStatus{}, fmt.Errorf("dfu: short GETSTATUS reply: got %d bytes, want 6", len(b))
	}
	ms := uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16
	return DfuStatus{
		Status:      Status(b[0]),
		PollTimeout: time.Duration(ms) * time.Millisecond,
		State:       State(b[4]),
		IString:     b[5],
	}, nil
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusErrTarget:
		return "errTARGET"
	case StatusErrFile:
		return "errFILE"
	case StatusErrWrite:
		return "errWRITE"
	case StatusErrErase:
		return "errERASE"
	case StatusErrCheckErased:
		return "errCHECK_ERASED"
	case StatusErrProg:
		return "errPROG"
	case StatusErrVerify:
		return "errVERIFY"
	case StatusErrAddress:
		return "errADDRESS"
	case StatusErrNotDone:
		return "errNOTDONE"
	case StatusErrFirmware:
		return "errFIRMWARE"
	case StatusErrVendor:
		return "errVENDOR"
	case StatusErrUsbR:
		return "errUSBR"
	case StatusErrPOR:
		return "errPOR"
	case StatusErrUnknown:
		return "errUNKNOWN"
	case StatusErrStalledPkt:
		return "errSTALLEDPKT"
	default:
		return fmt.Sprintf("status(%#02x)", uint8(s))
	}
}
