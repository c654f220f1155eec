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

// Package dfu implements the USB Device Firmware Upgrade class protocol
// engine: descriptor discovery, the run-time-to-DFU-mode transition, and
// the upload/download transfer loops defined by the DFU 1.0/1.1
// specification.
package dfu

import "time"

// Interface class/subclass/protocol identifying a DFU interface.
const (
	ClassApplicationSpecific = 0xfe
	SubClassDFU              = 0x01
	ProtocolRuntime          = 0x01
	ProtocolDFU              = 0x02
)

// Class-specific request codes, sent with bmRequestType class+interface.
const (
	ReqDetach    = 0
	ReqDnload    = 1
	ReqUpload    = 2
	ReqGetStatus = 3
	ReqClrStatus = 4
	ReqGetState  = 5
	ReqAbort     = 6
)

// bmAttributes bits of the DFU functional descriptor.
const (
	AttrWillDetach       = 1 << 3
	AttrManifestTolerant = 1 << 2
	AttrCanUpload        = 1 << 1
	AttrCanDnload        = 1 << 0
)

// USB_DT_DFU, the class-specific functional descriptor type.
const DescriptorTypeDFU = 0x21

// DfuSe bcdDFUVersion, used throughout to recognize ST's extension.
const BcdDFUSe = 0x011a

// State is one of the eleven states of the DFU class state machine.
type State uint8

const (
	StateAppIdle              State = 0
	StateAppDetach            State = 1
	StateDfuIdle              State = 2
	StateDfuDnloadSync        State = 3
	StateDfuDnbusy            State = 4
	StateDfuDnloadIdle        State = 5
	StateDfuManifestSync      State = 6
	StateDfuManifest          State = 7
	StateDfuManifestWaitReset State = 8
	StateDfuUploadIdle        State = 9
	StateDfuError             State = 10
)

func (s State) String() string {
	switch s {
	case StateAppIdle:
		return "appIDLE"
	case StateAppDetach:
		return "appDETACH"
	case StateDfuIdle:
		return "dfuIDLE"
	case StateDfuDnloadSync:
		return "dfuDNLOAD-SYNC"
	case StateDfuDnbusy:
		return "dfuDNBUSY"
	case StateDfuDnloadIdle:
		return "dfuDNLOAD-IDLE"
	case StateDfuManifestSync:
		return "dfuMANIFEST-SYNC"
	case StateDfuManifest:
		return "dfuMANIFEST"
	case StateDfuManifestWaitReset:
		return "dfuMANIFEST-WAIT-RESET"
	case StateDfuUploadIdle:
		return "dfuUPLOAD-IDLE"
	case StateDfuError:
		return "dfuERROR"
	default:
		return "unknown"
	}
}

// Status is one of the sixteen defined DFU status codes (bStatus).
type Status uint8

const (
	StatusOK               Status = 0x00
	StatusErrTarget        Status = 0x01
	StatusErrFile          Status = 0x02
	StatusErrWrite         Status = 0x03
	StatusErrErase         Status = 0x04
	StatusErrCheckErased   Status = 0x05
	StatusErrProg          Status = 0x06
	StatusErrVerify        Status = 0x07
	StatusErrAddress       Status = 0x08
	StatusErrNotDone       Status = 0x09
	StatusErrFirmware      Status = 0x0a
	StatusErrVendor        Status = 0x0b
	StatusErrUsbR          Status = 0x0c
	StatusErrPOR           Status = 0x0d
	StatusErrUnknown       Status = 0x0e
	StatusErrStalledPkt    Status = 0x0f
)

// ControlTimeout is the fixed 5000ms timeout spec.md mandates for every
// class control request.
const ControlTimeout = 5 * time.Second

// DetachTimeout is the fixed 1000ms timeout for the DFU_DETACH request.
const DetachTimeout = 1 * time.Second

// DefaultDetachDelay is the default wait, user-overridable, before
// re-probing for the DFU-mode device after detaching.
const DefaultDetachDelay = 5 * time.Second

// LinuxTransferSizeClamp is the maximum control transfer length the Linux
// kernel's usbfs URB accepts in one go.
const LinuxTransferSizeClamp = 4096
