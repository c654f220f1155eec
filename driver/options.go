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

// Package dfudriver composes the libusb/dfu/dfuse packages into the
// run-time state machine and command dispatch a CLI front-end drives:
// list, detach, upload and download.
package dfudriver

import (
	"time"

	"github.com/antfarm/usbdfu/dfu"
	"github.com/antfarm/usbdfu/dfuse"
)

// Mode selects which of the CLI's mutually exclusive operations to run.
type Mode int

const (
	ModeList Mode = iota
	ModeDetach
	ModeUpload
	ModeDownload
)

// Options bundles every CLI flag relevant to one driver run, following
// spec.md 6's flag table. All configuration reaches the driver this way,
// by value; there is no configuration file.
type Options struct {
	Mode Mode

	Verbosity int

	Match dfu.MatchSpec

	DetachDelay  time.Duration
	TransferSize int

	UploadFile     string
	UploadSize     int
	DownloadFile   string
	ResetAfter     bool
	Wait           bool
	WaitRetryDelay time.Duration
	WaitMaxRetries int

	// Firmware is the already-read download payload, set by the CLI layer
	// after loading DownloadFile from disk. Run returns dfuerr.Usage if
	// Mode is ModeDownload and this is nil.
	Firmware *dfu.FirmwareFile

	DfuSe *DfuSeOptions
}

// DfuSeOptions carries the parsed -s/--dfuse-address value.
type DfuSeOptions struct {
	Address     uint32
	HaveAddress bool

	Force      bool
	Leave      bool
	MassErase  bool
	Unprotect  bool
	WillReset  bool

	// UploadLength is the bare integer token, when present: an explicit
	// byte count to read starting at Address during a DfuSe upload.
	UploadLength    int
	HaveUploadLength bool
}

func (o *Options) writeElementOptions() dfuse.WriteElementOptions {
	if o.DfuSe == nil {
		return dfuse.WriteElementOptions{}
	}
	return dfuse.WriteElementOptions{
		Force:     o.DfuSe.Force,
		MassErase: o.DfuSe.MassErase,
		WillReset: o.DfuSe.WillReset,
	}
}
