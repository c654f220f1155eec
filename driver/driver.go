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
	"io"
	"log"
	"time"

	"github.com/antfarm/usbdfu/dfu"
	"github.com/antfarm/usbdfu/dfuerr"
	"github.com/antfarm/usbdfu/dfuse"
	"github.com/antfarm/usbdfu/libusb"
	"github.com/antfarm/usbdfu/quirks"
)

var debug = log.New(io.Discard, "dfudriver: ", log.Lshortfile)

// SetDebugOutput redirects the package's debug logger.
func SetDebugOutput(w io.Writer) { debug.SetOutput(w) }

// Result carries whatever a Run produced, for the CLI to act on.
type Result struct {
	State    State
	Uploaded []byte
}

// Run drives the full Probing -> ... -> Done state machine for one CLI
// invocation, dispatching to the Mode the Options select. out receives
// the --list output; it is never used by the other modes.
func Run(ctx *libusb.Context, opts Options, clock dfu.Clock, out io.Writer) (Result, error) {
	if clock == nil {
		clock = dfu.SystemClock
	}

	candidates, err := discover(ctx, opts, clock)
	if err != nil {
		return Result{State: Probing}, err
	}

	if opts.Mode == ModeList {
		for _, c := range candidates {
			fmt.Fprintln(out, c.String())
			c.Close()
		}
		return Result{State: Done}, nil
	}
	if len(candidates) == 0 {
		return Result{State: Probing}, dfuerr.New(dfuerr.NotFound, "no matching DFU device found")
	}

	primary := candidates[0]
	for _, c := range candidates[1:] {
		c.Close()
	}

	state := Probing
	if primary.Flags&dfu.IsDfuMode == 0 {
		state = RunTimeDetected
	} else {
		state = DfuReady
	}

	if opts.Mode == ModeDetach {
		if state != RunTimeDetected {
			primary.Close()
			return Result{State: state}, dfuerr.New(dfuerr.Usage, "device is already in DFU mode; nothing to detach")
		}
		if err := detachOnly(primary); err != nil {
			primary.Close()
			return Result{State: state}, dfuerr.Wrap(dfuerr.Protocol, "detach", err)
		}
		primary.Close()
		return Result{State: Done}, nil
	}

	if state == RunTimeDetected {
		state = WaitingForDfu
		dfuIface, err := dfu.EnterDfuMode(ctx, primary, opts.Match, clock, opts.DetachDelay)
		if err != nil {
			return Result{State: state}, dfuerr.Wrap(dfuerr.Protocol, "entering DFU mode", err)
		}
		primary = dfuIface
		state = DfuReady
	}
	if err := primary.Claim(); err != nil {
		return Result{State: state}, dfuerr.Wrap(dfuerr.IO, "claiming interface", err)
	}
	defer primary.Close()

	siblings, err := siblingAltInterfaces(ctx, primary)
	if err != nil {
		return Result{State: state}, dfuerr.Wrap(dfuerr.IO, "enumerating sibling alt-settings", err)
	}
	defer func() {
		for _, s := range siblings {
			s.Close()
		}
	}()

	state = Operating
	xferSize := dfu.TransferSize(primary, opts.TransferSize)

	var uploaded []byte
	switch opts.Mode {
	case ModeUpload:
		uploaded, err = runUpload(primary, xferSize, opts, clock)
	case ModeDownload:
		err = runDownload(primary, siblings, xferSize, opts, clock)
	default:
		err = dfuerr.Newf(dfuerr.Software, "unhandled mode %d", opts.Mode)
	}
	if err != nil {
		return Result{State: state}, err
	}

	state = ResettingOrLeaving
	if opts.DfuSe != nil && opts.DfuSe.Leave {
		// Leave sets the -s address only when one was given; the first
		// element address returned by dfuse.Download is not used here.
		var addr *uint32
		if opts.DfuSe.HaveAddress {
			a := opts.DfuSe.Address
			addr = &a
		}
		session := dfuse.NewSession(primary, clock)
		tolerate := primary.Quirks&quirks.DfuSeLeave != 0
		if err := session.Leave(addr, tolerate); err != nil {
			return Result{State: state}, dfuerr.Wrap(dfuerr.Protocol, "leaving DFU mode", err)
		}
	}
	if opts.ResetAfter {
		if err := primary.Reset(); err != nil {
			return Result{State: state}, dfuerr.Wrap(dfuerr.IO, "final reset", err)
		}
	}

	return Result{State: Done, Uploaded: uploaded}, nil
}

// discover runs the walker once, retrying per opts.Wait/opts.WaitMaxRetries
// until a non-empty candidate set appears or the retry budget is spent.
// Grounded on original_source/main.c's --wait retry loop, elaborated
// beyond spec.md's one-line flag description.
func discover(ctx *libusb.Context, opts Options, clock dfu.Clock) ([]*dfu.Interface, error) {
	retries := 0
	for {
		candidates, err := dfu.Walk(ctx, opts.Match)
		if err != nil {
			return nil, dfuerr.Wrap(dfuerr.IO, "enumerating USB devices", err)
		}
		if len(candidates) > 0 || !opts.Wait {
			return candidates, nil
		}
		if opts.WaitMaxRetries > 0 && retries >= opts.WaitMaxRetries {
			return nil, dfuerr.New(dfuerr.NotFound, "no matching DFU device found before --wait retry budget was spent")
		}
		retries++
		delay := opts.WaitRetryDelay
		if delay <= 0 {
			delay = time.Second
		}
		clock.Sleep(delay)
	}
}

// detachOnly implements the -e/--detach CLI mode: detach without
// re-probing for the device's reappearance in DFU mode.
func detachOnly(iface *dfu.Interface) error {
	if err := iface.Claim(); err != nil {
		return err
	}
	defer iface.Release()
	if err := iface.Detach(uint16(dfu.DetachTimeout / time.Millisecond)); err != nil {
		return err
	}
	if iface.FuncDFU.BmAttributes&dfu.AttrWillDetach != 0 {
		debug.Print("device will self-detach; skipping explicit bus reset")
		return nil
	}
	return iface.Reset()
}

// siblingAltInterfaces re-walks for every other DFU-mode alt-setting
// interface of the same physical device as primary, for the DfuSe
// multi-target dispatch in dfuse.Download.
func siblingAltInterfaces(ctx *libusb.Context, primary *dfu.Interface) ([]*dfu.Interface, error) {
	spec := dfu.NewMatchSpec()
	spec.RequireDfuMode = true
	spec.VendorProduct = dfu.VendorProduct{
		Vendor:  dfu.Token{Value: primary.VendorID},
		Product: dfu.Token{Value: primary.ProductID},
	}
	devnum := int(primary.DeviceAddress)
	spec.DevNum = &devnum

	all, err := dfu.Walk(ctx, spec)
	if err != nil {
		return nil, err
	}
	var out []*dfu.Interface
	for _, c := range all {
		if c.InterfaceNumber == primary.InterfaceNumber && c.AlternateSetting == primary.AlternateSetting {
			c.Close()
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func runUpload(primary *dfu.Interface, xferSize int, opts Options, clock dfu.Clock) ([]byte, error) {
	if opts.DfuSe != nil {
		session := dfuse.NewSession(primary, clock)
		length := opts.UploadSize
		if opts.DfuSe.HaveUploadLength {
			length = opts.DfuSe.UploadLength
		}
		data, err := dfuse.Upload(session, opts.DfuSe.Address, xferSize, length)
		if err != nil {
			return nil, dfuerr.Wrap(dfuerr.Protocol, "DfuSe upload", err)
		}
		return data, nil
	}
	data, err := dfu.UploadAll(primary, xferSize, opts.UploadSize, dfu.NoProgress)
	if err != nil {
		return nil, dfuerr.Wrap(dfuerr.Protocol, "upload", err)
	}
	return data, nil
}

func runDownload(primary *dfu.Interface, siblings []*dfu.Interface, xferSize int, opts Options, clock dfu.Clock) error {
	if opts.Firmware == nil {
		return dfuerr.New(dfuerr.Usage, "no firmware loaded for download")
	}
	payload := opts.Firmware.Payload()

	if opts.Firmware.IsDfuSe() || opts.DfuSe != nil {
		file, err := dfuse.ParseFile(payload)
		if err != nil {
			return dfuerr.Wrap(dfuerr.Data, "parsing DfuSe file", err)
		}
		ifaces := append([]*dfu.Interface{primary}, siblings...)
		if _, err := dfuse.Download(ifaces, clock, file, xferSize, opts.writeElementOptions()); err != nil {
			return dfuerr.Wrap(dfuerr.Protocol, "DfuSe download", err)
		}
		return nil
	}

	if err := dfu.DownloadAll(primary, payload, xferSize, clock, dfu.NoProgress); err != nil {
		return dfuerr.Wrap(dfuerr.Protocol, "download", err)
	}
	return nil
}
