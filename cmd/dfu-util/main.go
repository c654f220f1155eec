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

// Command dfu-util flashes and reads back firmware on USB devices
// implementing the DFU 1.0/1.1 class and the ST DfuSe 1.1a extension.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/antfarm/usbdfu/dfu"
	"github.com/antfarm/usbdfu/dfuse"
	dfudriver "github.com/antfarm/usbdfu/driver"
	"github.com/antfarm/usbdfu/dfuerr"
	"github.com/antfarm/usbdfu/libusb"
)

const version = "dfu-util (antfarm/usbdfu) 0.11"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main's testable body: it never calls os.Exit itself, returning
// the sysexits(3) code the caller should use instead.
func run(args []string, stdout, stderr *os.File) int {
	flags := pflag.NewFlagSet("dfu-util", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		showHelp      bool
		showVersion   bool
		verbose       int
		list          bool
		detach        bool
		detachDelay   int
		device        string
		path          string
		cfg           int
		intf          int
		alt           string
		serial        string
		devnum        int
		transferSize  int
		uploadFile    string
		uploadSize    int
		downloadFile  string
		resetAfter    bool
		wait          bool
		dfuseAddress  string
	)

	flags.BoolVarP(&showHelp, "help", "h", false, "print this help message and exit")
	flags.BoolVarP(&showVersion, "version", "V", false, "print dfu-util's version and exit")
	flags.CountVarP(&verbose, "verbose", "v", "print verbose debug statements (cumulative)")
	flags.BoolVarP(&list, "list", "l", false, "list currently attached DFU-capable USB devices")
	flags.BoolVarP(&detach, "detach", "e", false, "detach currently attached USB device")
	flags.IntVarP(&detachDelay, "detach-delay", "E", 5, "seconds to wait after detach before re-probing")
	flags.StringVarP(&device, "device", "d", "", "filter by \"vendor:product[,vendorDfu:productDfu]\"")
	flags.StringVarP(&path, "path", "p", "", "filter by USB device path \"bus-port.port…\"")
	flags.IntVarP(&cfg, "cfg", "c", 0, "filter by configuration value")
	flags.IntVarP(&intf, "intf", "i", 0, "filter by interface number")
	flags.StringVarP(&alt, "alt", "a", "", "filter by alternate setting index or name")
	flags.StringVarP(&serial, "serial", "S", "", "filter by \"serial[,serialDfu]\"")
	flags.IntVarP(&devnum, "devnum", "n", 0, "filter by device address")
	flags.IntVarP(&transferSize, "transfer-size", "t", 0, "override the negotiated transfer block size")
	flags.StringVarP(&uploadFile, "upload", "U", "", "read firmware off the device into this file")
	flags.IntVarP(&uploadSize, "upload-size", "Z", 0, "expected upload length in bytes")
	flags.StringVarP(&downloadFile, "download", "D", "", "write this file's firmware to the device")
	flags.BoolVarP(&resetAfter, "reset", "R", false, "issue a USB reset once the operation completes")
	flags.BoolVarP(&wait, "wait", "w", false, "poll until a matching device appears")
	flags.StringVarP(&dfuseAddress, "dfuse-address", "s", "", "DfuSe \"addr[:force][:leave][:mass-erase][:unprotect][:will-reset][:uploadLength]\"")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return dfuerr.Usage.ExitCode()
	}

	if showHelp {
		fmt.Fprintln(stdout, "Usage: dfu-util [options]")
		flags.PrintDefaults()
		return 0
	}
	if showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	opts, err := buildOptions(dfudriver.Options{
		Verbosity:    verbose,
		DetachDelay:  secondsToDuration(detachDelay),
		TransferSize: transferSize,
		UploadFile:   uploadFile,
		UploadSize:   uploadSize,
		DownloadFile: downloadFile,
		ResetAfter:   resetAfter,
		Wait:         wait,
	}, list, detach, device, path, cfg, intf, alt, serial, devnum, dfuseAddress, flags.Changed("intf"), flags.Changed("devnum"))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return dfuerr.ExitCode(err)
	}

	if opts.Mode == dfudriver.ModeDownload {
		firmware, err := loadFirmware(downloadFile)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return dfuerr.ExitCode(err)
		}
		opts.Firmware = firmware
	}

	if verbose > 0 {
		dfu.SetDebugOutput(stderr)
		dfuse.SetDebugOutput(stderr)
		dfudriver.SetDebugOutput(stderr)
	}

	ctx, err := libusb.NewContext()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return dfuerr.IO.ExitCode()
	}
	defer ctx.Close()
	if verbose > 1 {
		ctx.Debug(verbose)
	}

	result, err := dfudriver.Run(ctx, opts, dfu.SystemClock, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return dfuerr.ExitCode(err)
	}

	if opts.Mode == dfudriver.ModeUpload && uploadFile != "" {
		if err := os.WriteFile(uploadFile, result.Uploaded, 0o644); err != nil {
			fmt.Fprintln(stderr, err)
			return dfuerr.IO.ExitCode()
		}
		fmt.Fprintf(stdout, "Upload done, %d bytes read\n", len(result.Uploaded))
	}

	return 0
}

// buildOptions resolves the flag strings the grammar parsers in
// driver/parse.go understand into one dfudriver.Options, and picks the
// CLI Mode from the first matching mutually-exclusive flag in the order
// spec.md's flag table lists them: list, detach, upload, download.
func buildOptions(opts dfudriver.Options, list, detach bool, device, path string, cfg, intf int, alt, serial string, devnum int, dfuseAddress string, intfSet, devnumSet bool) (dfudriver.Options, error) {
	match := dfu.NewMatchSpec()

	if device != "" {
		run, dfuPair, err := dfudriver.ParseVendorProduct(device)
		if err != nil {
			return opts, dfuerr.Wrap(dfuerr.Usage, "parsing --device", err)
		}
		match.VendorProduct = run
		match.VendorProductDfu = dfuPair
	}
	if path != "" {
		p, err := dfudriver.ParsePath(path)
		if err != nil {
			return opts, dfuerr.Wrap(dfuerr.Usage, "parsing --path", err)
		}
		match.Path = &p
	}
	if cfg != 0 {
		match.ConfigIndex = &cfg
	}
	if intfSet {
		match.InterfaceIndex = &intf
	}
	if alt != "" {
		idx, name := dfudriver.ParseAlt(alt)
		match.AltIndex = idx
		match.AltName = name
	}
	if serial != "" {
		run, dfuToken, err := dfudriver.ParseSerial(serial)
		if err != nil {
			return opts, dfuerr.Wrap(dfuerr.Usage, "parsing --serial", err)
		}
		match.Serial = run
		match.SerialDfu = dfuToken
	}
	if devnumSet {
		match.DevNum = &devnum
	}
	opts.Match = match

	if dfuseAddress != "" {
		dfuse, err := dfudriver.ParseDfuseAddress(dfuseAddress)
		if err != nil {
			return opts, dfuerr.Wrap(dfuerr.Usage, "parsing --dfuse-address", err)
		}
		opts.DfuSe = dfuse
	}

	switch {
	case list:
		opts.Mode = dfudriver.ModeList
	case detach:
		opts.Mode = dfudriver.ModeDetach
	case opts.UploadFile != "":
		opts.Mode = dfudriver.ModeUpload
	case opts.DownloadFile != "":
		opts.Mode = dfudriver.ModeDownload
	default:
		return opts, dfuerr.New(dfuerr.Usage, "one of --list, --detach, --upload or --download is required")
	}
	return opts, nil
}

func loadFirmware(path string) (*dfu.FirmwareFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dfuerr.Wrap(dfuerr.NotFound, "reading download file", err)
	}
	return &dfu.FirmwareFile{Firmware: data}, nil
}

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }
