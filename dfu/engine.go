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
	"errors"
	"fmt"
	"time"

	"github.com/antfarm/usbdfu/libusb"
)

// abortToIdlePollCap bounds the abort-to-idle helper's defensive polling
// loop; spec.md 4.3 calls for "a safety cap (several seconds)".
const abortToIdlePollCap = 10 * time.Second

// TransferSize negotiates the chunk size for upload/download: adopt the
// device's advertised wTransferSize unless the caller overrides it,
// clamp to the host's usbfs URB ceiling, and never go below
// bMaxPacketSize0, per spec.md 4.3.
func TransferSize(iface *Interface, userOverride int) int {
	size := int(iface.FuncDFU.WTransferSize)
	if userOverride > 0 {
		size = userOverride
	}
	if size <= 0 {
		size = 4096
	}
	if clamp := kernelTransferSizeClamp(); clamp > 0 && size > clamp {
		size = clamp
	}
	if min := int(iface.MaxPacketSize0); size < min {
		size = min
	}
	return size
}

// EnterDfuMode implements spec.md 4.3's entry procedure: claim, detach or
// clear an error, release, wait, and re-probe for the single DFU-mode
// survivor. The caller's iface is closed by this call regardless of
// outcome; on success the returned Interface replaces it.
func EnterDfuMode(ctx *libusb.Context, iface *Interface, spec MatchSpec, clock Clock, detachDelay time.Duration) (*Interface, error) {
	defer func() {
		iface.Release()
		iface.Close()
	}()
	if err := iface.Claim(); err != nil {
		return nil, err
	}
	if iface.InterfaceNumber > 0 || iface.Flags&HasMultipleAlts != 0 {
		if err := iface.SetAltSetting(0); err != nil {
			return nil, err
		}
	}

	status, err := iface.GetStatus()
	if err != nil {
		if errors.Is(err, libusb.ErrorPipe) {
			status = DfuStatus{State: StateAppIdle}
		} else {
			return nil, err
		}
	}
	clock.Sleep(status.PollTimeout)

	switch status.State {
	case StateAppIdle, StateAppDetach:
		if err := iface.Detach(uint16(DetachTimeout / time.Millisecond)); err != nil {
			return nil, err
		}
		if iface.FuncDFU.BmAttributes&AttrWillDetach != 0 {
			debug.Print("device will self-detach; waiting for re-enumeration")
		} else if err := iface.Reset(); err != nil && !errors.Is(err, libusb.ErrorNoDevice) {
			return nil, fmt.Errorf("dfu: bus reset after detach: %w", err)
		}
	case StateDfuError:
		if err := iface.ClrStatus(); err != nil {
			return nil, err
		}
	}

	iface.Release()
	iface.Close()

	clock.Sleep(detachDelay)

	reprobe := spec
	reprobe.RequireDfuMode = true
	candidates, err := Walk(ctx, reprobe)
	if err != nil {
		return nil, err
	}
	if len(candidates) != 1 {
		for _, c := range candidates {
			c.Close()
		}
		return nil, fmt.Errorf("dfu: %d devices found after detach, expected exactly 1", len(candidates))
	}
	return candidates[0], nil
}

// AbortToIdle issues DFU_ABORT and polls GETSTATUS until the device
// reports dfuIDLE, sleeping bwPollTimeout between polls and bounded by
// abortToIdlePollCap. Used to defensively normalize state.
func AbortToIdle(iface *Interface, clock Clock) error {
	if err := iface.Abort(); err != nil {
		return err
	}
	deadline := time.Now().Add(abortToIdlePollCap)
	for {
		status, err := iface.GetStatus()
		if err != nil {
			return err
		}
		if status.State == StateDfuIdle {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("dfu: device did not return to dfuIDLE within %s", abortToIdlePollCap)
		}
		clock.Sleep(status.PollTimeout)
	}
}

// UploadAll implements spec.md 4.3's baseline upload loop: transactions
// start at 2, terminate on a short read or once expectedSize bytes have
// been collected (if expectedSize > 0), and finish with ABORT.
func UploadAll(iface *Interface, transferSize, expectedSize int, sink ProgressSink) ([]byte, error) {
	if sink == nil {
		sink = NoProgress
	}
	sink.SetTotal(expectedSize)

	var out []byte
	tx := uint16(2)
	for {
		want := transferSize
		if expectedSize > 0 {
			if remaining := expectedSize - len(out); remaining < want {
				want = remaining
			}
		}
		chunk, err := iface.Upload(tx, want)
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
		sink.Advance(len(chunk))
		tx++

		if len(chunk) < want {
			break
		}
		if expectedSize > 0 && len(out) >= expectedSize {
			break
		}
	}
	if err := iface.Abort(); err != nil {
		return out, err
	}
	return out, nil
}

// DownloadAll implements spec.md 4.3's baseline download loop: chunked
// DNLOAD/GETSTATUS, a final zero-length DNLOAD, then manifestation
// handling.
func DownloadAll(iface *Interface, payload []byte, transferSize int, clock Clock, sink ProgressSink) error {
	if sink == nil {
		sink = NoProgress
	}
	sink.SetTotal(len(payload))

	tx := uint16(0)
	for off := 0; off < len(payload); {
		end := off + transferSize
		if end > len(payload) {
			end = len(payload)
		}
		if err := downloadChunk(iface, tx, payload[off:end], clock, false); err != nil {
			return err
		}
		sink.Advance(end - off)
		off = end
		tx++
	}
	// Zero-length DNLOAD signals end-of-transfer.
	if err := downloadChunk(iface, tx, nil, clock, true); err != nil {
		return err
	}
	return manifest(iface, clock)
}

// downloadChunk issues one DNLOAD and polls GETSTATUS until the device
// leaves dfuDNLOAD_SYNC/dfuDNBUSY, per spec.md 4.3 step 1. final marks
// the zero-length end-of-transfer transaction, which may additionally
// settle directly into dfuMANIFEST.
func downloadChunk(iface *Interface, tx uint16, data []byte, clock Clock, final bool) error {
	if err := iface.Dnload(tx, data); err != nil {
		return err
	}
	for {
		status, err := iface.GetStatus()
		if err != nil {
			return err
		}
		switch status.State {
		case StateDfuDnloadSync, StateDfuDnbusy:
			clock.Sleep(status.PollTimeout)
			continue
		case StateDfuDnloadIdle:
			return nil
		case StateDfuManifest:
			if final {
				return nil
			}
			return fmt.Errorf("dfu: unexpected dfuMANIFEST mid-transfer")
		case StateDfuError:
			return fmt.Errorf("dfu: device reported dfuERROR (status %s) during download", status.Status)
		default:
			return fmt.Errorf("dfu: unexpected state %s after dnload", status.State)
		}
	}
}

// manifest implements spec.md 4.3 step 3: poll to dfuIDLE when the
// device is manifestation-tolerant, otherwise assume it resets and
// re-enumerates on its own.
func manifest(iface *Interface, clock Clock) error {
	if iface.FuncDFU.BmAttributes&AttrManifestTolerant == 0 {
		return nil
	}
	for {
		status, err := iface.GetStatus()
		if err != nil {
			return err
		}
		switch status.State {
		case StateDfuIdle:
			return nil
		case StateDfuManifest, StateDfuManifestSync:
			clock.Sleep(status.PollTimeout)
			continue
		case StateDfuError:
			return fmt.Errorf("dfu: device reported dfuERROR (status %s) during manifestation", status.Status)
		default:
			return fmt.Errorf("dfu: unexpected state %s during manifestation", status.State)
		}
	}
}
