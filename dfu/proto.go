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

import "fmt"

// bmRequestType for the DFU class control requests: class-type,
// interface-recipient, direction varying per request.
const (
	reqTypeOut = 0x21 // host-to-device | class | interface
	reqTypeIn  = 0xa1 // device-to-host | class | interface
)

// Claim claims the USB interface, opening the device handle first if
// necessary.
func (i *Interface) Claim() error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	if err := i.impl.Claim(h, i.InterfaceNumber); err != nil {
		return fmt.Errorf("dfu: claim interface %d: %w", i.InterfaceNumber, err)
	}
	return nil
}

// Release releases the claimed interface. Safe to call without a prior
// successful Claim.
func (i *Interface) Release() {
	if i.handle != nil {
		i.impl.Release(i.handle, i.InterfaceNumber)
	}
}

// SetAltSetting issues SET_INTERFACE for the given alternate setting on
// this interface's number.
func (i *Interface) SetAltSetting(alt uint8) error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	if err := i.impl.SetInterfaceAltSetting(h, i.InterfaceNumber, alt); err != nil {
		return fmt.Errorf("dfu: set interface %d alt %d: %w", i.InterfaceNumber, alt, err)
	}
	return nil
}

// Reset issues a USB bus reset on this interface's device handle.
func (i *Interface) Reset() error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	return i.impl.Reset(h)
}

// Detach sends DFU_DETACH with the given wTimeout (milliseconds, clamped
// to a uint16).
func (i *Interface) Detach(timeoutMs uint16) error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	_, err = i.impl.Control(h, DetachTimeout, reqTypeOut, ReqDetach, timeoutMs, uint16(i.InterfaceNumber), nil)
	if err != nil {
		return fmt.Errorf("dfu: detach: %w", err)
	}
	return nil
}

// Dnload issues one DFU_DNLOAD transaction.
func (i *Interface) Dnload(transaction uint16, data []byte) error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	_, err = i.impl.Control(h, ControlTimeout, reqTypeOut, ReqDnload, transaction, uint16(i.InterfaceNumber), data)
	if err != nil {
		return fmt.Errorf("dfu: dnload tx=%d len=%d: %w", transaction, len(data), err)
	}
	return nil
}

// Upload issues one DFU_UPLOAD transaction, returning the bytes the
// device sent back (may be shorter than length).
func (i *Interface) Upload(transaction uint16, length int) ([]byte, error) {
	h, err := i.Handle()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := i.impl.Control(h, ControlTimeout, reqTypeIn, ReqUpload, transaction, uint16(i.InterfaceNumber), buf)
	if err != nil {
		return nil, fmt.Errorf("dfu: upload tx=%d: %w", transaction, err)
	}
	return buf[:n], nil
}

// GetStatus issues DFU_GETSTATUS and decodes the 6-byte reply.
func (i *Interface) GetStatus() (DfuStatus, error) {
	h, err := i.Handle()
	if err != nil {
		return DfuStatus{}, err
	}
	buf := make([]byte, 6)
	n, err := i.impl.Control(h, ControlTimeout, reqTypeIn, ReqGetStatus, 0, uint16(i.InterfaceNumber), buf)
	if err != nil {
		return DfuStatus{}, fmt.Errorf("dfu: getstatus: %w", err)
	}
	return decodeStatus(buf[:n])
}

// ClrStatus issues DFU_CLRSTATUS, clearing an error state.
func (i *Interface) ClrStatus() error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	_, err = i.impl.Control(h, ControlTimeout, reqTypeOut, ReqClrStatus, 0, uint16(i.InterfaceNumber), nil)
	if err != nil {
		return fmt.Errorf("dfu: clrstatus: %w", err)
	}
	return nil
}

// GetState issues DFU_GETSTATE, returning the single-byte state.
func (i *Interface) GetState() (State, error) {
	h, err := i.Handle()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	_, err = i.impl.Control(h, ControlTimeout, reqTypeIn, ReqGetState, 0, uint16(i.InterfaceNumber), buf)
	if err != nil {
		return 0, fmt.Errorf("dfu: getstate: %w", err)
	}
	return State(buf[0]), nil
}

// Abort issues DFU_ABORT, requesting a return to dfuIDLE.
func (i *Interface) Abort() error {
	h, err := i.Handle()
	if err != nil {
		return err
	}
	_, err = i.impl.Control(h, ControlTimeout, reqTypeOut, ReqAbort, 0, uint16(i.InterfaceNumber), nil)
	if err != nil {
		return fmt.Errorf("dfu: abort: %w", err)
	}
	return nil
}
