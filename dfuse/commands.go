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
	"fmt"
	"strings"
	"time"

	"github.com/antfarm/usbdfu/dfu"
)

// dfuseTransaction is the fixed transaction number DfuSe uses for every
// special command and data transfer: the address is set explicitly each
// time, so the counter never advances.
const dfuseTransaction = 2

// Special command opcodes, sent as the first byte of a DNLOAD payload.
const (
	cmdSetAddress     = 0x21
	cmdEraseOrMassErase = 0x41
	cmdReadUnprotect  = 0x92
)

// massErasePollOverride replaces the lying 100ms bwPollTimeout the
// STM32F405 reports for a mass erase; the real wait is much longer.
const massErasePollOverride = 35000 * time.Millisecond

// stm32H7Vendor and stm32H7Product identify the STM32H7 system bootloader, whose
// ERASE_PAGE can get stuck in dfuDNBUSY with bState=dfuERROR.
const (
	stm32H7Vendor  = 0x0483
	stm32H7Product = 0xdf11
	// stm32H7SerialPrefix is read with strings.HasPrefix, resolving
	// Open Question 2: the original compares sizeof("200364500000")
	// bytes including the NUL, which is ambiguous for longer serials.
	stm32H7SerialPrefix = "200364500000"
)

// maxPipeStallRetries bounds the retry of a stalled poll that reuses a
// previously observed nonzero bwPollTimeout.
const maxPipeStallRetries = 3

// maxZeroTimeoutPolls caps the number of consecutive zero-bwPollTimeout
// polls tolerated before declaring the device stuck.
const maxZeroTimeoutPolls = 100

// maxEraseStuckPolls is the poll count after which the STM32H7 unstick
// workaround engages.
const maxEraseStuckPolls = 4

// Session threads the state the special-command helpers need across
// calls within one DfuSe engagement: the claimed interface, the clock
// used for poll waits, and erase bookkeeping.
type Session struct {
	Iface *dfu.Interface
	Clock dfu.Clock

	lastErasedPage uint32
	haveErasedPage bool
}

// NewSession wraps an already-claimed DFU interface for DfuSe operations.
func NewSession(iface *dfu.Interface, clock dfu.Clock) *Session {
	return &Session{Iface: iface, Clock: clock}
}

// SetAddress issues the SET_ADDRESS special command.
func (s *Session) SetAddress(addr uint32) error {
	payload := []byte{cmdSetAddress, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
	return s.dnloadAndPoll(payload, false)
}

// ErasePage issues ERASE_PAGE for the page containing addr, unless that
// page was already erased by a previous call on this Session.
func (s *Session) ErasePage(addr uint32, pageSize uint32) error {
	page := addr &^ (pageSize - 1)
	if s.haveErasedPage && page == s.lastErasedPage {
		return nil
	}
	payload := []byte{cmdEraseOrMassErase, byte(page), byte(page >> 8), byte(page >> 16), byte(page >> 24)}
	if err := s.dnloadAndPoll(payload, false); err != nil {
		return err
	}
	s.lastErasedPage = page
	s.haveErasedPage = true
	return nil
}

// MassErase issues MASS_ERASE, applying the STM32F405 poll-timeout lie
// workaround from spec.md 4.5.
func (s *Session) MassErase() error {
	return s.dnloadAndPoll([]byte{cmdEraseOrMassErase}, true)
}

// ReadUnprotect issues READ_UNPROTECT. The device disconnects and resets
// immediately after acknowledgment, so this does not wait for status
// beyond the first poll.
func (s *Session) ReadUnprotect() error {
	if err := s.Iface.Dnload(dfuseTransaction, []byte{cmdReadUnprotect}); err != nil {
		return err
	}
	_, err := s.Iface.GetStatus()
	return err
}

// dnloadAndPoll issues a single-transaction DNLOAD carrying a special
// command and polls GETSTATUS until the device leaves dfuDNBUSY,
// applying the quirk-driven poll semantics of spec.md 4.5.
func (s *Session) dnloadAndPoll(payload []byte, isMassErase bool) error {
	if err := s.Iface.Dnload(dfuseTransaction, payload); err != nil {
		return err
	}

	stalls := 0
	zeroPolls := 0
	erasePolls := 0
	lastPoll := time.Duration(0)
	for {
		status, err := s.Iface.GetStatus()
		if err != nil {
			if stalls < maxPipeStallRetries && lastPoll > 0 {
				stalls++
				s.Clock.Sleep(lastPoll)
				continue
			}
			return err
		}

		poll := status.PollTimeout
		if isMassErase && poll == 100*time.Millisecond {
			poll = massErasePollOverride
		}

		switch status.State {
		case dfu.StateDfuDnbusy, dfu.StateDfuError:
			if status.State == dfu.StateDfuError && !s.isStuckOnErase() {
				return fmt.Errorf("dfuse: device reported dfuERROR (status %s)", status.Status)
			}
			if s.isStuckOnErase() {
				erasePolls++
				if erasePolls > maxEraseStuckPolls {
					if err := s.Iface.ClrStatus(); err != nil {
						return err
					}
					continue
				}
			}
			if poll == 0 {
				zeroPolls++
				if zeroPolls > maxZeroTimeoutPolls {
					return fmt.Errorf("dfuse: device stuck in dfuDNBUSY after %d zero-timeout polls", zeroPolls)
				}
			} else {
				zeroPolls = 0
			}
			lastPoll = poll
			s.Clock.Sleep(poll)
			continue
		case dfu.StateDfuDnloadIdle:
			return nil
		default:
			return fmt.Errorf("dfuse: unexpected state %s after special command", status.State)
		}
	}
}

// isStuckOnErase reports whether this Session's device matches the
// STM32H7 ERASE_PAGE-unstick quirk target.
func (s *Session) isStuckOnErase() bool {
	return s.Iface.VendorID == stm32H7Vendor && s.Iface.ProductID == stm32H7Product &&
		strings.HasPrefix(s.Iface.SerialName, stm32H7SerialPrefix)
}
