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

	"github.com/antfarm/usbdfu/dfu"
)

// WriteElementOptions controls the per-element write, carrying the
// "force"/"mass-erase"/"will-reset" tokens from the -s/--dfuse-address
// flag grammar.
type WriteElementOptions struct {
	Force      bool
	MassErase  bool
	WillReset  bool
}

// WriteElement implements spec.md 4.5's dfuse_dnload_element: erase pass
// then write pass, chunked at xferSize.
func (s *Session) WriteElement(layout []dfu.MemorySegment, addr uint32, data []byte, xferSize int, opts WriteElementOptions) error {
	if len(data) == 0 {
		return nil
	}
	lastByteAddr := addr + uint32(len(data)) - 1
	if seg, ok := dfu.FindSegment(layout, lastByteAddr); !ok || (!seg.Writeable && !opts.Force) {
		return fmt.Errorf("dfuse: address range [%#x,%#x] is not writeable", addr, lastByteAddr)
	}

	if !opts.MassErase {
		if err := s.erasePass(layout, addr, len(data), xferSize); err != nil {
			return err
		}
	}
	return s.writePass(addr, data, xferSize, opts.WillReset)
}

// erasePass implements spec.md 4.5 step 2: for each xferSize-bounded
// chunk, erase every page the chunk covers, skipping pages already
// erased on this Session.
func (s *Session) erasePass(layout []dfu.MemorySegment, addr uint32, length int, xferSize int) error {
	for off := 0; off < length; off += xferSize {
		chunkLen := xferSize
		if off+chunkLen > length {
			chunkLen = length - off
		}
		chunkAddr := addr + uint32(off)
		chunkEnd := chunkAddr + uint32(chunkLen)
		for pageAddr := chunkAddr; pageAddr < chunkEnd; {
			seg, ok := dfu.FindSegment(layout, pageAddr)
			if !ok || !seg.Erasable {
				pageAddr++
				continue
			}
			if err := s.ErasePage(pageAddr, seg.PageSize); err != nil {
				return err
			}
			page := pageAddr &^ (seg.PageSize - 1)
			pageAddr = page + seg.PageSize
		}
	}
	return nil
}

// writePass implements spec.md 4.5 step 3: for each chunk, SET_ADDRESS
// then a DNLOAD at the fixed DfuSe transaction number, accepting
// dfuMANIFEST (and, under willReset, dfuDNBUSY) as terminal states.
func (s *Session) writePass(addr uint32, data []byte, xferSize int, willReset bool) error {
	for off := 0; off < len(data); off += xferSize {
		end := off + xferSize
		if end > len(data) {
			end = len(data)
		}
		chunkAddr := addr + uint32(off)
		if err := s.SetAddress(chunkAddr); err != nil {
			return err
		}
		if err := s.dnloadChunk(data[off:end], willReset); err != nil {
			return err
		}
	}
	return nil
}

// dnloadChunk issues one data-transfer DNLOAD at the fixed DfuSe
// transaction number and polls GETSTATUS to completion.
func (s *Session) dnloadChunk(data []byte, willReset bool) error {
	if err := s.Iface.Dnload(dfuseTransaction, data); err != nil {
		return err
	}
	for {
		status, err := s.Iface.GetStatus()
		if err != nil {
			return err
		}
		switch status.State {
		case dfu.StateDfuDnloadSync:
			s.Clock.Sleep(status.PollTimeout)
			continue
		case dfu.StateDfuDnbusy:
			if !willReset {
				s.Clock.Sleep(status.PollTimeout)
				continue
			}
			return nil
		case dfu.StateDfuDnloadIdle, dfu.StateDfuManifest:
			return nil
		case dfu.StateDfuError:
			return fmt.Errorf("dfuse: device reported dfuERROR (status %s) writing element", status.Status)
		default:
			return fmt.Errorf("dfuse: unexpected state %s writing element", status.State)
		}
	}
}

// Leave implements spec.md 4.5's leave request: SET_ADDRESS to the
// recorded address (if known) followed by a zero-length DNLOAD. Under
// the DfuSeLeave quirk, the absence of a response is tolerated.
func (s *Session) Leave(addr *uint32, tolerateNoResponse bool) error {
	if addr != nil {
		if err := s.SetAddress(*addr); err != nil {
			if tolerateNoResponse {
				return nil
			}
			return err
		}
	}
	if err := s.Iface.Dnload(dfuseTransaction, nil); err != nil {
		if tolerateNoResponse {
			return nil
		}
		return err
	}
	return nil
}
