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

// State is one step of the driver's run, replacing the original tool's
// goto-driven retry-probe and skip-to-dfu-state control flow with an
// explicit finite state machine.
type State int

const (
	Probing State = iota
	RunTimeDetected
	WaitingForDfu
	DfuReady
	Operating
	ResettingOrLeaving
	Done
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case RunTimeDetected:
		return "run-time-detected"
	case WaitingForDfu:
		return "waiting-for-dfu"
	case DfuReady:
		return "dfu-ready"
	case Operating:
		return "operating"
	case ResettingOrLeaving:
		return "resetting-or-leaving"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
