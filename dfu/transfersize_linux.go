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

//go:build linux

package dfu

import "golang.org/x/sys/unix"

// kernelTransferSizeClamp mirrors the real dfu-util's uname()-gated
// usbfs URB clamp: only a confirmed Linux kernel gets the 4096-byte
// ceiling from spec.md 4.3.
func kernelTransferSizeClamp() int {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return 0
	}
	return LinuxTransferSizeClamp
}
