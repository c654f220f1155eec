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

// Package dfuerr classifies failures into the kinds the driver and CLI
// need to pick a sysexits(3)-style process exit code.
package dfuerr

import "fmt"

// Kind identifies the category of a failure.
type Kind int

const (
	Usage Kind = iota
	NotFound
	IO
	Protocol
	Data
	Software
	Permission
)

// ExitCode maps a Kind to the sysexits.h code spec.md's external
// interfaces section specifies.
func (k Kind) ExitCode() int {
	switch k {
	case Usage:
		return 64
	case Data:
		return 65
	case NotFound:
		return 66
	case Software:
		return 70
	case Permission:
		return 73
	case IO:
		return 74
	case Protocol:
		return 76
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case NotFound:
		return "not found"
	case IO:
		return "i/o"
	case Protocol:
		return "protocol"
	case Data:
		return "data"
	case Software:
		return "software"
	case Permission:
		return "permission"
	default:
		return "unknown"
	}
}

// Error wraps a cause with the Kind used to pick a process exit code.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// New creates a Kind-tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Newf creates a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, msg: msg, err: err}
}

// ExitCode extracts the sysexits code for err, defaulting to 1 (the shell
// convention for an unclassified failure) when err was not produced by
// this package.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	for unwrapped := err; unwrapped != nil; {
		if ee, ok := unwrapped.(*Error); ok {
			e = ee
			break
		}
		u, ok := unwrapped.(interface{ Unwrap() error })
		if !ok {
			break
		}
		unwrapped = u.Unwrap()
	}
	if e == nil {
		return 1
	}
	return e.Kind.ExitCode()
}
