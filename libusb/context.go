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

package libusb

// Context owns the underlying libusb session. Every enumerated Device it
// hands out must be released with Dereference, and the Context itself
// closed with Close once the session ends.
type Context struct {
	impl Intf
	ctx  *rawContext
}

// NewContext opens a libusb session using the production cgo
// implementation.
func NewContext() (*Context, error) {
	return NewContextWithImpl(Default)
}

// NewContextWithImpl opens a session against an arbitrary Intf, the
// injection point used by tests (see FakeLibusb).
func NewContextWithImpl(impl Intf) (*Context, error) {
	ctx, err := impl.Init()
	if err != nil {
		return nil, wrapError("init", err)
	}
	return &Context{impl: impl, ctx: ctx}, nil
}

// Impl exposes the underlying Intf so higher-level packages can issue
// device-scoped calls without re-threading every method through Context.
func (c *Context) Impl() Intf { return c.impl }

// Debug sets the libusb debug verbosity level (0-4, 0 being silent).
func (c *Context) Debug(level int) { c.impl.SetDebug(c.ctx, level) }

// ListDevices enumerates every device currently visible to libusb and
// returns them alongside their decoded descriptors. Callers own the
// returned devices and must Dereference each one when done.
func (c *Context) ListDevices() ([]Device, []*DeviceDescriptor, error) {
	devs, err := c.impl.GetDevices(c.ctx)
	if err != nil {
		return nil, nil, wrapError("get device list", err)
	}
	descs := make([]*DeviceDescriptor, 0, len(devs))
	for _, d := range devs {
		desc, err := c.impl.GetDeviceDescriptor(d)
		if err != nil {
			return devs, descs, wrapError("get device descriptor", err)
		}
		descs = append(descs, desc)
	}
	return devs, descs, nil
}

// Dereference releases a Device obtained from ListDevices.
func (c *Context) Dereference(d Device) { c.impl.Dereference(d) }

// Close tears down the libusb session.
func (c *Context) Close() error {
	c.impl.Exit(c.ctx)
	c.ctx = nil
	return nil
}
