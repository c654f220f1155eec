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

// #cgo pkg-config: libusb-1.0
// #include <libusb.h>
import "C"

import (
	"reflect"
	"time"
	"unsafe"
)

// cgoImpl implements Intf using the real cgo-wrapped libusb-1.0. It is the
// production Default; tests substitute FakeLibusb instead.
type cgoImpl struct{}

func (cgoImpl) Init() (*rawContext, error) {
	var ctx *C.libusb_context
	if errno := C.libusb_init(&ctx); errno < 0 {
		return nil, errorFromErrno(int(errno))
	}
	return (*rawContext)(unsafe.Pointer(ctx)), nil
}

func (cgoImpl) Exit(c *rawContext) {
	C.libusb_exit((*C.libusb_context)(unsafe.Pointer(c)))
}

func (cgoImpl) SetDebug(c *rawContext, level int) {
	C.libusb_set_debug((*C.libusb_context)(unsafe.Pointer(c)), C.int(level))
}

func (cgoImpl) GetDevices(c *rawContext) ([]Device, error) {
	var list **C.libusb_device
	cnt := C.libusb_get_device_list((*C.libusb_context)(unsafe.Pointer(c)), &list)
	if cnt < 0 {
		return nil, errorFromErrno(int(cnt))
	}
	defer C.libusb_free_device_list(list, 0)

	var raw []*C.libusb_device
	*(*reflect.SliceHeader)(unsafe.Pointer(&raw)) = reflect.SliceHeader{
		Data: uintptr(unsafe.Pointer(list)),
		Len:  int(cnt),
		Cap:  int(cnt),
	}
	devs := make([]Device, 0, len(raw))
	for _, d := range raw {
		C.libusb_ref_device(d)
		devs = append(devs, Device(unsafe.Pointer(d)))
	}
	return devs, nil
}

func (cgoImpl) Reference(d Device) Device {
	C.libusb_ref_device((*C.libusb_device)(unsafe.Pointer(d)))
	return d
}

func (cgoImpl) Dereference(d Device) {
	C.libusb_unref_device((*C.libusb_device)(unsafe.Pointer(d)))
}

func sliceBytes(ptr unsafe.Pointer, n int) []byte {
	if n == 0 || ptr == nil {
		return nil
	}
	var s []byte
	*(*reflect.SliceHeader)(unsafe.Pointer(&s)) = reflect.SliceHeader{
		Data: uintptr(ptr),
		Len:  n,
		Cap:  n,
	}
	out := make([]byte, n)
	copy(out, s)
	return out
}

func (cgoImpl) GetDeviceDescriptor(d Device) (*DeviceDescriptor, error) {
	cdev := (*C.libusb_device)(unsafe.Pointer(d))
	var desc C.struct_libusb_device_descriptor
	if errno := C.libusb_get_device_descriptor(cdev, &desc); errno < 0 {
		return nil, errorFromErrno(int(errno))
	}

	var portNumbers [8]C.uint8_t
	n := C.libusb_get_port_numbers(cdev, &portNumbers[0], C.int(len(portNumbers)))
	var ports []uint8
	for i := 0; i < int(n); i++ {
		ports = append(ports, uint8(portNumbers[i]))
	}

	dd := &DeviceDescriptor{
		Bus:            uint8(C.libusb_get_bus_number(cdev)),
		Address:        uint8(C.libusb_get_device_address(cdev)),
		PortNumbers:    ports,
		Spec:           uint16(desc.bcdUSB),
		Device:         uint16(desc.bcdDevice),
		Vendor:         uint16(desc.idVendor),
		Product:        uint16(desc.idProduct),
		Class:          uint8(desc.bDeviceClass),
		SubClass:       uint8(desc.bDeviceSubClass),
		Protocol:       uint8(desc.bDeviceProtocol),
		MaxPacketSize0: uint8(desc.bMaxPacketSize0),
		NumConfigs:     uint8(desc.bNumConfigurations),
		ISerialNumber:  uint8(desc.iSerialNumber),
	}

	for i := 0; i < int(desc.bNumConfigurations); i++ {
		var cfg *C.struct_libusb_config_descriptor
		if errno := C.libusb_get_config_descriptor(cdev, C.uint8_t(i), &cfg); errno < 0 {
			return nil, errorFromErrno(int(errno))
		}
		dd.Configs = append(dd.Configs, decodeConfig(cfg))
		C.libusb_free_config_descriptor(cfg)
	}
	return dd, nil
}

func decodeConfig(cfg *C.struct_libusb_config_descriptor) ConfigDescriptor {
	c := ConfigDescriptor{
		Value:      uint8(cfg.bConfigurationValue),
		Attributes: uint8(cfg.bmAttributes),
		MaxPower:   uint8(cfg.MaxPower),
		Extra:      sliceBytes(unsafe.Pointer(cfg.extra), int(cfg.extra_length)),
	}

	var cifaces []C.struct_libusb_interface
	*(*reflect.SliceHeader)(unsafe.Pointer(&cifaces)) = reflect.SliceHeader{
		Data: uintptr(unsafe.Pointer(cfg._interface)),
		Len:  int(cfg.bNumInterfaces),
		Cap:  int(cfg.bNumInterfaces),
	}

	for _, iface := range cifaces {
		if iface.num_altsetting == 0 {
			continue
		}
		var alts []C.struct_libusb_interface_descriptor
		*(*reflect.SliceHeader)(unsafe.Pointer(&alts)) = reflect.SliceHeader{
			Data: uintptr(unsafe.Pointer(iface.altsetting)),
			Len:  int(iface.num_altsetting),
			Cap:  int(iface.num_altsetting),
		}
		info := InterfaceInfo{Number: uint8(alts[0].bInterfaceNumber)}
		for _, alt := range alts {
			id := InterfaceDescriptor{
				Number:     uint8(alt.bInterfaceNumber),
				Alternate:  uint8(alt.bAlternateSetting),
				Class:      uint8(alt.bInterfaceClass),
				SubClass:   uint8(alt.bInterfaceSubClass),
				Protocol:   uint8(alt.bInterfaceProtocol),
				IInterface: uint8(alt.iInterface),
				Extra:      sliceBytes(unsafe.Pointer(alt.extra), int(alt.extra_length)),
			}
			var ends []C.struct_libusb_endpoint_descriptor
			*(*reflect.SliceHeader)(unsafe.Pointer(&ends)) = reflect.SliceHeader{
				Data: uintptr(unsafe.Pointer(alt.endpoint)),
				Len:  int(alt.bNumEndpoints),
				Cap:  int(alt.bNumEndpoints),
			}
			for _, end := range ends {
				id.Endpoints = append(id.Endpoints, EndpointDescriptor{
					Address:       uint8(end.bEndpointAddress),
					Attributes:    uint8(end.bmAttributes),
					MaxPacketSize: uint16(end.wMaxPacketSize),
					Interval:      uint8(end.bInterval),
				})
			}
			info.Altsets = append(info.Altsets, id)
		}
		c.Interfaces = append(c.Interfaces, info)
	}
	return c
}

func (cgoImpl) Open(d Device) (DevHandle, error) {
	var handle *C.libusb_device_handle
	if errno := C.libusb_open((*C.libusb_device)(unsafe.Pointer(d)), &handle); errno < 0 {
		return nil, errorFromErrno(int(errno))
	}
	return DevHandle(unsafe.Pointer(handle)), nil
}

func (cgoImpl) Close(h DevHandle) {
	C.libusb_close((*C.libusb_device_handle)(unsafe.Pointer(h)))
}

func (cgoImpl) Reset(h DevHandle) error {
	return errorFromErrno(int(C.libusb_reset_device((*C.libusb_device_handle)(unsafe.Pointer(h)))))
}

func (cgoImpl) Control(h DevHandle, timeout time.Duration, rType, request uint8, val, idx uint16, data []byte) (int, error) {
	var ptr *C.uchar
	if len(data) > 0 {
		ptr = (*C.uchar)(unsafe.Pointer(&data[0]))
	}
	n := C.libusb_control_transfer(
		(*C.libusb_device_handle)(unsafe.Pointer(h)),
		C.uint8_t(rType), C.uint8_t(request), C.uint16_t(val), C.uint16_t(idx),
		ptr, C.uint16_t(len(data)), C.uint(timeout/time.Millisecond))
	if n < 0 {
		return 0, errorFromErrno(int(n))
	}
	return int(n), nil
}

func (cgoImpl) GetDescriptor(h DevHandle, timeout time.Duration, descType, index uint8, wIndex uint16, data []byte) (int, error) {
	// GET_DESCRIPTOR is a standard-type, device-recipient control read;
	// descType/index combine into wValue per USB 2.0 9.4.3.
	return cgoImpl{}.Control(h, timeout, 0x80, 0x06, uint16(descType)<<8|uint16(index), wIndex, data)
}

func (cgoImpl) GetConfig(h DevHandle) (uint8, error) {
	var cfg C.int
	if errno := C.libusb_get_configuration((*C.libusb_device_handle)(unsafe.Pointer(h)), &cfg); errno < 0 {
		return 0, errorFromErrno(int(errno))
	}
	return uint8(cfg), nil
}

func (cgoImpl) SetConfig(h DevHandle, cfg uint8) error {
	return errorFromErrno(int(C.libusb_set_configuration((*C.libusb_device_handle)(unsafe.Pointer(h)), C.int(cfg))))
}

func (cgoImpl) GetStringDescriptorRaw(h DevHandle, index uint8, langID uint16, data []byte) (int, error) {
	n := C.libusb_get_string_descriptor(
		(*C.libusb_device_handle)(unsafe.Pointer(h)),
		C.uint8_t(index), C.uint16_t(langID),
		(*C.uchar)(unsafe.Pointer(&data[0])), C.int(len(data)))
	if n < 0 {
		return 0, errorFromErrno(int(n))
	}
	return int(n), nil
}

func (cgoImpl) Claim(h DevHandle, iface uint8) error {
	return errorFromErrno(int(C.libusb_claim_interface((*C.libusb_device_handle)(unsafe.Pointer(h)), C.int(iface))))
}

func (cgoImpl) Release(h DevHandle, iface uint8) {
	C.libusb_release_interface((*C.libusb_device_handle)(unsafe.Pointer(h)), C.int(iface))
}

func (cgoImpl) SetInterfaceAltSetting(h DevHandle, iface, alt uint8) error {
	return errorFromErrno(int(C.libusb_set_interface_alt_setting((*C.libusb_device_handle)(unsafe.Pointer(h)), C.int(iface), C.int(alt))))
}
