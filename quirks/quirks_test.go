package quirks

import "testing"

func TestFor(t *testing.T) {
	tests := []struct {
		name            string
		vendor, product uint16
		bcdDevice       uint16
		want            Mask
	}{
		{"stm32h7 dfuse", 0x0483, 0xdf11, 0x0200, DfuSeLayout | DfuSeLeave},
		{"gd32vf103 utf8 serial", 0x28e9, 0x0189, 0x0100, UTF8Serial},
		{"unknown device", 0xdead, 0xbeef, 0x0100, 0},
	}
	for _, tc := range tests {
		if got := For(tc.vendor, tc.product, tc.bcdDevice); got != tc.want {
			t.Errorf("%s: For() = %#x, want %#x", tc.name, got, tc.want)
		}
	}
}
