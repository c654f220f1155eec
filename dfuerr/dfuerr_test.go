package dfuerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", New(Usage, "bad flag"), 64},
		{"data", New(Data, "bad dfuse file"), 65},
		{"not found", New(NotFound, "no device"), 66},
		{"software", New(Software, "oom"), 70},
		{"permission", New(Permission, "access denied"), 73},
		{"io", New(IO, "usb gone"), 74},
		{"protocol", New(Protocol, "unexpected state"), 76},
		{"wrapped", fmt.Errorf("context: %w", New(Protocol, "stuck")), 76},
		{"unclassified", errors.New("boom"), 1},
	}
	for _, tc := range tests {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("%s: ExitCode() = %d, want %d", tc.name, got, tc.want)
		}
	}
}
