//go:build linux

package input

import (
	"testing"

	"github.com/screencontrol/core/pkg/protocol"
)

func TestXdotoolKeyNameKnownKeys(t *testing.T) {
	cases := map[int]string{
		protocol.KeyEnter:     "Return",
		protocol.KeyA:         "a",
		protocol.KeyZ:         "z",
		protocol.Key0:         "0",
		protocol.Key9:         "9",
		protocol.KeyF1:        "F1",
		protocol.KeyF12:       "F12",
		protocol.KeyNumpad0:   "KP_0",
		protocol.KeySpace:     "space",
	}
	for code, want := range cases {
		got, ok := xdotoolKeyName(code)
		if !ok {
			t.Errorf("xdotoolKeyName(%d): not mapped", code)
			continue
		}
		if got != want {
			t.Errorf("xdotoolKeyName(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestXdotoolKeyNameUnmapped(t *testing.T) {
	if _, ok := xdotoolKeyName(-1); ok {
		t.Fatal("expected unmapped key code to return false")
	}
}

func TestXdotoolButtonMapping(t *testing.T) {
	if xdotoolButton(0) != "1" {
		t.Error("left button should map to 1")
	}
	if xdotoolButton(1) != "2" {
		t.Error("middle button should map to 2")
	}
	if xdotoolButton(2) != "3" {
		t.Error("right button should map to 3")
	}
}
