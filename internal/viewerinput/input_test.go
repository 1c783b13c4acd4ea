package viewerinput

import (
	"testing"

	"github.com/screencontrol/core/pkg/protocol"
)

func TestModifiersPacksBitmask(t *testing.T) {
	got := Modifiers(true, true, false, false)
	want := protocol.ModCtrl | protocol.ModAlt
	if got != want {
		t.Fatalf("Modifiers(ctrl,alt) = %d, want %d", got, want)
	}
}

func TestKeyEventCarriesFields(t *testing.T) {
	ev := KeyEvent(protocol.KeyA, protocol.ModShift, true)
	if ev.EventKind != protocol.InputKeyEvent {
		t.Fatalf("unexpected kind: %v", ev.EventKind)
	}
	if ev.KeyCode != protocol.KeyA || ev.Modifiers != protocol.ModShift || !ev.Pressed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestMouseButtonCarriesPosition(t *testing.T) {
	ev := MouseButton(0.5, 0.25, 2, true)
	if ev.EventKind != protocol.InputMouseButton {
		t.Fatalf("unexpected kind: %v", ev.EventKind)
	}
	if ev.NormX != 0.5 || ev.NormY != 0.25 || ev.Button != 2 || !ev.Pressed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
