// Package viewerinput builds input-event envelope payloads for the
// viewer to forward to a session's agent. Coordinate normalization and
// the key-code/modifier space are owned by pkg/protocol, since the
// agent-side injector already expects both in that form.
package viewerinput

import "github.com/screencontrol/core/pkg/protocol"

// MouseMove builds an absolute mouse-move event. nx/ny are normalized
// to the 0..1 range against the viewer's rendered frame size.
func MouseMove(nx, ny float64) *protocol.InputEvent {
	return &protocol.InputEvent{EventKind: protocol.InputMouseMove, NormX: nx, NormY: ny}
}

// RelativeMouseMove builds a relative mouse-move event carrying raw
// pixel deltas, used when the viewer has captured the pointer.
func RelativeMouseMove(dx, dy int) *protocol.InputEvent {
	return &protocol.InputEvent{EventKind: protocol.InputRelativeMouseMove, DeltaX: dx, DeltaY: dy}
}

// MouseButton builds a mouse button press/release event at a normalized
// position. button follows the 0=left/1=middle/2=right/3=x1/4=x2
// convention the agent-side injectors expect.
func MouseButton(nx, ny float64, button int, pressed bool) *protocol.InputEvent {
	return &protocol.InputEvent{
		EventKind: protocol.InputMouseButton,
		NormX:     nx,
		NormY:     ny,
		Button:    button,
		Pressed:   pressed,
	}
}

// MouseScroll builds a scroll-wheel event.
func MouseScroll(dx, dy float64) *protocol.InputEvent {
	return &protocol.InputEvent{EventKind: protocol.InputMouseScroll, DX: dx, DY: dy}
}

// Modifiers packs the held-modifier booleans into the bitmask
// InputEvent.Modifiers carries.
func Modifiers(ctrl, alt, shift, meta bool) int {
	var m int
	if shift {
		m |= protocol.ModShift
	}
	if ctrl {
		m |= protocol.ModCtrl
	}
	if alt {
		m |= protocol.ModAlt
	}
	if meta {
		m |= protocol.ModMeta
	}
	return m
}

// KeyEvent builds a key press/release event. keyCode is a web-style
// KeyboardEvent.keyCode value (see pkg/protocol's Key* constants).
func KeyEvent(keyCode int, modifiers int, pressed bool) *protocol.InputEvent {
	return &protocol.InputEvent{
		EventKind: protocol.InputKeyEvent,
		KeyCode:   keyCode,
		Modifiers: modifiers,
		Pressed:   pressed,
	}
}
