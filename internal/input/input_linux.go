//go:build linux

package input

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/screencontrol/core/pkg/protocol"
)

// xdotoolInjector drives input via the xdotool CLI against the X11
// display the agent session is running in.
type xdotoolInjector struct{}

// NewInjector returns the Linux xdotool-backed Injector.
func NewInjector() Injector { return &xdotoolInjector{} }

func (x *xdotoolInjector) MouseMove(px, py int) error {
	return exec.Command("xdotool", "mousemove", strconv.Itoa(px), strconv.Itoa(py)).Run()
}

func (x *xdotoolInjector) MouseButton(px, py, button int, pressed bool) error {
	if err := x.MouseMove(px, py); err != nil {
		return err
	}
	btn := xdotoolButton(button)
	if pressed {
		return exec.Command("xdotool", "mousedown", btn).Run()
	}
	return exec.Command("xdotool", "mouseup", btn).Run()
}

func (x *xdotoolInjector) Scroll(px, py int, dx, dy float64) error {
	if err := x.MouseMove(px, py); err != nil {
		return err
	}
	if dy != 0 {
		button := "4" // wheel up
		clicks := int(dy)
		if clicks < 0 {
			button = "5" // wheel down
			clicks = -clicks
		}
		for i := 0; i < clicks; i++ {
			if err := exec.Command("xdotool", "click", button).Run(); err != nil {
				return err
			}
		}
	}
	if dx != 0 {
		button := "6" // wheel left
		clicks := int(dx)
		if clicks < 0 {
			button = "7" // wheel right
			clicks = -clicks
		}
		for i := 0; i < clicks; i++ {
			if err := exec.Command("xdotool", "click", button).Run(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *xdotoolInjector) RelativeMouseMove(dx, dy int) error {
	return exec.Command("xdotool", "mousemove_relative", "--", strconv.Itoa(dx), strconv.Itoa(dy)).Run()
}

func (x *xdotoolInjector) KeyEvent(keyCode int, modifiers int, pressed bool) error {
	name, ok := xdotoolKeyName(keyCode)
	if !ok {
		return fmt.Errorf("input: unmapped key code %d", keyCode)
	}
	if pressed {
		return exec.Command("xdotool", "keydown", name).Run()
	}
	return exec.Command("xdotool", "keyup", name).Run()
}

func xdotoolButton(button int) string {
	switch button {
	case 1:
		return "2" // middle
	case 2:
		return "3" // right
	default:
		return "1" // left
	}
}

// xdotoolKeyName translates a web-style keyCode (protocol.Key*) into the
// X keysym name xdotool expects.
func xdotoolKeyName(code int) (string, bool) {
	switch code {
	case protocol.KeyBackspace:
		return "BackSpace", true
	case protocol.KeyTab:
		return "Tab", true
	case protocol.KeyEnter:
		return "Return", true
	case protocol.KeyShift:
		return "Shift_L", true
	case protocol.KeyCtrl:
		return "Control_L", true
	case protocol.KeyAlt:
		return "Alt_L", true
	case protocol.KeyPause:
		return "Pause", true
	case protocol.KeyCapsLock:
		return "Caps_Lock", true
	case protocol.KeyEscape:
		return "Escape", true
	case protocol.KeySpace:
		return "space", true
	case protocol.KeyPageUp:
		return "Page_Up", true
	case protocol.KeyPageDown:
		return "Page_Down", true
	case protocol.KeyEnd:
		return "End", true
	case protocol.KeyHome:
		return "Home", true
	case protocol.KeyLeft:
		return "Left", true
	case protocol.KeyUp:
		return "Up", true
	case protocol.KeyRight:
		return "Right", true
	case protocol.KeyDown:
		return "Down", true
	case protocol.KeyPrintScreen:
		return "Print", true
	case protocol.KeyInsert:
		return "Insert", true
	case protocol.KeyDelete:
		return "Delete", true
	case protocol.KeyMeta:
		return "Super_L", true
	case protocol.KeyNumLock:
		return "Num_Lock", true
	case protocol.KeyScrollLock:
		return "Scroll_Lock", true
	case protocol.KeySemicolon:
		return "semicolon", true
	case protocol.KeyEquals:
		return "equal", true
	case protocol.KeyComma:
		return "comma", true
	case protocol.KeyMinus:
		return "minus", true
	case protocol.KeyPeriod:
		return "period", true
	case protocol.KeySlash:
		return "slash", true
	case protocol.KeyBackquote:
		return "grave", true
	case protocol.KeyBracketLeft:
		return "bracketleft", true
	case protocol.KeyBackslash:
		return "backslash", true
	case protocol.KeyBracketRight:
		return "bracketright", true
	case protocol.KeyQuote:
		return "apostrophe", true
	}

	switch {
	case code >= protocol.Key0 && code <= protocol.Key9:
		return string(rune('0' + (code - protocol.Key0))), true
	case code >= protocol.KeyA && code <= protocol.KeyZ:
		return string(rune('a' + (code - protocol.KeyA))), true
	case code >= protocol.KeyF1 && code <= protocol.KeyF12:
		return fmt.Sprintf("F%d", 1+(code-protocol.KeyF1)), true
	case code >= protocol.KeyNumpad0 && code <= protocol.KeyNumpad9:
		return fmt.Sprintf("KP_%d", code-protocol.KeyNumpad0), true
	}

	return "", false
}
