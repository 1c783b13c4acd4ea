//go:build windows

package input

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	user32           = syscall.NewLazyDLL("user32.dll")
	procSendInput    = user32.NewProc("SendInput")
	procSetCursorPos = user32.NewProc("SetCursorPos")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfMove      = 0x0001
	mouseeventfLeftDown  = 0x0002
	mouseeventfLeftUp    = 0x0004
	mouseeventfRightDown = 0x0008
	mouseeventfRightUp   = 0x0010
	mouseeventfMidDown   = 0x0020
	mouseeventfMidUp     = 0x0040
	mouseeventfWheel     = 0x0800
	mouseeventfHWheel    = 0x01000

	keyeventfKeyUp = 0x0002

	wheelDelta = 120
)

type mouseInput struct {
	dx, dy    int32
	mouseData uint32
	dwFlags   uint32
	time      uint32
	extraInfo uintptr
}

type keybdInput struct {
	vk        uint16
	scan      uint16
	dwFlags   uint32
	time      uint32
	extraInfo uintptr
}

// input mirrors the Win32 INPUT struct: a type tag followed by the
// largest union member (MOUSEINPUT, at 32 bytes on amd64). SendInput
// validates cbSize against the real sizeof(INPUT) and fails the call on
// a mismatch, so the keyboard variant is built by overlaying a
// keybdInput onto the same union bytes via unsafe.Pointer rather than
// declaring a second, differently-sized struct.
type input struct {
	typ uint32
	mi  mouseInput
}

// winInjector drives input via the Win32 SendInput/SetCursorPos APIs.
type winInjector struct{}

// NewInjector returns the Windows SendInput-backed Injector.
func NewInjector() Injector { return &winInjector{} }

func sendMouseInput(dwFlags uint32, dx, dy int32, mouseData uint32) error {
	in := input{
		typ: inputMouse,
		mi: mouseInput{
			dx:        dx,
			dy:        dy,
			mouseData: mouseData,
			dwFlags:   dwFlags,
		},
	}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret == 0 {
		return fmt.Errorf("input: SendInput mouse: %w", err)
	}
	return nil
}

func sendKeyInput(vk uint16, keyUp bool) error {
	flags := uint32(0)
	if keyUp {
		flags = keyeventfKeyUp
	}

	var in input
	in.typ = inputKeyboard
	kb := (*keybdInput)(unsafe.Pointer(&in.mi))
	*kb = keybdInput{vk: vk, dwFlags: flags}

	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret == 0 {
		return fmt.Errorf("input: SendInput keyboard: %w", err)
	}
	return nil
}

func (w *winInjector) MouseMove(px, py int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(px), uintptr(py))
	if ret == 0 {
		return fmt.Errorf("input: SetCursorPos: %w", err)
	}
	return nil
}

func (w *winInjector) MouseButton(px, py, button int, pressed bool) error {
	if err := w.MouseMove(px, py); err != nil {
		return err
	}
	var down, up uint32
	switch button {
	case 1:
		down, up = mouseeventfMidDown, mouseeventfMidUp
	case 2:
		down, up = mouseeventfRightDown, mouseeventfRightUp
	default:
		down, up = mouseeventfLeftDown, mouseeventfLeftUp
	}
	flags := up
	if pressed {
		flags = down
	}
	return sendMouseInput(flags, 0, 0, 0)
}

func (w *winInjector) Scroll(px, py int, dx, dy float64) error {
	if err := w.MouseMove(px, py); err != nil {
		return err
	}
	if dy != 0 {
		if err := sendMouseInput(mouseeventfWheel, 0, 0, uint32(int32(dy*wheelDelta))); err != nil {
			return err
		}
	}
	if dx != 0 {
		if err := sendMouseInput(mouseeventfHWheel, 0, 0, uint32(int32(dx*wheelDelta))); err != nil {
			return err
		}
	}
	return nil
}

func (w *winInjector) RelativeMouseMove(dx, dy int) error {
	return sendMouseInput(mouseeventfMove, int32(dx), int32(dy), 0)
}

// KeyEvent uses keyCode directly as the virtual-key code: web-style
// keyCodes already line up with Win32 VK_* values for letters, digits,
// function keys, and navigation keys, so no translation table is needed.
func (w *winInjector) KeyEvent(keyCode int, modifiers int, pressed bool) error {
	return sendKeyInput(uint16(keyCode), !pressed)
}
