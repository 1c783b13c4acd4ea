//go:build !linux && !darwin && !windows

package input

import "fmt"

type unsupportedInjector struct{}

// NewInjector returns a stub Injector on platforms with no input backend.
func NewInjector() Injector { return &unsupportedInjector{} }

var errUnsupported = fmt.Errorf("input: not supported on this platform")

func (u *unsupportedInjector) MouseMove(x, y int) error                     { return errUnsupported }
func (u *unsupportedInjector) MouseButton(x, y, b int, pressed bool) error  { return errUnsupported }
func (u *unsupportedInjector) Scroll(x, y int, dx, dy float64) error        { return errUnsupported }
func (u *unsupportedInjector) RelativeMouseMove(dx, dy int) error           { return errUnsupported }
func (u *unsupportedInjector) KeyEvent(keyCode, modifiers int, p bool) error { return errUnsupported }
