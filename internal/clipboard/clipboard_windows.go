//go:build windows

package clipboard

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	kernel32                   = syscall.NewLazyDLL("kernel32.dll")
	procOpenClipboard          = user32.NewProc("OpenClipboard")
	procCloseClipboard         = user32.NewProc("CloseClipboard")
	procEmptyClipboard         = user32.NewProc("EmptyClipboard")
	procIsClipboardFormatAvail = user32.NewProc("IsClipboardFormatAvailable")
	procGetClipboardData       = user32.NewProc("GetClipboardData")
	procSetClipboardData       = user32.NewProc("SetClipboardData")
	procGlobalAlloc            = kernel32.NewProc("GlobalAlloc")
	procGlobalLock             = kernel32.NewProc("GlobalLock")
	procGlobalUnlock           = kernel32.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002
)

// SystemProvider reads/writes the Windows clipboard's CF_UNICODETEXT
// format via the user32/kernel32 clipboard API.
type SystemProvider struct{}

// NewSystemProvider returns the Windows clipboard provider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{}
}

func openClipboard() error {
	r, _, err := procOpenClipboard.Call(0)
	if r == 0 {
		return err
	}
	return nil
}

func closeClipboard() {
	procCloseClipboard.Call()
}

func (p *SystemProvider) GetText() (string, error) {
	if err := openClipboard(); err != nil {
		return "", err
	}
	defer closeClipboard()

	r, _, _ := procIsClipboardFormatAvail.Call(cfUnicodeText)
	if r == 0 {
		return "", errors.New("clipboard: no text content available")
	}

	handle, _, err := procGetClipboardData.Call(cfUnicodeText)
	if handle == 0 {
		return "", err
	}

	locked, _, err := procGlobalLock.Call(handle)
	if locked == 0 {
		return "", err
	}
	defer procGlobalUnlock.Call(handle)

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(locked))), nil
}

func (p *SystemProvider) SetText(text string) error {
	utf16, err := windows.UTF16FromString(text)
	if err != nil {
		return err
	}
	size := uintptr(len(utf16)) * 2

	handle, _, err := procGlobalAlloc.Call(gmemMoveable, size)
	if handle == 0 {
		return err
	}

	locked, _, err := procGlobalLock.Call(handle)
	if locked == 0 {
		return err
	}
	dst := unsafe.Slice((*uint16)(unsafe.Pointer(locked)), len(utf16))
	copy(dst, utf16)
	procGlobalUnlock.Call(handle)

	if err := openClipboard(); err != nil {
		return err
	}
	defer closeClipboard()

	procEmptyClipboard.Call()
	r, _, err := procSetClipboardData.Call(cfUnicodeText, handle)
	if r == 0 {
		return err
	}
	return nil
}
