//go:build windows

package sessionbroker

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsDetector struct{}

// NewSessionDetector returns a Windows session detector backed by the
// WTS (Windows Terminal Services) session enumeration API.
func NewSessionDetector() SessionDetector { return &windowsDetector{} }

var (
	modWtsapi32              = windows.NewLazySystemDLL("wtsapi32.dll")
	procWTSEnumerateSessions = modWtsapi32.NewProc("WTSEnumerateSessionsW")
	procWTSFreeMemory        = modWtsapi32.NewProc("WTSFreeMemory")
	procWTSQuerySessionInfo  = modWtsapi32.NewProc("WTSQuerySessionInformationW")
)

const (
	wtsCurrentServerHandle = 0
	wtsUserName            = 5
)

type wtsSessionInfo struct {
	SessionID      uint32
	WinStationName *uint16
	State          uint32
}

func (d *windowsDetector) ListSessions() ([]DetectedSession, error) {
	var sessionInfo uintptr
	var count uint32

	r1, _, err := procWTSEnumerateSessions.Call(
		wtsCurrentServerHandle, 0, 1,
		uintptr(unsafe.Pointer(&sessionInfo)),
		uintptr(unsafe.Pointer(&count)),
	)
	if r1 == 0 {
		return nil, fmt.Errorf("sessionbroker: WTSEnumerateSessions: %w", err)
	}
	defer procWTSFreeMemory.Call(sessionInfo)

	var sessions []DetectedSession
	size := unsafe.Sizeof(wtsSessionInfo{})

	for i := uint32(0); i < count; i++ {
		info := (*wtsSessionInfo)(unsafe.Pointer(sessionInfo + uintptr(i)*size))

		// Session 0 hosts services, not an interactive desktop; skip
		// it along with listener sessions (WTSListen = 6).
		if info.SessionID == 0 || info.State == 6 {
			continue
		}
		// Only active (0) or disconnected (4) sessions have a desktop
		// worth prompting into.
		if info.State != 0 && info.State != 4 {
			continue
		}

		username := d.querySessionString(info.SessionID, wtsUserName)
		if username == "" {
			continue
		}

		sessions = append(sessions, DetectedSession{
			Username: username,
			Session:  fmt.Sprintf("%d", info.SessionID),
			State:    wtsStateString(info.State),
			Display:  "windows",
		})
	}

	return sessions, nil
}

func (d *windowsDetector) querySessionString(sessionID uint32, infoClass uint32) string {
	var buf uintptr
	var bytesReturned uint32

	r1, _, _ := procWTSQuerySessionInfo.Call(
		wtsCurrentServerHandle,
		uintptr(sessionID),
		uintptr(infoClass),
		uintptr(unsafe.Pointer(&buf)),
		uintptr(unsafe.Pointer(&bytesReturned)),
	)
	if r1 == 0 || buf == 0 {
		return ""
	}
	defer procWTSFreeMemory.Call(buf)

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(buf)))
}

func wtsStateString(state uint32) string {
	switch state {
	case 0:
		return "active"
	case 4:
		return "disconnected"
	default:
		return "unknown"
	}
}
