//go:build windows

package ipc

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PeerCredentials is the verified identity of an IPC peer. UID is
// always 0 on Windows; SID is the canonical identity.
type PeerCredentials struct {
	PID        int
	UID        uint32
	BinaryPath string
	SID        string
}

var (
	modkernel32                      = windows.NewLazySystemDLL("kernel32.dll")
	procGetNamedPipeClientProcessId  = modkernel32.NewProc("GetNamedPipeClientProcessId")
)

// handleConn is satisfied by go-winio's named pipe connections.
type handleConn interface {
	Fd() uintptr
}

// GetPeerCredentials resolves the connecting process's PID via
// GetNamedPipeClientProcessId, then its binary path and token SID via
// OpenProcess/OpenProcessToken.
func GetPeerCredentials(conn net.Conn) (*PeerCredentials, error) {
	hc, ok := conn.(handleConn)
	if !ok {
		return nil, fmt.Errorf("ipc: connection does not expose a pipe handle")
	}
	handle := hc.Fd()

	var clientPID uint32
	r1, _, err := procGetNamedPipeClientProcessId.Call(handle, uintptr(unsafe.Pointer(&clientPID)))
	if r1 == 0 {
		return nil, fmt.Errorf("ipc: GetNamedPipeClientProcessId: %w", err)
	}

	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, clientPID)
	if err != nil {
		return nil, fmt.Errorf("ipc: OpenProcess(%d): %w", clientPID, err)
	}
	defer windows.CloseHandle(proc)

	var pathBuf [windows.MAX_PATH]uint16
	pathLen := uint32(len(pathBuf))
	if err := windows.QueryFullProcessImageName(proc, 0, &pathBuf[0], &pathLen); err != nil {
		return nil, fmt.Errorf("ipc: QueryFullProcessImageName: %w", err)
	}
	binaryPath := syscall.UTF16ToString(pathBuf[:pathLen])

	var token windows.Token
	if err := windows.OpenProcessToken(proc, windows.TOKEN_QUERY, &token); err != nil {
		return nil, fmt.Errorf("ipc: OpenProcessToken: %w", err)
	}
	defer token.Close()

	tokenUser, err := token.GetTokenUser()
	if err != nil {
		return nil, fmt.Errorf("ipc: GetTokenUser: %w", err)
	}

	return &PeerCredentials{
		PID:        int(clientPID),
		BinaryPath: binaryPath,
		SID:        tokenUser.User.Sid.String(),
	}, nil
}

// IdentityKey is the token SID.
func (p *PeerCredentials) IdentityKey() string { return p.SID }

// DefaultSocketPath is the named pipe the agent service listens on.
func DefaultSocketPath() string {
	return `\\.\pipe\screencontrol-agent-ipc`
}
