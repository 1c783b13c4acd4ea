//go:build darwin && !cgo

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"
)

func platformDefaultShell() string { return "/bin/bash" }

// start opens a PTY via /dev/ptmx directly, avoiding the cgo-only
// posix_openpt/grantpt/ptsname calls used when cgo is available.
func (s *Session) start() error {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open /dev/ptmx: %w", err)
	}

	if err := unlockptFd(master.Fd()); err != nil {
		master.Close()
		return fmt.Errorf("unlockpt: %w", err)
	}

	slaveName, err := ptsnameFd(master.Fd())
	if err != nil {
		master.Close()
		return fmt.Errorf("ptsname: %w", err)
	}

	slave, err := os.OpenFile(slaveName, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return fmt.Errorf("open slave pty %s: %w", slaveName, err)
	}

	if err := setWinsize(master.Fd(), s.Cols, s.Rows); err != nil {
		master.Close()
		slave.Close()
		return fmt.Errorf("set window size: %w", err)
	}

	cmd := exec.Command(s.Shell)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		fmt.Sprintf("COLUMNS=%d", s.Cols),
		fmt.Sprintf("LINES=%d", s.Rows),
	)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return fmt.Errorf("start shell: %w", err)
	}
	slave.Close()

	s.pty = master
	s.cmd = cmd

	go s.readLoop()
	go func() {
		err := cmd.Wait()
		if s.onClose != nil {
			s.onClose(err)
		}
	}()

	return nil
}

func (s *Session) resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pty == nil {
		return fmt.Errorf("pty: session is not active")
	}
	s.Cols = cols
	s.Rows = rows
	return setWinsize(s.pty.Fd(), cols, rows)
}

type winsize struct {
	Rows   uint16
	Cols   uint16
	Xpixel uint16
	Ypixel uint16
}

func setWinsize(fd uintptr, cols, rows uint16) error {
	ws := &winsize{Rows: rows, Cols: cols}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, syscall.TIOCSWINSZ, uintptr(unsafe.Pointer(ws)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ptsnameFd returns the slave PTY path via macOS's TIOCPTYGNAME ioctl
// (Linux's TIOCGPTN is not available here).
func ptsnameFd(fd uintptr) (string, error) {
	const tiocptygname = 0x40807441
	buf := make([]byte, 128)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, tiocptygname, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

// unlockptFd is a no-op on macOS: /dev/ptmx slaves are unlocked by
// default, there is no TIOCSPTLCK equivalent.
func unlockptFd(fd uintptr) error {
	return nil
}
