//go:build darwin && cgo

package pty

/*
#include <stdlib.h>
#include <fcntl.h>
#include <unistd.h>
#include <sys/ioctl.h>
*/
import "C"

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"
)

func platformDefaultShell() string { return "/bin/bash" }

func (s *Session) start() error {
	masterFd, err := C.posix_openpt(C.O_RDWR)
	if masterFd < 0 || err != nil {
		return fmt.Errorf("posix_openpt: %w", err)
	}

	if rc := C.grantpt(masterFd); rc != 0 {
		C.close(masterFd)
		return fmt.Errorf("grantpt failed")
	}
	if rc := C.unlockpt(masterFd); rc != 0 {
		C.close(masterFd)
		return fmt.Errorf("unlockpt failed")
	}

	cName := C.ptsname(masterFd)
	if cName == nil {
		C.close(masterFd)
		return fmt.Errorf("ptsname returned nil")
	}
	slaveName := C.GoString(cName)

	master := os.NewFile(uintptr(masterFd), "/dev/ptmx")
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
