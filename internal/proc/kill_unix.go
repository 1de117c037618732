//go:build unix

package proc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr places the subprocess in its own process group so a forced
// kill can take its descendants down with it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killTree signals the subprocess's entire process group.
func killTree(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}
