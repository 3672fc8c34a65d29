// ABOUTME: Unix process attributes for spawned capability servers
// ABOUTME: Daemon children get their own process group so REPL signals do not reach them

//go:build !windows

package daemon

import "syscall"

func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
