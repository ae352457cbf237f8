//go:build !windows

package cloudflared

import "syscall"

// detachedProcAttr detaches the tunnel process into its own session so it
// survives the manager exiting and never touches the controlling terminal.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
