//go:build windows

package cloudflared

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedProcAttr keeps the tunnel process from inheriting or opening a
// console window and detaches it from this process.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.DETACHED_PROCESS,
	}
}
