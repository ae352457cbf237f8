//go:build windows

package doctor

import "os"

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// os.FindProcess opens a handle on Windows and fails for dead PIDs.
	_, err := os.FindProcess(pid)
	return err == nil
}
