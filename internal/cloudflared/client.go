// Package cloudflared launches and locates the cloudflared binary; it does
// NOT implement any tunneling itself. Tunnels are created by shelling out to
// "cloudflared access", which carries the actual protocol work.
//
// All arguments are passed via exec.Command's argv (no shell interpolation),
// so hostnames or profile names containing shell metacharacters are inert.
package cloudflared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"cftunnel/internal/errs"
	"cftunnel/internal/model"
)

// BinaryName returns the platform-specific binary file name.
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "cloudflared.exe"
	}
	return "cloudflared"
}

// Locate resolves the cloudflared binary: first a copy bundled in baseDir
// alongside the program, then the name on the OS executable search path.
func Locate(baseDir string) (string, bool) {
	bundled := filepath.Join(baseDir, BinaryName())
	if _, err := os.Stat(bundled); err == nil {
		return bundled, true
	}
	if path, err := exec.LookPath(BinaryName()); err == nil {
		return path, true
	}
	return "", false
}

// BuildAccessArgs composes the argv for one tunnel, without starting
// anything. Kept separate so argument composition is testable on its own.
//
// Contract: access <protocol> --hostname <hostname> --url <proto>://localhost:<port>
func BuildAccessArgs(p model.Profile) []string {
	return []string{
		"access",
		string(p.Protocol),
		"--hostname", p.Hostname,
		"--url", p.LocalURL(),
	}
}

// Runner spawns cloudflared access processes for tunnel profiles.
type Runner struct {
	Binary string
}

// NewRunner creates a runner bound to a resolved binary path.
func NewRunner(binary string) *Runner { return &Runner{Binary: binary} }

// Launch starts a detached cloudflared access process for the profile and
// returns its PID. The process outlives this call; the controller only
// observes and signals it afterward. A missing binary at invocation time is
// reported as ErrBinaryUnavailable, distinct from a generic SpawnError.
func (r *Runner) Launch(p model.Profile) (int, error) {
	cmd := exec.Command(r.Binary, BuildAccessArgs(p)...)
	// No stdio: the tunnel process is fire-and-forget.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", errs.ErrBinaryUnavailable, filepath.Base(r.Binary))
		}
		return 0, &errs.SpawnError{Binary: filepath.Base(r.Binary), Err: err}
	}

	pid := cmd.Process.Pid
	// Release the handle: the controller never reaps the process, it is
	// tracked by PID (or by listening port) from here on.
	_ = cmd.Process.Release()
	return pid, nil
}
