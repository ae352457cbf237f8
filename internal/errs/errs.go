// Package errs defines the error taxonomy shared by the store, the tunnel
// controller, and both front ends. Sentinel errors cover the conditions the
// CLI maps to exit codes; structured types carry context for display.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a profile name did not resolve.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicateName means an add or rename collided with an existing profile.
	ErrDuplicateName = errors.New("profile name already exists")
	// ErrBinaryUnavailable means cloudflared is missing and the download was
	// declined or failed.
	ErrBinaryUnavailable = errors.New("cloudflared binary unavailable")
	// ErrLookupToolMissing means the port-to-process lookup utility (lsof) is
	// not installed, so a port-based stop cannot proceed.
	ErrLookupToolMissing = errors.New("lsof not found; cannot locate tunnel process by port")
)

// ConfigError reports a profile field that is missing or invalid for the
// requested operation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// SpawnError reports a tunnel process launch failure other than a missing binary.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TerminationError reports a kill that failed for a reason other than the
// target already being gone.
type TerminationError struct {
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("failed to terminate pid %d: %v", e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// PersistenceError reports a read or write failure on a state file. The
// application keeps running with best-effort in-memory state when one occurs.
type PersistenceError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UnsupportedPlatformError means no release asset mapping exists for the
// current OS/architecture pair. It is raised before any network access.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no cloudflared release for %s/%s; download it manually", e.OS, e.Arch)
}
