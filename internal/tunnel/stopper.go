package tunnel

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"cftunnel/internal/errs"
	"cftunnel/internal/model"
)

// Stopper is the per-OS strategy for reconciling and terminating a tunnel
// process. FindTarget resolves the OS process to kill (0 when none is
// running); Kill force-terminates it, reporting gone=true when the target
// vanished between lookup and kill.
type Stopper interface {
	FindTarget(p model.Profile) (int, error)
	Kill(pid int) (gone bool, err error)
}

// stopStrategies is keyed by GOOS; platforms without an entry use the
// port-lookup strategy. Resolved once at controller construction.
var stopStrategies = map[string]Stopper{
	"windows": &pidStopper{},
}

func stopperFor(goos string) Stopper {
	if s, ok := stopStrategies[goos]; ok {
		return s
	}
	return &portStopper{}
}

// portStopper locates the kill target by asking the OS who listens on the
// profile's local port. The stored PID is not trusted here: cloudflared may
// fork or re-exec, leaving the recorded PID pointing at a dead parent.
type portStopper struct{}

func (portStopper) FindTarget(p model.Profile) (int, error) {
	if p.LocalPort == 0 {
		return 0, &errs.ConfigError{Field: "local_port", Reason: "is not set; cannot locate the tunnel process"}
	}
	if _, err := exec.LookPath("lsof"); err != nil {
		return 0, errs.ErrLookupToolMissing
	}
	out, err := exec.Command("lsof", "-i", fmt.Sprintf(":%d", p.LocalPort), "-t").Output()
	if err != nil {
		// lsof exits non-zero when nothing listens on the port.
		return 0, nil
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, nil
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

func (portStopper) Kill(pid int) (bool, error) {
	out, err := exec.Command("kill", "-9", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "no such process") {
			return true, nil
		}
		return false, &errs.TerminationError{PID: pid, Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))}
	}
	return false, nil
}

// pidStopper trusts the PID recorded at spawn time. No liveness probe is
// performed before the kill; taskkill reporting a missing process is
// normalized to "already stopped" instead.
type pidStopper struct{}

func (pidStopper) FindTarget(p model.Profile) (int, error) {
	return p.ProcessPID, nil
}

func (pidStopper) Kill(pid int) (bool, error) {
	out, err := exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "not found") {
			return true, nil
		}
		return false, &errs.TerminationError{PID: pid, Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))}
	}
	return false, nil
}
