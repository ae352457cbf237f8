// Package model defines the tunnel profile data model shared by the store,
// the controller, and both front ends.
package model

import "fmt"

// Protocol is the remote service protocol a tunnel carries.
type Protocol string

const (
	ProtocolRDP   Protocol = "rdp"
	ProtocolTCP   Protocol = "tcp"
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolSMB   Protocol = "smb"
	ProtocolSSH   Protocol = "ssh"
)

// DefaultProtocol is applied to records that predate the protocol field.
const DefaultProtocol = ProtocolRDP

// DefaultLocalPort is the fallback local port for legacy records (RDP).
const DefaultLocalPort = 3389

// Protocols lists all accepted protocol values, in display order.
func Protocols() []Protocol {
	return []Protocol{ProtocolRDP, ProtocolTCP, ProtocolHTTP, ProtocolHTTPS, ProtocolSMB, ProtocolSSH}
}

// ParseProtocol validates a user-supplied protocol string.
func ParseProtocol(s string) (Protocol, error) {
	for _, p := range Protocols() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol %q (valid: rdp, tcp, http, https, smb, ssh)", s)
}

// Profile is one named local-port-to-remote-host tunnel configuration.
//
// ProcessPID is a belief, not a guarantee: it is recorded when a tunnel
// process is spawned and cleared on stop, but the process may die externally
// without the field being updated. Stop reconciles belief against the OS.
type Profile struct {
	Name      string   `json:"name"`
	Protocol  Protocol `json:"protocol"`
	Hostname  string   `json:"hostname"`
	LocalPort int      `json:"local_port"`
	// ProcessPID is 0 while the tunnel is believed stopped; the field is
	// omitted from the persisted form in that case.
	ProcessPID int `json:"process_pid,omitempty"`
}

// Running reports whether the profile is believed to have a live process.
func (p Profile) Running() bool { return p.ProcessPID != 0 }

// Status returns the display status derived from the PID belief.
func (p Profile) Status() string {
	if p.Running() {
		return "running"
	}
	return "stopped"
}

// LocalURL is the listen address handed to cloudflared via --url.
func (p Profile) LocalURL() string {
	return fmt.Sprintf("%s://localhost:%d", p.Protocol, p.LocalPort)
}
