// Package profile owns the tunnel profile collection and its on-disk JSON
// form, including load-time migration of legacy record shapes.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cftunnel/internal/errs"
	"cftunnel/internal/model"
	"cftunnel/internal/util"
)

// Store holds the in-memory profile collection. Order is insertion order and
// is preserved across save/load. Callers mutate through Add/Update/Remove/
// SetPID and call Save afterward; the store never writes implicitly.
type Store struct {
	path     string
	profiles []model.Profile
}

// NewStore creates a store backed by the given file path. Call Load before use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// envelope is the persisted root: {"tunnels": [...]}.
type envelope struct {
	Tunnels []record `json:"tunnels"`
}

// record is the on-disk profile shape, including legacy fields that the
// load-time migration consumes and drops.
type record struct {
	Name       string   `json:"name"`
	Protocol   string   `json:"protocol,omitempty"`
	Hostname   string   `json:"hostname"`
	LocalPort  *int     `json:"local_port,omitempty"`
	ProcessPID *int     `json:"process_pid,omitempty"`
	URL        string   `json:"url,omitempty"`           // legacy
	LocalAddr  string   `json:"local_address,omitempty"` // legacy, dropped
	RemotePort *int     `json:"remote_port,omitempty"`   // legacy, dropped
}

// Load reads the backing file if present. A missing file yields an empty
// collection and no error. On a read or parse failure the collection is
// reset to empty and a PersistenceError is returned; callers report it and
// keep running. Both the current {"tunnels": [...]} envelope and the legacy
// bare-array root are accepted.
func (s *Store) Load() error {
	s.profiles = nil
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &errs.PersistenceError{Op: "load", Path: s.path, Err: err}
	}

	records, err := decodeRecords(b)
	if err != nil {
		return &errs.PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	for _, r := range records {
		s.profiles = append(s.profiles, migrate(r))
	}
	return nil
}

func decodeRecords(b []byte) ([]record, error) {
	// Try the envelope form first, then the legacy bare array.
	var env envelope
	if err := json.Unmarshal(b, &env); err == nil {
		return env.Tunnels, nil
	}
	var arr []record
	if err := json.Unmarshal(b, &arr); err != nil {
		return nil, fmt.Errorf("unrecognized config root: %w", err)
	}
	return arr, nil
}

// migrate converts one on-disk record to the current profile shape.
// Applying it to an already-migrated record is a no-op.
func migrate(r record) model.Profile {
	p := model.Profile{
		Name:     r.Name,
		Hostname: r.Hostname,
	}
	// Only a missing local_port gets the default. An explicit 0 is kept so
	// starting the profile still fails with a configuration error.
	switch {
	case r.LocalPort != nil:
		p.LocalPort = *r.LocalPort
	case r.URL != "":
		p.LocalPort = portFromLegacyURL(r.URL)
	default:
		p.LocalPort = model.DefaultLocalPort
	}
	// Legacy url/local_address/remote_port are dropped here by not copying.
	if proto, err := model.ParseProtocol(r.Protocol); err == nil {
		p.Protocol = proto
	} else {
		p.Protocol = model.DefaultProtocol
	}
	if r.ProcessPID != nil {
		p.ProcessPID = *r.ProcessPID
	}
	return p
}

// portFromLegacyURL extracts the trailing :port segment of a legacy url
// field ("rdp://host:4000" -> 4000), defaulting on parse failure.
func portFromLegacyURL(url string) int {
	idx := strings.LastIndex(url, ":")
	if idx < 0 {
		return model.DefaultLocalPort
	}
	port, err := strconv.Atoi(url[idx+1:])
	if err != nil || util.ValidatePort(port) != nil {
		return model.DefaultLocalPort
	}
	return port
}

// Save serializes the collection under the {"tunnels": [...]} envelope,
// indented, overwriting the backing file. On failure the prior on-disk
// content is left as-is and the in-memory state is not rolled back.
func (s *Store) Save() error {
	env := envelope{Tunnels: make([]record, 0, len(s.profiles))}
	for _, p := range s.profiles {
		r := record{
			Name:      p.Name,
			Protocol:  string(p.Protocol),
			Hostname:  p.Hostname,
			LocalPort: intPtr(p.LocalPort),
		}
		if p.ProcessPID != 0 {
			r.ProcessPID = intPtr(p.ProcessPID)
		}
		env.Tunnels = append(env.Tunnels, r)
	}
	b, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return &errs.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, append(b, '\n'), 0o644); err != nil {
		return &errs.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func intPtr(v int) *int { return &v }

// All returns a copy of the collection in insertion order.
func (s *Store) All() []model.Profile {
	out := make([]model.Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Len returns the number of profiles.
func (s *Store) Len() int { return len(s.profiles) }

// Get returns the profile at index i.
func (s *Store) Get(i int) (model.Profile, error) {
	if i < 0 || i >= len(s.profiles) {
		return model.Profile{}, fmt.Errorf("profile index %d out of range", i)
	}
	return s.profiles[i], nil
}

// FindByName returns the index of the first profile with the given name.
func (s *Store) FindByName(name string) (int, bool) {
	for i, p := range s.profiles {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Add appends a profile, rejecting duplicate names.
func (s *Store) Add(p model.Profile) error {
	if err := validate(p); err != nil {
		return err
	}
	if _, ok := s.FindByName(p.Name); ok {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateName, p.Name)
	}
	s.profiles = append(s.profiles, p)
	return nil
}

// Update replaces the profile at index i. Renaming to a name held by a
// different profile is rejected; renaming to the current name is allowed.
func (s *Store) Update(i int, p model.Profile) error {
	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("profile index %d out of range", i)
	}
	if err := validate(p); err != nil {
		return err
	}
	if j, ok := s.FindByName(p.Name); ok && j != i {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateName, p.Name)
	}
	s.profiles[i] = p
	return nil
}

// Remove deletes the profile at index i.
func (s *Store) Remove(i int) error {
	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("profile index %d out of range", i)
	}
	s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
	return nil
}

// SetPID records or clears (pid 0) the process belief for profile i.
func (s *Store) SetPID(i, pid int) error {
	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("profile index %d out of range", i)
	}
	s.profiles[i].ProcessPID = pid
	return nil
}

func validate(p model.Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return &errs.ConfigError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(p.Hostname) == "" {
		return &errs.ConfigError{Field: "hostname", Reason: "is required"}
	}
	if err := util.ValidatePort(p.LocalPort); err != nil {
		return &errs.ConfigError{Field: "local_port", Reason: err.Error()}
	}
	if _, err := model.ParseProtocol(string(p.Protocol)); err != nil {
		return &errs.ConfigError{Field: "protocol", Reason: err.Error()}
	}
	return nil
}
