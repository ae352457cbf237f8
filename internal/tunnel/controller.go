// Package tunnel starts and stops cloudflared access processes for profiles,
// reconciling believed state (the stored PID) against the actual OS state.
package tunnel

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"cftunnel/internal/appconfig"
	"cftunnel/internal/cloudflared"
	"cftunnel/internal/errs"
	"cftunnel/internal/events"
	"cftunnel/internal/history"
	"cftunnel/internal/model"
	"cftunnel/internal/msg"
	"cftunnel/internal/profile"
)

// Launcher abstracts tunnel process creation for testing.
type Launcher interface {
	Launch(p model.Profile) (int, error)
}

// Controller owns the tunnel process lifecycle for one profile store. It is
// driven by one user action at a time; the front ends serialize calls.
type Controller struct {
	store   *profile.Store
	ui      msg.Messenger
	journal *events.Store
	stopper Stopper

	baseDir    string
	releaseURL string
	progress   cloudflared.Progress

	binary      string
	newLauncher func(binary string) Launcher
}

// NewController builds a controller over the given store. The stop strategy
// is resolved once here, keyed by the target OS.
func NewController(store *profile.Store, ui msg.Messenger, cfg appconfig.Config) (*Controller, error) {
	dir, err := appconfig.BaseDir()
	if err != nil {
		return nil, err
	}
	return &Controller{
		store:      store,
		ui:         ui,
		journal:    events.NewStore(),
		stopper:    stopperFor(runtime.GOOS),
		baseDir:    dir,
		releaseURL: cfg.Download.BaseURL,
		newLauncher: func(binary string) Launcher {
			return cloudflared.NewRunner(binary)
		},
	}, nil
}

// SetProgress installs the download progress callback for interactive use.
// The callback must be safe to invoke from the download goroutine.
func (c *Controller) SetProgress(p cloudflared.Progress) { c.progress = p }

// EnsureAvailable resolves the cloudflared binary: bundled copy, then PATH,
// then, with the user's consent, a download from the release source. The
// download runs on one background goroutine and this call blocks on its
// result channel.
func (c *Controller) EnsureAvailable() (string, error) {
	if c.binary != "" {
		return c.binary, nil
	}
	if path, ok := cloudflared.Locate(c.baseDir); ok {
		c.binary = path
		return path, nil
	}

	if !c.ui.Confirm("cloudflared", "cloudflared was not found. Download it from the official release now?") {
		return "", errs.ErrBinaryUnavailable
	}

	res := <-cloudflared.DownloadAsync(c.releaseURL, c.baseDir, c.progress)
	if res.Err != nil {
		c.appendEvent(events.Event{EventType: events.TypeDownloadFailed, Message: res.Err.Error()})
		c.ui.Error("Download", res.Err.Error())
		return "", fmt.Errorf("%w: %v", errs.ErrBinaryUnavailable, res.Err)
	}
	c.appendEvent(events.Event{EventType: events.TypeDownloadSucceeded, Message: res.Path})
	c.ui.Info("Download", "cloudflared downloaded to "+res.Path)
	c.binary = res.Path
	return c.binary, nil
}

// Start launches a tunnel for the profile at store index i and records the
// spawned PID. On any failure the PID belief is left unset.
func (c *Controller) Start(i int) error {
	p, err := c.store.Get(i)
	if err != nil {
		return err
	}

	// The binary is resolved first; a portless profile only surfaces its
	// configuration error once cloudflared is in place.
	binary, err := c.EnsureAvailable()
	if err != nil {
		return err
	}
	if p.LocalPort == 0 {
		return &errs.ConfigError{Field: "local_port", Reason: "is not set; cannot start the tunnel"}
	}

	pid, err := c.newLauncher(binary).Launch(p)
	if err != nil {
		c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeStartFailed, Message: err.Error()})
		return err
	}

	if err := c.store.SetPID(i, pid); err != nil {
		return err
	}
	c.saveQuiet()
	if err := history.Touch(p.Name); err != nil {
		slog.Warn("failed to record start history", "profile", p.Name, "error", err)
	}
	c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeStartSucceeded, PID: pid})
	c.ui.Info("Tunnel", fmt.Sprintf("tunnel %s started (pid %d)", p.Name, pid))
	return nil
}

// Stop terminates the tunnel for the profile at store index i. "Already
// stopped" is a normal terminal state, not an error: the PID belief is
// cleared and the call succeeds. Any other termination failure leaves the
// stored state unchanged so the caller may retry.
func (c *Controller) Stop(i int) error {
	p, err := c.store.Get(i)
	if err != nil {
		return err
	}

	target, err := c.stopper.FindTarget(p)
	if err != nil {
		c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeStopFailed, Message: err.Error()})
		return err
	}
	if target == 0 {
		if p.ProcessPID != 0 {
			if err := c.store.SetPID(i, 0); err != nil {
				return err
			}
			c.saveQuiet()
		}
		c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeAlreadyStopped})
		c.ui.Info("Tunnel", fmt.Sprintf("tunnel %s is already stopped", p.Name))
		return nil
	}

	gone, err := c.stopper.Kill(target)
	if err != nil {
		c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeStopFailed, PID: target, Message: err.Error()})
		return err
	}

	if err := c.store.SetPID(i, 0); err != nil {
		return err
	}
	c.saveQuiet()
	c.appendEvent(events.Event{Profile: p.Name, EventType: events.TypeStopSucceeded, PID: target})
	if gone {
		// Process exited between lookup and kill; state is synced anyway.
		c.ui.Info("Tunnel", fmt.Sprintf("tunnel %s process was already gone; state synced", p.Name))
	} else {
		c.ui.Info("Tunnel", fmt.Sprintf("tunnel %s stopped", p.Name))
	}
	return nil
}

// StopAll stops every profile believed running. Used for shutdown
// reconciliation; the caller gates it behind a user confirmation.
func (c *Controller) StopAll() error {
	var failures []error
	for i, p := range c.store.All() {
		if !p.Running() {
			continue
		}
		if err := c.Stop(i); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	return errors.Join(failures...)
}

func (c *Controller) saveQuiet() {
	if err := c.store.Save(); err != nil {
		slog.Warn("failed to persist profiles", "error", err)
		c.ui.Error("Config", err.Error())
	}
}

func (c *Controller) appendEvent(evt events.Event) {
	if err := c.journal.Append(evt); err != nil {
		slog.Warn("failed to append event", "type", evt.EventType, "error", err)
	}
}
