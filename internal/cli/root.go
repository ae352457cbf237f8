// Package cli provides the command-line interface for cftunnel.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"cftunnel/internal/appconfig"
	"cftunnel/internal/cloudflared"
	"cftunnel/internal/doctor"
	"cftunnel/internal/errs"
	"cftunnel/internal/events"
	"cftunnel/internal/history"
	"cftunnel/internal/model"
	"cftunnel/internal/msg"
	"cftunnel/internal/profile"
	"cftunnel/internal/tunnel"
	"cftunnel/internal/ui"
	"cftunnel/internal/util"
)

// NewRootCommand creates the root cobra command. With no subcommand it
// launches the TUI dashboard on a terminal and falls back to "list"
// otherwise; --cli forces the fallback, --gui forces the dashboard.
func NewRootCommand() *cobra.Command {
	var forceCLI, forceGUI bool
	root := &cobra.Command{
		Use:           "cftunnel",
		Short:         "Cloudflare access tunnel profile manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			useGUI := forceGUI || (!forceCLI && isatty.IsTerminal(os.Stdout.Fd()))
			if useGUI {
				return ui.Run()
			}
			return listProfiles(false)
		},
	}
	root.Flags().BoolVar(&forceCLI, "cli", false, "force the non-interactive profile listing")
	root.Flags().BoolVar(&forceGUI, "gui", false, "force the dashboard even without a terminal")

	root.AddCommand(
		newListCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newStartCmd(),
		newStopCmd(),
		newDownloadCmd(),
		newDoctorCmd(),
		newEventsCmd(),
	)
	return root
}

// openStore loads the profile store, reporting (not raising) load failures
// per the persistence policy: the command keeps running on an empty
// collection.
func openStore(reporter msg.Messenger) (*profile.Store, error) {
	path, err := appconfig.ProfileFilePath()
	if err != nil {
		return nil, err
	}
	store := profile.NewStore(path)
	if err := store.Load(); err != nil {
		reporter.Error("Config", err.Error())
	}
	return store, nil
}

func openController() (*profile.Store, *tunnel.Controller, error) {
	messenger := msg.NewConsole(os.Stdin, os.Stdout, os.Stderr)
	store, err := openStore(messenger)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := appconfig.Load()
	if err != nil {
		messenger.Error("Config", err.Error())
		cfg = appconfig.Default()
	}
	ctrl, err := tunnel.NewController(store, messenger, cfg)
	if err != nil {
		return nil, nil, err
	}
	ctrl.SetProgress(consoleProgress())
	return store, ctrl, nil
}

func requireIndex(store *profile.Store, name string) (int, error) {
	i, ok := store.FindByName(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrNotFound, name)
	}
	return i, nil
}

func newListCmd() *cobra.Command {
	var recent bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tunnel profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProfiles(recent)
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "sort by last started")
	return cmd
}

func listProfiles(recent bool) error {
	store, err := openStore(msg.NewConsole(os.Stdin, os.Stdout, os.Stderr))
	if err != nil {
		return err
	}
	profiles := store.All()
	if len(profiles) == 0 {
		fmt.Println("no tunnel profiles configured")
		return nil
	}
	if recent {
		lastStarted, err := history.LastStarted()
		if err != nil {
			return err
		}
		profiles = history.SortRecent(profiles, lastStarted)
	}
	fmt.Printf("%-20s %-9s %-30s %-11s %-9s %s\n", "NAME", "PROTOCOL", "HOSTNAME", "LOCAL PORT", "STATUS", "PID")
	for _, p := range profiles {
		pid := ""
		if p.Running() {
			pid = strconv.Itoa(p.ProcessPID)
		}
		fmt.Printf("%-20s %-9s %-30s %-11d %-9s %s\n", p.Name, p.Protocol, p.Hostname, p.LocalPort, p.Status(), util.EmptyDash(pid))
	}
	return nil
}

func newAddCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "add <name> <hostname> <local_port>",
		Short: "Add a new tunnel profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("local port must be a number: %q", args[2])
			}
			proto, err := model.ParseProtocol(protocol)
			if err != nil {
				return err
			}
			store, err := openStore(msg.NewConsole(os.Stdin, os.Stdout, os.Stderr))
			if err != nil {
				return err
			}
			p := model.Profile{Name: args[0], Protocol: proto, Hostname: args[1], LocalPort: port}
			if err := store.Add(p); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Printf("tunnel %s added\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", string(model.DefaultProtocol), "remote service protocol (rdp, tcp, http, https, smb, ssh)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var newName, hostname, protocol string
	var localPort int
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a tunnel profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(msg.NewConsole(os.Stdin, os.Stdout, os.Stderr))
			if err != nil {
				return err
			}
			i, err := requireIndex(store, args[0])
			if err != nil {
				return err
			}
			p, err := store.Get(i)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("new-name") {
				p.Name = newName
			}
			if cmd.Flags().Changed("hostname") {
				p.Hostname = hostname
			}
			if cmd.Flags().Changed("local-port") {
				p.LocalPort = localPort
			}
			if cmd.Flags().Changed("protocol") {
				proto, err := model.ParseProtocol(protocol)
				if err != nil {
					return err
				}
				p.Protocol = proto
			}
			if err := store.Update(i, p); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Printf("tunnel %s updated\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&newName, "new-name", "", "rename the profile")
	cmd.Flags().StringVar(&hostname, "hostname", "", "new remote hostname")
	cmd.Flags().IntVar(&localPort, "local-port", 0, "new local port")
	cmd.Flags().StringVar(&protocol, "protocol", "", "new protocol")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a tunnel profile, stopping its process first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctrl, err := openController()
			if err != nil {
				return err
			}
			i, err := requireIndex(store, args[0])
			if err != nil {
				return err
			}
			p, err := store.Get(i)
			if err != nil {
				return err
			}
			if p.Running() {
				if err := ctrl.Stop(i); err != nil {
					// The profile is removed regardless; the process may
					// need a manual kill.
					fmt.Fprintf(os.Stderr, "stop before delete failed: %v\n", err)
				}
			}
			if err := store.Remove(i); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Printf("tunnel %s deleted\n", p.Name)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start the tunnel process for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctrl, err := openController()
			if err != nil {
				return err
			}
			i, err := requireIndex(store, args[0])
			if err != nil {
				return err
			}
			return ctrl.Start(i)
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop the tunnel process for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctrl, err := openController()
			if err != nil {
				return err
			}
			i, err := requireIndex(store, args[0])
			if err != nil {
				return err
			}
			return ctrl.Stop(i)
		},
	}
}

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the cloudflared binary for this platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load()
			if err != nil {
				cfg = appconfig.Default()
			}
			dir, err := appconfig.BaseDir()
			if err != nil {
				return err
			}
			res := <-cloudflared.DownloadAsync(cfg.Download.BaseURL, dir, consoleProgress())
			fmt.Println()
			if res.Err != nil {
				return res.Err
			}
			fmt.Printf("cloudflared downloaded to %s\n", res.Path)
			return nil
		},
	}
}

// consoleProgress renders a carriage-return refreshed download meter.
func consoleProgress() cloudflared.Progress {
	return func(downloaded, total int64) {
		if total > 0 {
			percent := float64(downloaded) * 100 / float64(total)
			if percent > 100 {
				percent = 100
			}
			fmt.Fprintf(os.Stderr, "\rdownloading cloudflared: %5.1f%% (%d/%d KB)", percent, downloaded/1024, total/1024)
		} else {
			fmt.Fprintf(os.Stderr, "\rdownloading cloudflared: %d KB (total size unknown)", downloaded/1024)
		}
	}
}

func newDoctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local tunnel environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := doctor.Run()
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if len(report.Issues) == 0 {
				fmt.Println("no issues found")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Printf("[%s] %s %s: %s (%s)\n", issue.Severity, issue.Check, issue.Target, issue.Message, issue.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var name, eventType string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the tunnel lifecycle journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := events.NewStore()
			evts, err := store.Read(events.Query{Profile: name, EventType: eventType, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(evts)
			}
			for _, evt := range evts {
				pid := ""
				if evt.PID != 0 {
					pid = fmt.Sprintf(" pid=%d", evt.PID)
				}
				line := fmt.Sprintf("%s %-19s %s%s", evt.Timestamp.Format(time.RFC3339), evt.EventType, util.EmptyDash(evt.Profile), pid)
				if evt.Message != "" {
					line += " " + evt.Message
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter by profile name")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by event type")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the most recent N events")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
