// Package doctor runs local diagnostics: binary availability, stop-tooling
// presence, profile store health, and stale process beliefs.
package doctor

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"

	"cftunnel/internal/appconfig"
	"cftunnel/internal/cloudflared"
	"cftunnel/internal/model"
	"cftunnel/internal/profile"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// Run executes local diagnostics for cftunnel operations.
func Run() (Report, error) {
	var issues []Issue

	baseDir, err := appconfig.BaseDir()
	if err != nil {
		return Report{}, err
	}

	if _, ok := cloudflared.Locate(baseDir); !ok {
		rec := "run `cftunnel download`, or place cloudflared next to the program"
		if _, serr := cloudflared.AssetSuffix(runtime.GOOS, runtime.GOARCH); serr != nil {
			rec = "no release asset for this platform; build or install cloudflared manually"
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "cloudflared-binary",
			Target:         "PATH",
			Message:        "cloudflared not found (bundled or on PATH)",
			Recommendation: rec,
		})
	}

	if runtime.GOOS != "windows" {
		if _, err := exec.LookPath("lsof"); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Check:          "port-lookup-tool",
				Target:         "PATH",
				Message:        "lsof not found; stop cannot locate tunnel processes by port",
				Recommendation: "install lsof (e.g. apt install lsof)",
			})
		}
	}

	path, err := appconfig.ProfileFilePath()
	if err != nil {
		return Report{}, err
	}
	store := profile.NewStore(path)
	if err := store.Load(); err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityMedium,
			Check:          "profile-store",
			Target:         path,
			Message:        err.Error(),
			Recommendation: "fix or remove the malformed config.json",
		})
	} else {
		issues = append(issues, duplicatePortIssues(store.All())...)
		issues = append(issues, stalePIDIssues(store.All())...)
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		return issues[i].Target < issues[j].Target
	})
	return Report{Issues: issues}, nil
}

func duplicatePortIssues(profiles []model.Profile) []Issue {
	seen := map[int][]string{}
	for _, p := range profiles {
		seen[p.LocalPort] = append(seen[p.LocalPort], p.Name)
	}
	var issues []Issue
	for port, names := range seen {
		if len(names) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "duplicate-local-port",
			Target:         fmt.Sprintf("localhost:%d", port),
			Message:        fmt.Sprintf("local port is configured by %d profiles", len(names)),
			Recommendation: "use unique local ports so stop-by-port hits the right process",
		})
	}
	return issues
}

func stalePIDIssues(profiles []model.Profile) []Issue {
	var issues []Issue
	for _, p := range profiles {
		if p.ProcessPID != 0 && !processAlive(p.ProcessPID) {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "stale-pid",
				Target:         p.Name,
				Message:        fmt.Sprintf("recorded pid %d is not running", p.ProcessPID),
				Recommendation: "run `cftunnel stop " + p.Name + "` to sync the stored state",
			})
		}
	}
	return issues
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}
