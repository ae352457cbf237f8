package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cftunnel/internal/model"
	"cftunnel/internal/util"
)

// Field indices for the profile form.
const (
	fieldName = iota
	fieldHostname
	fieldLocalPort
	fieldCount
)

// formResult is returned when the user submits the form.
type formResult struct {
	profile model.Profile
	// editIdx is the store index being edited, or -1 for an add.
	editIdx int
}

// profileForm holds all state for the add/edit profile screen. The protocol
// is an enum cycled with left/right rather than typed.
type profileForm struct {
	fields   []textinput.Model
	focusIdx int
	protoIdx int
	editIdx  int
	// pid carried through an edit so saving does not clobber a running tunnel.
	pid    int
	errMsg string
}

// newProfileForm creates a form, prefilled from existing when editing
// (editIdx >= 0) or with the usual defaults for an add.
func newProfileForm(editIdx int, existing model.Profile) *profileForm {
	f := &profileForm{editIdx: editIdx, pid: existing.ProcessPID}

	placeholders := []string{
		"office (required)",
		"rdp.example.com (required)",
		strconv.Itoa(model.DefaultLocalPort),
	}
	limits := []int{64, 256, 6}

	f.fields = make([]textinput.Model, fieldCount)
	for i := range f.fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 40
		f.fields[i] = ti
	}

	if editIdx >= 0 {
		f.fields[fieldName].SetValue(existing.Name)
		f.fields[fieldHostname].SetValue(existing.Hostname)
		f.fields[fieldLocalPort].SetValue(strconv.Itoa(existing.LocalPort))
		for i, p := range model.Protocols() {
			if p == existing.Protocol {
				f.protoIdx = i
			}
		}
	} else {
		f.fields[fieldLocalPort].SetValue(strconv.Itoa(model.DefaultLocalPort))
	}

	f.fields[0].Focus()
	return f
}

// update processes a key message and returns a formResult when complete.
func (f *profileForm) update(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "down", "up":
		f.fields[f.focusIdx].Blur()
		if msg.String() == "tab" || msg.String() == "down" {
			f.focusIdx = (f.focusIdx + 1) % fieldCount
		} else {
			f.focusIdx = (f.focusIdx - 1 + fieldCount) % fieldCount
		}
		f.fields[f.focusIdx].Focus()
		return nil, f.fields[f.focusIdx].Cursor.BlinkCmd()
	case "left", "right":
		n := len(model.Protocols())
		if msg.String() == "right" {
			f.protoIdx = (f.protoIdx + 1) % n
		} else {
			f.protoIdx = (f.protoIdx - 1 + n) % n
		}
		return nil, nil
	case "enter":
		p, err := f.buildProfile()
		if err != nil {
			f.errMsg = err.Error()
			return nil, nil
		}
		return &formResult{profile: p, editIdx: f.editIdx}, nil
	default:
		var cmd tea.Cmd
		f.fields[f.focusIdx], cmd = f.fields[f.focusIdx].Update(msg)
		f.errMsg = ""
		return nil, cmd
	}
}

func (f *profileForm) buildProfile() (model.Profile, error) {
	name := strings.TrimSpace(f.fields[fieldName].Value())
	hostname := strings.TrimSpace(f.fields[fieldHostname].Value())
	portStr := strings.TrimSpace(f.fields[fieldLocalPort].Value())

	if name == "" {
		return model.Profile{}, fmt.Errorf("name is required")
	}
	if hostname == "" {
		return model.Profile{}, fmt.Errorf("hostname is required")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || util.ValidatePort(port) != nil {
		return model.Profile{}, fmt.Errorf("local port must be 1-65535")
	}

	return model.Profile{
		Name:       name,
		Protocol:   model.Protocols()[f.protoIdx],
		Hostname:   hostname,
		LocalPort:  port,
		ProcessPID: f.pid,
	}, nil
}

// view renders the form panel body.
func (f *profileForm) view() string {
	labels := []string{"Name:", "Hostname:", "Local port:"}

	var b strings.Builder
	for i, label := range labels {
		cursor := "  "
		if i == f.focusIdx {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-12s %s\n", cursor, label, f.fields[i].View()))
	}

	b.WriteString("\n  Protocol:    ")
	for i, p := range model.Protocols() {
		if i == f.protoIdx {
			b.WriteString(fmt.Sprintf("[%s] ", p))
		} else {
			b.WriteString(fmt.Sprintf(" %s  ", p))
		}
	}
	b.WriteString("\n")

	if f.errMsg != "" {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString("\n" + errStyle.Render("Error: "+f.errMsg) + "\n")
	}

	b.WriteString("\nTab navigate | Left/Right protocol | Enter save | Esc cancel")
	return b.String()
}

func (f *profileForm) title() string {
	if f.editIdx >= 0 {
		return "Edit Tunnel"
	}
	return "Add Tunnel"
}
