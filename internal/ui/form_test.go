package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"cftunnel/internal/model"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func typeText(f *profileForm, text string) {
	for _, r := range text {
		f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestFormAddDefaults(t *testing.T) {
	f := newProfileForm(-1, model.Profile{})
	if f.title() != "Add Tunnel" {
		t.Fatalf("unexpected title: %s", f.title())
	}
	if got := f.fields[fieldLocalPort].Value(); got != "3389" {
		t.Fatalf("local port must default, got %q", got)
	}

	typeText(f, "office")
	f.update(key("tab"))
	typeText(f, "rdp.example.com")

	res, _ := f.update(key("enter"))
	if res == nil {
		t.Fatalf("expected a result, err=%s", f.errMsg)
	}
	p := res.profile
	if p.Name != "office" || p.Hostname != "rdp.example.com" || p.LocalPort != 3389 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Protocol != model.DefaultProtocol {
		t.Fatalf("protocol must default, got %q", p.Protocol)
	}
	if res.editIdx != -1 {
		t.Fatalf("add must report editIdx -1, got %d", res.editIdx)
	}
}

func TestFormEditPrefillsAndKeepsPID(t *testing.T) {
	existing := model.Profile{
		Name:       "office",
		Protocol:   model.ProtocolHTTPS,
		Hostname:   "app.example.com",
		LocalPort:  8443,
		ProcessPID: 4242,
	}
	f := newProfileForm(2, existing)
	if f.title() != "Edit Tunnel" {
		t.Fatalf("unexpected title: %s", f.title())
	}
	if got := f.fields[fieldHostname].Value(); got != "app.example.com" {
		t.Fatalf("hostname not prefilled: %q", got)
	}

	res, _ := f.update(key("enter"))
	if res == nil {
		t.Fatalf("expected a result, err=%s", f.errMsg)
	}
	if res.editIdx != 2 {
		t.Fatalf("expected editIdx 2, got %d", res.editIdx)
	}
	if res.profile.ProcessPID != 4242 {
		t.Fatal("editing must not clobber the running pid")
	}
	if res.profile.Protocol != model.ProtocolHTTPS {
		t.Fatalf("protocol not preserved: %q", res.profile.Protocol)
	}
}

func TestFormProtocolCycling(t *testing.T) {
	f := newProfileForm(-1, model.Profile{})
	f.update(key("right"))
	if got := model.Protocols()[f.protoIdx]; got != model.ProtocolTCP {
		t.Fatalf("expected tcp after one right, got %q", got)
	}
	f.update(key("left"))
	f.update(key("left"))
	// Wraps around to the end of the list.
	protos := model.Protocols()
	if got := protos[f.protoIdx]; got != protos[len(protos)-1] {
		t.Fatalf("left from first must wrap, got %q", got)
	}
}

func TestFormValidation(t *testing.T) {
	f := newProfileForm(-1, model.Profile{})

	// Empty name.
	res, _ := f.update(key("enter"))
	if res != nil {
		t.Fatal("expected validation failure for empty name")
	}
	if !strings.Contains(f.errMsg, "name") {
		t.Fatalf("unexpected error: %s", f.errMsg)
	}

	typeText(f, "office")
	res, _ = f.update(key("enter"))
	if res != nil {
		t.Fatal("expected validation failure for empty hostname")
	}
	if !strings.Contains(f.errMsg, "hostname") {
		t.Fatalf("unexpected error: %s", f.errMsg)
	}

	f.update(key("tab"))
	typeText(f, "rdp.example.com")
	f.update(key("tab"))
	f.fields[fieldLocalPort].SetValue("99999")
	res, _ = f.update(key("enter"))
	if res != nil {
		t.Fatal("expected validation failure for out-of-range port")
	}
	if !strings.Contains(f.errMsg, "1-65535") {
		t.Fatalf("unexpected error: %s", f.errMsg)
	}

	f.fields[fieldLocalPort].SetValue("8443")
	res, _ = f.update(key("enter"))
	if res == nil {
		t.Fatalf("expected success after fixing the port, err=%s", f.errMsg)
	}
}

func TestFormViewMarksFocusAndProtocol(t *testing.T) {
	f := newProfileForm(-1, model.Profile{})
	out := f.view()
	if !strings.Contains(out, "> Name:") {
		t.Fatalf("focused field not marked:\n%s", out)
	}
	if !strings.Contains(out, "[rdp]") {
		t.Fatalf("selected protocol not marked:\n%s", out)
	}
}
