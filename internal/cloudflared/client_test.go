package cloudflared

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"cftunnel/internal/errs"
	"cftunnel/internal/model"
)

func TestBuildAccessArgs(t *testing.T) {
	p := model.Profile{
		Name:      "office",
		Protocol:  model.ProtocolRDP,
		Hostname:  "rdp.example.com",
		LocalPort: 3389,
	}
	want := []string{"access", "rdp", "--hostname", "rdp.example.com", "--url", "rdp://localhost:3389"}
	if got := BuildAccessArgs(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestBuildAccessArgsKeepsMetacharactersInert(t *testing.T) {
	p := model.Profile{
		Name:      "tricky",
		Protocol:  model.ProtocolTCP,
		Hostname:  "host; rm -rf /",
		LocalPort: 4000,
	}
	args := BuildAccessArgs(p)
	// The hostname travels as a single argv element, never through a shell.
	if args[3] != "host; rm -rf /" {
		t.Fatalf("hostname mangled: %q", args[3])
	}
}

func TestLocatePrefersBundledBinary(t *testing.T) {
	dir := t.TempDir()
	bundled := filepath.Join(dir, BinaryName())
	if err := os.WriteFile(bundled, []byte("stub"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok := Locate(dir)
	if !ok || got != bundled {
		t.Fatalf("expected bundled %s, got %s ok=%v", bundled, got, ok)
	}
}

func TestLocateMissingEverywhere(t *testing.T) {
	// Empty PATH so a host install of cloudflared cannot leak in.
	t.Setenv("PATH", t.TempDir())
	if got, ok := Locate(t.TempDir()); ok {
		t.Fatalf("expected no binary, found %s", got)
	}
}

func TestLaunchMissingBinary(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), BinaryName()))
	_, err := r.Launch(model.Profile{Name: "x", Protocol: model.ProtocolTCP, Hostname: "h", LocalPort: 4000})
	if !errors.Is(err, errs.ErrBinaryUnavailable) {
		t.Fatalf("expected ErrBinaryUnavailable, got %v", err)
	}
}

func TestLaunchReturnsPID(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test stub script requires a unix shell")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, BinaryName())
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(stub)
	pid, err := r.Launch(model.Profile{Name: "x", Protocol: model.ProtocolTCP, Hostname: "h", LocalPort: 4000})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected a positive pid, got %d", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		t.Fatal(err)
	}
	_ = proc.Kill()
}
