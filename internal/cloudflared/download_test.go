package cloudflared

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"cftunnel/internal/errs"
)

func TestAssetSuffixTable(t *testing.T) {
	cases := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "linux-amd64"},
		{"linux", "arm64", "linux-arm64"},
		{"linux", "arm", "linux-arm"},
		{"windows", "amd64", "windows-amd64.exe"},
		{"windows", "arm64", "windows-arm64.exe"},
		{"darwin", "amd64", "darwin-amd64.tgz"},
		{"darwin", "arm64", "darwin-arm64.tgz"},
	}
	for _, tc := range cases {
		got, err := AssetSuffix(tc.goos, tc.goarch)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.goos, tc.goarch, err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: got %q want %q", tc.goos, tc.goarch, got, tc.want)
		}
	}
}

func TestAssetSuffixUnsupportedPlatform(t *testing.T) {
	for _, pair := range [][2]string{{"plan9", "amd64"}, {"linux", "mips"}, {"windows", "arm"}} {
		_, err := AssetSuffix(pair[0], pair[1])
		var uerr *errs.UnsupportedPlatformError
		if !errors.As(err, &uerr) {
			t.Fatalf("%s/%s: expected UnsupportedPlatformError, got %v", pair[0], pair[1], err)
		}
	}
}

func TestDownloadURL(t *testing.T) {
	got, err := DownloadURL("https://example.com/release", "linux", "amd64")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/release/cloudflared-linux-amd64" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestDownloadSuccess(t *testing.T) {
	payload := strings.Repeat("x", downloadChunk*3+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suffix, _ := AssetSuffix(runtime.GOOS, runtime.GOARCH)
		if r.URL.Path != "/cloudflared-"+suffix {
			http.NotFound(w, r)
			return
		}
		// Force a Content-Length header so progress sees a known total.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var lastDownloaded, lastTotal int64
	var calls int
	path, err := Download(srv.URL, dir, func(downloaded, total int64) {
		calls++
		lastDownloaded, lastTotal = downloaded, total
	})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if path != filepath.Join(dir, BinaryName()) {
		t.Fatalf("unexpected target path: %s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != payload {
		t.Fatalf("payload corrupted: got %d bytes, want %d", len(b), len(payload))
	}
	if lastDownloaded != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Fatalf("final progress %d/%d, want %d/%d", lastDownloaded, lastTotal, len(payload), len(payload))
	}
	if calls < 4 {
		t.Fatalf("progress must fire per chunk, got %d calls", calls)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Fatalf("binary not executable: %v", info.Mode())
		}
	}

	// No temp leftovers after a clean download.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the binary in %s, got %d entries", dir, len(entries))
	}
}

func TestDownloadHTTPErrorNamesFallbackURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := Download(srv.URL, dir, nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("error must name the asset url for manual download: %v", err)
	}

	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		t.Fatal(rerr)
	}
	if len(entries) != 0 {
		t.Fatalf("failed download must leave no files, got %d entries", len(entries))
	}
}

func TestDownloadConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // reserve then release the port

	dir := t.TempDir()
	_, err := Download(srv.URL, dir, nil)
	if err == nil {
		t.Fatal("expected connection error")
	}
	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		t.Fatal(rerr)
	}
	if len(entries) != 0 {
		t.Fatalf("failed download must leave no files, got %d entries", len(entries))
	}
}

func TestDownloadAsyncDeliversResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "binary-bytes")
	}))
	defer srv.Close()

	res := <-DownloadAsync(srv.URL, t.TempDir(), nil)
	if res.Err != nil {
		t.Fatalf("async download: %v", res.Err)
	}
	if res.Path == "" {
		t.Fatal("expected a path in the result")
	}
}
