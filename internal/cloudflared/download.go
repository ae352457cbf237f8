package cloudflared

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"cftunnel/internal/errs"
)

// downloadChunk is the read granularity; the progress callback fires once
// per chunk.
const downloadChunk = 8192

// downloadTimeout bounds the whole fetch, matching a plain blocking HTTP get.
const downloadTimeout = 180 * time.Second

// Progress receives (bytes-so-far, total-bytes). Total is 0 when the server
// did not report a Content-Length.
type Progress func(downloaded, total int64)

// assetSuffixes maps GOOS -> GOARCH -> release asset suffix. Pairs absent
// from the table fail before any network access.
var assetSuffixes = map[string]map[string]string{
	"linux": {
		"amd64": "linux-amd64",
		"arm64": "linux-arm64",
		"arm":   "linux-arm",
	},
	"windows": {
		"amd64": "windows-amd64.exe",
		"arm64": "windows-arm64.exe",
	},
	"darwin": {
		"amd64": "darwin-amd64.tgz",
		"arm64": "darwin-arm64.tgz",
	},
}

// AssetSuffix resolves the release asset suffix for an OS/architecture pair.
func AssetSuffix(goos, goarch string) (string, error) {
	archMap, ok := assetSuffixes[goos]
	if !ok {
		return "", &errs.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}
	suffix, ok := archMap[goarch]
	if !ok {
		return "", &errs.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}
	return suffix, nil
}

// DownloadURL composes the asset URL for the current platform.
func DownloadURL(baseURL, goos, goarch string) (string, error) {
	suffix, err := AssetSuffix(goos, goarch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/cloudflared-%s", baseURL, suffix), nil
}

// Download fetches the platform-specific cloudflared asset into targetDir,
// streaming through a temporary file that atomically replaces the final
// binary. The binary is marked executable on platforms that need it.
//
// Any network or filesystem error aborts the acquisition: the temp file is
// removed and the returned error summarizes the failure and names the URL
// for a manual download.
func Download(baseURL, targetDir string, progress Progress) (string, error) {
	url, err := DownloadURL(baseURL, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	targetPath := filepath.Join(targetDir, BinaryName())

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", summarize(err, url)
	}
	tmp, err := os.CreateTemp(targetDir, BinaryName()+".download-*")
	if err != nil {
		return "", summarize(err, url)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	client := &http.Client{Timeout: downloadTimeout}
	resp, err := client.Get(url)
	if err != nil {
		cleanup()
		return "", summarize(err, url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		cleanup()
		return "", summarize(fmt.Errorf("unexpected status %s", resp.Status), url)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	if progress != nil {
		progress(0, total)
	}

	var downloaded int64
	buf := make([]byte, downloadChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				cleanup()
				return "", summarize(werr, url)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			cleanup()
			return "", summarize(rerr, url)
		}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", summarize(err, url)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", summarize(err, url)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(targetPath, 0o755); err != nil {
			return "", summarize(err, url)
		}
	}
	return targetPath, nil
}

func summarize(err error, url string) error {
	return fmt.Errorf("cloudflared download failed: %w (download manually from %s and place it next to the program)", err, url)
}

// Result is the outcome of a background download.
type Result struct {
	Path string
	Err  error
}

// DownloadAsync runs Download on one background goroutine and delivers the
// outcome on the returned channel. There is no cancellation; the initiating
// side blocks on the channel (or forwards it into its event loop).
func DownloadAsync(baseURL, targetDir string, progress Progress) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		path, err := Download(baseURL, targetDir, progress)
		ch <- Result{Path: path, Err: err}
	}()
	return ch
}
