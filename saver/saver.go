// Package saver is the privileged save primitive: store a remote URL or
// an encoded payload under a destination path. It is a black box to the
// rest of the pipeline; failures come back as human-readable strings via
// plain errors, never structured codes.
package saver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Saver stores bytes under a destination path (which may contain
// subfolders) and returns an opaque identifier for the saved object.
type Saver interface {
	// SaveURL fetches url and stores the body under path.
	SaveURL(ctx context.Context, url, path string) (string, error)

	// SaveData decodes the base64 payload and stores it under path.
	// A payload that is not valid base64 is stored verbatim as text.
	SaveData(ctx context.Context, payload, path string) (string, error)
}

// Disk saves files under a root directory.
type Disk struct {
	root   string
	client *http.Client
}

// NewDisk creates a disk saver rooted at dir.
func NewDisk(dir string) *Disk {
	return &Disk{
		root:   dir,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// SaveURL streams the remote body to disk.
func (d *Disk) SaveURL(ctx context.Context, url, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	dest, err := d.prepare(path)
	if err != nil {
		return "", err
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// SaveData writes the decoded payload to disk.
func (d *Disk) SaveData(_ context.Context, payload, path string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Plain-text payloads arrive unencoded; store them as-is.
		data = []byte(payload)
	}

	dest, err := d.prepare(path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}

// prepare resolves the destination inside the root and creates parent
// folders. Paths escaping the root are rejected.
func (d *Disk) prepare(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid destination path %q", path)
	}
	dest := filepath.Join(d.root, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create folder for %s: %w", dest, err)
	}
	return dest, nil
}
