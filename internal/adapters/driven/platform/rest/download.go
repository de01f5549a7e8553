package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// urlKeys hold a link to file content the platform stored for a download.
var urlKeys = map[string]bool{
	"s3url":        true,
	"s3_url":       true,
	"download_url": true,
	"downloadurl":  true,
	"signed_url":   true,
}

// nameKeys hold the original file name next to a download link.
var nameKeys = []string{"name", "file_name", "filename", "title"}

// Downloader fetches files referenced by URL in a payload into a directory.
type Downloader struct {
	dir    string
	client *http.Client
}

// NewDownloader creates a downloader writing into dir.
// If client is nil, http.DefaultClient is used.
func NewDownloader(dir string, client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{dir: dir, client: client}
}

// Materialize fetches the first download link in raw and returns raw with a
// file_path field pointing at the local copy. Payloads without a link are
// returned unchanged.
func (d *Downloader) Materialize(ctx context.Context, raw domain.Value) (domain.Value, error) {
	link, name, ok := findDownload(raw)
	if !ok {
		return raw, nil
	}

	local, err := d.fetch(ctx, link, name)
	if err != nil {
		return raw, err
	}
	logger.Debug("downloaded %s to %s", name, local)
	return withFilePath(raw, local), nil
}

func (d *Downloader) fetch(ctx context.Context, link, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", redact(link), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", redact(link), resp.StatusCode)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", d.dir, err)
	}

	base := safeName(name, link)
	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", base, err)
	}

	target := filepath.Join(d.dir, base)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", base, err)
	}
	return target, nil
}

// findDownload searches maps depth-first, in key order, for a download link.
func findDownload(v domain.Value) (link, name string, ok bool) {
	switch v.Kind() {
	case domain.KindMap:
		for _, key := range v.Keys() {
			if !urlKeys[strings.ToLower(key)] {
				continue
			}
			child, _ := v.Get(key)
			if s, isString := child.AsString(); isString && strings.HasPrefix(s, "http") {
				for _, nk := range nameKeys {
					if n, found := v.Get(nk); found && n.Text() != "" {
						return s, n.Text(), true
					}
				}
				return s, "", true
			}
		}
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			if link, name, ok = findDownload(child); ok {
				return link, name, ok
			}
		}
	case domain.KindList:
		for _, child := range v.Items() {
			if link, name, ok = findDownload(child); ok {
				return link, name, ok
			}
		}
	}
	return "", "", false
}

// withFilePath adds file_path next to the payload data.
func withFilePath(raw domain.Value, local string) domain.Value {
	if raw.Kind() != domain.KindMap {
		return domain.MapValue(map[string]domain.Value{
			"file_path": domain.StringValue(local),
			"data":      raw,
		})
	}

	top := copyMap(raw)
	if data, ok := raw.Get("data"); ok && data.Kind() == domain.KindMap {
		inner := copyMap(data)
		inner["file_path"] = domain.StringValue(local)
		top["data"] = domain.MapValue(inner)
	} else {
		top["file_path"] = domain.StringValue(local)
	}
	return domain.MapValue(top)
}

func copyMap(v domain.Value) map[string]domain.Value {
	out := make(map[string]domain.Value, v.Len())
	for _, k := range v.Keys() {
		child, _ := v.Get(k)
		out[k] = child
	}
	return out
}

// safeName picks a local file name from the reported name or the URL path.
func safeName(name, link string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		if u, err := url.Parse(link); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	return name
}

// redact drops the query string, which carries signatures.
func redact(link string) string {
	if i := strings.IndexByte(link, '?'); i >= 0 {
		return link[:i]
	}
	return link
}
