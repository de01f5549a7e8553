package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure ArtifactLocator implements the interface.
var _ driving.ArtifactLocator = (*ArtifactLocator)(nil)

// PayloadExcerptLimit caps the payload excerpt attached to ArtifactError.
const PayloadExcerptLimit = 4000

// pathAliases are payload keys that may hold the local path of a download.
var pathAliases = map[string]bool{
	"file_path":            true,
	"filepath":             true,
	"path":                 true,
	"local_path":           true,
	"localpath":            true,
	"download_path":        true,
	"downloaded_file_path": true,
	"downloaded_file":      true,
	"file":                 true,
	"filename":             true,
	"file_name":            true,
	"name":                 true,
	"saved_path":           true,
	"output_path":          true,
	"location":             true,
}

// contentAliases are payload keys that may hold the file content inline.
// Keys containing "base64" are always decoded; the others only when the
// record carries encoding=base64.
var contentAliases = map[string]bool{
	"body":                true,
	"content":             true,
	"file_content":        true,
	"bytes":               true,
	"content_base64":      true,
	"body_base64":         true,
	"file_content_base64": true,
	"base64":              true,
	"data_base64":         true,
}

// ArtifactLocator finds the file produced by a download operation.
type ArtifactLocator struct {
	policy        domain.SelectionPolicy
	preferredName string
	settle        time.Duration
	watcher       driven.DirectoryWatcher
}

// LocatorOption configures an ArtifactLocator.
type LocatorOption func(*ArtifactLocator)

// WithSelectionPolicy sets how one file is chosen among several.
func WithSelectionPolicy(p domain.SelectionPolicy) LocatorOption {
	return func(l *ArtifactLocator) {
		if p != "" {
			l.policy = p
		}
	}
}

// WithPreferredName makes a file with exactly this base name win a directory scan.
func WithPreferredName(name string) LocatorOption {
	return func(l *ArtifactLocator) { l.preferredName = filepath.Base(name) }
}

// WithSettleWindow waits up to d for a file to appear when the directory is empty.
func WithSettleWindow(d time.Duration, w driven.DirectoryWatcher) LocatorOption {
	return func(l *ArtifactLocator) {
		l.settle = d
		l.watcher = w
	}
}

// NewArtifactLocator creates a locator. The default policy is newest.
func NewArtifactLocator(opts ...LocatorOption) *ArtifactLocator {
	l := &ArtifactLocator{policy: domain.SelectNewest}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns a verified handle to a file with the given extension.
// Strategies run in order: path fields in the payload, a scan of directory,
// then inline content written into directory. The returned path always exists.
func (l *ArtifactLocator) Locate(ctx context.Context, extension, directory string, payload domain.Value) (*domain.ArtifactHandle, error) {
	ext := domain.NormalizeExtension(extension)
	if ext == "" {
		return nil, fmt.Errorf("%w: extension is empty", domain.ErrInvalidInput)
	}

	attempted := make([]string, 0, 3)

	attempted = append(attempted, domain.StrategyPayloadPath)
	if path, ok := l.fromPayloadPath(ext, directory, payload); ok {
		return l.handle(path, domain.StrategyPayloadPath)
	}

	if directory != "" {
		attempted = append(attempted, domain.StrategyDirectoryScan)
		path, err := l.fromDirectory(ctx, ext, directory)
		if err != nil {
			return nil, err
		}
		if path != "" {
			return l.handle(path, domain.StrategyDirectoryScan)
		}

		attempted = append(attempted, domain.StrategyInlineContent)
		path, err = l.fromInlineContent(ext, directory, payload)
		if err != nil {
			return nil, err
		}
		if path != "" {
			return l.handle(path, domain.StrategyInlineContent)
		}
	}

	return nil, &domain.ArtifactError{
		Directory: directory,
		Extension: ext,
		Attempted: attempted,
		Excerpt:   payload.Excerpt(PayloadExcerptLimit),
	}
}

func (l *ArtifactLocator) handle(path, strategy string) (*domain.ArtifactHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if !isRegularFile(abs) {
		return nil, fmt.Errorf("verify %s: %w", abs, domain.ErrArtifactNotFound)
	}
	logger.Debug("artifact %s located by %s", abs, strategy)
	return &domain.ArtifactHandle{Path: abs, Verified: true, Strategy: strategy}, nil
}

// fromPayloadPath walks the payload for path-like fields that exist on disk.
// A candidate with the wanted extension beats one without.
func (l *ArtifactLocator) fromPayloadPath(ext, directory string, payload domain.Value) (string, bool) {
	var fallback string
	var match string

	domain.Walk(payload, func(path domain.Path, v domain.Value) bool {
		if !pathAliases[strings.ToLower(path.Key())] {
			return true
		}
		s, ok := v.AsString()
		if !ok || strings.TrimSpace(s) == "" {
			return true
		}
		resolved, ok := resolveExisting(strings.TrimSpace(s), directory)
		if !ok {
			return true
		}
		if strings.EqualFold(filepath.Ext(resolved), ext) {
			match = resolved
			return false
		}
		if fallback == "" {
			fallback = resolved
		}
		return true
	})

	if match != "" {
		return match, true
	}
	return fallback, fallback != ""
}

// resolveExisting resolves p as absolute, relative to directory, or relative
// to the working directory, returning the first that is a regular file.
func resolveExisting(p, directory string) (string, bool) {
	if filepath.IsAbs(p) {
		return p, isRegularFile(p)
	}
	if directory != "" {
		joined := filepath.Join(directory, p)
		if isRegularFile(joined) {
			return joined, true
		}
	}
	if isRegularFile(p) {
		return p, true
	}
	return "", false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type scannedFile struct {
	path    string
	modTime time.Time
}

// fromDirectory scans directory recursively for files with ext.
func (l *ArtifactLocator) fromDirectory(ctx context.Context, ext, directory string) (string, error) {
	files, err := scanDirectory(directory, ext)
	if err != nil {
		return "", err
	}

	if len(files) == 0 && l.settle > 0 && l.watcher != nil {
		logger.Debug("no %s file in %s yet, waiting up to %s", ext, directory, l.settle)
		waitCtx, cancel := context.WithTimeout(ctx, l.settle)
		_, werr := l.watcher.Await(waitCtx, directory, func(path string) bool {
			return strings.EqualFold(filepath.Ext(path), ext)
		})
		cancel()
		if werr != nil && ctx.Err() != nil {
			return "", fmt.Errorf("watch %s: %w", directory, ctx.Err())
		}
		if werr != nil && !errors.Is(werr, context.DeadlineExceeded) {
			logger.Warn("Watching %s failed: %v", directory, werr)
		}
		if files, err = scanDirectory(directory, ext); err != nil {
			return "", err
		}
	}

	return l.choose(files), nil
}

func scanDirectory(directory, ext string) ([]scannedFile, error) {
	var files []scannedFile
	err := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == directory && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, scannedFile{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", directory, err)
	}
	return files, nil
}

// choose applies the preferred name, then the selection policy.
func (l *ArtifactLocator) choose(files []scannedFile) string {
	switch len(files) {
	case 0:
		return ""
	case 1:
		return files[0].path
	}

	if l.preferredName != "" {
		var named []scannedFile
		for _, f := range files {
			if filepath.Base(f.path) == l.preferredName {
				named = append(named, f)
			}
		}
		if len(named) > 0 {
			files = named
		}
	}

	sorted := make([]scannedFile, len(files))
	copy(sorted, files)
	switch l.policy {
	case domain.SelectName:
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].path > sorted[j].path })
	default:
		sort.Slice(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if !a.modTime.Equal(b.modTime) {
				return a.modTime.After(b.modTime)
			}
			if an, bn := filepath.Base(a.path), filepath.Base(b.path); an != bn {
				return an > bn
			}
			return a.path > b.path
		})
	}
	return sorted[0].path
}

// fromInlineContent writes inline file content from the payload into directory.
func (l *ArtifactLocator) fromInlineContent(ext, directory string, payload domain.Value) (string, error) {
	var content []byte

	domain.Walk(payload, func(_ domain.Path, v domain.Value) bool {
		if v.Kind() != domain.KindMap {
			return true
		}
		encoded := base64Encoded(v)
		for _, k := range v.Keys() {
			key := strings.ToLower(k)
			if idx := strings.LastIndex(key, "."); idx >= 0 {
				key = key[idx+1:]
			}
			if !contentAliases[key] {
				continue
			}
			child, _ := v.Get(k)
			if data, ok := inlineBytes(key, child, encoded); ok {
				content = data
				return false
			}
		}
		return true
	})

	if len(content) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", directory, err)
	}

	stem := "artifact"
	if l.preferredName != "" {
		stem = strings.TrimSuffix(l.preferredName, filepath.Ext(l.preferredName))
	}
	f, err := os.CreateTemp(directory, stem+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	logger.Debug("materialised %d bytes of inline content to %s", len(content), f.Name())
	return f.Name(), nil
}

// encodingKeys are sibling fields that declare how inline content is encoded.
var encodingKeys = []string{"encoding", "content_encoding", "transfer_encoding", "contentEncoding"}

// base64Encoded reports whether a record marks its inline content as base64.
func base64Encoded(record domain.Value) bool {
	for _, k := range encodingKeys {
		if v, ok := record.Get(k); ok && strings.EqualFold(strings.TrimSpace(v.Text()), "base64") {
			return true
		}
	}
	return false
}

// inlineBytes extracts content from a value. Keys mentioning base64, or
// content whose record declares a base64 encoding, must decode. Anything
// else is written as text.
func inlineBytes(key string, v domain.Value, encoded bool) ([]byte, bool) {
	if raw, ok := v.AsBytes(); ok {
		return raw, len(raw) > 0
	}
	s, ok := v.AsString()
	if !ok || strings.TrimSpace(s) == "" {
		return nil, false
	}

	if encoded || strings.Contains(key, "base64") {
		decoded, err := decodeBase64(s, base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding)
		return decoded, err == nil && len(decoded) > 0
	}
	return []byte(s), true
}

func decodeBase64(s string, encodings ...*base64.Encoding) ([]byte, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(s)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
