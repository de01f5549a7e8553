package native

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// googleAppsPrefix marks native Google formats, which must be exported.
const googleAppsPrefix = "application/vnd.google-apps."

func (p *Platform) driveService(ctx context.Context, call domain.ToolCall) (*drive.Service, error) {
	ts, err := p.tokens.For(ctx, call.Integration, call.UserID)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.googleOpts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

func (p *Platform) findFile(ctx context.Context, call domain.ToolCall, args domain.Value) (domain.Value, error) {
	q := argText(args, "q", "query")
	if q == "" {
		return domain.Null(), missingArg(call, "q")
	}

	svc, err := p.driveService(ctx, call)
	if err != nil {
		return domain.Null(), err
	}
	if err := p.wait(ctx, ratelimit.ServiceDrive); err != nil {
		return domain.Null(), err
	}

	list, err := svc.Files.List().
		Q(q + " and trashed = false").
		Fields("files(id, name, mimeType, modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(10).
		Context(ctx).
		Do()
	p.observe(ratelimit.ServiceDrive, err)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}

	files := make([]any, 0, len(list.Files))
	for _, f := range list.Files {
		files = append(files, map[string]any{
			"id":           f.Id,
			"name":         f.Name,
			"mimeType":     f.MimeType,
			"modifiedTime": f.ModifiedTime,
		})
	}
	logger.Debug("drive query %q matched %d files", q, len(files))
	return domain.FromAny(map[string]any{"files": files}), nil
}

func (p *Platform) downloadFile(ctx context.Context, call domain.ToolCall, args domain.Value) (domain.Value, error) {
	id := argText(args, "file_id", "fileId", "id")
	if id == "" {
		return domain.Null(), missingArg(call, "file_id")
	}

	svc, err := p.driveService(ctx, call)
	if err != nil {
		return domain.Null(), err
	}
	if err := p.wait(ctx, ratelimit.ServiceDrive); err != nil {
		return domain.Null(), err
	}

	meta, err := svc.Files.Get(id).Fields("id, name, mimeType").Context(ctx).Do()
	p.observe(ratelimit.ServiceDrive, err)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}

	name := meta.Name
	var resp *http.Response
	if strings.HasPrefix(meta.MimeType, googleAppsPrefix) {
		resp, err = svc.Files.Export(id, "application/pdf").Context(ctx).Download()
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			name += ".pdf"
		}
	} else {
		resp, err = svc.Files.Get(id).Context(ctx).Download()
	}
	p.observe(ratelimit.ServiceDrive, err)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}
	defer func() { _ = resp.Body.Close() }()

	path, err := p.save(name, resp.Body)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}
	logger.Debug("downloaded %s to %s", id, path)

	return domain.FromAny(map[string]any{
		"file_path": path,
		"name":      name,
		"mime_type": meta.MimeType,
	}), nil
}

// save writes r into the download directory via a temporary file.
func (p *Platform) save(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(p.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", p.downloadDir, err)
	}
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "download"
	}

	tmp, err := os.CreateTemp(p.downloadDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", base, err)
	}

	target := filepath.Join(p.downloadDir, base)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", base, err)
	}
	return target, nil
}
