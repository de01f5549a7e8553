// Package pdf extracts text from PDF files with the pdftotext tool from
// poppler-utils.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// DefaultTool is the extraction binary looked up on PATH.
const DefaultTool = "pdftotext"

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: pdftotext is not installed", domain.ErrExtractorNotFound)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Extractor runs pdftotext in layout mode.
type Extractor struct {
	tool   string
	runner CommandRunner
}

// New creates an extractor using pdftotext from PATH.
func New() *Extractor {
	return &Extractor{tool: DefaultTool, runner: execRunner{}}
}

// NewWithTool creates an extractor using the given binary name or path.
func NewWithTool(tool string) *Extractor {
	e := New()
	if tool != "" {
		e.tool = tool
	}
	return e
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{tool: DefaultTool, runner: runner}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract returns the text of the PDF at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", domain.ErrInvalidInput
	}
	tool, err := lookPath(e.tool)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w\n%s", ErrPDFToolNotFound, InstallInstructions())
		}
		return "", fmt.Errorf("locate %s: %w", e.tool, err)
	}

	out, err := e.runner.Run(ctx, tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed on %s: %w", path, err)
	}
	return string(out), nil
}

// InstallInstructions describes how to install pdftotext on this OS.
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install poppler to get pdftotext: brew install poppler"
	case "windows":
		return "Install poppler for Windows and add its bin directory (with pdftotext.exe) to PATH"
	default:
		return "Install poppler-utils to get pdftotext: sudo apt install poppler-utils (or your distribution's equivalent)"
	}
}
