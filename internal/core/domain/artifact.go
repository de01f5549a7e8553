package domain

import (
	"fmt"
	"strings"
)

// Artifact discovery strategies, in the order they are attempted.
const (
	StrategyPayloadPath   = "payload-path"
	StrategyDirectoryScan = "directory-scan"
	StrategyInlineContent = "inline-content"
)

// ArtifactHandle is a file on local disk produced by a fetch operation.
// Verified is only set after the path was confirmed to exist as a regular file.
type ArtifactHandle struct {
	Path     string `json:"path"`
	Verified bool   `json:"verified"`
	Strategy string `json:"strategy"`
}

// SelectionPolicy picks one artifact when a directory scan finds several.
type SelectionPolicy string

const (
	// SelectNewest picks the most recently modified file, then the greatest name.
	SelectNewest SelectionPolicy = "newest"
	// SelectName picks the lexicographically greatest path.
	SelectName SelectionPolicy = "name"
)

// ParseSelectionPolicy validates a policy name. An empty name means SelectNewest.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch SelectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SelectNewest:
		return SelectNewest, nil
	case SelectName:
		return SelectName, nil
	default:
		return "", fmt.Errorf("%w: unknown artifact policy %q", ErrInvalidInput, s)
	}
}

// NormalizeExtension returns ext lower-cased with a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
