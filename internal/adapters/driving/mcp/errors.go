// Package mcp provides an MCP (Model Context Protocol) server adapter for coursesync.
// It lets an assistant extract lessons from a course document and run the
// course pipeline.
package mcp

import "errors"

// ErrMissingPipeline is returned when the pipeline is not provided.
var ErrMissingPipeline = errors.New("mcp: pipeline is required")

// ErrMissingExtractor is returned when the lesson extractor is not provided.
var ErrMissingExtractor = errors.New("mcp: lesson extractor is required")
