package mcp

import (
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Pipeline runs the course workflow.
	Pipeline driving.Pipeline

	// Extractor parses lessons from documents.
	Extractor driving.LessonExtractor

	// Connections lists linked integrations. Optional.
	Connections driving.ConnectionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Pipeline == nil {
		return ErrMissingPipeline
	}
	if p.Extractor == nil {
		return ErrMissingExtractor
	}
	return nil
}
