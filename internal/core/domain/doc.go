// Package domain defines the core business entities for coursesync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Integration: A named external service reached through a tool platform
//   - Connection: The authorised link between a user and one integration
//   - ToolCall / ToolResult: The envelope for invoking an integration operation
//   - Value: A JSON-like tree used for every platform payload
//   - LessonRecord: One extracted lesson destined for two downstream writes
//   - ArtifactHandle: A file on local disk produced by a fetch operation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
