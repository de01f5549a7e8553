// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ConnectionBackend: Durable connection cache (JSON file, SQLite, memory)
//   - Authorizer: Runs the external consent handshake for an integration
//   - ToolPlatform: Supplies the ordered call strategies for remote operations
//   - TextExtractor: Turns a downloaded document into plain text
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ConsentPresenter: Shows the consent URL. Without it the URL is only logged.
//   - DirectoryWatcher: Waits for a download to appear. Without it the settle window is skipped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
