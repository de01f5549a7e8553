package domain

import "fmt"

// IntegrationID identifies an integration (e.g. "google_drive").
type IntegrationID string

// Integrations used by the course pipeline.
const (
	// IntegrationFiles is the file store holding the syllabus.
	IntegrationFiles IntegrationID = "google_drive"
	// IntegrationDatabase is the structured database receiving one row per lesson.
	IntegrationDatabase IntegrationID = "notion"
	// IntegrationCalendar is the calendar receiving one event per lesson.
	IntegrationCalendar IntegrationID = "google_calendar"
)

// DisplayName returns a human-readable name for known integrations.
func (id IntegrationID) DisplayName() string {
	switch id {
	case IntegrationFiles:
		return "Google Drive"
	case IntegrationDatabase:
		return "Notion"
	case IntegrationCalendar:
		return "Google Calendar"
	default:
		return string(id)
	}
}

// Integration is a named external service reached through the tool platform.
// Integrations are loaded from configuration and never mutated at runtime.
type Integration struct {
	// ID is the integration identifier.
	ID IntegrationID
	// AuthConfigRef references the authorisation configuration used to link it
	// (a platform auth config id, an OAuth app name, or a static token key).
	AuthConfigRef string
}

// Validate checks the integration is usable.
func (i Integration) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: integration id is empty", ErrInvalidInput)
	}
	if i.AuthConfigRef == "" {
		return fmt.Errorf("%w: integration %s has no auth config", ErrInvalidInput, i.ID)
	}
	return nil
}

// String returns the integration identifier.
func (i Integration) String() string {
	return string(i.ID)
}
