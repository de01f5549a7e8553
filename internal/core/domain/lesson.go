package domain

import "fmt"

// LessonRecord is one lesson extracted from the source document.
// Sequence is zero-based and drives both row order and the calendar offset.
type LessonRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sequence    int    `json:"sequence"`
}

// String returns a short label for logs and error messages.
func (r LessonRecord) String() string {
	return fmt.Sprintf("#%d %q", r.Sequence, r.Name)
}
