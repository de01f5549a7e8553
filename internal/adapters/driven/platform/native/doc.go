// Package native runs the pipeline's operations directly against the Google
// Drive, Google Calendar and Notion APIs, using tokens from the connection
// cache instead of a hosted tool platform.
package native
