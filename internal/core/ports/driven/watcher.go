package driven

import "context"

// DirectoryWatcher waits for files to appear in a directory.
type DirectoryWatcher interface {
	// Await blocks until a file for which match returns true is created or
	// written in dir, then returns its path. It returns ctx.Err() when ctx ends.
	Await(ctx context.Context, dir string, match func(path string) bool) (string, error)
}
