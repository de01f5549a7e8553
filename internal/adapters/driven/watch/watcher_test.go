package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPDF(path string) bool { return strings.HasSuffix(path, ".pdf") }

func TestAwait_FileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "syllabus.pdf")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)
		_ = os.WriteFile(target, []byte("%PDF"), 0600)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path, err := New().Await(ctx, dir, isPDF)
	require.NoError(t, err)
	assert.Equal(t, target, path)
}

func TestAwait_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "already.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF"), 0600))

	path, err := New().Await(context.Background(), dir, isPDF)
	require.NoError(t, err)
	assert.Equal(t, target, path)
}

func TestAwait_Timeout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0700))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New().Await(ctx, dir, isPDF)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwait_MissingDirectory(t *testing.T) {
	_, err := New().Await(context.Background(), filepath.Join(t.TempDir(), "nope"), isPDF)
	assert.Error(t, err)
}
