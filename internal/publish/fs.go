package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSStore is filesystem-backed artifact storage rooted at a directory. It
// implements both sink interfaces: ephemeral entries live under
// runs/<run-id>/, release entries under releases/<tag>/.
type FSStore struct {
	Root  string
	RunID string
}

// Store implements EphemeralSink.
func (s *FSStore) Store(ctx context.Context, name string, srcPath string) (string, error) {
	return s.place(ctx, filepath.Join(s.Root, "runs", s.RunID, name), srcPath)
}

// Publish implements ReleaseSink. Writing through an existing file replaces
// it, which is exactly the overwrite guarantee the release channel needs.
func (s *FSStore) Publish(ctx context.Context, tag string, name string, srcPath string) (string, error) {
	return s.place(ctx, filepath.Join(s.Root, "releases", tag, name), srcPath)
}

func (s *FSStore) place(ctx context.Context, dstPath string, srcPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create sink directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create sink entry %s: %w", dstPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write sink entry %s: %w", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize sink entry %s: %w", dstPath, err)
	}
	return dstPath, nil
}
