package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink saves snapshots under a local directory.
type FileSink struct {
	root string
}

// NewFileSink creates the snapshot directory if needed.
func NewFileSink(root string) (*FileSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", root, err)
	}
	return &FileSink{root: root}, nil
}

// Save writes the markup and returns the file path.
func (s *FileSink) Save(ctx context.Context, pageURL, markup string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	target := filepath.Join(s.root, Filename(pageURL, markup))
	if err := os.WriteFile(target, []byte(markup), 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", target, err)
	}
	return target, nil
}
