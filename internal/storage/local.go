package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/export"
)

// LocalStorage handles saving artifacts to the local filesystem
type LocalStorage struct {
	outputDir string
	dated     bool
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler. With dated set,
// artifacts go into outputs/2025/01/23/ style directories.
func NewLocalStorage(outputDir string, dated bool) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		dated:     dated,
		now:       time.Now,
	}
}

// Name identifies the sink
func (ls *LocalStorage) Name() string { return "local" }

// Save writes the artifact and returns its path
func (ls *LocalStorage) Save(ctx context.Context, a *export.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := ls.now()
	dir := ls.outputDir
	if ls.dated {
		dir = filepath.Join(dir, datePath(now))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, objectName(now, a.Filename))
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", fmt.Errorf("save %s: %w", a.Format, err)
	}
	return path, nil
}
