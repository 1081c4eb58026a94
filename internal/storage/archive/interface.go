// Package archive persists backtest artifacts to local disk or S3.
package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
)

// Storage defines the interface for result archive backends. Paths are
// slash-separated and relative to the backend root. Read of a missing path
// returns an error matching fs.ErrNotExist.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// New builds the backend named by cfg.Type. An empty type disables
// archiving and returns a nil Storage.
func New(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type: %q", cfg.Type))
	}
}
