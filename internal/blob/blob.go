// Package blob selects the object store backend for the report archive.
// It is the only package allowed to import internal/infra/blob.
package blob

import (
	"context"
	"fmt"

	"persondir/internal/blob/core"
	"persondir/internal/infra/blob/fs"
	"persondir/internal/infra/blob/memory"
	"persondir/internal/infra/blob/s3"
	"persondir/internal/platform/config"
)

type (
	Store      = core.Store
	Info       = core.Info
	PutOptions = core.PutOptions
	Driver     = core.Driver
)

var (
	ErrExists     = core.ErrExists
	ErrNotFound   = core.ErrNotFound
	ErrInvalidKey = core.ErrInvalidKey
)

// Open builds the backend named by cfg.Driver. The "none" driver yields a
// nil Store and no error; callers treat that as archiving disabled.
func Open(ctx context.Context, cfg config.Report) (Store, error) {
	switch cfg.Driver {
	case "", config.ReportNone:
		return nil, nil
	case config.ReportMemory:
		return memory.New(), nil
	case config.ReportFS:
		return fs.New(cfg.FSRoot)
	case config.ReportS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported report driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store for tests and ephemeral runs.
func NewMemory() Store { return memory.New() }

// NewFilesystem returns a filesystem store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }
