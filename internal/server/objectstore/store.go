// Package objectstore persists assembled rider documents in an S3-compatible
// backend and mints time-bounded download URLs for them.
package objectstore

import (
	"context"
	"time"
)

// Store is the object-storage contract used by the document service:
// store bytes under a key, and produce a presigned, expiring URL for a key.
type Store interface {
	Upload(ctx context.Context, key string, data []byte) error
	PresignedGetURL(ctx context.Context, key string) (string, time.Time, error)
}
