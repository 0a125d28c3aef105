package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: not found")

// Substrate is the synchronous key/value layer under the Store. A key holds
// one serialized collection that is always rewritten whole.
type Substrate interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Close() error
}
