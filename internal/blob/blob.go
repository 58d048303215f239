// AngelaMos | 2026
// blob.go

package blob

import (
	"context"
	"errors"
	"io"
)

var ErrDisabled = errors.New("blob storage is not configured")

// Store keeps avatar images. Keys are opaque to callers.
type Store interface {
	Upload(ctx context.Context, file io.Reader, folder string) (string, error)
	SignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Noop is used when no blob driver is configured: uploads fail and
// existing keys resolve to no URL.
type Noop struct{}

func (Noop) Upload(context.Context, io.Reader, string) (string, error) {
	return "", ErrDisabled
}

func (Noop) SignedURL(context.Context, string) (string, error) {
	return "", nil
}

func (Noop) Delete(context.Context, string) error {
	return nil
}
