package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// OrderJournal archives every signed order that reached the exchange.
type OrderJournal interface {
	Record(ctx context.Context, rec OrderRecord) error
}
