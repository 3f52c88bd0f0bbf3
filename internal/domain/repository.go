package domain

import "context"

// KeyValueStore is the persistence port used by Correction Memory
type KeyValueStore interface {
	// Get returns ErrNotFound when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Keys lists stored keys with the given prefix in ascending order
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// TextRecognizer turns an image into raw text.
// Implementations must stop reporting progress once ctx is done.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte, onProgress ProgressFunc) (*Recognition, error)
}

// CorrectionLookup is the read side of Correction Memory used by the matcher.
// A nil Correction with a nil error means there is no entry.
type CorrectionLookup interface {
	Lookup(ctx context.Context, normalizedName string) (*Correction, error)
}

// CatalogProvider supplies the current product catalog
type CatalogProvider interface {
	Snapshot() []ProductCatalogEntry
	Len() int
}
