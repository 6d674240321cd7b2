package metadata

import "context"

// Repository is the key-value area where the client keeps small persisted
// state: sync watermarks, the pending-deletion log, the stored auth token and
// the focus-timer snapshot. It plays the role a preferences store plays on
// mobile platforms; values are opaque bytes.
type Repository interface {
	// Get returns the stored value, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
