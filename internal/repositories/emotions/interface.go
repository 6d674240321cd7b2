package emotions

import (
	"context"
	"time"

	"github.com/jiangjiax/goalify-client/internal/models"
)

// Repository describes CRUD and query operations for EmotionRecord rows.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// Upsert inserts a new record or replaces an existing one by id.
	Upsert(ctx context.Context, e *models.EmotionRecord) error

	// GetByID returns a record, or (nil, nil) when no row exists.
	GetByID(ctx context.Context, id string) (*models.EmotionRecord, error)

	// GetAll returns every record ordered by record date.
	GetAll(ctx context.Context) ([]models.EmotionRecord, error)

	// ModifiedSince returns records whose LastModified is strictly greater
	// than t. This is the push candidate set.
	ModifiedSince(ctx context.Context, t time.Time) ([]models.EmotionRecord, error)

	// CountModifiedSince is ModifiedSince without materializing rows; used by
	// the needs-sync indicator.
	CountModifiedSince(ctx context.Context, t time.Time) (int, error)

	// DeleteByID removes a record. Callers are expected to queue a pending
	// deletion alongside.
	DeleteByID(ctx context.Context, id string) error
}
