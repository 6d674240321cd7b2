package profile

import (
	"context"

	"github.com/jiangjiax/goalify-client/internal/models"
)

// Repository manages the single local UserProfile row.
type Repository interface {
	// Get returns the profile, or (nil, nil) when none has been synced yet.
	Get(ctx context.Context) (*models.UserProfile, error)

	// Upsert overwrites the singleton row with server data.
	Upsert(ctx context.Context, p *models.UserProfile) error

	// UpdateEnergy overwrites just the energy balance; a no-op when no
	// profile row exists yet.
	UpdateEnergy(ctx context.Context, energy int) error
}
