package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jiangjiax/goalify-client/internal/dbx"
	"github.com/jiangjiax/goalify-client/internal/models"
)

// localProfileID keys the singleton row. The server never hands the client a
// user id over the sync API, so the row is addressed by a fixed key.
const localProfileID = "local"

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, energy FROM profile WHERE id = ?`, localProfileID).
		Scan(&p.ID, &p.Username, &p.Email, &p.Energy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profile (id, username, email, energy) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			energy = excluded.energy
	`, localProfileID, p.Username, p.Email, p.Energy)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateEnergy(ctx context.Context, energy int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profile SET energy = ? WHERE id = ?`, energy, localProfileID)
	if err != nil {
		return fmt.Errorf("updating energy: %w", err)
	}
	return nil
}
