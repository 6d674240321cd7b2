package emotions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jiangjiax/goalify-client/internal/dbx"
	"github.com/jiangjiax/goalify-client/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx), so the sync engine can run a whole merge inside one transaction.
//
// Times are stored as unix nanoseconds so "strictly newer" comparisons happen
// in SQL without string-format pitfalls.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.EmotionRecord) error {
	query := `INSERT INTO emotions (id, emotion_type, intensity, "trigger", unhealthy_beliefs, healthy_emotion, coping_strategies, record_date, last_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				emotion_type = excluded.emotion_type,
				intensity = excluded.intensity,
				"trigger" = excluded."trigger",
				unhealthy_beliefs = excluded.unhealthy_beliefs,
				healthy_emotion = excluded.healthy_emotion,
				coping_strategies = excluded.coping_strategies,
				record_date = excluded.record_date,
				last_modified = excluded.last_modified`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.EmotionType, int(e.Intensity), e.Trigger, e.UnhealthyBeliefs,
		e.HealthyEmotion, e.CopingStrategies, e.RecordDate.UnixNano(), e.LastModified.UnixNano())
	if err != nil {
		return fmt.Errorf("upserting emotion %s: %w", e.ID, err)
	}
	return nil
}

const selectColumns = `id, emotion_type, intensity, "trigger", unhealthy_beliefs, healthy_emotion, coping_strategies, record_date, last_modified`

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.EmotionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM emotions WHERE id = ?`, id)
	e, err := scanEmotion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting emotion %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.EmotionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM emotions ORDER BY record_date`)
	if err != nil {
		return nil, fmt.Errorf("listing emotions: %w", err)
	}
	return collectEmotions(rows)
}

func (r *SQLiteRepository) ModifiedSince(ctx context.Context, t time.Time) ([]models.EmotionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM emotions WHERE last_modified > ? ORDER BY last_modified`, t.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("listing modified emotions: %w", err)
	}
	return collectEmotions(rows)
}

func (r *SQLiteRepository) CountModifiedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emotions WHERE last_modified > ?`, t.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting modified emotions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM emotions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting emotion %s: %w", id, err)
	}
	return nil
}

func collectEmotions(rows *sql.Rows) ([]models.EmotionRecord, error) {
	defer rows.Close()

	var result []models.EmotionRecord
	for rows.Next() {
		e, err := scanEmotion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning emotion row: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating emotion rows: %w", err)
	}
	return result, nil
}

func scanEmotion(scan func(dest ...any) error) (*models.EmotionRecord, error) {
	var e models.EmotionRecord
	var intensity int
	var recordDate, lastModified int64

	err := scan(&e.ID, &e.EmotionType, &intensity, &e.Trigger, &e.UnhealthyBeliefs,
		&e.HealthyEmotion, &e.CopingStrategies, &recordDate, &lastModified)
	if err != nil {
		return nil, err
	}

	e.Intensity = models.ParseIntensity(intensity)
	e.RecordDate = time.Unix(0, recordDate).UTC()
	e.LastModified = time.Unix(0, lastModified).UTC()
	return &e, nil
}
