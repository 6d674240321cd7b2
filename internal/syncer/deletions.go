package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jiangjiax/goalify-client/internal/models"
)

// The pending-deletion log is an append-only JSON list in the metadata area.
// Nothing pushes it to the server yet: the sync API has no deletion route.
// The log exists so deletions performed offline are not forgotten when one
// appears.

// RecordPendingDeletion appends a single (type, id) tuple to the log.
func (e *Engine) RecordPendingDeletion(ctx context.Context, recordType, id string) error {
	return e.AppendPendingDeletions(ctx, []models.PendingDeletion{{Type: recordType, ID: id}})
}

// AppendPendingDeletions appends a batch to the log.
func (e *Engine) AppendPendingDeletions(ctx context.Context, batch []models.PendingDeletion) error {
	if len(batch) == 0 {
		return nil
	}

	e.deletionsMu.Lock()
	defer e.deletionsMu.Unlock()

	current, err := e.readPendingDeletions(ctx)
	if err != nil {
		return err
	}
	current = append(current, batch...)

	b, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encoding pending deletions: %w", err)
	}
	if err := e.meta.Set(ctx, keyDeletedRecords, b); err != nil {
		return fmt.Errorf("storing pending deletions: %w", err)
	}
	return nil
}

// PendingDeletions returns the current log contents.
func (e *Engine) PendingDeletions(ctx context.Context) ([]models.PendingDeletion, error) {
	e.deletionsMu.Lock()
	defer e.deletionsMu.Unlock()
	return e.readPendingDeletions(ctx)
}

// ClearPendingDeletions empties the log, e.g. after a future push path
// confirms the deletions server-side.
func (e *Engine) ClearPendingDeletions(ctx context.Context) error {
	e.deletionsMu.Lock()
	defer e.deletionsMu.Unlock()
	return e.meta.Delete(ctx, keyDeletedRecords)
}

func (e *Engine) readPendingDeletions(ctx context.Context) ([]models.PendingDeletion, error) {
	b, err := e.meta.Get(ctx, keyDeletedRecords)
	if err != nil {
		return nil, fmt.Errorf("reading pending deletions: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}

	var list []models.PendingDeletion
	if err := json.Unmarshal(b, &list); err != nil {
		// A corrupt log is dropped rather than wedging deletes forever.
		e.log.Warn(ctx, "pending deletion log corrupt, resetting", "error", err)
		return nil, nil
	}
	return list, nil
}
