// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"framepress/internal/models"
)

// OutputStore persists per-format render records. The (composition,
// format) pair is unique: a re-render overwrites the existing row and
// bumps its generation counter instead of appending.
type OutputStore struct {
	db *sql.DB
}

// NewOutputStore creates an OutputStore with the given database connection.
func NewOutputStore(db *sql.DB) *OutputStore {
	return &OutputStore{db: db}
}

const outputColumns = `id, composition_id, item_id, format, status, image_url, width, height,
	file_size, error_message, generation, publish_state, is_primary, generated_at,
	created_at, updated_at`

func scanOutput(scanner interface{ Scan(...any) error }) (*models.Output, error) {
	var o models.Output
	err := scanner.Scan(
		&o.ID, &o.CompositionID, &o.ItemID, &o.Format, &o.Status,
		&o.ImageURL, &o.Width, &o.Height, &o.FileSize, &o.ErrorMessage,
		&o.Generation, &o.PublishState, &o.IsPrimary, &o.GeneratedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// BeginRender creates or overwrites the PROCESSING record for one
// (composition, format) pair and returns it with the new generation
// number. Overwriting discards any prior terminal state; the bumped
// generation invalidates whatever a superseded in-flight render might
// still report. Publish state and the primary flag survive a re-render;
// the artifact keeps its identity while its pixels refresh.
func (s *OutputStore) BeginRender(compositionID, itemID uuid.UUID, format models.Format) (*models.Output, error) {
	row := s.db.QueryRow(`
		INSERT INTO outputs (composition_id, item_id, format, status)
		VALUES ($1, $2, $3, 'PROCESSING')
		ON CONFLICT (composition_id, format) DO UPDATE SET
			status = 'PROCESSING',
			image_url = NULL,
			width = NULL,
			height = NULL,
			file_size = NULL,
			error_message = NULL,
			generated_at = NULL,
			generation = outputs.generation + 1,
			updated_at = now()
		RETURNING `+outputColumns,
		compositionID, itemID, format,
	)
	o, err := scanOutput(row)
	if err != nil {
		return nil, fmt.Errorf("begin render: %w", err)
	}
	return o, nil
}

// CompleteSuccess records a READY result for the given generation. The
// write is discarded (returns false) when a newer dispatch already bumped
// the pair's generation: last dispatched wins, a stale render never
// clobbers a fresher one.
func (s *OutputStore) CompleteSuccess(compositionID uuid.UUID, format models.Format, generation int, res models.Output) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE outputs SET
			status = 'READY',
			image_url = $4,
			width = $5,
			height = $6,
			file_size = $7,
			error_message = NULL,
			generated_at = now(),
			updated_at = now()
		WHERE composition_id = $1 AND format = $2 AND generation = $3
		  AND status = 'PROCESSING'
	`, compositionID, format, generation, res.ImageURL, res.Width, res.Height, res.FileSize)
	if err != nil {
		return false, fmt.Errorf("complete render: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete render rows: %w", err)
	}
	return n > 0, nil
}

// CompleteFailure records a FAILED result for the given generation, with
// the same stale-write guard as CompleteSuccess.
func (s *OutputStore) CompleteFailure(compositionID uuid.UUID, format models.Format, generation int, message string) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE outputs SET
			status = 'FAILED',
			error_message = $4,
			generated_at = now(),
			updated_at = now()
		WHERE composition_id = $1 AND format = $2 AND generation = $3
		  AND status = 'PROCESSING'
	`, compositionID, format, generation, message)
	if err != nil {
		return false, fmt.Errorf("fail render: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail render rows: %w", err)
	}
	return n > 0, nil
}

// FindByID retrieves an output by id. Returns ErrNotFound if absent.
func (s *OutputStore) FindByID(id uuid.UUID) (*models.Output, error) {
	row := s.db.QueryRow(`
		SELECT `+outputColumns+`
		FROM outputs WHERE id = $1
	`, id)
	o, err := scanOutput(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find output: %w", err)
	}
	return o, nil
}

// ListByComposition returns the current status set for a composition,
// ordered by format for stable polling responses.
func (s *OutputStore) ListByComposition(compositionID uuid.UUID) ([]models.Output, error) {
	rows, err := s.db.Query(`
		SELECT `+outputColumns+`
		FROM outputs
		WHERE composition_id = $1
		ORDER BY format
	`, compositionID)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.Output
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		outputs = append(outputs, *o)
	}
	return outputs, rows.Err()
}

// SetPublishState records a non-primary publish transition (publish
// without primary, unpublish, archive). Demoting away from primary is
// handled here too: archiving or unpublishing clears the flag.
func (s *OutputStore) SetPublishState(id uuid.UUID, state models.PublishState) (*models.Output, error) {
	row := s.db.QueryRow(`
		UPDATE outputs SET
			publish_state = $2,
			is_primary = CASE WHEN $2 = 'PUBLISHED' THEN is_primary ELSE false END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+outputColumns,
		id, state,
	)
	o, err := scanOutput(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set publish state: %w", err)
	}
	return o, nil
}

// PublishAsPrimary marks the output PUBLISHED and primary, atomically
// demoting the parent item's existing primary in the same transaction.
// "Set primary" and "un-set prior primary" are one logical unit, so two
// primaries are never observable for one item.
func (s *OutputStore) PublishAsPrimary(id uuid.UUID) (*models.Output, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE outputs SET is_primary = false, updated_at = now()
		WHERE is_primary
		  AND item_id = (SELECT item_id FROM outputs WHERE id = $1)
		  AND id <> $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("demote prior primary: %w", err)
	}

	row := tx.QueryRow(`
		UPDATE outputs SET
			publish_state = 'PUBLISHED',
			is_primary = true,
			updated_at = now()
		WHERE id = $1
		RETURNING `+outputColumns,
		id,
	)
	o, err := scanOutput(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("publish primary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("publish tx: %w", err)
	}
	return o, nil
}

// FindPrimaryByItem returns the item's current primary output, or
// ErrNotFound when none is designated.
func (s *OutputStore) FindPrimaryByItem(itemID uuid.UUID) (*models.Output, error) {
	row := s.db.QueryRow(`
		SELECT `+outputColumns+`
		FROM outputs
		WHERE item_id = $1 AND is_primary
	`, itemID)
	o, err := scanOutput(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find primary output: %w", err)
	}
	return o, nil
}
