// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"framepress/internal/models"
)

// CompositionStore handles composition persistence, including the commit
// path that merges draft overrides and appends version history in one
// transaction.
type CompositionStore struct {
	db *sql.DB
}

// NewCompositionStore creates a CompositionStore with the given database
// connection.
func NewCompositionStore(db *sql.DB) *CompositionStore {
	return &CompositionStore{db: db}
}

const compositionColumns = `id, item_id, template_id, role_bindings, draft_overrides,
	selected_formats, status, current_version, dispatched_version, created_at, updated_at`

func scanComposition(scanner interface{ Scan(...any) error }) (*models.Composition, error) {
	var c models.Composition
	var bindings, overrides, formats []byte
	err := scanner.Scan(
		&c.ID, &c.ItemID, &c.TemplateID, &bindings, &overrides,
		&formats, &c.Status, &c.CurrentVersion, &c.DispatchedVersion,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bindings, &c.RoleBindings); err != nil {
		return nil, fmt.Errorf("decode role bindings: %w", err)
	}
	if err := json.Unmarshal(overrides, &c.DraftOverrides); err != nil {
		return nil, fmt.Errorf("decode draft overrides: %w", err)
	}
	if err := json.Unmarshal(formats, &c.SelectedFormats); err != nil {
		return nil, fmt.Errorf("decode selected formats: %w", err)
	}
	return &c, nil
}

// Create inserts a new composition in draft status with empty bindings.
func (s *CompositionStore) Create(itemID, templateID uuid.UUID) (*models.Composition, error) {
	row := s.db.QueryRow(`
		INSERT INTO compositions (item_id, template_id)
		VALUES ($1, $2)
		RETURNING `+compositionColumns,
		itemID, templateID,
	)
	c, err := scanComposition(row)
	if err != nil {
		return nil, fmt.Errorf("create composition: %w", err)
	}
	return c, nil
}

// FindByID retrieves a composition by id. Returns ErrNotFound if absent.
func (s *CompositionStore) FindByID(id uuid.UUID) (*models.Composition, error) {
	row := s.db.QueryRow(`
		SELECT `+compositionColumns+`
		FROM compositions WHERE id = $1
	`, id)
	c, err := scanComposition(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find composition: %w", err)
	}
	return c, nil
}

// ListByItem returns all compositions for a parent item, newest first.
func (s *CompositionStore) ListByItem(itemID uuid.UUID) ([]models.Composition, error) {
	rows, err := s.db.Query(`
		SELECT `+compositionColumns+`
		FROM compositions
		WHERE item_id = $1
		ORDER BY created_at DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list compositions by item: %w", err)
	}
	defer rows.Close()

	var items []models.Composition
	for rows.Next() {
		c, err := scanComposition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// SaveOverrides persists the composition's draft overrides. Editing a
// complete composition returns it to draft; committed bindings and
// history stay untouched.
func (s *CompositionStore) SaveOverrides(c *models.Composition) (*models.Composition, error) {
	overrides, err := json.Marshal(c.DraftOverrides)
	if err != nil {
		return nil, fmt.Errorf("encode draft overrides: %w", err)
	}
	if c.DraftOverrides == nil {
		overrides = []byte(`{}`)
	}

	row := s.db.QueryRow(`
		UPDATE compositions SET
			draft_overrides = $2,
			status = CASE WHEN status = 'complete' THEN 'draft' ELSE status END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+compositionColumns,
		c.ID, overrides,
	)
	updated, err := scanComposition(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("save overrides: %w", err)
	}
	return updated, nil
}

// Commit atomically merges draft overrides into the committed bindings,
// appends a full-snapshot version row, increments current_version, and
// clears the overrides. The row lock plus the current_version guard make
// concurrent double-commits yield exactly one version increment: the
// loser sees ErrNothingToCommit or ErrVersionConflict, never a duplicate
// or skipped version number.
func (s *CompositionStore) Commit(id uuid.UUID, editor string) (*models.Composition, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT `+compositionColumns+`
		FROM compositions WHERE id = $1
		FOR UPDATE
	`, id)
	c, err := scanComposition(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock composition: %w", err)
	}

	if !c.HasUnsavedChanges() {
		return nil, ErrNothingToCommit
	}

	merged := c.MergedBindings()
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode bindings: %w", err)
	}

	newVersion := c.CurrentVersion + 1
	row = tx.QueryRow(`
		UPDATE compositions SET
			role_bindings = $2,
			draft_overrides = '{}'::jsonb,
			current_version = $3,
			updated_at = now()
		WHERE id = $1 AND current_version = $4
		RETURNING `+compositionColumns,
		c.ID, mergedJSON, newVersion, c.CurrentVersion,
	)
	updated, err := scanComposition(row)
	if err == sql.ErrNoRows {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("commit composition: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO composition_versions (composition_id, version, bindings, editor)
		VALUES ($1, $2, $3, $4)
	`, c.ID, newVersion, mergedJSON, editor)
	if err != nil {
		return nil, fmt.Errorf("append version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// MarkRendering moves a composition into rendering state, recording the
// formats and committed version this dispatch covers.
func (s *CompositionStore) MarkRendering(id uuid.UUID, formats []models.Format, version int) error {
	formatsJSON, err := json.Marshal(formats)
	if err != nil {
		return fmt.Errorf("encode formats: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE compositions SET
			status = 'rendering',
			selected_formats = $2,
			dispatched_version = $3,
			updated_at = now()
		WHERE id = $1
	`, id, formatsJSON, version)
	if err != nil {
		return fmt.Errorf("mark rendering: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishIfAllTerminal flips a rendering composition to complete once
// every selected format has an output in a terminal state. A format with
// no output row at all keeps the composition rendering. Returns true
// when the transition happened in this call.
func (s *CompositionStore) FinishIfAllTerminal(id uuid.UUID) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE compositions c SET status = 'complete', updated_at = now()
		WHERE c.id = $1
		  AND c.status = 'rendering'
		  AND (
			SELECT count(*) FROM outputs o
			WHERE o.composition_id = c.id
			  AND o.status IN ('READY', 'FAILED')
			  AND o.format IN (SELECT jsonb_array_elements_text(c.selected_formats))
		  ) = jsonb_array_length(c.selected_formats)
	`, id)
	if err != nil {
		return false, fmt.Errorf("finish composition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish composition rows: %w", err)
	}
	return n > 0, nil
}
