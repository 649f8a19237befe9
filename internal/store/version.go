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

// VersionStore reads composition version history. History rows are
// written only by CompositionStore.Commit; this store never mutates them.
type VersionStore struct {
	db *sql.DB
}

// NewVersionStore creates a VersionStore backed by the given database.
func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

const versionColumns = `id, composition_id, version, bindings, editor, created_at`

func scanVersion(scanner interface{ Scan(...any) error }) (*models.CompositionVersion, error) {
	var v models.CompositionVersion
	var bindings []byte
	err := scanner.Scan(
		&v.ID, &v.CompositionID, &v.Version, &bindings, &v.Editor, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bindings, &v.Bindings); err != nil {
		return nil, fmt.Errorf("decode version bindings: %w", err)
	}
	return &v, nil
}

// ListByComposition returns all history entries for a composition, newest
// first.
func (s *VersionStore) ListByComposition(compositionID uuid.UUID) ([]models.CompositionVersion, error) {
	rows, err := s.db.Query(`
		SELECT `+versionColumns+`
		FROM composition_versions
		WHERE composition_id = $1
		ORDER BY version DESC
	`, compositionID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.CompositionVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// SnapshotAt returns the binding snapshot at one historical version. Used
// for audit and rollback display; never mutates state.
func (s *VersionStore) SnapshotAt(compositionID uuid.UUID, version int) (*models.CompositionVersion, error) {
	row := s.db.QueryRow(`
		SELECT `+versionColumns+`
		FROM composition_versions
		WHERE composition_id = $1 AND version = $2
	`, compositionID, version)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot at version: %w", err)
	}
	return v, nil
}
