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

// UploadStore persists per-platform upload status for published outputs.
// One row per (output, platform); retries overwrite the prior attempt.
type UploadStore struct {
	db *sql.DB
}

// NewUploadStore creates an UploadStore with the given database connection.
func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

const uploadColumns = `id, output_id, platform, status, platform_url, error_message, created_at, updated_at`

func scanUpload(scanner interface{ Scan(...any) error }) (*models.PlatformUpload, error) {
	var u models.PlatformUpload
	err := scanner.Scan(
		&u.ID, &u.OutputID, &u.Platform, &u.Status, &u.PlatformURL,
		&u.ErrorMessage, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Record upserts the outcome of one upload attempt.
func (s *UploadStore) Record(outputID uuid.UUID, platform string, status models.PlatformUploadStatus, platformURL, errorMessage *string) (*models.PlatformUpload, error) {
	row := s.db.QueryRow(`
		INSERT INTO platform_uploads (output_id, platform, status, platform_url, error_message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (output_id, platform) DO UPDATE SET
			status = EXCLUDED.status,
			platform_url = EXCLUDED.platform_url,
			error_message = EXCLUDED.error_message,
			updated_at = now()
		RETURNING `+uploadColumns,
		outputID, platform, status, platformURL, errorMessage,
	)
	u, err := scanUpload(row)
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return u, nil
}

// ListByOutput returns all platform upload records for one output.
func (s *UploadStore) ListByOutput(outputID uuid.UUID) ([]models.PlatformUpload, error) {
	rows, err := s.db.Query(`
		SELECT `+uploadColumns+`
		FROM platform_uploads
		WHERE output_id = $1
		ORDER BY platform
	`, outputID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.PlatformUpload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	return uploads, rows.Err()
}
