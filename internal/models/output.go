// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// OutputStatus tracks one format's render through its generation lifecycle.
type OutputStatus string

const (
	OutputStatusProcessing OutputStatus = "PROCESSING"
	OutputStatusReady      OutputStatus = "READY"
	OutputStatusFailed     OutputStatus = "FAILED"
)

// PublishState governs promotion of a finished output.
type PublishState string

const (
	PublishStateDraft       PublishState = "DRAFT"
	PublishStatePublished   PublishState = "PUBLISHED"
	PublishStateUnpublished PublishState = "UNPUBLISHED"
	PublishStateArchived    PublishState = "ARCHIVED"
)

// Output is the per-format render record for a composition. There is
// exactly one row per (composition, format) pair; a re-render overwrites
// the prior record rather than appending.
type Output struct {
	ID            uuid.UUID `json:"id"`
	CompositionID uuid.UUID `json:"composition_id"`
	// ItemID duplicates the owning composition's parent item so the
	// single-primary rule can be enforced in one statement.
	ItemID uuid.UUID `json:"item_id"`
	Format Format    `json:"format"`

	Status OutputStatus `json:"status"`

	// Populated only when READY.
	ImageURL *string `json:"image_url,omitempty"`
	Width    *int    `json:"width,omitempty"`
	Height   *int    `json:"height,omitempty"`
	FileSize *int64  `json:"file_size,omitempty"`

	// Populated only when FAILED.
	ErrorMessage *string `json:"error_message,omitempty"`

	// Generation increments on every dispatch of this pair. A render
	// result is persisted only if its generation is still the latest, so
	// a superseded slow render can never clobber a fresher one.
	Generation int `json:"generation"`

	PublishState PublishState `json:"publish_state"`
	IsPrimary    bool         `json:"is_primary"`

	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Terminal reports whether the render reached READY or FAILED.
func (o *Output) Terminal() bool {
	return o.Status == OutputStatusReady || o.Status == OutputStatusFailed
}

// PlatformUploadStatus tracks delivery of a published output to one
// external platform.
type PlatformUploadStatus string

const (
	PlatformUploadPending  PlatformUploadStatus = "pending"
	PlatformUploadUploaded PlatformUploadStatus = "uploaded"
	PlatformUploadFailed   PlatformUploadStatus = "failed"
)

// PlatformUpload records the outcome of pushing a published output to a
// platform. Upload failures never roll back the PUBLISHED transition; they
// live here instead.
type PlatformUpload struct {
	ID           uuid.UUID            `json:"id"`
	OutputID     uuid.UUID            `json:"output_id"`
	Platform     string               `json:"platform"`
	Status       PlatformUploadStatus `json:"status"`
	PlatformURL  *string              `json:"platform_url,omitempty"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}
