// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package publish drives the lifecycle of finished outputs: DRAFT to
// PUBLISHED, back to UNPUBLISHED, and finally ARCHIVED. The transition
// table is closed; anything not listed is rejected.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"framepress/internal/models"
	"framepress/internal/platform"
)

// ErrInvalidTransition is returned for any publish-state move the
// lifecycle does not allow, including every move out of ARCHIVED.
var ErrInvalidTransition = errors.New("publish state transition not allowed")

// ErrNotReady is returned when promoting an output whose render is not
// READY.
var ErrNotReady = errors.New("output render is not ready")

// ErrNotPrimaryEligible is returned when requesting primary designation
// for a format that cannot carry it.
var ErrNotPrimaryEligible = errors.New("format is not eligible for primary designation")

// transitions is the full lifecycle. ARCHIVED has no outgoing edges.
var transitions = map[models.PublishState][]models.PublishState{
	models.PublishStateDraft:       {models.PublishStatePublished},
	models.PublishStatePublished:   {models.PublishStateUnpublished, models.PublishStateArchived},
	models.PublishStateUnpublished: {models.PublishStatePublished, models.PublishStateArchived},
	models.PublishStateArchived:    {},
}

// Allowed reports whether the lifecycle permits moving from one state to
// another.
func Allowed(from, to models.PublishState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// outputStore is the slice of the output store the machine needs.
type outputStore interface {
	FindByID(id uuid.UUID) (*models.Output, error)
	SetPublishState(id uuid.UUID, state models.PublishState) (*models.Output, error)
	PublishAsPrimary(id uuid.UUID) (*models.Output, error)
}

// uploadStore records per-platform delivery outcomes.
type uploadStore interface {
	Record(outputID uuid.UUID, platform string, status models.PlatformUploadStatus, platformURL, errorMessage *string) (*models.PlatformUpload, error)
}

// ImageStore reclaims stored render images when an output is retired.
// *storage.Client satisfies it.
type ImageStore interface {
	Delete(ctx context.Context, stored string) error
}

// Machine applies publish-state transitions to outputs and triggers
// platform uploads on publish.
type Machine struct {
	outputs   outputStore
	uploads   uploadStore
	publisher platform.Publisher // optional, may be nil
	images    ImageStore         // optional, may be nil
}

// New creates a publish machine. publisher may be nil when no external
// publishing service is configured; publishes then skip platform uploads.
// images may be nil when object storage is not configured; archives then
// leave stored pixels in place.
func New(outputs outputStore, uploads uploadStore, publisher platform.Publisher, images ImageStore) *Machine {
	return &Machine{outputs: outputs, uploads: uploads, publisher: publisher, images: images}
}

// Publish promotes a READY output to PUBLISHED and optionally designates
// it as its item's primary artifact, demoting any prior primary. Platform
// uploads run after the transition commits; their failures are recorded
// per platform and never roll the publish back.
func (m *Machine) Publish(ctx context.Context, outputID uuid.UUID, asPrimary bool, platforms []string) (*models.Output, error) {
	out, err := m.outputs.FindByID(outputID)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	if out.Status != models.OutputStatusReady {
		return nil, ErrNotReady
	}
	if !Allowed(out.PublishState, models.PublishStatePublished) {
		return nil, fmt.Errorf("%w: %s -> PUBLISHED", ErrInvalidTransition, out.PublishState)
	}
	if asPrimary && !out.Format.PrimaryEligible() {
		return nil, ErrNotPrimaryEligible
	}

	if asPrimary {
		out, err = m.outputs.PublishAsPrimary(outputID)
	} else {
		out, err = m.outputs.SetPublishState(outputID, models.PublishStatePublished)
	}
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	slog.Info("output published",
		"output", out.ID,
		"format", out.Format,
		"primary", out.IsPrimary,
	)

	m.uploadAll(ctx, out, platforms)
	return out, nil
}

// Unpublish retracts a published output. The rendered image and its
// record stay intact for later re-publish.
func (m *Machine) Unpublish(outputID uuid.UUID) (*models.Output, error) {
	return m.transition(outputID, models.PublishStateUnpublished)
}

// Archive retires an output permanently and reclaims its stored image.
// ARCHIVED is terminal. Image deletion is best effort; a failed delete
// never rolls the transition back.
func (m *Machine) Archive(ctx context.Context, outputID uuid.UUID) (*models.Output, error) {
	out, err := m.transition(outputID, models.PublishStateArchived)
	if err != nil {
		return nil, err
	}

	if m.images != nil && out.ImageURL != nil {
		if err := m.images.Delete(ctx, *out.ImageURL); err != nil {
			slog.Warn("reclaim archived image", "output", out.ID, "error", err)
		}
	}
	return out, nil
}

func (m *Machine) transition(outputID uuid.UUID, to models.PublishState) (*models.Output, error) {
	out, err := m.outputs.FindByID(outputID)
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	if !Allowed(out.PublishState, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, out.PublishState, to)
	}

	out, err = m.outputs.SetPublishState(outputID, to)
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	slog.Info("output publish state changed", "output", out.ID, "state", to)
	return out, nil
}

// uploadAll pushes the output to each requested platform, recording the
// outcome per platform.
func (m *Machine) uploadAll(ctx context.Context, out *models.Output, platforms []string) {
	if m.publisher == nil || len(platforms) == 0 {
		return
	}
	if out.ImageURL == nil {
		return
	}

	for _, p := range platforms {
		req := platform.UploadRequest{
			OutputID: out.ID,
			ItemID:   out.ItemID,
			Format:   out.Format,
			ImageURL: *out.ImageURL,
			Platform: p,
		}

		platformURL, err := m.publisher.Upload(ctx, req)
		if err != nil {
			msg := err.Error()
			if _, recErr := m.uploads.Record(out.ID, p, models.PlatformUploadFailed, nil, &msg); recErr != nil {
				slog.Error("record failed upload", "output", out.ID, "platform", p, "error", recErr)
			}
			slog.Warn("platform upload failed", "output", out.ID, "platform", p, "error", err)
			continue
		}

		if _, err := m.uploads.Record(out.ID, p, models.PlatformUploadUploaded, &platformURL, nil); err != nil {
			slog.Error("record upload", "output", out.ID, "platform", p, "error", err)
		}
	}
}
