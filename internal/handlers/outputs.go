// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"framepress/internal/models"
	"framepress/internal/publish"
)

func outputID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// writePublishError maps publish lifecycle errors onto HTTP status codes.
func writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, publish.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, publish.ErrNotReady):
		writeError(w, http.StatusConflict, "output render is not ready")
	case errors.Is(err, publish.ErrNotPrimaryEligible):
		writeError(w, http.StatusUnprocessableEntity, "format is not eligible for primary designation")
	default:
		writeStoreError(w, err)
	}
}

// OutputGet returns one output record with its image URL resolved.
func (a *API) OutputGet(w http.ResponseWriter, r *http.Request) {
	id, ok := outputID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}

	out, err := a.outputs.FindByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.writeOutput(w, r, out)
}

type publishRequest struct {
	Primary   bool     `json:"primary"`
	Platforms []string `json:"platforms"`
}

// OutputPublish promotes a READY output to PUBLISHED, optionally as its
// item's primary artifact, and triggers any requested platform uploads.
func (a *API) OutputPublish(w http.ResponseWriter, r *http.Request) {
	id, ok := outputID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validatePlatforms(req.Platforms); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	out, err := a.machine.Publish(r.Context(), id, req.Primary, req.Platforms)
	if err != nil {
		writePublishError(w, err)
		return
	}
	a.writeOutput(w, r, out)
}

// OutputUnpublish retracts a published output.
func (a *API) OutputUnpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := outputID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}

	out, err := a.machine.Unpublish(id)
	if err != nil {
		writePublishError(w, err)
		return
	}
	a.writeOutput(w, r, out)
}

// OutputArchive retires an output permanently.
func (a *API) OutputArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := outputID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}

	out, err := a.machine.Archive(r.Context(), id)
	if err != nil {
		writePublishError(w, err)
		return
	}
	a.writeOutput(w, r, out)
}

// OutputUploads lists an output's per-platform upload records.
func (a *API) OutputUploads(w http.ResponseWriter, r *http.Request) {
	id, ok := outputID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}

	uploads, err := a.uploads.ListByOutput(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}

// ItemPrimary returns the content item's current primary output, the one
// artifact external surfaces should show for it.
func (a *API) ItemPrimary(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	out, err := a.outputs.FindPrimaryByItem(itemID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.writeOutput(w, r, out)
}

func (a *API) writeOutput(w http.ResponseWriter, r *http.Request, out *models.Output) {
	if out.ImageURL != nil {
		resolved, err := a.storage.ResolveURL(r.Context(), *out.ImageURL)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out.ImageURL = &resolved
	}
	writeJSON(w, http.StatusOK, out)
}
