// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"framepress/internal/dispatch"
	"framepress/internal/models"
)

func compositionID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

type createCompositionRequest struct {
	ItemID     uuid.UUID `json:"item_id"`
	TemplateID uuid.UUID `json:"template_id"`
}

// CompositionCreate starts a new draft composition for a content item
// against a specific template version.
func (a *API) CompositionCreate(w http.ResponseWriter, r *http.Request) {
	var req createCompositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == uuid.Nil || req.TemplateID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "item_id and template_id are required")
		return
	}

	// The template must exist and carry a valid contract before a
	// composition can reference it.
	if _, err := a.templates.Load(req.TemplateID); err != nil {
		writeStoreError(w, err)
		return
	}

	comp, err := a.compositions.Create(req.ItemID, req.TemplateID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

// CompositionGet returns one composition, draft overrides included.
func (a *API) CompositionGet(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}

	comp, err := a.compositions.FindByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// CompositionsByItem lists all compositions of one content item.
func (a *API) CompositionsByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	comps, err := a.compositions.ListByItem(itemID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compositions": comps})
}

type bindRequest struct {
	AssetRef string `json:"asset_ref"`
}

// Bind stages an asset reference for one role in the composition's draft
// overrides. Committed bindings stay untouched until an explicit commit.
func (a *API) Bind(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}
	role := models.Role(chi.URLParam(r, "role"))

	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateAssetRef(req.AssetRef); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	comp, tmpl, err := a.loadWithTemplate(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := comp.Bind(tmpl, role, req.AssetRef); err != nil {
		writeStoreError(w, err)
		return
	}

	saved, err := a.compositions.SaveOverrides(comp)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Unbind stages removal of one role's binding in the draft overrides.
func (a *API) Unbind(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}
	role := models.Role(chi.URLParam(r, "role"))

	comp, tmpl, err := a.loadWithTemplate(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := comp.Unbind(tmpl, role); err != nil {
		writeStoreError(w, err)
		return
	}

	saved, err := a.compositions.SaveOverrides(comp)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type commitRequest struct {
	Editor string `json:"editor"`
}

// Commit applies the draft overrides to the committed bindings and appends
// a snapshot to the version history. Committing with no pending changes is
// a conflict, not a silent no-op, so clients cannot mistake a stale retry
// for a new version.
func (a *API) Commit(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateEditor(req.Editor); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	comp, err := a.compositions.Commit(id, req.Editor)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// Validate runs the binding validator against the composition's merged
// bindings (committed plus staged) and returns the verdict without
// changing anything. Editors call this for pre-flight feedback.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}

	comp, tmpl, err := a.loadWithTemplate(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	result, err := a.dispatcher.Preview(r.Context(), tmpl, comp.MergedBindings())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type renderRequest struct {
	Formats []models.Format `json:"formats"`
	Editor  string          `json:"editor"`
}

// Render dispatches the composition to the rendering service for the
// requested formats. Returns 202 with the PROCESSING output records;
// clients poll the outputs endpoint for completion.
func (a *API) Render(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateFormats(req.Formats); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateEditor(req.Editor); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := a.dispatcher.Dispatch(r.Context(), id, req.Formats, req.Editor); err != nil {
		var nre *dispatch.NotRenderableError
		if errors.As(err, &nre) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "composition not renderable",
				"missing":    nre.Result.Missing,
				"violations": nre.Result.Violations,
			})
			return
		}
		writeStoreError(w, err)
		return
	}

	a.writeOutputs(w, r, id, http.StatusAccepted)
}

// Outputs returns the composition's per-format render records, with
// stored image URIs resolved to fetchable URLs.
func (a *API) Outputs(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}
	a.writeOutputs(w, r, id, http.StatusOK)
}

func (a *API) writeOutputs(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	outputs, err := a.dispatcher.Status(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	for i := range outputs {
		if outputs[i].ImageURL == nil {
			continue
		}
		resolved, err := a.storage.ResolveURL(r.Context(), *outputs[i].ImageURL)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		outputs[i].ImageURL = &resolved
	}
	writeJSON(w, status, map[string]any{"outputs": outputs})
}

// Versions lists the composition's version history, newest first.
func (a *API) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}

	versions, err := a.versions.ListByComposition(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// VersionAt returns the full binding snapshot at one version number.
func (a *API) VersionAt(w http.ResponseWriter, r *http.Request) {
	id, ok := compositionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid composition id")
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	snapshot, err := a.versions.SnapshotAt(id, version)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) loadWithTemplate(id uuid.UUID) (*models.Composition, *models.Template, error) {
	comp, err := a.compositions.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := a.templates.Load(comp.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	return comp, tmpl, nil
}
