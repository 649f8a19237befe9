// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"framepress/internal/models"
)

// TemplatesList returns all template versions, newest first per name.
func (a *API) TemplatesList(w http.ResponseWriter, r *http.Request) {
	templates, err := a.templates.List()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// TemplateGet returns one template by id.
func (a *API) TemplateGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	tmpl, err := a.templates.Load(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// TemplateGetVersion returns one template by name and version number.
func (a *API) TemplateGetVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "invalid template version")
		return
	}

	tmpl, err := a.templates.LoadVersion(name, version)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

type createTemplateRequest struct {
	Name     string              `json:"name"`
	Version  int                 `json:"version"`
	IsActive bool                `json:"is_active"`
	Contract models.RoleContract `json:"contract"`
	Layout   json.RawMessage     `json:"layout"`
}

// TemplateCreate registers a new template version. The contract is checked
// against the role registry; a contract referencing an unknown role is
// rejected outright rather than stored.
func (a *API) TemplateCreate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTemplateInput(req.Name, req.Version, req.Layout); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	tmpl, err := a.templates.Create(&models.Template{
		Name:     req.Name,
		Version:  req.Version,
		IsActive: req.IsActive,
		Contract: req.Contract,
		Layout:   req.Layout,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}
