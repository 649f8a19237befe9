// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON HTTP handlers for the FramePress API.
// Handlers are grouped by concern (templates, compositions, outputs) and
// receive their dependencies through the API struct.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"framepress/internal/dispatch"
	"framepress/internal/models"
	"framepress/internal/publish"
	"framepress/internal/roles"
	"framepress/internal/storage"
	"framepress/internal/store"
)

// API groups all HTTP handlers and their dependencies.
type API struct {
	registry     *roles.Registry
	templates    *store.TemplateStore
	compositions *store.CompositionStore
	versions     *store.VersionStore
	outputs      *store.OutputStore
	uploads      *store.UploadStore
	dispatcher   *dispatch.Dispatcher
	machine      *publish.Machine
	storage      *storage.Client // nil when S3 is not configured
}

// New creates the API handler group with the given dependencies.
// storageClient may be nil; stored image URLs are then served as-is.
func New(
	registry *roles.Registry,
	templates *store.TemplateStore,
	compositions *store.CompositionStore,
	versions *store.VersionStore,
	outputs *store.OutputStore,
	uploads *store.UploadStore,
	dispatcher *dispatch.Dispatcher,
	machine *publish.Machine,
	storageClient *storage.Client,
) *API {
	return &API{
		registry:     registry,
		templates:    templates,
		compositions: compositions,
		versions:     versions,
		outputs:      outputs,
		uploads:      uploads,
		dispatcher:   dispatcher,
		machine:      machine,
		storage:      storageClient,
	}
}

// writeJSON encodes v to the response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorResponse is the uniform error body for all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store errors onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "concurrent modification, retry")
	case errors.Is(err, store.ErrNothingToCommit):
		writeError(w, http.StatusConflict, "no pending changes to commit")
	case errors.Is(err, models.ErrUnknownRole):
		writeError(w, http.StatusUnprocessableEntity, "role not declared by template contract")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Roles returns the role catalog grouped by category.
func (a *API) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"roles":      a.registry.Tokens(),
		"categories": a.registry.ByCategory(),
	})
}
