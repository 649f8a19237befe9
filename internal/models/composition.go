// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CompositionStatus represents where a composition sits in its lifecycle.
type CompositionStatus string

const (
	CompositionStatusDraft     CompositionStatus = "draft"
	CompositionStatusRendering CompositionStatus = "rendering"
	CompositionStatusComplete  CompositionStatus = "complete"
)

// ErrUnknownRole is returned when a binding targets a role the referenced
// template does not declare anywhere in its contract.
var ErrUnknownRole = errors.New("role not declared by template contract")

// Composition is a draft binding of assets to template roles for one parent
// content item. Edits accumulate in DraftOverrides and only reach
// RoleBindings on commit, which also appends a full snapshot to the
// version history.
type Composition struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	TemplateID uuid.UUID `json:"template_id"`

	// RoleBindings maps role → asset reference. Unbound roles are absent.
	RoleBindings map[Role]string `json:"role_bindings"`

	// DraftOverrides holds uncommitted edits. A nil value clears the role
	// on commit; a non-nil value binds or rebinds it.
	DraftOverrides map[Role]*string `json:"draft_overrides"`

	SelectedFormats   []Format          `json:"selected_formats"`
	Status            CompositionStatus `json:"status"`
	CurrentVersion    int               `json:"current_version"`
	DispatchedVersion int               `json:"dispatched_version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// HasUnsavedChanges reports whether any draft override differs from the
// committed bindings.
func (c *Composition) HasUnsavedChanges() bool {
	return len(c.DraftOverrides) > 0
}

// Bind stages an asset reference for a role in the draft overrides. The
// committed bindings are untouched until Commit. Fails with ErrUnknownRole
// when the template contract does not declare the role.
func (c *Composition) Bind(t *Template, role Role, assetRef string) error {
	if !t.Contract.Declares(role) {
		return ErrUnknownRole
	}
	if c.DraftOverrides == nil {
		c.DraftOverrides = make(map[Role]*string)
	}
	ref := assetRef
	c.DraftOverrides[role] = &ref
	return nil
}

// Unbind stages removal of a role's binding in the draft overrides.
func (c *Composition) Unbind(t *Template, role Role) error {
	if !t.Contract.Declares(role) {
		return ErrUnknownRole
	}
	if c.DraftOverrides == nil {
		c.DraftOverrides = make(map[Role]*string)
	}
	c.DraftOverrides[role] = nil
	return nil
}

// MergedBindings returns the committed bindings with draft overrides
// applied, i.e. the binding set a commit would produce. The receiver is not
// mutated.
func (c *Composition) MergedBindings() map[Role]string {
	merged := make(map[Role]string, len(c.RoleBindings))
	for role, ref := range c.RoleBindings {
		merged[role] = ref
	}
	for role, ref := range c.DraftOverrides {
		if ref == nil {
			delete(merged, role)
		} else {
			merged[role] = *ref
		}
	}
	return merged
}

// AssetRefs returns the distinct asset references in the given binding set,
// for batch resolution against the asset gateway.
func AssetRefs(bindings map[Role]string) []string {
	seen := make(map[string]struct{}, len(bindings))
	var refs []string
	for _, ref := range bindings {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// CompositionVersion is one append-only entry in a composition's version
// history: the full binding snapshot at that version. Full snapshots trade
// storage for trivial rollback and audit at human editing volume.
type CompositionVersion struct {
	ID            uuid.UUID       `json:"id"`
	CompositionID uuid.UUID       `json:"composition_id"`
	Version       int             `json:"version"`
	Bindings      map[Role]string `json:"bindings"`
	Editor        string          `json:"editor"`
	CreatedAt     time.Time       `json:"created_at"`
}
