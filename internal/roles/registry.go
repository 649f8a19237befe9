// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package roles holds the closed vocabulary of semantic role tokens that
// assets can be tagged with. The registry is an immutable value loaded once
// and passed into validation and dispatch, never a process-wide singleton,
// so validator behaviour stays a pure function of its inputs.
package roles

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"framepress/internal/models"
)

//go:embed roles.json
var catalogFS embed.FS

// Registry is the closed set of known role tokens, grouped by category for
// display only. Read-only after construction and safe for concurrent use.
type Registry struct {
	tokens map[models.Role]struct{}
}

// New builds a registry from an explicit token list. Malformed tokens are
// rejected so a bad catalog fails at startup, not during validation.
func New(tokens []models.Role) (*Registry, error) {
	set := make(map[models.Role]struct{}, len(tokens))
	for _, tok := range tokens {
		if !tok.WellFormed() {
			return nil, fmt.Errorf("roles: malformed token %q", tok)
		}
		set[tok] = struct{}{}
	}
	return &Registry{tokens: set}, nil
}

// Load reads the embedded role catalog. The catalog is compiled into the
// binary so no external files are needed at runtime.
func Load() (*Registry, error) {
	data, err := catalogFS.ReadFile("roles.json")
	if err != nil {
		return nil, fmt.Errorf("roles: read catalog: %w", err)
	}
	var tokens []models.Role
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("roles: parse catalog: %w", err)
	}
	return New(tokens)
}

// IsKnown reports whether the token belongs to the vocabulary.
func (r *Registry) IsKnown(token models.Role) bool {
	_, ok := r.tokens[token]
	return ok
}

// Tokens returns the vocabulary in sorted order.
func (r *Registry) Tokens() []models.Role {
	out := make([]models.Role, 0, len(r.tokens))
	for tok := range r.tokens {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ByCategory groups the vocabulary by leading category segment, for
// display purposes only.
func (r *Registry) ByCategory() map[string][]models.Role {
	grouped := make(map[string][]models.Role)
	for _, tok := range r.Tokens() {
		cat := tok.Category()
		grouped[cat] = append(grouped[cat], tok)
	}
	return grouped
}
