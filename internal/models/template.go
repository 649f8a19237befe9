// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RuleKind tags a conditional-role rule variant. Rules are data, evaluated
// by a small interpreter in the binding package, so template contracts stay
// serializable and auditable.
type RuleKind string

const (
	// RuleRolePresent makes a role required when another role is bound.
	RuleRolePresent RuleKind = "role_present"
	// RuleRoleAbsent makes a role required when another role is not bound.
	RuleRoleAbsent RuleKind = "role_absent"
)

// ConditionalRule declares when a conditional role becomes required.
type ConditionalRule struct {
	Kind RuleKind `json:"kind"`
	Role Role     `json:"role"`
}

// RoleContract is the per-template declaration of which roles a composition
// must, may, or conditionally must fill, plus paired-role rules. Stored as
// a single JSONB document on the templates table.
type RoleContract struct {
	Required    []Role                   `json:"required"`
	Optional    []Role                   `json:"optional"`
	Conditional map[Role]ConditionalRule `json:"conditional,omitempty"`
	Paired      map[Role][]Role          `json:"paired,omitempty"`
}

// Declares reports whether the role appears anywhere in the contract:
// required, optional, conditional, or as a member of a paired set.
func (c *RoleContract) Declares(r Role) bool {
	for _, req := range c.Required {
		if req == r {
			return true
		}
	}
	for _, opt := range c.Optional {
		if opt == r {
			return true
		}
	}
	if _, ok := c.Conditional[r]; ok {
		return true
	}
	if _, ok := c.Paired[r]; ok {
		return true
	}
	for _, partners := range c.Paired {
		for _, p := range partners {
			if p == r {
				return true
			}
		}
	}
	return false
}

// Roles returns every role the contract references, including rule targets,
// without duplicates. Used to check a contract against the role registry.
func (c *RoleContract) Roles() []Role {
	seen := make(map[Role]struct{})
	var out []Role
	add := func(r Role) {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	for _, r := range c.Required {
		add(r)
	}
	for _, r := range c.Optional {
		add(r)
	}
	for r, rule := range c.Conditional {
		add(r)
		add(rule.Role)
	}
	for r, partners := range c.Paired {
		add(r)
		for _, p := range partners {
			add(p)
		}
	}
	return out
}

// Template is a named, versioned contract a composition must satisfy.
// Templates are never mutated in place; a new version is a new record,
// and compositions reference a template by id, never by "latest".
type Template struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	IsActive  bool            `json:"is_active"`
	Contract  RoleContract    `json:"contract"`
	Layout    json.RawMessage `json:"layout"` // per-role geometry, opaque pass-through
	CreatedAt time.Time       `json:"created_at"`
}
