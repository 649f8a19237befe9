// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package binding validates a composition's role bindings against a
// template's role contract. Validation is deterministic and side-effect
// free: the same template, binding set, and asset metadata always produce
// the same result.
//
// When a role appears in more than one rule category the precedence is
// required > conditional-when-triggered > paired > optional.
package binding

import (
	"fmt"
	"sort"

	"framepress/internal/assets"
	"framepress/internal/models"
	"framepress/internal/roles"
)

// ViolationKind classifies one contract violation.
type ViolationKind string

const (
	// ViolationPair: a paired role is bound without one of its partners.
	ViolationPair ViolationKind = "pair_incomplete"
	// ViolationUnexpectedRole: a bound role the contract never declares.
	// Fail-closed: the template is the single source of truth for what
	// may be bound.
	ViolationUnexpectedRole ViolationKind = "unexpected_role"
	// ViolationAssetNotApproved: the bound asset is unknown to the
	// library or not approved for use.
	ViolationAssetNotApproved ViolationKind = "asset_not_approved"
)

// Violation names the role (and partner, for pair violations) behind one
// failed check, with enough structure for a precise UI message.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Role     models.Role   `json:"role"`
	Partner  models.Role   `json:"partner,omitempty"`
	AssetRef string        `json:"asset_ref,omitempty"`
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationPair:
		return fmt.Sprintf("%s is bound without its partner %s", v.Role, v.Partner)
	case ViolationUnexpectedRole:
		return fmt.Sprintf("%s is not declared by the template", v.Role)
	case ViolationAssetNotApproved:
		return fmt.Sprintf("%s is bound to unapproved asset %s", v.Role, v.AssetRef)
	default:
		return fmt.Sprintf("%s: %s", v.Kind, v.Role)
	}
}

// Result is the outcome of validating one binding set. OK is true iff
// Missing is empty and no violations were produced.
type Result struct {
	OK         bool          `json:"ok"`
	Missing    []models.Role `json:"missing,omitempty"`
	Violations []Violation   `json:"violations,omitempty"`
}

// Validate checks committed bindings against the template contract.
// assetInfo carries library metadata for every bound reference; pass nil to
// skip the approval check (contract-only validation).
func Validate(t *models.Template, bindings map[models.Role]string, assetInfo map[string]assets.Info) Result {
	var res Result

	// Required roles must be present.
	for _, role := range t.Contract.Required {
		if _, ok := bindings[role]; !ok {
			res.Missing = append(res.Missing, role)
		}
	}

	// Conditional roles become required exactly when their rule evaluates
	// true against the current binding set.
	condRoles := sortedRoles(t.Contract.Conditional)
	for _, role := range condRoles {
		rule := t.Contract.Conditional[role]
		if !evalRule(rule, bindings) {
			continue
		}
		if _, ok := bindings[role]; !ok {
			res.Missing = append(res.Missing, role)
		}
	}

	// Bound paired roles need every partner bound too, regardless of bind
	// order.
	pairRoles := sortedRoles(t.Contract.Paired)
	for _, role := range pairRoles {
		if _, ok := bindings[role]; !ok {
			continue
		}
		for _, partner := range t.Contract.Paired[role] {
			if _, ok := bindings[partner]; !ok {
				res.Violations = append(res.Violations, Violation{
					Kind:    ViolationPair,
					Role:    role,
					Partner: partner,
				})
			}
		}
	}

	// Anything bound outside the contract is rejected.
	for _, role := range sortedBindings(bindings) {
		if !t.Contract.Declares(role) {
			res.Violations = append(res.Violations, Violation{
				Kind: ViolationUnexpectedRole,
				Role: role,
			})
		}
	}

	// Bindings to unapproved (or unknown) assets are unusable.
	if assetInfo != nil {
		for _, role := range sortedBindings(bindings) {
			ref := bindings[role]
			info, ok := assetInfo[ref]
			if !ok || !info.Approved {
				res.Violations = append(res.Violations, Violation{
					Kind:     ViolationAssetNotApproved,
					Role:     role,
					AssetRef: ref,
				})
			}
		}
	}

	res.OK = len(res.Missing) == 0 && len(res.Violations) == 0
	return res
}

// evalRule interprets one tagged rule variant against the binding set.
// Unknown kinds evaluate false, so an old binary never enforces a rule it
// does not understand.
func evalRule(rule models.ConditionalRule, bindings map[models.Role]string) bool {
	_, bound := bindings[rule.Role]
	switch rule.Kind {
	case models.RuleRolePresent:
		return bound
	case models.RuleRoleAbsent:
		return !bound
	default:
		return false
	}
}

// CheckContract verifies every role a template contract references is known
// to the registry. A template referencing an unknown role is a fatal
// configuration error, reported when the template is loaded, never deferred
// to validation time.
func CheckContract(reg *roles.Registry, t *models.Template) error {
	for _, role := range t.Contract.Roles() {
		if !reg.IsKnown(role) {
			return fmt.Errorf("template %q v%d references role %q: %w", t.Name, t.Version, role, models.ErrUnknownRole)
		}
	}
	return nil
}

// sortedRoles returns map keys in stable order so results are deterministic
// across runs.
func sortedRoles[V any](m map[models.Role]V) []models.Role {
	keys := make([]models.Role, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedBindings(bindings map[models.Role]string) []models.Role {
	return sortedRoles(bindings)
}
