// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "strings"

// Role is a semantic token identifying what purpose an asset serves in a
// composition, e.g. "BG.MAIN" or "CHAR.HOST.PRIMARY". Tokens follow the
// form CATEGORY.NAME or CATEGORY.NAME.VARIANT.
type Role string

// Category returns the leading segment of the role token. Categories group
// roles for display only; they carry no validation semantics.
func (r Role) Category() string {
	if i := strings.IndexByte(string(r), '.'); i > 0 {
		return string(r)[:i]
	}
	return string(r)
}

// WellFormed reports whether the token has the CATEGORY.NAME[.VARIANT]
// shape: two or three non-empty uppercase segments separated by dots.
func (r Role) WellFormed() bool {
	parts := strings.Split(string(r), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}
