// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides PostgreSQL persistence for templates,
// compositions, version history, outputs, and platform uploads.
package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNothingToCommit is returned when a commit is requested with no
	// pending draft overrides.
	ErrNothingToCommit = errors.New("no draft changes to commit")

	// ErrVersionConflict is returned when a commit loses the optimistic
	// version race: another commit already advanced the composition.
	ErrVersionConflict = errors.New("composition version advanced concurrently")
)
