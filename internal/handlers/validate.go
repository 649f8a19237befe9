// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"framepress/internal/models"
)

// Validation limits for API inputs.
const (
	maxAssetRefLen     = 500
	maxEditorLen       = 200
	maxTemplateNameLen = 200
	maxLayoutLen       = 500_000
	maxFormatsPerReq   = 10
	maxPlatformsPerReq = 10
	maxPlatformLen     = 100
)

// validateAssetRef checks a bind request's asset reference.
func validateAssetRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "asset_ref is required"
	}
	if utf8.RuneCountInString(ref) > maxAssetRefLen {
		return "asset_ref is too long (max 500 characters)"
	}
	return ""
}

// validateEditor checks the editor attribution field.
func validateEditor(editor string) string {
	if strings.TrimSpace(editor) == "" {
		return "editor is required"
	}
	if utf8.RuneCountInString(editor) > maxEditorLen {
		return "editor is too long (max 200 characters)"
	}
	return ""
}

// validateFormats checks a render request's format list.
func validateFormats(formats []models.Format) string {
	if len(formats) == 0 {
		return "at least one format is required"
	}
	if len(formats) > maxFormatsPerReq {
		return "too many formats requested"
	}
	for _, f := range formats {
		if !f.Known() {
			return "unknown format " + string(f)
		}
	}
	return ""
}

// validatePlatforms checks a publish request's platform list.
func validatePlatforms(platforms []string) string {
	if len(platforms) > maxPlatformsPerReq {
		return "too many platforms requested"
	}
	for _, p := range platforms {
		if strings.TrimSpace(p) == "" {
			return "platform name cannot be empty"
		}
		if utf8.RuneCountInString(p) > maxPlatformLen {
			return "platform name is too long (max 100 characters)"
		}
	}
	return ""
}

// validateTemplateInput checks template creation fields.
func validateTemplateInput(name string, version int, layout json.RawMessage) string {
	if strings.TrimSpace(name) == "" {
		return "name is required"
	}
	if utf8.RuneCountInString(name) > maxTemplateNameLen {
		return "name is too long (max 200 characters)"
	}
	if version < 1 {
		return "version must be at least 1"
	}
	if len(layout) > maxLayoutLen {
		return "layout is too large (max 500,000 bytes)"
	}
	if len(layout) > 0 && !json.Valid(layout) {
		return "layout must be valid JSON"
	}
	return ""
}
