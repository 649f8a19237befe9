// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

// Format identifies one render output target, e.g. "YOUTUBE".
type Format string

const (
	FormatYouTube   Format = "YOUTUBE"
	FormatInstagram Format = "INSTAGRAM"
	FormatTikTok    Format = "TIKTOK"
	FormatX         Format = "X"
)

// FormatSpec describes the pixel dimensions of a format and whether an
// output rendered in it may be designated as the item's primary artifact.
type FormatSpec struct {
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	PrimaryEligible bool `json:"primary_eligible"`
}

// FormatSpecs is the closed set of supported output formats. Only the
// 16:9 YouTube frame may become an item's primary artifact; the vertical
// and square crops are derivatives.
var FormatSpecs = map[Format]FormatSpec{
	FormatYouTube:   {Width: 1280, Height: 720, PrimaryEligible: true},
	FormatInstagram: {Width: 1080, Height: 1080, PrimaryEligible: false},
	FormatTikTok:    {Width: 1080, Height: 1920, PrimaryEligible: false},
	FormatX:         {Width: 1200, Height: 675, PrimaryEligible: false},
}

// Known reports whether the format is a supported output target.
func (f Format) Known() bool {
	_, ok := FormatSpecs[f]
	return ok
}

// PrimaryEligible reports whether outputs of this format may be promoted
// with is_primary = true.
func (f Format) PrimaryEligible() bool {
	return FormatSpecs[f].PrimaryEligible
}
