// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package renderer is the boundary to the external image-rendering service.
// The service consumes validated bindings plus the template layout and
// produces pixel data; this process never touches pixels itself. The
// renderer is treated as opaque, possibly slow, and possibly failing.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"framepress/internal/models"
)

// Request carries everything the rendering service needs for one format.
type Request struct {
	CompositionID string                 `json:"composition_id"`
	Format        models.Format          `json:"format"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	Bindings      map[models.Role]string `json:"bindings"`
	Layout        json.RawMessage        `json:"layout"`
}

// Result describes one finished render.
type Result struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// Renderer turns one (bindings, layout, format) tuple into an image.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// DefaultTimeout bounds one render round trip. Renders are the slowest
// operation in the system; a stuck render is superseded by re-dispatch
// rather than cancelled.
const DefaultTimeout = 120 * time.Second

// HTTPRenderer calls the rendering service's JSON endpoint
// (POST /v1/render).
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRenderer creates a renderer client for the given base URL. A zero
// timeout falls back to DefaultTimeout.
func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRenderer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Render performs one render round trip.
func (r *HTTPRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("renderer marshal: %w", err)
	}

	url := r.baseURL + "/v1/render"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("renderer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("renderer http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("renderer read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("renderer unmarshal: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("renderer: empty url in response")
	}
	return &result, nil
}
