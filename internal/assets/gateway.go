// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package assets is the boundary to the asset library service. Compositions
// only hold opaque asset references; role tags, approval state, and raw
// dimensions live with the library and are resolved in batch before
// validation and dispatch.
package assets

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

// Info is what the asset library knows about one reference.
type Info struct {
	Role     models.Role `json:"role"`
	Approved bool        `json:"approved"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
}

// Gateway resolves asset references to their library metadata. Unknown
// references are simply absent from the result map.
type Gateway interface {
	Resolve(ctx context.Context, refs []string) (map[string]Info, error)
}

// HTTPGateway talks to the asset library over its JSON resolve endpoint
// (POST /v1/assets/resolve).
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for the given base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type resolveRequest struct {
	Refs []string `json:"refs"`
}

type resolveResponse struct {
	Assets map[string]Info `json:"assets"`
}

// Resolve fetches metadata for the given references in one round trip.
func (g *HTTPGateway) Resolve(ctx context.Context, refs []string) (map[string]Info, error) {
	if len(refs) == 0 {
		return map[string]Info{}, nil
	}

	payload, err := json.Marshal(resolveRequest{Refs: refs})
	if err != nil {
		return nil, fmt.Errorf("assets marshal: %w", err)
	}

	url := g.baseURL + "/v1/assets/resolve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("assets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("assets read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assets API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result resolveResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("assets unmarshal: %w", err)
	}
	return result.Assets, nil
}
