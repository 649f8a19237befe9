// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package platform is the boundary to the platform publishing service,
// which pushes a published output to external destinations (channel art,
// social posts). Upload failures never roll back a publish; the caller
// records them as per-platform upload status instead.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"framepress/internal/models"
)

// UploadRequest identifies what to deliver where.
type UploadRequest struct {
	OutputID uuid.UUID     `json:"output_id"`
	ItemID   uuid.UUID     `json:"item_id"`
	Format   models.Format `json:"format"`
	ImageURL string        `json:"image_url"`
	Platform string        `json:"platform"`
}

// Publisher delivers one published output to one platform and returns the
// platform-side URL.
type Publisher interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// HTTPPublisher calls the publishing service's JSON endpoint
// (POST /v1/uploads).
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPublisher creates a publisher client for the given base URL.
func NewHTTPPublisher(baseURL string) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadResponse struct {
	PlatformURL string `json:"platform_url"`
}

// Upload performs one delivery round trip.
func (p *HTTPPublisher) Upload(ctx context.Context, req UploadRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("platform marshal: %w", err)
	}

	url := p.baseURL + "/v1/uploads"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("platform request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("platform http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("platform read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("platform API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("platform unmarshal: %w", err)
	}
	return result.PlatformURL, nil
}
