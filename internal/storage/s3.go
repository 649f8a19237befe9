// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage provides an S3-compatible object storage client for the
// bucket the rendering service writes finished images into. It wraps the
// AWS SDK v2 and is configured for path-style access (required by
// CEPH/Hetzner). The render service stores "s3://bucket/key" URIs on
// output records; this client turns those into URLs a browser can load.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignExpiry is how long a resolved image URL stays valid.
// Editors poll and re-fetch, so short-lived links are fine.
const DefaultPresignExpiry = 15 * time.Minute

// Client wraps an S3 client for the rendered-image bucket.
type Client struct {
	s3        *s3.Client
	presigner *s3.PresignClient
	endpoint  string
	publicURL string // optional CDN/direct URL, skips presigning when set
}

// New creates an S3 storage client with path-style addressing. Returns
// (nil, nil) if endpoint or credentials are empty, allowing the app to
// start without storage; stored URLs are then served as-is.
func New(endpoint, region, accessKey, secretKey, publicURL string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}

	endpoint = strings.TrimRight(endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        s3Client,
		presigner: s3.NewPresignClient(s3Client),
		endpoint:  endpoint,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// SplitURI parses an "s3://bucket/key" URI. Returns ("", "", false) for
// anything else, including plain https URLs.
func SplitURI(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// ResolveURL converts a stored image URL into one a client can fetch.
// "s3://" URIs are presigned (or rewritten to the public URL when one is
// configured); everything else passes through unchanged. A nil receiver
// is a valid passthrough resolver.
func (c *Client) ResolveURL(ctx context.Context, stored string) (string, error) {
	bucket, key, ok := SplitURI(stored)
	if !ok {
		return stored, nil
	}
	if c == nil {
		return "", fmt.Errorf("s3 storage not configured for %s", stored)
	}

	if c.publicURL != "" {
		return c.publicURL + "/" + key, nil
	}

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(DefaultPresignExpiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// Delete removes a rendered image. Used when an archived output's pixels
// are reclaimed.
func (c *Client) Delete(ctx context.Context, stored string) error {
	bucket, key, ok := SplitURI(stored)
	if !ok {
		return nil
	}
	if c == nil {
		return fmt.Errorf("s3 storage not configured for %s", stored)
	}
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}
