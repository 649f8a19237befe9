// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publish

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"framepress/internal/models"
	"framepress/internal/platform"
)

type fakeOutputs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Output
}

func (f *fakeOutputs) FindByID(id uuid.UUID) (*models.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.rows[id]
	if !ok {
		return nil, errors.New("output not found")
	}
	cp := *out
	return &cp, nil
}

func (f *fakeOutputs) SetPublishState(id uuid.UUID, state models.PublishState) (*models.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows[id]
	out.PublishState = state
	if state != models.PublishStatePublished {
		out.IsPrimary = false
	}
	cp := *out
	return &cp, nil
}

func (f *fakeOutputs) PublishAsPrimary(id uuid.UUID) (*models.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.rows[id]
	for _, out := range f.rows {
		if out.ItemID == target.ItemID && out.ID != id {
			out.IsPrimary = false
		}
	}
	target.PublishState = models.PublishStatePublished
	target.IsPrimary = true
	cp := *target
	return &cp, nil
}

type recordedUpload struct {
	platform string
	status   models.PlatformUploadStatus
	url      *string
	errMsg   *string
}

type fakeUploads struct {
	mu      sync.Mutex
	records []recordedUpload
}

func (f *fakeUploads) Record(outputID uuid.UUID, platform string, status models.PlatformUploadStatus, platformURL, errorMessage *string) (*models.PlatformUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedUpload{platform, status, platformURL, errorMessage})
	return &models.PlatformUpload{OutputID: outputID, Platform: platform, Status: status}, nil
}

type fakePublisher struct {
	urls map[string]string
	errs map[string]error
}

func (p *fakePublisher) Upload(ctx context.Context, req platform.UploadRequest) (string, error) {
	if err, ok := p.errs[req.Platform]; ok {
		return "", err
	}
	return p.urls[req.Platform], nil
}

func readyOutput(format models.Format) *models.Output {
	url := "https://cdn.example.com/out.png"
	return &models.Output{
		ID:           uuid.New(),
		ItemID:       uuid.New(),
		Format:       format,
		Status:       models.OutputStatusReady,
		ImageURL:     &url,
		PublishState: models.PublishStateDraft,
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		from, to models.PublishState
		want     bool
	}{
		{models.PublishStateDraft, models.PublishStatePublished, true},
		{models.PublishStateDraft, models.PublishStateArchived, false},
		{models.PublishStateDraft, models.PublishStateUnpublished, false},
		{models.PublishStatePublished, models.PublishStateUnpublished, true},
		{models.PublishStatePublished, models.PublishStateArchived, true},
		{models.PublishStatePublished, models.PublishStateDraft, false},
		{models.PublishStateUnpublished, models.PublishStatePublished, true},
		{models.PublishStateUnpublished, models.PublishStateArchived, true},
		{models.PublishStateArchived, models.PublishStatePublished, false},
		{models.PublishStateArchived, models.PublishStateUnpublished, false},
		{models.PublishStateArchived, models.PublishStateDraft, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.from, tt.to); got != tt.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPublishRequiresReadyRender(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	out.Status = models.OutputStatusProcessing
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	m := New(outs, &fakeUploads{}, nil, nil)

	_, err := m.Publish(context.Background(), out.ID, false, nil)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Publish() error = %v, want ErrNotReady", err)
	}
}

func TestPublishPrimaryRequiresEligibleFormat(t *testing.T) {
	out := readyOutput(models.FormatTikTok)
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	m := New(outs, &fakeUploads{}, nil, nil)

	_, err := m.Publish(context.Background(), out.ID, true, nil)
	if !errors.Is(err, ErrNotPrimaryEligible) {
		t.Fatalf("Publish(primary) error = %v, want ErrNotPrimaryEligible", err)
	}

	// The same output publishes fine without the primary flag.
	published, err := m.Publish(context.Background(), out.ID, false, nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if published.PublishState != models.PublishStatePublished {
		t.Errorf("state = %s, want PUBLISHED", published.PublishState)
	}
	if published.IsPrimary {
		t.Error("output marked primary without the primary flag")
	}
}

func TestPublishAsPrimaryDemotesPrior(t *testing.T) {
	prior := readyOutput(models.FormatYouTube)
	prior.PublishState = models.PublishStatePublished
	prior.IsPrimary = true

	next := readyOutput(models.FormatYouTube)
	next.ItemID = prior.ItemID

	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{prior.ID: prior, next.ID: next}}
	m := New(outs, &fakeUploads{}, nil, nil)

	published, err := m.Publish(context.Background(), next.ID, true, nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !published.IsPrimary {
		t.Fatal("promoted output is not primary")
	}
	if outs.rows[prior.ID].IsPrimary {
		t.Error("prior primary was not demoted")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	m := New(outs, &fakeUploads{}, nil, nil)

	if _, err := m.Unpublish(out.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Unpublish(draft) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Archive(context.Background(), out.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Archive(draft) error = %v, want ErrInvalidTransition", err)
	}

	if _, err := m.Publish(context.Background(), out.ID, false, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	un, err := m.Unpublish(out.ID)
	if err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}
	if un.PublishState != models.PublishStateUnpublished {
		t.Errorf("state = %s, want UNPUBLISHED", un.PublishState)
	}

	// Unpublished outputs can be re-published.
	if _, err := m.Publish(context.Background(), out.ID, false, nil); err != nil {
		t.Fatalf("re-Publish() error = %v", err)
	}

	arch, err := m.Archive(context.Background(), out.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if arch.PublishState != models.PublishStateArchived {
		t.Errorf("state = %s, want ARCHIVED", arch.PublishState)
	}

	// Nothing leaves ARCHIVED.
	if _, err := m.Publish(context.Background(), out.ID, false, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Publish(archived) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Unpublish(out.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Unpublish(archived) error = %v, want ErrInvalidTransition", err)
	}
}

func TestUnpublishClearsPrimary(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	m := New(outs, &fakeUploads{}, nil, nil)

	if _, err := m.Publish(context.Background(), out.ID, true, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	un, err := m.Unpublish(out.ID)
	if err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}
	if un.IsPrimary {
		t.Error("unpublished output still marked primary")
	}
}

type fakeImages struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeImages) Delete(ctx context.Context, stored string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, stored)
	return f.err
}

func TestArchiveReclaimsStoredImage(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	out.PublishState = models.PublishStatePublished
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	images := &fakeImages{}
	m := New(outs, &fakeUploads{}, nil, images)

	arch, err := m.Archive(context.Background(), out.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if arch.PublishState != models.PublishStateArchived {
		t.Fatalf("state = %s, want ARCHIVED", arch.PublishState)
	}
	if len(images.deleted) != 1 || images.deleted[0] != *out.ImageURL {
		t.Errorf("deleted = %v, want [%s]", images.deleted, *out.ImageURL)
	}
}

func TestArchiveSurvivesFailedImageDelete(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	out.PublishState = models.PublishStatePublished
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	images := &fakeImages{err: errors.New("bucket unreachable")}
	m := New(outs, &fakeUploads{}, nil, images)

	arch, err := m.Archive(context.Background(), out.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if arch.PublishState != models.PublishStateArchived {
		t.Errorf("state = %s, want ARCHIVED despite failed delete", arch.PublishState)
	}
}

func TestArchiveInvalidTransitionDeletesNothing(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	images := &fakeImages{}
	m := New(outs, &fakeUploads{}, nil, images)

	if _, err := m.Archive(context.Background(), out.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Archive(draft) error = %v, want ErrInvalidTransition", err)
	}
	if len(images.deleted) != 0 {
		t.Errorf("deleted %v on a rejected transition, want none", images.deleted)
	}
}

func TestPublishRecordsPlatformUploads(t *testing.T) {
	out := readyOutput(models.FormatYouTube)
	outs := &fakeOutputs{rows: map[uuid.UUID]*models.Output{out.ID: out}}
	uploads := &fakeUploads{}
	pub := &fakePublisher{
		urls: map[string]string{"youtube": "https://youtube.example.com/thumb/1"},
		errs: map[string]error{"x": errors.New("rate limited")},
	}
	m := New(outs, uploads, pub, nil)

	published, err := m.Publish(context.Background(), out.ID, false, []string{"youtube", "x"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// The failed upload never rolls back the publish.
	if published.PublishState != models.PublishStatePublished {
		t.Fatalf("state = %s, want PUBLISHED despite upload failure", published.PublishState)
	}

	if len(uploads.records) != 2 {
		t.Fatalf("got %d upload records, want 2", len(uploads.records))
	}
	byPlatform := make(map[string]recordedUpload)
	for _, r := range uploads.records {
		byPlatform[r.platform] = r
	}
	yt := byPlatform["youtube"]
	if yt.status != models.PlatformUploadUploaded {
		t.Errorf("youtube status = %s, want uploaded", yt.status)
	}
	if yt.url == nil || *yt.url != "https://youtube.example.com/thumb/1" {
		t.Errorf("youtube url = %v", yt.url)
	}
	x := byPlatform["x"]
	if x.status != models.PlatformUploadFailed {
		t.Errorf("x status = %s, want failed", x.status)
	}
	if x.errMsg == nil || *x.errMsg != "rate limited" {
		t.Errorf("x error = %v, want rate limited", x.errMsg)
	}
}
