// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"framepress/internal/assets"
	"framepress/internal/models"
	"framepress/internal/renderer"
)

type fakeCompositions struct {
	mu        sync.Mutex
	comps     map[uuid.UUID]*models.Composition
	committed int
	finished  int
}

func (f *fakeCompositions) FindByID(id uuid.UUID) (*models.Composition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comps[id]
	if !ok {
		return nil, errors.New("composition not found")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCompositions) Commit(id uuid.UUID, editor string) (*models.Composition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.comps[id]
	c.RoleBindings = c.MergedBindings()
	c.DraftOverrides = nil
	c.CurrentVersion++
	f.committed++
	cp := *c
	return &cp, nil
}

func (f *fakeCompositions) MarkRendering(id uuid.UUID, formats []models.Format, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.comps[id]
	c.Status = models.CompositionStatusRendering
	c.SelectedFormats = formats
	c.DispatchedVersion = version
	return nil
}

func (f *fakeCompositions) FinishIfAllTerminal(id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	return false, nil
}

type fakeOutputs struct {
	mu   sync.Mutex
	rows map[models.Format]*models.Output
}

func newFakeOutputs() *fakeOutputs {
	return &fakeOutputs{rows: make(map[models.Format]*models.Output)}
}

func (f *fakeOutputs) BeginRender(compositionID, itemID uuid.UUID, format models.Format) (*models.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.rows[format]
	if !ok {
		out = &models.Output{
			ID:            uuid.New(),
			CompositionID: compositionID,
			ItemID:        itemID,
			Format:        format,
			PublishState:  models.PublishStateDraft,
		}
		f.rows[format] = out
	}
	out.Status = models.OutputStatusProcessing
	out.Generation++
	out.ImageURL = nil
	out.ErrorMessage = nil
	cp := *out
	return &cp, nil
}

func (f *fakeOutputs) CompleteSuccess(compositionID uuid.UUID, format models.Format, generation int, res models.Output) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows[format]
	if out.Generation != generation || out.Status != models.OutputStatusProcessing {
		return false, nil
	}
	out.Status = models.OutputStatusReady
	out.ImageURL = res.ImageURL
	out.Width = res.Width
	out.Height = res.Height
	out.FileSize = res.FileSize
	return true, nil
}

func (f *fakeOutputs) CompleteFailure(compositionID uuid.UUID, format models.Format, generation int, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows[format]
	if out.Generation != generation || out.Status != models.OutputStatusProcessing {
		return false, nil
	}
	out.Status = models.OutputStatusFailed
	out.ErrorMessage = &message
	return true, nil
}

func (f *fakeOutputs) ListByComposition(compositionID uuid.UUID) ([]models.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var outs []models.Output
	for _, out := range f.rows {
		outs = append(outs, *out)
	}
	return outs, nil
}

func (f *fakeOutputs) get(format models.Format) models.Output {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[format]
}

func (f *fakeOutputs) lookup(format models.Format) (models.Output, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.rows[format]
	if !ok {
		return models.Output{}, false
	}
	return *out, true
}

type fakeTemplates struct {
	tmpl *models.Template
}

func (f *fakeTemplates) Load(id uuid.UUID) (*models.Template, error) {
	if f.tmpl == nil || f.tmpl.ID != id {
		return nil, errors.New("template not found")
	}
	return f.tmpl, nil
}

type fakeGateway struct {
	info map[string]assets.Info
	err  error
}

func (g *fakeGateway) Resolve(ctx context.Context, refs []string) (map[string]assets.Info, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make(map[string]assets.Info, len(refs))
	for _, ref := range refs {
		if info, ok := g.info[ref]; ok {
			out[ref] = info
		}
	}
	return out, nil
}

// fakeRenderer returns a canned result or error per format. When block is
// set, Render waits on it before returning, letting tests order the
// completion of in-flight renders.
type fakeRenderer struct {
	mu      sync.Mutex
	results map[models.Format]renderer.Result
	errs    map[models.Format]error
	block   chan struct{}
	calls   []renderer.Request
}

func (r *fakeRenderer) Render(ctx context.Context, req renderer.Request) (*renderer.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := r.errs[req.Format]; ok {
		return nil, err
	}
	res := r.results[req.Format]
	return &res, nil
}

func approvedInfo(bindings map[models.Role]string) map[string]assets.Info {
	info := make(map[string]assets.Info)
	for role, ref := range bindings {
		info[ref] = assets.Info{Role: role, Approved: true, Width: 1920, Height: 1080}
	}
	return info
}

func testFixture() (*fakeCompositions, *fakeTemplates, *models.Composition) {
	tmpl := &models.Template{
		ID:      uuid.New(),
		Name:    "episode-standard",
		Version: 1,
		Contract: models.RoleContract{
			Required: []models.Role{"BG.MAIN", "CHAR.HOST.PRIMARY"},
			Optional: []models.Role{"TEXT.TITLE.PRIMARY"},
		},
	}
	comp := &models.Composition{
		ID:         uuid.New(),
		ItemID:     uuid.New(),
		TemplateID: tmpl.ID,
		RoleBindings: map[models.Role]string{
			"BG.MAIN":           "asset-bg",
			"CHAR.HOST.PRIMARY": "asset-host",
		},
		Status:         models.CompositionStatusDraft,
		CurrentVersion: 1,
	}
	comps := &fakeCompositions{comps: map[uuid.UUID]*models.Composition{comp.ID: comp}}
	return comps, &fakeTemplates{tmpl: tmpl}, comp
}

func TestDispatchRendersAllFormats(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	url := func(f models.Format) string { return fmt.Sprintf("https://cdn.example.com/%s.png", f) }
	rend := &fakeRenderer{results: map[models.Format]renderer.Result{
		models.FormatYouTube:   {URL: url(models.FormatYouTube), Width: 1280, Height: 720, FileSize: 1024},
		models.FormatInstagram: {URL: url(models.FormatInstagram), Width: 1080, Height: 1080, FileSize: 2048},
	}}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}

	d := New(comps, outs, tmpls, gw, rend, nil, time.Second)

	formats := []models.Format{models.FormatYouTube, models.FormatInstagram}
	if err := d.Dispatch(context.Background(), comp.ID, formats, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	for _, f := range formats {
		out := outs.get(f)
		if out.Status != models.OutputStatusReady {
			t.Errorf("format %s: status = %s, want READY", f, out.Status)
		}
		if out.ImageURL == nil || *out.ImageURL != url(f) {
			t.Errorf("format %s: image url = %v, want %s", f, out.ImageURL, url(f))
		}
		if out.Generation != 1 {
			t.Errorf("format %s: generation = %d, want 1", f, out.Generation)
		}
	}
	if comps.committed != 0 {
		t.Errorf("committed %d times with no pending edits, want 0", comps.committed)
	}
}

func TestDispatchOneFailureDoesNotBlockOthers(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	rend := &fakeRenderer{
		results: map[models.Format]renderer.Result{
			models.FormatYouTube: {URL: "https://cdn.example.com/yt.png", Width: 1280, Height: 720},
		},
		errs: map[models.Format]error{
			models.FormatTikTok: errors.New("render worker crashed"),
		},
	}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, rend, nil, time.Second)

	err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube, models.FormatTikTok}, "ana")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	if got := outs.get(models.FormatYouTube).Status; got != models.OutputStatusReady {
		t.Errorf("YOUTUBE status = %s, want READY", got)
	}
	failed := outs.get(models.FormatTikTok)
	if failed.Status != models.OutputStatusFailed {
		t.Errorf("TIKTOK status = %s, want FAILED", failed.Status)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage != "render worker crashed" {
		t.Errorf("TIKTOK error = %v, want render worker crashed", failed.ErrorMessage)
	}
}

func TestDispatchValidationFailureCreatesNoOutputs(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	// Drop a required binding.
	comps.comps[comp.ID].RoleBindings = map[models.Role]string{"BG.MAIN": "asset-bg"}

	gw := &fakeGateway{info: approvedInfo(map[models.Role]string{"BG.MAIN": "asset-bg"})}
	d := New(comps, outs, tmpls, gw, &fakeRenderer{}, nil, time.Second)

	err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana")
	var nre *NotRenderableError
	if !errors.As(err, &nre) {
		t.Fatalf("Dispatch() error = %v, want NotRenderableError", err)
	}
	if len(nre.Result.Missing) != 1 || nre.Result.Missing[0] != "CHAR.HOST.PRIMARY" {
		t.Errorf("missing = %v, want [CHAR.HOST.PRIMARY]", nre.Result.Missing)
	}
	if len(outs.rows) != 0 {
		t.Errorf("got %d output rows after failed validation, want 0", len(outs.rows))
	}
	if got := comps.comps[comp.ID].Status; got != models.CompositionStatusDraft {
		t.Errorf("composition status = %s, want draft", got)
	}
}

func TestDispatchCommitsPendingEdits(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	ref := "asset-title"
	comps.comps[comp.ID].DraftOverrides = map[models.Role]*string{"TEXT.TITLE.PRIMARY": &ref}

	info := approvedInfo(comp.RoleBindings)
	info[ref] = assets.Info{Role: "TEXT.TITLE.PRIMARY", Approved: true}
	rend := &fakeRenderer{results: map[models.Format]renderer.Result{
		models.FormatYouTube: {URL: "https://cdn.example.com/yt.png"},
	}}
	d := New(comps, outs, tmpls, &fakeGateway{info: info}, rend, nil, time.Second)

	if err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	if comps.committed != 1 {
		t.Fatalf("committed %d times, want 1", comps.committed)
	}
	if got := comps.comps[comp.ID].DispatchedVersion; got != 2 {
		t.Errorf("dispatched version = %d, want 2", got)
	}

	rend.mu.Lock()
	defer rend.mu.Unlock()
	if len(rend.calls) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(rend.calls))
	}
	if got := rend.calls[0].Bindings["TEXT.TITLE.PRIMARY"]; got != ref {
		t.Errorf("render bindings missing committed edit, got %q", got)
	}
}

func TestRedispatchDiscardsStaleRender(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	block := make(chan struct{})
	slow := &fakeRenderer{
		results: map[models.Format]renderer.Result{
			models.FormatYouTube: {URL: "https://cdn.example.com/stale.png"},
		},
		block: block,
	}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, slow, nil, 5*time.Second)

	if err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana"); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	// Second dispatch bumps the generation while the first render blocks.
	fresh := &fakeRenderer{results: map[models.Format]renderer.Result{
		models.FormatYouTube: {URL: "https://cdn.example.com/fresh.png"},
	}}
	d2 := New(comps, outs, tmpls, gw, fresh, nil, time.Second)
	if err := d2.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana"); err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}
	d2.Wait()

	close(block)
	d.Wait()

	out := outs.get(models.FormatYouTube)
	if out.Generation != 2 {
		t.Fatalf("generation = %d, want 2", out.Generation)
	}
	if out.Status != models.OutputStatusReady {
		t.Fatalf("status = %s, want READY", out.Status)
	}
	if out.ImageURL == nil || *out.ImageURL != "https://cdn.example.com/fresh.png" {
		t.Errorf("image url = %v, want the fresh render", out.ImageURL)
	}
}

// rowCheckRenderer fails every render instantly, like a refused
// connection, and records which requested formats were still missing
// their PROCESSING row when each render started.
type rowCheckRenderer struct {
	mu      sync.Mutex
	outs    *fakeOutputs
	want    []models.Format
	missing []models.Format
}

func (r *rowCheckRenderer) Render(ctx context.Context, req renderer.Request) (*renderer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.want {
		out, ok := r.outs.lookup(f)
		if !ok || out.Status != models.OutputStatusProcessing {
			r.missing = append(r.missing, f)
		}
	}
	return nil, errors.New("connection refused")
}

func TestDispatchWritesAllRowsBeforeRendering(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()

	formats := []models.Format{models.FormatYouTube, models.FormatInstagram, models.FormatTikTok}
	rend := &rowCheckRenderer{outs: outs, want: formats}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, rend, nil, time.Second)

	if err := d.Dispatch(context.Background(), comp.ID, formats, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	rend.mu.Lock()
	defer rend.mu.Unlock()
	if len(rend.missing) != 0 {
		t.Errorf("renders started before rows existed for %v", rend.missing)
	}
}

// terminalCompositions mirrors the completion rule: a rendering
// composition flips to complete only when every selected format has an
// output row in a terminal state.
type terminalCompositions struct {
	*fakeCompositions
	outs      *fakeOutputs
	premature []models.Format
}

func (f *terminalCompositions) FinishIfAllTerminal(id uuid.UUID) (bool, error) {
	f.mu.Lock()
	c := f.comps[id]
	status := c.Status
	selected := append([]models.Format(nil), c.SelectedFormats...)
	f.mu.Unlock()

	if status != models.CompositionStatusRendering {
		return false, nil
	}
	for _, fm := range selected {
		out, ok := f.outs.lookup(fm)
		if !ok {
			f.mu.Lock()
			f.premature = append(f.premature, fm)
			f.mu.Unlock()
			return false, nil
		}
		if out.Status == models.OutputStatusProcessing {
			return false, nil
		}
	}
	f.mu.Lock()
	c.Status = models.CompositionStatusComplete
	f.mu.Unlock()
	return true, nil
}

func TestDispatchCompletesOnlyWhenEveryFormatTerminal(t *testing.T) {
	base, tmpls, comp := testFixture()
	outs := newFakeOutputs()
	comps := &terminalCompositions{fakeCompositions: base, outs: outs}

	rend := &fakeRenderer{
		results: map[models.Format]renderer.Result{
			models.FormatYouTube: {URL: "https://cdn.example.com/yt.png", Width: 1280, Height: 720},
		},
		errs: map[models.Format]error{
			models.FormatInstagram: errors.New("connection refused"),
		},
	}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, rend, nil, time.Second)

	formats := []models.Format{models.FormatYouTube, models.FormatInstagram}
	if err := d.Dispatch(context.Background(), comp.ID, formats, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	comps.mu.Lock()
	defer comps.mu.Unlock()
	if len(comps.premature) != 0 {
		t.Errorf("completion check ran before rows existed for %v", comps.premature)
	}
	if got := comps.comps[comp.ID].Status; got != models.CompositionStatusComplete {
		t.Errorf("composition status = %s, want complete", got)
	}
}

func TestDispatchRejectsUnknownFormat(t *testing.T) {
	comps, tmpls, comp := testFixture()
	d := New(comps, newFakeOutputs(), tmpls, &fakeGateway{}, &fakeRenderer{}, nil, time.Second)

	if err := d.Dispatch(context.Background(), comp.ID, []models.Format{"VHS"}, "ana"); err == nil {
		t.Fatal("Dispatch() with unknown format succeeded, want error")
	}
	if err := d.Dispatch(context.Background(), comp.ID, nil, "ana"); err == nil {
		t.Fatal("Dispatch() with no formats succeeded, want error")
	}
}

type fakeCache struct {
	mu          sync.Mutex
	data        map[uuid.UUID][]models.Output
	invalidated int
}

func (c *fakeCache) Get(ctx context.Context, id uuid.UUID) ([]models.Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outs, ok := c.data[id]
	return outs, ok
}

func (c *fakeCache) Set(ctx context.Context, id uuid.UUID, outputs []models.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[uuid.UUID][]models.Output)
	}
	c.data[id] = outputs
}

func (c *fakeCache) Invalidate(ctx context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	c.invalidated++
}

func TestStatusUsesCache(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()
	cache := &fakeCache{}
	d := New(comps, outs, tmpls, &fakeGateway{}, &fakeRenderer{}, cache, time.Second)

	if _, err := outs.BeginRender(comp.ID, comp.ItemID, models.FormatYouTube); err != nil {
		t.Fatal(err)
	}

	first, err := d.Status(context.Background(), comp.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d outputs, want 1", len(first))
	}
	if _, ok := cache.Get(context.Background(), comp.ID); !ok {
		t.Fatal("status result was not cached")
	}

	// A change behind the cache is invisible until invalidation.
	if _, err := outs.BeginRender(comp.ID, comp.ItemID, models.FormatTikTok); err != nil {
		t.Fatal(err)
	}
	cached, _ := d.Status(context.Background(), comp.ID)
	if len(cached) != 1 {
		t.Fatalf("got %d outputs from warm cache, want 1", len(cached))
	}

	cache.Invalidate(context.Background(), comp.ID)
	refreshed, _ := d.Status(context.Background(), comp.ID)
	if len(refreshed) != 2 {
		t.Fatalf("got %d outputs after invalidation, want 2", len(refreshed))
	}
}

// deadCtxCache counts invalidations arriving on an already-expired
// context, which a real Valkey client would reject.
type deadCtxCache struct {
	fakeCache
	expired int
}

func (c *deadCtxCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if ctx.Err() != nil {
		c.mu.Lock()
		c.expired++
		c.mu.Unlock()
	}
	c.fakeCache.Invalidate(ctx, id)
}

func TestRenderTimeoutStillInvalidatesCache(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()
	cache := &deadCtxCache{}

	// Render blocks until its context deadline fires.
	rend := &fakeRenderer{block: make(chan struct{})}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, rend, cache, 20*time.Millisecond)

	if err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	if got := outs.get(models.FormatYouTube).Status; got != models.OutputStatusFailed {
		t.Fatalf("YOUTUBE status = %s, want FAILED", got)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.expired != 0 {
		t.Errorf("%d invalidations used an expired context, want 0", cache.expired)
	}
	if cache.invalidated < 2 {
		t.Errorf("cache invalidated %d times, want at least 2", cache.invalidated)
	}
}

func TestDispatchInvalidatesCachePerResult(t *testing.T) {
	comps, tmpls, comp := testFixture()
	outs := newFakeOutputs()
	cache := &fakeCache{data: map[uuid.UUID][]models.Output{comp.ID: nil}}

	rend := &fakeRenderer{results: map[models.Format]renderer.Result{
		models.FormatYouTube: {URL: "https://cdn.example.com/yt.png"},
	}}
	gw := &fakeGateway{info: approvedInfo(comp.RoleBindings)}
	d := New(comps, outs, tmpls, gw, rend, cache, time.Second)

	if err := d.Dispatch(context.Background(), comp.ID, []models.Format{models.FormatYouTube}, "ana"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	// Once at dispatch, once when the render landed.
	if cache.invalidated < 2 {
		t.Errorf("cache invalidated %d times, want at least 2", cache.invalidated)
	}
}
