// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package dispatch fans a validated composition out into one independent
// render task per requested output format and tracks each through its
// status record. Formats run as parallel workers with no ordering
// guarantee; one format's failure never blocks or rolls back another's
// success.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"framepress/internal/assets"
	"framepress/internal/binding"
	"framepress/internal/models"
	"framepress/internal/renderer"
)

// NotRenderableError is returned when a composition fails contract
// validation at dispatch time. No output records are created.
type NotRenderableError struct {
	Result binding.Result
}

func (e *NotRenderableError) Error() string {
	return fmt.Sprintf("composition not renderable: %d missing, %d violations",
		len(e.Result.Missing), len(e.Result.Violations))
}

// compositionStore is the slice of the composition store the dispatcher
// needs.
type compositionStore interface {
	FindByID(id uuid.UUID) (*models.Composition, error)
	Commit(id uuid.UUID, editor string) (*models.Composition, error)
	MarkRendering(id uuid.UUID, formats []models.Format, version int) error
	FinishIfAllTerminal(id uuid.UUID) (bool, error)
}

// outputStore is the slice of the output store the dispatcher needs.
type outputStore interface {
	BeginRender(compositionID, itemID uuid.UUID, format models.Format) (*models.Output, error)
	CompleteSuccess(compositionID uuid.UUID, format models.Format, generation int, res models.Output) (bool, error)
	CompleteFailure(compositionID uuid.UUID, format models.Format, generation int, message string) (bool, error)
	ListByComposition(compositionID uuid.UUID) ([]models.Output, error)
}

// templateStore loads the immutable contract for a dispatch cycle.
type templateStore interface {
	Load(id uuid.UUID) (*models.Template, error)
}

// StatusCache caches per-composition output sets for the polling
// endpoint. Implementations must tolerate concurrent use.
type StatusCache interface {
	Get(ctx context.Context, compositionID uuid.UUID) ([]models.Output, bool)
	Set(ctx context.Context, compositionID uuid.UUID, outputs []models.Output)
	Invalidate(ctx context.Context, compositionID uuid.UUID)
}

// Dispatcher validates compositions and runs their renders.
type Dispatcher struct {
	compositions compositionStore
	outputs      outputStore
	templates    templateStore
	assets       assets.Gateway
	renderer     renderer.Renderer
	cache        StatusCache // optional, may be nil
	timeout      time.Duration

	wg sync.WaitGroup
}

// New creates a dispatcher. cache may be nil when Valkey is not
// configured. A zero timeout falls back to the renderer default.
func New(
	compositions compositionStore,
	outputs outputStore,
	templates templateStore,
	gateway assets.Gateway,
	r renderer.Renderer,
	cache StatusCache,
	timeout time.Duration,
) *Dispatcher {
	if timeout == 0 {
		timeout = renderer.DefaultTimeout
	}
	return &Dispatcher{
		compositions: compositions,
		outputs:      outputs,
		templates:    templates,
		assets:       gateway,
		renderer:     r,
		cache:        cache,
		timeout:      timeout,
	}
}

// Dispatch validates the composition and starts one render per requested
// format. Pending draft overrides are committed first, so a dispatch
// after edits appends a version entry. Returns NotRenderableError when
// the committed bindings fail the template contract, in which case no
// output records exist or change.
//
// Dispatch returns as soon as the PROCESSING records are written; render
// completion is observed through Status polling.
func (d *Dispatcher) Dispatch(ctx context.Context, compositionID uuid.UUID, formats []models.Format, editor string) error {
	if len(formats) == 0 {
		return fmt.Errorf("dispatch: no formats requested")
	}
	for _, f := range formats {
		if !f.Known() {
			return fmt.Errorf("dispatch: unknown format %q", f)
		}
	}

	comp, err := d.compositions.FindByID(compositionID)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	// Bindings edited since the last commit are committed now, which
	// appends the version-history entry for this dispatch.
	if comp.HasUnsavedChanges() {
		comp, err = d.compositions.Commit(comp.ID, editor)
		if err != nil {
			return fmt.Errorf("dispatch commit: %w", err)
		}
	}

	tmpl, err := d.templates.Load(comp.TemplateID)
	if err != nil {
		return fmt.Errorf("dispatch template: %w", err)
	}

	info, err := d.assets.Resolve(ctx, models.AssetRefs(comp.RoleBindings))
	if err != nil {
		return fmt.Errorf("dispatch resolve assets: %w", err)
	}

	if res := binding.Validate(tmpl, comp.RoleBindings, info); !res.OK {
		return &NotRenderableError{Result: res}
	}

	if err := d.compositions.MarkRendering(comp.ID, formats, comp.CurrentVersion); err != nil {
		return fmt.Errorf("dispatch mark rendering: %w", err)
	}

	// Every format's PROCESSING row must exist before any render runs:
	// a fast-failing render that reached FinishIfAllTerminal while a
	// sibling's row was still unwritten could otherwise flip the
	// composition to complete early.
	type pendingRender struct {
		format     models.Format
		generation int
		req        renderer.Request
	}
	pending := make([]pendingRender, 0, len(formats))
	for _, format := range formats {
		out, err := d.outputs.BeginRender(comp.ID, comp.ItemID, format)
		if err != nil {
			return fmt.Errorf("dispatch begin render %s: %w", format, err)
		}

		spec := models.FormatSpecs[format]
		pending = append(pending, pendingRender{
			format:     format,
			generation: out.Generation,
			req: renderer.Request{
				CompositionID: comp.ID.String(),
				Format:        format,
				Width:         spec.Width,
				Height:        spec.Height,
				Bindings:      comp.RoleBindings,
				Layout:        tmpl.Layout,
			},
		})
	}

	for _, p := range pending {
		d.wg.Add(1)
		go d.renderFormat(comp.ID, p.format, p.generation, p.req)
	}

	d.invalidate(ctx, comp.ID)

	slog.Info("render dispatched",
		"composition", comp.ID,
		"formats", formats,
		"version", comp.CurrentVersion,
	)
	return nil
}

// renderFormat runs one format's render to a terminal state. It uses a
// fresh context: the render outlives the HTTP request that triggered it,
// and a superseding dispatch discards its result through the generation
// guard rather than cancelling it.
func (d *Dispatcher) renderFormat(compositionID uuid.UUID, format models.Format, generation int, req renderer.Request) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	res, err := d.renderer.Render(ctx, req)

	var written bool
	var storeErr error
	if err != nil {
		written, storeErr = d.outputs.CompleteFailure(compositionID, format, generation, err.Error())
		slog.Warn("render failed", "composition", compositionID, "format", format, "error", err)
	} else {
		written, storeErr = d.outputs.CompleteSuccess(compositionID, format, generation, models.Output{
			ImageURL: &res.URL,
			Width:    &res.Width,
			Height:   &res.Height,
			FileSize: &res.FileSize,
		})
	}
	if storeErr != nil {
		slog.Error("record render result", "composition", compositionID, "format", format, "error", storeErr)
		return
	}
	if !written {
		// A newer dispatch superseded this render while it was in
		// flight; its result is discarded, not surfaced.
		slog.Debug("stale render discarded", "composition", compositionID, "format", format, "generation", generation)
		return
	}

	// On the timeout path ctx is already expired, so the post-result
	// bookkeeping gets its own deadline.
	postCtx, postCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer postCancel()
	d.invalidate(postCtx, compositionID)

	finished, err := d.compositions.FinishIfAllTerminal(compositionID)
	if err != nil {
		slog.Error("finish composition", "composition", compositionID, "error", err)
		return
	}
	if finished {
		slog.Info("composition complete", "composition", compositionID)
	}
}

// Preview resolves the given bindings' assets and runs contract
// validation without dispatching anything. Used for pre-flight feedback
// on a draft, staged overrides included.
func (d *Dispatcher) Preview(ctx context.Context, tmpl *models.Template, bindings map[models.Role]string) (binding.Result, error) {
	info, err := d.assets.Resolve(ctx, models.AssetRefs(bindings))
	if err != nil {
		return binding.Result{}, fmt.Errorf("preview resolve assets: %w", err)
	}
	return binding.Validate(tmpl, bindings, info), nil
}

// Status returns the current output set for a composition, served from
// the cache when warm.
func (d *Dispatcher) Status(ctx context.Context, compositionID uuid.UUID) ([]models.Output, error) {
	if d.cache != nil {
		if outputs, ok := d.cache.Get(ctx, compositionID); ok {
			return outputs, nil
		}
	}

	outputs, err := d.outputs.ListByComposition(compositionID)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	if d.cache != nil {
		d.cache.Set(ctx, compositionID, outputs)
	}
	return outputs, nil
}

// Wait blocks until every in-flight render goroutine has finished. Used
// by graceful shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) invalidate(ctx context.Context, compositionID uuid.UUID) {
	if d.cache != nil {
		d.cache.Invalidate(ctx, compositionID)
	}
}
