package ingest

import (
	"context"
	"log/slog"
	"sync"
)

// Severity separates non-fatal per-file and per-item problems from
// request-level failures.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// CurrentTurn is the Item index used for diagnostics about the current turn.
const CurrentTurn = -1

// Diagnostic records one problem encountered while ingesting a request.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Item     int      `json:"item"`
	Role     string   `json:"role,omitempty"`
	Locator  string   `json:"locator,omitempty"`
	Message  string   `json:"message"`
}

// diagnostics collects Diagnostics from concurrently processed blocks and
// mirrors each one to the logger.
type diagnostics struct {
	logger *slog.Logger

	mu    sync.Mutex
	items []Diagnostic
}

func (d *diagnostics) warn(ctx context.Context, item int, role, locator string, err error) {
	d.add(ctx, Diagnostic{
		Severity: SeverityWarn,
		Kind:     KindOf(err),
		Item:     item,
		Role:     role,
		Locator:  locator,
		Message:  err.Error(),
	})
}

func (d *diagnostics) fail(ctx context.Context, err error) {
	d.add(ctx, Diagnostic{
		Severity: SeverityError,
		Kind:     KindOf(err),
		Item:     CurrentTurn,
		Message:  err.Error(),
	})
}

func (d *diagnostics) add(ctx context.Context, diag Diagnostic) {
	level := slog.LevelWarn
	if diag.Severity == SeverityError {
		level = slog.LevelError
	}
	d.logger.Log(ctx, level, "ingest diagnostic",
		"kind", string(diag.Kind),
		"item", diag.Item,
		"role", diag.Role,
		"locator", diag.Locator,
		"error", diag.Message,
	)

	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()
}

func (d *diagnostics) list() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}
