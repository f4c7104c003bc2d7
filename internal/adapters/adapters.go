// Package adapters defines the shared contract both source adapters
// implement, so IngestCoordinator can drive them uniformly regardless of
// transport.
package adapters

import (
	"context"
	"errors"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

// SourceError wraps a fetch failure from one adapter. IngestCoordinator
// isolates these per-adapter rather than aborting the whole cycle.
type SourceError struct {
	Adapter string
	Err     error
}

func (e *SourceError) Error() string { return "adapter " + e.Adapter + ": " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// ErrDisabled is returned by an adapter's FetchBatch when it lacks the
// credentials or configuration it needs to run. IngestCoordinator treats
// this as "skip silently", not a failure.
var ErrDisabled = errors.New("adapters: disabled")

// SourceAdapter fetches one page of raw records from a single source.
// cursor is opaque to the caller: pass back the next value returned until
// it is empty, then stop.
type SourceAdapter interface {
	Name() string
	FetchBatch(ctx context.Context, cursor string, limit int) (records []models.RawRecord, next string, err error)
}
