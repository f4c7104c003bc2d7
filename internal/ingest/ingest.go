// Package ingest drives one full fetch-normalize-extract-store cycle across
// every configured source adapter. Adapters run concurrently; all writes go
// through a single goroutine that owns the Store connection, so the DB
// connection is never held across a network fetch.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/geraldfingburke/trendwatch/internal/adapters"
	"github.com/geraldfingburke/trendwatch/internal/features"
	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/normalize"
	"github.com/geraldfingburke/trendwatch/internal/store"
	"github.com/geraldfingburke/trendwatch/internal/telemetry"
)

// defaultBatchLimit bounds how many records a single adapter contributes
// per cycle, so one slow/noisy source can't starve the others.
const defaultBatchLimit = 200

// Summary reports the outcome of one RunCycle, returned to the CLI and
// logged by the serve daemon.
type Summary struct {
	StartedAt    time.Time
	Duration     time.Duration
	PostsWritten int
	Errors       []error
}

// PartialFailure reports whether any adapter failed during the cycle; the
// CLI maps this to exit code 3 ("partial failure: some ... failed").
func (s *Summary) PartialFailure() bool { return len(s.Errors) > 0 }

// Coordinator runs one ingestion cycle across a fixed set of adapters.
type Coordinator struct {
	store          *store.Store
	adapters       []adapters.SourceAdapter
	metrics        *telemetry.Metrics
	limitPerSource int
}

// New builds a Coordinator over the given adapters. Adapters that report
// themselves disabled (missing credentials) should simply be omitted by the
// caller before construction. The per-adapter batch size defaults to
// defaultBatchLimit; override it with SetLimitPerSource.
func New(st *store.Store, metrics *telemetry.Metrics, srcAdapters ...adapters.SourceAdapter) *Coordinator {
	return &Coordinator{store: st, adapters: srcAdapters, metrics: metrics, limitPerSource: defaultBatchLimit}
}

// SetLimitPerSource overrides how many records a single adapter contributes
// per cycle; values <= 0 leave the existing limit (the default) in place.
func (c *Coordinator) SetLimitPerSource(limit int) {
	if limit > 0 {
		c.limitPerSource = limit
	}
}

// writeJob carries one normalized post plus the adapter it came from, for
// error attribution in the summary.
type writeJob struct {
	post    *models.Post
	adapter string
}

// RunCycle fetches one batch from every adapter in parallel, normalizes and
// extracts features for each record, and funnels the results through a
// single writer goroutine. Per-adapter and per-record failures are isolated:
// they are collected into the returned Summary rather than aborting the
// cycle.
func (c *Coordinator) RunCycle(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{StartedAt: start}

	jobs := make(chan writeJob, 256)
	errsCh := make(chan error, len(c.adapters)+1)
	var errs []error
	errsDone := make(chan struct{})
	go func() {
		defer close(errsDone)
		for err := range errsCh {
			errs = append(errs, err)
		}
	}()

	var fetchWG sync.WaitGroup
	for _, a := range c.adapters {
		fetchWG.Add(1)
		go func(a adapters.SourceAdapter) {
			defer fetchWG.Done()
			c.fetchAndExtract(ctx, a, jobs, errsCh)
		}(a)
	}

	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		for job := range jobs {
			if err := c.store.UpsertPost(ctx, job.post); err != nil {
				errsCh <- fmt.Errorf("adapter %s: store write: %w", job.adapter, err)
				continue
			}
			summary.PostsWritten++
		}
	}()

	fetchWG.Wait()
	close(jobs)
	writeWG.Wait()
	close(errsCh)
	<-errsDone
	summary.Errors = errs

	summary.Duration = time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordIngestCycle(ctx, summary.PostsWritten, summary.Duration)
	}
	log.Printf("ingest: cycle done in %s, %d posts written, %d errors",
		summary.Duration, summary.PostsWritten, len(summary.Errors))
	return summary, nil
}

func (c *Coordinator) fetchAndExtract(ctx context.Context, a adapters.SourceAdapter, jobs chan<- writeJob, errsCh chan<- error) {
	cursor := ""
	records, _, err := a.FetchBatch(ctx, cursor, c.limitPerSource)
	if err != nil {
		if err == adapters.ErrDisabled {
			return
		}
		errsCh <- &adapters.SourceError{Adapter: a.Name(), Err: err}
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		post, err := normalize.Normalize(rec, now)
		if err != nil {
			errsCh <- fmt.Errorf("adapter %s: normalize: %w", a.Name(), err)
			continue
		}
		if post == nil {
			continue // below minimum length, not an error
		}
		post.Entities = features.ExtractEntities(post.Text)
		select {
		case jobs <- writeJob{post: post, adapter: a.Name()}:
		case <-ctx.Done():
			return
		}
	}
}
