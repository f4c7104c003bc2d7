package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/geraldfingburke/trendwatch/internal/adapters"
	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
)

type fakeAdapter struct {
	name    string
	records []models.RawRecord
	err     error
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) FetchBatch(_ context.Context, _ string, _ int) ([]models.RawRecord, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.records, "", nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/ingest-test.db")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunCycleWritesNormalizedPostsFromAllAdapters(t *testing.T) {
	st := openTestStore(t)

	a1 := &fakeAdapter{name: "feed", records: []models.RawRecord{
		{SourceKind: models.SourceFeed, LocalID: "1", Title: "A sufficiently long article title for the gate"},
	}}
	a2 := &fakeAdapter{name: "discussion", records: []models.RawRecord{
		{SourceKind: models.SourceDiscussion, LocalID: "2", Title: "Another sufficiently long discussion title here"},
	}}

	c := New(st, nil, a1, a2)
	summary, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.PostsWritten != 2 {
		t.Fatalf("PostsWritten = %d, want 2", summary.PostsWritten)
	}
	if summary.PartialFailure() {
		t.Fatalf("PartialFailure() = true, want false: %v", summary.Errors)
	}
}

func TestRunCycleIsolatesOneAdapterFailure(t *testing.T) {
	st := openTestStore(t)

	good := &fakeAdapter{name: "feed", records: []models.RawRecord{
		{SourceKind: models.SourceFeed, LocalID: "1", Title: "A sufficiently long article title for the gate"},
	}}
	bad := &fakeAdapter{name: "discussion", err: errors.New("network unreachable")}

	c := New(st, nil, good, bad)
	summary, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.PostsWritten != 1 {
		t.Fatalf("PostsWritten = %d, want 1 from the healthy adapter", summary.PostsWritten)
	}
	if !summary.PartialFailure() {
		t.Fatal("PartialFailure() = false, want true when one adapter errors")
	}
}

func TestRunCycleSkipsDisabledAdaptersSilently(t *testing.T) {
	st := openTestStore(t)

	disabled := &fakeAdapter{name: "discussion", err: adapters.ErrDisabled}
	c := New(st, nil, disabled)

	summary, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.PartialFailure() {
		t.Fatalf("PartialFailure() = true, want false: a disabled adapter is not a failure: %v", summary.Errors)
	}
	if summary.PostsWritten != 0 {
		t.Fatalf("PostsWritten = %d, want 0", summary.PostsWritten)
	}
}

func TestRunCycleSkipsTooShortRecordsWithoutError(t *testing.T) {
	st := openTestStore(t)

	a := &fakeAdapter{name: "feed", records: []models.RawRecord{
		{SourceKind: models.SourceFeed, LocalID: "1", Title: "hi"},
	}}
	c := New(st, nil, a)

	summary, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.PostsWritten != 0 || summary.PartialFailure() {
		t.Fatalf("summary = %+v, want zero writes and no failure for below-minimum-length record", summary)
	}
}
