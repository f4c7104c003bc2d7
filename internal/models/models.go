// Package models defines the core domain types shared across the ingestion,
// normalization, trend-scoring, and alerting pipeline.
//
// Three tables own these types: posts, trends, and alerts. The Store package
// is the only component allowed to mutate them; everything else treats them
// as immutable values passed between pipeline stages.
package models

import "time"

// SourceKind identifies which adapter produced a Post. New sources are added
// here; the set is small and closed by design (spec explicitly extensible,
// but never open to arbitrary strings at the type level).
type SourceKind string

const (
	SourceDiscussion SourceKind = "discussion"
	SourceFeed       SourceKind = "feed"
)

// Post is the canonical record of one ingested item, after normalization and
// feature extraction.
//
// Invariants (enforced by Normalizer and Store, not by this type):
//   - ID uniquely identifies a post forever; re-ingestion upserts, never duplicates.
//   - CreatedAt <= IndexedAt.
//   - Text is UTF-8, stripped of markup, 10..8000 chars.
type Post struct {
	ID         string
	SourceKind SourceKind
	Author     string
	Text       string
	URL        string
	CreatedAt  time.Time
	Hashtags   []string
	Entities   []string
	IndexedAt  time.Time
}

// Trend is one scored row for an (entity, source_kind) pair at a point in time.
type Trend struct {
	ID            int64
	Entity        string
	SourceKind    SourceKind
	CurrentCount  int
	BaselineCount int
	TrendScore    float64
	GrowthRate    float64
	Velocity      float64
	ZScore        float64
	CreatedAt     time.Time
}

// AlertKind classifies why an Alert fired.
type AlertKind string

const (
	AlertTrendSpike AlertKind = "trend_spike"
	AlertViral      AlertKind = "viral"
	AlertManual     AlertKind = "manual"
	AlertTest       AlertKind = "test"
)

// AlertStatus tracks the lifecycle of an Alert row.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// Alert is a durable record of a trend crossing an alert threshold.
type Alert struct {
	ID             int64
	Entity         string
	SourceKind     SourceKind
	Kind           AlertKind
	ThresholdValue float64
	ActualValue    float64
	Message        string
	CreatedAt      time.Time
	Status         AlertStatus
}

// AlertPayload is the stable, sink-facing shape described in spec §6. Field
// order and names are part of the interop contract — do not rename.
type AlertPayload struct {
	Kind         AlertKind  `json:"kind"`
	Entity       string     `json:"entity"`
	SourceKind   SourceKind `json:"source_kind"`
	TrendScore   float64    `json:"trend_score"`
	CurrentCount int        `json:"current_count"`
	GrowthRate   float64    `json:"growth_rate"`
	Timestamp    time.Time  `json:"timestamp"`
	Message      string     `json:"message"`
}

// TrendConfig holds the tunables for one TrendEngine run. Built once from
// Config at process start; never mutated mid-run.
type TrendConfig struct {
	WindowHours   int
	BaselineHours int
	MinCount      int
}

// AlertConfig holds the tunables for one AlertGate pass.
type AlertConfig struct {
	Enabled           bool
	TrendThreshold    float64
	GrowthThreshold   float64
	VolumeThreshold   int
	CooldownSeconds   int
	KeywordWatchlist  []string
	NotificationSinks []string
}

// RawRecord is the source-agnostic input to the Normalizer: whatever an
// adapter fetched, tagged with enough metadata to derive a stable ID and
// publish time without touching the Store.
type RawRecord struct {
	SourceKind   SourceKind
	LocalID      string // adapter's stable handle, e.g. submission id
	Title        string
	Body         string
	Author       string
	URL          string
	PublishedAt  *time.Time // nil if unknown/unparseable
}
