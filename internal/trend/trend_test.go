package trend

import (
	"math"
	"testing"
	"time"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

func TestScoreTrendsSkipsGroupsUnderTwoEntities(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"solo": {models.SourceFeed: 10},
	}
	baseline := map[string]map[models.SourceKind]int{
		"solo": {models.SourceFeed: 2},
	}
	got := scoreTrends(current, baseline, 1, 1, 24, time.Now())
	if len(got) != 0 {
		t.Fatalf("scoreTrends() = %v, want empty (fewer than 2 entities in source group)", got)
	}
}

func TestScoreTrendsFiltersByMinCount(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"a": {models.SourceFeed: 1},
		"b": {models.SourceFeed: 5},
	}
	baseline := map[string]map[models.SourceKind]int{}
	got := scoreTrends(current, baseline, 3, 1, 24, time.Now())
	for _, tr := range got {
		if tr.Entity == "a" {
			t.Fatalf("scoreTrends() included entity below MinCount: %v", got)
		}
	}
}

func TestScoreTrendsUsesSentinelForInfiniteGrowth(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"new1": {models.SourceFeed: 5},
		"new2": {models.SourceFeed: 8},
	}
	baseline := map[string]map[models.SourceKind]int{}

	got := scoreTrends(current, baseline, 1, 1, 24, time.Now())
	if len(got) != 2 {
		t.Fatalf("scoreTrends() returned %d rows, want 2", len(got))
	}
	for _, tr := range got {
		if math.IsInf(tr.GrowthRate, 0) || math.IsNaN(tr.GrowthRate) {
			t.Fatalf("scoreTrends() persisted non-finite growth rate: %v", tr.GrowthRate)
		}
		if tr.GrowthRate != growthRateSentinel {
			t.Fatalf("GrowthRate = %v, want sentinel %v for zero baseline", tr.GrowthRate, growthRateSentinel)
		}
	}
}

func TestScoreTrendsComputesZScoreAgainstBaselineDistribution(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"quiet": {models.SourceFeed: 10},
		"calm":  {models.SourceFeed: 10},
	}
	baseline := map[string]map[models.SourceKind]int{
		"quiet": {models.SourceFeed: 10},
		"calm":  {models.SourceFeed: 10},
	}
	got := scoreTrends(current, baseline, 1, 1, 24, time.Now())
	for _, tr := range got {
		if tr.ZScore != 0 {
			t.Errorf("ZScore = %v, want 0 when current == baseline mean", tr.ZScore)
		}
	}
}

func TestScoreTrendsGrowthBoostAppliesMultiplicatively(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"spiking": {models.SourceFeed: 100},
		"steady":  {models.SourceFeed: 10},
	}
	baseline := map[string]map[models.SourceKind]int{
		"spiking": {models.SourceFeed: 5},
		"steady":  {models.SourceFeed: 10},
	}
	got := scoreTrends(current, baseline, 1, 1, 24, time.Now())

	var spiking, steady *models.Trend
	for i := range got {
		switch got[i].Entity {
		case "spiking":
			spiking = &got[i]
		case "steady":
			steady = &got[i]
		}
	}
	if spiking == nil || steady == nil {
		t.Fatalf("expected both rows present, got %v", got)
	}
	if spiking.TrendScore <= spiking.ZScore {
		t.Fatalf("expected growth boost to increase trend score beyond raw z-score: score=%v z=%v", spiking.TrendScore, spiking.ZScore)
	}
}

func TestScoreTrendsSortedDescendingByScore(t *testing.T) {
	current := map[string]map[models.SourceKind]int{
		"low":  {models.SourceFeed: 3},
		"high": {models.SourceFeed: 50},
		"mid":  {models.SourceFeed: 10},
	}
	baseline := map[string]map[models.SourceKind]int{
		"low":  {models.SourceFeed: 3},
		"high": {models.SourceFeed: 5},
		"mid":  {models.SourceFeed: 9},
	}
	got := scoreTrends(current, baseline, 1, 1, 24, time.Now())
	for i := 1; i < len(got); i++ {
		if got[i-1].TrendScore < got[i].TrendScore {
			t.Fatalf("scoreTrends() not sorted descending: %v", got)
		}
	}
}
