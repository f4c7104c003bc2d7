package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

func TestCleanStripsHTMLScriptAndStyle(t *testing.T) {
	in := `<div>hello <script>alert(1)</script><style>.x{color:red}</style> world</div>`
	got := Clean(in)
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Fatalf("Clean() leaked script/style content: %q", got)
	}
	if !strings.Contains(got, "hello") || !strings.Contains(got, "world") {
		t.Fatalf("Clean() dropped visible text: %q", got)
	}
}

func TestCleanCollapsesPunctuationRuns(t *testing.T) {
	got := Clean("wow!!!! really??? are you sure.....")
	if strings.Contains(got, "!!!!") || strings.Contains(got, "???") || strings.Contains(got, ".....") {
		t.Fatalf("Clean() did not collapse punctuation runs: %q", got)
	}
	if !strings.Contains(got, "wow!") || !strings.Contains(got, "really?") || !strings.Contains(got, "...") {
		t.Fatalf("Clean() collapsed to wrong form: %q", got)
	}
}

func TestCleanStripsRemovedAndDeletedMarkers(t *testing.T) {
	got := Clean("this comment was [removed] and this one [deleted]")
	if strings.Contains(got, "[removed]") || strings.Contains(got, "[deleted]") {
		t.Fatalf("Clean() left moderation markers: %q", got)
	}
}

func TestCleanNormalizesSmartQuotes(t *testing.T) {
	got := Clean("“hello” and ‘world’")
	if strings.ContainsAny(got, "“”‘’") {
		t.Fatalf("Clean() left smart quotes: %q", got)
	}
}

func TestCleanTrimsToMaxLength(t *testing.T) {
	long := strings.Repeat("a", maxTextLength+500)
	got := Clean(long)
	if len(got) != maxTextLength {
		t.Fatalf("Clean() length = %d, want %d", len(got), maxTextLength)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	in := `<p>hi!!!   there???</p>`
	once := Clean(in)
	twice := Clean(once)
	if once != twice {
		t.Fatalf("Clean() not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeRejectsTooShortText(t *testing.T) {
	rec := models.RawRecord{SourceKind: models.SourceFeed, LocalID: "x", Title: "hi"}
	post, err := Normalize(rec, time.Now())
	if err != nil {
		t.Fatalf("Normalize() error = %v, want nil", err)
	}
	if post != nil {
		t.Fatalf("Normalize() = %+v, want nil for too-short input", post)
	}
}

func TestNormalizeBuildsDeterministicDiscussionID(t *testing.T) {
	rec := models.RawRecord{
		SourceKind: models.SourceDiscussion,
		LocalID:    "abc123",
		Title:      "A long enough title to pass the minimum length gate",
	}
	now := time.Now()
	p1, err := Normalize(rec, now)
	if err != nil || p1 == nil {
		t.Fatalf("Normalize() = %+v, %v", p1, err)
	}
	p2, err := Normalize(rec, now.Add(time.Hour))
	if err != nil || p2 == nil {
		t.Fatalf("Normalize() = %+v, %v", p2, err)
	}
	if p1.ID != p2.ID {
		t.Fatalf("discussion post ID not stable across re-ingestion: %q vs %q", p1.ID, p2.ID)
	}
	if p1.ID != "discussion_abc123" {
		t.Fatalf("ID = %q, want discussion_abc123", p1.ID)
	}
}

func TestNormalizeFeedIDIsStablePerItem(t *testing.T) {
	rec := models.RawRecord{
		SourceKind: models.SourceFeed,
		LocalID:    "https://example.com/article",
		Title:      "A sufficiently long feed article title for the gate",
	}
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.PublishedAt = &createdAt

	p1, _ := Normalize(rec, time.Now())
	p2, _ := Normalize(rec, time.Now().Add(time.Minute))
	if p1 == nil || p2 == nil {
		t.Fatalf("expected non-nil posts")
	}
	if p1.ID != p2.ID {
		t.Fatalf("feed post ID changed across re-ingestion: %q vs %q", p1.ID, p2.ID)
	}
}

func TestNormalizeExtractsHashtagsAndEntities(t *testing.T) {
	rec := models.RawRecord{
		SourceKind: models.SourceFeed,
		LocalID:    "1",
		Title:      "Big news about #golang and @someone worth reading in full",
	}
	post, err := Normalize(rec, time.Now())
	if err != nil || post == nil {
		t.Fatalf("Normalize() = %+v, %v", post, err)
	}
	if len(post.Hashtags) != 1 || post.Hashtags[0] != "#golang" {
		t.Fatalf("Hashtags = %v, want [#golang]", post.Hashtags)
	}
	if len(post.Entities) != 2 || post.Entities[0] != "#golang" || post.Entities[1] != "@someone" {
		t.Fatalf("Entities = %v, want [#golang @someone]", post.Entities)
	}
}
