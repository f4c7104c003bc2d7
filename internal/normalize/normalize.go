// Package normalize turns a RawRecord fetched by an adapter into a
// canonical models.Post: markup stripped, whitespace collapsed, punctuation
// runs and smart quotes normalized, and too-short records rejected.
package normalize

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

const (
	minTextLength = 10
	maxTextLength = 8000
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	removedRe     = regexp.MustCompile(`\[removed\]|\[deleted\]`)
	bangRunRe     = regexp.MustCompile(`!{2,}`)
	questionRunRe = regexp.MustCompile(`\?{2,}`)
	dotRunRe      = regexp.MustCompile(`\.{3,}`)

	hashtagRe = regexp.MustCompile(`#\w+`)
	mentionRe = regexp.MustCompile(`@\w+`)

	smartQuoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// StripHTML removes tags, dropping the contents of <script> and <style>
// subtrees entirely rather than leaving their text behind, the way a
// regex-based tag stripper would.
func StripHTML(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Clean applies the canonical text-cleaning rules in order: HTML stripping,
// whitespace collapse, removed/deleted marker stripping, punctuation-run
// collapse, smart-quote normalization, and an 8000-char trim.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = StripHTML(text)
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = removedRe.ReplaceAllString(text, "")
	text = bangRunRe.ReplaceAllString(text, "!")
	text = questionRunRe.ReplaceAllString(text, "?")
	text = dotRunRe.ReplaceAllString(text, "...")
	text = smartQuoteReplacer.Replace(text)

	if len(text) > maxTextLength {
		text = text[:maxTextLength]
	}
	return text
}

// ExtractHashtags returns lower-cased #hashtags found in text.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllString(text, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

// ExtractMentions returns lower-cased @mentions found in text.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllString(text, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

// Normalize converts one RawRecord into a Post. It returns (nil, nil) when
// the combined title+body text is under the minimum length — that is a
// normal, expected outcome, not an error (spec §4.2 "partial input never
// aborts the run").
func Normalize(rec models.RawRecord, indexedAt time.Time) (*models.Post, error) {
	combined := strings.TrimSpace(rec.Title + "\n\n" + rec.Body)
	if len(combined) < minTextLength {
		return nil, nil
	}

	cleanText := Clean(combined)
	if len(cleanText) < minTextLength {
		return nil, nil
	}

	hashtags := ExtractHashtags(cleanText)
	mentions := ExtractMentions(cleanText)

	createdAt := indexedAt
	if rec.PublishedAt != nil {
		createdAt = *rec.PublishedAt
	}

	return &models.Post{
		ID:         derivePostID(rec, createdAt),
		SourceKind: rec.SourceKind,
		Author:     rec.Author,
		Text:       cleanText,
		URL:        rec.URL,
		CreatedAt:  createdAt,
		Hashtags:   hashtags,
		Entities:   append(append([]string{}, hashtags...), mentions...),
		IndexedAt:  indexedAt,
	}, nil
}

// derivePostID builds a stable, source-prefixed identifier so re-ingesting
// the same item always upserts the same row (spec §8 idempotent ingestion).
func derivePostID(rec models.RawRecord, createdAt time.Time) string {
	switch rec.SourceKind {
	case models.SourceDiscussion:
		return fmt.Sprintf("discussion_%s", rec.LocalID)
	case models.SourceFeed:
		key := rec.LocalID
		if key == "" {
			key = rec.URL
		}
		h := fnv.New64a()
		h.Write([]byte(key))
		h.Write([]byte(createdAt.UTC().Format(time.RFC3339)))
		return fmt.Sprintf("feed_%x", h.Sum64())
	default:
		h := fnv.New64a()
		h.Write([]byte(rec.LocalID))
		return fmt.Sprintf("%s_%x", rec.SourceKind, h.Sum64())
	}
}
