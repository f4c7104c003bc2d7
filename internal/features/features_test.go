package features

import (
	"reflect"
	"sort"
	"testing"
)

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	got := Tokenize("The quick BROWN fox is a fox")
	want := []string{"quick", "brown", "fox", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeNormalizesInternetSlang(t *testing.T) {
	got := Tokenize("lol that is wild tbh")
	want := []string{"laugh_out_loud", "wild", "to_be_honest"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	if got := Tokenize(""); got != nil {
		t.Fatalf("Tokenize(\"\") = %v, want nil", got)
	}
}

func TestExtractHashtagsAndMentionsAreLowercased(t *testing.T) {
	text := "Check out #GoLang and @SomeUser today"
	if got, want := ExtractHashtags(text), []string{"#golang"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractHashtags() = %v, want %v", got, want)
	}
	if got, want := ExtractMentions(text), []string{"@someuser"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractMentions() = %v, want %v", got, want)
	}
}

func TestExtractEntitiesIsDeterministic(t *testing.T) {
	text := "Bitcoin bitcoin bitcoin is trending, everyone is talking about #crypto and @whalewatcher"

	first := ExtractEntities(text)
	second := ExtractEntities(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ExtractEntities() not deterministic: %v vs %v", first, second)
	}

	if !sort.StringsAreSorted(first) {
		t.Fatalf("ExtractEntities() not sorted: %v", first)
	}

	foundCrypto := false
	foundWatcher := false
	for _, e := range first {
		if e == "crypto" {
			foundCrypto = true
		}
		if e == "whalewatcher" {
			foundWatcher = true
		}
	}
	if !foundCrypto {
		t.Errorf("expected 'crypto' hashtag entity, got %v", first)
	}
	if !foundWatcher {
		t.Errorf("expected 'whalewatcher' mention entity, got %v", first)
	}
}

func TestExtractEntitiesFiltersShortAndNumericTokens(t *testing.T) {
	text := "#12345 #ab is not a valid entity"
	got := ExtractEntities(text)
	for _, e := range got {
		if e == "12345" || e == "ab" {
			t.Errorf("ExtractEntities() should filter digit-only/short entities, got %v", got)
		}
	}
}

func TestExtractEntitiesExcludesHTMLNoiseTokens(t *testing.T) {
	text := "www http href div span this is about chatgpt"
	got := ExtractEntities(text)
	for _, noise := range []string{"www", "http", "href", "div", "span"} {
		for _, e := range got {
			if e == noise {
				t.Errorf("ExtractEntities() leaked HTML noise token %q into %v", noise, got)
			}
		}
	}
}

func TestExtractSignalsEngagementScoreBounded(t *testing.T) {
	text := "BREAKING NEWS this is trending and going viral!!! everyone is talking about it?"
	signals := ExtractSignals(text)
	if signals.EngagementScore < 0 || signals.EngagementScore > 1.0 {
		t.Fatalf("EngagementScore out of bounds: %v", signals.EngagementScore)
	}
	if len(signals.BreakingNews) == 0 {
		t.Errorf("expected breaking-news pattern match, got %+v", signals)
	}
}

func TestExtractKeywordsTopKOrdering(t *testing.T) {
	text := "apple apple apple banana banana cherry"
	got := ExtractKeywords(text, 2)
	if len(got) != 2 {
		t.Fatalf("ExtractKeywords() returned %d items, want 2", len(got))
	}
	if got[0].word != "apple" || got[0].count != 3 {
		t.Fatalf("ExtractKeywords()[0] = %+v, want apple:3", got[0])
	}
}
