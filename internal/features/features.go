// Package features implements rule-based entity and signal extraction over
// already-cleaned post text: tokenization, stop-word filtering, internet
// slang normalization, curated topic-category matching, and top-K keyword
// selection. There is no NLP model here by design — extraction is
// deterministic and reproducible given the same input text.
package features

import (
	"regexp"
	"sort"
	"strings"
)

var (
	hashtagRe = regexp.MustCompile(`(?i)#[a-z0-9_]+`)
	mentionRe = regexp.MustCompile(`(?i)@[a-z0-9_]+`)
	wordRe    = regexp.MustCompile(`(?i)\b[a-z][a-z0-9_']*\b`)
)

// stopWords mirrors the general-English + reddit-specific stop list, with
// HTML/markup noise tokens added — the surviving reference copy of this
// list lacked them, which let raw markup leak into extracted entities.
var stopWords = buildStopWords()

func buildStopWords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with", "this", "but", "they",
		"have", "had", "what", "said", "each", "which", "their", "time",
		"if", "up", "out", "many", "then", "them", "these", "so", "some",
		"her", "would", "make", "like", "into", "him", "two",
		"more", "very", "after", "words", "just", "where", "most",
		"now", "people", "my", "made", "over", "did", "down", "only", "way",
		"find", "use", "may", "water", "long", "little", "get", "through",
		"back", "much", "before", "go", "good", "new", "write", "our",
		"used", "me", "man", "too", "any", "day", "same", "right", "look",
		"think", "also", "around", "another", "came", "come", "work",
		"three", "must", "because", "does", "part", "even", "place",
		"well", "such", "here", "take", "why", "help", "put", "different",
		"away", "turn", "want", "every", "should", "never",
		"year", "still", "public", "read", "know", "large", "available",
		"end", "become", "member", "please", "including", "old", "see",
		"however", "given", "both", "important", "though", "information",
		"nothing", "those", "business", "home", "mr", "ms", "dr", "could",
		"might", "need", "going", "doing",
		"reddit", "post", "comment", "submission", "thread", "op", "edit",
		"deleted", "removed",
		// HTML/markup noise, not present in the degraded on-disk copy.
		"http", "https", "www", "html", "href", "div", "span", "class",
		"style", "src", "amp", "nbsp", "com", "org", "net",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// internetSlang maps shorthand to its expansion. Normalization happens
// during tokenization, before frequency counting, so "lol" and future
// occurrences of its expansion count toward the same keyword.
var internetSlang = map[string]string{
	"lol":   "laugh_out_loud",
	"lmao":  "laughing_my_ass_off",
	"rofl":  "rolling_on_floor_laughing",
	"omg":   "oh_my_god",
	"wtf":   "what_the_f",
	"fml":   "f_my_life",
	"tbh":   "to_be_honest",
	"imo":   "in_my_opinion",
	"imho":  "in_my_humble_opinion",
	"afaik": "as_far_as_i_know",
	"irl":   "in_real_life",
	"tldr":  "too_long_didnt_read",
	"eli5":  "explain_like_im_5",
	"ama":   "ask_me_anything",
	"til":   "today_i_learned",
	"ysk":   "you_should_know",
	"psa":   "public_service_announcement",
}

// categoryPatterns are curated, topic-anchored regexes used to pull named
// entities out of text that frequency counting alone would miss (a single
// mention of "bitcoin" is meaningful even though it won't repeat).
var categoryPatterns = map[string]*regexp.Regexp{
	"covid":         regexp.MustCompile(`(?i)\b(covid|coronavirus|pandemic|vaccine|pfizer|moderna|omicron|delta)\b`),
	"climate":       regexp.MustCompile(`(?i)\b(climate|global warming|greenhouse|carbon|emission|greta)\b`),
	"crypto":        regexp.MustCompile(`(?i)\b(bitcoin|crypto|blockchain|ethereum|nft|dogecoin|elon)\b`),
	"politics":      regexp.MustCompile(`(?i)\b(trump|biden|election|democrat|republican|congress|senate)\b`),
	"tech":          regexp.MustCompile(`(?i)\b(apple|google|microsoft|amazon|meta|twitter|tiktok|ai|chatgpt)\b`),
	"sports":        regexp.MustCompile(`(?i)\b(nfl|nba|fifa|olympics|superbowl|worldcup|playoff)\b`),
	"entertainment": regexp.MustCompile(`(?i)\b(netflix|disney|marvel|starwars|stranger things)\b`),
}

const entityKeywordTopK = 5

// Tokenize lower-cases text, extracts word-pattern tokens, drops stop words
// and anything under 3 characters, and normalizes internet slang.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if norm, ok := internetSlang[w]; ok {
			w = norm
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// keywordCount pairs a token with its frequency for top-K selection.
type keywordCount struct {
	word  string
	count int
}

// ExtractKeywords returns the topK most frequent tokens in text, ties broken
// alphabetically for determinism.
func ExtractKeywords(text string, topK int) []keywordCount {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	counts := make([]keywordCount, 0, len(freq))
	for w, c := range freq {
		counts = append(counts, keywordCount{word: w, count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].word < counts[j].word
	})
	if len(counts) > topK {
		counts = counts[:topK]
	}
	return counts
}

// ExtractHashtags returns lower-cased #hashtags.
func ExtractHashtags(text string) []string {
	return lowerAll(hashtagRe.FindAllString(text, -1))
}

// ExtractMentions returns lower-cased @mentions.
func ExtractMentions(text string) []string {
	return lowerAll(mentionRe.FindAllString(text, -1))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// ExtractEntities unions hashtags (without '#'), mentions (without '@'),
// keywords occurring at least twice, and curated category matches, then
// filters to alphanumeric tokens of length >= 3 that are not stop words or
// pure digits, sorted and deduplicated.
func ExtractEntities(text string) []string {
	if text == "" {
		return nil
	}
	set := make(map[string]struct{})

	for _, tag := range ExtractHashtags(text) {
		if t := strings.TrimPrefix(tag, "#"); len(t) > 0 {
			set[t] = struct{}{}
		}
	}
	for _, m := range ExtractMentions(text) {
		if t := strings.TrimPrefix(m, "@"); len(t) > 0 {
			set[t] = struct{}{}
		}
	}
	for _, kw := range ExtractKeywords(text, entityKeywordTopK) {
		if kw.count >= 2 {
			set[kw.word] = struct{}{}
		}
	}
	for _, pattern := range categoryPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			set[strings.ToLower(m)] = struct{}{}
		}
	}

	entities := make([]string, 0, len(set))
	for e := range set {
		e = strings.TrimSpace(strings.ToLower(e))
		if len(e) < 3 {
			continue
		}
		if _, stop := stopWords[e]; stop {
			continue
		}
		if isAllDigit(e) || !isAlnum(e) {
			continue
		}
		entities = append(entities, e)
	}
	sort.Strings(entities)
	return entities
}

func isAllDigit(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return len(s) > 0
}

// Signals bundles the auxiliary scorers from the original feature pipeline
// (sentiment, trending-pattern, engagement). They are never read by the
// trend engine — post entities are its only input — but are
// computed and exposed for callers that want a richer per-post summary.
type Signals struct {
	PositiveCount   int
	NegativeCount   int
	NeutralCount    int
	BreakingNews    []string
	ViralPhrases    []string
	MemeRefs        []string
	EngagementScore float64
}

var (
	positiveWords = wordSet("good", "great", "excellent", "amazing", "awesome", "fantastic",
		"love", "like", "enjoy", "happy", "pleased", "satisfied", "wonderful", "brilliant",
		"perfect", "best", "favorite", "thank", "thanks", "grateful", "appreciate", "nice",
		"cool", "sweet", "dope", "fire", "lit", "poggers", "based", "wholesome", "blessed")
	negativeWords = wordSet("bad", "terrible", "awful", "horrible", "disgusting", "hate",
		"dislike", "angry", "mad", "furious", "annoyed", "sad", "depressed", "disappointed",
		"frustrated", "worst", "suck", "sucks", "stupid", "dumb", "idiotic", "cringe", "toxic",
		"trash", "garbage", "pathetic", "fail", "failure", "disaster", "nightmare")

	breakingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbreaking\b.*\bnews\b`),
		regexp.MustCompile(`(?i)\bjust\s+in\b`),
		regexp.MustCompile(`(?i)\burgent\b`),
		regexp.MustCompile(`(?i)\balert\b`),
		regexp.MustCompile(`(?i)\bupdate\b`),
	}
	viralPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgone\s+viral\b`),
		regexp.MustCompile(`(?i)\btrending\b`),
		regexp.MustCompile(`(?i)\bgoing\s+viral\b`),
		regexp.MustCompile(`(?i)\beveryone\s+is\s+talking\b`),
	}
	memeIndicators = []string{
		"stonks", "hodl", "diamond hands", "to the moon", "this is fine",
		"change my mind", "ok boomer", "among us", "sus", "chad", "karen",
		"simp", "kekw", "monke", "bonk",
	}
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ExtractSignals computes the auxiliary, non-trend-feeding scorers.
func ExtractSignals(text string) Signals {
	var s Signals
	if text == "" {
		return s
	}

	tokenSet := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		tokenSet[t] = struct{}{}
	}
	for w := range tokenSet {
		if _, ok := positiveWords[w]; ok {
			s.PositiveCount++
		}
		if _, ok := negativeWords[w]; ok {
			s.NegativeCount++
		}
	}
	s.NeutralCount = len(tokenSet) - s.PositiveCount - s.NegativeCount
	if s.NeutralCount < 0 {
		s.NeutralCount = 0
	}

	for _, p := range breakingPatterns {
		s.BreakingNews = append(s.BreakingNews, p.FindAllString(text, -1)...)
	}
	for _, p := range viralPatterns {
		s.ViralPhrases = append(s.ViralPhrases, p.FindAllString(text, -1)...)
	}
	lower := strings.ToLower(text)
	for _, indicator := range memeIndicators {
		if strings.Contains(lower, indicator) {
			s.MemeRefs = append(s.MemeRefs, indicator)
		}
	}

	s.EngagementScore = engagementScore(text, s)
	return s
}

func engagementScore(text string, s Signals) float64 {
	score := 0.0
	length := len(text)
	switch {
	case length >= 50 && length <= 500:
		score += 0.2
	case length > 500:
		score += 0.1
	}

	if hashtags := ExtractHashtags(text); len(hashtags) > 0 {
		score += minF(float64(len(hashtags))*0.1, 0.3)
	}

	questionCount := strings.Count(text, "?")
	score += minF(float64(questionCount)*0.1, 0.2)

	if s.PositiveCount > s.NegativeCount {
		score += 0.1
	}

	patternCount := len(s.BreakingNews) + len(s.ViralPhrases) + len(s.MemeRefs)
	score += minF(float64(patternCount)*0.05, 0.2)

	return minF(score, 1.0)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
