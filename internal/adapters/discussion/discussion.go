// Package discussion adapts a Reddit-style discussion site into RawRecords.
// It authenticates with the site's OAuth2 client-credentials flow and is
// disabled outright when credentials are missing, the same way the
// reference aggregator only registers its Reddit monitor when ClientID and
// ClientSecret are both configured.
package discussion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/geraldfingburke/trendwatch/internal/adapters"
	"github.com/geraldfingburke/trendwatch/internal/models"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"

	// perItem and perTopic are the minimum pacing the spec requires between
	// individual record fetches and between subreddit/topic listings,
	// respectively.
	perItem  = 100 * time.Millisecond
	perTopic = time.Second
)

// Config holds the credentials and target subreddits for one Adapter.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string
	Sort         string // "new", "hot", or "top"
}

// Adapter fetches submissions from a fixed list of subreddits via Reddit's
// OAuth2 API.
type Adapter struct {
	cfg          Config
	httpClient   *http.Client
	itemLimiter  *rate.Limiter
	topicLimiter *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New builds a discussion Adapter. Call Enabled() before FetchBatch if the
// caller wants to skip registering the adapter entirely; FetchBatch itself
// also returns adapters.ErrDisabled when credentials are missing.
func New(cfg Config) *Adapter {
	if cfg.Sort == "" {
		cfg.Sort = "new"
	}
	return &Adapter{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		itemLimiter:  rate.NewLimiter(rate.Every(perItem), 1),
		topicLimiter: rate.NewLimiter(rate.Every(perTopic), 1),
	}
}

func (a *Adapter) Name() string { return "discussion" }

// Enabled reports whether this adapter has everything it needs to run.
func (a *Adapter) Enabled() bool {
	return a.cfg.ClientID != "" && a.cfg.ClientSecret != "" && a.cfg.UserAgent != "" && len(a.cfg.Subreddits) > 0
}

// FetchBatch pages through configured subreddits; cursor is the "after"
// token for the current subreddit, prefixed with its index ("2:t3_xyz").
// An empty cursor starts from the first subreddit's front page.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]models.RawRecord, string, error) {
	if !a.Enabled() {
		return nil, "", adapters.ErrDisabled
	}

	subIdx, after := parseCursor(cursor)
	if subIdx >= len(a.cfg.Subreddits) {
		return nil, "", nil
	}

	if err := a.topicLimiter.Wait(ctx); err != nil {
		return nil, "", &adapters.SourceError{Adapter: a.Name(), Err: err}
	}

	listing, err := a.fetchListing(ctx, a.cfg.Subreddits[subIdx], a.cfg.Sort, after, limit)
	if err != nil {
		return nil, "", &adapters.SourceError{Adapter: a.Name(), Err: err}
	}

	var records []models.RawRecord
	for _, child := range listing.Data.Children {
		if err := a.itemLimiter.Wait(ctx); err != nil {
			return records, "", &adapters.SourceError{Adapter: a.Name(), Err: err}
		}
		records = append(records, submissionToRecord(child.Data))
	}

	nextAfter := listing.Data.After
	if nextAfter == "" {
		subIdx++
		if subIdx >= len(a.cfg.Subreddits) {
			return records, "", nil
		}
		return records, fmt.Sprintf("%d:", subIdx), nil
	}
	return records, fmt.Sprintf("%d:%s", subIdx, nextAfter), nil
}

func parseCursor(cursor string) (int, string) {
	if cursor == "" {
		return 0, ""
	}
	parts := strings.SplitN(cursor, ":", 2)
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ""
	}
	after := ""
	if len(parts) > 1 {
		after = parts[1]
	}
	return idx, after
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditSubmission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditSubmission struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

func submissionToRecord(sub redditSubmission) models.RawRecord {
	createdAt := time.Unix(int64(sub.CreatedUTC), 0).UTC()
	return models.RawRecord{
		SourceKind:  models.SourceDiscussion,
		LocalID:     sub.ID,
		Title:       sub.Title,
		Body:        sub.Selftext,
		Author:      sub.Author,
		URL:         "https://reddit.com" + sub.Permalink,
		PublishedAt: &createdAt,
	}
}

func (a *Adapter) fetchListing(ctx context.Context, subreddit, sort, after string, limit int) (*redditListing, error) {
	token, err := a.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s?%s", apiBase, subreddit, sort, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discussion adapter: unexpected status %d fetching r/%s", resp.StatusCode, subreddit)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("discussion adapter: decoding listing: %w", err)
	}
	return &listing, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken returns a cached OAuth2 access token, refreshing it via the
// client-credentials grant when absent or within 30s of expiring.
func (a *Adapter) ensureToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry.Add(-30*time.Second)) {
		return a.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.SetBasicAuth(a.cfg.ClientID, a.cfg.ClientSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discussion adapter: token request failed with status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("discussion adapter: decoding token response: %w", err)
	}

	a.accessToken = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return a.accessToken, nil
}
