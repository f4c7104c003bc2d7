package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_PATH", "REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
		"RSS_FEEDS", "TREND_MIN_COUNT", "TREND_WINDOW_HOURS", "TREND_BASELINE_HOURS",
		"ALERT_EMAIL_SMTP", "ALERT_EMAIL_USER", "ALERT_EMAIL_PASS", "ALERT_EMAIL_TO",
		"ALERT_WEBHOOK_URL", "HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBPath != "./trendwatch.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.TrendMinCount != 10 || cfg.TrendWindowHours != 24 || cfg.TrendBaselineHours != 168 {
		t.Errorf("trend config = %+v, want defaults 10/24/168", cfg)
	}
	if len(cfg.RSSFeeds) != len(defaultRSSFeeds) {
		t.Errorf("RSSFeeds = %v, want default list", cfg.RSSFeeds)
	}
}

func TestLoadParsesCommaSeparatedFeeds(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSS_FEEDS", "https://a.example/rss, https://b.example/rss ,,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"https://a.example/rss", "https://b.example/rss"}
	if len(cfg.RSSFeeds) != len(want) {
		t.Fatalf("RSSFeeds = %v, want %v", cfg.RSSFeeds, want)
	}
	for i, f := range want {
		if cfg.RSSFeeds[i] != f {
			t.Errorf("RSSFeeds[%d] = %q, want %q", i, cfg.RSSFeeds[i], f)
		}
	}
}

func TestLoadRejectsUnparseableInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("TREND_MIN_COUNT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want ConfigError for unparseable TREND_MIN_COUNT")
	}
}

func TestDiscussionEnabledRequiresFullCredentials(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DiscussionEnabled() {
		t.Fatal("DiscussionEnabled() = true with no Reddit credentials set")
	}

	cfg.RedditClientID = "id"
	cfg.RedditClientSecret = "secret"
	if !cfg.DiscussionEnabled() {
		t.Fatal("DiscussionEnabled() = false with full credentials set")
	}
}
