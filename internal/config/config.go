// Package config builds the immutable Config value the rest of the system is
// constructed from. There is no global config singleton: main() calls Load
// once and passes the result down to every service explicitly.
//
// Config loading itself is out of this system's core scope (spec §1) — this
// package only reads the small set of named environment variables in spec §6
// and applies their defaults, the same way the teacher's database and email
// packages read DATABASE_URL / SMTP_* with getEnvOrDefault-style fallbacks.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config is the complete, immutable process configuration.
type Config struct {
	DBPath string

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	RSSFeeds []string

	TrendMinCount      int
	TrendWindowHours   int
	TrendBaselineHours int

	AlertEmailSMTP string
	AlertEmailUser string
	AlertEmailPass string
	AlertEmailTo   string
	AlertWebhookURL        string
	AlertWebhookSigningKey string
	AlertVolumeThreshold   int

	HTTPAddr string
}

// defaultRSSFeeds is used when RSS_FEEDS is empty, per spec §6.
var defaultRSSFeeds = []string{
	"https://hnrss.org/newest",
	"https://feeds.bbci.co.uk/news/world/rss.xml",
	"https://www.reddit.com/r/technology/.rss",
}

// ConfigError wraps a fatal configuration problem surfaced at startup.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return "config: " + e.msg }

// Load reads environment variables into a Config, applying defaults. The
// only way Load fails today is an unparseable integer override — missing
// values always fall back to a sane default rather than erroring, matching
// spec §1's framing of config loading as an external concern with only its
// contract (the named keys) specified here.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath: getEnv("DB_PATH", "./trendwatch.db"),

		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "trendwatch/1.0"),

		AlertEmailSMTP:  getEnv("ALERT_EMAIL_SMTP", "smtp.gmail.com"),
		AlertEmailUser:  os.Getenv("ALERT_EMAIL_USER"),
		AlertEmailPass:  os.Getenv("ALERT_EMAIL_PASS"),
		AlertEmailTo:           os.Getenv("ALERT_EMAIL_TO"),
		AlertWebhookURL:        os.Getenv("ALERT_WEBHOOK_URL"),
		AlertWebhookSigningKey: os.Getenv("ALERT_WEBHOOK_SIGNING_KEY"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}

	if raw := strings.TrimSpace(os.Getenv("RSS_FEEDS")); raw != "" {
		var feeds []string
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				feeds = append(feeds, f)
			}
		}
		cfg.RSSFeeds = feeds
	} else {
		cfg.RSSFeeds = defaultRSSFeeds
	}

	var err error
	if cfg.TrendMinCount, err = getEnvInt("TREND_MIN_COUNT", 10); err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}
	if cfg.TrendWindowHours, err = getEnvInt("TREND_WINDOW_HOURS", 24); err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}
	if cfg.TrendBaselineHours, err = getEnvInt("TREND_BASELINE_HOURS", 168); err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}
	if cfg.AlertVolumeThreshold, err = getEnvInt("ALERT_VOLUME_THRESHOLD", 100); err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}

	// Logically degenerate but not rejected, per spec §9 Open Question: warn, don't fail.
	if cfg.TrendWindowHours >= cfg.TrendBaselineHours {
		log.Printf("config: TREND_WINDOW_HOURS (%d) >= TREND_BASELINE_HOURS (%d); baseline will not be a meaningful comparison window",
			cfg.TrendWindowHours, cfg.TrendBaselineHours)
	}

	return cfg, nil
}

// DiscussionEnabled reports whether the discussion-site adapter has the
// credentials it needs. Missing credentials disable the adapter but never
// abort the pipeline (spec §4.4).
func (c *Config) DiscussionEnabled() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != "" && c.RedditUserAgent != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, raw)
	}
	return n, nil
}
