// Package config loads server and feed settings from the environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/saint2706/portfolio/internal/feeds"
)

// Config holds every runtime setting.
type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	AIMoveDelay time.Duration

	FeedPath      string
	FeedLimit     int
	FeedAttempts  int
	FeedBaseDelay time.Duration
	FeedTimeout   time.Duration
	FeedSources   []feeds.Source

	SummaryPath string
	SiteTitle   string
	SiteURL     string
}

// DefaultSources are the blog providers synced when FEED_SOURCES is unset.
var DefaultSources = []feeds.Source{
	{Name: "devto", Kind: feeds.KindJSON, URL: "https://dev.to/api/articles?username=saint2706"},
	{Name: "medium", Kind: feeds.KindRSS, URL: "https://medium.com/feed/@saint2706"},
	{Name: "substack", Kind: feeds.KindRSS, URL: "https://saint2706.substack.com/feed"},
}

// Load reads the given .env files (missing ones are skipped) and then the
// process environment. Variables already set in the process win.
func Load(files ...string) (Config, error) {
	seeded := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			seeded[k] = v
		}
	}
	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := seeded[key]
		return v, ok
	})
}

// FromLookup builds a Config from a key lookup, applying defaults.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	cfg := Config{
		Port:        get("PORT", "8080"),
		DBDriver:    get("DB_DRIVER", "sqlite"),
		DBDSN:       get("DB_DSN", "file:portfolio.db?_pragma=busy_timeout(5000)"),
		FeedPath:    get("FEED_PATH", "data/blogs.json"),
		SummaryPath: get("SUMMARY_PATH", "public/llms.txt"),
		SiteTitle:   get("SITE_TITLE", "Portfolio"),
		SiteURL:     get("SITE_URL", ""),
	}

	var err error
	if cfg.AIMoveDelay, err = duration(get("AI_MOVE_DELAY", "500ms"), "AI_MOVE_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.FeedBaseDelay, err = duration(get("FEED_BASE_DELAY", "1s"), "FEED_BASE_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.FeedTimeout, err = duration(get("FEED_TIMEOUT", "15s"), "FEED_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.FeedLimit, err = positive(get("FEED_LIMIT", "5"), "FEED_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.FeedAttempts, err = positive(get("FEED_ATTEMPTS", "3"), "FEED_ATTEMPTS"); err != nil {
		return Config{}, err
	}
	if raw := get("FEED_SOURCES", ""); raw != "" {
		if cfg.FeedSources, err = ParseSources(raw); err != nil {
			return Config{}, err
		}
	} else {
		cfg.FeedSources = append([]feeds.Source(nil), DefaultSources...)
	}
	return cfg, nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ParseSources parses a comma-separated list of name=kind:url entries,
// e.g. "devto=json:https://dev.to/api/articles?username=me".
func ParseSources(raw string) ([]feeds.Source, error) {
	var out []feeds.Source
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("FEED_SOURCES: %q is not name=kind:url", entry)
		}
		kind, url, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("FEED_SOURCES: %q is not name=kind:url", entry)
		}
		src := feeds.Source{
			Name: strings.TrimSpace(name),
			Kind: feeds.Kind(strings.ToLower(strings.TrimSpace(kind))),
			URL:  strings.TrimSpace(url),
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("FEED_SOURCES: %w", err)
		}
		out = append(out, src)
	}
	if len(out) == 0 {
		return nil, errors.New("FEED_SOURCES: no sources")
	}
	return out, nil
}

func duration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func positive(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}
