// Package feeds syncs recent blog posts from several providers into one
// JSON document, keeping earlier results when a provider is unreachable.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
)

// ErrNoData means every source failed and there was nothing cached to keep.
var ErrNoData = errors.New("all sources failed and no cached data exists")

// Kind is the wire format of a source.
type Kind string

const (
	KindJSON Kind = "json" // dev.to style article array
	KindRSS  Kind = "rss"  // RSS or Atom
)

// Source names one provider.
type Source struct {
	Name string
	Kind Kind
	URL  string
}

// Validate checks a source definition.
func (s Source) Validate() error {
	switch {
	case s.Name == "":
		return errors.New("source name is empty")
	case s.Name == generatedAtKey:
		return fmt.Errorf("source name %q is reserved", s.Name)
	case s.URL == "":
		return fmt.Errorf("source %q has no url", s.Name)
	case s.Kind != KindJSON && s.Kind != KindRSS:
		return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// Options tune fetching.
type Options struct {
	Limit     int           // posts kept per source
	Attempts  int           // tries per source, including the first
	BaseDelay time.Duration // first backoff interval, doubled each retry
	Client    *http.Client
	UserAgent string
}

func (o *Options) defaults() {
	if o.Limit <= 0 {
		o.Limit = 5
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if o.UserAgent == "" {
		o.UserAgent = "portfolio-feedsync/1.0"
	}
}

// Report summarises one sync run.
type Report struct {
	Fetched   map[string]int   // posts written per source
	Failed    map[string]error // sources whose fetch failed
	Preserved []string         // sources that kept earlier posts
}

// Syncer fetches every configured source.
type Syncer struct {
	sources []Source
	opts    Options
	parser  *gofeed.Parser
	now     func() time.Time
}

// NewSyncer validates sources and returns a Syncer.
func NewSyncer(sources []Source, opts Options) (*Syncer, error) {
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source %q", src.Name)
		}
		seen[src.Name] = true
	}
	opts.defaults()
	return &Syncer{sources: sources, opts: opts, parser: gofeed.NewParser(), now: time.Now}, nil
}

// Sync fetches each source in turn. A source that fails, or returns no
// posts, keeps its entries from prev. The error is ErrNoData only when
// every source failed and prev holds nothing.
func (s *Syncer) Sync(ctx context.Context, prev *Document) (Document, Report, error) {
	doc := Document{GeneratedAt: s.now(), Posts: make(map[string][]Post, len(s.sources))}
	rep := Report{Fetched: make(map[string]int), Failed: make(map[string]error)}

	for _, src := range s.sources {
		posts, err := s.fetchWithRetry(ctx, src)
		var old []Post
		if prev != nil {
			old = prev.Posts[src.Name]
		}
		switch {
		case err != nil:
			rep.Failed[src.Name] = err
			log.Printf("[feeds] %s failed: %v", src.Name, err)
		case len(posts) == 0:
			log.Printf("[feeds] %s returned no posts", src.Name)
		}
		if (err != nil || len(posts) == 0) && len(old) > 0 {
			doc.Posts[src.Name] = old
			rep.Preserved = append(rep.Preserved, src.Name)
			log.Printf("[feeds] %s: keeping %d cached posts", src.Name, len(old))
			continue
		}
		if posts == nil {
			posts = []Post{}
		}
		doc.Posts[src.Name] = posts
		if err == nil {
			rep.Fetched[src.Name] = len(posts)
			log.Printf("[feeds] %s: fetched %d posts", src.Name, len(posts))
		}
	}

	if len(s.sources) > 0 && len(rep.Failed) == len(s.sources) && !prev.HasData() {
		return doc, rep, ErrNoData
	}
	return doc, rep, nil
}

func (s *Syncer) fetchWithRetry(ctx context.Context, src Source) ([]Post, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = s.opts.BaseDelay << 6
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.opts.Attempts-1)), ctx)

	var posts []Post
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		posts, err = s.fetch(ctx, src)
		if err != nil && attempt < s.opts.Attempts {
			log.Printf("[feeds] %s attempt %d: %v", src.Name, attempt, err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.url, e.code) }

func (s *Syncer) fetch(ctx context.Context, src Source) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		serr := &statusError{code: resp.StatusCode, url: src.URL}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}

	var posts []Post
	switch src.Kind {
	case KindJSON:
		posts, err = decodeArticles(resp.Body)
	default:
		posts, err = s.decodeFeed(resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.Name, err)
	}
	return newest(posts, s.opts.Limit), nil
}

type article struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	PublishedAt string   `json:"published_at"`
	TagList     []string `json:"tag_list"`
}

func decodeArticles(r io.Reader) ([]Post, error) {
	var arts []article
	if err := json.NewDecoder(r).Decode(&arts); err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(arts))
	for _, a := range arts {
		p := Post{Title: a.Title, URL: a.URL, Summary: a.Description, Tags: a.TagList}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			p.Date = t.UTC()
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *Syncer) decodeFeed(r io.Reader) ([]Post, error) {
	feed, err := s.parser.Parse(r)
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(feed.Items))
	for _, it := range feed.Items {
		p := Post{
			Title:   strings.TrimSpace(it.Title),
			URL:     it.Link,
			Summary: strings.TrimSpace(it.Description),
			Tags:    it.Categories,
		}
		switch {
		case it.PublishedParsed != nil:
			p.Date = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			p.Date = it.UpdatedParsed.UTC()
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// newest sorts posts by date, newest first, and keeps at most limit.
func newest(posts []Post, limit int) []Post {
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Date.After(posts[j].Date) })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}
