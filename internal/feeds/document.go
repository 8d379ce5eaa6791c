package feeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const generatedAtKey = "generatedAt"

// Post is one blog entry.
type Post struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Date    time.Time `json:"date"`
	Summary string    `json:"summary,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
}

// Document is the synced blog index. On the wire it is one JSON object
// keyed by source name, plus "generatedAt".
type Document struct {
	GeneratedAt time.Time
	Posts       map[string][]Post
}

// Sources returns the source names in sorted order.
func (d Document) Sources() []string {
	names := make([]string, 0, len(d.Posts))
	for name := range d.Posts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasData reports whether any source holds at least one post.
func (d *Document) HasData() bool {
	if d == nil {
		return false
	}
	for _, posts := range d.Posts {
		if len(posts) > 0 {
			return true
		}
	}
	return false
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Posts)+1)
	for name, posts := range d.Posts {
		if posts == nil {
			posts = []Post{}
		}
		out[name] = posts
	}
	out[generatedAtKey] = d.GeneratedAt.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	doc := Document{Posts: make(map[string][]Post, len(raw))}
	for key, val := range raw {
		if key == generatedAtKey {
			if err := json.Unmarshal(val, &doc.GeneratedAt); err != nil {
				return fmt.Errorf("decode %s: %w", generatedAtKey, err)
			}
			continue
		}
		var posts []Post
		if err := json.Unmarshal(val, &posts); err != nil {
			return fmt.Errorf("decode source %q: %w", key, err)
		}
		doc.Posts[key] = posts
	}
	*d = doc
	return nil
}

// LoadDocument reads a previously written document. A missing file yields
// nil and no error.
func LoadDocument(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDocument replaces path atomically.
func WriteDocument(path string, doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(b, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
