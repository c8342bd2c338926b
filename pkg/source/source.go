package source

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Type identifies the platform a mention came from.
type Type string

const (
	TypeTwitter    Type = "twitter"
	TypeReddit     Type = "reddit"
	TypeHackerNews Type = "hackernews"
	TypeSynthetic  Type = "synthetic"
)

// AllTypes returns every supported source type.
func AllTypes() []Type {
	return []Type{TypeTwitter, TypeReddit, TypeHackerNews, TypeSynthetic}
}

// Valid reports whether t is a known source type.
func (t Type) Valid() bool {
	switch t {
	case TypeTwitter, TypeReddit, TypeHackerNews, TypeSynthetic:
		return true
	}
	return false
}

// Item is one collected mention of an AI tool.
type Item struct {
	ID          string    `json:"id" db:"id"`
	Source      Type      `json:"source" db:"source"`
	Text        string    `json:"text" db:"text"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Engagement  float64   `json:"engagement" db:"engagement"`
	Author      string    `json:"author,omitempty" db:"author"`
	URL         string    `json:"url,omitempty" db:"url"`
	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
}

// Key identifies an item across collection runs. IDs are only unique
// within a platform.
func (i Item) Key() string {
	return string(i.Source) + ":" + i.ID
}

// Source is the interface all collectors implement.
type Source interface {
	// Name returns the source type.
	Name() Type

	// Collect fetches recent mentions. Partial results alongside a
	// non-nil error are valid: callers should keep the items and log
	// the error.
	Collect(ctx context.Context) ([]Item, error)
}

// keywordSet lowercases, dedupes and sorts query terms, keeping at most
// limit of them. Collectors use it to turn the tool catalog into search
// keywords.
func keywordSet(terms []string, limit int) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
