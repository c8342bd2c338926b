package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Tagged is an item with its normalized text and taxonomy match. Tool is
// empty when the text mentions no tracked tool.
type Tagged struct {
	source.Item
	Normalized string            `json:"normalized"`
	Tool       string            `json:"tool,omitempty"`
	Category   taxonomy.Category `json:"category,omitempty"`
}

// Scored is a tagged item with sentiment attached.
type Scored struct {
	Tagged
	sentiment.Result
}

// Stats counts what happened to one batch of items.
type Stats struct {
	In               int                     `json:"in"`
	Out              int                     `json:"out"`
	DroppedMalformed int                     `json:"dropped_malformed"`
	DroppedShort     int                     `json:"dropped_short"`
	DroppedDuplicate int                     `json:"dropped_duplicate"`
	TaggedCount      int                     `json:"tagged"`
	Untagged         int                     `json:"untagged"`
	FellBack         bool                    `json:"fell_back"`
	BySource         map[source.Type]int     `json:"by_source,omitempty"`
	ByLabel          map[sentiment.Label]int `json:"by_label,omitempty"`
}

// Dropped returns the total number of excluded items.
func (s Stats) Dropped() int {
	return s.DroppedMalformed + s.DroppedShort + s.DroppedDuplicate
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFallback sets the scorer used when the primary fails a whole batch.
func WithFallback(s sentiment.Scorer) Option {
	return func(p *Pipeline) { p.fallback = s }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// Pipeline runs items through normalize, filter, tag and score stages.
type Pipeline struct {
	tagger   *Tagger
	scorer   sentiment.Scorer
	fallback sentiment.Scorer
	logger   *zap.Logger
}

func New(tagger *Tagger, scorer sentiment.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		tagger: tagger,
		scorer: scorer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one batch. Malformed items (no id, no text, zero
// timestamp, unknown source) are dropped and counted, never fatal; so are
// texts at or under the noise cutoff and duplicates of already-seen
// (source, id) pairs. The output preserves input order.
func (p *Pipeline) Run(ctx context.Context, items []source.Item) ([]Scored, Stats, error) {
	stats := Stats{
		In:       len(items),
		BySource: make(map[source.Type]int),
		ByLabel:  make(map[sentiment.Label]int),
	}

	tagged := make([]Tagged, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID == "" || !item.Source.Valid() || item.CreatedAt.IsZero() {
			stats.DroppedMalformed++
			continue
		}
		norm := Normalize(item.Text)
		if norm == "" {
			stats.DroppedMalformed++
			continue
		}
		if utf8.RuneCountInString(norm) <= MinTextRunes {
			stats.DroppedShort++
			continue
		}
		key := item.Key()
		if seen[key] {
			stats.DroppedDuplicate++
			continue
		}
		seen[key] = true

		t := Tagged{Item: item, Normalized: norm}
		if tool, category, ok := p.tagger.Tag(norm); ok {
			t.Tool = tool
			t.Category = category
			stats.TaggedCount++
		} else {
			stats.Untagged++
		}
		tagged = append(tagged, t)
	}

	if len(tagged) == 0 {
		stats.Out = 0
		return []Scored{}, stats, nil
	}

	texts := make([]string, len(tagged))
	for i, t := range tagged {
		texts[i] = t.Normalized
	}

	results, err := p.scorer.ScoreBatch(ctx, texts)
	if err != nil && p.fallback != nil {
		p.logger.Warn("primary scorer failed, falling back",
			zap.String("scorer", p.scorer.Name()),
			zap.String("fallback", p.fallback.Name()),
			zap.Error(err))
		stats.FellBack = true
		results, err = p.fallback.ScoreBatch(ctx, texts)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("score batch: %w", err)
	}
	if len(results) != len(texts) {
		return nil, stats, fmt.Errorf("scorer returned %d results for %d texts", len(results), len(texts))
	}

	scored := make([]Scored, len(tagged))
	for i, t := range tagged {
		scored[i] = Scored{Tagged: t, Result: sentiment.Clamped(results[i])}
		stats.BySource[t.Item.Source]++
		stats.ByLabel[scored[i].Label]++
	}
	stats.Out = len(scored)

	p.logger.Debug("pipeline run complete",
		zap.Int("in", stats.In),
		zap.Int("out", stats.Out),
		zap.Int("dropped", stats.Dropped()),
		zap.Int("tagged", stats.TaggedCount))
	return scored, stats, nil
}
