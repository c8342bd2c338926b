// Package analysis orchestrates a full scoring run: load recent items
// from the store, push them through the pipeline, persist the scored
// mentions, and replace the per-tool aggregates.
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soup8732/aisentinel/internal/store"
	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/rank"
)

// Engine recomputes sentiment aggregates from stored items.
type Engine struct {
	store    store.Store
	pipe     *pipeline.Pipeline
	agg      *rank.Aggregator
	lookback time.Duration
	logger   *zap.Logger
}

// NewEngine creates an analysis engine. lookback bounds how far back
// items are considered; zero means seven days.
func NewEngine(s store.Store, pipe *pipeline.Pipeline, agg *rank.Aggregator, lookback time.Duration, logger *zap.Logger) *Engine {
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    s,
		pipe:     pipe,
		agg:      agg,
		lookback: lookback,
		logger:   logger,
	}
}

// Result summarizes one analysis run.
type Result struct {
	Aggregates []rank.Aggregate  `json:"aggregates"`
	Scored     []pipeline.Scored `json:"-"`
	Stats      pipeline.Stats    `json:"stats"`
}

// Analyze scores every item in the lookback window and replaces the
// aggregate table. When the window is empty the previous aggregates
// are left in place and an empty Result is returned.
func (e *Engine) Analyze(ctx context.Context) (*Result, error) {
	items, err := e.store.ListItems(ctx, store.ItemOpts{
		Since: time.Now().Add(-e.lookback),
	})
	if err != nil {
		return nil, fmt.Errorf("list recent items: %w", err)
	}
	if len(items) == 0 {
		e.logger.Info("no items in analysis window, keeping previous aggregates")
		return &Result{}, nil
	}

	scored, stats, err := e.pipe.Run(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("score items: %w", err)
	}

	if err := e.store.SaveScored(ctx, scored); err != nil {
		return nil, fmt.Errorf("save scored mentions: %w", err)
	}

	rows := e.agg.Aggregate(scored)
	if err := e.store.ReplaceAggregates(ctx, rows); err != nil {
		return nil, fmt.Errorf("replace aggregates: %w", err)
	}

	e.logger.Info("analysis complete",
		zap.Int("items", len(items)),
		zap.Int("scored", len(scored)),
		zap.Int("dropped", stats.Dropped()),
		zap.Int("tools", len(rows)),
	)
	return &Result{Aggregates: rows, Scored: scored, Stats: stats}, nil
}
