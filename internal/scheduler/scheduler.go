package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soup8732/aisentinel/internal/store"
	"github.com/soup8732/aisentinel/pkg/alert"
	"github.com/soup8732/aisentinel/pkg/analysis"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/source"
)

// Options holds scheduler timing and alerting knobs.
type Options struct {
	CollectInterval time.Duration
	AnalyzeInterval time.Duration

	// MinOverall is the alert threshold: a tool alerts when its trend
	// is declining and its overall score is at or below this value.
	MinOverall float64

	// Cooldown is the minimum gap between alerts for the same tool.
	Cooldown time.Duration
}

// Scheduler runs periodic collection and analysis.
type Scheduler struct {
	store   store.Store
	sources []source.Source
	engine  *analysis.Engine
	alerts  *alert.Manager
	opts    Options
	logger  *zap.Logger

	// lastAlerted is only touched from Run's goroutine.
	lastAlerted map[string]time.Time
}

// New creates a scheduler.
func New(s store.Store, sources []source.Source, engine *analysis.Engine, alerts *alert.Manager, opts Options, logger *zap.Logger) *Scheduler {
	if opts.CollectInterval <= 0 {
		opts.CollectInterval = 15 * time.Minute
	}
	if opts.AnalyzeInterval <= 0 {
		opts.AnalyzeInterval = 30 * time.Minute
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:       s,
		sources:     sources,
		engine:      engine,
		alerts:      alerts,
		opts:        opts,
		logger:      logger,
		lastAlerted: make(map[string]time.Time),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.opts.CollectInterval)
	analyzeTicker := time.NewTicker(s.opts.AnalyzeInterval)
	defer collectTicker.Stop()
	defer analyzeTicker.Stop()

	// Run immediately on start.
	s.CollectAll(ctx)
	s.analyzeAndAlert(ctx)

	s.logger.Info("scheduler running",
		zap.Duration("collect_interval", s.opts.CollectInterval),
		zap.Duration("analyze_interval", s.opts.AnalyzeInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.CollectAll(ctx)
		case <-analyzeTicker.C:
			s.analyzeAndAlert(ctx)
		}
	}
}

// CollectAll runs every configured source once and stores the items.
// Sources that return partial results keep their items.
func (s *Scheduler) CollectAll(ctx context.Context) {
	total := 0
	for _, src := range s.sources {
		items, err := src.Collect(ctx)
		if err != nil {
			s.logger.Warn("collect failed",
				zap.String("source", string(src.Name())),
				zap.Int("items", len(items)),
				zap.Error(err),
			)
		}
		if len(items) == 0 {
			continue
		}
		if err := s.store.SaveItems(ctx, items); err != nil {
			s.logger.Error("save items",
				zap.String("source", string(src.Name())),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("collected",
			zap.String("source", string(src.Name())),
			zap.Int("items", len(items)),
		)
		total += len(items)
	}
	s.logger.Info("collection complete", zap.Int("total", total))
}

func (s *Scheduler) analyzeAndAlert(ctx context.Context) {
	res, err := s.engine.Analyze(ctx)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err))
		return
	}

	if !s.alerts.HasNotifiers() {
		return
	}

	now := time.Now()
	for _, a := range res.Aggregates {
		if a.Trend != rank.TrendDeclining || a.Overall > s.opts.MinOverall {
			continue
		}
		if last, ok := s.lastAlerted[a.Tool]; ok && now.Sub(last) < s.opts.Cooldown {
			continue
		}

		n := &alert.Notification{
			Tool:         a.Tool,
			Category:     a.Category,
			Overall:      a.Overall,
			Perception:   a.Perception,
			PrivacyScore: a.PrivacyScore,
			Trend:        a.Trend,
			Mentions:     a.N,
			Summary: fmt.Sprintf("Sentiment for %s is declining: overall %.2f across %d mentions",
				a.Tool, a.Overall, a.N),
		}
		if err := s.alerts.Broadcast(ctx, n); err != nil {
			s.logger.Warn("alert delivery",
				zap.String("tool", a.Tool),
				zap.Error(err),
			)
			continue
		}
		s.lastAlerted[a.Tool] = now
		s.logger.Info("alerted",
			zap.String("tool", a.Tool),
			zap.Float64("overall", a.Overall),
		)
	}
}
