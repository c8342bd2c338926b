package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/soup8732/aisentinel/internal/config"
	"github.com/soup8732/aisentinel/internal/logger"
	"github.com/soup8732/aisentinel/internal/scheduler"
	"github.com/soup8732/aisentinel/internal/store"
	"github.com/soup8732/aisentinel/pkg/alert"
	"github.com/soup8732/aisentinel/pkg/analysis"
	"github.com/soup8732/aisentinel/pkg/dataset"
	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/server"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildSources(cfg *config.Config, tax *taxonomy.Taxonomy) []source.Source {
	keywords := cfg.Sources.Keywords
	if len(keywords) == 0 {
		keywords = tax.Tools()
	}

	var sources []source.Source

	if cfg.Sources.HackerNews.Enabled {
		sources = append(sources, source.NewHackerNews(keywords, cfg.Sources.HackerNews.Limit))
	}
	if cfg.Sources.Reddit.Enabled {
		sources = append(sources, source.NewReddit(
			cfg.Sources.Reddit.ClientID,
			cfg.Sources.Reddit.ClientSecret,
			cfg.Sources.Reddit.UserAgent,
			cfg.Sources.Reddit.Subreddits,
			keywords,
			cfg.Sources.Reddit.Limit,
		))
	}
	if cfg.Sources.Twitter.Enabled {
		sources = append(sources, source.NewTwitter(
			cfg.Sources.Twitter.BearerToken,
			keywords,
			cfg.Sources.Twitter.Limit,
			cfg.Sources.Twitter.NitterURL,
			cfg.Sources.Twitter.Accounts,
		))
	}
	if cfg.Sources.Synthetic.Enabled {
		sources = append(sources, source.NewSynthetic(tax, cfg.Sources.Synthetic.Count, cfg.Sources.Synthetic.Seed))
	}

	return sources
}

func buildScorer(cfg *config.Config) sentiment.Scorer {
	switch cfg.Sentiment.Engine {
	case "model":
		return sentiment.NewModelScorer(cfg.Sentiment.Model.BaseURL, cfg.Sentiment.Model.ID, cfg.Sentiment.Model.Token)
	case "openai":
		return sentiment.NewOpenAIScorer(cfg.Sentiment.OpenAI.APIKey, cfg.Sentiment.OpenAI.Model)
	default:
		return sentiment.NewLexicon()
	}
}

func buildPipeline(cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, *taxonomy.Taxonomy, error) {
	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		return nil, nil, fmt.Errorf("build taxonomy: %w", err)
	}

	scorer := buildScorer(cfg)
	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if scorer.Name() != "lexicon" {
		// Remote scorers degrade to the lexicon rather than dropping a batch.
		opts = append(opts, pipeline.WithFallback(sentiment.NewLexicon()))
	}

	return pipeline.New(pipeline.NewTagger(tax), scorer, opts...), tax, nil
}

func buildEngine(cfg *config.Config, db store.Store, log *zap.Logger) (*analysis.Engine, *taxonomy.Taxonomy, error) {
	pipe, tax, err := buildPipeline(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	agg := rank.NewAggregator(cfg.Analysis.PrivacyKeywords)
	return analysis.NewEngine(db, pipe, agg, cfg.Analysis.ParseLookback(), log), tax, nil
}

func buildAlertManager(cfg *config.Config, log *zap.Logger) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}
	if cfg.Alerts.Telegram.Enabled && cfg.Alerts.Telegram.BotToken != "" {
		tg, err := alert.NewTelegram(cfg.Alerts.Telegram.BotToken, cfg.Alerts.Telegram.ChatID)
		if err != nil {
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	return alert.NewManager(notifiers)
}

func runCollect(filterSources []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		return fmt.Errorf("build taxonomy: %w", err)
	}
	allSources := buildSources(cfg, tax)

	// Filter to requested sources only.
	var sources []source.Source
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		for _, s := range allSources {
			name := string(s.Name())
			if wanted[name] || wanted[shortName(s.Name())] {
				sources = append(sources, s)
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	} else {
		sources = allSources
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources enabled; enable at least one in the config")
	}

	ctx := context.Background()
	total := 0

	for _, src := range sources {
		fmt.Fprintf(os.Stderr, "collecting from %s...\n", src.Name())
		items, err := src.Collect(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			if len(items) == 0 {
				continue
			}
		}

		if err := db.SaveItems(ctx, items); err != nil {
			fmt.Fprintf(os.Stderr, "  store error: %v\n", err)
			continue
		}

		fmt.Fprintf(os.Stderr, "  collected %d items\n", len(items))
		total += len(items)
	}

	fmt.Fprintf(os.Stderr, "\ntotal: %d items from %d sources\n", total, len(sources))
	return nil
}

func runAnalyze() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, _, err := buildEngine(cfg, db, zap.NewNop())
	if err != nil {
		return err
	}

	res, err := engine.Analyze(context.Background())
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	fmt.Fprintf(os.Stderr, "scored %d of %d items (%d dropped, %d untagged), %d tools ranked\n",
		res.Stats.Out, res.Stats.In, res.Stats.Dropped(), res.Stats.Untagged, len(res.Aggregates))
	return nil
}

func runRankings(jsonOutput bool, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	rows, err := db.ListAggregates(context.Background())
	if err != nil {
		return fmt.Errorf("list aggregates: %w", err)
	}

	rank.SortByRating(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("no data (collect and analyze first: aisentinel collect && aisentinel analyze)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tCATEGORY\tMENTIONS\tOVERALL\tPERCEPTION\tPRIVACY\tTREND")
	for _, a := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/10 (%s)\t%d/10\t%d/10\t%s\n",
			a.Tool,
			a.Category.DisplayName(),
			a.N,
			rank.OutOf10(a.Overall), rank.Mood(a.Overall),
			rank.OutOf10(a.Perception),
			rank.PrivacyOutOf10(a.PrivacyScore),
			a.Trend,
		)
	}
	return w.Flush()
}

func runExport(table, out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	switch table {
	case "items":
		items, err := db.ListItems(ctx, store.ItemOpts{})
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		return dataset.WriteItems(w, items)
	case "mentions":
		mentions, err := db.ListMentions(ctx, store.MentionOpts{ScoredOnly: true})
		if err != nil {
			return fmt.Errorf("list mentions: %w", err)
		}
		return dataset.WriteMentions(w, mentions)
	case "rankings":
		rows, err := db.ListAggregates(ctx)
		if err != nil {
			return fmt.Errorf("list aggregates: %w", err)
		}
		rank.SortByRating(rows)
		return dataset.WriteAggregates(w, rows)
	default:
		return fmt.Errorf("unknown table %q (want items, mentions, or rankings)", table)
	}
}

func runImport(path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	items, dropped, err := dataset.ReadItems(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.SaveItems(context.Background(), items); err != nil {
		return fmt.Errorf("save items: %w", err)
	}

	fmt.Fprintf(os.Stderr, "imported %d items (%d malformed rows dropped)\n", len(items), dropped)
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync(log)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, tax, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	sources := buildSources(cfg, tax)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(db, engine, sources, port, log)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync(log)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, tax, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	sources := buildSources(cfg, tax)
	alerts := buildAlertManager(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, sources, engine, alerts, scheduler.Options{
		CollectInterval: cfg.Schedule.ParseCollectInterval(),
		AnalyzeInterval: cfg.Schedule.ParseAnalyzeInterval(),
		MinOverall:      cfg.Alerts.MinOverall,
		Cooldown:        cfg.Alerts.ParseCooldown(),
	}, log)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduler stopped", zap.Error(err))
		}
	}()

	srv := server.New(db, engine, sources, port, log)
	return srv.ListenAndServe(ctx)
}

func shortName(t source.Type) string {
	if t == source.TypeHackerNews {
		return "hn"
	}
	return string(t)
}
