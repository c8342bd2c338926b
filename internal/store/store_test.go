package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(id string, src source.Type, at time.Time) source.Item {
	return source.Item{
		ID:          id,
		Source:      src,
		Text:        "text for " + id,
		CreatedAt:   at,
		Engagement:  7,
		CollectedAt: at.Add(time.Minute),
	}
}

func testScored(id string, src source.Type, tool string, score float64, at time.Time) pipeline.Scored {
	return pipeline.Scored{
		Tagged: pipeline.Tagged{
			Item:       testItem(id, src, at),
			Normalized: "text for " + id,
			Tool:       tool,
			Category:   taxonomy.CategoryTextChat,
		},
		Result: sentiment.Result{Score: score, Label: sentiment.LabelFor(score), Confidence: 0.75},
	}
}

var t0 = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

func TestSaveItemsAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := []source.Item{
		testItem("a", source.TypeReddit, t0),
		testItem("b", source.TypeReddit, t0.Add(time.Hour)),
		testItem("c", source.TypeHackerNews, t0.Add(2*time.Hour)),
	}
	if err := s.SaveItems(ctx, items); err != nil {
		t.Fatalf("SaveItems: %v", err)
	}

	all, err := s.ListItems(ctx, ItemOpts{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d items", len(all))
	}
	// Newest first.
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}
	if !all[2].CreatedAt.Equal(t0) {
		t.Errorf("created_at = %v, want %v", all[2].CreatedAt, t0)
	}

	reddit, err := s.ListItems(ctx, ItemOpts{Source: source.TypeReddit})
	if err != nil {
		t.Fatalf("ListItems reddit: %v", err)
	}
	if len(reddit) != 2 {
		t.Errorf("reddit items = %d", len(reddit))
	}

	recent, err := s.ListItems(ctx, ItemOpts{Since: t0.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("ListItems since: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Errorf("recent = %+v", recent)
	}

	one, err := s.ListItems(ctx, ItemOpts{Limit: 1})
	if err != nil {
		t.Fatalf("ListItems limit: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("limited = %d", len(one))
	}
}

func TestSaveItemsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it := testItem("a", source.TypeTwitter, t0)
	if err := s.SaveItems(ctx, []source.Item{it}); err != nil {
		t.Fatal(err)
	}
	it.Engagement = 99
	if err := s.SaveItems(ctx, []source.Item{it}); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListItems(ctx, ItemOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d items after re-save", len(all))
	}
	if all[0].Engagement != 99 {
		t.Errorf("engagement = %v, want refreshed 99", all[0].Engagement)
	}
}

func TestRecollectKeepsScoring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testScored("a", source.TypeReddit, "ChatGPT", 0.8, t0)
	if err := s.SaveScored(ctx, []pipeline.Scored{m}); err != nil {
		t.Fatal(err)
	}

	// A later collect run rewrites the raw columns only.
	raw := testItem("a", source.TypeReddit, t0)
	raw.Engagement = 123
	if err := s.SaveItems(ctx, []source.Item{raw}); err != nil {
		t.Fatal(err)
	}

	scored, err := s.ListMentions(ctx, MentionOpts{ScoredOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Fatalf("scored rows = %d", len(scored))
	}
	got := scored[0]
	if got.Tool != "ChatGPT" || got.Score != 0.8 || got.Label != sentiment.LabelPositive {
		t.Errorf("scoring lost on recollect: %+v", got)
	}
	if got.Engagement != 123 {
		t.Errorf("engagement = %v, want refreshed 123", got.Engagement)
	}
}

func TestSaveScoredRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := testScored("x", source.TypeHackerNews, "Claude", -0.6, t0)
	in.Author = "pg"
	in.URL = "https://news.ycombinator.com/item?id=1"
	if err := s.SaveScored(ctx, []pipeline.Scored{in}); err != nil {
		t.Fatal(err)
	}

	out, err := s.ListMentions(ctx, MentionOpts{Tool: "Claude"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d mentions", len(out))
	}
	m := out[0]
	if m.ID != "x" || m.Source != source.TypeHackerNews || m.Author != "pg" || m.URL != in.URL {
		t.Errorf("item = %+v", m.Item)
	}
	if m.Normalized != in.Normalized || m.Category != taxonomy.CategoryTextChat {
		t.Errorf("tagged = %+v", m.Tagged)
	}
	if m.Score != -0.6 || m.Label != sentiment.LabelNegative || m.Confidence != 0.75 {
		t.Errorf("result = %+v", m.Result)
	}
	if !m.CreatedAt.Equal(t0) {
		t.Errorf("created_at = %v", m.CreatedAt)
	}
}

func TestListMentionsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveScored(ctx, []pipeline.Scored{
		testScored("1", source.TypeReddit, "ChatGPT", 0.8, t0),
		testScored("2", source.TypeReddit, "ChatGPT", -0.6, t0.Add(time.Hour)),
		testScored("3", source.TypeTwitter, "Claude", 0.0, t0.Add(2*time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}

	neg, err := s.ListMentions(ctx, MentionOpts{Label: sentiment.LabelNegative})
	if err != nil {
		t.Fatal(err)
	}
	if len(neg) != 1 || neg[0].ID != "2" {
		t.Errorf("negative = %+v", neg)
	}

	tw, err := s.ListMentions(ctx, MentionOpts{Source: source.TypeTwitter})
	if err != nil {
		t.Fatal(err)
	}
	if len(tw) != 1 || tw[0].Tool != "Claude" {
		t.Errorf("twitter = %+v", tw)
	}
}

func aggRow(tool string, overall float64, trend rank.Trend) rank.Aggregate {
	return rank.Aggregate{
		Tool:         tool,
		Category:     taxonomy.CategoryTextChat,
		N:            4,
		Overall:      overall,
		Pos:          2,
		Neg:          1,
		Perception:   0.25,
		PrivacyScore: 0.9,
		Trend:        trend,
	}
}

func TestReplaceAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []rank.Aggregate{
		aggRow("ChatGPT", 0.4, rank.TrendImproving),
		aggRow("Claude", 0.6, rank.TrendStable),
	}
	if err := s.ReplaceAggregates(ctx, first); err != nil {
		t.Fatalf("ReplaceAggregates: %v", err)
	}

	rows, err := s.ListAggregates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Tool != "Claude" {
		t.Fatalf("rows = %+v", rows)
	}

	got, err := s.GetAggregate(ctx, "ChatGPT")
	if err != nil {
		t.Fatalf("GetAggregate: %v", err)
	}
	if got.Overall != 0.4 || got.Trend != rank.TrendImproving || got.N != 4 {
		t.Errorf("aggregate = %+v", got)
	}

	if _, err := s.GetAggregate(ctx, "Clippy"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// The next replacement fully supersedes the previous table.
	if err := s.ReplaceAggregates(ctx, []rank.Aggregate{aggRow("ChatGPT", 0.1, rank.TrendDeclining)}); err != nil {
		t.Fatal(err)
	}
	rows, err = s.ListAggregates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Trend != rank.TrendDeclining {
		t.Errorf("rows after replace = %+v", rows)
	}

	// History keeps every computation.
	hist, err := s.History(ctx, "ChatGPT", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 {
		t.Fatalf("history points = %d", len(hist))
	}
	if hist[0].Overall != 0.1 || hist[1].Overall != 0.4 {
		t.Errorf("history = %+v", hist)
	}

	claudeHist, err := s.History(ctx, "Claude", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(claudeHist) != 1 {
		t.Errorf("claude history = %+v", claudeHist)
	}
}

func TestReplaceAggregatesEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceAggregates(ctx, []rank.Aggregate{aggRow("ChatGPT", 0.4, rank.TrendStable)}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceAggregates(ctx, nil); err != nil {
		t.Fatal(err)
	}
	rows, err := s.ListAggregates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want none", rows)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalMentions != 0 || st.ScoredMentions != 0 || st.Tools != 0 {
		t.Errorf("stats = %+v", st)
	}
	if !st.LastCollected.IsZero() || !st.LastComputed.IsZero() {
		t.Errorf("timestamps should be zero: %+v", st)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveItems(ctx, []source.Item{
		testItem("a", source.TypeReddit, t0),
		testItem("b", source.TypeHackerNews, t0),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveScored(ctx, []pipeline.Scored{
		testScored("c", source.TypeReddit, "ChatGPT", 0.5, t0),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceAggregates(ctx, []rank.Aggregate{aggRow("ChatGPT", 0.5, rank.TrendNoData)}); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalMentions != 3 || st.ScoredMentions != 1 || st.Tools != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.BySource[source.TypeReddit] != 2 || st.BySource[source.TypeHackerNews] != 1 {
		t.Errorf("by source = %+v", st.BySource)
	}
	if st.LastCollected.IsZero() || st.LastComputed.IsZero() {
		t.Errorf("timestamps missing: %+v", st)
	}
}
