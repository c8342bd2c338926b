package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// ItemOpts controls raw item listing. A Limit <= 0 means no limit;
// analysis runs need the full lookback window.
type ItemOpts struct {
	Source source.Type
	Since  time.Time
	Limit  int
}

// MentionOpts controls scored mention listing.
type MentionOpts struct {
	Source     source.Type
	Tool       string
	Label      sentiment.Label
	Since      time.Time
	Limit      int
	ScoredOnly bool
}

// AggregatePoint is one historical aggregate observation for a tool.
type AggregatePoint struct {
	Tool         string     `db:"tool" json:"tool"`
	N            int        `db:"n" json:"n"`
	Overall      float64    `db:"overall" json:"overall"`
	Perception   float64    `db:"perception" json:"perception"`
	PrivacyScore float64    `db:"privacy_score" json:"privacy_score"`
	Trend        rank.Trend `db:"trend" json:"trend"`
	ComputedAt   time.Time  `db:"computed_at" json:"computed_at"`
}

// Stats summarizes stored state.
type Stats struct {
	TotalMentions  int                 `json:"total_mentions"`
	ScoredMentions int                 `json:"scored_mentions"`
	BySource       map[source.Type]int `json:"by_source"`
	Tools          int                 `json:"tools"`
	LastCollected  time.Time           `json:"last_collected,omitempty"`
	LastComputed   time.Time           `json:"last_computed,omitempty"`
}

// Store is the persistence interface.
type Store interface {
	SaveItems(ctx context.Context, items []source.Item) error
	SaveScored(ctx context.Context, mentions []pipeline.Scored) error
	ListItems(ctx context.Context, opts ItemOpts) ([]source.Item, error)
	ListMentions(ctx context.Context, opts MentionOpts) ([]pipeline.Scored, error)

	ReplaceAggregates(ctx context.Context, rows []rank.Aggregate) error
	ListAggregates(ctx context.Context) ([]rank.Aggregate, error)
	GetAggregate(ctx context.Context, tool string) (*rank.Aggregate, error)
	History(ctx context.Context, tool string, limit int) ([]AggregatePoint, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations. The literal path
// ":memory:" opens an in-memory database pinned to a single
// connection; a second pooled connection would see a fresh database.
func New(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mentionRow is the flat row shape for the mentions table.
type mentionRow struct {
	Source      string    `db:"source"`
	ID          string    `db:"id"`
	Text        string    `db:"text"`
	Normalized  string    `db:"normalized"`
	CreatedAt   time.Time `db:"created_at"`
	Engagement  float64   `db:"engagement"`
	Author      string    `db:"author"`
	URL         string    `db:"url"`
	CollectedAt time.Time `db:"collected_at"`
	Tool        string    `db:"tool"`
	Category    string    `db:"category"`
	Score       float64   `db:"score"`
	Label       string    `db:"label"`
	Confidence  float64   `db:"confidence"`
	Scored      bool      `db:"scored"`
}

func (r mentionRow) item() source.Item {
	return source.Item{
		ID:          r.ID,
		Source:      source.Type(r.Source),
		Text:        r.Text,
		CreatedAt:   r.CreatedAt,
		Engagement:  r.Engagement,
		Author:      r.Author,
		URL:         r.URL,
		CollectedAt: r.CollectedAt,
	}
}

func (r mentionRow) scored() pipeline.Scored {
	return pipeline.Scored{
		Tagged: pipeline.Tagged{
			Item:       r.item(),
			Normalized: r.Normalized,
			Tool:       r.Tool,
			Category:   taxonomy.Category(r.Category),
		},
		Result: sentiment.Result{
			Score:      r.Score,
			Label:      sentiment.Label(r.Label),
			Confidence: r.Confidence,
		},
	}
}

// SaveItems upserts raw items. Scoring columns on existing rows are
// left alone so a collect run never wipes out an earlier analysis.
func (s *SQLiteStore) SaveItems(ctx context.Context, items []source.Item) error {
	for i := range items {
		it := &items[i]
		collected := it.CollectedAt
		if collected.IsZero() {
			collected = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO mentions (source, id, text, created_at, engagement, author, url, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source, id) DO UPDATE SET
				text = excluded.text,
				engagement = excluded.engagement,
				collected_at = excluded.collected_at
		`, it.Source, it.ID, it.Text, it.CreatedAt.UTC(), it.Engagement,
			it.Author, it.URL, collected)
		if err != nil {
			return fmt.Errorf("save item %s: %w", it.Key(), err)
		}
	}
	return nil
}

// SaveScored upserts fully scored mentions.
func (s *SQLiteStore) SaveScored(ctx context.Context, mentions []pipeline.Scored) error {
	for i := range mentions {
		m := &mentions[i]
		collected := m.CollectedAt
		if collected.IsZero() {
			collected = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO mentions (source, id, text, normalized, created_at, engagement, author, url, collected_at,
				tool, category, score, label, confidence, scored)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(source, id) DO UPDATE SET
				text = excluded.text,
				normalized = excluded.normalized,
				engagement = excluded.engagement,
				collected_at = excluded.collected_at,
				tool = excluded.tool,
				category = excluded.category,
				score = excluded.score,
				label = excluded.label,
				confidence = excluded.confidence,
				scored = 1
		`, m.Source, m.ID, m.Item.Text, m.Normalized, m.CreatedAt.UTC(), m.Engagement,
			m.Author, m.URL, collected,
			m.Tool, m.Category, m.Score, m.Label, m.Confidence)
		if err != nil {
			return fmt.Errorf("save mention %s: %w", m.Key(), err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, opts ItemOpts) ([]source.Item, error) {
	query := "SELECT * FROM mentions WHERE 1=1"
	var args []any

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []mentionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]source.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

func (s *SQLiteStore) ListMentions(ctx context.Context, opts MentionOpts) ([]pipeline.Scored, error) {
	query := "SELECT * FROM mentions WHERE 1=1"
	var args []any

	if opts.ScoredOnly {
		query += " AND scored = 1"
	}
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.Tool != "" {
		query += " AND tool = ?"
		args = append(args, opts.Tool)
	}
	if opts.Label != "" {
		query += " AND label = ?"
		args = append(args, opts.Label)
	}
	if !opts.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []mentionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}

	mentions := make([]pipeline.Scored, len(rows))
	for i, r := range rows {
		mentions[i] = r.scored()
	}
	return mentions, nil
}

// ReplaceAggregates swaps the aggregates table for the given rows and
// appends each row to the history, all in one transaction.
func (s *SQLiteStore) ReplaceAggregates(ctx context.Context, rows []rank.Aggregate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace aggregates: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM aggregates"); err != nil {
		return fmt.Errorf("clear aggregates: %w", err)
	}

	computedAt := time.Now().UTC()
	for _, a := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO aggregates (tool, category, n, overall, pos, neg, perception, privacy_flag_rate, privacy_score, trend, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.Tool, a.Category, a.N, a.Overall, a.Pos, a.Neg,
			a.Perception, a.PrivacyFlagRate, a.PrivacyScore, a.Trend, computedAt)
		if err != nil {
			return fmt.Errorf("insert aggregate %s: %w", a.Tool, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO aggregate_history (tool, n, overall, perception, privacy_score, trend, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.Tool, a.N, a.Overall, a.Perception, a.PrivacyScore, a.Trend, computedAt)
		if err != nil {
			return fmt.Errorf("insert history %s: %w", a.Tool, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace aggregates: %w", err)
	}
	return nil
}

// aggregateRow is the flat row shape for the aggregates table.
type aggregateRow struct {
	Tool            string    `db:"tool"`
	Category        string    `db:"category"`
	N               int       `db:"n"`
	Overall         float64   `db:"overall"`
	Pos             int       `db:"pos"`
	Neg             int       `db:"neg"`
	Perception      float64   `db:"perception"`
	PrivacyFlagRate float64   `db:"privacy_flag_rate"`
	PrivacyScore    float64   `db:"privacy_score"`
	Trend           string    `db:"trend"`
	ComputedAt      time.Time `db:"computed_at"`
}

func (r aggregateRow) aggregate() rank.Aggregate {
	return rank.Aggregate{
		Tool:            r.Tool,
		Category:        taxonomy.Category(r.Category),
		N:               r.N,
		Overall:         r.Overall,
		Pos:             r.Pos,
		Neg:             r.Neg,
		Perception:      r.Perception,
		PrivacyFlagRate: r.PrivacyFlagRate,
		PrivacyScore:    r.PrivacyScore,
		Trend:           rank.Trend(r.Trend),
	}
}

func (s *SQLiteStore) ListAggregates(ctx context.Context) ([]rank.Aggregate, error) {
	var rows []aggregateRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM aggregates ORDER BY overall DESC, tool ASC")
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}

	out := make([]rank.Aggregate, len(rows))
	for i, r := range rows {
		out[i] = r.aggregate()
	}
	return out, nil
}

func (s *SQLiteStore) GetAggregate(ctx context.Context, tool string) (*rank.Aggregate, error) {
	var row aggregateRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM aggregates WHERE tool = ?", tool)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", tool, err)
	}
	a := row.aggregate()
	return &a, nil
}

func (s *SQLiteStore) History(ctx context.Context, tool string, limit int) ([]AggregatePoint, error) {
	if limit <= 0 {
		limit = 50
	}
	var points []AggregatePoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT tool, n, overall, perception, privacy_score, trend, computed_at
		FROM aggregate_history WHERE tool = ?
		ORDER BY computed_at DESC LIMIT ?
	`, tool, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", tool, err)
	}
	return points, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{BySource: make(map[source.Type]int)}

	if err := s.db.GetContext(ctx, &st.TotalMentions,
		"SELECT COUNT(*) FROM mentions"); err != nil {
		return nil, fmt.Errorf("count mentions: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.ScoredMentions,
		"SELECT COUNT(*) FROM mentions WHERE scored = 1"); err != nil {
		return nil, fmt.Errorf("count scored: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.Tools,
		"SELECT COUNT(*) FROM aggregates"); err != nil {
		return nil, fmt.Errorf("count aggregates: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT source, COUNT(*) as cnt FROM mentions GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count mentions by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		st.BySource[source.Type(src)] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &st.LastCollected,
		"SELECT collected_at FROM mentions ORDER BY collected_at DESC LIMIT 1")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("last collected: %w", err)
	}
	err = s.db.GetContext(ctx, &st.LastComputed,
		"SELECT computed_at FROM aggregate_history ORDER BY computed_at DESC LIMIT 1")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("last computed: %w", err)
	}

	return st, nil
}
