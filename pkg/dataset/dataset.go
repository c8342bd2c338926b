// Package dataset reads and writes the flat-file interchange tables:
// raw items, scored mentions, and per-tool aggregates. All three are
// CSV with a header row; readers locate columns by name, so column
// order and extra columns do not matter.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

var (
	itemColumns    = []string{"id", "text", "created_at", "source", "engagement"}
	mentionColumns = []string{"id", "text", "created_at", "source", "engagement", "tool", "category", "score", "label", "confidence"}

	// aggregateColumns is the fixed layout consumed by external
	// presenters; unlike the other tables it carries no extras.
	aggregateColumns = []string{"tool", "category", "n", "overall", "perception", "privacy_score", "trend"}
)

// timeLayouts accepted when reading created_at, tried in order.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// WriteItems writes raw items as CSV.
func WriteItems(w io.Writer, items []source.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(itemColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, it := range items {
		rec := []string{
			it.ID,
			it.Text,
			it.CreatedAt.UTC().Format(time.RFC3339),
			string(it.Source),
			formatFloat(it.Engagement),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing item %s: %w", it.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadItems reads raw items from CSV. Rows missing an id, a parseable
// timestamp, or a known source are dropped; the second return value
// counts them. Empty text is kept so the pipeline can account for it.
func ReadItems(r io.Reader) ([]source.Item, int, error) {
	cr := csv.NewReader(r)
	cols, err := readHeader(cr)
	if err != nil {
		return nil, 0, err
	}
	if err := cols.require("id", "text", "created_at", "source"); err != nil {
		return nil, 0, err
	}

	var (
		items   []source.Item
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading record: %w", err)
		}

		it := source.Item{
			ID:         strings.TrimSpace(cols.get(rec, "id")),
			Text:       cols.get(rec, "text"),
			Source:     source.Type(strings.ToLower(strings.TrimSpace(cols.get(rec, "source")))),
			Engagement: parseFloatOr(cols.get(rec, "engagement"), 0),
		}
		it.CreatedAt, err = parseTime(cols.get(rec, "created_at"))
		if it.ID == "" || !it.Source.Valid() || err != nil {
			skipped++
			continue
		}
		items = append(items, it)
	}
	return items, skipped, nil
}

// WriteMentions writes scored mentions as CSV. The text column holds
// the original item text; readers re-normalize it, which is safe
// because normalization is a fixpoint.
func WriteMentions(w io.Writer, mentions []pipeline.Scored) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(mentionColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, m := range mentions {
		rec := []string{
			m.ID,
			m.Item.Text,
			m.CreatedAt.UTC().Format(time.RFC3339),
			string(m.Source),
			formatFloat(m.Engagement),
			m.Tool,
			string(m.Category),
			formatFloat(m.Score),
			string(m.Label),
			formatFloat(m.Confidence),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing mention %s: %w", m.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMentions reads scored mentions from CSV. The label column is
// ignored and re-derived from the score so the deadband stays
// authoritative even for files produced elsewhere. Rows with a
// missing id, unknown source, unparseable timestamp, or unparseable
// score are dropped and counted.
func ReadMentions(r io.Reader) ([]pipeline.Scored, int, error) {
	cr := csv.NewReader(r)
	cols, err := readHeader(cr)
	if err != nil {
		return nil, 0, err
	}
	if err := cols.require("id", "text", "created_at", "source", "tool", "category", "score", "label", "confidence"); err != nil {
		return nil, 0, err
	}

	var (
		mentions []pipeline.Scored
		skipped  int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading record: %w", err)
		}

		id := strings.TrimSpace(cols.get(rec, "id"))
		src := source.Type(strings.ToLower(strings.TrimSpace(cols.get(rec, "source"))))
		created, terr := parseTime(cols.get(rec, "created_at"))
		score, serr := strconv.ParseFloat(strings.TrimSpace(cols.get(rec, "score")), 64)
		if id == "" || !src.Valid() || terr != nil || serr != nil {
			skipped++
			continue
		}

		text := cols.get(rec, "text")
		cat := taxonomy.Category(strings.TrimSpace(cols.get(rec, "category")))
		if !cat.Valid() {
			cat = ""
		}
		mentions = append(mentions, pipeline.Scored{
			Tagged: pipeline.Tagged{
				Item: source.Item{
					ID:         id,
					Source:     src,
					Text:       text,
					CreatedAt:  created,
					Engagement: parseFloatOr(cols.get(rec, "engagement"), 0),
				},
				Normalized: pipeline.Normalize(text),
				Tool:       strings.TrimSpace(cols.get(rec, "tool")),
				Category:   cat,
			},
			Result: sentiment.Clamped(sentiment.Result{
				Score:      score,
				Confidence: parseFloatOr(cols.get(rec, "confidence"), 0),
			}),
		})
	}
	return mentions, skipped, nil
}

// WriteAggregates writes the per-tool aggregate table.
func WriteAggregates(w io.Writer, rows []rank.Aggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(aggregateColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, a := range rows {
		rec := []string{
			a.Tool,
			string(a.Category),
			strconv.Itoa(a.N),
			formatFloat(a.Overall),
			formatFloat(a.Perception),
			formatFloat(a.PrivacyScore),
			string(a.Trend),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing aggregate for %s: %w", a.Tool, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type columns map[string]int

func readHeader(cr *csv.Reader) (columns, error) {
	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(columns, len(rec))
	for i, name := range rec {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols, nil
}

func (c columns) require(names ...string) error {
	for _, name := range names {
		if _, ok := c[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}
	return nil
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
