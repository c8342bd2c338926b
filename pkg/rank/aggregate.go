package rank

import (
	"sort"
	"strings"

	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Aggregate is the per-tool reduction of scored mentions.
type Aggregate struct {
	Tool            string            `json:"tool" db:"tool"`
	Category        taxonomy.Category `json:"category" db:"category"`
	N               int               `json:"n" db:"n"`
	Overall         float64           `json:"overall" db:"overall"`
	Pos             int               `json:"pos" db:"pos"`
	Neg             int               `json:"neg" db:"neg"`
	Perception      float64           `json:"perception" db:"perception"`
	PrivacyFlagRate float64           `json:"privacy_flag_rate" db:"privacy_flag_rate"`
	PrivacyScore    float64           `json:"privacy_score" db:"privacy_score"`
	Trend           Trend             `json:"trend" db:"trend"`
}

// DefaultPrivacyKeywords flag mentions that raise privacy or security
// concerns.
var DefaultPrivacyKeywords = []string{
	"privacy", "security", "data", "breach", "leak", "unsafe",
}

// Aggregator reduces scored mentions into one Aggregate per tool.
// Untagged mentions are ignored.
type Aggregator struct {
	privacyKeywords []string
}

// NewAggregator builds an aggregator flagging privacy chatter by keyword.
// A nil slice selects DefaultPrivacyKeywords.
func NewAggregator(privacyKeywords []string) *Aggregator {
	if privacyKeywords == nil {
		privacyKeywords = DefaultPrivacyKeywords
	}
	lowered := make([]string, 0, len(privacyKeywords))
	for _, kw := range privacyKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Aggregator{privacyKeywords: lowered}
}

// Aggregate recomputes the full ranking from scratch. Rows come back in
// canonical order (tool name ascending); input order never affects the
// result because each tool's mentions are time-sorted before reduction.
func (a *Aggregator) Aggregate(items []pipeline.Scored) []Aggregate {
	byTool := make(map[string][]pipeline.Scored)
	for _, it := range items {
		if it.Tool == "" {
			continue
		}
		byTool[it.Tool] = append(byTool[it.Tool], it)
	}

	rows := make([]Aggregate, 0, len(byTool))
	for tool, mentions := range byTool {
		rows = append(rows, a.reduce(tool, mentions))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tool < rows[j].Tool })
	return rows
}

func (a *Aggregator) reduce(tool string, mentions []pipeline.Scored) Aggregate {
	sortMentions(mentions)

	n := len(mentions)
	denom := n
	if denom < 1 {
		denom = 1
	}

	var sum float64
	var pos, neg, flagged int
	scores := make([]float64, n)
	for i, m := range mentions {
		sum += m.Score
		scores[i] = m.Score
		switch m.Label {
		case sentiment.LabelPositive:
			pos++
		case sentiment.LabelNegative:
			neg++
		}
		if a.flagsPrivacy(m.Normalized) {
			flagged++
		}
	}

	rate := clip(float64(flagged)/float64(denom), 0, 1)
	return Aggregate{
		Tool:            tool,
		Category:        majorityCategory(mentions),
		N:               n,
		Overall:         sum / float64(denom),
		Pos:             pos,
		Neg:             neg,
		Perception:      float64(pos-neg) / float64(denom),
		PrivacyFlagRate: rate,
		PrivacyScore:    1 - rate,
		Trend:           trendFor(scores),
	}
}

// sortMentions orders a tool's mentions by creation time, breaking ties
// on (source, id) so reductions are deterministic for any input order.
func sortMentions(mentions []pipeline.Scored) {
	sort.Slice(mentions, func(i, j int) bool {
		a, b := mentions[i], mentions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Item.Key() < b.Item.Key()
	})
}

// majorityCategory picks the category most of the mentions carry. Ties go
// to the tied category seen earliest; mentions without a category do not
// vote, and a tool with no votes at all lands in other.
func majorityCategory(mentions []pipeline.Scored) taxonomy.Category {
	votes := make(map[taxonomy.Category]int)
	for _, m := range mentions {
		if m.Category != "" {
			votes[m.Category]++
		}
	}
	if len(votes) == 0 {
		return taxonomy.CategoryOther
	}

	max := 0
	for _, c := range votes {
		if c > max {
			max = c
		}
	}
	for _, m := range mentions {
		if m.Category != "" && votes[m.Category] == max {
			return m.Category
		}
	}
	return taxonomy.CategoryOther
}

func (a *Aggregator) flagsPrivacy(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range a.privacyKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
