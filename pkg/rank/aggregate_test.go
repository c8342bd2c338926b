package rank

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/soup8732/aisentinel/pkg/pipeline"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

func mention(id, tool string, cat taxonomy.Category, score float64, at time.Time, text string) pipeline.Scored {
	return pipeline.Scored{
		Tagged: pipeline.Tagged{
			Item: source.Item{
				ID:        id,
				Source:    source.TypeSynthetic,
				Text:      text,
				CreatedAt: at,
			},
			Normalized: text,
			Tool:       tool,
			Category:   cat,
		},
		Result: sentiment.Result{
			Score:      score,
			Label:      sentiment.LabelFor(score),
			Confidence: 0.9,
		},
	}
}

var baseTime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return baseTime.Add(time.Duration(hours) * time.Hour) }

func TestAggregateTwoMentions(t *testing.T) {
	agg := NewAggregator(nil)

	rows := agg.Aggregate([]pipeline.Scored{
		mention("1", "ChatGPT", taxonomy.CategoryTextChat, 0.8, at(0), "ChatGPT is great for drafting emails"),
		mention("2", "ChatGPT", taxonomy.CategoryTextChat, -0.6, at(1), "ChatGPT gave me wrong answers all day"),
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}

	r := rows[0]
	if r.Tool != "ChatGPT" || r.Category != taxonomy.CategoryTextChat {
		t.Errorf("row identity = %q/%q", r.Tool, r.Category)
	}
	if r.N != 2 {
		t.Errorf("N = %d, want 2", r.N)
	}
	if math.Abs(r.Overall-0.1) > 1e-9 {
		t.Errorf("Overall = %v, want 0.1", r.Overall)
	}
	if r.Pos != 1 || r.Neg != 1 {
		t.Errorf("pos/neg = %d/%d, want 1/1", r.Pos, r.Neg)
	}
	if r.Perception != 0 {
		t.Errorf("Perception = %v, want 0", r.Perception)
	}
	if r.PrivacyScore != 1 {
		t.Errorf("PrivacyScore = %v, want 1 with no flagged mentions", r.PrivacyScore)
	}
	if r.Trend != TrendDeclining {
		t.Errorf("Trend = %q, want declining (0.8 then -0.6)", r.Trend)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	mentions := []pipeline.Scored{
		mention("1", "Claude", taxonomy.CategoryTextChat, 0.9, at(0), "Claude nailed the refactor"),
		mention("2", "Claude", taxonomy.CategoryTextChat, -0.4, at(5), "Claude hallucinated an API"),
		mention("3", "Claude", taxonomy.CategoryTextChat, 0.2, at(2), "Claude did fine on the summary"),
		mention("4", "Cursor", taxonomy.CategoryCodingDev, -0.8, at(1), "Cursor deleted my uncommitted work"),
		mention("5", "Cursor", taxonomy.CategoryCodingDev, 0.6, at(3), "Cursor tab completion is getting scary good"),
	}

	agg := NewAggregator(nil)
	want := agg.Aggregate(mentions)

	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]pipeline.Scored, len(mentions))
		copy(shuffled, mentions)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := agg.Aggregate(shuffled)
		if len(got) != len(want) {
			t.Fatalf("trial %d: %d rows vs %d", trial, len(got), len(want))
		}
		for i := range got {
			if got[i].Tool != want[i].Tool || got[i].N != want[i].N || got[i].Trend != want[i].Trend {
				t.Fatalf("trial %d row %d: %+v vs %+v", trial, i, got[i], want[i])
			}
			if math.Abs(got[i].Overall-want[i].Overall) > 1e-9 {
				t.Fatalf("trial %d row %d overall: %v vs %v", trial, i, got[i].Overall, want[i].Overall)
			}
			if math.Abs(got[i].Perception-want[i].Perception) > 1e-9 {
				t.Fatalf("trial %d row %d perception: %v vs %v", trial, i, got[i].Perception, want[i].Perception)
			}
		}
	}
}

func TestAggregateSingleMention(t *testing.T) {
	rows := NewAggregator(nil).Aggregate([]pipeline.Scored{
		mention("1", "Whisper", taxonomy.CategoryAudioSpeech, 0.7, at(0), "Whisper transcription is solid"),
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}

	r := rows[0]
	if r.N != 1 {
		t.Errorf("N = %d", r.N)
	}
	for name, v := range map[string]float64{
		"overall":    r.Overall,
		"perception": r.Perception,
		"privacy":    r.PrivacyScore,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want finite", name, v)
		}
	}
	if r.Overall != 0.7 || r.Perception != 1 {
		t.Errorf("overall/perception = %v/%v", r.Overall, r.Perception)
	}
	if r.Trend != TrendNoData {
		t.Errorf("Trend = %q, want no_data for a single mention", r.Trend)
	}
}

func TestAggregatePerceptionRange(t *testing.T) {
	mentions := []pipeline.Scored{
		mention("1", "Tabnine", taxonomy.CategoryCodingDev, 0.9, at(0), "Tabnine works well"),
		mention("2", "Tabnine", taxonomy.CategoryCodingDev, 0.8, at(1), "Tabnine saves time"),
		mention("3", "Tabnine", taxonomy.CategoryCodingDev, 0.5, at(2), "Tabnine is handy"),
	}
	r := NewAggregator(nil).Aggregate(mentions)[0]
	if r.Perception != 1 {
		t.Errorf("all-positive perception = %v, want 1", r.Perception)
	}

	for i := range mentions {
		mentions[i].Result.Score = -0.9
		mentions[i].Result.Label = sentiment.LabelNegative
	}
	r = NewAggregator(nil).Aggregate(mentions)[0]
	if r.Perception != -1 {
		t.Errorf("all-negative perception = %v, want -1", r.Perception)
	}
}

func TestAggregateCountsByLabelNotScore(t *testing.T) {
	// Scores inside the deadband carry neutral labels and count toward
	// neither pos nor neg.
	rows := NewAggregator(nil).Aggregate([]pipeline.Scored{
		mention("1", "Gemini", taxonomy.CategoryTextChat, 0.1, at(0), "Gemini answered the question"),
		mention("2", "Gemini", taxonomy.CategoryTextChat, -0.1, at(1), "Gemini was okay I guess"),
		mention("3", "Gemini", taxonomy.CategoryTextChat, 0.11, at(2), "Gemini surprised me today"),
	})
	r := rows[0]
	if r.Pos != 1 || r.Neg != 0 {
		t.Errorf("pos/neg = %d/%d, want 1/0", r.Pos, r.Neg)
	}
}

func TestAggregatePrivacy(t *testing.T) {
	rows := NewAggregator(nil).Aggregate([]pipeline.Scored{
		mention("1", "Claude", taxonomy.CategoryTextChat, -0.3, at(0), "worried about data privacy with Claude"),
		mention("2", "Claude", taxonomy.CategoryTextChat, 0.4, at(1), "Claude writes good tests"),
		mention("3", "Claude", taxonomy.CategoryTextChat, -0.5, at(2), "Claude had a security incident last week"),
		mention("4", "Claude", taxonomy.CategoryTextChat, 0.2, at(3), "Claude is fine for brainstorming"),
	})
	r := rows[0]
	if math.Abs(r.PrivacyFlagRate-0.5) > 1e-9 {
		t.Errorf("PrivacyFlagRate = %v, want 0.5", r.PrivacyFlagRate)
	}
	if math.Abs(r.PrivacyScore-0.5) > 1e-9 {
		t.Errorf("PrivacyScore = %v, want 0.5", r.PrivacyScore)
	}
}

func TestAggregateCustomPrivacyKeywords(t *testing.T) {
	agg := NewAggregator([]string{"gdpr"})
	rows := agg.Aggregate([]pipeline.Scored{
		mention("1", "Jasper", taxonomy.CategoryTextChat, 0.1, at(0), "is Jasper gdpr compliant at all"),
		mention("2", "Jasper", taxonomy.CategoryTextChat, 0.1, at(1), "worried about data privacy with Jasper"),
	})
	r := rows[0]
	if math.Abs(r.PrivacyFlagRate-0.5) > 1e-9 {
		t.Errorf("PrivacyFlagRate = %v, want 0.5 (only gdpr counts)", r.PrivacyFlagRate)
	}
}

func TestAggregateMajorityCategory(t *testing.T) {
	rows := NewAggregator(nil).Aggregate([]pipeline.Scored{
		mention("1", "Whisper", taxonomy.CategoryAudioSpeech, 0.1, at(0), "Whisper for meeting notes"),
		mention("2", "Whisper", taxonomy.CategoryAudioSpeech, 0.2, at(1), "Whisper api is cheap now"),
		mention("3", "Whisper", taxonomy.CategoryCodingDev, 0.3, at(2), "Whisper bindings for go"),
	})
	if rows[0].Category != taxonomy.CategoryAudioSpeech {
		t.Errorf("Category = %q, want majority audio_speech", rows[0].Category)
	}
}

func TestAggregateCategoryTieBreaksFirstSeen(t *testing.T) {
	// One vote each; the category on the earliest mention wins,
	// regardless of input order.
	a := mention("1", "Hume", taxonomy.CategoryAudioSpeech, 0.1, at(0), "Hume voice demo")
	b := mention("2", "Hume", taxonomy.CategoryTextChat, 0.2, at(1), "Hume chat interface")

	for _, in := range [][]pipeline.Scored{{a, b}, {b, a}} {
		rows := NewAggregator(nil).Aggregate(in)
		if rows[0].Category != taxonomy.CategoryAudioSpeech {
			t.Errorf("Category = %q, want first-seen audio_speech", rows[0].Category)
		}
	}
}

func TestAggregateSkipsUntagged(t *testing.T) {
	rows := NewAggregator(nil).Aggregate([]pipeline.Scored{
		mention("1", "", "", 0.9, at(0), "great tool but nobody knows which"),
		mention("2", "Bolt", taxonomy.CategoryCodingDev, 0.5, at(1), "Bolt scaffolded the whole app"),
	})
	if len(rows) != 1 || rows[0].Tool != "Bolt" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	rows := NewAggregator(nil).Aggregate(nil)
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want empty", rows)
	}
}

func TestAggregateTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64 // in time order
		want   Trend
	}{
		{"improving", []float64{0.5, 0.5, 0.65, 0.65}, TrendImproving},
		{"stable within delta", []float64{0.5, 0.5, 0.55, 0.55}, TrendStable},
		{"declining", []float64{0.4, 0.4, 0.1, 0.1}, TrendDeclining},
		{"single mention", []float64{0.9}, TrendNoData},
		{"two mentions improving", []float64{0.0, 0.2}, TrendImproving},
		{"boundary delta stays stable", []float64{0.2, 0.3}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mentions := make([]pipeline.Scored, len(tt.scores))
			for i, s := range tt.scores {
				mentions[i] = mention(string(rune('a'+i)), "DALL-E", taxonomy.CategoryImagesVideo, s, at(i), "DALL-E render batch number whatever")
			}
			rows := NewAggregator(nil).Aggregate(mentions)
			if rows[0].Trend != tt.want {
				t.Errorf("Trend = %q, want %q", rows[0].Trend, tt.want)
			}
		})
	}
}

func TestTrendForHalves(t *testing.T) {
	// Odd count: earlier half gets len/2 scores, later half the rest.
	if got := trendFor([]float64{0.0, 0.0, 0.9}); got != TrendImproving {
		t.Errorf("odd split = %q", got)
	}
	if got := trendFor(nil); got != TrendNoData {
		t.Errorf("empty = %q", got)
	}
}
