package sentiment

import "context"

// Label classifies a score.
type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	switch l {
	case LabelNegative, LabelNeutral, LabelPositive:
		return true
	}
	return false
}

// LabelDeadband is the zero-centered band of scores read as neutral.
// Scores strictly above it are positive, strictly below its negation are
// negative; the band boundaries themselves stay neutral.
const LabelDeadband = 0.1

// LabelFor maps a score onto its label.
func LabelFor(score float64) Label {
	switch {
	case score > LabelDeadband:
		return LabelPositive
	case score < -LabelDeadband:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Result is the sentiment read for one text. Score is in [-1, 1],
// Confidence in [0, 1], and Label is always LabelFor(Score).
type Result struct {
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Neutral is the degraded result used when a text cannot be scored.
func Neutral() Result {
	return Result{Score: 0, Label: LabelNeutral, Confidence: 0}
}

// Scorer assigns sentiment to texts.
//
// ScoreBatch returns exactly one result per input, in input order. A text
// that cannot be scored yields a neutral result in its slot; an error is
// returned only when the batch as a whole fails.
type Scorer interface {
	Name() string
	Score(ctx context.Context, text string) (Result, error)
	ScoreBatch(ctx context.Context, texts []string) ([]Result, error)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamped returns a copy of r with score and confidence forced into
// bounds and the label re-derived from the score.
func Clamped(r Result) Result {
	r.Score = clamp(r.Score, -1, 1)
	r.Confidence = clamp(r.Confidence, 0, 1)
	r.Label = LabelFor(r.Score)
	return r
}
