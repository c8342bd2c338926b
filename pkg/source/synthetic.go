package source

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Synthetic emits generated mentions so the pipeline and rankings can be
// exercised without any API credentials. Texts are sentiment-loaded
// templates; the scorer still rates them like any other mention.
type Synthetic struct {
	tax *taxonomy.Taxonomy
	n   int
	rng *rand.Rand
	now func() time.Time
}

// NewSynthetic creates a generator producing n items. A non-zero seed
// makes the output reproducible.
func NewSynthetic(tax *taxonomy.Taxonomy, n int, seed int64) *Synthetic {
	if n <= 0 {
		n = 500
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Synthetic{
		tax: tax,
		n:   n,
		rng: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Synthetic) Name() Type { return TypeSynthetic }

func (s *Synthetic) Collect(ctx context.Context) ([]Item, error) {
	entries := s.tax.Entries()
	now := s.now()
	items := make([]Item, 0, s.n)

	for i := 0; i < s.n; i++ {
		tool := entries[s.rng.Intn(len(entries))].Name
		bucket := s.pickBucket(tool)

		// A slice of the non-positive chatter is privacy-flavored.
		var templates []string
		switch {
		case bucket != "positive" && s.rng.Float64() < 0.10:
			templates = privacyTexts
		case bucket == "positive":
			templates = positiveTexts
		case bucket == "neutral":
			templates = neutralTexts
		default:
			templates = negativeTexts
		}
		text := strings.ReplaceAll(templates[s.rng.Intn(len(templates))], "{tool}", tool)

		created := now.
			Add(-time.Duration(s.rng.Intn(31)) * 24 * time.Hour).
			Add(-time.Duration(s.rng.Intn(24)) * time.Hour).
			Add(-time.Duration(s.rng.Intn(60)) * time.Minute)

		items = append(items, Item{
			ID:          uuid.NewString(),
			Source:      TypeSynthetic,
			Text:        text,
			CreatedAt:   created,
			CollectedAt: now,
		})
	}
	return items, nil
}

// pickBucket rolls a sentiment bucket. Popular tools skew positive
// (55/30/15), the rest are more balanced (40/35/25).
func (s *Synthetic) pickBucket(tool string) string {
	roll := s.rng.Float64()
	if popularTools[tool] {
		switch {
		case roll < 0.55:
			return "positive"
		case roll < 0.85:
			return "neutral"
		default:
			return "negative"
		}
	}
	switch {
	case roll < 0.40:
		return "positive"
	case roll < 0.75:
		return "neutral"
	default:
		return "negative"
	}
}

var popularTools = map[string]bool{
	"ChatGPT":        true,
	"Claude":         true,
	"GitHub Copilot": true,
	"Midjourney":     true,
}

var positiveTexts = []string{
	"Really impressed with the results from {tool}!",
	"{tool} has been a game changer for my workflow.",
	"Love using {tool} for my daily tasks. Highly recommend!",
	"The quality of {tool} output is consistently excellent.",
	"Been using {tool} for months now, absolutely worth it!",
	"{tool} saves me hours every week. Great investment.",
	"Just tried {tool} and wow, the accuracy is impressive.",
	"{tool} helped me finish my project in half the time.",
	"The latest update to {tool} made it even better.",
	"Customer support for {tool} was really helpful too.",
}

var neutralTexts = []string{
	"Trying out {tool}, seems okay so far.",
	"{tool} works fine for basic tasks.",
	"Mixed feelings about {tool}, has pros and cons.",
	"Using {tool} occasionally, it's decent.",
	"{tool} is fine but nothing spectacular.",
	"Still evaluating {tool} for our team.",
	"{tool} does what it says, nothing more.",
	"Switched from another tool to {tool}, similar experience.",
	"The free tier of {tool} is limited but usable.",
	"{tool} works but the UI could be better.",
}

var negativeTexts = []string{
	"Disappointed with {tool}, expected better quality.",
	"{tool} has too many limitations and bugs.",
	"Not worth the price. {tool} needs improvement.",
	"Having issues with {tool}, very frustrating.",
	"{tool} doesn't live up to the hype honestly.",
	"The output from {tool} is often inaccurate.",
	"{tool} keeps crashing, really unreliable.",
	"Cancelled my {tool} subscription. Not impressed.",
	"{tool} was slow and the results were mediocre.",
	"Would not recommend {tool} in its current state.",
}

var privacyTexts = []string{
	"Worried about data privacy with {tool}.",
	"Is {tool} safe to use with sensitive data?",
	"Concerned about security when using {tool}.",
	"{tool} had a data breach recently, be careful.",
	"Not sure if {tool} is safe for confidential work.",
	"The privacy policy of {tool} is concerning.",
	"Don't trust {tool} with private information.",
	"Security issue reported with {tool} last week.",
}
