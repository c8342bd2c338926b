package sentiment

import (
	"context"
	"testing"
)

func TestLexiconScore(t *testing.T) {
	lex := NewLexicon()
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want Label
	}{
		{"clearly positive", "ChatGPT is amazing, it saves me hours every day", LabelPositive},
		{"clearly negative", "Copilot crashed again, total waste of money", LabelNegative},
		{"no opinion words", "ChatGPT released a new version today", LabelNeutral},
		{"negated positive", "Cursor is not worth the subscription", LabelNegative},
		{"negated negative", "the update is not bad at all", LabelPositive},
		{"contraction negation", "I don't like the new interface", LabelNegative},
		{"empty text", "", LabelNeutral},
		{"punctuation only", "?!?!", LabelNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := lex.Score(ctx, tt.text)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if r.Label != tt.want {
				t.Errorf("Score(%q) label = %q (score %.3f), want %q", tt.text, r.Label, r.Score, tt.want)
			}
			if r.Score < -1 || r.Score > 1 {
				t.Errorf("Score(%q) = %v, out of [-1, 1]", tt.text, r.Score)
			}
			if r.Confidence < 0 || r.Confidence > 1 {
				t.Errorf("Confidence(%q) = %v, out of [0, 1]", tt.text, r.Confidence)
			}
			if r.Label != LabelFor(r.Score) {
				t.Errorf("Score(%q) label %q disagrees with score %v", tt.text, r.Label, r.Score)
			}
		})
	}
}

func TestLexiconEmptyTextIsDegradedNeutral(t *testing.T) {
	r, err := NewLexicon().Score(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if r != Neutral() {
		t.Errorf("blank text = %+v, want %+v", r, Neutral())
	}
}

func TestLexiconScoreBatch(t *testing.T) {
	lex := NewLexicon()
	texts := []string{
		"Claude is excellent at refactoring",
		"Midjourney keeps crashing after the update",
		"the demo ran on stage",
	}
	results, err := lex.ScoreBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("got %d results for %d texts", len(results), len(texts))
	}

	want := []Label{LabelPositive, LabelNegative, LabelNeutral}
	for i, r := range results {
		if r.Label != want[i] {
			t.Errorf("results[%d] label = %q (score %.3f), want %q", i, r.Label, r.Score, want[i])
		}
	}
}

func TestLexiconBatchIsPositional(t *testing.T) {
	lex := NewLexicon()
	ctx := context.Background()
	texts := []string{"love it", "hate it", "love it", "meeting at noon"}

	results, err := lex.ScoreBatch(ctx, texts)
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if results[0] != results[2] {
		t.Errorf("identical texts scored differently: %+v vs %+v", results[0], results[2])
	}
	single, _ := lex.Score(ctx, texts[1])
	if results[1] != single {
		t.Errorf("batch slot %+v != single score %+v", results[1], single)
	}
}
