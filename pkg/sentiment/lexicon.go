package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Lexicon scores text against an embedded valence word list. It needs no
// credentials and no network, so it doubles as the fallback when a remote
// scorer is unavailable.
type Lexicon struct{}

func NewLexicon() *Lexicon { return &Lexicon{} }

func (l *Lexicon) Name() string { return "lexicon" }

func (l *Lexicon) Score(ctx context.Context, text string) (Result, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Neutral(), nil
	}

	var raw float64
	matched := 0
	for i, tok := range tokens {
		w, ok := valence[tok]
		if !ok {
			continue
		}
		if negatedAt(tokens, i) {
			w = -w
		}
		raw += float64(w)
		matched++
	}
	if matched == 0 {
		return Neutral(), nil
	}

	// Squash the raw sum into (-1, 1); a single strong word should not
	// saturate the scale.
	score := raw / (1 + math.Abs(raw))
	return Result{
		Score:      score,
		Label:      LabelFor(score),
		Confidence: clamp(float64(matched)/float64(len(tokens)), 0, 1),
	}, nil
}

func (l *Lexicon) ScoreBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	for i, text := range texts {
		r, err := l.Score(ctx, text)
		if err != nil {
			r = Neutral()
		}
		results[i] = r
	}
	return results, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// negatedAt reports whether one of the two tokens before position i is a
// negation, flipping the valence of the word at i ("not great").
func negatedAt(tokens []string, i int) bool {
	for j := i - 2; j < i; j++ {
		if j < 0 {
			continue
		}
		if negations[tokens[j]] {
			return true
		}
	}
	return false
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true,
	"don't": true, "dont": true, "doesn't": true, "doesnt": true,
	"didn't": true, "didnt": true, "isn't": true, "isnt": true,
	"wasn't": true, "wasnt": true, "aren't": true, "arent": true,
	"won't": true, "wont": true, "can't": true, "cant": true,
	"couldn't": true, "couldnt": true, "wouldn't": true, "wouldnt": true,
	"shouldn't": true, "shouldnt": true, "hardly": true, "barely": true,
}

// valence maps opinion words to integer weights, AFINN style.
var valence = map[string]int{
	// positive
	"amazing": 4, "awesome": 4, "fantastic": 4, "wonderful": 4,
	"incredible": 4, "outstanding": 4, "excellent": 3, "great": 3,
	"love": 3, "loved": 3, "loves": 3, "impressive": 3, "impressed": 3,
	"best": 3, "brilliant": 3, "perfect": 3, "happy": 3, "wow": 3,
	"good": 2, "helpful": 2, "useful": 2, "recommend": 2, "recommended": 2,
	"solid": 2, "fast": 2, "reliable": 2, "worth": 2, "powerful": 2,
	"intuitive": 2, "smooth": 2, "accurate": 2, "improved": 2,
	"productive": 2, "saves": 2, "upgraded": 1, "nice": 2, "like": 2,
	"liked": 2, "better": 2, "win": 2, "easy": 1, "clean": 1,

	// negative
	"terrible": -4, "awful": -4, "horrible": -4, "worst": -4,
	"hate": -4, "hated": -4, "scam": -4, "garbage": -3, "useless": -3,
	"bad": -3, "poor": -3, "disappointing": -3, "disappointed": -3,
	"broken": -3, "buggy": -3, "crash": -3, "crashed": -3, "crashes": -3,
	"crashing": -3,
	"unreliable": -3, "waste": -3, "frustrating": -3, "frustrated": -3,
	"regret": -3, "unsafe": -3, "fails": -3, "failed": -3, "failure": -3,
	"breach": -3, "slow": -2, "bug": -2, "bugs": -2, "overhyped": -2,
	"mediocre": -2, "issues": -2, "issue": -2, "problem": -2,
	"problems": -2, "leak": -2, "leaked": -2, "lag": -2, "laggy": -2,
	"inaccurate": -2, "cancelled": -2, "canceled": -2, "wrong": -2,
	"worse": -2, "annoying": -2, "stuck": -2, "expensive": -1,
	"limited": -1, "meh": -1,
}
