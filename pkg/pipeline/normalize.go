package pipeline

import (
	"regexp"
	"strings"
)

// MinTextRunes is the noise cutoff: items whose normalized text is this
// many runes or fewer are dropped before tagging.
const MinTextRunes = 10

// Normalization passes, applied in order. Character cleanup runs before
// whitespace collapsing so removals cannot leave double spaces behind;
// Normalize is a fixpoint on its own output.
var (
	reURL     = regexp.MustCompile(`http\S+|www\.\S+`)
	reMention = regexp.MustCompile(`@\w+`)
	reHashtag = regexp.MustCompile(`#(\w+)`)
	reNoise   = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?-]`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// Normalize strips URLs, @mentions and hashtag markers, removes
// characters outside letters, digits, whitespace and basic punctuation,
// then collapses runs of whitespace into single spaces and trims. It
// never fails; the result may be empty.
func Normalize(text string) string {
	text = reURL.ReplaceAllString(text, "")
	text = reMention.ReplaceAllString(text, "")
	text = reHashtag.ReplaceAllString(text, "$1")
	text = reNoise.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
