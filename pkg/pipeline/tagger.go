package pipeline

import "github.com/soup8732/aisentinel/pkg/taxonomy"

// Tagger attributes normalized text to a tracked tool.
type Tagger struct {
	tax *taxonomy.Taxonomy
}

func NewTagger(tax *taxonomy.Taxonomy) *Tagger {
	return &Tagger{tax: tax}
}

// Tag returns the first catalog tool whose name occurs in text. ok is
// false for text that mentions no tracked tool.
func (t *Tagger) Tag(text string) (tool string, category taxonomy.Category, ok bool) {
	return t.tax.Match(text)
}

// Taxonomy returns the catalog the tagger matches against.
func (t *Tagger) Taxonomy() *taxonomy.Taxonomy { return t.tax }
