package taxonomy

import (
	"fmt"
	"strings"
)

// Category buckets tracked tools by what they produce.
type Category string

const (
	CategoryTextChat    Category = "text_chat"
	CategoryCodingDev   Category = "coding_dev"
	CategoryImagesVideo Category = "images_video"
	CategoryAudioSpeech Category = "audio_speech"
	CategoryOther       Category = "other"
)

// AllCategories returns every known category.
func AllCategories() []Category {
	return []Category{
		CategoryTextChat,
		CategoryCodingDev,
		CategoryImagesVideo,
		CategoryAudioSpeech,
		CategoryOther,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTextChat, CategoryCodingDev, CategoryImagesVideo, CategoryAudioSpeech, CategoryOther:
		return true
	}
	return false
}

// DisplayName returns the human-facing label for a category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryTextChat:
		return "Text & Chat"
	case CategoryCodingDev:
		return "Coding & Dev"
	case CategoryImagesVideo:
		return "Images & Video"
	case CategoryAudioSpeech:
		return "Audio & Speech"
	default:
		return "Other"
	}
}

// Group is one ordered run of tool names sharing a category.
type Group struct {
	Category Category `yaml:"category" json:"category"`
	Tools    []string `yaml:"tools" json:"tools"`
}

// Entry is a single tool in declaration order.
type Entry struct {
	Name     string
	Category Category
}

// Taxonomy is the ordered catalog of tracked tool names. Order is
// load-bearing: the tagger reports the first name found in a text, so
// specific names must be listed before any generic name they contain.
type Taxonomy struct {
	groups  []Group
	entries []entry
}

type entry struct {
	name     string
	lower    string
	category Category
}

// New builds a taxonomy from ordered groups and rejects catalogs the
// tagger could not apply unambiguously: unknown categories, empty or
// duplicate names, and any earlier name that is a strict substring of a
// later one (the later name would be unreachable).
func New(groups []Group) (*Taxonomy, error) {
	var entries []entry
	for _, g := range groups {
		if !g.Category.Valid() {
			return nil, fmt.Errorf("taxonomy: unknown category %q", g.Category)
		}
		for _, name := range g.Tools {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("taxonomy: empty tool name in category %q", g.Category)
			}
			entries = append(entries, entry{name: name, lower: strings.ToLower(name), category: g.Category})
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("taxonomy: no tools defined")
	}
	for i, e := range entries {
		for _, later := range entries[i+1:] {
			if e.lower == later.lower {
				return nil, fmt.Errorf("taxonomy: duplicate tool name %q", later.name)
			}
			if strings.Contains(later.lower, e.lower) {
				return nil, fmt.Errorf("taxonomy: %q is unreachable, %q is listed before it and matches first", later.name, e.name)
			}
		}
	}
	return &Taxonomy{groups: groups, entries: entries}, nil
}

// Match returns the first tool whose name occurs in text, comparing
// case-insensitively. ok is false when no tool matches.
func (t *Taxonomy) Match(text string) (tool string, category Category, ok bool) {
	lowered := strings.ToLower(text)
	for _, e := range t.entries {
		if strings.Contains(lowered, e.lower) {
			return e.name, e.category, true
		}
	}
	return "", "", false
}

// CategoryOf returns the category a tool is registered under.
func (t *Taxonomy) CategoryOf(tool string) (Category, bool) {
	lowered := strings.ToLower(tool)
	for _, e := range t.entries {
		if e.lower == lowered {
			return e.category, true
		}
	}
	return "", false
}

// Tools returns every tool name in declaration order.
func (t *Taxonomy) Tools() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.name
	}
	return names
}

// Entries returns every (tool, category) pair in declaration order.
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{Name: e.name, Category: e.category}
	}
	return out
}

// Groups returns the catalog as configured.
func (t *Taxonomy) Groups() []Group { return t.groups }

// Len returns the number of tracked tools.
func (t *Taxonomy) Len() int { return len(t.entries) }

// Default returns the built-in catalog of tracked AI tools.
func Default() *Taxonomy {
	t, err := New(defaultGroups())
	if err != nil {
		// The built-in catalog is validated by tests; reaching this
		// means a bad edit to defaultGroups.
		panic(err)
	}
	return t
}

func defaultGroups() []Group {
	return []Group{
		{
			Category: CategoryTextChat,
			Tools: []string{
				"ChatGPT", "Claude", "Gemini", "DeepSeek", "Mistral",
				"Jasper", "Copy.ai", "Writesonic", "Lindy",
			},
		},
		{
			Category: CategoryCodingDev,
			Tools: []string{
				"GitHub Copilot", "Amazon Q Developer", "CodeWhisperer",
				"Tabnine", "Tabby", "Replit Ghostwriter", "Bolt",
				"Loveable", "JetBrains AI Assistant", "Cursor", "Codeium",
				"Polycoder", "AskCodi", "Sourcery", "Greta",
			},
		},
		{
			Category: CategoryImagesVideo,
			Tools: []string{
				"Stability AI", "RunwayML", "Midjourney", "DALL-E",
				"DreamStudio", "OpenCV", "Adobe Firefly", "Pika Labs",
				"Luma Dream Machine", "Vidu",
			},
		},
		{
			Category: CategoryAudioSpeech,
			Tools: []string{
				"Whisper", "ElevenLabs", "Murf AI", "PlayHT", "Speechify",
				"Synthesys", "Animaker", "Kits AI", "WellSaid Labs",
				"Hume", "DupDub",
			},
		},
	}
}
