package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	hnSearchURL    = "https://hn.algolia.com/api/v1/search_by_date"
	hnHitsPerPage  = 50
	hnMaxKeywords  = 10
	hnDefaultLimit = 100
)

// HackerNews collects stories and comments mentioning tracked tools via
// the Algolia search API. No credentials required.
type HackerNews struct {
	client  *http.Client
	baseURL string
	query   string
	limit   int
}

// NewHackerNews creates a collector searching for the given tool names.
// Only the first few keywords are used; Algolia rejects long OR queries.
func NewHackerNews(keywords []string, limit int) *HackerNews {
	if limit <= 0 {
		limit = hnDefaultLimit
	}
	return &HackerNews{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: hnSearchURL,
		query:   strings.Join(keywordSet(keywords, hnMaxKeywords), " OR "),
		limit:   limit,
	}
}

func (h *HackerNews) Name() Type { return TypeHackerNews }

type hnHit struct {
	ObjectID    string `json:"objectID"`
	CreatedAt   string `json:"created_at"`
	Title       string `json:"title"`
	CommentText string `json:"comment_text"`
	StoryText   string `json:"story_text"`
	URL         string `json:"url"`
	StoryURL    string `json:"story_url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
}

type hnSearchResponse struct {
	Hits    []hnHit `json:"hits"`
	NbPages int     `json:"nbPages"`
}

func (h *HackerNews) Collect(ctx context.Context) ([]Item, error) {
	now := time.Now().UTC()
	items := make([]Item, 0, h.limit)

	for page := 0; len(items) < h.limit; page++ {
		resp, err := h.search(ctx, page)
		if err != nil {
			return items, fmt.Errorf("hackernews page %d: %w", page, err)
		}
		if len(resp.Hits) == 0 {
			break
		}

		for _, hit := range resp.Hits {
			if len(items) >= h.limit {
				break
			}
			if item, ok := h.itemFromHit(hit, now); ok {
				items = append(items, item)
			}
		}
		if page+1 >= resp.NbPages {
			break
		}
	}
	return items, nil
}

func (h *HackerNews) search(ctx context.Context, page int) (*hnSearchResponse, error) {
	params := url.Values{}
	params.Set("query", h.query)
	params.Set("page", strconv.Itoa(page))
	params.Set("hitsPerPage", strconv.Itoa(hnHitsPerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "aisentinel/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var search hnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &search, nil
}

// itemFromHit maps an Algolia hit to an Item. Comments carry their text in
// comment_text, stories in story_text; the title joins whichever is set.
func (h *HackerNews) itemFromHit(hit hnHit, now time.Time) (Item, bool) {
	body := hit.CommentText
	if body == "" {
		body = hit.StoryText
	}
	text := strings.TrimSpace(hit.Title + "\n\n" + body)
	if text == "" {
		return Item{}, false
	}

	created, err := time.Parse(time.RFC3339, hit.CreatedAt)
	if err != nil {
		return Item{}, false
	}

	link := hit.URL
	if link == "" {
		link = hit.StoryURL
	}
	if link == "" {
		link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
	}

	return Item{
		ID:          hit.ObjectID,
		Source:      TypeHackerNews,
		Text:        text,
		CreatedAt:   created.UTC(),
		Engagement:  float64(hit.Points),
		Author:      hit.Author,
		URL:         link,
		CollectedAt: now,
	}, true
}
