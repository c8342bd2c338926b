package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const redditDefaultUserAgent = "aisentinel/0.1.0"

// Reddit collects posts mentioning tracked tools from a set of
// subreddits using the official OAuth API.
type Reddit struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	subreddits   []string
	keywords     []string
	limit        int
	authURL      string
	apiURL       string
	mu           sync.Mutex
	token        string
	tokenExpiry  time.Time
}

// NewReddit creates a Reddit collector. Posts that mention none of the
// keywords are skipped; an empty keyword list keeps everything.
func NewReddit(clientID, clientSecret, userAgent string, subreddits, keywords []string, limit int) *Reddit {
	if userAgent == "" {
		userAgent = redditDefaultUserAgent
	}
	if len(subreddits) == 0 {
		subreddits = []string{
			"MachineLearning", "ArtificialInteligence", "OpenAI", "DataScience",
		}
	}
	if limit <= 0 {
		limit = 100
	}
	return &Reddit{
		client:       &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		subreddits:   subreddits,
		keywords:     keywordSet(keywords, 0),
		limit:        limit,
		authURL:      "https://www.reddit.com/api/v1/access_token",
		apiURL:       "https://oauth.reddit.com",
	}
}

func (r *Reddit) Name() Type { return TypeReddit }

func (r *Reddit) Collect(ctx context.Context) ([]Item, error) {
	token, err := r.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	var (
		items []Item
		errs  []error
	)
	for _, sub := range r.subreddits {
		subItems, err := r.fetchSubreddit(ctx, sub, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("r/%s: %w", sub, err))
			continue
		}
		items = append(items, subItems...)
	}
	return items, errors.Join(errs...)
}

// authenticate returns a valid app-only token, refreshing the cached one
// a minute before it expires.
func (r *Reddit) authenticate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return r.token, nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return r.token, nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, subreddit, token string) ([]Item, error) {
	reqURL := fmt.Sprintf("%s/r/%s/new.json?limit=%d", r.apiURL, subreddit, r.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	now := time.Now().UTC()
	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}

		text := strings.TrimSpace(post.Title + "\n\n" + post.Selftext)
		if !r.mentionsKeyword(text) {
			continue
		}

		items = append(items, Item{
			ID:          post.ID,
			Source:      TypeReddit,
			Text:        text,
			CreatedAt:   time.Unix(int64(post.CreatedUTC), 0).UTC(),
			Engagement:  float64(post.Score),
			Author:      post.Author,
			URL:         "https://reddit.com" + post.Permalink,
			CollectedAt: now,
		})
	}
	return items, nil
}

func (r *Reddit) mentionsKeyword(text string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(text)
	for _, kw := range r.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Permalink  string  `json:"permalink"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}
