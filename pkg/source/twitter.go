package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	twitterSearchURL  = "https://api.twitter.com/2/tweets/search/recent"
	twitterPageSize   = 100
	twitterMaxRetries = 3
)

// Twitter collects tweets mentioning tracked tools. With a bearer token
// it uses the API v2 recent-search endpoint; without one it falls back to
// scraping Nitter RSS timelines for the configured accounts.
type Twitter struct {
	client      *http.Client
	parser      *gofeed.Parser
	bearerToken string
	query       string
	limit       int
	pause       time.Duration
	searchURL   string
	nitterURL   string
	accounts    []string
}

// NewTwitter creates a Twitter/X collector. keywords become the search
// query; accounts are only used on the Nitter path.
func NewTwitter(bearerToken string, keywords []string, limit int, nitterURL string, accounts []string) *Twitter {
	if limit <= 0 {
		limit = 100
	}
	if nitterURL == "" {
		nitterURL = "https://nitter.net"
	}
	return &Twitter{
		client:      &http.Client{Timeout: 30 * time.Second},
		parser:      gofeed.NewParser(),
		bearerToken: bearerToken,
		query:       strings.Join(keywordSet(keywords, 10), " OR "),
		limit:       limit,
		pause:       2 * time.Second,
		searchURL:   twitterSearchURL,
		nitterURL:   strings.TrimRight(nitterURL, "/"),
		accounts:    accounts,
	}
}

func (t *Twitter) Name() Type { return TypeTwitter }

func (t *Twitter) Collect(ctx context.Context) ([]Item, error) {
	if t.bearerToken != "" {
		return t.searchRecent(ctx)
	}
	if len(t.accounts) > 0 {
		return t.collectNitter(ctx)
	}
	return nil, nil
}

type tweetResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		CreatedAt     string `json:"created_at"`
		AuthorID      string `json:"author_id"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			QuoteCount   int `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// searchRecent pages through the v2 recent-search endpoint until the
// limit is reached or results run out. A 429 is retried after a pause.
func (t *Twitter) searchRecent(ctx context.Context) ([]Item, error) {
	now := time.Now().UTC()
	items := make([]Item, 0, t.limit)
	nextToken := ""
	retries := 0

	for len(items) < t.limit {
		params := url.Values{}
		params.Set("query", t.query)
		params.Set("max_results", fmt.Sprintf("%d", twitterPageSize))
		params.Set("tweet.fields", "created_at,public_metrics,author_id,lang")
		if nextToken != "" {
			params.Set("next_token", nextToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.searchURL+"?"+params.Encode(), nil)
		if err != nil {
			return items, fmt.Errorf("create twitter request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+t.bearerToken)

		resp, err := t.client.Do(req)
		if err != nil {
			return items, fmt.Errorf("twitter search: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			retries++
			if retries > twitterMaxRetries {
				return items, fmt.Errorf("twitter rate limited after %d retries", twitterMaxRetries)
			}
			if err := sleepCtx(ctx, t.pause); err != nil {
				return items, err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return items, fmt.Errorf("twitter status %d", resp.StatusCode)
		}

		var page tweetResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return items, fmt.Errorf("decode twitter response: %w", err)
		}
		if len(page.Data) == 0 {
			break
		}

		for _, tw := range page.Data {
			if len(items) >= t.limit {
				break
			}
			created, err := time.Parse(time.RFC3339, tw.CreatedAt)
			if err != nil {
				continue
			}
			items = append(items, Item{
				ID:          tw.ID,
				Source:      TypeTwitter,
				Text:        tw.Text,
				CreatedAt:   created.UTC(),
				Engagement:  float64(tw.PublicMetrics.LikeCount + tw.PublicMetrics.RetweetCount),
				Author:      tw.AuthorID,
				URL:         "https://x.com/i/status/" + tw.ID,
				CollectedAt: now,
			})
		}

		nextToken = page.Meta.NextToken
		if nextToken == "" {
			break
		}
	}
	return items, nil
}

// collectNitter pulls recent tweets from account RSS timelines. Nitter
// puts the full tweet text in the entry title.
func (t *Twitter) collectNitter(ctx context.Context) ([]Item, error) {
	var (
		items []Item
		errs  []error
	)
	cutoff := time.Now().Add(-24 * time.Hour)

	for _, account := range t.accounts {
		accountItems, err := t.collectAccount(ctx, account, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("@%s: %w", account, err))
			continue
		}
		items = append(items, accountItems...)
	}
	return items, errors.Join(errs...)
}

func (t *Twitter) collectAccount(ctx context.Context, account string, cutoff time.Time) ([]Item, error) {
	feedURL := fmt.Sprintf("%s/%s/rss", t.nitterURL, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "aisentinel/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	feed, err := t.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	var items []Item
	for _, entry := range feed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		items = append(items, Item{
			ID:          account + ":" + entry.GUID,
			Source:      TypeTwitter,
			Text:        entry.Title,
			CreatedAt:   published,
			Author:      account,
			URL:         strings.Replace(entry.Link, t.nitterURL, "https://x.com", 1),
			CollectedAt: now,
		})
	}
	return items, nil
}

// sleepCtx waits for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
