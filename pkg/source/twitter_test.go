package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTwitterSearchRecent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer bearer-token" {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("tweet.fields"); got != "created_at,public_metrics,author_id,lang" {
			t.Errorf("tweet.fields = %q", got)
		}

		if r.URL.Query().Get("next_token") == "" {
			fmt.Fprint(w, `{
				"data": [
					{"id": "t1", "text": "ChatGPT wrote my standup update", "created_at": "2026-08-20T08:00:00Z",
					 "author_id": "u1", "public_metrics": {"like_count": 10, "retweet_count": 5}}
				],
				"meta": {"next_token": "page2"}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"data": [
				{"id": "t2", "text": "copilot keeps suggesting deleted APIs", "created_at": "2026-08-20T07:00:00Z",
				 "author_id": "u2", "public_metrics": {"like_count": 2}}
			],
			"meta": {}
		}`)
	}))
	defer srv.Close()

	tw := NewTwitter("bearer-token", []string{"ChatGPT", "Copilot"}, 50, "", nil)
	tw.searchURL = srv.URL

	items, err := tw.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2 (pagination)", calls)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}

	if items[0].ID != "t1" || items[0].Source != TypeTwitter {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Engagement != 15 {
		t.Errorf("engagement = %v, want likes+retweets", items[0].Engagement)
	}
	if items[0].URL != "https://x.com/i/status/t1" {
		t.Errorf("url = %q", items[0].URL)
	}
	if items[1].ID != "t2" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestTwitterRateLimitRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{
			"data": [{"id": "t9", "text": "gemini actually shipped", "created_at": "2026-08-20T06:00:00Z"}],
			"meta": {}
		}`)
	}))
	defer srv.Close()

	tw := NewTwitter("bearer-token", []string{"Gemini"}, 10, "", nil)
	tw.searchURL = srv.URL
	tw.pause = time.Millisecond

	items, err := tw.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want retry after 429", calls)
	}
	if len(items) != 1 || items[0].ID != "t9" {
		t.Errorf("items = %+v", items)
	}
}

func TestTwitterRateLimitGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tw := NewTwitter("bearer-token", []string{"Claude"}, 10, "", nil)
	tw.searchURL = srv.URL
	tw.pause = time.Millisecond

	if _, err := tw.Collect(context.Background()); err == nil {
		t.Fatal("expected an error after repeated 429s")
	}
}

func TestTwitterNitterFallback(t *testing.T) {
	const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>sama / @sama</title>
    <item>
      <title>we are rolling out the new voice mode to everyone this week</title>
      <link>NITTER/sama/status/100#m</link>
      <guid>NITTER/sama/status/100#m</guid>
      <pubDate>PUBDATE</pubDate>
    </item>
    <item>
      <title>old tweet far outside the window</title>
      <link>NITTER/sama/status/99#m</link>
      <guid>NITTER/sama/status/99#m</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
  </channel>
</rss>`

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sama/rss" {
			http.NotFound(w, r)
			return
		}
		body := strings.ReplaceAll(rss, "NITTER", srv.URL)
		body = strings.ReplaceAll(body, "PUBDATE", time.Now().UTC().Format(time.RFC1123Z))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	// No bearer token, so Collect takes the Nitter path.
	tw := NewTwitter("", nil, 10, srv.URL, []string{"sama"})

	items, err := tw.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (old tweet cut off): %+v", len(items), items)
	}
	if items[0].Text != "we are rolling out the new voice mode to everyone this week" {
		t.Errorf("text = %q", items[0].Text)
	}
	if items[0].Author != "sama" {
		t.Errorf("author = %q", items[0].Author)
	}
	if !strings.HasPrefix(items[0].URL, "https://x.com/") {
		t.Errorf("url not rewritten: %q", items[0].URL)
	}
}

func TestTwitterUnconfigured(t *testing.T) {
	tw := NewTwitter("", nil, 10, "", nil)
	items, err := tw.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v", items)
	}
}
