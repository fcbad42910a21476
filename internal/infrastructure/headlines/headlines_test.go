package headlines

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/logging"
)

const newsdataBody = `{
  "status": "success",
  "totalResults": 3,
  "results": [
    {"article_id": "a1", "title": "First", "link": "https://example.com/1", "description": "desc one", "keywords": ["x", "y"], "source_id": "example", "pubDate": "2025-04-20 10:00:00"},
    {"article_id": "a2", "title": "Second", "link": "https://example.com/2", "description": null, "keywords": null, "source_name": "Example News", "pubDate": "2025-04-20 11:00:00"},
    {"article_id": "a3", "title": "No link", "link": "", "description": "orphan"}
  ]
}`

func TestNewsDataFetchBatch(t *testing.T) {
	t.Parallel()

	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"apikey":         q.Get("apikey"),
			"country":        q.Get("country"),
			"prioritydomain": q.Get("prioritydomain"),
			"from":           q.Get("from"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(newsdataBody))
	}))
	defer server.Close()

	src := NewNewsData(server.Client(), config.NewsDataConfig{
		URL:            server.URL,
		APIKey:         "secret",
		Country:        "us",
		PriorityDomain: "top",
	}, logging.Discard())

	got, err := src.FetchBatch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("FetchBatch error: %v", err)
	}

	if query["apikey"] != "secret" || query["country"] != "us" || query["prioritydomain"] != "top" {
		t.Fatalf("unexpected query: %v", query)
	}
	if query["from"] != "" {
		t.Fatalf("latest endpoint must not receive from, got %q", query["from"])
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	first := got[0]
	if first.Key != "a1" || first.Family != domain.FamilyNewsData || first.Link != "https://example.com/1" {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Description == nil || *first.Description != "desc one" {
		t.Fatalf("unexpected description: %v", first.Description)
	}
	if first.SourceName != "example" {
		t.Fatalf("expected source_id fallback, got %q", first.SourceName)
	}
	if got[1].Description != nil {
		t.Fatalf("null description must stay absent")
	}
	if got[1].SourceName != "Example News" {
		t.Fatalf("unexpected source name %q", got[1].SourceName)
	}
	if got[2].Link != "" {
		t.Fatalf("adapter must not invent links")
	}
}

func TestNewsDataMissingResultsIsEmptyBatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","totalResults":0}`))
	}))
	defer server.Close()

	src := NewNewsData(server.Client(), config.NewsDataConfig{URL: server.URL}, logging.Discard())
	got, err := src.FetchBatch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("expected empty batch, got error %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestFetchErrorKinds(t *testing.T) {
	t.Parallel()

	statusServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer statusServer.Close()

	badJSONServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	defer badJSONServer.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	cases := []struct {
		name   string
		url    string
		kind   FailureKind
		status int
	}{
		{name: "status", url: statusServer.URL, kind: KindUpstreamStatus, status: http.StatusTooManyRequests},
		{name: "bad json", url: badJSONServer.URL, kind: KindBadResponse},
		{name: "unavailable", url: closedURL, kind: KindUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := NewNewsData(&http.Client{Timeout: 2 * time.Second}, config.NewsDataConfig{URL: tc.url}, logging.Discard())
			_, err := src.FetchBatch(context.Background(), time.Hour)

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fetchErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, fetchErr.Kind)
			}
			if fetchErr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, fetchErr.StatusCode)
			}
		})
	}
}

func TestGNewsFetchBatch(t *testing.T) {
	t.Parallel()

	var from string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		from = r.URL.Query().Get("from")
		_, _ = w.Write([]byte(`{
		  "totalArticles": 1,
		  "articles": [
		    {"title": "Headline", "description": "short", "url": "https://news.example/a", "publishedAt": "2025-04-20T04:50:00Z", "source": {"name": "Example", "url": "https://news.example"}}
		  ]
		}`))
	}))
	defer server.Close()

	src := NewGNews(server.Client(), config.GNewsConfig{URL: server.URL, APIKey: "k", Country: "us"}, logging.Discard())
	src.now = func() time.Time {
		return time.Date(2025, 4, 21, 6, 50, 0, 0, time.FixedZone("PDT+2", 2*3600))
	}

	got, err := src.FetchBatch(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchBatch error: %v", err)
	}
	if from != "2025-04-20T04:50:00Z" {
		t.Fatalf("unexpected from: %q", from)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Key != "https://news.example/a" || got[0].Key != got[0].Link {
		t.Fatalf("gnews key must be the url: %+v", got[0])
	}
	if got[0].SourceName != "Example" || got[0].Family != domain.FamilyGNews {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestGNewsMissingArticlesIsEmptyBatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalArticles": 0, "articles": null}`))
	}))
	defer server.Close()

	src := NewGNews(server.Client(), config.GNewsConfig{URL: server.URL}, logging.Discard())
	got, err := src.FetchBatch(context.Background(), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty batch, got %d, %v", len(got), err)
	}
}

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <item>
    <title>Fresh</title>
    <link>https://feed.example/fresh</link>
    <guid>fresh-guid</guid>
    <description>fresh item</description>
    <category>tech</category>
    <pubDate>Sun, 20 Apr 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No guid</title>
    <link>https://feed.example/noguid</link>
    <pubDate>Sun, 20 Apr 2025 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Stale</title>
    <link>https://feed.example/stale</link>
    <guid>stale-guid</guid>
    <pubDate>Mon, 10 Mar 2025 09:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestRSSFetchBatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	src := NewRSS(server.Client(), config.FeedConfig{Name: "example", URL: server.URL}, logging.Discard())
	src.now = func() time.Time { return time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC) }

	got, err := src.FetchBatch(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchBatch error: %v", err)
	}
	if src.Name() != "example" {
		t.Fatalf("unexpected name %q", src.Name())
	}
	if len(got) != 2 {
		t.Fatalf("expected stale item to be dropped, got %d items", len(got))
	}
	if got[0].Key != "fresh-guid" || got[0].SourceName != "Example Feed" {
		t.Fatalf("unexpected first item: %+v", got[0])
	}
	if got[0].PublishedAt != "2025-04-20T10:00:00Z" {
		t.Fatalf("unexpected published: %q", got[0].PublishedAt)
	}
	if len(got[0].Keywords) != 1 || got[0].Keywords[0] != "tech" {
		t.Fatalf("unexpected keywords: %v", got[0].Keywords)
	}
	if got[1].Key != "https://feed.example/noguid" {
		t.Fatalf("expected link fallback key, got %q", got[1].Key)
	}
}

func TestRSSRejectsGarbage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not a feed"))
	}))
	defer server.Close()

	src := NewRSS(server.Client(), config.FeedConfig{Name: "bad", URL: server.URL}, logging.Discard())
	_, err := src.FetchBatch(context.Background(), time.Hour)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != KindBadResponse {
		t.Fatalf("expected bad response error, got %v", err)
	}
}
