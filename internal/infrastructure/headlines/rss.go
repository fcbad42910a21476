package headlines

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

const defaultFeedItems = 50

// RSS turns one RSS/Atom feed into a headline source. Natural key is the
// item GUID, falling back to its link.
type RSS struct {
	client *http.Client
	feed   config.FeedConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.HeadlineSource = (*RSS)(nil)

// NewRSS wires a feed; the registry name is the feed's configured name.
func NewRSS(client *http.Client, feed config.FeedConfig, log *slog.Logger) *RSS {
	if log == nil {
		log = slog.Default()
	}
	if feed.MaxItems <= 0 {
		feed.MaxItems = defaultFeedItems
	}
	return &RSS{client: defaultClient(client), feed: feed, logger: log, now: time.Now}
}

// Name identifies the adapter inside the registry.
func (r *RSS) Name() string { return r.feed.Name }

// FetchBatch returns feed items newer than window. Items without a parsed
// date are kept.
func (r *RSS) FetchBatch(ctx context.Context, window time.Duration) ([]domain.ArticleCandidate, error) {
	r.logger.Debug("request feed", "url", r.feed.URL)
	body, err := get(ctx, r.client, r.Name(), r.feed.URL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Source: r.Name(), Kind: KindBadResponse, Err: err}
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = r.now().Add(-window)
	}

	out := make([]domain.ArticleCandidate, 0, min(len(feed.Items), r.feed.MaxItems))
	for _, item := range feed.Items {
		if len(out) == r.feed.MaxItems {
			break
		}
		if item.PublishedParsed != nil && !cutoff.IsZero() && item.PublishedParsed.Before(cutoff) {
			continue
		}
		out = append(out, itemCandidate(item, feed.Title))
	}

	r.logger.Info("fetched feed", "items", len(feed.Items), "count", len(out))
	return out, nil
}

func itemCandidate(item *gofeed.Item, feedTitle string) domain.ArticleCandidate {
	link := strings.TrimSpace(item.Link)
	key := strings.TrimSpace(item.GUID)
	if key == "" {
		key = link
	}

	published := item.Published
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	keywords := make([]string, len(item.Categories))
	copy(keywords, item.Categories)

	return domain.ArticleCandidate{
		Key:         key,
		Family:      domain.FamilyRSS,
		Title:       item.Title,
		Link:        link,
		Description: optional(strings.TrimSpace(item.Description)),
		Keywords:    keywords,
		SourceName:  feedTitle,
		PublishedAt: published,
	}
}
