package headlines

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

// gnewsTimeLayout is the only "from" format the API accepts.
const gnewsTimeLayout = "2006-01-02T15:04:05Z"

// GNews reads gnews.io top headlines. Natural key is the article URL.
type GNews struct {
	client *http.Client
	cfg    config.GNewsConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.HeadlineSource = (*GNews)(nil)

// NewGNews wires an HTTP client; a nil client gets a 30s timeout.
func NewGNews(client *http.Client, cfg config.GNewsConfig, log *slog.Logger) *GNews {
	if log == nil {
		log = slog.Default()
	}
	return &GNews{client: defaultClient(client), cfg: cfg, logger: log, now: time.Now}
}

// Name identifies the adapter inside the registry.
func (g *GNews) Name() string { return string(domain.FamilyGNews) }

// FetchBatch returns headlines published within window of now.
func (g *GNews) FetchBatch(ctx context.Context, window time.Duration) ([]domain.ArticleCandidate, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	from := formatFrom(g.now(), window)

	params := url.Values{}
	params.Set("apikey", g.cfg.APIKey)
	if g.cfg.Country != "" {
		params.Set("country", g.cfg.Country)
	}
	params.Set("from", from)

	g.logger.Debug("request headlines", "url", g.cfg.URL, "country", g.cfg.Country, "from", from)
	body, err := get(ctx, g.client, g.Name(), g.cfg.URL, params)
	if err != nil {
		return nil, err
	}

	var resp gnewsResponse
	if err := decodeJSON(g.Name(), body, &resp); err != nil {
		return nil, err
	}

	g.logger.Info("fetched headlines", "total_articles", resp.TotalArticles, "count", len(resp.Articles))
	return resp.candidates(), nil
}

func formatFrom(now time.Time, window time.Duration) string {
	return now.Add(-window).UTC().Format(gnewsTimeLayout)
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (r gnewsResponse) candidates() []domain.ArticleCandidate {
	out := make([]domain.ArticleCandidate, 0, len(r.Articles))
	for _, a := range r.Articles {
		link := strings.TrimSpace(a.URL)
		out = append(out, domain.ArticleCandidate{
			Key:         link,
			Family:      domain.FamilyGNews,
			Title:       a.Title,
			Link:        link,
			Description: optional(a.Description),
			SourceName:  a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return out
}
