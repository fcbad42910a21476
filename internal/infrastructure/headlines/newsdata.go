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

// NewsData reads the newsdata.io "latest" endpoint. Natural key is article_id.
type NewsData struct {
	client *http.Client
	cfg    config.NewsDataConfig
	logger *slog.Logger
}

var _ ports.HeadlineSource = (*NewsData)(nil)

// NewNewsData wires an HTTP client; a nil client gets a 30s timeout.
func NewNewsData(client *http.Client, cfg config.NewsDataConfig, log *slog.Logger) *NewsData {
	if log == nil {
		log = slog.Default()
	}
	return &NewsData{client: defaultClient(client), cfg: cfg, logger: log}
}

// Name identifies the adapter inside the registry.
func (n *NewsData) Name() string { return string(domain.FamilyNewsData) }

// FetchBatch returns the latest headlines. The endpoint always serves its most
// recent page, so window is only logged.
func (n *NewsData) FetchBatch(ctx context.Context, window time.Duration) ([]domain.ArticleCandidate, error) {
	params := url.Values{}
	params.Set("apikey", n.cfg.APIKey)
	if n.cfg.Country != "" {
		params.Set("country", n.cfg.Country)
	}
	if n.cfg.PriorityDomain != "" {
		params.Set("prioritydomain", n.cfg.PriorityDomain)
	}

	n.logger.Debug("request latest headlines", "url", n.cfg.URL, "country", n.cfg.Country, "window", window)
	body, err := get(ctx, n.client, n.Name(), n.cfg.URL, params)
	if err != nil {
		return nil, err
	}

	var resp newsdataResponse
	if err := decodeJSON(n.Name(), body, &resp); err != nil {
		return nil, err
	}

	n.logger.Info("fetched latest headlines", "total_results", resp.TotalResults, "count", len(resp.Results))
	return resp.candidates(), nil
}

type newsdataResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []newsdataArticle `json:"results"`
	NextPage     string            `json:"nextPage"`
}

type newsdataArticle struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	PubDate     string   `json:"pubDate"`
}

func (r newsdataResponse) candidates() []domain.ArticleCandidate {
	out := make([]domain.ArticleCandidate, 0, len(r.Results))
	for _, a := range r.Results {
		source := a.SourceName
		if source == "" {
			source = a.SourceID
		}
		out = append(out, domain.ArticleCandidate{
			Key:         strings.TrimSpace(a.ArticleID),
			Family:      domain.FamilyNewsData,
			Title:       a.Title,
			Link:        strings.TrimSpace(a.Link),
			Description: optional(a.Description),
			Keywords:    a.Keywords,
			SourceName:  source,
			PublishedAt: a.PubDate,
		})
	}
	return out
}
