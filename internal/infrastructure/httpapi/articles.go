package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"NewsSum/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type articleResponse struct {
	Key                string     `json:"key"`
	SourceFamily       string     `json:"source_family"`
	Title              string     `json:"title"`
	Link               string     `json:"link"`
	Description        *string    `json:"description"`
	Keywords           []string   `json:"keywords"`
	SourceName         string     `json:"source_name"`
	PublicationDate    *time.Time `json:"publication_date"`
	Summary            *string    `json:"summary"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type articleListResponse struct {
	Count int               `json:"count"`
	Items []articleResponse `json:"items"`
}

func toArticleResponse(a domain.StoredArticle) articleResponse {
	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return articleResponse{
		Key:                a.Key,
		SourceFamily:       string(a.Family),
		Title:              a.Title,
		Link:               a.Link,
		Description:        a.Description,
		Keywords:           keywords,
		SourceName:         a.SourceName,
		PublicationDate:    a.PublishedAt,
		Summary:            a.Summary,
		SummaryGeneratedAt: a.SummaryGeneratedAt,
		CreatedAt:          a.CreatedAt,
	}
}

func toListResponse(articles []domain.StoredArticle) articleListResponse {
	items := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		items = append(items, toArticleResponse(a))
	}
	return articleListResponse{Count: len(items), Items: items}
}

// parseLimit reads ?limit, defaulting to 20 and clamping to [1, 100].
func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}
	return min(max(limit, 1), maxLimit), nil
}

func (s *Server) handleLatestSummaries(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	articles, err := s.articles.LatestSummaries(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("list summaries", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load summaries")
	}
	return c.JSON(http.StatusOK, toListResponse(articles))
}

func (s *Server) handleLatestHeadlines(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	articles, err := s.articles.LatestHeadlines(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("list headlines", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load headlines")
	}
	return c.JSON(http.StatusOK, toListResponse(articles))
}

func (s *Server) handleHeadline(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("key"))
	if err != nil || key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid article key")
	}

	article, err := s.articles.GetByKey(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "article not found")
		}
		s.logger.Error("get headline", "key", key, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load article")
	}
	return c.JSON(http.StatusOK, toArticleResponse(article))
}

// handleGenerate starts a job run in the background. Without ?job the first
// configured job runs.
func (s *Server) handleGenerate(c echo.Context) error {
	name := c.QueryParam("job")
	if name == "" {
		jobs := s.jobs.Jobs()
		if len(jobs) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "no jobs configured")
		}
		name = jobs[0].Name
	}

	if err := s.jobs.Trigger(name); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownJob):
			return echo.NewHTTPError(http.StatusNotFound, "unknown job "+name)
		case errors.Is(err, domain.ErrJobRunning):
			return echo.NewHTTPError(http.StatusConflict, "job "+name+" is already running")
		case errors.Is(err, domain.ErrSchedulerStopped):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
		default:
			s.logger.Error("trigger job", "job", name, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "could not start job")
		}
	}
	return c.JSON(http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}
