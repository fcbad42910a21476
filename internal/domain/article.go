package domain

import "time"

// SourceFamily tells which natural-key convention an article follows.
type SourceFamily string

const (
	FamilyNewsData SourceFamily = "newsdata"
	FamilyGNews    SourceFamily = "gnews"
	FamilyRSS      SourceFamily = "rss"
)

// ArticleCandidate is a headline fetched from a listing API, before enrichment.
type ArticleCandidate struct {
	Key         string
	Family      SourceFamily
	Title       string
	Link        string
	Description *string
	Keywords    []string
	SourceName  string
	PublishedAt string
}

// ProcessedArticle is a candidate after the fetch/extract/summarize pass.
// SummaryGeneratedAt is set only when the model produced Summary in this run.
type ProcessedArticle struct {
	Candidate          ArticleCandidate
	Summary            *string
	SummaryGeneratedAt *time.Time
}

// StoredArticle is the persisted row shape.
type StoredArticle struct {
	Key                string
	Family             SourceFamily
	Title              string
	Link               string
	Description        *string
	Keywords           []string
	SourceName         string
	PublishedAt        *time.Time
	Summary            *string
	SummaryGeneratedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}

// PersistResult reports the outcome of one persist call.
type PersistResult struct {
	Added   int
	Skipped int
}
