package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsSum/internal/domain"
	"NewsSum/internal/metrics"
	"NewsSum/internal/ports"
	"NewsSum/internal/validation"
)

// publicationLayouts covers the formats the headline sources emit.
// Zone-less layouts are read as UTC.
var publicationLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// PersisterDeps wires storage into the dedup-and-persist stage.
type PersisterDeps struct {
	Store     ports.ArticleWriter
	Cache     ports.SeenKeyCache
	Validator *validation.Validator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Persister inserts new articles and skips ones already stored.
type Persister struct {
	store     ports.ArticleWriter
	cache     ports.SeenKeyCache
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPersister builds the persist stage; Cache is optional.
func NewPersister(deps PersisterDeps) *Persister {
	p := &Persister{
		store:     deps.Store,
		cache:     deps.Cache,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if p.validator == nil {
		p.validator = validation.New()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// articleRecord is the validated storage shape.
type articleRecord struct {
	Key         string   `json:"natural_key" validate:"required,max=512"`
	Family      string   `json:"source_family" validate:"required,max=32"`
	Title       string   `json:"title" validate:"max=1024"`
	Link        string   `json:"link" validate:"required,http_url,max=2048"`
	Description *string  `json:"description"`
	Keywords    []string `json:"keywords" validate:"omitempty,dive,max=256"`
	SourceName  string   `json:"source_name" validate:"max=255"`
}

// Persist writes the batch in one transaction and reports counts. It never
// fails: every error path ends up counted as skipped.
func (p *Persister) Persist(ctx context.Context, batch []domain.ProcessedArticle) domain.PersistResult {
	var result domain.PersistResult
	if len(batch) == 0 {
		return result
	}

	existing := p.existingKeys(ctx, batch)

	pending := make([]domain.StoredArticle, 0, len(batch))
	queued := make(map[string]bool, len(batch))
	for _, item := range batch {
		key := item.Candidate.Key
		switch {
		case key == "":
			p.logger.Warn("skipping article without key", "title", item.Candidate.Title)
			result.Skipped++
			continue
		case existing[key]:
			p.logger.Debug("article already stored", "key", key)
			result.Skipped++
			continue
		case queued[key]:
			p.logger.Debug("duplicate key within batch", "key", key)
			result.Skipped++
			continue
		}

		record, err := p.toRecord(item)
		if err != nil {
			p.logger.Warn("article failed validation", "key", key, "error", err)
			result.Skipped++
			continue
		}

		queued[key] = true
		pending = append(pending, record)
	}

	if len(pending) == 0 {
		p.finish(result)
		return result
	}

	err := p.store.InsertBatch(ctx, pending)
	switch {
	case err == nil:
		result.Added += len(pending)
		p.remember(ctx, pending)
	case errors.Is(err, domain.ErrDuplicateKey):
		p.logger.Warn("batch lost a uniqueness race, rolled back", "pending", len(pending), "error", err)
		result.Skipped += len(pending)
	default:
		p.logger.Error("insert batch failed, rolled back", "pending", len(pending), "error", err)
		result.Skipped += len(pending)
	}

	p.finish(result)
	return result
}

func (p *Persister) finish(result domain.PersistResult) {
	p.metrics.RecordPersist(result.Added, result.Skipped)
	p.logger.Info("persisted batch", "added", result.Added, "skipped", result.Skipped)
}

func (p *Persister) existingKeys(ctx context.Context, batch []domain.ProcessedArticle) map[string]bool {
	keys := make([]string, 0, len(batch))
	for _, item := range batch {
		if item.Candidate.Key != "" {
			keys = append(keys, item.Candidate.Key)
		}
	}
	if len(keys) == 0 {
		return map[string]bool{}
	}

	existing, err := p.store.ExistingKeys(ctx, keys)
	if err != nil {
		p.logger.Error("pre-check existing keys, continuing without it", "error", err)
		existing = map[string]bool{}
	}
	if existing == nil {
		existing = map[string]bool{}
	}

	if p.cache != nil {
		seen, err := p.cache.Seen(ctx, keys)
		if err != nil {
			p.logger.Warn("seen-key cache lookup failed", "error", err)
		}
		for k, ok := range seen {
			if ok {
				existing[k] = true
			}
		}
	}

	return existing
}

func (p *Persister) remember(ctx context.Context, records []domain.StoredArticle) {
	if p.cache == nil {
		return
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	if err := p.cache.Remember(ctx, keys); err != nil {
		p.logger.Warn("seen-key cache update failed", "error", err)
	}
}

func (p *Persister) toRecord(item domain.ProcessedArticle) (domain.StoredArticle, error) {
	c := item.Candidate
	rec := articleRecord{
		Key:         strings.TrimSpace(c.Key),
		Family:      string(c.Family),
		Title:       c.Title,
		Link:        c.Link,
		Description: c.Description,
		Keywords:    c.Keywords,
		SourceName:  c.SourceName,
	}
	if err := p.validator.Struct(rec); err != nil {
		return domain.StoredArticle{}, err
	}

	published, err := ParsePublication(c.PublishedAt)
	if err != nil {
		return domain.StoredArticle{}, err
	}

	summary := item.Summary
	generatedAt := item.SummaryGeneratedAt
	if generatedAt == nil || summary == nil {
		// Without a generation time the only acceptable summary is the description.
		summary = c.Description
		generatedAt = nil
	}

	return domain.StoredArticle{
		Key:                rec.Key,
		Family:             c.Family,
		Title:              rec.Title,
		Link:               rec.Link,
		Description:        rec.Description,
		Keywords:           rec.Keywords,
		SourceName:         rec.SourceName,
		PublishedAt:        published,
		Summary:            summary,
		SummaryGeneratedAt: generatedAt,
	}, nil
}

// ParsePublication reads a source timestamp. Empty input is no timestamp.
func ParsePublication(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range publicationLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised publication time %q", raw)
}
