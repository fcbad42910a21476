package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsSum/internal/domain"
	"NewsSum/internal/metrics"
	"NewsSum/internal/ports"
)

// PipelineDeps wires the driven adapters into the enrichment pipeline.
type PipelineDeps struct {
	Fetcher    ports.ContentFetcher
	Extractor  ports.TextExtractor
	Summarizer ports.Summarizer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline turns a headline batch into processed articles, one article at a time.
type Pipeline struct {
	fetcher    ports.ContentFetcher
	extractor  ports.TextExtractor
	summarizer ports.Summarizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run fetches one batch from source and enriches every candidate that has a
// key and a link. A failed or empty batch yields an empty result, never an error.
func (p *Pipeline) Run(ctx context.Context, source ports.HeadlineSource, window time.Duration) []domain.ProcessedArticle {
	if source == nil {
		return nil
	}

	candidates, err := source.FetchBatch(ctx, window)
	if err != nil {
		p.metrics.RecordHeadlineError(source.Name())
		p.logger.Error("fetch headline batch", "source", source.Name(), "error", err)
		return nil
	}
	if len(candidates) == 0 {
		p.logger.Warn("headline batch is empty", "source", source.Name())
		return nil
	}

	p.logger.Info("processing headline batch", "source", source.Name(), "candidates", len(candidates))

	processed := make([]domain.ProcessedArticle, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Key == "" {
			p.logger.Warn("skipping candidate without key", "source", source.Name(), "title", candidate.Title)
			continue
		}
		if candidate.Link == "" {
			p.logger.Warn("skipping candidate without link", "source", source.Name(), "key", candidate.Key)
			continue
		}

		article := p.process(ctx, candidate)
		p.metrics.RecordArticle(source.Name(), article.SummaryGeneratedAt != nil)
		processed = append(processed, article)
	}

	p.logger.Info("finished headline batch", "source", source.Name(), "processed", len(processed))
	return processed
}

// process never drops the candidate: any failure, including a panic in an
// adapter, leaves the description as the summary and no generation time.
func (p *Pipeline) process(ctx context.Context, candidate domain.ArticleCandidate) (out domain.ProcessedArticle) {
	out = domain.ProcessedArticle{Candidate: candidate, Summary: candidate.Description}
	log := p.logger.With("key", candidate.Key, "link", candidate.Link)

	defer func() {
		if r := recover(); r != nil {
			log.Error("article processing panicked", "panic", r)
			out = domain.ProcessedArticle{Candidate: candidate, Summary: candidate.Description}
		}
	}()

	var extracted *string
	if html, ok := p.fetcher.Fetch(ctx, candidate.Link); ok {
		text := p.extractor.Extract(html)
		extracted = &text
		if text == "" {
			log.Warn("no text extracted, falling back to description")
		}
	} else {
		log.Warn("content not fetched, falling back to description")
	}

	text, ok := FirstNonEmpty(extracted, candidate.Description)
	if !ok {
		log.Warn("nothing to summarize")
		return out
	}

	summary, ok := p.summarizer.Summarize(ctx, text, candidate.Title)
	if !ok {
		log.Warn("summary not generated", "used_description", extracted == nil || *extracted == "")
		return out
	}

	generatedAt := p.now().UTC()
	out.Summary = &summary
	out.SummaryGeneratedAt = &generatedAt
	return out
}
