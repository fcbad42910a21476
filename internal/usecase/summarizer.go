package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsSum/internal/metrics"
	"NewsSum/internal/ports"
)

const summaryPromptTemplate = `Please provide a concise and neutral summary (around 200-350 words) of the following news article content. Focus on the main points and key information presented in the text.
**Important:** The summary itself is the ONLY response. Do not include any introductory text, explanations, markdown formatting, or code fences before or after it. The entire response must be only the summary.

Article Title (for context, if available): %s

Article Content to Summarize:
---
%s
---
`

// BuildSummaryPrompt renders the fixed summarization prompt.
func BuildSummaryPrompt(text, title string) string {
	if strings.TrimSpace(title) == "" {
		title = "N/A"
	}
	return fmt.Sprintf(summaryPromptTemplate, title, text)
}

// Summarizer asks a text generator for article summaries. With a nil
// generator every call returns no summary.
type Summarizer struct {
	generator ports.TextGenerator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer wires the generator; pass nil when the model is not configured.
func NewSummarizer(generator ports.TextGenerator, m *metrics.Metrics, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{generator: generator, metrics: m, logger: log}
}

// Summarize never returns an error; failures are logged and reported as ok=false.
func (s *Summarizer) Summarize(ctx context.Context, text, title string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("cannot summarize empty text", "title", title)
		return "", false
	}
	if s.generator == nil {
		s.logger.Error("cannot summarize: model is not configured", "title", title)
		return "", false
	}

	started := time.Now()
	summary, err := s.generator.Generate(ctx, BuildSummaryPrompt(text, title))
	s.metrics.ObserveSummary(time.Since(started))
	if err != nil {
		s.logger.Error("generate summary", "title", title, "error", err)
		return "", false
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		s.logger.Warn("model returned an empty summary", "title", title)
		return "", false
	}

	s.logger.Debug("generated summary", "title", title, "chars", len(summary))
	return summary, true
}
