package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsSum/internal/ports"
)

// containerSelectors are tried in order; the first match scopes paragraph collection.
var containerSelectors = []string{"article", "main", `[role="main"]`}

// Extractor pulls paragraph text out of article pages.
type Extractor struct {
	logger *slog.Logger
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor; log may be nil.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{logger: log}
}

// Extract returns paragraph text joined by newlines, or "" when nothing usable is found.
func (e *Extractor) Extract(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Error("parse html", "error", err)
		return ""
	}

	doc.Find("script, style").Remove()

	scope := doc.Selection
	for _, sel := range containerSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			scope = found
			break
		}
	}

	var parts []string
	scope.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	text := strings.ReplaceAll(strings.Join(parts, "\n"), "\u00a0", " ")
	return strings.TrimSpace(text)
}
