package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"NewsSum/internal/domain"
)

type fakeSource struct {
	name       string
	candidates []domain.ArticleCandidate
	err        error
	calls      int
	block      chan struct{}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchBatch(context.Context, time.Duration) ([]domain.ArticleCandidate, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.candidates, f.err
}

type fakePage struct {
	html  string
	panic bool
}

type fakeFetcher struct {
	pages map[string]fakePage
}

func (f *fakeFetcher) Fetch(_ context.Context, link string) (string, bool) {
	page, ok := f.pages[link]
	if !ok {
		return "", false
	}
	if page.panic {
		panic("fetch exploded")
	}
	return page.html, true
}

// passthroughExtractor returns its input, so tests control extraction through page html.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(html string) string { return html }

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.reply == nil {
		return "generated summary", nil
	}
	return f.reply(prompt)
}

// memStore mimics a table with a unique natural key and all-or-nothing batches.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]domain.StoredArticle
	existingErr error
	insertErr   error
	inserts     int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.StoredArticle{}}
}

func (m *memStore) ExistingKeys(_ context.Context, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existingErr != nil {
		return nil, m.existingErr
	}
	out := map[string]bool{}
	for _, k := range keys {
		if _, ok := m.rows[k]; ok {
			out[k] = true
		}
	}
	return out, nil
}

func (m *memStore) InsertBatch(_ context.Context, records []domain.StoredArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		err := m.insertErr
		m.insertErr = nil
		return err
	}
	for _, r := range records {
		if _, ok := m.rows[r.Key]; ok {
			return domain.ErrDuplicateKey
		}
	}
	for _, r := range records {
		m.rows[r.Key] = r
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeCache struct {
	seen       map[string]bool
	remembered []string
	err        error
}

func (f *fakeCache) Seen(_ context.Context, keys []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]bool{}
	for _, k := range keys {
		if f.seen[k] {
			out[k] = true
		}
	}
	return out, nil
}

func (f *fakeCache) Remember(_ context.Context, keys []string) error {
	f.remembered = append(f.remembered, keys...)
	return f.err
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

func candidate(key, link string, description *string) domain.ArticleCandidate {
	return domain.ArticleCandidate{
		Key:         key,
		Family:      domain.FamilyNewsData,
		Title:       "Title " + key,
		Link:        link,
		Description: description,
		Keywords:    []string{"news"},
		SourceName:  "example",
		PublishedAt: "2025-04-20 10:00:00",
	}
}
