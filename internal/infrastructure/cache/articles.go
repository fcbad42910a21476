package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

const (
	defaultArticleCacheSize = 512
	defaultArticleCacheTTL  = 10 * time.Minute
)

// Articles keeps recently read single articles in memory. Stored articles are
// never rewritten, so only misses reach the reader. Lists are not cached.
type Articles struct {
	ports.ArticleReader
	byKey *expirable.LRU[string, domain.StoredArticle]
}

var _ ports.ArticleReader = (*Articles)(nil)

// NewArticles wraps reader; non-positive size or ttl pick the defaults.
func NewArticles(reader ports.ArticleReader, size int, ttl time.Duration) *Articles {
	if size <= 0 {
		size = defaultArticleCacheSize
	}
	if ttl <= 0 {
		ttl = defaultArticleCacheTTL
	}
	return &Articles{
		ArticleReader: reader,
		byKey:         expirable.NewLRU[string, domain.StoredArticle](size, nil, ttl),
	}
}

// GetByKey serves from memory when possible. Errors, including
// domain.ErrNotFound, are never cached.
func (a *Articles) GetByKey(ctx context.Context, key string) (domain.StoredArticle, error) {
	if article, ok := a.byKey.Get(key); ok {
		return article, nil
	}

	article, err := a.ArticleReader.GetByKey(ctx, key)
	if err != nil {
		return domain.StoredArticle{}, err
	}
	a.byKey.Add(key, article)
	return article, nil
}
