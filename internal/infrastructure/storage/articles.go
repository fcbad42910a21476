package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

var articleColumns = []string{
	"natural_key",
	"source_family",
	"title",
	"link",
	"description",
	"keywords",
	"source_name",
	"publication_date",
	"summary",
	"summary_generated_at",
	"created_at",
	"updated_at",
}

// ArticleRepository persists articles into Postgres.
type ArticleRepository struct {
	db     DB
	logger *slog.Logger
}

var (
	_ ports.ArticleWriter = (*ArticleRepository)(nil)
	_ ports.ArticleReader = (*ArticleRepository)(nil)
)

// NewArticleRepository wires a pool (or anything that behaves like one).
func NewArticleRepository(db DB, log *slog.Logger) *ArticleRepository {
	if log == nil {
		log = slog.Default()
	}
	return &ArticleRepository{db: db, logger: log}
}

// ExistingKeys returns the subset of keys already stored.
func (r *ArticleRepository) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	result := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("natural_key").
		From("articles").
		Where(sq.Eq{"natural_key": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existing keys query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		result[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// InsertBatch inserts every record in one transaction. Any unique violation,
// at insert or commit time, rolls the whole batch back and is reported as
// domain.ErrDuplicateKey.
func (r *ArticleRepository) InsertBatch(ctx context.Context, records []domain.StoredArticle) (err error) {
	if len(records) == 0 {
		return nil
	}

	insert := psql.Insert("articles").Columns(articleColumns[:10]...)
	for _, rec := range records {
		keywords, kErr := encodeKeywords(rec.Keywords)
		if kErr != nil {
			return fmt.Errorf("encode keywords for %s: %w", rec.Key, kErr)
		}
		insert = insert.Values(
			rec.Key,
			string(rec.Family),
			rec.Title,
			rec.Link,
			rec.Description,
			keywords,
			rec.SourceName,
			rec.PublishedAt,
			rec.Summary,
			rec.SummaryGeneratedAt,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Warn("rollback insert batch", "error", rbErr)
		}
	}()

	if _, err = tx.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert articles: %w: %v", domain.ErrDuplicateKey, err)
		}
		return fmt.Errorf("insert articles: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commit articles: %w: %v", domain.ErrDuplicateKey, err)
		}
		return fmt.Errorf("commit articles: %w", err)
	}

	return nil
}

// LatestSummaries lists articles with a generated summary, newest summary first.
func (r *ArticleRepository) LatestSummaries(ctx context.Context, limit int) ([]domain.StoredArticle, error) {
	builder := psql.Select(articleColumns...).
		From("articles").
		Where(sq.NotEq{"summary_generated_at": nil}).
		OrderBy("summary_generated_at DESC").
		Limit(uint64(limit))
	return r.list(ctx, builder)
}

// LatestHeadlines lists articles by publication time, newest first.
func (r *ArticleRepository) LatestHeadlines(ctx context.Context, limit int) ([]domain.StoredArticle, error) {
	builder := psql.Select(articleColumns...).
		From("articles").
		OrderBy("publication_date DESC NULLS LAST", "created_at DESC").
		Limit(uint64(limit))
	return r.list(ctx, builder)
}

// GetByKey returns one article or domain.ErrNotFound.
func (r *ArticleRepository) GetByKey(ctx context.Context, key string) (domain.StoredArticle, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"natural_key": key}).
		ToSql()
	if err != nil {
		return domain.StoredArticle{}, fmt.Errorf("build article query: %w", err)
	}

	article, err := scanArticle(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredArticle{}, domain.ErrNotFound
		}
		return domain.StoredArticle{}, fmt.Errorf("get article %s: %w", key, err)
	}
	return article, nil
}

func (r *ArticleRepository) list(ctx context.Context, builder sq.SelectBuilder) ([]domain.StoredArticle, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.StoredArticle, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func scanArticle(row pgx.Row) (domain.StoredArticle, error) {
	var (
		a        domain.StoredArticle
		family   string
		keywords []byte
		created  time.Time
	)
	err := row.Scan(
		&a.Key,
		&family,
		&a.Title,
		&a.Link,
		&a.Description,
		&keywords,
		&a.SourceName,
		&a.PublishedAt,
		&a.Summary,
		&a.SummaryGeneratedAt,
		&created,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan article: %w", err)
	}

	a.Family = domain.SourceFamily(family)
	a.CreatedAt = created
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &a.Keywords); err != nil {
			return a, fmt.Errorf("decode keywords for %s: %w", a.Key, err)
		}
	}
	return a, nil
}

func encodeKeywords(keywords []string) ([]byte, error) {
	if keywords == nil {
		return nil, nil
	}
	return json.Marshal(keywords)
}
