package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"NewsSum/internal/domain"
)

// HeadlineSource pulls a batch of recent headlines from one listing API.
type HeadlineSource interface {
	Name() string
	FetchBatch(ctx context.Context, window time.Duration) ([]domain.ArticleCandidate, error)
}

// ContentFetcher downloads article pages. It never fails loudly: ok=false means no content.
type ContentFetcher interface {
	Fetch(ctx context.Context, link string) (html string, ok bool)
}

// TextExtractor flattens HTML into readable article text.
type TextExtractor interface {
	Extract(html string) string
}

// TextGenerator sends a prompt to a generative model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns article text into a short summary, ok=false when none was produced.
type Summarizer interface {
	Summarize(ctx context.Context, text, title string) (summary string, ok bool)
}

// ArticleWriter is the storage surface of the persist stage.
type ArticleWriter interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	// InsertBatch writes all records in one transaction; a unique violation
	// rolls everything back and is reported as domain.ErrDuplicateKey.
	InsertBatch(ctx context.Context, records []domain.StoredArticle) error
}

// ArticleReader serves the read endpoints.
type ArticleReader interface {
	LatestSummaries(ctx context.Context, limit int) ([]domain.StoredArticle, error)
	LatestHeadlines(ctx context.Context, limit int) ([]domain.StoredArticle, error)
	GetByKey(ctx context.Context, key string) (domain.StoredArticle, error)
}

// SeenKeyCache remembers recently persisted natural keys across runs.
type SeenKeyCache interface {
	Seen(ctx context.Context, keys []string) (map[string]bool, error)
	Remember(ctx context.Context, keys []string) error
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByAppleID(ctx context.Context, appleUserID string) (domain.User, error)
	LinkAppleID(ctx context.Context, id uuid.UUID, appleUserID string) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user domain.User) (domain.AccessToken, error)
	Verify(token string) (uuid.UUID, error)
}

// AppleAuthenticator exchanges a Sign in with Apple authorization code for a verified identity.
type AppleAuthenticator interface {
	Authenticate(ctx context.Context, code string) (domain.AppleIdentity, error)
}

// JobRunner is what a cron driver fires.
type JobRunner interface {
	Name() string
	Fire(ctx context.Context, scheduled time.Time)
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Add(spec domain.JobSpec, job JobRunner) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
