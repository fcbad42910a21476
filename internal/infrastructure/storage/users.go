package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

var userColumns = []string{"user_id", "email", "hashed_password", "apple_user_id", "is_active", "created_at"}

// UserRepository stores accounts in Postgres.
type UserRepository struct {
	db DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a pool.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts user with a fresh id and returns it as stored.
func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	user.ID = uuid.New()

	query, args, err := psql.Insert("users").
		Columns("user_id", "email", "hashed_password", "apple_user_id", "is_active").
		Values(user.ID, user.Email, user.HashedPassword, user.AppleUserID, user.IsActive).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build user insert: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("insert user: %w", domain.ErrDuplicateKey)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UserByID loads a user or returns domain.ErrNotFound.
func (r *UserRepository) UserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return r.one(ctx, sq.Eq{"user_id": id})
}

// UserByEmail loads a user by exact email.
func (r *UserRepository) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, sq.Eq{"email": email})
}

// UserByAppleID loads a user by Apple subject.
func (r *UserRepository) UserByAppleID(ctx context.Context, appleUserID string) (domain.User, error) {
	return r.one(ctx, sq.Eq{"apple_user_id": appleUserID})
}

// LinkAppleID attaches an Apple subject to a user that has none. It returns
// domain.ErrNotFound when the user is missing or already linked.
func (r *UserRepository) LinkAppleID(ctx context.Context, id uuid.UUID, appleUserID string) error {
	query, args, err := psql.Update("users").
		Set("apple_user_id", appleUserID).
		Where(sq.Eq{"user_id": id}).
		Where(sq.Eq{"apple_user_id": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build link query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("link apple id: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("link apple id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, where sq.Eq) (domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build user query: %w", err)
	}

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.AppleUserID, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
