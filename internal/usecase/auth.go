package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

// AuthDeps wires the account use cases.
type AuthDeps struct {
	Users  ports.UserRepository
	Hasher ports.PasswordHasher
	Tokens ports.TokenIssuer
	// Apple is nil when Sign in with Apple is not configured.
	Apple  ports.AppleAuthenticator
	Logger *slog.Logger
}

// AuthService implements sign-up, sign-in and token resolution.
type AuthService struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	apple  ports.AppleAuthenticator
	logger *slog.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDeps) *AuthService {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:  deps.Users,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		apple:  deps.Apple,
		logger: log,
	}
}

// SignUp creates an email account and returns it with a fresh token.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (domain.User, domain.AccessToken, error) {
	email = normalizeEmail(email)

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		s.logger.Warn("signup for registered email", "email", email)
		return domain.User{}, domain.AccessToken{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.AccessToken{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, domain.User{Email: &email, HashedPassword: &hash, IsActive: true})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return domain.User{}, domain.AccessToken{}, domain.ErrEmailTaken
		}
		return domain.User{}, domain.AccessToken{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, token, nil
}

// Login checks email and password and returns a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.AccessToken, error) {
	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessToken{}, domain.ErrInvalidCredentials
		}
		return domain.AccessToken{}, fmt.Errorf("lookup email: %w", err)
	}

	if user.HashedPassword == nil || !s.hasher.Compare(*user.HashedPassword, password) {
		return domain.AccessToken{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.AccessToken{}, domain.ErrInactiveUser
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// AppleSignIn carries what the client sends after the Apple prompt. Email is
// only present on the very first authorization.
type AppleSignIn struct {
	Code  string
	Email *string
}

// SignInWithApple verifies the code with Apple, then finds, links or creates the account.
func (s *AuthService) SignInWithApple(ctx context.Context, req AppleSignIn) (domain.User, domain.AccessToken, error) {
	if s.apple == nil {
		return domain.User{}, domain.AccessToken{}, domain.ErrAppleNotConfigured
	}

	identity, err := s.apple.Authenticate(ctx, req.Code)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, err
	}

	user, err := s.resolveAppleUser(ctx, identity, req.Email)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, err
	}
	if !user.IsActive {
		return domain.User{}, domain.AccessToken{}, domain.ErrInactiveUser
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// resolveAppleUser links an existing account only through an email Apple
// itself verified. The client-sent email is trusted for nothing but the
// stored address of a brand-new account.
func (s *AuthService) resolveAppleUser(ctx context.Context, identity domain.AppleIdentity, provided *string) (domain.User, error) {
	user, err := s.users.UserByAppleID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup apple user: %w", err)
	}

	if identity.Email != nil && identity.EmailVerified {
		verified := normalizeEmail(*identity.Email)
		existing, err := s.users.UserByEmail(ctx, verified)
		switch {
		case err == nil:
			return s.linkApple(ctx, existing, identity.Subject)
		case !errors.Is(err, domain.ErrNotFound):
			return domain.User{}, fmt.Errorf("lookup email: %w", err)
		}
	}

	var email *string
	switch {
	case identity.Email != nil:
		normalized := normalizeEmail(*identity.Email)
		email = &normalized
	case provided != nil && strings.TrimSpace(*provided) != "":
		normalized := normalizeEmail(*provided)
		email = &normalized
	}

	subject := identity.Subject
	user, err = s.users.CreateUser(ctx, domain.User{Email: email, AppleUserID: &subject, IsActive: true})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create apple user: %w", err)
	}
	s.logger.Info("created user from apple sign in", "user_id", user.ID)
	return user, nil
}

// linkApple attaches subject to an account that has no Apple id yet. An
// account already bound to another Apple id is never rebound.
func (s *AuthService) linkApple(ctx context.Context, existing domain.User, subject string) (domain.User, error) {
	if existing.AppleUserID != nil {
		s.logger.Warn("email belongs to a different apple id", "user_id", existing.ID)
		return domain.User{}, domain.ErrEmailTaken
	}

	if err := s.users.LinkAppleID(ctx, existing.ID, subject); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("apple id was linked concurrently", "user_id", existing.ID)
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("link apple id: %w", err)
	}
	existing.AppleUserID = &subject
	s.logger.Info("linked apple id to existing user", "user_id", existing.ID)
	return existing, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return domain.User{}, domain.ErrInactiveUser
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
