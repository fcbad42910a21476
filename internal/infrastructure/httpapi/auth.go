package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"NewsSum/internal/domain"
	"NewsSum/internal/usecase"
	"NewsSum/internal/validation"
)

const userContextKey = "newsum.user"

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// tokenRequest accepts the OAuth2 password form (username) or JSON (email).
type tokenRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type appleRequest struct {
	AuthorizationCode string  `json:"authorization_code" validate:"required"`
	Email             *string `json:"email" validate:"omitempty,email"`
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type userResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     *string   `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type userTokenResponse struct {
	userResponse
	tokenResponse
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{UserID: u.ID, Email: u.Email, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

func toTokenResponse(t domain.AccessToken) tokenResponse {
	return tokenResponse{AccessToken: t.Token, TokenType: t.TokenType, ExpiresAt: t.ExpiresAt}
}

func (s *Server) bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := s.validate.Struct(req); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, verr.Fields)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}

	user, token, err := s.auth.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.authError(c, err)
	}
	return c.JSON(http.StatusCreated, userTokenResponse{toUserResponse(user), toTokenResponse(token)})
}

func (s *Server) handleToken(c echo.Context) error {
	var req tokenRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}

	email := req.Email
	if email == "" {
		email = req.Username
	}
	if email == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{"username": "is required"})
	}

	token, err := s.auth.Login(c.Request().Context(), email, req.Password)
	if err != nil {
		return s.authError(c, err)
	}
	return c.JSON(http.StatusOK, toTokenResponse(token))
}

func (s *Server) handleApple(c echo.Context) error {
	var req appleRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}

	user, token, err := s.auth.SignInWithApple(c.Request().Context(), usecase.AppleSignIn{
		Code:  req.AuthorizationCode,
		Email: req.Email,
	})
	if err != nil {
		return s.authError(c, err)
	}
	return c.JSON(http.StatusOK, userTokenResponse{toUserResponse(user), toTokenResponse(token)})
}

func (s *Server) handleMe(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c, "Not authenticated")
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// requireUser resolves the bearer token and stores the user on the context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return unauthorized(c, "Not authenticated")
		}

		user, err := s.auth.Authenticate(c.Request().Context(), strings.TrimSpace(token))
		if err != nil {
			return s.authError(c, err)
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

func currentUser(c echo.Context) (domain.User, bool) {
	user, ok := c.Get(userContextKey).(domain.User)
	return user, ok
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}

func (s *Server) authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered.")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return unauthorized(c, "Could not validate credentials")
	case errors.Is(err, domain.ErrInactiveUser):
		return echo.NewHTTPError(http.StatusBadRequest, "Inactive user")
	case errors.Is(err, domain.ErrAppleNotConfigured), errors.Is(err, domain.ErrAppleKeysUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Apple sign in is unavailable")
	case errors.Is(err, domain.ErrAppleTokenRejected):
		return unauthorized(c, "Apple identity could not be verified")
	default:
		s.logger.Error("auth request failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
