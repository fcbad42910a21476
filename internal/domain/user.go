package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can read the API.
type User struct {
	ID             uuid.UUID
	Email          *string
	HashedPassword *string
	AppleUserID    *string
	IsActive       bool
	CreatedAt      time.Time
}

// AccessToken is what sign-in endpoints hand back.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
}

// AppleIdentity is the verified subject of an Apple identity token.
type AppleIdentity struct {
	Subject       string
	Email         *string
	EmailVerified bool
}
