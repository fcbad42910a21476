package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
)

const (
	appleIssuer     = "https://appleid.apple.com"
	clientSecretTTL = 5 * time.Minute
	appleKeysTTL    = time.Hour
	// unknown kids trigger at most one key set refresh per interval
	unknownKidRefresh = time.Minute
)

type appleClaims struct {
	Email string `json:"email,omitempty"`
	// Apple sends email_verified either as a bool or as "true"/"false".
	EmailVerified any `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// AppleVerifier exchanges Sign in with Apple authorization codes and
// verifies the returned identity tokens against Apple's published keys.
type AppleVerifier struct {
	cfg        config.AppleConfig
	signingKey *ecdsa.PrivateKey
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// keysCtx bounds the key set's background refresh.
	keysCtx context.Context
	keysMu  sync.Mutex
	keys    keyfunc.Keyfunc
}

var _ ports.AppleAuthenticator = (*AppleVerifier)(nil)

// NewAppleVerifier parses the team's ES256 key. client may be nil. ctx ends
// the hourly key set refresh. Apple's keys are first fetched on the first
// sign-in, not here.
func NewAppleVerifier(ctx context.Context, cfg config.AppleConfig, client *http.Client, log *slog.Logger) (*AppleVerifier, error) {
	if !cfg.Configured() {
		return nil, domain.ErrAppleNotConfigured
	}
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	// Keys pasted into env vars usually arrive with escaped newlines.
	pemKey := strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse apple private key: %w", err)
	}

	return &AppleVerifier{
		cfg:        cfg,
		signingKey: key,
		client:     client,
		logger:     log.With("component", "apple"),
		now:        time.Now,
		keysCtx:    ctx,
	}, nil
}

// Authenticate redeems code at Apple's token endpoint and returns the verified identity.
func (a *AppleVerifier) Authenticate(ctx context.Context, code string) (domain.AppleIdentity, error) {
	secret, err := a.clientSecret()
	if err != nil {
		return domain.AppleIdentity{}, err
	}

	conf := oauth2.Config{
		ClientID:     a.cfg.BundleID,
		ClientSecret: secret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	token, err := conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, a.client), code)
	if err != nil {
		a.logger.Warn("apple code exchange failed", "error", err)
		return domain.AppleIdentity{}, fmt.Errorf("%w: %v", domain.ErrAppleTokenRejected, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return domain.AppleIdentity{}, fmt.Errorf("%w: response has no id_token", domain.ErrAppleTokenRejected)
	}

	return a.verify(ctx, idToken)
}

func (a *AppleVerifier) verify(ctx context.Context, idToken string) (domain.AppleIdentity, error) {
	keys, err := a.keySet()
	if err != nil {
		return domain.AppleIdentity{}, err
	}

	claims := &appleClaims{}
	_, err = jwt.ParseWithClaims(idToken, claims, keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(appleIssuer),
		jwt.WithAudience(a.cfg.BundleID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, keyfunc.ErrKeyfunc) && a.noKeysLoaded(ctx, keys) {
			return domain.AppleIdentity{}, fmt.Errorf("%w: %v", domain.ErrAppleKeysUnavailable, err)
		}
		return domain.AppleIdentity{}, fmt.Errorf("%w: %v", domain.ErrAppleTokenRejected, err)
	}
	if claims.Subject == "" {
		return domain.AppleIdentity{}, fmt.Errorf("%w: empty subject", domain.ErrAppleTokenRejected)
	}

	identity := domain.AppleIdentity{Subject: claims.Subject, EmailVerified: truthy(claims.EmailVerified)}
	if claims.Email != "" {
		email := claims.Email
		identity.Email = &email
	}
	return identity, nil
}

// keySet builds the remote key set on first use. It refreshes hourly and on
// an unknown kid.
func (a *AppleVerifier) keySet() (keyfunc.Keyfunc, error) {
	a.keysMu.Lock()
	defer a.keysMu.Unlock()

	if a.keys != nil {
		return a.keys, nil
	}

	keys, err := keyfunc.NewDefaultOverrideCtx(a.keysCtx, []string{a.cfg.KeysURL}, keyfunc.Override{
		Client:            a.client,
		RefreshInterval:   appleKeysTTL,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(unknownKidRefresh), 1),
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				a.logger.Warn("apple keys refresh failed", "url", u, "error", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAppleKeysUnavailable, err)
	}
	a.keys = keys
	return keys, nil
}

// noKeysLoaded tells an unreachable key endpoint apart from a token signed
// with a key Apple does not publish.
func (a *AppleVerifier) noKeysLoaded(ctx context.Context, keys keyfunc.Keyfunc) bool {
	all, err := keys.Storage().KeyReadAll(ctx)
	return err != nil || len(all) == 0
}

func (a *AppleVerifier) clientSecret() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.cfg.TeamID,
		Subject:   a.cfg.BundleID,
		Audience:  jwt.ClaimStrings{appleIssuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(clientSecretTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = a.cfg.KeyID

	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign apple client secret: %w", err)
	}
	return signed, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
